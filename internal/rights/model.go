package rights

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Review statuses. "Not Started" is the initial value written at
// creation; a request leaves it only through assignment.
const (
	StatusNotStarted     = "Not Started"
	StatusInProgress     = "In Progress"
	StatusQuotePending   = "Quote Pending"
	StatusReleasePending = "Release Pending"
	StatusDone           = "Done"
	StatusRMCanceled     = "RM Canceled"
	StatusUserCanceled   = "User Canceled"
)

// reviewerStatuses are the targets an assigned reviewer may set.
var reviewerStatuses = map[string]bool{
	StatusInProgress:     true,
	StatusRMCanceled:     true,
	StatusQuotePending:   true,
	StatusReleasePending: true,
	StatusDone:           true,
}

// submitterStatuses are the targets a submitter may set.
var submitterStatuses = map[string]bool{
	StatusUserCanceled: true,
}

// ReviewerCanSet reports whether a reviewer may set the status.
func ReviewerCanSet(status string) bool {
	return reviewerStatuses[status]
}

// SubmitterCanSet reports whether a submitter may set the status.
func SubmitterCanSet(status string) bool {
	return submitterStatuses[status]
}

// ReviewDetails is the review sub-record of a rights request.
type ReviewDetails struct {
	Status         string `json:"status"`
	RightsReviewer string `json:"rightsReviewer"`
	AssignedBy     string `json:"assignedBy,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// AssetRef points at a DAM asset covered by a request.
type AssetRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Details is the nested contact/usage block of a rights request.
type Details struct {
	RequesterName  string     `json:"requesterName,omitempty"`
	RequesterEmail string     `json:"requesterEmail,omitempty"`
	AgencyName     string     `json:"agencyName,omitempty"`
	AgencyContact  string     `json:"agencyContact,omitempty"`
	UsageStartDate string     `json:"usageStartDate,omitempty"`
	UsageEndDate   string     `json:"usageEndDate,omitempty"`
	Markets        []string   `json:"markets,omitempty"`
	MediaRights    []string   `json:"mediaRights,omitempty"`
	Assets         []AssetRef `json:"assets,omitempty"`
	BudgetNotes    string     `json:"budgetNotes,omitempty"`
}

// Request is the primary rights-request record, keyed in the REQUESTS
// namespace by "<ownerEmail>:<requestId>".
type Request struct {
	RequestID      string        `json:"requestId"`
	SubmittedBy    string        `json:"submittedBy"`
	CreatedAt      string        `json:"createdAt"`
	LastModifiedAt string        `json:"lastModifiedAt"`
	LastModifiedBy string        `json:"lastModifiedBy"`
	Details        Details       `json:"details"`
	ReviewDetails  ReviewDetails `json:"reviewDetails"`
}

// Pointer is the denormalized review record. It lives in exactly one
// REVIEWS partition at a time: "unassigned:<requestId>" or
// "<reviewerEmail>:<requestId>".
type Pointer struct {
	RequestKey  string `json:"requestKey"`
	RequestID   string `json:"requestId"`
	SubmittedBy string `json:"submittedBy"`
	CreatedAt   string `json:"createdAt"`
	AssignedAt  string `json:"assignedAt,omitempty"`
	AssignedBy  string `json:"assignedBy,omitempty"`
}

// Submission is the client payload for creating a rights request. The
// boolean usage flags map onto display labels in MediaRights.
type Submission struct {
	RequesterName  string     `json:"requesterName"`
	RequesterEmail string     `json:"requesterEmail"`
	AgencyName     string     `json:"agencyName,omitempty"`
	AgencyContact  string     `json:"agencyContact,omitempty"`
	UsageStartDate string     `json:"usageStartDate"`
	UsageEndDate   string     `json:"usageEndDate"`
	Markets        []string   `json:"markets,omitempty"`
	TV             bool       `json:"tv,omitempty"`
	Digital        bool       `json:"digital,omitempty"`
	Print          bool       `json:"print,omitempty"`
	OutOfHome      bool       `json:"outOfHome,omitempty"`
	SocialMedia    bool       `json:"socialMedia,omitempty"`
	Assets         []AssetRef `json:"assets,omitempty"`
	BudgetNotes    string     `json:"budgetNotes,omitempty"`
}

// mediaRights maps the boolean usage flags to their display labels.
func (s *Submission) mediaRights() []string {
	var labels []string
	if s.TV {
		labels = append(labels, "TV")
	}
	if s.Digital {
		labels = append(labels, "Digital")
	}
	if s.Print {
		labels = append(labels, "Print")
	}
	if s.OutOfHome {
		labels = append(labels, "Out of Home")
	}
	if s.SocialMedia {
		labels = append(labels, "Social Media")
	}
	return labels
}

// Timestamp formats used on stored records. Dates in the usage window
// are normalized to dateFormat; audit timestamps use stampFormat.
const (
	stampFormat = "January 2, 2006 3:04:05 PM"
	dateFormat  = "January 2, 2006"
)

var dateInputLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	dateFormat,
}

// normalizeDate renders a client-supplied date in the fixed textual
// format. Unparseable input passes through unchanged.
func normalizeDate(input string) string {
	if input == "" {
		return ""
	}
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t.Format(dateFormat)
		}
	}
	return input
}

func nowStamp() string {
	return time.Now().UTC().Format(stampFormat)
}

// newRequestID builds a request id from the current time plus a random
// suffix. Collisions are treated as negligible, not prevented.
func newRequestID() string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}
