package rights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/assetdesk/rights-api/internal/access"
	"github.com/assetdesk/rights-api/internal/kv"
	"github.com/assetdesk/rights-api/internal/logging"
	"github.com/assetdesk/rights-api/internal/metrics"
	"github.com/assetdesk/rights-api/internal/notify"
)

// Service errors, mapped to HTTP status at the handler boundary.
var (
	ErrNotFound        = errors.New("rights request not found")
	ErrInvalidStatus   = errors.New("invalid status for this actor")
	ErrInvalidAssignee = errors.New("assignee is not a rights reviewer")
)

// ReviewerDistributionList is notified of every new rights request.
// It duplicates the reviewer grants in the access sheets; the two can
// disagree, and both are unioned when notifying.
var ReviewerDistributionList = []string{
	"rights-desk@assetdesk.example",
	"clearance-team@assetdesk.example",
}

const unassignedPartition = "unassigned"

// Service implements the rights-request review workflow over the KV
// store. Multi-key mutations are independent writes with no rollback;
// readers skip joins they cannot resolve.
type Service struct {
	store    kv.Store
	notifier *notify.Service
	tables   *access.Loader
	logger   *logging.Logger

	// propagationDelay is slept after the assignment write sequence so
	// eventually-consistent readers settle before notifications fire.
	propagationDelay time.Duration
}

// NewService creates the workflow service.
func NewService(store kv.Store, notifier *notify.Service, tables *access.Loader, logger *logging.Logger, propagationDelay time.Duration) *Service {
	return &Service{
		store:            store,
		notifier:         notifier,
		tables:           tables,
		logger:           logger,
		propagationDelay: propagationDelay,
	}
}

func requestKey(owner, requestID string) string {
	return strings.ToLower(owner) + ":" + requestID
}

func pointerKey(partition, requestID string) string {
	return strings.ToLower(partition) + ":" + requestID
}

func (s *Service) putJSON(ctx context.Context, ns kv.Namespace, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.store.Put(ctx, ns, key, string(data), nil)
}

func (s *Service) getRequest(ctx context.Context, key string) (*Request, error) {
	raw, err := s.store.Get(ctx, kv.Requests, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", key, err)
	}
	return &req, nil
}

func (s *Service) getPointer(ctx context.Context, key string) (*Pointer, error) {
	raw, err := s.store.Get(ctx, kv.Reviews, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ptr Pointer
	if err := json.Unmarshal([]byte(raw), &ptr); err != nil {
		return nil, fmt.Errorf("decode pointer %s: %w", key, err)
	}
	return &ptr, nil
}

// Create writes a new rights request and its unassigned review pointer,
// then notifies the reviewer audience. The two writes are independent;
// a failure after the first leaves a recoverable primary without a
// pointer.
func (s *Service) Create(ctx context.Context, sub Submission, submitter string) (*Request, error) {
	submitter = strings.ToLower(submitter)
	now := nowStamp()

	req := &Request{
		RequestID:      newRequestID(),
		SubmittedBy:    submitter,
		CreatedAt:      now,
		LastModifiedAt: now,
		LastModifiedBy: submitter,
		Details: Details{
			RequesterName:  sub.RequesterName,
			RequesterEmail: sub.RequesterEmail,
			AgencyName:     sub.AgencyName,
			AgencyContact:  sub.AgencyContact,
			UsageStartDate: normalizeDate(sub.UsageStartDate),
			UsageEndDate:   normalizeDate(sub.UsageEndDate),
			Markets:        sub.Markets,
			MediaRights:    sub.mediaRights(),
			Assets:         sub.Assets,
			BudgetNotes:    sub.BudgetNotes,
		},
		ReviewDetails: ReviewDetails{
			Status:         StatusNotStarted,
			RightsReviewer: "",
		},
	}

	key := requestKey(submitter, req.RequestID)
	if err := s.putJSON(ctx, kv.Requests, key, req); err != nil {
		return nil, fmt.Errorf("store rights request: %w", err)
	}

	ptr := &Pointer{
		RequestKey:  key,
		RequestID:   req.RequestID,
		SubmittedBy: submitter,
		CreatedAt:   now,
	}
	if err := s.putJSON(ctx, kv.Reviews, pointerKey(unassignedPartition, req.RequestID), ptr); err != nil {
		return nil, fmt.Errorf("store review pointer: %w", err)
	}

	metrics.RecordRequestCreated()
	s.logger.Info("rights request created", logging.Fields{
		"requestId": req.RequestID,
		"submitter": submitter,
	})

	s.notifier.SendToMultiple(ctx, s.reviewerAudience(ctx), notify.Notification{
		Subject:  "New Rights Request",
		Message:  fmt.Sprintf("A new rights request %s was submitted by %s.", req.RequestID, submitter),
		Type:     "rights-request",
		From:     "Rights Desk",
		Priority: "normal",
	})

	return req, nil
}

// reviewerAudience unions the hardcoded distribution list with every
// exact-email reviewer grant holder from the access sheets.
func (s *Service) reviewerAudience(ctx context.Context) []string {
	audience := append([]string{}, ReviewerDistributionList...)

	tables, err := s.tables.Tables(ctx)
	if err != nil {
		s.logger.Error("reviewer audience: access tables unavailable", err, nil)
		return audience
	}
	return append(audience, tables.ReviewerIdentities()...)
}

// ListForSubmitter returns all requests owned by the submitter.
func (s *Service) ListForSubmitter(ctx context.Context, submitter string) ([]Request, error) {
	entries, err := s.store.List(ctx, kv.Requests, kv.ListOptions{
		Prefix: strings.ToLower(submitter) + ":",
	})
	if err != nil {
		return nil, fmt.Errorf("list rights requests: %w", err)
	}

	requests := make([]Request, 0, len(entries))
	for _, entry := range entries {
		var req Request
		if err := json.Unmarshal([]byte(entry.Value), &req); err != nil {
			s.logger.Warn("skipping undecodable rights request", logging.Fields{"key": entry.Key})
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// ReviewItem is one entry in a reviewer's work list: the pointer joined
// to its primary record.
type ReviewItem struct {
	Request    Request `json:"request"`
	Unassigned bool    `json:"unassigned"`
	AssignedAt string  `json:"assignedAt,omitempty"`
	AssignedBy string  `json:"assignedBy,omitempty"`
}

// ListReviews returns the union of all unassigned pointers and the
// pointers assigned to the reviewer, each joined to its primary record.
// Pointers whose primary record is missing are dropped, not errors.
func (s *Service) ListReviews(ctx context.Context, reviewer string) ([]ReviewItem, error) {
	items := []ReviewItem{}

	for _, partition := range []string{unassignedPartition, strings.ToLower(reviewer)} {
		entries, err := s.store.List(ctx, kv.Reviews, kv.ListOptions{Prefix: partition + ":"})
		if err != nil {
			return nil, fmt.Errorf("list reviews %s: %w", partition, err)
		}

		for _, entry := range entries {
			var ptr Pointer
			if err := json.Unmarshal([]byte(entry.Value), &ptr); err != nil {
				s.logger.Warn("skipping undecodable review pointer", logging.Fields{"key": entry.Key})
				continue
			}

			req, err := s.getRequest(ctx, ptr.RequestKey)
			if err != nil {
				// Orphaned pointer: primary missing or undecodable.
				s.logger.Warn("skipping orphaned review pointer", logging.Fields{"key": entry.Key})
				continue
			}

			items = append(items, ReviewItem{
				Request:    *req,
				Unassigned: partition == unassignedPartition,
				AssignedAt: ptr.AssignedAt,
				AssignedBy: ptr.AssignedBy,
			})
		}
	}
	return items, nil
}

// assign moves the unassigned pointer for requestID into the assignee's
// partition and marks the primary record in progress. The pointer move
// is two independent writes; the read-before-write on the unassigned
// key is what makes concurrent assignment lose cleanly with not-found.
func (s *Service) assign(ctx context.Context, requestID, assignee, assignedBy string) (*Request, error) {
	assignee = strings.ToLower(assignee)

	ptr, err := s.getPointer(ctx, pointerKey(unassignedPartition, requestID))
	if err != nil {
		return nil, err
	}

	req, err := s.getRequest(ctx, ptr.RequestKey)
	if err != nil {
		return nil, err
	}

	req.ReviewDetails.Status = StatusInProgress
	req.ReviewDetails.RightsReviewer = assignee
	req.ReviewDetails.AssignedBy = assignedBy
	req.LastModifiedAt = nowStamp()
	req.LastModifiedBy = assignee

	if err := s.putJSON(ctx, kv.Requests, ptr.RequestKey, req); err != nil {
		return nil, fmt.Errorf("update rights request: %w", err)
	}

	if err := s.store.Delete(ctx, kv.Reviews, pointerKey(unassignedPartition, requestID)); err != nil {
		return nil, fmt.Errorf("remove unassigned pointer: %w", err)
	}

	ptr.AssignedAt = nowStamp()
	ptr.AssignedBy = assignedBy
	if err := s.putJSON(ctx, kv.Reviews, pointerKey(assignee, requestID), ptr); err != nil {
		return nil, fmt.Errorf("store assigned pointer: %w", err)
	}

	// Let the writes propagate before anyone reads them back.
	if s.propagationDelay > 0 {
		time.Sleep(s.propagationDelay)
	}

	return req, nil
}

// Assign self-assigns an unassigned request to the reviewer. Fails with
// ErrNotFound when no unassigned pointer exists (already assigned or
// never existed); the primary record is untouched in that case.
func (s *Service) Assign(ctx context.Context, requestID, reviewer string) (*Request, error) {
	req, err := s.assign(ctx, requestID, reviewer, "")
	if err != nil {
		return nil, err
	}

	metrics.RecordAssignment("self")
	s.logger.Info("review self-assigned", logging.Fields{
		"requestId": requestID,
		"reviewer":  reviewer,
	})
	return req, nil
}

// AssignTo assigns an unassigned request to assignee on a manager's
// behalf. The assignee must hold reviewer or manager permission in the
// access sheets, or appear on the distribution list.
func (s *Service) AssignTo(ctx context.Context, requestID, assignee, manager string) (*Request, error) {
	assignee = strings.ToLower(assignee)

	eligible := false
	if tables, err := s.tables.Tables(ctx); err == nil {
		eligible = tables.IsReviewerOrManager(assignee)
	}
	if !eligible {
		for _, email := range ReviewerDistributionList {
			if strings.EqualFold(email, assignee) {
				eligible = true
				break
			}
		}
	}
	if !eligible {
		return nil, ErrInvalidAssignee
	}

	req, err := s.assign(ctx, requestID, assignee, strings.ToLower(manager))
	if err != nil {
		return nil, err
	}

	metrics.RecordAssignment("manager")
	s.logger.Info("review assigned by manager", logging.Fields{
		"requestId": requestID,
		"assignee":  assignee,
		"manager":   manager,
	})

	if _, err := s.notifier.Send(ctx, assignee, notify.Notification{
		Subject:  "Rights Request Review Assigned",
		Message:  fmt.Sprintf("Rights request %s was assigned to you by %s.", requestID, manager),
		Type:     "rights-review",
		From:     "Rights Desk",
		Priority: "normal",
	}); err != nil {
		s.logger.Error("assignment notification failed", err, logging.Fields{"assignee": assignee})
	}

	return req, nil
}

// UpdateReviewStatus sets a new status on a request assigned to the
// caller. A missing pointer in the caller's partition is not-found, not
// a permission error. Notifies the original submitter.
func (s *Service) UpdateReviewStatus(ctx context.Context, requestID, newStatus, reviewer string) (*Request, error) {
	if !ReviewerCanSet(newStatus) {
		return nil, ErrInvalidStatus
	}

	ptr, err := s.getPointer(ctx, pointerKey(reviewer, requestID))
	if err != nil {
		return nil, err
	}

	req, err := s.getRequest(ctx, ptr.RequestKey)
	if err != nil {
		return nil, err
	}

	req.ReviewDetails.Status = newStatus
	req.LastModifiedAt = nowStamp()
	req.LastModifiedBy = strings.ToLower(reviewer)

	if err := s.putJSON(ctx, kv.Requests, ptr.RequestKey, req); err != nil {
		return nil, fmt.Errorf("update rights request: %w", err)
	}

	metrics.RecordStatusTransition(newStatus, "reviewer")

	if _, err := s.notifier.Send(ctx, req.SubmittedBy, notify.Notification{
		Subject:  "Rights Request Status Update",
		Message:  fmt.Sprintf("Rights request %s is now %q.", requestID, newStatus),
		Type:     "rights-status",
		From:     "Rights Desk",
		Priority: "normal",
	}); err != nil {
		s.logger.Error("status notification failed", err, logging.Fields{"submitter": req.SubmittedBy})
	}

	return req, nil
}

// UpdateSubmitterStatus lets the submitter cancel their own request.
// The primary must exist under the submitter's partition; the review
// pointer, wherever it currently lives, is re-touched best-effort
// without changing its assignment.
func (s *Service) UpdateSubmitterStatus(ctx context.Context, requestID, newStatus, submitter string) (*Request, error) {
	if !SubmitterCanSet(newStatus) {
		return nil, ErrInvalidStatus
	}

	key := requestKey(submitter, requestID)
	req, err := s.getRequest(ctx, key)
	if err != nil {
		return nil, err
	}

	req.ReviewDetails.Status = newStatus
	req.LastModifiedAt = nowStamp()
	req.LastModifiedBy = strings.ToLower(submitter)

	if err := s.putJSON(ctx, kv.Requests, key, req); err != nil {
		return nil, fmt.Errorf("update rights request: %w", err)
	}

	metrics.RecordStatusTransition(newStatus, "submitter")

	partition := unassignedPartition
	if req.ReviewDetails.RightsReviewer != "" {
		partition = req.ReviewDetails.RightsReviewer
	}
	if ptr, err := s.getPointer(ctx, pointerKey(partition, requestID)); err == nil {
		if err := s.putJSON(ctx, kv.Reviews, pointerKey(partition, requestID), ptr); err != nil {
			s.logger.Warn("pointer re-touch failed", logging.Fields{"requestId": requestID})
		}
	}

	return req, nil
}

// AdminRecord pairs a request with its raw storage key for audit and
// export.
type AdminRecord struct {
	Key     string  `json:"key"`
	Request Request `json:"request"`
}

// ListAll scans every primary record. Undecodable values are skipped.
func (s *Service) ListAll(ctx context.Context) ([]AdminRecord, error) {
	entries, err := s.store.List(ctx, kv.Requests, kv.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list all rights requests: %w", err)
	}

	records := make([]AdminRecord, 0, len(entries))
	for _, entry := range entries {
		var req Request
		if err := json.Unmarshal([]byte(entry.Value), &req); err != nil {
			s.logger.Warn("skipping undecodable rights request", logging.Fields{"key": entry.Key})
			continue
		}
		records = append(records, AdminRecord{Key: entry.Key, Request: req})
	}
	return records, nil
}

// EligibleReviewers returns the identities a manager may assign to:
// the access-sheet reviewer grant holders unioned with the
// distribution list.
func (s *Service) EligibleReviewers(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var emails []string

	add := func(email string) {
		email = strings.ToLower(email)
		if !seen[email] {
			seen[email] = true
			emails = append(emails, email)
		}
	}

	tables, err := s.tables.Tables(ctx)
	if err != nil {
		return nil, err
	}
	for _, email := range tables.ReviewerIdentities() {
		add(email)
	}
	for _, email := range ReviewerDistributionList {
		add(email)
	}
	return emails, nil
}
