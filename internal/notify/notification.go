package notify

import (
	"time"
)

// Notification is one per-user message in the MESSAGES namespace,
// keyed by "<ownerEmail>:<id>". Id, owner and date are fixed at
// creation; everything else may be updated by the owner.
type Notification struct {
	ID             string `json:"id"`
	Owner          string `json:"owner"`
	Date           string `json:"date"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
	Type           string `json:"type,omitempty"`
	From           string `json:"from,omitempty"`
	Priority       string `json:"priority,omitempty"`
	ExpiresInXDays int    `json:"expiresInXDays,omitempty"`
	Status         string `json:"status"`
}

const (
	StatusUnread = "unread"
	StatusRead   = "read"
)

// DefaultExpiryDays applies when a sender does not set an expiry window.
const DefaultExpiryDays = 30

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
