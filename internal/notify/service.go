package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/assetdesk/rights-api/internal/kv"
	"github.com/assetdesk/rights-api/internal/logging"
	"github.com/assetdesk/rights-api/internal/metrics"
)

// ErrNotFound is returned when a notification does not exist for the owner.
var ErrNotFound = errors.New("notification not found")

// Service stores and serves per-user notifications. All reads and
// mutations are scoped to the owner's key prefix; there is no
// cross-user access at this layer regardless of permission level.
type Service struct {
	store  kv.Store
	logger *logging.Logger
	hub    *Hub
}

// NewService creates a notification service. hub may be nil when no
// live feed is wired.
func NewService(store kv.Store, logger *logging.Logger, hub *Hub) *Service {
	return &Service{store: store, logger: logger, hub: hub}
}

func messageKey(owner, id string) string {
	return strings.ToLower(owner) + ":" + id
}

// Send writes a notification for one recipient. Id, owner, date and an
// unread status are stamped here; the caller provides the rest.
func (s *Service) Send(ctx context.Context, recipient string, n Notification) (*Notification, error) {
	n.ID = uuid.New().String()
	n.Owner = strings.ToLower(recipient)
	n.Date = nowStamp()
	if n.Status == "" {
		n.Status = StatusUnread
	}
	if n.ExpiresInXDays == 0 {
		n.ExpiresInXDays = DefaultExpiryDays
	}

	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	if err := s.store.Put(ctx, kv.Messages, messageKey(n.Owner, n.ID), string(data), nil); err != nil {
		metrics.RecordNotification("error")
		return nil, fmt.Errorf("store notification: %w", err)
	}
	metrics.RecordNotification("ok")

	if s.hub != nil {
		s.hub.publish(n.Owner, n)
	}
	return &n, nil
}

// SendToMultiple delivers the same notification to every recipient.
// Fire-and-forget semantics: one recipient's failure is logged and does
// not abort delivery to the others.
func (s *Service) SendToMultiple(ctx context.Context, recipients []string, n Notification) {
	seen := map[string]bool{}
	for _, recipient := range recipients {
		email := strings.ToLower(strings.TrimSpace(recipient))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		if _, err := s.Send(ctx, email, n); err != nil {
			s.logger.Error("notification delivery failed", err, logging.Fields{
				"recipient": email,
				"subject":   n.Subject,
			})
		}
	}
}

// List returns all notifications owned by the email.
func (s *Service) List(ctx context.Context, owner string) ([]Notification, error) {
	entries, err := s.store.List(ctx, kv.Messages, kv.ListOptions{
		Prefix: strings.ToLower(owner) + ":",
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	notifications := make([]Notification, 0, len(entries))
	for _, entry := range entries {
		var n Notification
		if err := json.Unmarshal([]byte(entry.Value), &n); err != nil {
			s.logger.Warn("skipping undecodable notification", logging.Fields{"key": entry.Key})
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// Get returns one notification owned by the email.
func (s *Service) Get(ctx context.Context, owner, id string) (*Notification, error) {
	raw, err := s.store.Get(ctx, kv.Messages, messageKey(owner, id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}

	var n Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &n, nil
}

// Update merges the provided fields into an existing notification.
// Id, owner and date are immutable once set.
func (s *Service) Update(ctx context.Context, owner, id string, patch Notification) (*Notification, error) {
	existing, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if patch.Subject != "" {
		existing.Subject = patch.Subject
	}
	if patch.Message != "" {
		existing.Message = patch.Message
	}
	if patch.Type != "" {
		existing.Type = patch.Type
	}
	if patch.From != "" {
		existing.From = patch.From
	}
	if patch.Priority != "" {
		existing.Priority = patch.Priority
	}
	if patch.ExpiresInXDays != 0 {
		existing.ExpiresInXDays = patch.ExpiresInXDays
	}
	if patch.Status != "" {
		existing.Status = patch.Status
	}

	data, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.store.Put(ctx, kv.Messages, messageKey(owner, id), string(data), nil); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	return existing, nil
}

// Delete removes one notification owned by the email.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, kv.Messages, messageKey(owner, id)); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
