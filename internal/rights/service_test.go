package rights

import (
	"context"
	"errors"
	"testing"

	"github.com/assetdesk/rights-api/internal/kv"
	"github.com/assetdesk/rights-api/internal/notify"
	testutil "github.com/assetdesk/rights-api/internal/testing"
)

func setupService(t *testing.T) (*Service, *notify.Service, kv.Store) {
	t.Helper()

	store := testutil.SetupTestStore(t)
	logger := testutil.TestLogger()
	notifier := notify.NewService(store, logger, nil)

	svc := NewService(store, notifier, testutil.TestTables(), logger, 0)
	return svc, notifier, store
}

func createRequest(t *testing.T, svc *Service, submitter string) *Request {
	t.Helper()

	req, err := svc.Create(context.Background(), Submission{
		RequesterName:  "Alice",
		RequesterEmail: submitter,
		UsageStartDate: "2026-01-01",
		UsageEndDate:   "2026-06-30",
		Markets:        []string{"US"},
		TV:             true,
		Digital:        true,
	}, submitter)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return req
}

func TestCreate(t *testing.T) {
	svc, notifier, store := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	if req.ReviewDetails.Status != StatusNotStarted {
		t.Errorf("expected initial status %q, got %q", StatusNotStarted, req.ReviewDetails.Status)
	}
	if req.ReviewDetails.RightsReviewer != "" {
		t.Errorf("expected no reviewer at creation, got %q", req.ReviewDetails.RightsReviewer)
	}
	if got := req.Details.MediaRights; len(got) != 2 || got[0] != "TV" || got[1] != "Digital" {
		t.Errorf("unexpected media rights %v", got)
	}

	// Unassigned pointer exists.
	if _, err := store.Get(ctx, kv.Reviews, "unassigned:"+req.RequestID); err != nil {
		t.Errorf("expected unassigned pointer, got %v", err)
	}

	// The distribution list and the sheet reviewer were notified.
	for _, recipient := range []string{ReviewerDistributionList[0], "reviewer@example.com"} {
		notifications, err := notifier.List(ctx, recipient)
		if err != nil {
			t.Fatalf("List notifications failed: %v", err)
		}
		if len(notifications) != 1 || notifications[0].Subject != "New Rights Request" {
			t.Errorf("expected creation notification for %s, got %v", recipient, notifications)
		}
	}
}

func TestListForSubmitter(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	createRequest(t, svc, "alice@example.com")
	createRequest(t, svc, "alice@example.com")
	createRequest(t, svc, "bob@example.com")

	requests, err := svc.ListForSubmitter(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListForSubmitter failed: %v", err)
	}
	if len(requests) != 2 {
		t.Errorf("expected 2 requests, got %d", len(requests))
	}
	for _, req := range requests {
		if req.SubmittedBy != "alice@example.com" {
			t.Errorf("unexpected owner %q", req.SubmittedBy)
		}
	}
}

func TestAssign(t *testing.T) {
	svc, _, store := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	assigned, err := svc.Assign(ctx, req.RequestID, "reviewer@example.com")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	if assigned.ReviewDetails.Status != StatusInProgress {
		t.Errorf("expected %q, got %q", StatusInProgress, assigned.ReviewDetails.Status)
	}
	if assigned.ReviewDetails.RightsReviewer != "reviewer@example.com" {
		t.Errorf("expected reviewer recorded, got %q", assigned.ReviewDetails.RightsReviewer)
	}

	// Pointer moved out of the unassigned partition.
	if _, err := store.Get(ctx, kv.Reviews, "unassigned:"+req.RequestID); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("expected unassigned pointer gone, got %v", err)
	}
	if _, err := store.Get(ctx, kv.Reviews, "reviewer@example.com:"+req.RequestID); err != nil {
		t.Errorf("expected reviewer pointer, got %v", err)
	}
}

func TestAssignAlreadyAssigned(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	if _, err := svc.Assign(ctx, req.RequestID, "reviewer@example.com"); err != nil {
		t.Fatalf("first Assign failed: %v", err)
	}

	// Second claim loses with not-found and must not touch the record.
	if _, err := svc.Assign(ctx, req.RequestID, "manager@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	requests, err := svc.ListForSubmitter(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListForSubmitter failed: %v", err)
	}
	if requests[0].ReviewDetails.RightsReviewer != "reviewer@example.com" {
		t.Errorf("primary record mutated by losing claim: %q", requests[0].ReviewDetails.RightsReviewer)
	}
}

func TestAssignUnknownRequest(t *testing.T) {
	svc, _, _ := setupService(t)

	if _, err := svc.Assign(context.Background(), "missing-id", "reviewer@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignTo(t *testing.T) {
	svc, notifier, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	assigned, err := svc.AssignTo(ctx, req.RequestID, "reviewer@example.com", "manager@example.com")
	if err != nil {
		t.Fatalf("AssignTo failed: %v", err)
	}
	if assigned.ReviewDetails.AssignedBy != "manager@example.com" {
		t.Errorf("expected assigner recorded, got %q", assigned.ReviewDetails.AssignedBy)
	}

	notifications, err := notifier.List(ctx, "reviewer@example.com")
	if err != nil {
		t.Fatalf("List notifications failed: %v", err)
	}
	var found bool
	for _, n := range notifications {
		if n.Subject == "Rights Request Review Assigned" {
			found = true
		}
	}
	if !found {
		t.Error("expected assignment notification for the assignee")
	}
}

func TestAssignToInvalidAssignee(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	_, err := svc.AssignTo(ctx, req.RequestID, "random@example.com", "manager@example.com")
	if !errors.Is(err, ErrInvalidAssignee) {
		t.Errorf("expected ErrInvalidAssignee, got %v", err)
	}
}

func TestAssignToDistributionListMember(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	// Not in the access sheets, but on the distribution list.
	if _, err := svc.AssignTo(ctx, req.RequestID, ReviewerDistributionList[0], "manager@example.com"); err != nil {
		t.Errorf("expected distribution list member to be eligible, got %v", err)
	}
}

func TestUpdateReviewStatus(t *testing.T) {
	svc, notifier, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")
	if _, err := svc.Assign(ctx, req.RequestID, "reviewer@example.com"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	updated, err := svc.UpdateReviewStatus(ctx, req.RequestID, StatusDone, "reviewer@example.com")
	if err != nil {
		t.Fatalf("UpdateReviewStatus failed: %v", err)
	}
	if updated.ReviewDetails.Status != StatusDone {
		t.Errorf("expected %q, got %q", StatusDone, updated.ReviewDetails.Status)
	}
	if updated.ReviewDetails.RightsReviewer != "reviewer@example.com" {
		t.Errorf("reviewer should be untouched, got %q", updated.ReviewDetails.RightsReviewer)
	}

	notifications, err := notifier.List(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("List notifications failed: %v", err)
	}
	var found bool
	for _, n := range notifications {
		if n.Subject == "Rights Request Status Update" {
			found = true
		}
	}
	if !found {
		t.Error("expected status notification for the submitter")
	}
}

func TestUpdateReviewStatusValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")
	if _, err := svc.Assign(ctx, req.RequestID, "reviewer@example.com"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	tests := []struct {
		name     string
		status   string
		reviewer string
		wantErr  error
	}{
		{"submitter-only status rejected", StatusUserCanceled, "reviewer@example.com", ErrInvalidStatus},
		{"unknown status rejected", "Approved", "reviewer@example.com", ErrInvalidStatus},
		{"not the assignee", StatusDone, "manager@example.com", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpdateReviewStatus(ctx, req.RequestID, tt.status, tt.reviewer); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateSubmitterStatus(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	updated, err := svc.UpdateSubmitterStatus(ctx, req.RequestID, StatusUserCanceled, "alice@example.com")
	if err != nil {
		t.Fatalf("UpdateSubmitterStatus failed: %v", err)
	}
	if updated.ReviewDetails.Status != StatusUserCanceled {
		t.Errorf("expected %q, got %q", StatusUserCanceled, updated.ReviewDetails.Status)
	}
}

func TestUpdateSubmitterStatusValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	// Submitters may only cancel.
	if _, err := svc.UpdateSubmitterStatus(ctx, req.RequestID, StatusDone, "alice@example.com"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	// Someone else's request is not-found under the caller's partition.
	if _, err := svc.UpdateSubmitterStatus(ctx, req.RequestID, StatusUserCanceled, "bob@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListReviews(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	unclaimed := createRequest(t, svc, "alice@example.com")
	claimed := createRequest(t, svc, "bob@example.com")
	if _, err := svc.Assign(ctx, claimed.RequestID, "reviewer@example.com"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	other := createRequest(t, svc, "carol@example.com")
	if _, err := svc.Assign(ctx, other.RequestID, "manager@example.com"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	items, err := svc.ListReviews(ctx, "reviewer@example.com")
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected unassigned + own = 2 items, got %d", len(items))
	}

	byID := map[string]ReviewItem{}
	for _, item := range items {
		byID[item.Request.RequestID] = item
	}
	if item, ok := byID[unclaimed.RequestID]; !ok || !item.Unassigned {
		t.Errorf("expected unclaimed request flagged unassigned, got %+v", item)
	}
	if item, ok := byID[claimed.RequestID]; !ok || item.Unassigned {
		t.Errorf("expected claimed request in own partition, got %+v", item)
	}
}

func TestListReviewsDropsOrphanedPointers(t *testing.T) {
	svc, _, store := setupService(t)
	ctx := context.Background()

	req := createRequest(t, svc, "alice@example.com")

	// Delete the primary; the pointer is now an orphan.
	if err := store.Delete(ctx, kv.Requests, "alice@example.com:"+req.RequestID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	items, err := svc.ListReviews(ctx, "reviewer@example.com")
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected orphan dropped, got %d items", len(items))
	}
}

func TestListAll(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	createRequest(t, svc, "alice@example.com")
	createRequest(t, svc, "bob@example.com")

	records, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	for _, record := range records {
		if record.Key == "" {
			t.Error("expected storage key on admin record")
		}
	}
}

func TestEligibleReviewers(t *testing.T) {
	svc, _, _ := setupService(t)

	reviewers, err := svc.EligibleReviewers(context.Background())
	if err != nil {
		t.Fatalf("EligibleReviewers failed: %v", err)
	}

	want := map[string]bool{
		"reviewer@example.com":             true,
		"manager@example.com":              true,
		"rights-desk@assetdesk.example":    true,
		"clearance-team@assetdesk.example": true,
	}
	if len(reviewers) != len(want) {
		t.Fatalf("expected %d reviewers, got %v", len(want), reviewers)
	}
	for _, email := range reviewers {
		if !want[email] {
			t.Errorf("unexpected reviewer %q", email)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2026-01-15", "January 15, 2026"},
		{"01/15/2026", "January 15, 2026"},
		{"January 15, 2026", "January 15, 2026"},
		{"", ""},
		{"not a date", "not a date"},
	}

	for _, tt := range tests {
		if got := normalizeDate(tt.input); got != tt.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStatusValidation(t *testing.T) {
	for _, status := range []string{StatusInProgress, StatusRMCanceled, StatusQuotePending, StatusReleasePending, StatusDone} {
		if !ReviewerCanSet(status) {
			t.Errorf("expected reviewer to set %q", status)
		}
		if SubmitterCanSet(status) {
			t.Errorf("did not expect submitter to set %q", status)
		}
	}
	if ReviewerCanSet(StatusUserCanceled) {
		t.Error("did not expect reviewer to set User Canceled")
	}
	if !SubmitterCanSet(StatusUserCanceled) {
		t.Error("expected submitter to set User Canceled")
	}
	if ReviewerCanSet(StatusNotStarted) {
		t.Error("Not Started is never a transition target")
	}
}
