package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/assetdesk/rights-api/internal/access"
	"github.com/assetdesk/rights-api/internal/auth"
	"github.com/assetdesk/rights-api/internal/rights"
)

// RightsHandlers exposes the rights-request workflow over HTTP.
type RightsHandlers struct {
	svc *rights.Service
}

// NewRightsHandlers creates new rights handlers.
func NewRightsHandlers(svc *rights.Service) *RightsHandlers {
	return &RightsHandlers{svc: svc}
}

func sessionOr401(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("not authenticated"), nil)
		return nil, false
	}
	return session, true
}

func requirePermission(w http.ResponseWriter, session *auth.Session, perms ...string) bool {
	for _, p := range perms {
		if session.HasPermission(p) {
			return true
		}
	}
	WriteError(w, http.StatusForbidden, fmt.Errorf("missing required permission"), nil)
	return false
}

// writeServiceError maps workflow errors onto the HTTP taxonomy.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rights.ErrNotFound):
		WriteError(w, http.StatusNotFound, err, nil)
	case errors.Is(err, rights.ErrInvalidStatus), errors.Is(err, rights.ErrInvalidAssignee):
		WriteError(w, http.StatusBadRequest, err, nil)
	default:
		WriteError(w, http.StatusInternalServerError, err, nil)
	}
}

// Create handles POST /rightsrequests
func (h *RightsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	var sub rights.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	req, err := h.svc.Create(r.Context(), sub, session.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, req)
}

// ListOwn handles GET /rightsrequests
func (h *RightsHandlers) ListOwn(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	requests, err := h.svc.ListForSubmitter(r.Context(), session.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, requests)
}

type statusRequest struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// SubmitterStatus handles POST /rightsrequests/status
func (h *RightsHandlers) SubmitterStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	var body statusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("requestId and status are required"), nil)
		return
	}

	req, err := h.svc.UpdateSubmitterStatus(r.Context(), body.RequestID, body.Status, session.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, req)
}

// ListAll handles GET /rightsrequests/all
func (h *RightsHandlers) ListAll(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	if !session.HasPermission(access.PermReportsAdmin) {
		// Denials here include the caller's actual permissions so
		// report tooling can show why the export was refused.
		WriteError(w, http.StatusForbidden, fmt.Errorf("reports-admin permission required"), map[string]interface{}{
			"email":       session.Email,
			"permissions": session.Permissions,
		})
		return
	}

	records, err := h.svc.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, records)
}

// ListReviews handles GET /rightsrequests/reviews
func (h *RightsHandlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	if !requirePermission(w, session, access.PermRightsReviewer, access.PermRightsManager) {
		return
	}

	items, err := h.svc.ListReviews(r.Context(), session.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, items)
}

// ListReviewers handles GET /rightsrequests/reviews/reviewers
func (h *RightsHandlers) ListReviewers(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	if !requirePermission(w, session, access.PermRightsManager) {
		return
	}

	reviewers, err := h.svc.EligibleReviewers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, reviewers)
}

type assignRequest struct {
	RequestID     string `json:"requestId"`
	AssigneeEmail string `json:"assigneeEmail,omitempty"`
}

// Assign handles POST /rightsrequests/reviews/assign
func (h *RightsHandlers) Assign(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	if !requirePermission(w, session, access.PermRightsReviewer, access.PermRightsManager) {
		return
	}

	var body assignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("requestId is required"), nil)
		return
	}

	req, err := h.svc.Assign(r.Context(), body.RequestID, session.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, req)
}

// AssignTo handles POST /rightsrequests/reviews/assign-to
func (h *RightsHandlers) AssignTo(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	if !requirePermission(w, session, access.PermRightsManager) {
		return
	}

	var body assignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" || body.AssigneeEmail == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("requestId and assigneeEmail are required"), nil)
		return
	}

	req, err := h.svc.AssignTo(r.Context(), body.RequestID, body.AssigneeEmail, session.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, req)
}

// ReviewStatus handles POST /rightsrequests/reviews/status
func (h *RightsHandlers) ReviewStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	if !requirePermission(w, session, access.PermRightsReviewer, access.PermRightsManager) {
		return
	}

	var body statusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("requestId and status are required"), nil)
		return
	}

	req, err := h.svc.UpdateReviewStatus(r.Context(), body.RequestID, body.Status, session.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, req)
}
