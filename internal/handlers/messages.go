package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/assetdesk/rights-api/internal/notify"
)

// MessageHandlers exposes notification CRUD, scoped strictly to the
// authenticated caller's own messages.
type MessageHandlers struct {
	svc *notify.Service
}

// NewMessageHandlers creates new message handlers.
func NewMessageHandlers(svc *notify.Service) *MessageHandlers {
	return &MessageHandlers{svc: svc}
}

func writeNotifyError(w http.ResponseWriter, err error) {
	if errors.Is(err, notify.ErrNotFound) {
		WriteError(w, http.StatusNotFound, err, nil)
		return
	}
	WriteError(w, http.StatusInternalServerError, err, nil)
}

// List handles GET /api/messages
func (h *MessageHandlers) List(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	notifications, err := h.svc.List(r.Context(), session.Email)
	if err != nil {
		writeNotifyError(w, err)
		return
	}
	WriteSuccess(w, notifications)
}

// Get handles GET /api/messages/{id}
func (h *MessageHandlers) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	n, err := h.svc.Get(r.Context(), session.Email, mux.Vars(r)["id"])
	if err != nil {
		writeNotifyError(w, err)
		return
	}
	WriteSuccess(w, n)
}

// Create handles POST /api/messages
func (h *MessageHandlers) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	var n notify.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}
	if n.Subject == "" && n.Message == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("subject or message is required"), nil)
		return
	}

	created, err := h.svc.Send(r.Context(), session.Email, n)
	if err != nil {
		writeNotifyError(w, err)
		return
	}
	WriteSuccess(w, created)
}

// Update handles POST /api/messages/{id}
func (h *MessageHandlers) Update(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	var patch notify.Notification
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	updated, err := h.svc.Update(r.Context(), session.Email, mux.Vars(r)["id"], patch)
	if err != nil {
		writeNotifyError(w, err)
		return
	}
	WriteSuccess(w, updated)
}

// Delete handles DELETE /api/messages/{id}
func (h *MessageHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), session.Email, mux.Vars(r)["id"]); err != nil {
		writeNotifyError(w, err)
		return
	}
	WriteMessage(w, "deleted")
}
