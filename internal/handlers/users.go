package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parley-chat/parley/internal/metrics"
	"github.com/parley-chat/parley/internal/models"
)

// ProvisionUserRequest represents the user provisioning request body.
type ProvisionUserRequest struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
}

// SetPresenceRequest represents the presence update request body.
type SetPresenceRequest struct {
	Online bool `json:"online"`
}

// UserListResponse represents the user list response.
type UserListResponse struct {
	Users []models.User `json:"users"`
}

// ProvisionUser handles idempotent user creation. The external auth
// provider issues the id; repeated calls for a known id change
// nothing.
func (h *Handler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	var req ProvisionUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ExternalID == "" {
		h.Error(w, http.StatusBadRequest, "external_id is required")
		return
	}

	name := sanitizeName(req.Name)
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	user, err := h.db.CreateUser(r.Context(), req.ExternalID, name, req.Email, req.Avatar, time.Now())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to provision user")
		return
	}

	metrics.UsersProvisioned.Inc()
	h.JSON(w, http.StatusOK, user)
}

// SetPresence handles session start/end signals. Presence is
// best-effort: an abrupt disconnect leaves the user online until the
// next explicit signal.
func (h *Handler) SetPresence(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "id")
	if externalID == "" {
		h.Error(w, http.StatusBadRequest, "user id is required")
		return
	}

	var req SetPresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.db.SetUserPresence(r.Context(), externalID, req.Online, time.Now()); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update presence")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListUsers handles listing everyone except the viewer.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewer")
	if viewer == "" {
		h.Error(w, http.StatusBadRequest, "viewer query parameter is required")
		return
	}

	users, err := h.db.ListUsersExcept(r.Context(), viewer)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	if users == nil {
		users = []models.User{}
	}
	h.JSON(w, http.StatusOK, UserListResponse{Users: users})
}
