package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/metrics"
	"github.com/parley-chat/parley/internal/models"
)

// OpenConversationRequest represents the create-or-get request body.
type OpenConversationRequest struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

// OpenConversationResponse represents the create-or-get response.
type OpenConversationResponse struct {
	ID string `json:"id"`
}

// ConversationListResponse represents the conversation list response.
type ConversationListResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

// TypingRequest represents the typing slot update body. An empty user
// clears the slot.
type TypingRequest struct {
	User string `json:"user"`
}

// MarkReadRequest represents the mark-read request body.
type MarkReadRequest struct {
	User string `json:"user"`
}

// OpenConversation handles create-or-get for an unordered user pair.
// Concurrent calls for the same pair all return the single winning
// record's id.
func (h *Handler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	var req OpenConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pair, err := chat.CanonicalPair(req.UserA, req.UserB)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.db.CreateOrGetConversation(r.Context(), pair, time.Now())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	metrics.ConversationsOpened.Inc()
	h.JSON(w, http.StatusOK, OpenConversationResponse{ID: id.String()})
}

// ListConversations handles listing a user's conversations, most
// recently modified first, with the live typing slot merged in.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		h.Error(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	conversations, err := h.db.ListConversationsForUser(r.Context(), user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	for i := range conversations {
		typing, err := h.typing.GetTyping(r.Context(), conversations[i].ID)
		if err != nil {
			// Typing is ephemeral; a read failure should not break the list
			continue
		}
		conversations[i].Typing = typing
	}

	if conversations == nil {
		conversations = []models.Conversation{}
	}
	h.JSON(w, http.StatusOK, ConversationListResponse{Conversations: conversations})
}

// SetTyping handles typing slot updates. Last writer wins. Unknown
// conversations are a no-op so a stale clear from a switched-away
// client stays harmless.
func (h *Handler) SetTyping(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := h.db.GetConversation(r.Context(), conversationID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if conv == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if req.User != "" && req.User != conv.Participants[0] && req.User != conv.Participants[1] {
		h.Error(w, http.StatusBadRequest, "user is not a participant")
		return
	}

	if err := h.typing.SetTyping(r.Context(), conversationID, req.User); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update typing")
		return
	}

	kind := "set"
	if req.User == "" {
		kind = "clear"
	}
	metrics.TypingUpdates.WithLabelValues(kind).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// MarkRead zeroes the caller's unread counter. Unknown conversations
// and non-participants are no-ops.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.User == "" {
		h.Error(w, http.StatusBadRequest, "user is required")
		return
	}

	if err := h.db.ClearUnread(r.Context(), conversationID, req.User); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to clear unread")
		return
	}

	metrics.UnreadCleared.Inc()
	w.WriteHeader(http.StatusNoContent)
}

// conversationID parses the {id} URL parameter, writing a 400 on
// malformed input.
func (h *Handler) conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return uuid.Nil, false
	}
	return id, true
}

// isInvalidArgument reports whether err is a synchronous rejection.
func isInvalidArgument(err error) bool {
	return errors.Is(err, chat.ErrInvalidArgument)
}
