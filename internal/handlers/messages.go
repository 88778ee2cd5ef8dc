package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/parley-chat/parley/internal/metrics"
	"github.com/parley-chat/parley/internal/models"
)

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

// MessageListResponse represents the message list response.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

// SendMessage handles appending a message to a conversation. Empty or
// whitespace-only text is rejected before anything is persisted. A
// send against a deleted/unknown conversation is acknowledged but
// ignored, so stale client retries stay harmless.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.SenderID == "" {
		h.Error(w, http.StatusBadRequest, "sender_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.Error(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	if len(req.Text) > maxMessageBytes {
		h.Error(w, http.StatusUnprocessableEntity, "text too long (max 4096 bytes)")
		return
	}

	msg, err := h.db.RecordMessage(r.Context(), conversationID, req.SenderID, req.Text, time.Now())
	if err != nil {
		if isInvalidArgument(err) {
			h.Error(w, http.StatusBadRequest, "sender must be a participant and text must not be empty")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to record message")
		return
	}
	if msg == nil {
		// Conversation no longer exists; idempotent ignore
		w.WriteHeader(http.StatusNoContent)
		return
	}

	metrics.MessagesSent.Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// ListMessages handles fetching a conversation's full message log,
// ascending by creation order. Every client-facing list uses this
// ordering.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	messages, err := h.db.ListMessages(r.Context(), conversationID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}
	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}
