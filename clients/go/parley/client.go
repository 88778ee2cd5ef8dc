// Package parley provides a client for the Parley direct-messaging
// API, plus the view-side state machines a chat UI needs: the
// scroll/unread reconciler and the debounced typing composer.
package parley

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a Parley API client acting as one user.
type Client struct {
	BaseURL    string
	UserID     string // external id issued by the auth provider
	HTTPClient *http.Client
}

// NewClient creates a new Parley client.
func NewClient(baseURL, userID string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		UserID:     userID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// User is a chat user as returned by the API.
type User struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	IsOnline   bool   `json:"is_online"`
	LastSeen   int64  `json:"last_seen"`
}

// Conversation is a two-party conversation as returned by the API.
type Conversation struct {
	ID            string         `json:"id"`
	Participants  [2]string      `json:"participants"`
	LastMessage   string         `json:"last_message"`
	LastMessageAt int64          `json:"last_message_at"`
	Typing        string         `json:"typing,omitempty"`
	Unread        map[string]int `json:"unread"`
}

// Message is one message in a conversation's log.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	CreatedAt      int64  `json:"created_at"`
}

// Other returns the participant that is not the client's user.
func (c *Client) Other(conv Conversation) string {
	if conv.Participants[0] == c.UserID {
		return conv.Participants[1]
	}
	return conv.Participants[0]
}

// TypingOther returns the id in the typing slot unless it is the
// client's own user (a composer never shows its own indicator).
func (c *Client) TypingOther(conv Conversation) string {
	if conv.Typing == c.UserID {
		return ""
	}
	return conv.Typing
}

// doRequest performs an HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("parley error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// Provision registers the client's user with the service. Idempotent;
// a known external id is left unchanged.
func (c *Client) Provision(ctx context.Context, name, email, avatar string) (*User, error) {
	body, _ := json.Marshal(map[string]string{
		"external_id": c.UserID,
		"name":        name,
		"email":       email,
		"avatar":      avatar,
	})
	respBody, err := c.doRequest(ctx, "POST", "/users", body)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetOnline signals session start (true) or end (false).
func (c *Client) SetOnline(ctx context.Context, online bool) error {
	body, _ := json.Marshal(map[string]bool{"online": online})
	_, err := c.doRequest(ctx, "PUT", "/users/"+url.PathEscape(c.UserID)+"/presence", body)
	return err
}

// Users lists everyone except the client's user.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	respBody, err := c.doRequest(ctx, "GET", "/users?viewer="+url.QueryEscape(c.UserID), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Users []User `json:"users"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// OpenConversation returns the conversation id for the client's user
// and another user, creating the conversation on first contact.
func (c *Client) OpenConversation(ctx context.Context, otherID string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"user_a": c.UserID,
		"user_b": otherID,
	})
	respBody, err := c.doRequest(ctx, "POST", "/conversations", body)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Conversations lists the client's conversations, most recently
// modified first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	respBody, err := c.doRequest(ctx, "GET", "/conversations?user="+url.QueryEscape(c.UserID), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Messages fetches a conversation's full log in creation order.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	respBody, err := c.doRequest(ctx, "GET", "/conversations/"+url.PathEscape(conversationID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Send appends a message from the client's user.
func (c *Client) Send(ctx context.Context, conversationID, text string) (*Message, error) {
	body, _ := json.Marshal(map[string]string{
		"sender_id": c.UserID,
		"text":      text,
	})
	respBody, err := c.doRequest(ctx, "POST", "/conversations/"+url.PathEscape(conversationID)+"/messages", body)
	if err != nil {
		return nil, err
	}
	if len(respBody) == 0 {
		// Conversation disappeared server-side; ignored by contract
		return nil, nil
	}
	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetTyping writes the conversation's typing slot. An empty userID
// clears it. Satisfies TypingWriter for the Composer.
func (c *Client) SetTyping(ctx context.Context, conversationID, userID string) error {
	body, _ := json.Marshal(map[string]string{"user": userID})
	_, err := c.doRequest(ctx, "PUT", "/conversations/"+url.PathEscape(conversationID)+"/typing", body)
	return err
}

// MarkRead zeroes the client's unread counter for a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	body, _ := json.Marshal(map[string]string{"user": c.UserID})
	_, err := c.doRequest(ctx, "POST", "/conversations/"+url.PathEscape(conversationID)+"/read", body)
	return err
}

// Health fetches the server health report.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	respBody, err := c.doRequest(ctx, "GET", "/health", nil)
	if err != nil {
		return nil, err
	}
	var resp map[string]any
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
