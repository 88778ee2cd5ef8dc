package parley

import (
	"context"
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke the typing
// signal clears.
const DefaultTypingIdle = 2 * time.Second

// TypingWriter writes a conversation's typing slot. *Client satisfies
// it.
type TypingWriter interface {
	SetTyping(ctx context.Context, conversationID, userID string) error
}

// Composer tracks one user composing in one conversation at a time
// and drives the typing signal: set on the first keystroke since
// idle, cleared after the idle timeout or immediately on send.
// Redundant set writes are coalesced. Switching conversations or
// stopping cancels the pending clear so it can never land in the
// wrong conversation.
type Composer struct {
	writer TypingWriter
	userID string
	idle   time.Duration

	mu             sync.Mutex
	conversationID string
	composing      bool
	timer          *time.Timer
	gen            uint64 // invalidates a timer that fires after cancellation
}

// NewComposer creates a composer for one user. idle <= 0 uses
// DefaultTypingIdle.
func NewComposer(writer TypingWriter, userID string, idle time.Duration) *Composer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &Composer{writer: writer, userID: userID, idle: idle}
}

// Switch makes conversationID the active conversation. Any pending
// idle clear for the previous conversation is cancelled without
// emitting.
func (c *Composer) Switch(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.conversationID = conversationID
}

// Stop tears the composer down, cancelling any pending clear.
func (c *Composer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.conversationID = ""
}

// Keystroke registers input activity. The first keystroke since idle
// emits the typing set; every keystroke restarts the idle timer. The
// timer is armed only after the set write returns, so the idle clear
// can never reach the wire before the set it is clearing.
func (c *Composer) Keystroke(ctx context.Context) error {
	c.mu.Lock()
	if c.conversationID == "" {
		c.mu.Unlock()
		return nil
	}

	convID := c.conversationID
	wasComposing := c.composing
	c.composing = true

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	var err error
	if !wasComposing {
		err = c.writer.SetTyping(ctx, convID, c.userID)
	}

	c.mu.Lock()
	// A switch, stop, send, or newer keystroke during the write owns
	// the timer now
	if gen == c.gen && c.composing {
		c.timer = time.AfterFunc(c.idle, func() {
			c.idleExpired(gen, convID)
		})
	}
	c.mu.Unlock()
	return err
}

// MessageSent clears the typing signal immediately after a send.
func (c *Composer) MessageSent(ctx context.Context) error {
	c.mu.Lock()
	if c.conversationID == "" {
		c.mu.Unlock()
		return nil
	}
	convID := c.conversationID
	c.cancelLocked()
	c.mu.Unlock()

	return c.writer.SetTyping(ctx, convID, "")
}

// idleExpired runs when the idle timer fires. A stale generation means
// the timer was cancelled after the callback was already scheduled.
func (c *Composer) idleExpired(gen uint64, conversationID string) {
	c.mu.Lock()
	if gen != c.gen || !c.composing {
		c.mu.Unlock()
		return
	}
	c.composing = false
	c.timer = nil
	c.mu.Unlock()

	_ = c.writer.SetTyping(context.Background(), conversationID, "")
}

// cancelLocked stops the pending timer and leaves the composing state.
// Callers hold c.mu.
func (c *Composer) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.composing = false
}
