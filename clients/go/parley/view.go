package parley

// NearBottomThreshold is the distance-from-bottom (in pixels) under
// which the viewer counts as reading the newest messages.
const NearBottomThreshold = 80

// Viewport is the scroll geometry of the message container.
type Viewport struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// DistanceFromBottom returns how far the viewer is from the newest
// message.
func (v Viewport) DistanceFromBottom() int {
	return v.ScrollHeight - v.ScrollTop - v.ClientHeight
}

// NearBottom reports whether the viewer is within the near-bottom
// threshold.
func (v Viewport) NearBottom() bool {
	return v.DistanceFromBottom() < NearBottomThreshold
}

// ScrollAction tells the UI how to move the viewport.
type ScrollAction int

const (
	// ScrollNone leaves the viewport where it is.
	ScrollNone ScrollAction = iota
	// ScrollJump snaps to the bottom without animation.
	ScrollJump
	// ScrollSmooth animates to the bottom.
	ScrollSmooth
)

// ViewUpdate is the decision for one message-list refresh or scroll
// event: how to move, whether to issue a mark-read, and whether the
// "new messages" affordance is visible afterwards.
type ViewUpdate struct {
	Scroll          ScrollAction
	ClearUnread     bool
	ShowNewMessages bool
}

// View reconciles an incoming live message stream against the
// viewer's scroll position so the reader never sees content jump
// underneath them or miss messages without an indicator. All state is
// per active conversation and resets on switch.
type View struct {
	conversationID string
	initialized    bool
	lastCount      int
	affordance     bool
}

// NewView creates a view with no active conversation.
func NewView() *View {
	return &View{}
}

// Reconcile decides the response to a refresh of the message list.
// messageCount is the refreshed list's length; unread is the viewer's
// counter on the conversation; vp is the viewport before any movement.
func (v *View) Reconcile(conversationID string, messageCount, unread int, vp Viewport) ViewUpdate {
	if !v.initialized || v.conversationID != conversationID {
		// First view of this conversation: snapshot and jump
		v.conversationID = conversationID
		v.initialized = true
		v.lastCount = messageCount
		v.affordance = false
		return ViewUpdate{Scroll: ScrollJump, ClearUnread: unread > 0}
	}

	hasNew := messageCount > v.lastCount
	v.lastCount = messageCount

	if vp.NearBottom() {
		v.affordance = false
		return ViewUpdate{Scroll: ScrollSmooth, ClearUnread: unread > 0}
	}

	if hasNew {
		v.affordance = true
	}
	return ViewUpdate{ShowNewMessages: v.affordance}
}

// ScrolledTo handles a manual scroll event. Returning to near-bottom
// dismisses the affordance and marks the conversation read.
func (v *View) ScrolledTo(vp Viewport, unread int) ViewUpdate {
	if vp.NearBottom() {
		v.affordance = false
		return ViewUpdate{ClearUnread: unread > 0}
	}
	return ViewUpdate{ShowNewMessages: v.affordance}
}

// JumpToBottom handles the affordance being clicked.
func (v *View) JumpToBottom() ViewUpdate {
	v.affordance = false
	return ViewUpdate{Scroll: ScrollSmooth}
}

// ShowingNewMessages reports whether the affordance is visible.
func (v *View) ShowingNewMessages() bool {
	return v.affordance
}
