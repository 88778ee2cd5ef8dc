package parley

import "testing"

// geometry helper: a 600px-tall viewport over 2000px of content,
// positioned at the given distance from the bottom.
func viewportAt(distance int) Viewport {
	return Viewport{
		ScrollHeight: 2000,
		ClientHeight: 600,
		ScrollTop:    2000 - 600 - distance,
	}
}

func TestViewportDistance(t *testing.T) {
	vp := viewportAt(40)
	if d := vp.DistanceFromBottom(); d != 40 {
		t.Fatalf("expected distance 40, got %d", d)
	}
	if !vp.NearBottom() {
		t.Fatal("40 should be near bottom")
	}
	if viewportAt(80).NearBottom() {
		t.Fatal("80 is at the threshold, not under it")
	}
}

func TestFirstViewJumpsAndClears(t *testing.T) {
	v := NewView()

	u := v.Reconcile("conv-1", 12, 3, viewportAt(500))
	if u.Scroll != ScrollJump {
		t.Fatalf("expected jump on first view, got %v", u.Scroll)
	}
	if !u.ClearUnread {
		t.Fatal("expected unread cleared on first view")
	}
	if u.ShowNewMessages {
		t.Fatal("affordance must not show on first view")
	}
}

func TestFirstViewWithoutUnreadDoesNotClear(t *testing.T) {
	v := NewView()

	u := v.Reconcile("conv-1", 12, 0, viewportAt(0))
	if u.ClearUnread {
		t.Fatal("no clear should be issued when the counter is already zero")
	}
}

func TestNewMessageNearBottomSmoothScrolls(t *testing.T) {
	v := NewView()
	v.Reconcile("conv-1", 10, 0, viewportAt(0))

	u := v.Reconcile("conv-1", 11, 1, viewportAt(40))
	if u.Scroll != ScrollSmooth {
		t.Fatalf("expected smooth scroll, got %v", u.Scroll)
	}
	if !u.ClearUnread {
		t.Fatal("expected unread cleared near bottom")
	}
	if u.ShowNewMessages {
		t.Fatal("affordance must not show near bottom")
	}
}

func TestNewMessageScrolledUpShowsAffordance(t *testing.T) {
	v := NewView()
	v.Reconcile("conv-1", 10, 0, viewportAt(0))

	u := v.Reconcile("conv-1", 11, 1, viewportAt(500))
	if u.Scroll != ScrollNone {
		t.Fatalf("viewport must not move, got %v", u.Scroll)
	}
	if u.ClearUnread {
		t.Fatal("unread must not be cleared while scrolled up")
	}
	if !u.ShowNewMessages {
		t.Fatal("expected new-messages affordance")
	}
}

func TestRefreshWithoutNewMessagesScrolledUp(t *testing.T) {
	v := NewView()
	v.Reconcile("conv-1", 10, 0, viewportAt(0))

	// Typing churn refreshes the list without changing the count
	u := v.Reconcile("conv-1", 10, 0, viewportAt(500))
	if u.Scroll != ScrollNone || u.ShowNewMessages || u.ClearUnread {
		t.Fatalf("no-op refresh should change nothing, got %+v", u)
	}
}

func TestManualScrollBackClearsAffordanceAndUnread(t *testing.T) {
	v := NewView()
	v.Reconcile("conv-1", 10, 0, viewportAt(0))
	v.Reconcile("conv-1", 11, 1, viewportAt(500))
	if !v.ShowingNewMessages() {
		t.Fatal("setup: affordance should be showing")
	}

	u := v.ScrolledTo(viewportAt(20), 1)
	if !u.ClearUnread {
		t.Fatal("expected unread cleared on return to bottom")
	}
	if u.ShowNewMessages || v.ShowingNewMessages() {
		t.Fatal("affordance should be dismissed")
	}
}

func TestScrollWhileStillUpKeepsAffordance(t *testing.T) {
	v := NewView()
	v.Reconcile("conv-1", 10, 0, viewportAt(0))
	v.Reconcile("conv-1", 11, 1, viewportAt(500))

	u := v.ScrolledTo(viewportAt(300), 1)
	if u.ClearUnread {
		t.Fatal("unread must not clear while still scrolled up")
	}
	if !u.ShowNewMessages {
		t.Fatal("affordance should remain")
	}
}

func TestConversationSwitchResetsState(t *testing.T) {
	v := NewView()
	v.Reconcile("conv-1", 10, 0, viewportAt(0))
	v.Reconcile("conv-1", 11, 1, viewportAt(500))
	if !v.ShowingNewMessages() {
		t.Fatal("setup: affordance should be showing")
	}

	// Switching conversations must behave as a fresh first view,
	// even from a scrolled-up viewport
	u := v.Reconcile("conv-2", 5, 2, viewportAt(500))
	if u.Scroll != ScrollJump {
		t.Fatalf("expected jump after switch, got %v", u.Scroll)
	}
	if !u.ClearUnread {
		t.Fatal("expected unread cleared after switch")
	}
	if u.ShowNewMessages || v.ShowingNewMessages() {
		t.Fatal("affordance must reset on switch")
	}

	// The old conversation's count snapshot must not leak: 6 > 5 is
	// the only comparison that matters now
	u = v.Reconcile("conv-2", 6, 1, viewportAt(500))
	if !u.ShowNewMessages {
		t.Fatal("expected affordance from conv-2's own snapshot")
	}
}

func TestJumpToBottomDismissesAffordance(t *testing.T) {
	v := NewView()
	v.Reconcile("conv-1", 10, 0, viewportAt(0))
	v.Reconcile("conv-1", 11, 0, viewportAt(500))

	u := v.JumpToBottom()
	if u.Scroll != ScrollSmooth {
		t.Fatalf("expected smooth scroll, got %v", u.Scroll)
	}
	if v.ShowingNewMessages() {
		t.Fatal("affordance should be dismissed")
	}
}
