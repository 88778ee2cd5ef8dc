// Package chat holds the domain rules shared by stores and handlers:
// canonical conversation identity and the error taxonomy.
package chat

import "fmt"

// Pair is the canonical identity of a two-party conversation.
// Low and High are the participants' external ids in lexicographic
// order, so the same two users always derive the same Pair regardless
// of argument order.
type Pair struct {
	Low  string
	High string
}

// CanonicalPair derives the conversation identity for two distinct
// external user ids. The argument order does not matter.
func CanonicalPair(a, b string) (Pair, error) {
	if a == "" || b == "" {
		return Pair{}, fmt.Errorf("%w: user id must not be empty", ErrInvalidArgument)
	}
	if a == b {
		return Pair{}, fmt.Errorf("%w: a user cannot converse with themself", ErrInvalidArgument)
	}
	if a < b {
		return Pair{Low: a, High: b}, nil
	}
	return Pair{Low: b, High: a}, nil
}

// Contains reports whether id is one of the pair's participants.
func (p Pair) Contains(id string) bool {
	return id == p.Low || id == p.High
}

// Other returns the participant that is not id. Empty if id is not a
// participant.
func (p Pair) Other(id string) string {
	switch id {
	case p.Low:
		return p.High
	case p.High:
		return p.Low
	}
	return ""
}
