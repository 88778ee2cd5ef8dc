package chat

import "errors"

// ErrInvalidArgument marks requests that are rejected synchronously
// and never persisted: empty message text, self-conversation attempts,
// malformed ids, non-participant senders.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotFound marks lookups for records that do not exist. Mutations
// against a missing conversation do not return this error; they are
// no-ops so a stale client retry stays harmless.
var ErrNotFound = errors.New("not found")
