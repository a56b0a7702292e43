package data

import "errors"

// Sentinel errors shared by every store and surfaced through both the
// request path and the realtime path.
var (
	// ErrNotFound covers unknown conversations, messages and participants.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is authenticated but is not one of the
	// conversation's two participants.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput covers malformed ids, self-conversations and missing
	// required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyContent is returned when message content trims to nothing.
	ErrEmptyContent = errors.New("message content cannot be empty")

	// ErrConflict is surfaced when a conversation-creation race could not be
	// resolved within the internal retry budget.
	ErrConflict = errors.New("conflicting conversation creation")
)
