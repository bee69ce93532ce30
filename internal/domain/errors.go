package domain

import "errors"

// Sentinel errors shared across storage, practice and the HTTP layer.
// Callers match with errors.Is; wrap with fmt.Errorf("...: %w", err)
// to add context.
var (
	// ErrNotFound covers unknown kids, decks, cards, sessions and
	// pending tokens. Token lookups deliberately do not distinguish
	// "never existed" from "expired".
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks bad input rejected before any mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict marks a state clash, such as a card already reserved
	// by another pending writing sheet. Never retried automatically.
	ErrConflict = errors.New("conflict")
)
