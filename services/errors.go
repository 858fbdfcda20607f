package services

import "errors"

var (
	// Caller errors — surfaced as 4xx, never retried.
	ErrInvalidActionType = errors.New("invalid action type")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrDuplicateAction   = errors.New("duplicate action occurrence")

	// ErrVersionConflict is returned by the store when a compare-and-swap
	// write loses a race. The ledger retries; callers never see it.
	ErrVersionConflict = errors.New("progression version conflict")

	// ErrConcurrentModification is surfaced after the bounded retry budget
	// is exhausted. Retryable by the caller.
	ErrConcurrentModification = errors.New("concurrent modification: retries exhausted")

	ErrNotFound = errors.New("progression record not found")
)
