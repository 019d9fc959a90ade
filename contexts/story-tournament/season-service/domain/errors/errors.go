package errors

import "errors"

var (
	ErrSeasonNotFound         = errors.New("season not found")
	ErrInvalidSeasonInput     = errors.New("invalid season input")
	ErrInvalidTransition      = errors.New("invalid lifecycle transition")
	ErrGenreOccupied          = errors.New("genre already has an active season")
	ErrSeasonIncomplete       = errors.New("season still has open slots")
	ErrStaleRead              = errors.New("stale read, season changed underneath")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
)
