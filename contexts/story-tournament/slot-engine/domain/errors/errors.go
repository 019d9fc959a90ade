package errors

import "errors"

var (
	ErrClipNotFound           = errors.New("clip not found")
	ErrSlotNotFound           = errors.New("slot not found")
	ErrSeasonNotFound         = errors.New("season not found")
	ErrSeasonNotActive        = errors.New("season is not active")
	ErrInvalidClipInput       = errors.New("invalid clip input")
	ErrInvalidTransition      = errors.New("invalid lifecycle transition")
	ErrClipLocked             = errors.New("clip is locked")
	ErrSlotLocked             = errors.New("slot is locked")
	ErrSlotNotVoting          = errors.New("slot is not in voting")
	ErrClipNotEligible        = errors.New("clip is not eligible")
	ErrNoActionableSlot       = errors.New("season has no actionable slot")
	ErrStaleRead              = errors.New("stale read, slot changed underneath")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
	ErrUnsupportedBulkAction  = errors.New("unsupported bulk action")
)
