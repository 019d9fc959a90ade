package entities

import "time"

type SlotStatus string

const (
	SlotStatusUpcoming        SlotStatus = "upcoming"
	SlotStatusWaitingForClips SlotStatus = "waiting_for_clips"
	SlotStatusVoting          SlotStatus = "voting"
	SlotStatusLocked          SlotStatus = "locked"
)

// DefaultVotingWindow bounds a voting round when the season carries no
// explicit window of its own.
const DefaultVotingWindow = 24 * time.Hour

// Slot is one storyboard position of a season. A season has exactly one
// actionable slot at a time: every earlier position is locked, every later
// position is upcoming.
type Slot struct {
	SeasonID       string
	Position       int
	Status         SlotStatus
	TimerStartedAt *time.Time
	TimerEndsAt    *time.Time
	WinnerClipID   *string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func IsSupportedSlotStatus(status SlotStatus) bool {
	switch status {
	case SlotStatusUpcoming, SlotStatusWaitingForClips, SlotStatusVoting, SlotStatusLocked:
		return true
	default:
		return false
	}
}

// Actionable reports whether the slot is the one accepting clips or votes.
func (s Slot) Actionable() bool {
	return s.Status == SlotStatusWaitingForClips || s.Status == SlotStatusVoting
}

// TimerRunning reports whether both timer fields are set.
func (s Slot) TimerRunning() bool {
	return s.TimerStartedAt != nil && s.TimerEndsAt != nil
}

// TimerWellFormed reports whether the timer pair describes a valid window:
// both ends present and ends_at strictly after started_at. Expiry is not a
// malformation; an elapsed window is still well formed.
func (s Slot) TimerWellFormed() bool {
	return s.TimerRunning() && s.TimerEndsAt.After(*s.TimerStartedAt)
}

// TimerExpired reports whether a well-formed window has elapsed at now.
func (s Slot) TimerExpired(now time.Time) bool {
	return s.TimerWellFormed() && !now.Before(*s.TimerEndsAt)
}

// StartTimer stamps a fresh voting window on the slot. A non-positive window
// falls back to DefaultVotingWindow. Re-entering voting never resumes an old
// window; callers always stamp a fresh one.
func StartTimer(slot *Slot, now time.Time, window time.Duration) {
	if window <= 0 {
		window = DefaultVotingWindow
	}
	startedAt := now.UTC()
	endsAt := startedAt.Add(window)
	slot.TimerStartedAt = &startedAt
	slot.TimerEndsAt = &endsAt
}

// ClearTimer nulls both timer fields.
func ClearTimer(slot *Slot) {
	slot.TimerStartedAt = nil
	slot.TimerEndsAt = nil
}
