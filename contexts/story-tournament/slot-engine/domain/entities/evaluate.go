package entities

import "time"

type TransitionReason string

const (
	ReasonEligibilityGained  TransitionReason = "eligibility_gained"
	ReasonEligibilityDrained TransitionReason = "eligibility_drained"
	ReasonTimerRepaired      TransitionReason = "timer_repaired"
	ReasonTimerCleared       TransitionReason = "timer_cleared"
	ReasonWinnerAssigned     TransitionReason = "winner_assigned"
	ReasonSlotUnlocked       TransitionReason = "slot_unlocked"
	ReasonSlotAdvanced       TransitionReason = "slot_advanced"
)

// Evaluation is the outcome of re-deriving a slot's status from its eligible
// count. Changed is false when the slot was already consistent.
type Evaluation struct {
	Slot     Slot
	Changed  bool
	From     SlotStatus
	To       SlotStatus
	Reason   TransitionReason
	Eligible int
}

// EvaluateSlot derives the correct status, timer pair, and transition for a
// slot given a freshly counted eligible total. It is the single source of
// truth for the lifecycle rules:
//
//   - waiting_for_clips gains eligible clips     -> voting, fresh timer
//   - voting drains to zero eligible clips       -> waiting_for_clips, timer cleared
//   - voting with clips but a broken timer pair  -> voting, fresh timer
//   - upcoming/waiting carrying stray timers     -> timers cleared
//
// Locked slots are never touched here; winner assignment and unlock have
// their own guarded paths. The function never leaves a slot in voting with
// zero eligible clips, regardless of the state it was handed.
func EvaluateSlot(slot Slot, eligible int, now time.Time, window time.Duration) Evaluation {
	eval := Evaluation{Slot: slot, From: slot.Status, To: slot.Status, Eligible: eligible}

	switch slot.Status {
	case SlotStatusUpcoming:
		if slot.TimerStartedAt != nil || slot.TimerEndsAt != nil {
			ClearTimer(&eval.Slot)
			eval.Changed = true
			eval.Reason = ReasonTimerCleared
		}
	case SlotStatusWaitingForClips:
		if eligible > 0 {
			eval.Slot.Status = SlotStatusVoting
			StartTimer(&eval.Slot, now, window)
			eval.Changed = true
			eval.To = SlotStatusVoting
			eval.Reason = ReasonEligibilityGained
			return eval
		}
		if slot.TimerStartedAt != nil || slot.TimerEndsAt != nil {
			ClearTimer(&eval.Slot)
			eval.Changed = true
			eval.Reason = ReasonTimerCleared
		}
	case SlotStatusVoting:
		if eligible == 0 {
			eval.Slot.Status = SlotStatusWaitingForClips
			ClearTimer(&eval.Slot)
			eval.Slot.WinnerClipID = nil
			eval.Changed = true
			eval.To = SlotStatusWaitingForClips
			eval.Reason = ReasonEligibilityDrained
			return eval
		}
		if !slot.TimerWellFormed() {
			StartTimer(&eval.Slot, now, window)
			eval.Changed = true
			eval.Reason = ReasonTimerRepaired
		}
	case SlotStatusLocked:
	}

	return eval
}

// CanAssignWinner reports whether the slot accepts a winner for the given
// clip right now. The clip must sit in the slot and still be eligible; the
// slot must be mid-vote.
func CanAssignWinner(slot Slot, clip Clip) bool {
	if slot.Status != SlotStatusVoting {
		return false
	}
	if clip.SlotPosition == nil || *clip.SlotPosition != slot.Position {
		return false
	}
	if clip.SeasonID != slot.SeasonID {
		return false
	}
	return clip.Status.Eligible()
}

// LockSlot marks the slot won by clipID. The running timer is preserved as
// the historical record of the round.
func LockSlot(slot Slot, clipID string) Slot {
	locked := slot
	locked.Status = SlotStatusLocked
	winner := clipID
	locked.WinnerClipID = &winner
	return locked
}

// ReopenSlot strips the winner and timers ahead of a post-unlock
// re-evaluation. The caller runs EvaluateSlot on the result so the slot
// lands in voting (fresh window) or waiting_for_clips per its live count.
func ReopenSlot(slot Slot) Slot {
	reopened := slot
	reopened.Status = SlotStatusWaitingForClips
	reopened.WinnerClipID = nil
	ClearTimer(&reopened)
	return reopened
}
