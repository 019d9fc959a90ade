package commands

import (
	"context"
	"strings"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// UnlockSlotCommand reopens a locked slot for correction.
type UnlockSlotCommand struct {
	SeasonID     string
	SlotPosition int
	ActorID      string
}

// UnlockSlotResult carries the reopened slot state after re-evaluation.
type UnlockSlotResult struct {
	Evaluations []entities.Evaluation
	Winner      entities.Clip
}

// UnlockSlot reverts a winner assignment. It is only legal while the
// successor slot has not progressed past waiting_for_clips, so the season
// keeps exactly one actionable slot; the successor drops back to upcoming.
// The former winner returns to active and the slot is re-evaluated from its
// live eligible count: a fresh voting window starts when clips remain, never
// a resumed one.
func (uc TournamentUseCase) UnlockSlot(ctx context.Context, cmd UnlockSlotCommand) (UnlockSlotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("slot unlock started",
		"event", "engine_slot_unlock_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", strings.TrimSpace(cmd.SeasonID),
		"slot_position", cmd.SlotPosition,
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	if strings.TrimSpace(cmd.SeasonID) == "" || strings.TrimSpace(cmd.ActorID) == "" || cmd.SlotPosition <= 0 {
		return UnlockSlotResult{}, domainerrors.ErrInvalidClipInput
	}

	now := uc.now()
	var winner entities.Clip
	var seasonID string
	evaluations, err := uc.applyChangeSet(ctx, func(ctx context.Context) (ports.ChangeSet, error) {
		slot, err := uc.Repo.GetSlot(ctx, cmd.SeasonID, cmd.SlotPosition)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if slot.Status != entities.SlotStatusLocked {
			return ports.ChangeSet{}, domainerrors.ErrInvalidTransition
		}

		ref, err := uc.seasonRef(ctx, slot.SeasonID)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		seasonID = slot.SeasonID

		successor, err := uc.successorForUnlock(ctx, slot)
		if err != nil {
			return ports.ChangeSet{}, err
		}

		change := ports.ChangeSet{
			SeasonID:  slot.SeasonID,
			SaveSlots: []entities.Slot{entities.ReopenSlot(slot)},
			Reconcile: []int{slot.Position},
			Now:       now,
			Window:    uc.resolveWindow(ref),
		}
		if successor != nil {
			change.SaveSlots = append(change.SaveSlots, *successor)
		}

		winner = entities.Clip{}
		if slot.WinnerClipID != nil {
			clip, err := uc.Repo.GetClip(ctx, *slot.WinnerClipID)
			if err != nil {
				return ports.ChangeSet{}, err
			}
			if clip.Status == entities.ClipStatusLocked {
				clip.Status = entities.ClipStatusActive
				clip.UpdatedAt = now
			}
			winner = clip
			change.SaveClips = []entities.Clip{clip}
		}
		return change, nil
	})
	if err != nil {
		return UnlockSlotResult{}, err
	}

	if err := uc.appendEngineEvent(ctx, "tournament.slot.unlocked", seasonID, now, map[string]any{
		"season_id":     seasonID,
		"slot_position": cmd.SlotPosition,
		"actor_id":      strings.TrimSpace(cmd.ActorID),
		"former_winner": winner.ID,
	}); err != nil {
		return UnlockSlotResult{}, err
	}
	if err := uc.appendTransitionEvents(ctx, seasonID, evaluations, now); err != nil {
		return UnlockSlotResult{}, err
	}

	logger.Info("slot unlocked",
		"event", "engine_slot_unlocked",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", seasonID,
		"slot_position", cmd.SlotPosition,
		"former_winner", winner.ID,
	)
	return UnlockSlotResult{Evaluations: evaluations, Winner: winner}, nil
}
