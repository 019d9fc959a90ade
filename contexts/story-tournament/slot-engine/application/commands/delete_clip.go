package commands

import (
	"context"
	"errors"
	"strings"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// DeleteClipCommand removes a clip row outright.
type DeleteClipCommand struct {
	ClipID  string
	ActorID string
}

// DeleteClipResult reports the deletion, its slot transitions, and how many
// ledger votes were purged with the clip.
type DeleteClipResult struct {
	ClipID      string
	Evaluations []entities.Evaluation
	PurgedVotes int
}

// DeleteClip hard-deletes a clip and re-evaluates its slot. Deleting the
// winner of a locked slot first applies the unlock rules: the successor must
// not have progressed, the slot reopens, and its remaining clips decide the
// new status. The clip's ledger votes are purged after the store commit.
func (uc TournamentUseCase) DeleteClip(ctx context.Context, cmd DeleteClipCommand) (DeleteClipResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("clip delete processing started",
		"event", "engine_clip_delete_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", strings.TrimSpace(cmd.ClipID),
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	if strings.TrimSpace(cmd.ClipID) == "" || strings.TrimSpace(cmd.ActorID) == "" {
		return DeleteClipResult{}, domainerrors.ErrInvalidClipInput
	}

	now := uc.now()
	var deleted entities.Clip
	var seasonID string
	evaluations, err := uc.applyChangeSet(ctx, func(ctx context.Context) (ports.ChangeSet, error) {
		clip, err := uc.Repo.GetClip(ctx, cmd.ClipID)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		ref, err := uc.seasonRef(ctx, clip.SeasonID)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		deleted = clip
		seasonID = clip.SeasonID

		change := ports.ChangeSet{
			SeasonID:    clip.SeasonID,
			DeleteClips: []string{clip.ID},
			Now:         now,
			Window:      uc.resolveWindow(ref),
		}
		position := derefPosition(clip.SlotPosition)
		if position != 0 {
			change.Reconcile = []int{position}
		}

		if clip.Status != entities.ClipStatusLocked {
			return change, nil
		}

		// Locked clip: only a slot winner can hold this status. Removing it
		// must reopen the slot, which is only safe while the next slot has
		// not started its own round.
		slot, err := uc.Repo.GetSlot(ctx, clip.SeasonID, position)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if slot.WinnerClipID == nil || *slot.WinnerClipID != clip.ID {
			return ports.ChangeSet{}, domainerrors.ErrClipLocked
		}
		successor, err := uc.successorForUnlock(ctx, slot)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		change.SaveSlots = []entities.Slot{entities.ReopenSlot(slot)}
		if successor != nil {
			change.SaveSlots = append(change.SaveSlots, *successor)
		}
		return change, nil
	})
	if err != nil {
		return DeleteClipResult{}, err
	}

	purged := 0
	if uc.Votes != nil {
		count, err := uc.Votes.PurgeClipVotes(ctx, deleted.ID)
		if err != nil {
			logger.Warn("clip vote purge failed after delete",
				"event", "engine_clip_vote_purge_failed",
				"module", "story-tournament/slot-engine",
				"layer", "application",
				"clip_id", deleted.ID,
				"error", err.Error(),
			)
		} else {
			purged = count
		}
	}

	if err := uc.appendEngineEvent(ctx, "tournament.clip.deleted", seasonID, now, map[string]any{
		"clip_id":       deleted.ID,
		"season_id":     deleted.SeasonID,
		"slot_position": derefPosition(deleted.SlotPosition),
		"actor_id":      strings.TrimSpace(cmd.ActorID),
		"purged_votes":  purged,
	}); err != nil {
		return DeleteClipResult{}, err
	}
	if err := uc.appendTransitionEvents(ctx, seasonID, evaluations, now); err != nil {
		return DeleteClipResult{}, err
	}

	logger.Info("clip deleted",
		"event", "engine_clip_deleted",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", deleted.ID,
		"purged_votes", purged,
	)
	return DeleteClipResult{ClipID: deleted.ID, Evaluations: evaluations, PurgedVotes: purged}, nil
}

// successorForUnlock validates that the slot after a locked one has not
// progressed, and returns it reverted to upcoming when it had advanced to
// waiting_for_clips. The final slot of a season has no successor.
func (uc TournamentUseCase) successorForUnlock(ctx context.Context, slot entities.Slot) (*entities.Slot, error) {
	next, err := uc.Repo.GetSlot(ctx, slot.SeasonID, slot.Position+1)
	if err != nil {
		if errors.Is(err, domainerrors.ErrSlotNotFound) {
			return nil, nil
		}
		return nil, err
	}
	switch next.Status {
	case entities.SlotStatusUpcoming:
		return nil, nil
	case entities.SlotStatusWaitingForClips:
		reverted := next
		reverted.Status = entities.SlotStatusUpcoming
		entities.ClearTimer(&reverted)
		return &reverted, nil
	default:
		return nil, domainerrors.ErrInvalidTransition
	}
}
