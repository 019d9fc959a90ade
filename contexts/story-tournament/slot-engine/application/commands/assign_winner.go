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

// AssignWinnerCommand closes a voting round by naming its winning clip.
type AssignWinnerCommand struct {
	SeasonID     string
	SlotPosition int
	ClipID       string
	ActorID      string
}

// AssignWinnerResult carries the locked slot, the winner, and the successor
// transitions (advance, and voting start when the successor was pre-seeded).
type AssignWinnerResult struct {
	Slot        entities.Slot
	Winner      entities.Clip
	Evaluations []entities.Evaluation
	FinalSlot   bool
}

// AssignWinner locks a voting slot on the given clip. The running timer is
// preserved as the round's record, the winner clip locks, and the next slot
// advances to waiting_for_clips. A successor that already holds eligible
// clips starts voting immediately with a fresh timer. This is the one
// transition allowed to leave a slot with a single surviving clip; it never
// runs against a slot that is not mid-vote.
func (uc TournamentUseCase) AssignWinner(ctx context.Context, cmd AssignWinnerCommand) (AssignWinnerResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("winner assignment started",
		"event", "engine_winner_assign_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", strings.TrimSpace(cmd.SeasonID),
		"slot_position", cmd.SlotPosition,
		"clip_id", strings.TrimSpace(cmd.ClipID),
	)
	if strings.TrimSpace(cmd.SeasonID) == "" ||
		strings.TrimSpace(cmd.ClipID) == "" ||
		strings.TrimSpace(cmd.ActorID) == "" ||
		cmd.SlotPosition <= 0 {
		return AssignWinnerResult{}, domainerrors.ErrInvalidClipInput
	}

	now := uc.now()
	var lockedSlot entities.Slot
	var winner entities.Clip
	finalSlot := false
	evaluations, err := uc.applyChangeSet(ctx, func(ctx context.Context) (ports.ChangeSet, error) {
		slot, err := uc.Repo.GetSlot(ctx, cmd.SeasonID, cmd.SlotPosition)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if slot.Status != entities.SlotStatusVoting {
			return ports.ChangeSet{}, domainerrors.ErrSlotNotVoting
		}
		clip, err := uc.Repo.GetClip(ctx, cmd.ClipID)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if !entities.CanAssignWinner(slot, clip) {
			return ports.ChangeSet{}, domainerrors.ErrClipNotEligible
		}

		ref, err := uc.seasonRef(ctx, slot.SeasonID)
		if err != nil {
			return ports.ChangeSet{}, err
		}

		clip.Status = entities.ClipStatusLocked
		clip.UpdatedAt = now
		winner = clip
		lockedSlot = entities.LockSlot(slot, clip.ID)
		lockedSlot.UpdatedAt = now

		change := ports.ChangeSet{
			SeasonID:  slot.SeasonID,
			SaveClips: []entities.Clip{clip},
			SaveSlots: []entities.Slot{lockedSlot},
			Now:       now,
			Window:    uc.resolveWindow(ref),
		}

		next, err := uc.Repo.GetSlot(ctx, slot.SeasonID, slot.Position+1)
		if err != nil {
			if errors.Is(err, domainerrors.ErrSlotNotFound) {
				finalSlot = true
				return change, nil
			}
			return ports.ChangeSet{}, err
		}
		finalSlot = false
		if next.Status == entities.SlotStatusUpcoming {
			advanced := next
			advanced.Status = entities.SlotStatusWaitingForClips
			entities.ClearTimer(&advanced)
			advanced.UpdatedAt = now
			change.SaveSlots = append(change.SaveSlots, advanced)
		}
		change.Reconcile = []int{next.Position}
		return change, nil
	})
	if err != nil {
		return AssignWinnerResult{}, err
	}

	if err := uc.appendEngineEvent(ctx, "tournament.slot.locked", lockedSlot.SeasonID, now, map[string]any{
		"season_id":      lockedSlot.SeasonID,
		"slot_position":  lockedSlot.Position,
		"winner_clip_id": winner.ID,
		"actor_id":       strings.TrimSpace(cmd.ActorID),
		"final_slot":     finalSlot,
	}); err != nil {
		return AssignWinnerResult{}, err
	}
	if !finalSlot {
		if err := uc.appendEngineEvent(ctx, "tournament.slot.advanced", lockedSlot.SeasonID, now, map[string]any{
			"season_id":     lockedSlot.SeasonID,
			"slot_position": lockedSlot.Position + 1,
		}); err != nil {
			return AssignWinnerResult{}, err
		}
	}
	if err := uc.appendTransitionEvents(ctx, lockedSlot.SeasonID, evaluations, now); err != nil {
		return AssignWinnerResult{}, err
	}

	logger.Info("winner assigned and slot locked",
		"event", "engine_winner_assigned",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", lockedSlot.SeasonID,
		"slot_position", lockedSlot.Position,
		"winner_clip_id", winner.ID,
		"final_slot", finalSlot,
	)
	return AssignWinnerResult{
		Slot:        lockedSlot,
		Winner:      winner,
		Evaluations: evaluations,
		FinalSlot:   finalSlot,
	}, nil
}
