package commands

import (
	"context"
	"strings"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// ApproveClipCommand promotes a pending clip to active, optionally moving it
// to another slot position.
type ApproveClipCommand struct {
	ClipID       string
	ActorID      string
	SlotPosition int
}

// RejectClipCommand marks a clip rejected. The clip keeps its slot position
// for audit; it simply stops counting toward eligibility.
type RejectClipCommand struct {
	ClipID  string
	ActorID string
	Reason  string
}

// ReviewResult carries the clip after moderation plus any slot transitions
// the eligibility change caused.
type ReviewResult struct {
	Clip        entities.Clip
	Evaluations []entities.Evaluation
}

// ApproveClip moves a clip from pending to active. Approval never changes
// the eligible count on its own (pending already counts), but a position
// move re-evaluates both the old and the new slot.
func (uc TournamentUseCase) ApproveClip(ctx context.Context, cmd ApproveClipCommand) (ReviewResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("clip approve processing started",
		"event", "engine_clip_approve_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", strings.TrimSpace(cmd.ClipID),
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	if strings.TrimSpace(cmd.ClipID) == "" || strings.TrimSpace(cmd.ActorID) == "" || cmd.SlotPosition < 0 {
		return ReviewResult{}, domainerrors.ErrInvalidClipInput
	}

	now := uc.now()
	var reviewed entities.Clip
	var seasonID string
	evaluations, err := uc.applyChangeSet(ctx, func(ctx context.Context) (ports.ChangeSet, error) {
		clip, err := uc.Repo.GetClip(ctx, cmd.ClipID)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if clip.Status == entities.ClipStatusLocked {
			return ports.ChangeSet{}, domainerrors.ErrClipLocked
		}
		if !entities.CanTransitionClip(clip.Status, entities.ClipStatusActive) {
			return ports.ChangeSet{}, domainerrors.ErrInvalidTransition
		}

		ref, err := uc.seasonRef(ctx, clip.SeasonID)
		if err != nil {
			return ports.ChangeSet{}, err
		}

		target := derefPosition(clip.SlotPosition)
		if cmd.SlotPosition > 0 {
			target = cmd.SlotPosition
		}
		if target == 0 {
			return ports.ChangeSet{}, domainerrors.ErrInvalidClipInput
		}
		slot, err := uc.Repo.GetSlot(ctx, clip.SeasonID, target)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if slot.Status == entities.SlotStatusLocked {
			return ports.ChangeSet{}, domainerrors.ErrSlotLocked
		}

		reconcile := []int{slot.Position}
		if previous := derefPosition(clip.SlotPosition); previous != 0 && previous != slot.Position {
			reconcile = append(reconcile, previous)
		}

		clip.Status = entities.ClipStatusActive
		clip.SlotPosition = &slot.Position
		clip.UpdatedAt = now
		reviewed = clip
		seasonID = clip.SeasonID
		return ports.ChangeSet{
			SeasonID:  clip.SeasonID,
			SaveClips: []entities.Clip{clip},
			Reconcile: reconcile,
			Now:       now,
			Window:    uc.resolveWindow(ref),
		}, nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	if err := uc.appendEngineEvent(ctx, "tournament.clip.approved", seasonID, now, map[string]any{
		"clip_id":       reviewed.ID,
		"season_id":     reviewed.SeasonID,
		"slot_position": derefPosition(reviewed.SlotPosition),
		"actor_id":      strings.TrimSpace(cmd.ActorID),
	}); err != nil {
		return ReviewResult{}, err
	}
	if err := uc.appendTransitionEvents(ctx, seasonID, evaluations, now); err != nil {
		return ReviewResult{}, err
	}

	logger.Info("clip approved",
		"event", "engine_clip_approved",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", reviewed.ID,
		"slot_position", derefPosition(reviewed.SlotPosition),
	)
	return ReviewResult{Clip: reviewed, Evaluations: evaluations}, nil
}

// RejectClip marks a clip rejected and re-evaluates its slot. The slot only
// resets when the combined pending+active count reaches zero; rejecting the
// last active clip while pending clips remain leaves the timer running.
func (uc TournamentUseCase) RejectClip(ctx context.Context, cmd RejectClipCommand) (ReviewResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("clip reject processing started",
		"event", "engine_clip_reject_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", strings.TrimSpace(cmd.ClipID),
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	if strings.TrimSpace(cmd.ClipID) == "" || strings.TrimSpace(cmd.ActorID) == "" {
		return ReviewResult{}, domainerrors.ErrInvalidClipInput
	}

	now := uc.now()
	var reviewed entities.Clip
	var seasonID string
	evaluations, err := uc.applyChangeSet(ctx, func(ctx context.Context) (ports.ChangeSet, error) {
		clip, err := uc.Repo.GetClip(ctx, cmd.ClipID)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if clip.Status == entities.ClipStatusLocked {
			return ports.ChangeSet{}, domainerrors.ErrClipLocked
		}
		if !entities.CanTransitionClip(clip.Status, entities.ClipStatusRejected) {
			return ports.ChangeSet{}, domainerrors.ErrInvalidTransition
		}

		ref, err := uc.seasonRef(ctx, clip.SeasonID)
		if err != nil {
			return ports.ChangeSet{}, err
		}

		var reconcile []int
		if position := derefPosition(clip.SlotPosition); position != 0 {
			reconcile = []int{position}
		}

		clip.Status = entities.ClipStatusRejected
		clip.UpdatedAt = now
		reviewed = clip
		seasonID = clip.SeasonID
		return ports.ChangeSet{
			SeasonID:  clip.SeasonID,
			SaveClips: []entities.Clip{clip},
			Reconcile: reconcile,
			Now:       now,
			Window:    uc.resolveWindow(ref),
		}, nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	if err := uc.appendEngineEvent(ctx, "tournament.clip.rejected", seasonID, now, map[string]any{
		"clip_id":       reviewed.ID,
		"season_id":     reviewed.SeasonID,
		"slot_position": derefPosition(reviewed.SlotPosition),
		"actor_id":      strings.TrimSpace(cmd.ActorID),
		"reason":        strings.TrimSpace(cmd.Reason),
	}); err != nil {
		return ReviewResult{}, err
	}
	if err := uc.appendTransitionEvents(ctx, seasonID, evaluations, now); err != nil {
		return ReviewResult{}, err
	}

	logger.Info("clip rejected",
		"event", "engine_clip_rejected",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", reviewed.ID,
		"slot_position", derefPosition(reviewed.SlotPosition),
	)
	return ReviewResult{Clip: reviewed, Evaluations: evaluations}, nil
}
