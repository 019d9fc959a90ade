package commands

import (
	"context"
	"strings"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// EditClipCommand patches clip metadata. Nil fields are left untouched.
// Status is restricted to "rejected": moderation outcomes other than a
// takedown go through the dedicated approve/reject/winner paths.
type EditClipCommand struct {
	ClipID          string
	ActorID         string
	Title           *string
	AuthorName      *string
	PlaybackURL     *string
	ThumbnailURL    *string
	DurationSeconds *int
	Status          *entities.ClipStatus
}

// EditClip applies a metadata patch. Locked clips are immutable. A patch
// that sets status rejected behaves exactly like RejectClip, slot
// re-evaluation included.
func (uc TournamentUseCase) EditClip(ctx context.Context, cmd EditClipCommand) (ReviewResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("clip edit processing started",
		"event", "engine_clip_edit_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", strings.TrimSpace(cmd.ClipID),
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	if strings.TrimSpace(cmd.ClipID) == "" || strings.TrimSpace(cmd.ActorID) == "" {
		return ReviewResult{}, domainerrors.ErrInvalidClipInput
	}
	if cmd.Status != nil && *cmd.Status != entities.ClipStatusRejected {
		return ReviewResult{}, domainerrors.ErrInvalidTransition
	}

	now := uc.now()
	var edited entities.Clip
	var seasonID string
	statusChanged := false
	evaluations, err := uc.applyChangeSet(ctx, func(ctx context.Context) (ports.ChangeSet, error) {
		clip, err := uc.Repo.GetClip(ctx, cmd.ClipID)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		if clip.Status == entities.ClipStatusLocked {
			return ports.ChangeSet{}, domainerrors.ErrClipLocked
		}

		ref, err := uc.seasonRef(ctx, clip.SeasonID)
		if err != nil {
			return ports.ChangeSet{}, err
		}

		if cmd.Title != nil {
			clip.Title = *cmd.Title
		}
		if cmd.AuthorName != nil {
			clip.AuthorName = *cmd.AuthorName
		}
		if cmd.PlaybackURL != nil {
			clip.PlaybackURL = *cmd.PlaybackURL
		}
		if cmd.ThumbnailURL != nil {
			clip.ThumbnailURL = *cmd.ThumbnailURL
		}
		if cmd.DurationSeconds != nil {
			if *cmd.DurationSeconds <= 0 {
				return ports.ChangeSet{}, domainerrors.ErrInvalidClipInput
			}
			clip.DurationSeconds = *cmd.DurationSeconds
		}

		var reconcile []int
		statusChanged = false
		if cmd.Status != nil && clip.Status != *cmd.Status {
			if !entities.CanTransitionClip(clip.Status, *cmd.Status) {
				return ports.ChangeSet{}, domainerrors.ErrInvalidTransition
			}
			clip.Status = *cmd.Status
			statusChanged = true
			if position := derefPosition(clip.SlotPosition); position != 0 {
				reconcile = []int{position}
			}
		}

		entities.NormalizeVoterFacingFields(&clip)
		if strings.TrimSpace(clip.Title) == "" || strings.TrimSpace(clip.PlaybackURL) == "" {
			return ports.ChangeSet{}, domainerrors.ErrInvalidClipInput
		}
		clip.UpdatedAt = now
		edited = clip
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

	if err := uc.appendEngineEvent(ctx, "tournament.clip.updated", seasonID, now, map[string]any{
		"clip_id":        edited.ID,
		"season_id":      edited.SeasonID,
		"slot_position":  derefPosition(edited.SlotPosition),
		"actor_id":       strings.TrimSpace(cmd.ActorID),
		"status":         string(edited.Status),
		"status_changed": statusChanged,
	}); err != nil {
		return ReviewResult{}, err
	}
	if err := uc.appendTransitionEvents(ctx, seasonID, evaluations, now); err != nil {
		return ReviewResult{}, err
	}

	logger.Info("clip edited",
		"event", "engine_clip_edited",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", edited.ID,
		"status_changed", statusChanged,
	)
	return ReviewResult{Clip: edited, Evaluations: evaluations}, nil
}
