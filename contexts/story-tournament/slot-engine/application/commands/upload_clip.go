package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// UploadClipCommand is the write-model input for a new clip submission.
// SlotPosition zero targets the season's current actionable slot.
type UploadClipCommand struct {
	SeasonID        string
	SubmittedBy     string
	IdempotencyKey  string
	Title           string
	AuthorName      string
	PlaybackURL     string
	ThumbnailURL    string
	DurationSeconds int
	SlotPosition    int
}

// UploadClipResult carries the stored clip plus the slot transition the
// upload caused, if any.
type UploadClipResult struct {
	Clip        entities.Clip
	Evaluations []entities.Evaluation
	Replayed    bool
}

// UploadClip registers a pending clip against a slot. Pending clips count
// toward eligibility immediately, so the first upload into a waiting slot
// opens voting with a fresh timer.
func (uc TournamentUseCase) UploadClip(ctx context.Context, cmd UploadClipCommand) (UploadClipResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("clip upload processing started",
		"event", "engine_clip_upload_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", strings.TrimSpace(cmd.SeasonID),
		"submitted_by", strings.TrimSpace(cmd.SubmittedBy),
	)

	if strings.TrimSpace(cmd.SeasonID) == "" ||
		strings.TrimSpace(cmd.SubmittedBy) == "" ||
		strings.TrimSpace(cmd.Title) == "" ||
		strings.TrimSpace(cmd.PlaybackURL) == "" ||
		cmd.DurationSeconds <= 0 ||
		cmd.SlotPosition < 0 {
		logger.Warn("clip upload validation failed",
			"event", "engine_clip_upload_validation_failed",
			"module", "story-tournament/slot-engine",
			"layer", "application",
			"season_id", strings.TrimSpace(cmd.SeasonID),
		)
		return UploadClipResult{}, domainerrors.ErrInvalidClipInput
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return UploadClipResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashUploadClipCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return UploadClipResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return UploadClipResult{}, domainerrors.ErrIdempotencyConflict
		}
		clip, err := uc.Repo.GetClip(ctx, record.ClipID)
		if err != nil {
			return UploadClipResult{}, err
		}
		logger.Info("clip upload replayed",
			"event", "engine_clip_upload_replayed",
			"module", "story-tournament/slot-engine",
			"layer", "application",
			"clip_id", clip.ID,
			"season_id", clip.SeasonID,
		)
		return UploadClipResult{Clip: clip, Replayed: true}, nil
	}

	ref, err := uc.seasonRef(ctx, cmd.SeasonID)
	if err != nil {
		return UploadClipResult{}, err
	}
	if !ref.AcceptsClips() {
		return UploadClipResult{}, domainerrors.ErrSeasonNotActive
	}
	window := uc.resolveWindow(ref)

	clipID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return UploadClipResult{}, err
	}

	var stored entities.Clip
	evaluations, err := uc.applyChangeSet(ctx, func(ctx context.Context) (ports.ChangeSet, error) {
		position, err := uc.resolveUploadPosition(ctx, ref.ID, cmd.SlotPosition)
		if err != nil {
			return ports.ChangeSet{}, err
		}
		clip := entities.Clip{
			ID:              clipID,
			SeasonID:        ref.ID,
			SlotPosition:    &position,
			Status:          entities.ClipStatusPending,
			Title:           cmd.Title,
			AuthorName:      cmd.AuthorName,
			PlaybackURL:     cmd.PlaybackURL,
			ThumbnailURL:    cmd.ThumbnailURL,
			DurationSeconds: cmd.DurationSeconds,
			SubmittedBy:     cmd.SubmittedBy,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		entities.NormalizeVoterFacingFields(&clip)
		stored = clip
		return ports.ChangeSet{
			SeasonID:  ref.ID,
			SaveClips: []entities.Clip{clip},
			Reconcile: []int{position},
			Now:       now,
			Window:    window,
		}, nil
	})
	if err != nil {
		return UploadClipResult{}, err
	}

	if err := uc.appendEngineEvent(ctx, "tournament.clip.uploaded", ref.ID, now, map[string]any{
		"clip_id":       stored.ID,
		"season_id":     stored.SeasonID,
		"slot_position": derefPosition(stored.SlotPosition),
		"submitted_by":  stored.SubmittedBy,
		"status":        string(stored.Status),
	}); err != nil {
		return UploadClipResult{}, err
	}
	if err := uc.appendTransitionEvents(ctx, ref.ID, evaluations, now); err != nil {
		return UploadClipResult{}, err
	}

	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         cmd.IdempotencyKey,
		RequestHash: requestHash,
		ClipID:      stored.ID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return UploadClipResult{}, err
	}

	logger.Info("clip upload accepted",
		"event", "engine_clip_upload_accepted",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"clip_id", stored.ID,
		"season_id", stored.SeasonID,
		"slot_position", derefPosition(stored.SlotPosition),
	)
	return UploadClipResult{Clip: stored, Evaluations: evaluations}, nil
}

// resolveUploadPosition validates an explicit target slot or falls back to
// the season's single actionable slot. Locked slots never take new clips.
func (uc TournamentUseCase) resolveUploadPosition(ctx context.Context, seasonID string, requested int) (int, error) {
	if requested > 0 {
		slot, err := uc.Repo.GetSlot(ctx, seasonID, requested)
		if err != nil {
			return 0, err
		}
		if slot.Status == entities.SlotStatusLocked {
			return 0, domainerrors.ErrSlotLocked
		}
		return slot.Position, nil
	}

	slots, err := uc.Repo.ListSlots(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	current, found := currentActionableSlot(slots)
	if !found {
		return 0, domainerrors.ErrNoActionableSlot
	}
	return current.Position, nil
}

func derefPosition(position *int) int {
	if position == nil {
		return 0
	}
	return *position
}

func hashUploadClipCommand(cmd UploadClipCommand) string {
	payload := map[string]string{
		"season_id":        strings.TrimSpace(cmd.SeasonID),
		"submitted_by":     strings.TrimSpace(cmd.SubmittedBy),
		"title":            strings.TrimSpace(cmd.Title),
		"author_name":      strings.TrimSpace(cmd.AuthorName),
		"playback_url":     strings.TrimSpace(cmd.PlaybackURL),
		"thumbnail_url":    strings.TrimSpace(cmd.ThumbnailURL),
		"duration_seconds": strconv.Itoa(cmd.DurationSeconds),
		"slot_position":    strconv.Itoa(cmd.SlotPosition),
		"op":               "upload_clip",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
