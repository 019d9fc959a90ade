package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

const (
	BulkActionApprove = "approve"
	BulkActionReject  = "reject"
	BulkActionDelete  = "delete"

	maxBulkClips = 100
)

// BulkModerateCommand applies one moderation action to a batch of clips in a
// single season.
type BulkModerateCommand struct {
	IdempotencyKey string
	SeasonID       string
	ActorID        string
	Action         string
	ClipIDs        []string
	Reason         string
}

// BulkItemResult is the per-clip outcome of a bulk run.
type BulkItemResult struct {
	ClipID string `json:"clip_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BulkModerateResult summarizes a bulk run. Slot statuses are recomputed
// once per affected slot after the whole batch, not once per item.
type BulkModerateResult struct {
	Processed      int              `json:"processed"`
	SucceededCount int              `json:"succeeded_count"`
	FailedCount    int              `json:"failed_count"`
	Items          []BulkItemResult `json:"items"`
	Replayed       bool             `json:"-"`
}

// BulkModerate runs approve, reject, or delete across a clip batch. Item
// failures never abort the batch; each clip reports its own outcome. After
// the last item, every touched slot is re-evaluated exactly once, so a batch
// that rejects thirty clips re-derives each affected slot's status a single
// time. A mid-batch crash leaves at most a short-lived inconsistency that
// the reconciliation sweep repairs on its next pass.
func (uc TournamentUseCase) BulkModerate(ctx context.Context, cmd BulkModerateCommand) (BulkModerateResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	action := strings.TrimSpace(cmd.Action)
	logger.Info("bulk moderation started",
		"event", "engine_bulk_started",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", strings.TrimSpace(cmd.SeasonID),
		"action", action,
		"clip_count", len(cmd.ClipIDs),
	)

	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return BulkModerateResult{}, domainerrors.ErrIdempotencyKeyRequired
	}
	if strings.TrimSpace(cmd.SeasonID) == "" || strings.TrimSpace(cmd.ActorID) == "" {
		return BulkModerateResult{}, domainerrors.ErrInvalidClipInput
	}
	if action != BulkActionApprove && action != BulkActionReject && action != BulkActionDelete {
		return BulkModerateResult{}, domainerrors.ErrUnsupportedBulkAction
	}
	if len(cmd.ClipIDs) == 0 || len(cmd.ClipIDs) > maxBulkClips {
		return BulkModerateResult{}, domainerrors.ErrInvalidClipInput
	}

	now := uc.now()
	requestHash := hashBulkModerateCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return BulkModerateResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return BulkModerateResult{}, domainerrors.ErrIdempotencyConflict
		}
		var replayed BulkModerateResult
		if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
			return BulkModerateResult{}, err
		}
		replayed.Replayed = true
		logger.Info("bulk moderation replayed",
			"event", "engine_bulk_replayed",
			"module", "story-tournament/slot-engine",
			"layer", "application",
			"season_id", strings.TrimSpace(cmd.SeasonID),
		)
		return replayed, nil
	}

	ref, err := uc.seasonRef(ctx, cmd.SeasonID)
	if err != nil {
		return BulkModerateResult{}, err
	}
	window := uc.resolveWindow(ref)

	result := BulkModerateResult{}
	touched := map[int]struct{}{}
	type succeededItem struct {
		clip   entities.Clip
		purged int
	}
	var succeeded []succeededItem

	for _, rawID := range cmd.ClipIDs {
		clipID := strings.TrimSpace(rawID)
		result.Processed++
		if clipID == "" {
			result.FailedCount++
			result.Items = append(result.Items, BulkItemResult{ClipID: clipID, Status: "failed", Error: domainerrors.ErrInvalidClipInput.Error()})
			continue
		}

		// Per-item records make a crashed batch safe to retry under the same
		// key: items the previous attempt already applied are not re-applied
		// and not re-failed by their own transition guards.
		itemKey := cmd.IdempotencyKey + ":" + clipID + ":" + action
		if _, found, err := uc.Idempotency.Get(ctx, itemKey, now); err != nil {
			result.FailedCount++
			result.Items = append(result.Items, BulkItemResult{ClipID: clipID, Status: "failed", Error: err.Error()})
			continue
		} else if found {
			result.SucceededCount++
			result.Items = append(result.Items, BulkItemResult{ClipID: clipID, Status: "succeeded"})
			if clip, err := uc.Repo.GetClip(ctx, clipID); err == nil {
				if position := derefPosition(clip.SlotPosition); position != 0 {
					touched[position] = struct{}{}
				}
			}
			continue
		}

		clip, purged, positions, err := uc.applyBulkItem(ctx, ref.ID, action, clipID, now)
		if err != nil {
			result.FailedCount++
			result.Items = append(result.Items, BulkItemResult{ClipID: clipID, Status: "failed", Error: err.Error()})
			continue
		}
		if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
			Key:         itemKey,
			RequestHash: requestHash,
			ClipID:      clipID,
			ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
		}); err != nil {
			result.FailedCount++
			result.Items = append(result.Items, BulkItemResult{ClipID: clipID, Status: "failed", Error: err.Error()})
			continue
		}
		result.SucceededCount++
		result.Items = append(result.Items, BulkItemResult{ClipID: clipID, Status: "succeeded"})
		succeeded = append(succeeded, succeededItem{clip: clip, purged: purged})
		for _, position := range positions {
			touched[position] = struct{}{}
		}
	}

	var evaluations []entities.Evaluation
	if len(touched) > 0 {
		reconcile := make([]int, 0, len(touched))
		for position := range touched {
			reconcile = append(reconcile, position)
		}
		sort.Ints(reconcile)
		evaluations, err = uc.Repo.ApplyChangeSet(ctx, ports.ChangeSet{
			SeasonID:  ref.ID,
			Reconcile: reconcile,
			Now:       now,
			Window:    window,
		})
		if err != nil {
			return BulkModerateResult{}, err
		}
	}

	for _, item := range succeeded {
		eventType := "tournament.clip." + bulkEventSuffix(action)
		data := map[string]any{
			"clip_id":       item.clip.ID,
			"season_id":     ref.ID,
			"slot_position": derefPosition(item.clip.SlotPosition),
			"actor_id":      strings.TrimSpace(cmd.ActorID),
			"bulk":          true,
		}
		if action == BulkActionDelete {
			data["purged_votes"] = item.purged
		}
		if err := uc.appendEngineEvent(ctx, eventType, ref.ID, now, data); err != nil {
			return BulkModerateResult{}, err
		}
	}
	if err := uc.appendTransitionEvents(ctx, ref.ID, evaluations, now); err != nil {
		return BulkModerateResult{}, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return BulkModerateResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:             cmd.IdempotencyKey,
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return BulkModerateResult{}, err
	}

	logger.Info("bulk moderation completed",
		"event", "engine_bulk_completed",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", ref.ID,
		"action", action,
		"processed", result.Processed,
		"succeeded", result.SucceededCount,
		"failed", result.FailedCount,
		"slots_recomputed", len(touched),
	)
	return result, nil
}

// applyBulkItem performs one item's clip write without slot reconciliation;
// the caller reconciles all touched slots once at the end of the batch.
func (uc TournamentUseCase) applyBulkItem(
	ctx context.Context,
	seasonID string,
	action string,
	clipID string,
	now time.Time,
) (entities.Clip, int, []int, error) {
	clip, err := uc.Repo.GetClip(ctx, clipID)
	if err != nil {
		return entities.Clip{}, 0, nil, err
	}
	if clip.SeasonID != seasonID {
		return entities.Clip{}, 0, nil, domainerrors.ErrClipNotFound
	}
	if clip.Status == entities.ClipStatusLocked {
		return entities.Clip{}, 0, nil, domainerrors.ErrClipLocked
	}

	var positions []int
	if position := derefPosition(clip.SlotPosition); position != 0 {
		positions = []int{position}
	}

	change := ports.ChangeSet{SeasonID: seasonID, Now: now}
	purged := 0
	switch action {
	case BulkActionApprove:
		if !entities.CanTransitionClip(clip.Status, entities.ClipStatusActive) {
			return entities.Clip{}, 0, nil, domainerrors.ErrInvalidTransition
		}
		clip.Status = entities.ClipStatusActive
		clip.UpdatedAt = now
		change.SaveClips = []entities.Clip{clip}
	case BulkActionReject:
		if !entities.CanTransitionClip(clip.Status, entities.ClipStatusRejected) {
			return entities.Clip{}, 0, nil, domainerrors.ErrInvalidTransition
		}
		clip.Status = entities.ClipStatusRejected
		clip.UpdatedAt = now
		change.SaveClips = []entities.Clip{clip}
	case BulkActionDelete:
		change.DeleteClips = []string{clip.ID}
	default:
		return entities.Clip{}, 0, nil, domainerrors.ErrUnsupportedBulkAction
	}

	if _, err := uc.Repo.ApplyChangeSet(ctx, change); err != nil {
		return entities.Clip{}, 0, nil, err
	}

	if action == BulkActionDelete && uc.Votes != nil {
		count, err := uc.Votes.PurgeClipVotes(ctx, clip.ID)
		if err == nil {
			purged = count
		}
	}
	return clip, purged, positions, nil
}

func bulkEventSuffix(action string) string {
	switch action {
	case BulkActionApprove:
		return "approved"
	case BulkActionReject:
		return "rejected"
	default:
		return "deleted"
	}
}

func hashBulkModerateCommand(cmd BulkModerateCommand) string {
	ids := make([]string, 0, len(cmd.ClipIDs))
	for _, id := range cmd.ClipIDs {
		ids = append(ids, strings.TrimSpace(id))
	}
	payload := map[string]any{
		"season_id": strings.TrimSpace(cmd.SeasonID),
		"actor_id":  strings.TrimSpace(cmd.ActorID),
		"action":    strings.TrimSpace(cmd.Action),
		"clip_ids":  ids,
		"reason":    strings.TrimSpace(cmd.Reason),
		"op":        "bulk_moderate",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
