package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "fable/contexts/story-tournament/season-service/application"
	"fable/contexts/story-tournament/season-service/domain/entities"
	domainerrors "fable/contexts/story-tournament/season-service/domain/errors"
	"fable/contexts/story-tournament/season-service/ports"
)

type CreateSeasonCommand struct {
	IdempotencyKey string
	Title          string
	Description    string
	Genre          string
	SlotCount      int
	VotingWindow   time.Duration
	CreatedBy      string
}

type CreateSeasonUseCase struct {
	Seasons        ports.SeasonRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type CreateSeasonResult struct {
	Season   entities.Season
	Replayed bool
}

type createSeasonReplayPayload struct {
	SeasonID            string                `json:"season_id"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	Genre               string                `json:"genre"`
	SlotCount           int                   `json:"slot_count"`
	VotingWindowSeconds int64                 `json:"voting_window_seconds"`
	CreatedBy           string                `json:"created_by"`
	Status              entities.SeasonStatus `json:"status"`
	CreatedAt           time.Time             `json:"created_at"`
}

// Execute registers a new draft season. Creation does not open the season for
// clips: the strip is provisioned by the engine off season.created, and
// uploads stay blocked until activation.
func (uc CreateSeasonUseCase) Execute(ctx context.Context, cmd CreateSeasonCommand) (CreateSeasonResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return CreateSeasonResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.Clock.Now().UTC()
	requestHash := hashCreateSeasonCommand(cmd)
	if record, found, err := uc.Idempotency.GetRecord(ctx, cmd.IdempotencyKey, now); err != nil {
		return CreateSeasonResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return CreateSeasonResult{}, domainerrors.ErrIdempotencyConflict
		}
		var payload createSeasonReplayPayload
		if err := json.Unmarshal(record.ResponsePayload, &payload); err != nil {
			return CreateSeasonResult{}, err
		}
		return CreateSeasonResult{
			Season: entities.Season{
				ID:           payload.SeasonID,
				Title:        payload.Title,
				Description:  payload.Description,
				Genre:        payload.Genre,
				Status:       payload.Status,
				SlotCount:    payload.SlotCount,
				VotingWindow: time.Duration(payload.VotingWindowSeconds) * time.Second,
				CreatedBy:    payload.CreatedBy,
				CreatedAt:    payload.CreatedAt,
				UpdatedAt:    payload.CreatedAt,
			},
			Replayed: true,
		}, nil
	}

	seasonID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return CreateSeasonResult{}, err
	}

	season := entities.Season{
		ID:           seasonID,
		Title:        strings.TrimSpace(cmd.Title),
		Description:  strings.TrimSpace(cmd.Description),
		Genre:        strings.ToLower(strings.TrimSpace(cmd.Genre)),
		Status:       entities.SeasonStatusDraft,
		SlotCount:    cmd.SlotCount,
		VotingWindow: cmd.VotingWindow,
		CreatedBy:    strings.TrimSpace(cmd.CreatedBy),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if season.VotingWindow == 0 {
		season.VotingWindow = entities.DefaultVotingWindow
	}
	if !season.ValidateBasics() || season.CreatedBy == "" || season.VotingWindow < 0 {
		return CreateSeasonResult{}, domainerrors.ErrInvalidSeasonInput
	}

	if err := uc.Seasons.CreateSeason(ctx, season); err != nil {
		return CreateSeasonResult{}, err
	}

	payload := createSeasonReplayPayload{
		SeasonID:            season.ID,
		Title:               season.Title,
		Description:         season.Description,
		Genre:               season.Genre,
		SlotCount:           season.SlotCount,
		VotingWindowSeconds: int64(season.VotingWindow / time.Second),
		CreatedBy:           season.CreatedBy,
		Status:              season.Status,
		CreatedAt:           season.CreatedAt,
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		return CreateSeasonResult{}, err
	}
	if err := uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             cmd.IdempotencyKey,
		RequestHash:     requestHash,
		ResponsePayload: serialized,
		ExpiresAt:       now.Add(uc.IdempotencyTTL),
	}); err != nil {
		return CreateSeasonResult{}, err
	}
	if uc.Outbox != nil {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return CreateSeasonResult{}, err
		}
		envelope, err := newSeasonEnvelope(
			eventID,
			"tournament.season.created",
			season.ID,
			now,
			map[string]any{
				"season_id":             season.ID,
				"genre":                 season.Genre,
				"status":                string(season.Status),
				"slot_count":            season.SlotCount,
				"voting_window_seconds": int64(season.VotingWindow / time.Second),
			},
		)
		if err != nil {
			return CreateSeasonResult{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return CreateSeasonResult{}, err
		}
	}

	logger.Info("season created",
		"event", "season_created",
		"module", "story-tournament/season-service",
		"layer", "application",
		"season_id", season.ID,
		"genre", season.Genre,
		"slot_count", season.SlotCount,
	)
	return CreateSeasonResult{Season: season}, nil
}

func hashCreateSeasonCommand(cmd CreateSeasonCommand) string {
	payload := map[string]any{
		"title":                 strings.TrimSpace(cmd.Title),
		"description":           strings.TrimSpace(cmd.Description),
		"genre":                 strings.ToLower(strings.TrimSpace(cmd.Genre)),
		"slot_count":            cmd.SlotCount,
		"voting_window_seconds": int64(cmd.VotingWindow / time.Second),
		"created_by":            strings.TrimSpace(cmd.CreatedBy),
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
