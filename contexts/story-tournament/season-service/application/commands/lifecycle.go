package commands

import (
	"context"
	"log/slog"
	"strings"

	application "fable/contexts/story-tournament/season-service/application"
	"fable/contexts/story-tournament/season-service/domain/entities"
	domainerrors "fable/contexts/story-tournament/season-service/domain/errors"
	"fable/contexts/story-tournament/season-service/ports"
)

type LifecycleAction string

const (
	LifecycleActionActivate LifecycleAction = "activate"
	LifecycleActionFinish   LifecycleAction = "finish"
)

type ChangeLifecycleCommand struct {
	SeasonID string
	ActorID  string
	Action   LifecycleAction
}

type ChangeLifecycleUseCase struct {
	Seasons ports.SeasonRepository
	Board   ports.SlotBoard
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

// Execute moves a season forward through its lifecycle. Activation enforces
// the one-active-season-per-genre rule; finishing requires the engine to
// report every slot locked.
func (uc ChangeLifecycleUseCase) Execute(ctx context.Context, cmd ChangeLifecycleCommand) (entities.Season, error) {
	logger := application.ResolveLogger(uc.Logger)
	season, err := uc.Seasons.GetSeason(ctx, strings.TrimSpace(cmd.SeasonID))
	if err != nil {
		return entities.Season{}, err
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return entities.Season{}, domainerrors.ErrInvalidSeasonInput
	}

	now := uc.Clock.Now().UTC()
	from := season.Status
	to := from
	eventType := ""
	switch cmd.Action {
	case LifecycleActionActivate:
		if !entities.CanTransition(season.Status, entities.SeasonStatusActive) {
			return entities.Season{}, domainerrors.ErrInvalidTransition
		}
		if occupant, found, err := uc.Seasons.FindActiveByGenre(ctx, season.Genre); err != nil {
			return entities.Season{}, err
		} else if found && occupant.ID != season.ID {
			return entities.Season{}, domainerrors.ErrGenreOccupied
		}
		to = entities.SeasonStatusActive
		season.ActivatedAt = &now
		eventType = "tournament.season.activated"
	case LifecycleActionFinish:
		if !entities.CanTransition(season.Status, entities.SeasonStatusFinished) {
			return entities.Season{}, domainerrors.ErrInvalidTransition
		}
		if uc.Board != nil {
			open, err := uc.Board.OpenSlotCount(ctx, season.ID)
			if err != nil {
				return entities.Season{}, err
			}
			if open > 0 {
				return entities.Season{}, domainerrors.ErrSeasonIncomplete
			}
		}
		to = entities.SeasonStatusFinished
		season.FinishedAt = &now
		eventType = "tournament.season.finished"
	default:
		return entities.Season{}, domainerrors.ErrInvalidTransition
	}

	season.Status = to
	season.UpdatedAt = now
	if err := uc.Seasons.UpdateSeason(ctx, season); err != nil {
		return entities.Season{}, err
	}
	if uc.Outbox != nil {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Season{}, err
		}
		envelope, err := newSeasonEnvelope(
			eventID,
			eventType,
			season.ID,
			now,
			map[string]any{
				"season_id": season.ID,
				"genre":     season.Genre,
				"status":    string(season.Status),
			},
		)
		if err != nil {
			return entities.Season{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.Season{}, err
		}
	}

	logger.Info("season lifecycle changed",
		"event", "season_lifecycle_changed",
		"module", "story-tournament/season-service",
		"layer", "application",
		"season_id", season.ID,
		"actor_id", strings.TrimSpace(cmd.ActorID),
		"from_status", string(from),
		"to_status", string(to),
	)
	return season, nil
}
