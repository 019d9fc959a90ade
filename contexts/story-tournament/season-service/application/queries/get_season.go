package queries

import (
	"context"
	"log/slog"
	"strings"

	"fable/contexts/story-tournament/season-service/domain/entities"
	domainerrors "fable/contexts/story-tournament/season-service/domain/errors"
	"fable/contexts/story-tournament/season-service/ports"
)

type GetSeasonUseCase struct {
	Seasons ports.SeasonRepository
	Logger  *slog.Logger
}

func (uc GetSeasonUseCase) Execute(ctx context.Context, seasonID string) (entities.Season, error) {
	season, err := uc.Seasons.GetSeason(ctx, strings.TrimSpace(seasonID))
	if err != nil {
		return entities.Season{}, err
	}
	return season, nil
}

// ResolveActiveSeasonUseCase answers "which season is live for this genre",
// the lookup clip uploads and public storyboards key off.
type ResolveActiveSeasonUseCase struct {
	Seasons ports.SeasonRepository
	Logger  *slog.Logger
}

func (uc ResolveActiveSeasonUseCase) Execute(ctx context.Context, genre string) (entities.Season, error) {
	season, found, err := uc.Seasons.FindActiveByGenre(ctx, strings.ToLower(strings.TrimSpace(genre)))
	if err != nil {
		return entities.Season{}, err
	}
	if !found {
		return entities.Season{}, domainerrors.ErrSeasonNotFound
	}
	return season, nil
}
