package queries

import (
	"context"
	"log/slog"
	"strings"

	application "fable/contexts/story-tournament/season-service/application"
	"fable/contexts/story-tournament/season-service/domain/entities"
	"fable/contexts/story-tournament/season-service/ports"
)

type ListSeasonsQuery struct {
	Status string
	Genre  string
	Limit  int
}

type ListSeasonsUseCase struct {
	Seasons ports.SeasonRepository
	Logger  *slog.Logger
}

func (uc ListSeasonsUseCase) Execute(ctx context.Context, query ListSeasonsQuery) ([]entities.Season, error) {
	logger := application.ResolveLogger(uc.Logger)
	filter := ports.SeasonFilter{
		Genre: strings.ToLower(strings.TrimSpace(query.Genre)),
		Limit: query.Limit,
	}
	if strings.TrimSpace(query.Status) != "" {
		filter.Status = entities.SeasonStatus(strings.TrimSpace(query.Status))
	}
	items, err := uc.Seasons.ListSeasons(ctx, filter)
	if err != nil {
		return nil, err
	}
	logger.Debug("seasons listed",
		"event", "seasons_listed",
		"module", "story-tournament/season-service",
		"layer", "application",
		"count", len(items),
	)
	return items, nil
}
