package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"fable/contexts/story-tournament/season-service/application/commands"
	"fable/contexts/story-tournament/season-service/application/queries"
	"fable/contexts/story-tournament/season-service/domain/entities"
	httptransport "fable/contexts/story-tournament/season-service/transport/http"
)

type Handler struct {
	CreateSeason    commands.CreateSeasonUseCase
	ChangeLifecycle commands.ChangeLifecycleUseCase
	GetSeason       queries.GetSeasonUseCase
	ListSeasons     queries.ListSeasonsUseCase
	ResolveActive   queries.ResolveActiveSeasonUseCase
	Logger          *slog.Logger
}

// CreateSeasonHandler godoc
// @Summary Create a season
// @Description Creates a draft season with a fixed slot strip and idempotency support.
// @Tags season-service
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Acting user id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body httptransport.CreateSeasonRequest true "Season payload"
// @Success 201 {object} httptransport.CreateSeasonResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /seasons [post]
func (h Handler) CreateSeasonHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreateSeasonRequest,
) (httptransport.CreateSeasonResponse, error) {
	result, err := h.CreateSeason.Execute(ctx, commands.CreateSeasonCommand{
		IdempotencyKey: idempotencyKey,
		Title:          req.Title,
		Description:    req.Description,
		Genre:          req.Genre,
		SlotCount:      req.SlotCount,
		VotingWindow:   time.Duration(req.VotingWindowSeconds) * time.Second,
		CreatedBy:      userID,
	})
	if err != nil {
		return httptransport.CreateSeasonResponse{}, err
	}
	return httptransport.CreateSeasonResponse{
		Season:   mapSeason(result.Season),
		Replayed: result.Replayed,
	}, nil
}

// ActivateSeasonHandler godoc
// @Summary Activate a season
// @Description Moves a draft season to active; only one active season per genre.
// @Tags season-service
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Acting user id"
// @Param season_id path string true "Season id"
// @Success 200 {object} httptransport.GetSeasonResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /seasons/{season_id}/activate [post]
func (h Handler) ActivateSeasonHandler(ctx context.Context, userID string, seasonID string) (httptransport.GetSeasonResponse, error) {
	season, err := h.ChangeLifecycle.Execute(ctx, commands.ChangeLifecycleCommand{
		SeasonID: seasonID,
		ActorID:  userID,
		Action:   commands.LifecycleActionActivate,
	})
	if err != nil {
		return httptransport.GetSeasonResponse{}, err
	}
	return httptransport.GetSeasonResponse{Season: mapSeason(season)}, nil
}

// FinishSeasonHandler godoc
// @Summary Finish a season
// @Description Moves an active season to finished once every slot is locked.
// @Tags season-service
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Acting user id"
// @Param season_id path string true "Season id"
// @Success 200 {object} httptransport.GetSeasonResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /seasons/{season_id}/finish [post]
func (h Handler) FinishSeasonHandler(ctx context.Context, userID string, seasonID string) (httptransport.GetSeasonResponse, error) {
	season, err := h.ChangeLifecycle.Execute(ctx, commands.ChangeLifecycleCommand{
		SeasonID: seasonID,
		ActorID:  userID,
		Action:   commands.LifecycleActionFinish,
	})
	if err != nil {
		return httptransport.GetSeasonResponse{}, err
	}
	return httptransport.GetSeasonResponse{Season: mapSeason(season)}, nil
}

// GetSeasonHandler godoc
// @Summary Get season details
// @Description Returns one season by id.
// @Tags season-service
// @Accept json
// @Produce json
// @Param season_id path string true "Season id"
// @Success 200 {object} httptransport.GetSeasonResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /seasons/{season_id} [get]
func (h Handler) GetSeasonHandler(ctx context.Context, seasonID string) (httptransport.GetSeasonResponse, error) {
	season, err := h.GetSeason.Execute(ctx, seasonID)
	if err != nil {
		return httptransport.GetSeasonResponse{}, err
	}
	return httptransport.GetSeasonResponse{Season: mapSeason(season)}, nil
}

// ListSeasonsHandler godoc
// @Summary List seasons
// @Description Returns seasons filtered by status and genre.
// @Tags season-service
// @Accept json
// @Produce json
// @Param status query string false "Season status: draft,active,finished"
// @Param genre query string false "Genre filter"
// @Success 200 {object} httptransport.ListSeasonsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /seasons [get]
func (h Handler) ListSeasonsHandler(ctx context.Context, status string, genre string) (httptransport.ListSeasonsResponse, error) {
	items, err := h.ListSeasons.Execute(ctx, queries.ListSeasonsQuery{
		Status: status,
		Genre:  genre,
	})
	if err != nil {
		return httptransport.ListSeasonsResponse{}, err
	}
	result := make([]httptransport.SeasonDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapSeason(item))
	}
	return httptransport.ListSeasonsResponse{Items: result}, nil
}

// ResolveActiveSeasonHandler godoc
// @Summary Resolve the active season for a genre
// @Description Returns the single active season in the given genre.
// @Tags season-service
// @Accept json
// @Produce json
// @Param genre query string true "Genre"
// @Success 200 {object} httptransport.GetSeasonResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /seasons/active [get]
func (h Handler) ResolveActiveSeasonHandler(ctx context.Context, genre string) (httptransport.GetSeasonResponse, error) {
	season, err := h.ResolveActive.Execute(ctx, genre)
	if err != nil {
		return httptransport.GetSeasonResponse{}, err
	}
	return httptransport.GetSeasonResponse{Season: mapSeason(season)}, nil
}

func mapSeason(item entities.Season) httptransport.SeasonDTO {
	result := httptransport.SeasonDTO{
		SeasonID:            item.ID,
		Title:               item.Title,
		Description:         item.Description,
		Genre:               item.Genre,
		Status:              string(item.Status),
		SlotCount:           item.SlotCount,
		VotingWindowSeconds: int64(item.VotingWindow / time.Second),
		CreatedBy:           item.CreatedBy,
		CreatedAt:           item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           item.UpdatedAt.Format(time.RFC3339),
	}
	if item.ActivatedAt != nil {
		result.ActivatedAt = item.ActivatedAt.UTC().Format(time.RFC3339)
	}
	if item.FinishedAt != nil {
		result.FinishedAt = item.FinishedAt.UTC().Format(time.RFC3339)
	}
	return result
}
