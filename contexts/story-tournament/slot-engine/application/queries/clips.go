package queries

import (
	"context"
	"strings"

	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// ListClipsQuery filters a season's clips.
type ListClipsQuery struct {
	SeasonID     string
	Status       string
	SlotPosition int
	Limit        int
}

// ClipQueryUseCase serves clip reads.
type ClipQueryUseCase struct {
	Repo ports.TournamentRepository
}

func (uc ClipQueryUseCase) GetClip(ctx context.Context, clipID string) (entities.Clip, error) {
	clipID = strings.TrimSpace(clipID)
	if clipID == "" {
		return entities.Clip{}, domainerrors.ErrClipNotFound
	}
	return uc.Repo.GetClip(ctx, clipID)
}

func (uc ClipQueryUseCase) ListClips(ctx context.Context, query ListClipsQuery) ([]entities.Clip, error) {
	seasonID := strings.TrimSpace(query.SeasonID)
	if seasonID == "" {
		return nil, domainerrors.ErrSeasonNotFound
	}

	filter := ports.ClipFilter{SeasonID: seasonID, Limit: query.Limit}
	if status := entities.ClipStatus(strings.TrimSpace(query.Status)); status != "" {
		if !entities.IsSupportedClipStatus(status) {
			return nil, domainerrors.ErrInvalidClipInput
		}
		filter.Statuses = []entities.ClipStatus{status}
	}
	if query.SlotPosition > 0 {
		position := query.SlotPosition
		filter.Position = &position
	}
	return uc.Repo.ListClips(ctx, filter)
}
