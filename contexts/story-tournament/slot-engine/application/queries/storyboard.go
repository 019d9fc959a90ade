package queries

import (
	"context"
	"errors"
	"strings"

	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// StoryboardSlot is one storyboard row: the slot, its live eligible count,
// and the winning clip once locked.
type StoryboardSlot struct {
	Slot     entities.Slot
	Eligible int
	Winner   *entities.Clip
}

// Storyboard is the season's full slot strip in position order.
type Storyboard struct {
	SeasonID string
	Slots    []StoryboardSlot
}

// StoryboardUseCase serves the read side of the slot strip.
type StoryboardUseCase struct {
	Repo ports.TournamentRepository
}

// Storyboard assembles all slots of a season with counts and winners.
func (uc StoryboardUseCase) Storyboard(ctx context.Context, seasonID string) (Storyboard, error) {
	seasonID = strings.TrimSpace(seasonID)
	if seasonID == "" {
		return Storyboard{}, domainerrors.ErrSeasonNotFound
	}
	slots, err := uc.Repo.ListSlots(ctx, seasonID)
	if err != nil {
		return Storyboard{}, err
	}
	if len(slots) == 0 {
		return Storyboard{}, domainerrors.ErrSeasonNotFound
	}

	board := Storyboard{SeasonID: seasonID, Slots: make([]StoryboardSlot, 0, len(slots))}
	for _, slot := range slots {
		row, err := uc.assembleSlot(ctx, slot)
		if err != nil {
			return Storyboard{}, err
		}
		board.Slots = append(board.Slots, row)
	}
	return board, nil
}

// GetSlot returns one storyboard row.
func (uc StoryboardUseCase) GetSlot(ctx context.Context, seasonID string, position int) (StoryboardSlot, error) {
	slot, err := uc.Repo.GetSlot(ctx, strings.TrimSpace(seasonID), position)
	if err != nil {
		return StoryboardSlot{}, err
	}
	return uc.assembleSlot(ctx, slot)
}

func (uc StoryboardUseCase) assembleSlot(ctx context.Context, slot entities.Slot) (StoryboardSlot, error) {
	eligible, err := uc.Repo.CountEligibleClips(ctx, slot.SeasonID, slot.Position)
	if err != nil {
		return StoryboardSlot{}, err
	}
	row := StoryboardSlot{Slot: slot, Eligible: eligible}
	if slot.WinnerClipID != nil {
		winner, err := uc.Repo.GetClip(ctx, *slot.WinnerClipID)
		if err != nil {
			if !errors.Is(err, domainerrors.ErrClipNotFound) {
				return StoryboardSlot{}, err
			}
		} else {
			row.Winner = &winner
		}
	}
	return row, nil
}
