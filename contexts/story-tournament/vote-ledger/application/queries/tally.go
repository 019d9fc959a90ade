package queries

import (
	"context"
	"sort"
	"strings"

	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	"fable/contexts/story-tournament/vote-ledger/ports"
)

// TallyUseCase recomputes standings from ledger rows on every read. The
// denormalized counters the engine keeps on clips are projections of these
// rows and are never consulted here.
type TallyUseCase struct {
	Votes ports.VoteRepository
}

func (uc TallyUseCase) TallyClip(ctx context.Context, clipID string) (entities.ClipTally, error) {
	trimmed := strings.TrimSpace(clipID)
	votes, err := uc.Votes.ListVotesByClip(ctx, trimmed)
	if err != nil {
		return entities.ClipTally{}, err
	}
	tally := entities.ClipTally{ClipID: trimmed}
	for _, vote := range votes {
		tally.Votes++
		tally.Weight += vote.Weight
	}
	return tally, nil
}

func (uc TallyUseCase) TallySlot(ctx context.Context, seasonID string, position int) (entities.SlotTally, error) {
	votes, err := uc.Votes.ListVotesBySlot(ctx, strings.TrimSpace(seasonID), position)
	if err != nil {
		return entities.SlotTally{}, err
	}
	return entities.SlotTally{
		SeasonID: strings.TrimSpace(seasonID),
		Position: position,
		Clips:    rankClips(votes),
	}, nil
}

// SlotLeaderboard returns the slot's top standings. A non-positive limit
// means the full ranking.
func (uc TallyUseCase) SlotLeaderboard(ctx context.Context, seasonID string, position int, limit int) ([]entities.ClipTally, error) {
	tally, err := uc.TallySlot(ctx, seasonID, position)
	if err != nil {
		return nil, err
	}
	clips := tally.Clips
	if limit > 0 && len(clips) > limit {
		clips = clips[:limit]
	}
	return clips, nil
}

func rankClips(votes []entities.Vote) []entities.ClipTally {
	byClip := make(map[string]entities.ClipTally)
	for _, vote := range votes {
		current := byClip[vote.ClipID]
		current.ClipID = vote.ClipID
		current.Votes++
		current.Weight += vote.Weight
		byClip[vote.ClipID] = current
	}

	items := make([]entities.ClipTally, 0, len(byClip))
	for _, tally := range byClip {
		items = append(items, tally)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Weight != items[j].Weight {
			return items[i].Weight > items[j].Weight
		}
		if items[i].Votes != items[j].Votes {
			return items[i].Votes > items[j].Votes
		}
		return items[i].ClipID < items[j].ClipID
	})
	return items
}
