package bootstrap

import (
	"context"
	"errors"

	seasonports "fable/contexts/story-tournament/season-service/ports"
	engineentities "fable/contexts/story-tournament/slot-engine/domain/entities"
	engineerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	engineports "fable/contexts/story-tournament/slot-engine/ports"
	ledgercommands "fable/contexts/story-tournament/vote-ledger/application/commands"
	ledgerqueries "fable/contexts/story-tournament/vote-ledger/application/queries"
	ledgerports "fable/contexts/story-tournament/vote-ledger/ports"
)

// Cross-module ports are satisfied here so modules never import each other.
// Each adapter wraps one module's surface in the shape another module's
// ports package expects.

// engineSlotBoard answers the season service's finish guard from the
// engine's slot rows.
type engineSlotBoard struct {
	repo engineports.TournamentRepository
}

var _ seasonports.SlotBoard = engineSlotBoard{}

func (b engineSlotBoard) OpenSlotCount(ctx context.Context, seasonID string) (int, error) {
	slots, err := b.repo.ListSlots(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	open := 0
	for _, slot := range slots {
		if slot.Status != engineentities.SlotStatusLocked {
			open++
		}
	}
	return open, nil
}

// engineClipDirectory answers ledger votability checks from the engine's
// clip and slot state. A clip without a slot assignment is not votable.
type engineClipDirectory struct {
	repo engineports.TournamentRepository
}

var _ ledgerports.ClipDirectory = engineClipDirectory{}

func (d engineClipDirectory) ClipVotability(ctx context.Context, clipID string) (ledgerports.ClipVotability, bool, error) {
	clip, err := d.repo.GetClip(ctx, clipID)
	if err != nil {
		if errors.Is(err, engineerrors.ErrClipNotFound) {
			return ledgerports.ClipVotability{}, false, nil
		}
		return ledgerports.ClipVotability{}, false, err
	}
	if clip.SlotPosition == nil {
		return ledgerports.ClipVotability{}, false, nil
	}

	slot, err := d.repo.GetSlot(ctx, clip.SeasonID, *clip.SlotPosition)
	if err != nil {
		if errors.Is(err, engineerrors.ErrSlotNotFound) {
			return ledgerports.ClipVotability{}, false, nil
		}
		return ledgerports.ClipVotability{}, false, err
	}

	return ledgerports.ClipVotability{
		ClipID:       clip.ID,
		SeasonID:     clip.SeasonID,
		SlotPosition: *clip.SlotPosition,
		ClipEligible: clip.Status.Eligible(),
		SlotVoting:   slot.Status == engineentities.SlotStatusVoting,
	}, true, nil
}

// ledgerTallyReader feeds the engine's winner selection from recounted
// ledger standings.
type ledgerTallyReader struct {
	tallies ledgerqueries.TallyUseCase
}

var _ engineports.TallyReader = ledgerTallyReader{}

func (t ledgerTallyReader) SlotTally(ctx context.Context, seasonID string, position int) ([]engineports.ClipTally, error) {
	tally, err := t.tallies.TallySlot(ctx, seasonID, position)
	if err != nil {
		return nil, err
	}
	items := make([]engineports.ClipTally, 0, len(tally.Clips))
	for _, clip := range tally.Clips {
		items = append(items, engineports.ClipTally{
			ClipID: clip.ClipID,
			Votes:  clip.Votes,
			Weight: clip.Weight,
		})
	}
	return items, nil
}

// ledgerVotePurger lets a clip deletion in the engine drop the clip's
// ballots from the ledger.
type ledgerVotePurger struct {
	purge ledgercommands.PurgeClipVotesUseCase
}

var _ engineports.VotePurger = ledgerVotePurger{}

func (p ledgerVotePurger) PurgeClipVotes(ctx context.Context, clipID string) (int, error) {
	return p.purge.Execute(ctx, clipID)
}
