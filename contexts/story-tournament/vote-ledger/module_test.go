package voteledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	voteledger "fable/contexts/story-tournament/vote-ledger"
	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	domainerrors "fable/contexts/story-tournament/vote-ledger/domain/errors"
	"fable/contexts/story-tournament/vote-ledger/ports"
	httptransport "fable/contexts/story-tournament/vote-ledger/transport/http"
)

func openVotability(clipID string) ports.ClipVotability {
	return ports.ClipVotability{
		ClipID:       clipID,
		SeasonID:     "season-1",
		SlotPosition: 2,
		ClipEligible: true,
		SlotVoting:   true,
	}
}

func seedVote(id string, clipID string, voterKey string, weight int) entities.Vote {
	return entities.Vote{
		ID:           id,
		SeasonID:     "season-1",
		SlotPosition: 1,
		ClipID:       clipID,
		VoterKey:     voterKey,
		Weight:       weight,
		CastAt:       time.Now().UTC(),
	}
}

func outboxEventTypes(t *testing.T, module voteledger.Module) []string {
	t.Helper()
	pending, err := module.Store.ListPendingOutbox(context.Background(), 50)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	types := make([]string, 0, len(pending))
	for _, row := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			t.Fatalf("decode outbox payload failed: %v", err)
		}
		types = append(types, envelope.EventType)
	}
	return types
}

func TestCastVoteDefaultsWeightAndEmitsEvent(t *testing.T) {
	module := voteledger.NewInMemoryModule(nil, nil)
	module.Store.SetVotability(openVotability("clip-1"))

	resp, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "clip-1", httptransport.CastVoteRequest{})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if resp.Vote.Weight != entities.DefaultVoteWeight {
		t.Fatalf("expected default weight %d, got %d", entities.DefaultVoteWeight, resp.Vote.Weight)
	}
	if resp.Vote.SeasonID != "season-1" || resp.Vote.SlotPosition != 2 {
		t.Fatalf("expected slot coordinates from votability, got %s/%d", resp.Vote.SeasonID, resp.Vote.SlotPosition)
	}

	_, found, err := module.Store.GetVoteByVoter(context.Background(), "voter-1", "clip-1")
	if err != nil || !found {
		t.Fatalf("expected stored ballot, found=%v err=%v", found, err)
	}

	types := outboxEventTypes(t, module)
	if len(types) != 1 || types[0] != "tournament.vote.cast" {
		t.Fatalf("expected single vote.cast event, got %v", types)
	}
}

func TestCastVoteValidatesInput(t *testing.T) {
	module := voteledger.NewInMemoryModule(nil, nil)
	module.Store.SetVotability(openVotability("clip-1"))

	cases := map[string]struct {
		voterKey string
		clipID   string
		weight   int
	}{
		"missing voter key": {voterKey: "", clipID: "clip-1", weight: 1},
		"missing clip":      {voterKey: "voter-1", clipID: "", weight: 1},
		"weight over limit": {voterKey: "voter-1", clipID: "clip-1", weight: entities.MaxVoteWeight + 1},
		"negative weight":   {voterKey: "voter-1", clipID: "clip-1", weight: -2},
	}
	for name, tc := range cases {
		_, err := module.Handler.CastVoteHandler(context.Background(), tc.voterKey, tc.clipID, httptransport.CastVoteRequest{
			Weight: tc.weight,
		})
		if !errors.Is(err, domainerrors.ErrInvalidVoteInput) {
			t.Fatalf("%s: expected invalid input error, got %v", name, err)
		}
	}
}

func TestCastVoteEnforcesVotability(t *testing.T) {
	module := voteledger.NewInMemoryModule(nil, nil)

	_, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "clip-unknown", httptransport.CastVoteRequest{Weight: 1})
	if !errors.Is(err, domainerrors.ErrClipNotVotable) {
		t.Fatalf("expected not votable for unknown clip, got %v", err)
	}

	ineligible := openVotability("clip-pulled")
	ineligible.ClipEligible = false
	module.Store.SetVotability(ineligible)
	_, err = module.Handler.CastVoteHandler(context.Background(), "voter-1", "clip-pulled", httptransport.CastVoteRequest{Weight: 1})
	if !errors.Is(err, domainerrors.ErrClipNotVotable) {
		t.Fatalf("expected not votable for ineligible clip, got %v", err)
	}

	closed := openVotability("clip-closed")
	closed.SlotVoting = false
	module.Store.SetVotability(closed)
	_, err = module.Handler.CastVoteHandler(context.Background(), "voter-1", "clip-closed", httptransport.CastVoteRequest{Weight: 1})
	if !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected voting closed error, got %v", err)
	}
}

func TestDuplicateVoteSettlesToOneRow(t *testing.T) {
	module := voteledger.NewInMemoryModule(nil, nil)
	module.Store.SetVotability(openVotability("clip-1"))

	if _, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "clip-1", httptransport.CastVoteRequest{Weight: 2}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	_, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "clip-1", httptransport.CastVoteRequest{Weight: 2})
	if !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote error, got %v", err)
	}

	concurrent := voteledger.NewInMemoryModule(nil, nil)
	concurrent.Store.SetVotability(openVotability("clip-2"))

	var wg sync.WaitGroup
	var accepted atomic.Int32
	var rejected atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := concurrent.Handler.CastVoteHandler(context.Background(), "voter-racer", "clip-2", httptransport.CastVoteRequest{Weight: 1})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, domainerrors.ErrDuplicateVote):
				rejected.Add(1)
			default:
				t.Errorf("unexpected cast error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 || rejected.Load() != 7 {
		t.Fatalf("expected exactly one accepted cast, got accepted=%d rejected=%d", accepted.Load(), rejected.Load())
	}
	tally, err := concurrent.Tallies.TallyClip(context.Background(), "clip-2")
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally.Votes != 1 {
		t.Fatalf("expected single ballot after race, got %d", tally.Votes)
	}
}

func TestConcurrentDistinctVotersAllRecorded(t *testing.T) {
	module := voteledger.NewInMemoryModule(nil, nil)
	module.Store.SetVotability(openVotability("clip-1"))

	const voters = 12
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			voterKey := fmt.Sprintf("voter-%d", i)
			if _, err := module.Handler.CastVoteHandler(context.Background(), voterKey, "clip-1", httptransport.CastVoteRequest{Weight: 1}); err != nil {
				t.Errorf("cast for %s failed: %v", voterKey, err)
			}
		}()
	}
	wg.Wait()

	tally, err := module.Tallies.TallyClip(context.Background(), "clip-1")
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally.Votes != voters {
		t.Fatalf("expected %d distinct ballots, got %d", voters, tally.Votes)
	}
	if tally.Weight != voters {
		t.Fatalf("expected aggregate weight %d, got %d", voters, tally.Weight)
	}
}

func TestRevokeVoteRemovesBallot(t *testing.T) {
	module := voteledger.NewInMemoryModule(nil, nil)
	module.Store.SetVotability(openVotability("clip-1"))

	if _, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "clip-1", httptransport.CastVoteRequest{Weight: 3}); err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	revoked, err := module.Handler.RevokeVoteHandler(context.Background(), "voter-1", "clip-1")
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if revoked.Vote.Weight != 3 {
		t.Fatalf("expected revoked ballot weight 3, got %d", revoked.Vote.Weight)
	}

	tally, err := module.Tallies.TallyClip(context.Background(), "clip-1")
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally.Votes != 0 || tally.Weight != 0 {
		t.Fatalf("expected empty tally after revoke, got votes=%d weight=%d", tally.Votes, tally.Weight)
	}

	_, err = module.Handler.RevokeVoteHandler(context.Background(), "voter-1", "clip-1")
	if !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected vote not found on second revoke, got %v", err)
	}

	types := outboxEventTypes(t, module)
	if len(types) != 2 || types[0] != "tournament.vote.cast" || types[1] != "tournament.vote.revoked" {
		t.Fatalf("expected cast then revoked events, got %v", types)
	}
}

func TestTallyRanksClipsBySupport(t *testing.T) {
	seed := []entities.Vote{
		seedVote("vote-1", "clip-a", "voter-1", 2),
		seedVote("vote-2", "clip-a", "voter-2", 1),
		seedVote("vote-3", "clip-b", "voter-3", 5),
		seedVote("vote-4", "clip-c", "voter-4", 1),
		seedVote("vote-5", "clip-c", "voter-5", 1),
		seedVote("vote-6", "clip-c", "voter-6", 1),
	}
	module := voteledger.NewInMemoryModule(seed, nil)

	slot, err := module.Tallies.TallySlot(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("slot tally failed: %v", err)
	}
	if len(slot.Clips) != 3 {
		t.Fatalf("expected three ranked clips, got %d", len(slot.Clips))
	}
	ranked := []string{slot.Clips[0].ClipID, slot.Clips[1].ClipID, slot.Clips[2].ClipID}
	if ranked[0] != "clip-b" || ranked[1] != "clip-c" || ranked[2] != "clip-a" {
		t.Fatalf("expected ranking clip-b, clip-c, clip-a, got %v", ranked)
	}

	top, err := module.Tallies.SlotLeaderboard(context.Background(), "season-1", 1, 2)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(top) != 2 || top[0].ClipID != "clip-b" || top[1].ClipID != "clip-c" {
		t.Fatalf("expected truncated leaderboard [clip-b clip-c], got %v", top)
	}

	clip, err := module.Tallies.TallyClip(context.Background(), "clip-a")
	if err != nil {
		t.Fatalf("clip tally failed: %v", err)
	}
	if clip.Votes != 2 || clip.Weight != 3 {
		t.Fatalf("expected clip-a votes=2 weight=3, got votes=%d weight=%d", clip.Votes, clip.Weight)
	}
}

func TestPurgeClipVotes(t *testing.T) {
	seed := []entities.Vote{
		seedVote("vote-1", "clip-x", "voter-1", 1),
		seedVote("vote-2", "clip-x", "voter-2", 2),
		seedVote("vote-3", "clip-x", "voter-3", 1),
		seedVote("vote-4", "clip-y", "voter-4", 4),
	}
	module := voteledger.NewInMemoryModule(seed, nil)

	purged, err := module.Purge.Execute(context.Background(), "clip-x")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 3 {
		t.Fatalf("expected three purged ballots, got %d", purged)
	}

	gone, err := module.Tallies.TallyClip(context.Background(), "clip-x")
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if gone.Votes != 0 {
		t.Fatalf("expected purged clip tally empty, got %d votes", gone.Votes)
	}
	kept, err := module.Tallies.TallyClip(context.Background(), "clip-y")
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if kept.Votes != 1 || kept.Weight != 4 {
		t.Fatalf("expected clip-y untouched, got votes=%d weight=%d", kept.Votes, kept.Weight)
	}

	if _, err := module.Purge.Execute(context.Background(), "  "); !errors.Is(err, domainerrors.ErrInvalidVoteInput) {
		t.Fatalf("expected invalid input for blank clip id, got %v", err)
	}
}
