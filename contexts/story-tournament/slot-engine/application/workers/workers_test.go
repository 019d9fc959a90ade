package workers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fable/contexts/story-tournament/slot-engine/adapters/memory"
	"fable/contexts/story-tournament/slot-engine/application/commands"
	"fable/contexts/story-tournament/slot-engine/application/workers"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	"fable/contexts/story-tournament/slot-engine/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type engineStubSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (s *engineStubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

type tallyStub struct {
	rows []ports.ClipTally
}

func (s tallyStub) SlotTally(_ context.Context, _ string, _ int) ([]ports.ClipTally, error) {
	return s.rows, nil
}

func seedActiveSeason(store *memory.Store, seasonID string) {
	store.SetSeasonRef(entities.SeasonRef{
		ID:        seasonID,
		Genre:     "scifi",
		Status:    entities.SeasonRefStatusActive,
		SlotCount: 3,
	})
}

func outboxHasEvent(t *testing.T, store *memory.Store, eventType string) bool {
	t.Helper()
	messages, err := store.ListPendingOutbox(context.Background(), 100)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	for _, message := range messages {
		var envelope struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			t.Fatalf("decode outbox envelope failed: %v", err)
		}
		if envelope.EventType == eventType {
			return true
		}
	}
	return false
}

func TestSweeperDrainsVotelessVotingSlot(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	seedActiveSeason(store, "season-1")
	startedAt := now.Add(-time.Hour)
	endsAt := now.Add(23 * time.Hour)
	store.SetSlot(entities.Slot{
		SeasonID:       "season-1",
		Position:       1,
		Status:         entities.SlotStatusVoting,
		TimerStartedAt: &startedAt,
		TimerEndsAt:    &endsAt,
	})

	sweeper := workers.ReconciliationSweeper{
		Repo:   store,
		Outbox: store,
		Clock:  fixedClock{now: now},
		IDGen:  store,
		Window: 24 * time.Hour,
	}

	repaired, err := sweeper.SweepSeason(context.Background(), "season-1")
	if err != nil {
		t.Fatalf("sweep season failed: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("expected one repaired slot, got %d", repaired)
	}

	slot, err := store.GetSlot(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Status != entities.SlotStatusWaitingForClips {
		t.Fatalf("expected drained voteless slot, got %s", slot.Status)
	}
	if slot.TimerStartedAt != nil || slot.TimerEndsAt != nil {
		t.Fatalf("expected timer cleared on drain")
	}
	if !outboxHasEvent(t, store, "tournament.slot.reconciled") {
		t.Fatalf("expected tournament.slot.reconciled event in outbox")
	}

	again, err := sweeper.SweepSeason(context.Background(), "season-1")
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected repeated sweep to repair nothing, got %d", again)
	}
}

func TestSweeperRepairsMalformedTimer(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	seedActiveSeason(store, "season-1")
	startedAt := now.Add(-time.Hour)
	store.SetSlot(entities.Slot{
		SeasonID:       "season-1",
		Position:       1,
		Status:         entities.SlotStatusVoting,
		TimerStartedAt: &startedAt,
	})
	position := 1
	store.SetClip(entities.Clip{
		ID:           "clip-1",
		SeasonID:     "season-1",
		SlotPosition: &position,
		Status:       entities.ClipStatusActive,
	})

	sweeper := workers.ReconciliationSweeper{
		Repo:   store,
		Outbox: store,
		Clock:  fixedClock{now: now},
		IDGen:  store,
		Window: 24 * time.Hour,
	}
	repaired, err := sweeper.SweepSeason(context.Background(), "season-1")
	if err != nil {
		t.Fatalf("sweep season failed: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("expected half-set timer repair, got %d", repaired)
	}

	slot, err := store.GetSlot(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Status != entities.SlotStatusVoting {
		t.Fatalf("expected slot to stay voting, got %s", slot.Status)
	}
	if slot.TimerStartedAt == nil || !slot.TimerStartedAt.Equal(now) {
		t.Fatalf("expected a fresh window start, got %v", slot.TimerStartedAt)
	}
	if slot.TimerEndsAt == nil || !slot.TimerEndsAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("expected a full fresh window, got %v", slot.TimerEndsAt)
	}
}

func TestSweeperLeavesLockedSlotsAlone(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	seedActiveSeason(store, "season-1")
	startedAt := now.Add(-48 * time.Hour)
	endsAt := now.Add(-24 * time.Hour)
	winner := "clip-winner"
	store.SetSlot(entities.Slot{
		SeasonID:       "season-1",
		Position:       1,
		Status:         entities.SlotStatusLocked,
		TimerStartedAt: &startedAt,
		TimerEndsAt:    &endsAt,
		WinnerClipID:   &winner,
	})

	sweeper := workers.ReconciliationSweeper{
		Repo:   store,
		Clock:  fixedClock{now: now},
		IDGen:  store,
		Window: 24 * time.Hour,
	}
	repaired, err := sweeper.SweepSeason(context.Background(), "season-1")
	if err != nil {
		t.Fatalf("sweep season failed: %v", err)
	}
	if repaired != 0 {
		t.Fatalf("expected locked slot untouched, got %d repairs", repaired)
	}

	slot, err := store.GetSlot(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.TimerEndsAt == nil || !slot.TimerEndsAt.Equal(endsAt) {
		t.Fatalf("expected historical timer preserved on locked slot")
	}
}

func TestSeasonConsumerProvisionsSlotStrip(t *testing.T) {
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	sub := &engineStubSubscriber{}
	consumer := workers.SeasonConsumer{
		Subscriber: sub,
		Dedup:      store,
		Repo:       store,
		Clock:      fixedClock{now: now},
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start season consumer failed: %v", err)
	}
	handler := sub.handlers["tournament.season.created"]
	if handler == nil {
		t.Fatalf("expected tournament.season.created handler registration")
	}

	payload, _ := json.Marshal(map[string]any{
		"season_id":             "season-9",
		"genre":                 "horror",
		"status":                "active",
		"slot_count":            3,
		"voting_window_seconds": 3600,
	})
	created := ports.EventEnvelope{
		EventID:   "event-season-created-1",
		EventType: "tournament.season.created",
		Data:      payload,
	}
	if err := handler(context.Background(), created); err != nil {
		t.Fatalf("season.created handler failed: %v", err)
	}

	ref, found, err := store.GetSeasonRef(context.Background(), "season-9")
	if err != nil || !found {
		t.Fatalf("expected season ref projected, found=%v err=%v", found, err)
	}
	if ref.SlotCount != 3 || ref.VotingWindow != time.Hour {
		t.Fatalf("expected sizing fields projected, got %+v", ref)
	}

	slots, err := store.ListSlots(context.Background(), "season-9")
	if err != nil {
		t.Fatalf("list slots failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 provisioned slots, got %d", len(slots))
	}
	if slots[0].Status != entities.SlotStatusWaitingForClips {
		t.Fatalf("expected position 1 waiting_for_clips, got %s", slots[0].Status)
	}
	for _, slot := range slots[1:] {
		if slot.Status != entities.SlotStatusUpcoming {
			t.Fatalf("expected later positions upcoming, got %s at %d", slot.Status, slot.Position)
		}
	}

	// Progress position 1, then re-deliver: the dedup gate must skip the
	// replay, and a fresh event id must still skip existing positions.
	votingStart := now
	votingEnd := now.Add(time.Hour)
	store.SetSlot(entities.Slot{
		SeasonID:       "season-9",
		Position:       1,
		Status:         entities.SlotStatusVoting,
		TimerStartedAt: &votingStart,
		TimerEndsAt:    &votingEnd,
	})
	if err := handler(context.Background(), created); err != nil {
		t.Fatalf("replayed season.created handler failed: %v", err)
	}
	fresh := created
	fresh.EventID = "event-season-created-2"
	if err := handler(context.Background(), fresh); err != nil {
		t.Fatalf("re-provision handler failed: %v", err)
	}
	slot, err := store.GetSlot(context.Background(), "season-9", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Status != entities.SlotStatusVoting {
		t.Fatalf("expected provisioning to leave existing positions untouched, got %s", slot.Status)
	}

	finishedHandler := sub.handlers["tournament.season.finished"]
	if finishedHandler == nil {
		t.Fatalf("expected tournament.season.finished handler registration")
	}
	finishPayload, _ := json.Marshal(map[string]any{
		"season_id": "season-9",
		"status":    "finished",
	})
	if err := finishedHandler(context.Background(), ports.EventEnvelope{
		EventID:   "event-season-finished-1",
		EventType: "tournament.season.finished",
		Data:      finishPayload,
	}); err != nil {
		t.Fatalf("season.finished handler failed: %v", err)
	}
	ref, _, err = store.GetSeasonRef(context.Background(), "season-9")
	if err != nil {
		t.Fatalf("get season ref failed: %v", err)
	}
	if ref.Status != entities.SeasonRefStatusFinished {
		t.Fatalf("expected finished status, got %s", ref.Status)
	}
	if ref.SlotCount != 3 || ref.Genre != "horror" {
		t.Fatalf("expected sizing fields preserved across lifecycle events, got %+v", ref)
	}
}

func TestVoteConsumerAppliesLedgerDeltas(t *testing.T) {
	now := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	position := 1
	store.SetClip(entities.Clip{
		ID:           "clip-1",
		SeasonID:     "season-1",
		SlotPosition: &position,
		Status:       entities.ClipStatusActive,
	})

	sub := &engineStubSubscriber{}
	consumer := workers.VoteAggregateConsumer{
		Subscriber: sub,
		Dedup:      store,
		Repo:       store,
		Clock:      fixedClock{now: now},
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start vote consumer failed: %v", err)
	}
	castHandler := sub.handlers["tournament.vote.cast"]
	revokeHandler := sub.handlers["tournament.vote.revoked"]
	if castHandler == nil || revokeHandler == nil {
		t.Fatalf("expected handlers for both vote topics")
	}

	castPayload, _ := json.Marshal(map[string]any{"clip_id": "clip-1", "weight": 3})
	cast := ports.EventEnvelope{
		EventID:   "event-vote-cast-1",
		EventType: "tournament.vote.cast",
		Data:      castPayload,
	}
	if err := castHandler(context.Background(), cast); err != nil {
		t.Fatalf("vote.cast handler failed: %v", err)
	}
	clip, err := store.GetClip(context.Background(), "clip-1")
	if err != nil {
		t.Fatalf("get clip failed: %v", err)
	}
	if clip.VoteCount != 1 || clip.VoteWeight != 3 {
		t.Fatalf("expected counters 1/3, got %d/%d", clip.VoteCount, clip.VoteWeight)
	}

	if err := castHandler(context.Background(), cast); err != nil {
		t.Fatalf("replayed vote.cast handler failed: %v", err)
	}
	clip, _ = store.GetClip(context.Background(), "clip-1")
	if clip.VoteCount != 1 || clip.VoteWeight != 3 {
		t.Fatalf("expected replay to leave counters at 1/3, got %d/%d", clip.VoteCount, clip.VoteWeight)
	}

	revokePayload, _ := json.Marshal(map[string]any{"clip_id": "clip-1", "weight": 3})
	if err := revokeHandler(context.Background(), ports.EventEnvelope{
		EventID:   "event-vote-revoked-1",
		EventType: "tournament.vote.revoked",
		Data:      revokePayload,
	}); err != nil {
		t.Fatalf("vote.revoked handler failed: %v", err)
	}
	clip, _ = store.GetClip(context.Background(), "clip-1")
	if clip.VoteCount != 0 || clip.VoteWeight != 0 {
		t.Fatalf("expected counters back to 0/0, got %d/%d", clip.VoteCount, clip.VoteWeight)
	}
}

func TestExpirerClosesRoundWithLedgerLeader(t *testing.T) {
	now := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	seedActiveSeason(store, "season-1")
	startedAt := now.Add(-25 * time.Hour)
	endsAt := now.Add(-time.Hour)
	store.SetSlot(entities.Slot{
		SeasonID:       "season-1",
		Position:       1,
		Status:         entities.SlotStatusVoting,
		TimerStartedAt: &startedAt,
		TimerEndsAt:    &endsAt,
	})
	store.SetSlot(entities.Slot{
		SeasonID: "season-1",
		Position: 2,
		Status:   entities.SlotStatusUpcoming,
	})
	position := 1
	for _, clipID := range []string{"clip-a", "clip-b"} {
		store.SetClip(entities.Clip{
			ID:           clipID,
			SeasonID:     "season-1",
			SlotPosition: &position,
			Status:       entities.ClipStatusActive,
			CreatedAt:    now.Add(-26 * time.Hour),
		})
	}

	tournament := commands.TournamentUseCase{
		Repo:         store,
		Idempotency:  store,
		Outbox:       store,
		Clock:        fixedClock{now: now},
		IDGen:        store,
		VotingWindow: 24 * time.Hour,
	}
	expirer := workers.VotingExpirer{
		Repo: store,
		Tallies: tallyStub{rows: []ports.ClipTally{
			{ClipID: "clip-b", Votes: 4, Weight: 4},
			{ClipID: "clip-a", Votes: 2, Weight: 9},
		}},
		Tournament: tournament,
		Outbox:     store,
		Clock:      fixedClock{now: now},
		IDGen:      store,
		Window:     24 * time.Hour,
	}

	if err := expirer.RunOnce(context.Background()); err != nil {
		t.Fatalf("expirer run failed: %v", err)
	}

	slot, err := store.GetSlot(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Status != entities.SlotStatusLocked {
		t.Fatalf("expected expired round locked, got %s", slot.Status)
	}
	if slot.WinnerClipID == nil || *slot.WinnerClipID != "clip-a" {
		t.Fatalf("expected heaviest tally to win, got %v", slot.WinnerClipID)
	}

	winner, err := store.GetClip(context.Background(), "clip-a")
	if err != nil {
		t.Fatalf("get winner failed: %v", err)
	}
	if winner.Status != entities.ClipStatusLocked {
		t.Fatalf("expected winner clip locked, got %s", winner.Status)
	}

	successor, err := store.GetSlot(context.Background(), "season-1", 2)
	if err != nil {
		t.Fatalf("get successor failed: %v", err)
	}
	if successor.Status != entities.SlotStatusWaitingForClips {
		t.Fatalf("expected successor advanced, got %s", successor.Status)
	}
	if !outboxHasEvent(t, store, "tournament.slot.locked") {
		t.Fatalf("expected tournament.slot.locked event in outbox")
	}
}

func TestExpirerRestartsVotelessRound(t *testing.T) {
	now := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	seedActiveSeason(store, "season-1")
	startedAt := now.Add(-25 * time.Hour)
	endsAt := now.Add(-time.Hour)
	store.SetSlot(entities.Slot{
		SeasonID:       "season-1",
		Position:       1,
		Status:         entities.SlotStatusVoting,
		TimerStartedAt: &startedAt,
		TimerEndsAt:    &endsAt,
	})
	position := 1
	store.SetClip(entities.Clip{
		ID:           "clip-quiet",
		SeasonID:     "season-1",
		SlotPosition: &position,
		Status:       entities.ClipStatusActive,
	})

	expirer := workers.VotingExpirer{
		Repo:    store,
		Tallies: tallyStub{},
		Outbox:  store,
		Clock:   fixedClock{now: now},
		IDGen:   store,
		Window:  24 * time.Hour,
	}
	if err := expirer.RunOnce(context.Background()); err != nil {
		t.Fatalf("expirer run failed: %v", err)
	}

	slot, err := store.GetSlot(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Status != entities.SlotStatusVoting {
		t.Fatalf("expected voteless round to stay voting, got %s", slot.Status)
	}
	if slot.TimerEndsAt == nil || !slot.TimerEndsAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("expected a restarted full window, got %v", slot.TimerEndsAt)
	}
	if !outboxHasEvent(t, store, "tournament.slot.window_restarted") {
		t.Fatalf("expected tournament.slot.window_restarted event in outbox")
	}
}

type capturingPublisher struct {
	published []string
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	p.published = append(p.published, topic)
	return nil
}

func TestOutboxRelayPublishesPending(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	for eventID, eventType := range map[string]string{
		"event-relay-1": "tournament.slot.voting_started",
		"event-relay-2": "tournament.slot.locked",
	} {
		if err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
			EventID:      eventID,
			EventType:    eventType,
			PartitionKey: "season-1",
		}); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     fixedClock{now: now},
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.published))
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained, got %d pending", len(pending))
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("idle relay run failed: %v", err)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected idle run to publish nothing, got %d", len(publisher.published))
	}
}
