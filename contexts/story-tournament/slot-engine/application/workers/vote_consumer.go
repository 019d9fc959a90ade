package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/ports"
)

const (
	voteCastTopic    = "tournament.vote.cast"
	voteRevokedTopic = "tournament.vote.revoked"
	defaultVoteCG    = "slot-engine-vote-cg"
)

// VoteAggregateConsumer keeps the denormalized vote counters on clips in
// step with the ledger. The counters are display-only projections; nothing
// in the lifecycle reads them back, so at-least-once delivery with the
// dedup gate is plenty.
type VoteAggregateConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Repo          ports.TournamentRepository
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c VoteAggregateConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("vote aggregate consumer disabled",
			"event", "engine_vote_consumer_disabled",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultVoteCG
	}
	for _, topic := range []string{voteCastTopic, voteRevokedTopic} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handleVoteEvent); err != nil {
			logger.Error("vote consumer subscribe failed",
				"event", "engine_vote_consumer_subscribe_failed",
				"module", "story-tournament/slot-engine",
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("vote consumer subscriptions active",
		"event", "engine_vote_consumer_started",
		"module", "story-tournament/slot-engine",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c VoteAggregateConsumer) handleVoteEvent(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(c.dedupTTL()))
	if err != nil {
		logger.Error("vote event dedupe failed",
			"event", "engine_vote_event_dedupe_failed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("vote event replay skipped",
			"event", "engine_vote_event_replayed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		ClipID string `json:"clip_id"`
		Weight int    `json:"weight"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("vote event decode failed",
			"event", "engine_vote_event_decode_failed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	clipID := strings.TrimSpace(payload.ClipID)
	if clipID == "" {
		return nil
	}

	votes, weight := 1, payload.Weight
	if event.EventType == voteRevokedTopic {
		votes, weight = -1, -payload.Weight
	}
	if err := c.Repo.ApplyVoteDelta(ctx, clipID, votes, weight); err != nil {
		logger.Error("vote aggregate update failed",
			"event", "engine_vote_aggregate_failed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"clip_id", clipID,
			"error", err.Error(),
		)
		return err
	}

	logger.Debug("vote aggregate updated",
		"event", "engine_vote_aggregate_updated",
		"module", "story-tournament/slot-engine",
		"layer", "worker",
		"clip_id", clipID,
		"votes_delta", votes,
		"weight_delta", weight,
	)
	return nil
}

func (c VoteAggregateConsumer) now() time.Time {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	return now
}

func (c VoteAggregateConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}
