package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	"fable/contexts/story-tournament/slot-engine/ports"
)

const (
	seasonCreatedTopic   = "tournament.season.created"
	seasonActivatedTopic = "tournament.season.activated"
	seasonFinishedTopic  = "tournament.season.finished"
	defaultSeasonCG      = "slot-engine-season-cg"
)

// SeasonConsumer maintains the engine's season projection and provisions the
// slot strip when a season is created: position 1 opens as waiting_for_clips
// and every later position starts upcoming.
type SeasonConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Repo          ports.TournamentRepository
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c SeasonConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("season consumer disabled",
			"event", "engine_season_consumer_disabled",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultSeasonCG
	}
	for _, topic := range []string{seasonCreatedTopic, seasonActivatedTopic, seasonFinishedTopic} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handleSeasonEvent); err != nil {
			logger.Error("season consumer subscribe failed",
				"event", "engine_season_consumer_subscribe_failed",
				"module", "story-tournament/slot-engine",
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("season consumer subscriptions active",
		"event", "engine_season_consumer_started",
		"module", "story-tournament/slot-engine",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

type seasonEventPayload struct {
	SeasonID            string `json:"season_id"`
	Genre               string `json:"genre"`
	Status              string `json:"status"`
	SlotCount           int    `json:"slot_count"`
	VotingWindowSeconds int    `json:"voting_window_seconds"`
}

func (c SeasonConsumer) handleSeasonEvent(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	if alreadyProcessed, err := c.reserveEvent(ctx, event); err != nil {
		return err
	} else if alreadyProcessed {
		logger.Debug("season event replay skipped",
			"event", "engine_season_event_replayed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload seasonEventPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("season event decode failed",
			"event", "engine_season_event_decode_failed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	seasonID := strings.TrimSpace(payload.SeasonID)
	if seasonID == "" {
		return nil
	}

	now := c.now()
	ref := entities.SeasonRef{
		ID:           seasonID,
		Genre:        strings.TrimSpace(payload.Genre),
		Status:       entities.SeasonRefStatus(strings.TrimSpace(payload.Status)),
		SlotCount:    payload.SlotCount,
		VotingWindow: time.Duration(payload.VotingWindowSeconds) * time.Second,
		UpdatedAt:    now,
	}
	if existing, found, err := c.Repo.GetSeasonRef(ctx, seasonID); err != nil {
		return err
	} else if found {
		// Lifecycle events after creation carry no sizing fields.
		if ref.SlotCount == 0 {
			ref.SlotCount = existing.SlotCount
		}
		if ref.VotingWindow == 0 {
			ref.VotingWindow = existing.VotingWindow
		}
		if ref.Genre == "" {
			ref.Genre = existing.Genre
		}
	}
	if err := c.Repo.SaveSeasonRef(ctx, ref); err != nil {
		return err
	}

	if event.EventType == seasonCreatedTopic {
		if err := c.provisionSlots(ctx, ref, now); err != nil {
			return err
		}
	}

	logger.Info("season event consumed",
		"event", "engine_season_event_consumed",
		"module", "story-tournament/slot-engine",
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"season_id", seasonID,
		"status", string(ref.Status),
	)
	return nil
}

// provisionSlots lays out the slot strip for a new season. Re-delivery after
// a partial write is safe: existing positions are left untouched.
func (c SeasonConsumer) provisionSlots(ctx context.Context, ref entities.SeasonRef, now time.Time) error {
	if ref.SlotCount <= 0 {
		return nil
	}
	existing, err := c.Repo.ListSlots(ctx, ref.ID)
	if err != nil {
		return err
	}
	present := make(map[int]struct{}, len(existing))
	for _, slot := range existing {
		present[slot.Position] = struct{}{}
	}

	slots := make([]entities.Slot, 0, ref.SlotCount)
	for position := 1; position <= ref.SlotCount; position++ {
		if _, ok := present[position]; ok {
			continue
		}
		status := entities.SlotStatusUpcoming
		if position == 1 {
			status = entities.SlotStatusWaitingForClips
		}
		slots = append(slots, entities.Slot{
			SeasonID:  ref.ID,
			Position:  position,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(slots) == 0 {
		return nil
	}
	_, err = c.Repo.ApplyChangeSet(ctx, ports.ChangeSet{
		SeasonID:  ref.ID,
		SaveSlots: slots,
		Now:       now,
	})
	return err
}

func (c SeasonConsumer) reserveEvent(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	logger := application.ResolveLogger(c.Logger)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(c.dedupTTL()))
	if err != nil {
		logger.Error("season event dedupe failed",
			"event", "engine_season_event_dedupe_failed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return false, err
	}
	return alreadyProcessed, nil
}

func (c SeasonConsumer) now() time.Time {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	return now
}

func (c SeasonConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}
