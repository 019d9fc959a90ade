package ports

import (
	"context"
	"time"

	"fable/contexts/story-tournament/season-service/domain/entities"
	"fable/internal/shared/events"
)

// SeasonFilter narrows season listings. Empty fields match everything.
type SeasonFilter struct {
	Status entities.SeasonStatus
	Genre  string
	Limit  int
}

type SeasonRepository interface {
	CreateSeason(ctx context.Context, season entities.Season) error
	GetSeason(ctx context.Context, seasonID string) (entities.Season, error)
	UpdateSeason(ctx context.Context, season entities.Season) error
	ListSeasons(ctx context.Context, filter SeasonFilter) ([]entities.Season, error)
	// FindActiveByGenre backs the one-active-season-per-genre invariant; the
	// postgres adapter reads it inside the activation transaction.
	FindActiveByGenre(ctx context.Context, genre string) (entities.Season, bool, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// SlotBoard is a read-only view of the engine's slot strip, wired across
// modules at bootstrap. Finishing a season requires every slot locked.
type SlotBoard interface {
	OpenSlotCount(ctx context.Context, seasonID string) (int, error)
}
