package ports

import (
	"context"
	"time"

	"fable/contexts/story-tournament/slot-engine/domain/entities"
	"fable/internal/shared/events"
)

// ClipFilter narrows clip listings. A nil Position means any position;
// an empty Statuses slice means any status.
type ClipFilter struct {
	SeasonID string
	Statuses []entities.ClipStatus
	Position *int
	Limit    int
}

// ChangeSet is one transactional unit of tournament work: clip writes and
// deletes, imperative slot writes (lock, advance, revert), then a
// re-evaluation of each position listed in Reconcile against an eligible
// count taken after the writes, all inside a single store transaction.
//
// Slots in SaveSlots carry the Version observed at load time; a version that
// no longer matches the stored row aborts the whole change set with
// ErrStaleRead so the caller can re-read and retry.
type ChangeSet struct {
	SeasonID    string
	SaveClips   []entities.Clip
	DeleteClips []string
	SaveSlots   []entities.Slot
	Reconcile   []int
	Now         time.Time
	Window      time.Duration
}

// TournamentRepository is the engine's store. Implementations must recount
// eligibility from clip rows inside ApplyChangeSet; denormalized aggregates
// are never consulted.
type TournamentRepository interface {
	GetClip(ctx context.Context, clipID string) (entities.Clip, error)
	ListClips(ctx context.Context, filter ClipFilter) ([]entities.Clip, error)
	CountEligibleClips(ctx context.Context, seasonID string, position int) (int, error)

	GetSlot(ctx context.Context, seasonID string, position int) (entities.Slot, error)
	ListSlots(ctx context.Context, seasonID string) ([]entities.Slot, error)
	ListExpiredVotingSlots(ctx context.Context, now time.Time, limit int) ([]entities.Slot, error)

	GetSeasonRef(ctx context.Context, seasonID string) (entities.SeasonRef, bool, error)
	SaveSeasonRef(ctx context.Context, ref entities.SeasonRef) error
	ListActiveSeasonRefs(ctx context.Context) ([]entities.SeasonRef, error)

	ApplyChangeSet(ctx context.Context, change ChangeSet) ([]entities.Evaluation, error)
	ApplyVoteDelta(ctx context.Context, clipID string, votes int, weight int) error
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ClipID          string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
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

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

// ClipTally is one clip's standing in the ledger.
type ClipTally struct {
	ClipID string
	Votes  int
	Weight int
}

// TallyReader reads live vote standings from the ledger; wired across
// modules at bootstrap. The expirer uses it to pick round winners.
type TallyReader interface {
	SlotTally(ctx context.Context, seasonID string, position int) ([]ClipTally, error)
}

// VotePurger removes a deleted clip's votes from the ledger.
type VotePurger interface {
	PurgeClipVotes(ctx context.Context, clipID string) (int, error)
}
