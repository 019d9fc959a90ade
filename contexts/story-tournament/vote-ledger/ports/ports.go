package ports

import (
	"context"
	"time"

	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	"fable/internal/shared/events"
)

type VoteRepository interface {
	// InsertVote persists a ballot. The store's unique (voter_key, clip_id)
	// constraint is the duplicate authority: a second ballot for the same
	// pair fails with ErrDuplicateVote regardless of who read what first.
	InsertVote(ctx context.Context, vote entities.Vote) error
	GetVoteByVoter(ctx context.Context, voterKey string, clipID string) (entities.Vote, bool, error)
	// DeleteVoteByVoter removes the pair row and returns it; a missing row
	// fails with ErrVoteNotFound.
	DeleteVoteByVoter(ctx context.Context, voterKey string, clipID string) (entities.Vote, error)
	ListVotesByClip(ctx context.Context, clipID string) ([]entities.Vote, error)
	ListVotesBySlot(ctx context.Context, seasonID string, position int) ([]entities.Vote, error)
	PurgeClipVotes(ctx context.Context, clipID string) (int, error)
}

// ClipVotability is the engine's answer to "may this clip take votes now".
type ClipVotability struct {
	ClipID       string
	SeasonID     string
	SlotPosition int
	ClipEligible bool
	SlotVoting   bool
}

// ClipDirectory is a read-only view of the slot-engine's clips and slots,
// wired across modules at bootstrap. The ledger never writes through it.
type ClipDirectory interface {
	ClipVotability(ctx context.Context, clipID string) (ClipVotability, bool, error)
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
