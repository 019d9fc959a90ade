package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	domainerrors "fable/contexts/story-tournament/vote-ledger/domain/errors"
	"fable/contexts/story-tournament/vote-ledger/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store keeps ballots keyed by their (voter_key, clip_id) pair, which makes
// the map key itself the uniqueness constraint the postgres adapter gets
// from its unique index.
type Store struct {
	mu sync.RWMutex

	votes      map[string]entities.Vote
	outbox     map[string]outboxRecord
	votability map[string]ports.ClipVotability
}

func pairKey(voterKey, clipID string) string {
	return strings.TrimSpace(voterKey) + "#" + strings.TrimSpace(clipID)
}

func NewStore(seed []entities.Vote) *Store {
	votes := make(map[string]entities.Vote, len(seed))
	for _, vote := range seed {
		votes[pairKey(vote.VoterKey, vote.ClipID)] = vote
	}
	return &Store{
		votes:      votes,
		outbox:     make(map[string]outboxRecord),
		votability: make(map[string]ports.ClipVotability),
	}
}

// SetVotability seeds the engine-side projection used by votability checks.
// At runtime the real cross-module adapter answers these instead.
func (s *Store) SetVotability(record ports.ClipVotability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votability[strings.TrimSpace(record.ClipID)] = record
}

func (s *Store) ClipVotability(_ context.Context, clipID string) (ports.ClipVotability, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.votability[strings.TrimSpace(clipID)]
	if !ok {
		return ports.ClipVotability{}, false, nil
	}
	return record, true, nil
}

func (s *Store) InsertVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(vote.VoterKey, vote.ClipID)
	if _, exists := s.votes[key]; exists {
		return domainerrors.ErrDuplicateVote
	}
	s.votes[key] = vote
	return nil
}

func (s *Store) GetVoteByVoter(_ context.Context, voterKey string, clipID string) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vote, ok := s.votes[pairKey(voterKey, clipID)]
	if !ok {
		return entities.Vote{}, false, nil
	}
	return vote, true, nil
}

func (s *Store) DeleteVoteByVoter(_ context.Context, voterKey string, clipID string) (entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(voterKey, clipID)
	vote, ok := s.votes[key]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	delete(s.votes, key)
	return vote, nil
}

func (s *Store) ListVotesByClip(_ context.Context, clipID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trimmed := strings.TrimSpace(clipID)
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.ClipID == trimmed {
			items = append(items, vote)
		}
	}
	sortVotes(items)
	return items, nil
}

func (s *Store) ListVotesBySlot(_ context.Context, seasonID string, position int) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trimmed := strings.TrimSpace(seasonID)
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.SeasonID == trimmed && vote.SlotPosition == position {
			items = append(items, vote)
		}
	}
	sortVotes(items)
	return items, nil
}

func (s *Store) PurgeClipVotes(_ context.Context, clipID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := strings.TrimSpace(clipID)
	purged := 0
	for key, vote := range s.votes {
		if vote.ClipID == trimmed {
			delete(s.votes, key)
			purged++
		}
	}
	return purged, nil
}

func sortVotes(items []entities.Vote) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CastAt.Before(items[j].CastAt)
	})
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	outboxID := uuid.NewString()
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    time.Now().UTC(),
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []ports.OutboxMessage
	for _, record := range s.outbox {
		if record.published {
			continue
		}
		pending = append(pending, record.message)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].OutboxID < pending[j].OutboxID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return nil
	}
	record.published = true
	s.outbox[strings.TrimSpace(outboxID)] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
