package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"fable/contexts/story-tournament/season-service/domain/entities"
	domainerrors "fable/contexts/story-tournament/season-service/domain/errors"
	"fable/contexts/story-tournament/season-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type Store struct {
	mu sync.RWMutex

	seasons map[string]entities.Season
	outbox  map[string]outboxRecord

	idempotency map[string]ports.IdempotencyRecord
}

func NewStore(seed []entities.Season) *Store {
	seasons := make(map[string]entities.Season, len(seed))
	for _, item := range seed {
		seasons[item.ID] = item
	}
	return &Store{
		seasons:     seasons,
		outbox:      make(map[string]outboxRecord),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) CreateSeason(_ context.Context, season entities.Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seasons[season.ID]; exists {
		return domainerrors.ErrInvalidSeasonInput
	}
	s.seasons[season.ID] = season
	return nil
}

func (s *Store) UpdateSeason(_ context.Context, season entities.Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seasons[season.ID]; !exists {
		return domainerrors.ErrSeasonNotFound
	}
	s.seasons[season.ID] = season
	return nil
}

func (s *Store) GetSeason(_ context.Context, seasonID string) (entities.Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.seasons[strings.TrimSpace(seasonID)]
	if !exists {
		return entities.Season{}, domainerrors.ErrSeasonNotFound
	}
	return item, nil
}

func (s *Store) ListSeasons(_ context.Context, filter ports.SeasonFilter) ([]entities.Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Season, 0, len(s.seasons))
	for _, season := range s.seasons {
		if filter.Status != "" && season.Status != filter.Status {
			continue
		}
		if filter.Genre != "" && season.Genre != filter.Genre {
			continue
		}
		items = append(items, season)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) FindActiveByGenre(_ context.Context, genre string) (entities.Season, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, season := range s.seasons {
		if season.Status == entities.SeasonStatusActive && season.Genre == genre {
			return season, true, nil
		}
	}
	return entities.Season{}, false, nil
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

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.idempotency[record.Key]
	if exists {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		if !bytes.Equal(existing.ResponsePayload, record.ResponsePayload) {
			return domainerrors.ErrIdempotencyConflict
		}
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
