package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-memory tournament repository used by tests and local
// wiring. All change sets run under one lock, which gives the same
// serialization the postgres adapter gets from row locks.
type Store struct {
	mu sync.RWMutex

	clips       map[string]entities.Clip
	slots       map[string]entities.Slot
	seasons     map[string]entities.SeasonRef
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord
}

func NewStore(seed []entities.Clip) *Store {
	clips := make(map[string]entities.Clip, len(seed))
	for _, clip := range seed {
		clips[clip.ID] = cloneClip(clip)
	}
	return &Store{
		clips:       clips,
		slots:       make(map[string]entities.Slot),
		seasons:     make(map[string]entities.SeasonRef),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
	}
}

func slotKey(seasonID string, position int) string {
	return fmt.Sprintf("%s#%d", strings.TrimSpace(seasonID), position)
}

func (s *Store) SetSeasonRef(ref entities.SeasonRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref.ID = strings.TrimSpace(ref.ID)
	s.seasons[ref.ID] = ref
}

func (s *Store) SetSlot(slot entities.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.Version == 0 {
		slot.Version = 1
	}
	s.slots[slotKey(slot.SeasonID, slot.Position)] = cloneSlot(slot)
}

func (s *Store) SetClip(clip entities.Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[strings.TrimSpace(clip.ID)] = cloneClip(clip)
}

func (s *Store) GetClip(_ context.Context, clipID string) (entities.Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clip, ok := s.clips[strings.TrimSpace(clipID)]
	if !ok {
		return entities.Clip{}, domainerrors.ErrClipNotFound
	}
	return cloneClip(clip), nil
}

func (s *Store) ListClips(_ context.Context, filter ports.ClipFilter) ([]entities.Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var clips []entities.Clip
	for _, clip := range s.clips {
		if !matchesFilter(clip, filter) {
			continue
		}
		clips = append(clips, cloneClip(clip))
	}
	sort.Slice(clips, func(i, j int) bool {
		if clips[i].CreatedAt.Equal(clips[j].CreatedAt) {
			return clips[i].ID < clips[j].ID
		}
		return clips[i].CreatedAt.Before(clips[j].CreatedAt)
	})
	if filter.Limit > 0 && len(clips) > filter.Limit {
		clips = clips[:filter.Limit]
	}
	return clips, nil
}

func matchesFilter(clip entities.Clip, filter ports.ClipFilter) bool {
	if seasonID := strings.TrimSpace(filter.SeasonID); seasonID != "" && clip.SeasonID != seasonID {
		return false
	}
	if filter.Position != nil {
		if clip.SlotPosition == nil || *clip.SlotPosition != *filter.Position {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		matched := false
		for _, status := range filter.Statuses {
			if clip.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (s *Store) CountEligibleClips(_ context.Context, seasonID string, position int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countEligibleLocked(strings.TrimSpace(seasonID), position), nil
}

func (s *Store) countEligibleLocked(seasonID string, position int) int {
	count := 0
	for _, clip := range s.clips {
		if clip.SeasonID != seasonID {
			continue
		}
		if clip.SlotPosition == nil || *clip.SlotPosition != position {
			continue
		}
		if clip.Status.Eligible() {
			count++
		}
	}
	return count
}

func (s *Store) GetSlot(_ context.Context, seasonID string, position int) (entities.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[slotKey(seasonID, position)]
	if !ok {
		return entities.Slot{}, domainerrors.ErrSlotNotFound
	}
	return cloneSlot(slot), nil
}

func (s *Store) ListSlots(_ context.Context, seasonID string) ([]entities.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seasonID = strings.TrimSpace(seasonID)
	var slots []entities.Slot
	for _, slot := range s.slots {
		if slot.SeasonID != seasonID {
			continue
		}
		slots = append(slots, cloneSlot(slot))
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Position < slots[j].Position
	})
	return slots, nil
}

func (s *Store) ListExpiredVotingSlots(_ context.Context, now time.Time, limit int) ([]entities.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var slots []entities.Slot
	for _, slot := range s.slots {
		if slot.Status != entities.SlotStatusVoting {
			continue
		}
		if !slot.TimerExpired(now) {
			continue
		}
		slots = append(slots, cloneSlot(slot))
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].SeasonID == slots[j].SeasonID {
			return slots[i].Position < slots[j].Position
		}
		return slots[i].SeasonID < slots[j].SeasonID
	})
	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

func (s *Store) GetSeasonRef(_ context.Context, seasonID string) (entities.SeasonRef, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.seasons[strings.TrimSpace(seasonID)]
	if !ok {
		return entities.SeasonRef{}, false, nil
	}
	return ref, true, nil
}

func (s *Store) SaveSeasonRef(_ context.Context, ref entities.SeasonRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref.ID = strings.TrimSpace(ref.ID)
	s.seasons[ref.ID] = ref
	return nil
}

func (s *Store) ListActiveSeasonRefs(_ context.Context) ([]entities.SeasonRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []entities.SeasonRef
	for _, ref := range s.seasons {
		if ref.Status != entities.SeasonRefStatusActive {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].ID < refs[j].ID
	})
	return refs, nil
}

// ApplyChangeSet mirrors the postgres adapter's transactional semantics: all
// writes land or none do, slot versions guard against interleaved writers,
// and the reconcile pass recounts eligibility after the clip writes.
func (s *Store) ApplyChangeSet(_ context.Context, change ports.ChangeSet) ([]entities.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range change.SaveSlots {
		existing, ok := s.slots[slotKey(slot.SeasonID, slot.Position)]
		if ok && slot.Version != 0 && existing.Version != slot.Version {
			return nil, domainerrors.ErrStaleRead
		}
	}

	for _, clip := range change.SaveClips {
		s.clips[clip.ID] = cloneClip(clip)
	}
	for _, clipID := range change.DeleteClips {
		delete(s.clips, strings.TrimSpace(clipID))
	}
	for _, slot := range change.SaveSlots {
		key := slotKey(slot.SeasonID, slot.Position)
		if existing, ok := s.slots[key]; ok {
			slot.Version = existing.Version + 1
		} else if slot.Version == 0 {
			slot.Version = 1
		}
		s.slots[key] = cloneSlot(slot)
	}

	evaluations := make([]entities.Evaluation, 0, len(change.Reconcile))
	for _, position := range change.Reconcile {
		key := slotKey(change.SeasonID, position)
		slot, ok := s.slots[key]
		if !ok {
			return nil, domainerrors.ErrSlotNotFound
		}
		eligible := s.countEligibleLocked(change.SeasonID, position)
		eval := entities.EvaluateSlot(cloneSlot(slot), eligible, change.Now, change.Window)
		if eval.Changed {
			eval.Slot.Version = slot.Version + 1
			eval.Slot.UpdatedAt = change.Now
			s.slots[key] = cloneSlot(eval.Slot)
		}
		evaluations = append(evaluations, eval)
	}
	return evaluations, nil
}

func (s *Store) ApplyVoteDelta(_ context.Context, clipID string, votes int, weight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clip, ok := s.clips[strings.TrimSpace(clipID)]
	if !ok {
		return domainerrors.ErrClipNotFound
	}
	clip.VoteCount += votes
	clip.VoteWeight += weight
	s.clips[clip.ID] = clip
	return nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[strings.TrimSpace(record.Key)] = record
	return nil
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

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventID = strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[eventID]
	if ok && time.Now().UTC().Before(existing.expiresAt) {
		if existing.payloadHash != payloadHash {
			return false, domainerrors.ErrIdempotencyConflict
		}
		return true, nil
	}
	s.eventDedup[eventID] = dedupRecord{payloadHash: payloadHash, expiresAt: expiresAt}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneSlot(slot entities.Slot) entities.Slot {
	cloned := slot
	if slot.TimerStartedAt != nil {
		startedAt := *slot.TimerStartedAt
		cloned.TimerStartedAt = &startedAt
	}
	if slot.TimerEndsAt != nil {
		endsAt := *slot.TimerEndsAt
		cloned.TimerEndsAt = &endsAt
	}
	if slot.WinnerClipID != nil {
		winner := *slot.WinnerClipID
		cloned.WinnerClipID = &winner
	}
	return cloned
}

func cloneClip(clip entities.Clip) entities.Clip {
	cloned := clip
	if clip.SlotPosition != nil {
		position := *clip.SlotPosition
		cloned.SlotPosition = &position
	}
	return cloned
}

var _ ports.TournamentRepository = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
