package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetClip(ctx context.Context, clipID string) (entities.Clip, error) {
	var row clipModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(clipID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Clip{}, domainerrors.ErrClipNotFound
		}
		return entities.Clip{}, r.logError("engine_repo_get_clip_failed", err, "clip_id", strings.TrimSpace(clipID))
	}
	return row.toEntity(), nil
}

func (r *Repository) ListClips(ctx context.Context, filter ports.ClipFilter) ([]entities.Clip, error) {
	tx := r.db.WithContext(ctx).Model(&clipModel{})
	if seasonID := strings.TrimSpace(filter.SeasonID); seasonID != "" {
		tx = tx.Where("season_id = ?", seasonID)
	}
	if filter.Position != nil {
		tx = tx.Where("slot_position = ?", *filter.Position)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		tx = tx.Where("status IN ?", statuses)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}

	var rows []clipModel
	if err := tx.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("engine_repo_list_clips_failed", err,
			"season_id", strings.TrimSpace(filter.SeasonID),
		)
	}
	return toClipEntities(rows), nil
}

func (r *Repository) CountEligibleClips(ctx context.Context, seasonID string, position int) (int, error) {
	count, err := countEligibleTx(r.db.WithContext(ctx), seasonID, position)
	if err != nil {
		return 0, r.logError("engine_repo_count_eligible_failed", err,
			"season_id", strings.TrimSpace(seasonID),
			"position", position,
		)
	}
	return count, nil
}

func countEligibleTx(tx *gorm.DB, seasonID string, position int) (int, error) {
	var count int64
	err := tx.Model(&clipModel{}).
		Where("season_id = ?", strings.TrimSpace(seasonID)).
		Where("slot_position = ?", position).
		Where("status IN ?", []string{
			string(entities.ClipStatusPending),
			string(entities.ClipStatusActive),
		}).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) GetSlot(ctx context.Context, seasonID string, position int) (entities.Slot, error) {
	var row slotModel
	err := r.db.WithContext(ctx).
		Where("season_id = ? AND position = ?", strings.TrimSpace(seasonID), position).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Slot{}, domainerrors.ErrSlotNotFound
		}
		return entities.Slot{}, r.logError("engine_repo_get_slot_failed", err,
			"season_id", strings.TrimSpace(seasonID),
			"position", position,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListSlots(ctx context.Context, seasonID string) ([]entities.Slot, error) {
	var rows []slotModel
	err := r.db.WithContext(ctx).
		Where("season_id = ?", strings.TrimSpace(seasonID)).
		Order("position ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("engine_repo_list_slots_failed", err, "season_id", strings.TrimSpace(seasonID))
	}
	items := make([]entities.Slot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListExpiredVotingSlots(ctx context.Context, now time.Time, limit int) ([]entities.Slot, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []slotModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.SlotStatusVoting)).
		Where("timer_started_at IS NOT NULL").
		Where("timer_ends_at > timer_started_at").
		Where("timer_ends_at <= ?", now.UTC()).
		Order("timer_ends_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("engine_repo_list_expired_slots_failed", err, "limit", limit)
	}
	items := make([]entities.Slot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetSeasonRef(ctx context.Context, seasonID string) (entities.SeasonRef, bool, error) {
	var row seasonRefModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(seasonID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SeasonRef{}, false, nil
		}
		return entities.SeasonRef{}, false, r.logError("engine_repo_get_season_ref_failed", err,
			"season_id", strings.TrimSpace(seasonID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveSeasonRef(ctx context.Context, ref entities.SeasonRef) error {
	row := seasonRefModelFromEntity(ref)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"genre":                 row.Genre,
			"status":                row.Status,
			"slot_count":            row.SlotCount,
			"voting_window_seconds": row.VotingWindowSeconds,
			"updated_at":            row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("engine_repo_save_season_ref_failed", create.Error, "season_id", row.ID)
	}
	return nil
}

func (r *Repository) ListActiveSeasonRefs(ctx context.Context) ([]entities.SeasonRef, error) {
	var rows []seasonRefModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.SeasonRefStatusActive)).
		Order("id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("engine_repo_list_active_season_refs_failed", err)
	}
	items := make([]entities.SeasonRef, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// ApplyChangeSet runs one tournament change atomically: clip upserts and
// deletes first, then imperative slot writes guarded by the version each
// caller observed, then a reconcile pass that locks each listed slot row,
// recounts eligible clips from clip rows, and persists whatever transition
// the evaluation produced. A version mismatch anywhere rolls the whole set
// back with ErrStaleRead.
func (r *Repository) ApplyChangeSet(ctx context.Context, change ports.ChangeSet) ([]entities.Evaluation, error) {
	seasonID := strings.TrimSpace(change.SeasonID)
	evaluations := make([]entities.Evaluation, 0, len(change.Reconcile))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, clip := range change.SaveClips {
			if err := saveClipTx(tx, clip); err != nil {
				return err
			}
		}
		for _, clipID := range change.DeleteClips {
			if err := tx.Where("id = ?", strings.TrimSpace(clipID)).
				Delete(&clipModel{}).Error; err != nil {
				return err
			}
		}
		for _, slot := range change.SaveSlots {
			if err := saveSlotTx(tx, slot); err != nil {
				return err
			}
		}

		for _, position := range change.Reconcile {
			var row slotModel
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("season_id = ? AND position = ?", seasonID, position).
				First(&row).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domainerrors.ErrSlotNotFound
				}
				return err
			}

			eligible, err := countEligibleTx(tx, seasonID, position)
			if err != nil {
				return err
			}

			eval := entities.EvaluateSlot(row.toEntity(), eligible, change.Now, change.Window)
			if eval.Changed {
				eval.Slot.Version = row.Version + 1
				eval.Slot.UpdatedAt = change.Now
				next := slotModelFromEntity(eval.Slot)
				result := tx.Model(&slotModel{}).
					Where("season_id = ? AND position = ? AND version = ?", next.SeasonID, next.Position, row.Version).
					Updates(slotUpdates(next))
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					return domainerrors.ErrStaleRead
				}
			}
			evaluations = append(evaluations, eval)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStaleRead) ||
			errors.Is(err, domainerrors.ErrSlotNotFound) {
			return nil, err
		}
		return nil, r.logError("engine_repo_apply_change_set_failed", err,
			"season_id", seasonID,
			"reconcile_count", len(change.Reconcile),
		)
	}
	return evaluations, nil
}

func saveClipTx(tx *gorm.DB, clip entities.Clip) error {
	row := clipModelFromEntity(clip)
	// vote_count/vote_weight stay out of the conflict update: those columns
	// belong to ApplyVoteDelta and must survive concurrent ledger deltas.
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"season_id":        row.SeasonID,
			"slot_position":    row.SlotPosition,
			"status":           row.Status,
			"title":            row.Title,
			"author_name":      row.AuthorName,
			"playback_url":     row.PlaybackURL,
			"thumbnail_url":    row.ThumbnailURL,
			"duration_seconds": row.DurationSeconds,
			"submitted_by":     row.SubmittedBy,
			"updated_at":       row.UpdatedAt,
		}),
	}).Create(&row).Error
}

func saveSlotTx(tx *gorm.DB, slot entities.Slot) error {
	observed := slot.Version
	row := slotModelFromEntity(slot)

	if observed == 0 {
		row.Version = 1
		create := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "season_id"}, {Name: "position"}},
			DoNothing: true,
		}).Create(&row)
		if create.Error != nil {
			return create.Error
		}
		if create.RowsAffected == 0 {
			return domainerrors.ErrStaleRead
		}
		return nil
	}

	row.Version = observed + 1
	result := tx.Model(&slotModel{}).
		Where("season_id = ? AND position = ? AND version = ?", row.SeasonID, row.Position, observed).
		Updates(slotUpdates(row))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrStaleRead
	}
	return nil
}

func slotUpdates(row slotModel) map[string]any {
	return map[string]any{
		"status":           row.Status,
		"timer_started_at": row.TimerStartedAt,
		"timer_ends_at":    row.TimerEndsAt,
		"winner_clip_id":   row.WinnerClipID,
		"version":          row.Version,
		"updated_at":       row.UpdatedAt,
	}
}

func (r *Repository) ApplyVoteDelta(ctx context.Context, clipID string, votes int, weight int) error {
	result := r.db.WithContext(ctx).
		Model(&clipModel{}).
		Where("id = ?", strings.TrimSpace(clipID)).
		Updates(map[string]any{
			"vote_count":  gorm.Expr("vote_count + ?", votes),
			"vote_weight": gorm.Expr("vote_weight + ?", weight),
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return r.logError("engine_repo_apply_vote_delta_failed", result.Error,
			"clip_id", strings.TrimSpace(clipID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrClipNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("engine_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("engine_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ClipID:          row.ClipID,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     strings.TrimSpace(record.RequestHash),
		ClipID:          strings.TrimSpace(record.ClipID),
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("engine_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("engine_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.ClipID != row.ClipID ||
		!bytes.Equal(existing.ResponsePayload, row.ResponsePayload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("engine_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("engine_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("engine_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("engine_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("engine_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrStaleRead
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("engine_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("engine_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrIdempotencyConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "story-tournament/slot-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("tournament repository operation failed", fields...)
	if isUndefinedTable(err) {
		return fmt.Errorf("%w: %v", domainerrors.ErrStoreUnavailable, err)
	}
	return err
}

type clipModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	SeasonID        string    `gorm:"column:season_id"`
	SlotPosition    *int      `gorm:"column:slot_position"`
	Status          string    `gorm:"column:status"`
	Title           string    `gorm:"column:title"`
	AuthorName      string    `gorm:"column:author_name"`
	PlaybackURL     string    `gorm:"column:playback_url"`
	ThumbnailURL    string    `gorm:"column:thumbnail_url"`
	DurationSeconds int       `gorm:"column:duration_seconds"`
	VoteCount       int       `gorm:"column:vote_count"`
	VoteWeight      int       `gorm:"column:vote_weight"`
	SubmittedBy     string    `gorm:"column:submitted_by"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (clipModel) TableName() string {
	return "clips"
}

func clipModelFromEntity(clip entities.Clip) clipModel {
	row := clipModel{
		ID:              strings.TrimSpace(clip.ID),
		SeasonID:        strings.TrimSpace(clip.SeasonID),
		Status:          string(clip.Status),
		Title:           strings.TrimSpace(clip.Title),
		AuthorName:      strings.TrimSpace(clip.AuthorName),
		PlaybackURL:     strings.TrimSpace(clip.PlaybackURL),
		ThumbnailURL:    strings.TrimSpace(clip.ThumbnailURL),
		DurationSeconds: clip.DurationSeconds,
		VoteCount:       clip.VoteCount,
		VoteWeight:      clip.VoteWeight,
		SubmittedBy:     strings.TrimSpace(clip.SubmittedBy),
		CreatedAt:       clip.CreatedAt.UTC(),
		UpdatedAt:       clip.UpdatedAt.UTC(),
	}
	if clip.SlotPosition != nil {
		position := *clip.SlotPosition
		row.SlotPosition = &position
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m clipModel) toEntity() entities.Clip {
	clip := entities.Clip{
		ID:              m.ID,
		SeasonID:        m.SeasonID,
		Status:          entities.ClipStatus(m.Status),
		Title:           m.Title,
		AuthorName:      m.AuthorName,
		PlaybackURL:     m.PlaybackURL,
		ThumbnailURL:    m.ThumbnailURL,
		DurationSeconds: m.DurationSeconds,
		VoteCount:       m.VoteCount,
		VoteWeight:      m.VoteWeight,
		SubmittedBy:     m.SubmittedBy,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.SlotPosition != nil {
		position := *m.SlotPosition
		clip.SlotPosition = &position
	}
	return clip
}

type slotModel struct {
	SeasonID       string     `gorm:"column:season_id;primaryKey"`
	Position       int        `gorm:"column:position;primaryKey"`
	Status         string     `gorm:"column:status"`
	TimerStartedAt *time.Time `gorm:"column:timer_started_at"`
	TimerEndsAt    *time.Time `gorm:"column:timer_ends_at"`
	WinnerClipID   *string    `gorm:"column:winner_clip_id"`
	Version        int64      `gorm:"column:version"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (slotModel) TableName() string {
	return "slots"
}

func slotModelFromEntity(slot entities.Slot) slotModel {
	row := slotModel{
		SeasonID:       strings.TrimSpace(slot.SeasonID),
		Position:       slot.Position,
		Status:         string(slot.Status),
		TimerStartedAt: normalizeOptionalTime(slot.TimerStartedAt),
		TimerEndsAt:    normalizeOptionalTime(slot.TimerEndsAt),
		Version:        slot.Version,
		CreatedAt:      slot.CreatedAt.UTC(),
		UpdatedAt:      slot.UpdatedAt.UTC(),
	}
	if slot.WinnerClipID != nil && strings.TrimSpace(*slot.WinnerClipID) != "" {
		winner := strings.TrimSpace(*slot.WinnerClipID)
		row.WinnerClipID = &winner
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m slotModel) toEntity() entities.Slot {
	slot := entities.Slot{
		SeasonID:       m.SeasonID,
		Position:       m.Position,
		Status:         entities.SlotStatus(m.Status),
		TimerStartedAt: normalizeOptionalTime(m.TimerStartedAt),
		TimerEndsAt:    normalizeOptionalTime(m.TimerEndsAt),
		Version:        m.Version,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if m.WinnerClipID != nil {
		winner := strings.TrimSpace(*m.WinnerClipID)
		slot.WinnerClipID = &winner
	}
	return slot
}

type seasonRefModel struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	Genre               string    `gorm:"column:genre"`
	Status              string    `gorm:"column:status"`
	SlotCount           int       `gorm:"column:slot_count"`
	VotingWindowSeconds int64     `gorm:"column:voting_window_seconds"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (seasonRefModel) TableName() string {
	return "season_refs"
}

func seasonRefModelFromEntity(ref entities.SeasonRef) seasonRefModel {
	row := seasonRefModel{
		ID:                  strings.TrimSpace(ref.ID),
		Genre:               strings.TrimSpace(ref.Genre),
		Status:              string(ref.Status),
		SlotCount:           ref.SlotCount,
		VotingWindowSeconds: int64(ref.VotingWindow / time.Second),
		UpdatedAt:           ref.UpdatedAt.UTC(),
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return row
}

func (m seasonRefModel) toEntity() entities.SeasonRef {
	return entities.SeasonRef{
		ID:           m.ID,
		Genre:        m.Genre,
		Status:       entities.SeasonRefStatus(m.Status),
		SlotCount:    m.SlotCount,
		VotingWindow: time.Duration(m.VotingWindowSeconds) * time.Second,
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ClipID          string    `gorm:"column:clip_id"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "slot_engine_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "slot_engine_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "slot_engine_event_dedup"
}

func toClipEntities(rows []clipModel) []entities.Clip {
	items := make([]entities.Clip, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.TournamentRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
