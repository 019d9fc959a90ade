package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fable/contexts/story-tournament/season-service/domain/entities"
	domainerrors "fable/contexts/story-tournament/season-service/domain/errors"
	"fable/contexts/story-tournament/season-service/ports"

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

func (r *Repository) CreateSeason(ctx context.Context, season entities.Season) error {
	row := seasonModelFromEntity(season)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidSeasonInput
		}
		return err
	}
	return nil
}

// UpdateSeason persists lifecycle changes. A partial unique index on
// (genre) WHERE status = 'active' backs the one-active-per-genre rule, so a
// racing activation surfaces here as a unique violation.
func (r *Repository) UpdateSeason(ctx context.Context, season entities.Season) error {
	result := r.db.WithContext(ctx).
		Model(&seasonModel{}).
		Where("season_id = ?", strings.TrimSpace(season.ID)).
		Updates(seasonUpdatesFromEntity(season))
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domainerrors.ErrGenreOccupied
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrSeasonNotFound
	}
	return nil
}

func (r *Repository) GetSeason(ctx context.Context, seasonID string) (entities.Season, error) {
	var row seasonModel
	err := r.db.WithContext(ctx).
		Where("season_id = ?", strings.TrimSpace(seasonID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Season{}, domainerrors.ErrSeasonNotFound
		}
		return entities.Season{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListSeasons(ctx context.Context, filter ports.SeasonFilter) ([]entities.Season, error) {
	tx := r.db.WithContext(ctx).Model(&seasonModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if strings.TrimSpace(filter.Genre) != "" {
		tx = tx.Where("genre = ?", strings.TrimSpace(filter.Genre))
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}

	var rows []seasonModel
	if err := tx.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]entities.Season, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) FindActiveByGenre(ctx context.Context, genre string) (entities.Season, bool, error) {
	var row seasonModel
	err := r.db.WithContext(ctx).
		Where("genre = ? AND status = ?", strings.TrimSpace(genre), string(entities.SeasonStatusActive)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Season{}, false, nil
		}
		return entities.Season{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != row.RequestHash || !bytes.Equal(existing.ResponsePayload, row.ResponsePayload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
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

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
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
		Find(&rows).
		Error; err != nil {
		return nil, err
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
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidSeasonInput
	}
	return nil
}

type seasonModel struct {
	SeasonID            string     `gorm:"column:season_id;primaryKey"`
	Title               string     `gorm:"column:title"`
	Description         string     `gorm:"column:description"`
	Genre               string     `gorm:"column:genre"`
	Status              string     `gorm:"column:status"`
	SlotCount           int        `gorm:"column:slot_count"`
	VotingWindowSeconds int64      `gorm:"column:voting_window_seconds"`
	CreatedBy           string     `gorm:"column:created_by"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
	ActivatedAt         *time.Time `gorm:"column:activated_at"`
	FinishedAt          *time.Time `gorm:"column:finished_at"`
}

func (seasonModel) TableName() string {
	return "seasons"
}

func seasonModelFromEntity(item entities.Season) seasonModel {
	return seasonModel{
		SeasonID:            strings.TrimSpace(item.ID),
		Title:               strings.TrimSpace(item.Title),
		Description:         strings.TrimSpace(item.Description),
		Genre:               strings.TrimSpace(item.Genre),
		Status:              string(item.Status),
		SlotCount:           item.SlotCount,
		VotingWindowSeconds: int64(item.VotingWindow / time.Second),
		CreatedBy:           strings.TrimSpace(item.CreatedBy),
		CreatedAt:           item.CreatedAt.UTC(),
		UpdatedAt:           item.UpdatedAt.UTC(),
		ActivatedAt:         normalizeOptionalTime(item.ActivatedAt),
		FinishedAt:          normalizeOptionalTime(item.FinishedAt),
	}
}

func seasonUpdatesFromEntity(item entities.Season) map[string]any {
	row := seasonModelFromEntity(item)
	return map[string]any{
		"title":                 row.Title,
		"description":           row.Description,
		"genre":                 row.Genre,
		"status":                row.Status,
		"slot_count":            row.SlotCount,
		"voting_window_seconds": row.VotingWindowSeconds,
		"created_by":            row.CreatedBy,
		"updated_at":            row.UpdatedAt,
		"activated_at":          row.ActivatedAt,
		"finished_at":           row.FinishedAt,
	}
}

func (m seasonModel) toEntity() entities.Season {
	return entities.Season{
		ID:           m.SeasonID,
		Title:        m.Title,
		Description:  m.Description,
		Genre:        m.Genre,
		Status:       entities.SeasonStatus(m.Status),
		SlotCount:    m.SlotCount,
		VotingWindow: time.Duration(m.VotingWindowSeconds) * time.Second,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
		ActivatedAt:  normalizeOptionalTime(m.ActivatedAt),
		FinishedAt:   normalizeOptionalTime(m.FinishedAt),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "season_idempotency"
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
	return "season_outbox"
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
