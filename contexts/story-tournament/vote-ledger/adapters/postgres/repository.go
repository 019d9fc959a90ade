package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	domainerrors "fable/contexts/story-tournament/vote-ledger/domain/errors"
	"fable/contexts/story-tournament/vote-ledger/ports"

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

type voteModel struct {
	VoteID       string    `gorm:"column:vote_id;primaryKey"`
	SeasonID     string    `gorm:"column:season_id"`
	SlotPosition int       `gorm:"column:slot_position"`
	ClipID       string    `gorm:"column:clip_id"`
	VoterKey     string    `gorm:"column:voter_key"`
	Weight       int       `gorm:"column:weight"`
	CastAt       time.Time `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "votes"
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
	return "vote_outbox"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		VoteID:       strings.TrimSpace(vote.ID),
		SeasonID:     strings.TrimSpace(vote.SeasonID),
		SlotPosition: vote.SlotPosition,
		ClipID:       strings.TrimSpace(vote.ClipID),
		VoterKey:     strings.TrimSpace(vote.VoterKey),
		Weight:       vote.Weight,
		CastAt:       vote.CastAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		ID:           m.VoteID,
		SeasonID:     m.SeasonID,
		SlotPosition: m.SlotPosition,
		ClipID:       m.ClipID,
		VoterKey:     m.VoterKey,
		Weight:       m.Weight,
		CastAt:       m.CastAt,
	}
}

// InsertVote appends one ballot row. The unique index on
// (voter_key, clip_id) is what enforces one vote per voter per clip, so a
// concurrent duplicate surfaces here as a unique violation regardless of
// what any earlier read saw.
func (r *Repository) InsertVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateVote
		}
		return r.logError("ledger_repo_insert_vote_failed", err,
			"vote_id", row.VoteID,
			"clip_id", row.ClipID,
			"voter_key", row.VoterKey,
		)
	}
	return nil
}

func (r *Repository) GetVoteByVoter(ctx context.Context, voterKey string, clipID string) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("voter_key = ?", strings.TrimSpace(voterKey)).
		Where("clip_id = ?", strings.TrimSpace(clipID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("ledger_repo_get_vote_failed", err,
			"clip_id", strings.TrimSpace(clipID),
			"voter_key", strings.TrimSpace(voterKey),
		)
	}
	return row.toEntity(), true, nil
}

// DeleteVoteByVoter removes the pair's ballot and returns it. The row is
// locked before deletion so two concurrent revokes cannot both report the
// same removed vote.
func (r *Repository) DeleteVoteByVoter(ctx context.Context, voterKey string, clipID string) (entities.Vote, error) {
	var row voteModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("voter_key = ?", strings.TrimSpace(voterKey)).
			Where("clip_id = ?", strings.TrimSpace(clipID)).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrVoteNotFound
			}
			return err
		}
		return tx.Delete(&voteModel{}, "vote_id = ?", row.VoteID).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVoteNotFound) {
			return entities.Vote{}, err
		}
		return entities.Vote{}, r.logError("ledger_repo_delete_vote_failed", err,
			"clip_id", strings.TrimSpace(clipID),
			"voter_key", strings.TrimSpace(voterKey),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListVotesByClip(ctx context.Context, clipID string) ([]entities.Vote, error) {
	var rows []voteModel
	err := r.db.WithContext(ctx).
		Where("clip_id = ?", strings.TrimSpace(clipID)).
		Order("cast_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("ledger_repo_list_votes_by_clip_failed", err, "clip_id", strings.TrimSpace(clipID))
	}
	return votesToEntities(rows), nil
}

func (r *Repository) ListVotesBySlot(ctx context.Context, seasonID string, position int) ([]entities.Vote, error) {
	var rows []voteModel
	err := r.db.WithContext(ctx).
		Where("season_id = ?", strings.TrimSpace(seasonID)).
		Where("slot_position = ?", position).
		Order("cast_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("ledger_repo_list_votes_by_slot_failed", err,
			"season_id", strings.TrimSpace(seasonID),
			"slot_position", position,
		)
	}
	return votesToEntities(rows), nil
}

func (r *Repository) PurgeClipVotes(ctx context.Context, clipID string) (int, error) {
	result := r.db.WithContext(ctx).
		Where("clip_id = ?", strings.TrimSpace(clipID)).
		Delete(&voteModel{})
	if result.Error != nil {
		return 0, r.logError("ledger_repo_purge_clip_votes_failed", result.Error, "clip_id", strings.TrimSpace(clipID))
	}
	return int(result.RowsAffected), nil
}

func votesToEntities(rows []voteModel) []entities.Vote {
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("ledger_repo_outbox_marshal_failed", err, "event_type", envelope.EventType)
	}
	row := outboxModel{
		OutboxID:     uuid.NewString(),
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("ledger_repo_outbox_append_failed", err, "event_type", envelope.EventType)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []outboxModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_outbox_list_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	published := publishedAt.UTC()
	err := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &published,
		}).Error
	if err != nil {
		return r.logError("ledger_repo_outbox_mark_failed", err, "outbox_id", strings.TrimSpace(outboxID))
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "story-tournament/vote-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("vote ledger repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
