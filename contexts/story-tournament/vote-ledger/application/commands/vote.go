package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "fable/contexts/story-tournament/vote-ledger/application"
	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	domainerrors "fable/contexts/story-tournament/vote-ledger/domain/errors"
	"fable/contexts/story-tournament/vote-ledger/ports"
)

// CastVoteCommand is the write-model input for casting a ballot. A zero
// weight means the default weight.
type CastVoteCommand struct {
	VoterKey string
	ClipID   string
	Weight   int
}

type CastVoteResult struct {
	Vote entities.Vote
}

// RevokeVoteCommand withdraws the voter's ballot for one clip.
type RevokeVoteCommand struct {
	VoterKey string
	ClipID   string
}

type RevokeVoteResult struct {
	Vote entities.Vote
}

// VoteUseCase orchestrates ballot writes. Duplicate protection is not a
// read-then-write check: the store's unique (voter_key, clip_id) constraint
// decides, so two concurrent casts for the same pair settle to exactly one
// row no matter how their reads interleaved.
type VoteUseCase struct {
	Votes  ports.VoteRepository
	Clips  ports.ClipDirectory
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voterKey := strings.TrimSpace(cmd.VoterKey)
	clipID := strings.TrimSpace(cmd.ClipID)
	weight := cmd.Weight
	if weight == 0 {
		weight = entities.DefaultVoteWeight
	}
	if voterKey == "" || clipID == "" || !entities.ValidWeight(weight) {
		logger.Warn("vote cast validation failed",
			"event", "ledger_vote_cast_validation_failed",
			"module", "story-tournament/vote-ledger",
			"layer", "application",
			"voter_key", voterKey,
			"clip_id", clipID,
			"weight", cmd.Weight,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	votability, found, err := uc.Clips.ClipVotability(ctx, clipID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !found || !votability.ClipEligible {
		return CastVoteResult{}, domainerrors.ErrClipNotVotable
	}
	if !votability.SlotVoting {
		return CastVoteResult{}, domainerrors.ErrVotingClosed
	}

	now := uc.now()
	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	vote := entities.Vote{
		ID:           voteID,
		SeasonID:     votability.SeasonID,
		SlotPosition: votability.SlotPosition,
		ClipID:       clipID,
		VoterKey:     voterKey,
		Weight:       weight,
		CastAt:       now,
	}
	if err := uc.Votes.InsertVote(ctx, vote); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateVote) {
			logger.Info("duplicate vote rejected",
				"event", "ledger_vote_duplicate_rejected",
				"module", "story-tournament/vote-ledger",
				"layer", "application",
				"voter_key", voterKey,
				"clip_id", clipID,
			)
		}
		return CastVoteResult{}, err
	}
	if err := uc.appendVoteEvent(ctx, "tournament.vote.cast", vote, now); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("vote cast",
		"event", "ledger_vote_cast",
		"module", "story-tournament/vote-ledger",
		"layer", "application",
		"vote_id", vote.ID,
		"clip_id", vote.ClipID,
		"season_id", vote.SeasonID,
		"slot_position", vote.SlotPosition,
		"weight", vote.Weight,
	)
	return CastVoteResult{Vote: vote}, nil
}

func (uc VoteUseCase) RevokeVote(ctx context.Context, cmd RevokeVoteCommand) (RevokeVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voterKey := strings.TrimSpace(cmd.VoterKey)
	clipID := strings.TrimSpace(cmd.ClipID)
	if voterKey == "" || clipID == "" {
		logger.Warn("vote revoke validation failed",
			"event", "ledger_vote_revoke_validation_failed",
			"module", "story-tournament/vote-ledger",
			"layer", "application",
			"voter_key", voterKey,
			"clip_id", clipID,
		)
		return RevokeVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	now := uc.now()
	vote, err := uc.Votes.DeleteVoteByVoter(ctx, voterKey, clipID)
	if err != nil {
		return RevokeVoteResult{}, err
	}
	if err := uc.appendVoteEvent(ctx, "tournament.vote.revoked", vote, now); err != nil {
		return RevokeVoteResult{}, err
	}

	logger.Info("vote revoked",
		"event", "ledger_vote_revoked",
		"module", "story-tournament/vote-ledger",
		"layer", "application",
		"vote_id", vote.ID,
		"clip_id", vote.ClipID,
		"season_id", vote.SeasonID,
		"slot_position", vote.SlotPosition,
	)
	return RevokeVoteResult{Vote: vote}, nil
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc VoteUseCase) appendVoteEvent(
	ctx context.Context,
	eventType string,
	vote entities.Vote,
	occurredAt time.Time,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newVoteEnvelope(eventID, eventType, vote.ClipID, occurredAt, map[string]any{
		"vote_id":       vote.ID,
		"season_id":     vote.SeasonID,
		"slot_position": vote.SlotPosition,
		"clip_id":       vote.ClipID,
		"voter_key":     vote.VoterKey,
		"weight":        vote.Weight,
		"occurred_at":   occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
