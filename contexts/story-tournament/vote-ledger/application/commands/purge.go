package commands

import (
	"context"
	"log/slog"
	"strings"

	application "fable/contexts/story-tournament/vote-ledger/application"
	domainerrors "fable/contexts/story-tournament/vote-ledger/domain/errors"
	"fable/contexts/story-tournament/vote-ledger/ports"
)

// PurgeClipVotesUseCase drops every ballot for one clip. The slot-engine's
// clip deletion flow calls it through a cross-module port.
type PurgeClipVotesUseCase struct {
	Votes  ports.VoteRepository
	Logger *slog.Logger
}

func (uc PurgeClipVotesUseCase) Execute(ctx context.Context, clipID string) (int, error) {
	logger := application.ResolveLogger(uc.Logger)
	trimmed := strings.TrimSpace(clipID)
	if trimmed == "" {
		return 0, domainerrors.ErrInvalidVoteInput
	}
	purged, err := uc.Votes.PurgeClipVotes(ctx, trimmed)
	if err != nil {
		return 0, err
	}
	logger.Info("clip votes purged",
		"event", "ledger_clip_votes_purged",
		"module", "story-tournament/vote-ledger",
		"layer", "application",
		"clip_id", trimmed,
		"purged_count", purged,
	)
	return purged, nil
}
