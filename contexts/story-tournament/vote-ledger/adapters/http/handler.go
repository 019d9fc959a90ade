package http

import (
	"context"
	"log/slog"
	"time"

	"fable/contexts/story-tournament/vote-ledger/application"
	"fable/contexts/story-tournament/vote-ledger/application/commands"
	"fable/contexts/story-tournament/vote-ledger/application/queries"
	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	transporthttp "fable/contexts/story-tournament/vote-ledger/transport/http"
)

// Handler adapts transport-level requests into ledger use cases. Voter
// identity arrives as an opaque key resolved by the HTTP layer.
type Handler struct {
	Votes   commands.VoteUseCase
	Tallies queries.TallyUseCase
	Logger  *slog.Logger
}

func (h *Handler) CastVoteHandler(
	ctx context.Context,
	voterKey string,
	clipID string,
	req transporthttp.CastVoteRequest,
) (transporthttp.CastVoteResponse, error) {
	logger := application.ResolveLogger(h.Logger)

	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		VoterKey: voterKey,
		ClipID:   clipID,
		Weight:   req.Weight,
	})
	if err != nil {
		return transporthttp.CastVoteResponse{}, err
	}

	logger.Info("vote cast request handled",
		"event", "ledger_http_vote_cast",
		"module", "story-tournament/vote-ledger",
		"layer", "transport",
		"clip_id", result.Vote.ClipID,
	)
	return transporthttp.CastVoteResponse{Vote: mapVote(result.Vote)}, nil
}

func (h *Handler) RevokeVoteHandler(
	ctx context.Context,
	voterKey string,
	clipID string,
) (transporthttp.RevokeVoteResponse, error) {
	result, err := h.Votes.RevokeVote(ctx, commands.RevokeVoteCommand{
		VoterKey: voterKey,
		ClipID:   clipID,
	})
	if err != nil {
		return transporthttp.RevokeVoteResponse{}, err
	}
	return transporthttp.RevokeVoteResponse{Vote: mapVote(result.Vote)}, nil
}

func (h *Handler) ClipTallyHandler(ctx context.Context, clipID string) (transporthttp.ClipTallyResponse, error) {
	tally, err := h.Tallies.TallyClip(ctx, clipID)
	if err != nil {
		return transporthttp.ClipTallyResponse{}, err
	}
	return transporthttp.ClipTallyResponse{Tally: mapTally(tally)}, nil
}

func (h *Handler) SlotTallyHandler(
	ctx context.Context,
	seasonID string,
	position int,
) (transporthttp.SlotTallyResponse, error) {
	tally, err := h.Tallies.TallySlot(ctx, seasonID, position)
	if err != nil {
		return transporthttp.SlotTallyResponse{}, err
	}
	return transporthttp.SlotTallyResponse{
		SeasonID: tally.SeasonID,
		Position: tally.Position,
		Clips:    mapTallies(tally.Clips),
	}, nil
}

func (h *Handler) LeaderboardHandler(
	ctx context.Context,
	seasonID string,
	position int,
	limit int,
) (transporthttp.LeaderboardResponse, error) {
	items, err := h.Tallies.SlotLeaderboard(ctx, seasonID, position, limit)
	if err != nil {
		return transporthttp.LeaderboardResponse{}, err
	}
	return transporthttp.LeaderboardResponse{
		SeasonID: seasonID,
		Position: position,
		Items:    mapTallies(items),
	}, nil
}

func mapVote(vote entities.Vote) transporthttp.VoteDTO {
	return transporthttp.VoteDTO{
		VoteID:       vote.ID,
		SeasonID:     vote.SeasonID,
		SlotPosition: vote.SlotPosition,
		ClipID:       vote.ClipID,
		VoterKey:     vote.VoterKey,
		Weight:       vote.Weight,
		CastAt:       vote.CastAt.UTC().Format(time.RFC3339),
	}
}

func mapTally(tally entities.ClipTally) transporthttp.ClipTallyDTO {
	return transporthttp.ClipTallyDTO{
		ClipID: tally.ClipID,
		Votes:  tally.Votes,
		Weight: tally.Weight,
	}
}

func mapTallies(tallies []entities.ClipTally) []transporthttp.ClipTallyDTO {
	items := make([]transporthttp.ClipTallyDTO, 0, len(tallies))
	for _, tally := range tallies {
		items = append(items, mapTally(tally))
	}
	return items
}
