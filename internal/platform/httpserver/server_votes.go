package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	ledgererrors "fable/contexts/story-tournament/vote-ledger/domain/errors"
	ledgerhttp "fable/contexts/story-tournament/vote-ledger/transport/http"
)

func writeVoteError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{Code: code, Message: message})
}

func writeVoteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrInvalidVoteInput):
		writeVoteError(w, http.StatusBadRequest, "invalid_vote_input", err.Error())
	case errors.Is(err, ledgererrors.ErrDuplicateVote):
		writeVoteError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, ledgererrors.ErrVoteNotFound):
		writeVoteError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrClipNotVotable):
		writeVoteError(w, http.StatusConflict, "clip_not_votable", err.Error())
	case errors.Is(err, ledgererrors.ErrVotingClosed):
		writeVoteError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, ledgererrors.ErrStoreUnavailable):
		writeVoteError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		writeVoteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// requireVoterKey resolves the opaque voter identity. Authenticated callers
// send X-User-Id; anonymous ballots ride on the X-Voter-Key device token.
func requireVoterKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	voterKey := strings.TrimSpace(r.Header.Get("X-Voter-Key"))
	if voterKey == "" {
		voterKey = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}
	if voterKey == "" {
		writeVoteError(w, http.StatusUnauthorized, "missing_voter_key", "X-Voter-Key or X-User-Id header is required")
		return "", false
	}
	return voterKey, true
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterKey, ok := requireVoterKey(w, r)
	if !ok {
		return
	}

	req := ledgerhttp.CastVoteRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeVoteError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.ledger.Handler.CastVoteHandler(r.Context(), voterKey, r.PathValue("clip_id"), req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRevokeVote(w http.ResponseWriter, r *http.Request) {
	voterKey, ok := requireVoterKey(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.RevokeVoteHandler(r.Context(), voterKey, r.PathValue("clip_id"))
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClipTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.ClipTallyHandler(r.Context(), r.PathValue("clip_id"))
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSlotTally(w http.ResponseWriter, r *http.Request) {
	position, ok := parseSlotPosition(w, r, writeVoteError)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.SlotTallyHandler(r.Context(), r.PathValue("season_id"), position)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSlotLeaderboard(w http.ResponseWriter, r *http.Request) {
	position, ok := parseSlotPosition(w, r, writeVoteError)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeVoteError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.ledger.Handler.LeaderboardHandler(r.Context(), r.PathValue("season_id"), position, limit)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
