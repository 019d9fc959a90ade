package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	engineerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	enginehttp "fable/contexts/story-tournament/slot-engine/transport/http"
)

func writeEngineError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, enginehttp.ErrorResponse{Code: code, Message: message})
}

func writeEngineDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engineerrors.ErrClipNotFound):
		writeEngineError(w, http.StatusNotFound, "clip_not_found", err.Error())
	case errors.Is(err, engineerrors.ErrSlotNotFound):
		writeEngineError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, engineerrors.ErrSeasonNotFound):
		writeEngineError(w, http.StatusNotFound, "season_not_found", err.Error())
	case errors.Is(err, engineerrors.ErrSeasonNotActive):
		writeEngineError(w, http.StatusConflict, "season_not_active", err.Error())
	case errors.Is(err, engineerrors.ErrInvalidClipInput):
		writeEngineError(w, http.StatusBadRequest, "invalid_clip_input", err.Error())
	case errors.Is(err, engineerrors.ErrInvalidTransition):
		writeEngineError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, engineerrors.ErrClipLocked):
		writeEngineError(w, http.StatusConflict, "clip_locked", err.Error())
	case errors.Is(err, engineerrors.ErrSlotLocked):
		writeEngineError(w, http.StatusConflict, "slot_locked", err.Error())
	case errors.Is(err, engineerrors.ErrSlotNotVoting):
		writeEngineError(w, http.StatusConflict, "slot_not_voting", err.Error())
	case errors.Is(err, engineerrors.ErrClipNotEligible):
		writeEngineError(w, http.StatusConflict, "clip_not_eligible", err.Error())
	case errors.Is(err, engineerrors.ErrNoActionableSlot):
		writeEngineError(w, http.StatusConflict, "no_actionable_slot", err.Error())
	case errors.Is(err, engineerrors.ErrStaleRead):
		writeEngineError(w, http.StatusConflict, "stale_read", err.Error())
	case errors.Is(err, engineerrors.ErrIdempotencyKeyRequired):
		writeEngineError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, engineerrors.ErrIdempotencyConflict):
		writeEngineError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, engineerrors.ErrUnsupportedBulkAction):
		writeEngineError(w, http.StatusBadRequest, "unsupported_bulk_action", err.Error())
	case errors.Is(err, engineerrors.ErrStoreUnavailable):
		writeEngineError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		writeEngineError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func parseSlotPosition(w http.ResponseWriter, r *http.Request, write func(http.ResponseWriter, int, string, string)) (int, bool) {
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil || position < 1 {
		write(w, http.StatusBadRequest, "invalid_position", "slot position must be a positive integer")
		return 0, false
	}
	return position, true
}

func (s *Server) handleStoryboard(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.StoryboardHandler(r.Context(), r.PathValue("season_id"))
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	position, ok := parseSlotPosition(w, r, writeEngineError)
	if !ok {
		return
	}
	resp, err := s.engine.Handler.GetSlotHandler(r.Context(), r.PathValue("season_id"), position)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssignWinner(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}
	position, ok := parseSlotPosition(w, r, writeEngineError)
	if !ok {
		return
	}

	var req enginehttp.AssignWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEngineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.engine.Handler.AssignWinnerHandler(r.Context(), r.PathValue("season_id"), position, userID, req)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnlockSlot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}
	position, ok := parseSlotPosition(w, r, writeEngineError)
	if !ok {
		return
	}
	resp, err := s.engine.Handler.UnlockSlotHandler(r.Context(), r.PathValue("season_id"), position, userID)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSweepSeason(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.SweepSeasonHandler(r.Context(), r.PathValue("season_id"))
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
