package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	seasonerrors "fable/contexts/story-tournament/season-service/domain/errors"
	seasonhttp "fable/contexts/story-tournament/season-service/transport/http"
)

func writeSeasonError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, seasonhttp.ErrorResponse{Code: code, Message: message})
}

func writeSeasonDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, seasonerrors.ErrSeasonNotFound):
		writeSeasonError(w, http.StatusNotFound, "season_not_found", err.Error())
	case errors.Is(err, seasonerrors.ErrInvalidSeasonInput):
		writeSeasonError(w, http.StatusBadRequest, "invalid_season_input", err.Error())
	case errors.Is(err, seasonerrors.ErrInvalidTransition):
		writeSeasonError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, seasonerrors.ErrGenreOccupied):
		writeSeasonError(w, http.StatusConflict, "genre_occupied", err.Error())
	case errors.Is(err, seasonerrors.ErrSeasonIncomplete):
		writeSeasonError(w, http.StatusConflict, "season_incomplete", err.Error())
	case errors.Is(err, seasonerrors.ErrStaleRead):
		writeSeasonError(w, http.StatusConflict, "stale_read", err.Error())
	case errors.Is(err, seasonerrors.ErrIdempotencyKeyRequired):
		writeSeasonError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, seasonerrors.ErrIdempotencyConflict):
		writeSeasonError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, seasonerrors.ErrStoreUnavailable):
		writeSeasonError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		writeSeasonError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireUserID(w http.ResponseWriter, r *http.Request, write func(http.ResponseWriter, int, string, string)) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		write(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func (s *Server) handleCreateSeason(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeSeasonError)
	if !ok {
		return
	}

	var req seasonhttp.CreateSeasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSeasonError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.seasons.Handler.CreateSeasonHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeSeasonDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSeasons(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.seasons.Handler.ListSeasonsHandler(r.Context(), query.Get("status"), query.Get("genre"))
	if err != nil {
		writeSeasonDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveActiveSeason(w http.ResponseWriter, r *http.Request) {
	genre := strings.TrimSpace(r.URL.Query().Get("genre"))
	if genre == "" {
		writeSeasonError(w, http.StatusBadRequest, "missing_genre", "genre query parameter is required")
		return
	}
	resp, err := s.seasons.Handler.ResolveActiveSeasonHandler(r.Context(), genre)
	if err != nil {
		writeSeasonDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSeason(w http.ResponseWriter, r *http.Request) {
	resp, err := s.seasons.Handler.GetSeasonHandler(r.Context(), r.PathValue("season_id"))
	if err != nil {
		writeSeasonDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivateSeason(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeSeasonError)
	if !ok {
		return
	}
	resp, err := s.seasons.Handler.ActivateSeasonHandler(r.Context(), userID, r.PathValue("season_id"))
	if err != nil {
		writeSeasonDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFinishSeason(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeSeasonError)
	if !ok {
		return
	}
	resp, err := s.seasons.Handler.FinishSeasonHandler(r.Context(), userID, r.PathValue("season_id"))
	if err != nil {
		writeSeasonDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
