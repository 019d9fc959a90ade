package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	enginehttp "fable/contexts/story-tournament/slot-engine/transport/http"
)

func (s *Server) handleUploadClip(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}

	var req enginehttp.UploadClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEngineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.engine.Handler.UploadClipHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	position := 0
	if raw := query.Get("position"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeEngineError(w, http.StatusBadRequest, "invalid_position", "position must be an integer")
			return
		}
		position = parsed
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeEngineError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.engine.Handler.ListClipsHandler(
		r.Context(),
		query.Get("season_id"),
		query.Get("status"),
		position,
		limit,
	)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.GetClipHandler(r.Context(), r.PathValue("clip_id"))
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEditClip(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}

	var req enginehttp.EditClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEngineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.engine.Handler.EditClipHandler(r.Context(), r.PathValue("clip_id"), userID, req)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}
	resp, err := s.engine.Handler.DeleteClipHandler(r.Context(), r.PathValue("clip_id"), userID)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApproveClip(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}

	req := enginehttp.ApproveClipRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeEngineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.engine.Handler.ApproveClipHandler(r.Context(), r.PathValue("clip_id"), userID, req)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRejectClip(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}

	req := enginehttp.RejectClipRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeEngineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.engine.Handler.RejectClipHandler(r.Context(), r.PathValue("clip_id"), userID, req)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBulkModerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, writeEngineError)
	if !ok {
		return
	}

	var req enginehttp.BulkModerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEngineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.engine.Handler.BulkModerateHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeEngineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
