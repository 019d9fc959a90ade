package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	seasonservice "fable/contexts/story-tournament/season-service"
	slotengine "fable/contexts/story-tournament/slot-engine"
	voteledger "fable/contexts/story-tournament/vote-ledger"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "fable/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	seasons seasonservice.Module
	engine  slotengine.Module
	ledger  voteledger.Module
}

func New(
	seasons seasonservice.Module,
	engine slotengine.Module,
	ledger voteledger.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		seasons: seasons,
		engine:  engine,
		ledger:  ledger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /seasons", s.handleCreateSeason)
	s.mux.HandleFunc("GET /seasons", s.handleListSeasons)
	s.mux.HandleFunc("GET /seasons/active", s.handleResolveActiveSeason)
	s.mux.HandleFunc("GET /seasons/{season_id}", s.handleGetSeason)
	s.mux.HandleFunc("POST /seasons/{season_id}/activate", s.handleActivateSeason)
	s.mux.HandleFunc("POST /seasons/{season_id}/finish", s.handleFinishSeason)

	s.mux.HandleFunc("GET /seasons/{season_id}/storyboard", s.handleStoryboard)
	s.mux.HandleFunc("GET /seasons/{season_id}/slots/{position}", s.handleGetSlot)
	s.mux.HandleFunc("POST /seasons/{season_id}/slots/{position}/winner", s.handleAssignWinner)
	s.mux.HandleFunc("POST /seasons/{season_id}/slots/{position}/unlock", s.handleUnlockSlot)
	s.mux.HandleFunc("POST /seasons/{season_id}/sweep", s.handleSweepSeason)

	s.mux.HandleFunc("POST /clips", s.handleUploadClip)
	s.mux.HandleFunc("GET /clips", s.handleListClips)
	s.mux.HandleFunc("POST /clips/bulk", s.handleBulkModerate)
	s.mux.HandleFunc("GET /clips/{clip_id}", s.handleGetClip)
	s.mux.HandleFunc("PATCH /clips/{clip_id}", s.handleEditClip)
	s.mux.HandleFunc("DELETE /clips/{clip_id}", s.handleDeleteClip)
	s.mux.HandleFunc("POST /clips/{clip_id}/approve", s.handleApproveClip)
	s.mux.HandleFunc("POST /clips/{clip_id}/reject", s.handleRejectClip)

	s.mux.HandleFunc("POST /clips/{clip_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("DELETE /clips/{clip_id}/votes", s.handleRevokeVote)
	s.mux.HandleFunc("GET /clips/{clip_id}/tally", s.handleClipTally)
	s.mux.HandleFunc("GET /seasons/{season_id}/slots/{position}/tally", s.handleSlotTally)
	s.mux.HandleFunc("GET /seasons/{season_id}/slots/{position}/leaderboard", s.handleSlotLeaderboard)

	s.mux.HandleFunc("POST /v1/tournament/clips/{clip_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("DELETE /v1/tournament/clips/{clip_id}/votes", s.handleRevokeVote)
	s.mux.HandleFunc("GET /v1/tournament/clips/{clip_id}/tally", s.handleClipTally)
	s.mux.HandleFunc("GET /v1/tournament/seasons/{season_id}/slots/{position}/leaderboard", s.handleSlotLeaderboard)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
