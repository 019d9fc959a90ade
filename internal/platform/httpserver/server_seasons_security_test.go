package httpserver

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	seasonservice "fable/contexts/story-tournament/season-service"
	slotengine "fable/contexts/story-tournament/slot-engine"
	voteledger "fable/contexts/story-tournament/vote-ledger"
)

func newTestServer() *Server {
	return New(
		seasonservice.NewInMemoryModule(nil, slog.Default()),
		slotengine.NewInMemoryModule(nil, slog.Default()),
		voteledger.NewInMemoryModule(nil, slog.Default()),
		slog.Default(),
		":0",
	)
}

func TestSeasonCreateRequiresUser(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/seasons", bytes.NewReader([]byte(`{
		"title":"Season One",
		"genre":"fantasy",
		"slot_count":5
	}`)))
	req.Header.Set("Idempotency-Key", "season-create-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSeasonCreateRequiresIdempotency(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/seasons", bytes.NewReader([]byte(`{
		"title":"Season One",
		"genre":"fantasy",
		"slot_count":5
	}`)))
	req.Header.Set("X-User-Id", "showrunner-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSeasonActivateRequiresUser(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/seasons/season-1/activate", nil)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}
