package httpserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClipUploadRequiresUser(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/clips", bytes.NewReader([]byte(`{
		"season_id":"season-1",
		"title":"Opening scene",
		"author_name":"creator-1",
		"playback_url":"https://cdn.example.com/clips/1.mp4"
	}`)))
	req.Header.Set("Idempotency-Key", "clip-upload-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClipUploadRequiresIdempotency(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/clips", bytes.NewReader([]byte(`{
		"season_id":"season-1",
		"title":"Opening scene",
		"author_name":"creator-1",
		"playback_url":"https://cdn.example.com/clips/1.mp4"
	}`)))
	req.Header.Set("X-User-Id", "creator-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClipBulkModerateRequiresUser(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/clips/bulk", bytes.NewReader([]byte(`{
		"action":"approve",
		"clip_ids":["clip-1","clip-2"]
	}`)))
	req.Header.Set("Idempotency-Key", "bulk-moderate-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}
