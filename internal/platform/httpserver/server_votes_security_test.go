package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVoteCastRequiresVoterIdentity(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/clips/clip-1/votes", nil)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestVoteCastAcceptsDeviceToken(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/clips/clip-1/votes", nil)
	req.Header.Set("X-Voter-Key", "device-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "clip_not_votable") {
		t.Fatalf("expected clip_not_votable, got body=%s", rr.Body.String())
	}
}

func TestVoteRevokeRequiresVoterIdentity(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodDelete, "/clips/clip-1/votes", nil)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}
