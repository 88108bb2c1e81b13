package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"poolmind/internal/auth"
	"poolmind/internal/game"
	"poolmind/internal/hub"
	"poolmind/internal/track"
)

type stubControls struct {
	resets   int
	endTurns int
}

func (c *stubControls) ResetGame() { c.resets++ }
func (c *stubControls) EndTurn()   { c.endTurns++ }

func testServer(password string) (*Server, *stubControls, *hub.Hub) {
	h := hub.New(16)
	controls := &stubControls{}
	authn := auth.NewAuthenticator("admin", password, "test-secret", time.Hour)
	s := NewServer(Config{Addr: ":0"}, h, controls, nil, authn)
	return s, controls, h
}

func TestStateBeforeFirstFrame(t *testing.T) {
	s, _, _ := testServer("")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStateAndEvents(t *testing.T) {
	s, _, h := testServer("")
	h.Publish(hub.Snapshot{
		FrameSeq: 42,
		FPS:      24,
		Tracks:   []track.Track{{ID: 1}},
		Game:     game.Aggregate{Phase: game.PhaseOpen, Player: 2},
	}, []game.Event{{ID: "e1", Type: game.EventPot}})

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d", rec.Code)
	}
	var snap hub.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.FrameSeq != 42 || snap.Game.Phase != game.PhaseOpen {
		t.Fatalf("snapshot = %+v", snap)
	}

	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?n=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("events status = %d", rec.Code)
	}
	var events struct {
		Events []game.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events.Events) != 1 || events.Events[0].ID != "e1" {
		t.Fatalf("events = %+v", events.Events)
	}
}

func TestEventsRejectsBadCount(t *testing.T) {
	s, _, _ := testServer("")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?n=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _, h := testServer("")
	h.Publish(hub.Snapshot{FrameSeq: 7, FPS: 30, Game: game.Aggregate{TotalPotted: 3}}, nil)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "poolmind_frames_total 7") {
		t.Fatalf("metrics missing frame counter:\n%s", body)
	}
	if !strings.Contains(body, "poolmind_balls_potted_total 3") {
		t.Fatalf("metrics missing pot counter:\n%s", body)
	}
}

func TestFrameEndpoint(t *testing.T) {
	s, _, h := testServer("")

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frame.jpg", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before frame = %d", rec.Code)
	}

	h.PublishFrame([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frame.jpg", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("status = %d type = %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestResetOpenWithoutAuth(t *testing.T) {
	s, controls, _ := testServer("")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/reset", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if controls.resets != 1 {
		t.Fatalf("resets = %d", controls.resets)
	}
}

func TestResetRequiresTokenWhenAuthEnabled(t *testing.T) {
	s, controls, _ := testServer("hunter2")
	routes := s.Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/reset", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
	if controls.resets != 0 {
		t.Fatal("reset ran without auth")
	}

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "hunter2"})
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/game/reset", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
	if controls.resets != 1 {
		t.Fatalf("resets = %d", controls.resets)
	}
}

func TestEndTurnForwarded(t *testing.T) {
	s, controls, _ := testServer("")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/endturn", nil))
	if rec.Code != http.StatusAccepted || controls.endTurns != 1 {
		t.Fatalf("status = %d endTurns = %d", rec.Code, controls.endTurns)
	}
}

func TestResetRejectsGet(t *testing.T) {
	s, controls, _ := testServer("")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/game/reset", nil))
	if rec.Code != http.StatusMethodNotAllowed || controls.resets != 0 {
		t.Fatalf("status = %d resets = %d", rec.Code, controls.resets)
	}
}
