package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndCheckRoom(t *testing.T) {
	srv := New(nil, nil, testConfig())
	t.Cleanup(srv.Close)
	handler := srv.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/rooms")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if len(created.RoomCode) != 5 {
		t.Fatalf("unexpected room code %q", created.RoomCode)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/rooms/"+strings.ToLower(created.RoomCode))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status RoomStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Exists || status.GameStarted || status.ParticipantCount != 0 {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestCheckUnknownRoom(t *testing.T) {
	srv := New(nil, nil, testConfig())
	t.Cleanup(srv.Close)
	handler := srv.Handler()

	for _, code := range []string{"QQQQQ", "not-a-code"} {
		rec := doRequest(t, handler, http.MethodGet, "/api/rooms/"+code)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", code, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"exists":false`) {
			t.Fatalf("expected exists false for %s, got %s", code, rec.Body.String())
		}
	}
}

func TestCreateRoomRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.CreateRoomPerMinute = 2
	srv := New(nil, nil, cfg)
	t.Cleanup(srv.Close)
	handler := srv.Handler()

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, handler, http.MethodPost, "/api/rooms"); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, rec.Code)
		}
	}
	rec := doRequest(t, handler, http.MethodPost, "/api/rooms")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if srv.Rooms().Len() != 2 {
		t.Fatalf("expected 2 rooms, got %d", srv.Rooms().Len())
	}
}

func TestPromptSuggestionsFallback(t *testing.T) {
	srv := New(nil, nil, testConfig())
	t.Cleanup(srv.Close)
	handler := srv.Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/prompts/suggestions?count=4")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Prompts []string `json:"prompts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Prompts) != 4 {
		t.Fatalf("expected 4 prompts, got %v", body.Prompts)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/prompts/suggestions?count=50")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "count must be between 1 and 10") {
		t.Fatalf("expected count validation, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthAndHome(t *testing.T) {
	srv := New(nil, nil, testConfig())
	t.Cleanup(srv.Close)
	handler := srv.Handler()
	code := srv.CreateRoom(t.Context())

	rec := doRequest(t, handler, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"rooms":1`) {
		t.Fatalf("unexpected health %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<td>"+code+"</td>") {
		t.Fatalf("expected room %s on the status page", code)
	}
}

func TestListRoomsPaginates(t *testing.T) {
	h := newGameHarness(t, testConfig())
	h.openRoom(t, "ROOM1")
	h.clock.Advance(time.Second)
	h.openRoom(t, "ROOM2")
	h.clock.Advance(time.Second)
	h.openRoom(t, "ROOM3")
	judge := h.join(t, "ROOM2", "Judy", "judge")
	h.join(t, "ROOM2", "Ada", "p1")
	h.send(t, judge, map[string]any{"type": "start_round"})
	handler := h.srv.Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/rooms?page=2&per_page=2")
	var body struct {
		Rooms      []RoomSummary `json:"rooms"`
		Pagination pageInfo      `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rooms) != 1 || body.Rooms[0].Code != "ROOM3" {
		t.Fatalf("unexpected page %#v", body.Rooms)
	}
	if body.Pagination.Total != 3 || body.Pagination.TotalPages != 2 || !body.Pagination.HasPrev || body.Pagination.HasNext {
		t.Fatalf("unexpected pagination %#v", body.Pagination)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/rooms?open=true")
	body.Rooms = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rooms) != 2 || body.Rooms[0].Code != "ROOM1" || body.Rooms[1].Code != "ROOM3" {
		t.Fatalf("expected started room filtered, got %#v", body.Rooms)
	}
}

func TestPaginateClampsPage(t *testing.T) {
	info, start, end := paginate(9, 5, 12)
	if info.Page != 3 || start != 10 || end != 12 || info.HasNext {
		t.Fatalf("unexpected clamp %#v %d %d", info, start, end)
	}
	info, start, end = paginate(1, 5, 0)
	if info.TotalPages != 1 || start != 0 || end != 0 {
		t.Fatalf("unexpected empty page %#v %d %d", info, start, end)
	}
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://draw.example"}
	srv := New(nil, nil, cfg)
	t.Cleanup(srv.Close)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/ABCDE", nil)
	req.Header.Set("Origin", "https://draw.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "https://draw.example" {
		t.Fatalf("expected allowed origin, got %d %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/rooms/ABCDE", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected foreign origin refused, got %d", rec.Code)
	}
}

func TestUpgraderChecksOrigin(t *testing.T) {
	open := newUpgrader(nil)
	restricted := newUpgrader([]string{"https://draw.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	if !open.CheckOrigin(req) {
		t.Fatalf("expected any origin accepted without a list")
	}
	if restricted.CheckOrigin(req) {
		t.Fatalf("expected foreign origin refused")
	}
	req.Header.Set("Origin", "https://draw.example")
	if !restricted.CheckOrigin(req) {
		t.Fatalf("expected listed origin accepted")
	}
}
