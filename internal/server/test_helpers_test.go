package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sketch-judge/internal/config"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

type fakeChannel struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	closed bool
	reason string
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id}
}

func (c *fakeChannel) ID() string {
	return c.id
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeChannel) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
}

func (c *fakeChannel) isClosed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.reason
}

func (c *fakeChannel) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, 0, len(c.frames))
	for _, frame := range c.frames {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(frame, &head)
		kinds = append(kinds, head.Type)
	}
	return kinds
}

func (c *fakeChannel) count(kind string) int {
	n := 0
	for _, got := range c.types() {
		if got == kind {
			n++
		}
	}
	return n
}

// last decodes the most recent frame of kind into dest.
func (c *fakeChannel) last(t *testing.T, kind string, dest any) {
	t.Helper()
	c.mu.Lock()
	frames := append([][]byte(nil), c.frames...)
	c.mu.Unlock()
	for i := len(frames) - 1; i >= 0; i-- {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(frames[i], &head)
		if head.Type != kind {
			continue
		}
		if err := json.Unmarshal(frames[i], dest); err != nil {
			t.Fatalf("decode %s: %v", kind, err)
		}
		return
	}
	t.Fatalf("channel %s never received %s, got %v", c.id, kind, c.types())
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// fakeTimers replaces time.AfterFunc. Callbacks only run from fireAll.
type fakeTimers struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

func (f *fakeTimers) after(d time.Duration, fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{d: d, fn: fn}
	f.pending = append(f.pending, timer)
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if timer.stopped || timer.fired {
			return false
		}
		timer.stopped = true
		return true
	}
}

func (f *fakeTimers) active() []*fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*fakeTimer
	for _, timer := range f.pending {
		if !timer.stopped && !timer.fired {
			list = append(list, timer)
		}
	}
	return list
}

func (f *fakeTimers) fireAll() int {
	due := f.active()
	f.mu.Lock()
	for _, timer := range due {
		timer.fired = true
	}
	f.mu.Unlock()
	for _, timer := range due {
		timer.fn()
	}
	return len(due)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type gameHarness struct {
	srv    *Server
	timers *fakeTimers
	clock  *fakeClock
}

func newGameHarness(t *testing.T, cfg config.Config) *gameHarness {
	t.Helper()
	h := &gameHarness{
		timers: &fakeTimers{},
		clock:  &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
	}
	h.srv = New(nil, nil, cfg)
	h.srv.after = h.timers.after
	h.srv.now = h.clock.Now
	h.srv.rooms.now = h.clock.Now
	t.Cleanup(h.srv.Close)
	return h
}

func (h *gameHarness) openRoom(t *testing.T, code string) *Room {
	t.Helper()
	room, ok := h.srv.rooms.open(code)
	if !ok {
		t.Fatalf("room %s already open", code)
	}
	return room
}

func (h *gameHarness) join(t *testing.T, code, name, identity string) *fakeChannel {
	t.Helper()
	ch := newFakeChannel(identity + "-conn")
	if err := h.srv.Join(ch, code, name, identity); err != nil {
		t.Fatalf("join %s: %v", identity, err)
	}
	return ch
}

func (h *gameHarness) send(t *testing.T, ch *fakeChannel, payload map[string]any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h.srv.HandleMessage(ch, data)
}

func (h *gameHarness) room(t *testing.T, code string) *Room {
	t.Helper()
	room, ok := h.srv.rooms.Get(code)
	if !ok {
		t.Fatalf("room %s not found", code)
	}
	return room
}

// inspect reads room state under its lock.
func (h *gameHarness) inspect(t *testing.T, code string, fn func(room *Room)) {
	t.Helper()
	room := h.room(t, code)
	room.mu.Lock()
	defer room.mu.Unlock()
	fn(room)
}

// lobby opens ABCDE with judge j and players p1, p2 in that order.
func (h *gameHarness) lobby(t *testing.T) (j, p1, p2 *fakeChannel) {
	t.Helper()
	h.openRoom(t, "ABCDE")
	j = h.join(t, "ABCDE", "Judy", "judge")
	p1 = h.join(t, "ABCDE", "Ada", "p1")
	p2 = h.join(t, "ABCDE", "Bob", "p2")
	return j, p1, p2
}

// playing drives the lobby into the playing phase with the given prompt.
func (h *gameHarness) playing(t *testing.T, j, p1 *fakeChannel, prompt string, limit int) {
	t.Helper()
	h.send(t, j, map[string]any{"type": "send_prompt", "prompt": prompt, "timeLimit": limit})
	h.send(t, p1, map[string]any{"type": "countdown_finished"})
}

const testDrawing = "data:image/png;base64,iVBORw0KGgo="

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DisconnectGraceSeconds = 0
	cfg.CreateRoomPerMinute = 0
	return cfg
}
