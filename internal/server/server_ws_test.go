package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialRoom(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWSMessageType(t *testing.T, conn *websocket.Conn, timeout time.Duration) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		t.Fatalf("decode websocket message: %v", err)
	}
	return head.Type, payload
}

func waitForWSMessageType(t *testing.T, conn *websocket.Conn, timeout time.Duration, want string) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		kind, payload := readWSMessageType(t, conn, time.Until(deadline))
		if kind == want {
			return payload
		}
	}
	t.Fatalf("timed out waiting for %s", want)
	return nil
}

func writeWS(t *testing.T, conn *websocket.Conn, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write websocket message: %v", err)
	}
}

func TestWebsocketJoinViaQuery(t *testing.T) {
	srv := New(nil, nil, testConfig())
	t.Cleanup(srv.Close)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	code := srv.CreateRoom(t.Context())
	base := "ws" + strings.TrimPrefix(ts.URL, "http")
	judge := dialRoom(t, base+"/ws/rooms/"+code+"?username=Judy&uuid=judge")

	if kind, payload := readWSMessageType(t, judge, 5*time.Second); kind != evtJoined {
		t.Fatalf("expected joined, got %s", kind)
	} else {
		var joined joinedEvent
		_ = json.Unmarshal(payload, &joined)
		if !joined.IsJudge {
			t.Fatalf("expected judge role")
		}
	}
	if kind, _ := readWSMessageType(t, judge, 5*time.Second); kind != evtRoomState {
		t.Fatalf("expected room_state, got %s", kind)
	}

	player := dialRoom(t, base+"/ws")
	writeWS(t, player, map[string]any{"type": "join", "username": "Ada", "uuid": "p1", "room": code})
	waitForWSMessageType(t, player, 5*time.Second, evtJoined)

	payload := waitForWSMessageType(t, judge, 5*time.Second, evtRoomState)
	var state roomStateEvent
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("decode room_state: %v", err)
	}
	if len(state.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(state.Participants))
	}
	if got := srv.CheckRoom(code).ParticipantCount; got != 2 {
		t.Fatalf("expected 2 participants, got %d", got)
	}
}

func TestWebsocketRejectsUnknownRoom(t *testing.T) {
	srv := New(nil, nil, testConfig())
	t.Cleanup(srv.Close)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	base := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn := dialRoom(t, base+"/ws?room=QQQQQ&username=Ada&uuid=p1")

	kind, payload := readWSMessageType(t, conn, 5*time.Second)
	if kind != evtJoinRejected {
		t.Fatalf("expected join_rejected, got %s", kind)
	}
	var rejected joinRejectedEvent
	_ = json.Unmarshal(payload, &rejected)
	if rejected.Reason != "room_not_found" {
		t.Fatalf("unexpected reason %q", rejected.Reason)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func TestWebsocketJudgeDisconnectClosesPlayers(t *testing.T) {
	srv := New(nil, nil, testConfig())
	t.Cleanup(srv.Close)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	code := srv.CreateRoom(t.Context())
	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/" + code
	judge := dialRoom(t, base+"?username=Judy&uuid=judge")
	waitForWSMessageType(t, judge, 5*time.Second, evtRoomState)
	player := dialRoom(t, base+"?username=Ada&uuid=p1")
	waitForWSMessageType(t, player, 5*time.Second, evtRoomState)

	_ = judge.Close()

	waitForWSMessageType(t, player, 5*time.Second, evtJudgeDisconnected)
	_ = player.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := player.ReadMessage(); err == nil {
		t.Fatalf("expected player connection closed")
	}
	deadline := time.Now().Add(5 * time.Second)
	for srv.CheckRoom(code).Exists {
		if time.Now().After(deadline) {
			t.Fatalf("expected room destroyed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
