package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"sketch-judge/internal/codes/mocks"

	"go.uber.org/mock/gomock"
)

func testSettings() roomSettings {
	return roomSettings{MaxParticipants: 9, CountdownTicks: 3, MaxAwardPoints: 10, MaxDrawingBytes: 1024}
}

func TestRegistryCreateUsesFreshCodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	gomock.InOrder(
		ledger.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return(false, nil),
		ledger.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return(true, nil),
	)
	reg := NewRegistry(ledger, 5, testSettings())

	room := reg.Create(context.Background())
	if len(room.Code) != 5 {
		t.Fatalf("expected 5 character code, got %q", room.Code)
	}
	if room.Phase != phaseWaiting || room.JudgeID != "" {
		t.Fatalf("expected empty waiting room, got %#v", room)
	}
	status := reg.Check(room.Code)
	if !status.Exists || status.GameStarted || status.ParticipantCount != 0 {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestRegistryCreateSurvivesLedgerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	ledger.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return(false, errors.New("connection refused"))
	reg := NewRegistry(ledger, 6, testSettings())

	room := reg.Create(context.Background())
	if len(room.Code) != 6 || reg.Len() != 1 {
		t.Fatalf("expected a room despite ledger failure, got %q", room.Code)
	}
}

func TestRegistryCodesAreUnique(t *testing.T) {
	reg := NewRegistry(nil, 4, testSettings())
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		room := reg.Create(context.Background())
		if _, dup := seen[room.Code]; dup {
			t.Fatalf("duplicate code %s", room.Code)
		}
		seen[room.Code] = struct{}{}
	}
}

func TestRegistryCheckUnknownCode(t *testing.T) {
	reg := NewRegistry(nil, 5, testSettings())
	if status := reg.Check("NOPE1"); status.Exists {
		t.Fatalf("expected unknown room, got %#v", status)
	}
}

func TestRegistryUpdateDestroysClosedRoom(t *testing.T) {
	reg := NewRegistry(nil, 5, testSettings())
	var destroyed []string
	reg.onDestroy = func(room *Room) { destroyed = append(destroyed, room.Code) }
	room, _ := reg.open("ABCDE")

	err := reg.Update(room.Code, func(room *Room) error {
		room.teardown("test", nil)
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := reg.Get("ABCDE"); ok {
		t.Fatalf("expected closed room removed")
	}
	if len(destroyed) != 1 || destroyed[0] != "ABCDE" {
		t.Fatalf("expected destroy hook once, got %v", destroyed)
	}
	if err := reg.Update("ABCDE", func(*Room) error { return nil }); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
	reg.Destroy("ABCDE")
	if len(destroyed) != 1 {
		t.Fatalf("destroy must be idempotent, hook ran %d times", len(destroyed))
	}
}

func TestRegistrySweepEmpty(t *testing.T) {
	reg := NewRegistry(nil, 5, testSettings())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	reg.open("IDLE1")
	busy, _ := reg.open("BUSY1")

	ch := newFakeChannel("c1")
	busy.mu.Lock()
	if _, _, _, err := busy.admit(ch, "judge", "Judy", now); err != nil {
		t.Fatalf("admit: %v", err)
	}
	busy.mu.Unlock()

	if expired := reg.SweepEmpty(now.Add(time.Minute), 10*time.Minute); len(expired) != 0 {
		t.Fatalf("expected nothing expired yet, got %v", expired)
	}
	expired := reg.SweepEmpty(now.Add(11*time.Minute), 10*time.Minute)
	if len(expired) != 1 || expired[0] != "IDLE1" {
		t.Fatalf("expected IDLE1 expired, got %v", expired)
	}
	if !reg.Check("BUSY1").Exists {
		t.Fatalf("busy room must survive")
	}
}

func TestRegistrySweepKeepsRoomJoinedWhileIdle(t *testing.T) {
	reg := NewRegistry(nil, 5, testSettings())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	room, _ := reg.open("LATE1")

	ch := newFakeChannel("c1")
	room.mu.Lock()
	if _, _, _, err := room.admit(ch, "judge", "Judy", now.Add(20*time.Minute)); err != nil {
		t.Fatalf("admit: %v", err)
	}
	room.mu.Unlock()

	if expired := reg.SweepEmpty(now.Add(20*time.Minute), 10*time.Minute); len(expired) != 0 {
		t.Fatalf("expected joined room kept, got %v", expired)
	}
	if closed, _ := ch.isClosed(); closed {
		t.Fatalf("fresh channel must stay open")
	}

	kept := reg.destroy("LATE1", "idle", func(*Room) bool { return true })
	if kept || !reg.Check("LATE1").Exists {
		t.Fatalf("expected keep predicate to spare the room")
	}
}

func TestRegistryDestroyAllNotifiesMembers(t *testing.T) {
	reg := NewRegistry(nil, 5, testSettings())
	room, _ := reg.open("BUSY1")
	reg.open("IDLE1")
	ch := newFakeChannel("c1")
	room.mu.Lock()
	if _, _, _, err := room.admit(ch, "judge", "Judy", time.Now()); err != nil {
		t.Fatalf("admit: %v", err)
	}
	room.mu.Unlock()

	closed := reg.DestroyAll("server_shutdown")
	if len(closed) != 2 || reg.Len() != 0 {
		t.Fatalf("expected every room destroyed, got %v", closed)
	}
	var notice roomClosedEvent
	ch.last(t, evtRoomClosed, &notice)
	if notice.Reason != "server_shutdown" {
		t.Fatalf("unexpected notice %#v", notice)
	}
}

func TestRegistrySummariesOrdered(t *testing.T) {
	reg := NewRegistry(nil, 5, testSettings())
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	current := base
	reg.now = func() time.Time { return current }
	reg.open("SECND")
	current = base.Add(-time.Minute)
	reg.open("FIRST")

	list := reg.Summaries()
	if len(list) != 2 || list[0].Code != "FIRST" || list[1].Code != "SECND" {
		t.Fatalf("unexpected order %#v", list)
	}
}
