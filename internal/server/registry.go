package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"sketch-judge/internal/codes"

	"github.com/rs/zerolog/log"
)

// Registry owns the room code to Room table. Never hold the registry lock while taking a room lock.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	ledger     codes.Ledger
	codeLength int
	settings   roomSettings
	now        func() time.Time
	onDestroy  func(room *Room)
}

func NewRegistry(ledger codes.Ledger, codeLength int, settings roomSettings) *Registry {
	if ledger == nil {
		ledger = codes.NewMemory()
	}
	return &Registry{
		rooms:      make(map[string]*Room),
		ledger:     ledger,
		codeLength: codeLength,
		settings:   settings,
		now:        timeNowUTC,
	}
}

// Create opens a room under a code that is not live and has never been handed out before.
func (r *Registry) Create(ctx context.Context) *Room {
	for {
		code := newRoomCode(r.codeLength)
		if r.live(code) {
			continue
		}
		fresh, err := r.ledger.Reserve(ctx, code)
		if err != nil {
			log.Warn().Err(err).Str("room", code).Msg("room code ledger unavailable")
			fresh = true
		}
		if !fresh {
			continue
		}
		if room, ok := r.open(code); ok {
			return room
		}
	}
}

func (r *Registry) open(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[code]; exists {
		return nil, false
	}
	room := newRoom(code, r.settings, r.now())
	r.rooms[code] = room
	return room, true
}

func (r *Registry) live(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[code]
	return ok
}

func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[normalizeRoomCode(code)]
	return room, ok
}

// Check is the read-only lookup used before joining.
func (r *Registry) Check(code string) RoomStatus {
	room, ok := r.Get(code)
	if !ok {
		return RoomStatus{}
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return RoomStatus{}
	}
	return RoomStatus{
		Exists:           true,
		GameStarted:      room.GameStarted,
		ParticipantCount: len(room.participants),
	}
}

// Update runs fn with the room locked. A room that fn closes is removed from the table.
func (r *Registry) Update(code string, fn func(room *Room) error) error {
	room, ok := r.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return ErrRoomNotFound
	}
	err := fn(room)
	closed := room.closed
	room.mu.Unlock()
	if closed {
		r.Destroy(room.Code)
	}
	return err
}

// Destroy removes the room and closes any channels still bound to it. Destroying an unknown code is a
// no-op.
func (r *Registry) Destroy(code string) {
	r.destroy(code, "room_closed", nil)
}

// DestroyAll closes every live room, telling members why first.
func (r *Registry) DestroyAll(reason string) []string {
	var destroyed []string
	for _, room := range r.snapshotRooms() {
		if r.destroy(room.Code, reason, nil) {
			destroyed = append(destroyed, room.Code)
		}
	}
	return destroyed
}

// destroy tears the room down unless keep, evaluated under the room lock, says otherwise. The destroy hook
// runs once, for whichever caller removes the room from the table.
func (r *Registry) destroy(code, reason string, keep func(room *Room) bool) bool {
	room, ok := r.Get(code)
	if !ok {
		return false
	}
	room.mu.Lock()
	if !room.closed && keep != nil && keep(room) {
		room.mu.Unlock()
		return false
	}
	room.teardown(reason, roomClosedEvent{Type: evtRoomClosed, Reason: reason})
	room.mu.Unlock()

	r.mu.Lock()
	current, ok := r.rooms[room.Code]
	removed := ok && current == room
	if removed {
		delete(r.rooms, room.Code)
	}
	hook := r.onDestroy
	r.mu.Unlock()
	if removed && hook != nil {
		hook(room)
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) Summaries() []RoomSummary {
	rooms := r.snapshotRooms()
	list := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		if !room.closed {
			list = append(list, room.summary())
		}
		room.mu.Unlock()
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].Code < list[j].Code
	})
	return list
}

// SweepEmpty destroys rooms that have had no connected channel for at least ttl. A room that gains a
// channel before its turn comes is kept.
func (r *Registry) SweepEmpty(now time.Time, ttl time.Duration) []string {
	busy := func(room *Room) bool {
		return room.idleSince.IsZero() || len(room.channels) > 0 || now.Sub(room.idleSince) < ttl
	}
	var expired []string
	for _, room := range r.snapshotRooms() {
		if r.destroy(room.Code, "idle", busy) {
			expired = append(expired, room.Code)
		}
	}
	sort.Strings(expired)
	return expired
}

func (r *Registry) snapshotRooms() []*Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
