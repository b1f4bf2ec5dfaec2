package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"sketch-judge/internal/db"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const historyQueueSize = 256

type historyEntry struct {
	Kind      string
	Room      string
	Identity  string
	Name      string
	IsJudge   bool
	Round     int
	Prompt    string
	TimeLimit int
	Drawing   string
	Auto      bool
	Awards    map[string]int
	Totals    map[string]int
	Reason    string
	Phase     string
	At        time.Time
}

type participantKey struct {
	room     string
	identity string
}

type roundKey struct {
	room   string
	number int
}

// historyWriter persists room history off the room lock. A nil writer records nothing.
type historyWriter struct {
	db           *gorm.DB
	queue        chan historyEntry
	done         chan struct{}
	mu           sync.RWMutex
	closed       bool
	rooms        map[string]uint
	participants map[participantKey]uint
	rounds       map[roundKey]uint
}

func newHistoryWriter(conn *gorm.DB) *historyWriter {
	if conn == nil {
		return nil
	}
	w := &historyWriter{
		db:           conn,
		queue:        make(chan historyEntry, historyQueueSize),
		done:         make(chan struct{}),
		rooms:        make(map[string]uint),
		participants: make(map[participantKey]uint),
		rounds:       make(map[roundKey]uint),
	}
	go w.run()
	return w
}

func (w *historyWriter) record(entry historyEntry) {
	if w == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = timeNowUTC()
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		log.Warn().Str("room", entry.Room).Str("event", entry.Kind).Msg("history writer closed, dropping event")
		return
	}
	select {
	case w.queue <- entry:
	default:
		log.Warn().Str("room", entry.Room).Str("event", entry.Kind).Msg("history queue full, dropping event")
	}
}

// Close drains the queue and stops the writer.
func (w *historyWriter) Close() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *historyWriter) run() {
	defer close(w.done)
	for entry := range w.queue {
		if err := w.apply(entry); err != nil {
			log.Error().Err(err).Str("room", entry.Room).Str("event", entry.Kind).Msg("persist history failed")
		}
	}
}

func (w *historyWriter) apply(entry historyEntry) error {
	switch entry.Kind {
	case historyRoomCreated:
		return w.persistRoom(entry)
	case historyParticipantJoined:
		return w.persistParticipant(entry)
	case historyRoundStarted:
		return w.persistRound(entry)
	case historyRoundPlaying, historyRoundReview, historyRoundReset:
		return w.persistRoundStatus(entry)
	case historyDrawingSubmitted:
		return w.persistSubmission(entry)
	case historyRoundEnded:
		return w.persistAwards(entry)
	case historyParticipantLeft:
		return w.persistDeparture(entry)
	case historyGameEnded:
		return w.persistRoomStatus(entry, phasePodium)
	case historyRoomClosed:
		return w.persistClose(entry)
	default:
		return fmt.Errorf("unknown history event %q", entry.Kind)
	}
}

func (w *historyWriter) persistRoom(entry historyEntry) error {
	record := db.Room{
		Code:   entry.Room,
		Status: phaseWaiting,
	}
	if err := w.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	if record.ID == 0 {
		if err := w.db.Where("code = ?", entry.Room).First(&record).Error; err != nil {
			return err
		}
	}
	w.rooms[entry.Room] = record.ID
	return w.persistEvent(record.ID, nil, entry.Kind, EventPayload{RoomCode: entry.Room})
}

func (w *historyWriter) persistParticipant(entry historyEntry) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	key := participantKey{room: entry.Room, identity: entry.Identity}
	if _, ok := w.participants[key]; ok {
		return w.db.Model(&db.Participant{}).
			Where("id = ?", w.participants[key]).
			Update("left_at", nil).Error
	}
	record := db.Participant{
		RoomID:   roomID,
		Identity: entry.Identity,
		Name:     entry.Name,
		IsJudge:  entry.IsJudge,
		JoinedAt: entry.At,
	}
	if err := w.db.Create(&record).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if err := w.db.Where("room_id = ? AND identity = ?", roomID, entry.Identity).First(&record).Error; err != nil {
			return err
		}
	}
	w.participants[key] = record.ID
	if entry.IsJudge {
		if err := w.db.Model(&db.Room{}).Where("id = ?", roomID).Update("judge_identity", entry.Identity).Error; err != nil {
			return err
		}
	}
	return w.persistEvent(roomID, nil, entry.Kind, EventPayload{
		Participant:   entry.Name,
		ParticipantID: entry.Identity,
	})
}

func (w *historyWriter) persistRound(entry historyEntry) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	record := db.Round{
		RoomID:           roomID,
		Number:           entry.Round,
		Prompt:           entry.Prompt,
		TimeLimitSeconds: entry.TimeLimit,
		Status:           phaseCountdown,
	}
	err = w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Model(&db.Room{}).Where("id = ?", roomID).Update("status", phaseCountdown).Error
	})
	if err != nil {
		return err
	}
	w.rounds[roundKey{room: entry.Room, number: entry.Round}] = record.ID
	return w.persistEvent(roomID, &record.ID, entry.Kind, EventPayload{
		RoundNumber: entry.Round,
		Prompt:      entry.Prompt,
		TimeLimit:   entry.TimeLimit,
	})
}

func (w *historyWriter) persistRoundStatus(entry historyEntry) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	roundID, ok := w.rounds[roundKey{room: entry.Room, number: entry.Round}]
	if !ok {
		return errors.New("round not found")
	}
	updates := map[string]any{"status": entry.Phase}
	if entry.Kind == historyRoundPlaying {
		started := entry.At
		updates["started_at"] = &started
	}
	if err := w.db.Model(&db.Round{}).Where("id = ?", roundID).Updates(updates).Error; err != nil {
		return err
	}
	if err := w.db.Model(&db.Room{}).Where("id = ?", roomID).Update("status", entry.Phase).Error; err != nil {
		return err
	}
	return w.persistEvent(roomID, &roundID, entry.Kind, EventPayload{
		RoundNumber: entry.Round,
		Phase:       entry.Phase,
	})
}

func (w *historyWriter) persistSubmission(entry historyEntry) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	roundID, ok := w.rounds[roundKey{room: entry.Room, number: entry.Round}]
	if !ok {
		return errors.New("round not found")
	}
	participantID, ok := w.participants[participantKey{room: entry.Room, identity: entry.Identity}]
	if !ok {
		return errors.New("participant not found")
	}
	record := db.Submission{
		RoundID:       roundID,
		ParticipantID: participantID,
		DrawingData:   entry.Drawing,
		AutoSubmitted: entry.Auto,
		SubmittedAt:   entry.At,
	}
	if err := w.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	return w.persistEvent(roomID, &roundID, entry.Kind, EventPayload{
		Participant:   entry.Name,
		ParticipantID: entry.Identity,
		RoundNumber:   entry.Round,
		AutoSubmitted: entry.Auto,
	})
}

func (w *historyWriter) persistAwards(entry historyEntry) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	roundID, ok := w.rounds[roundKey{room: entry.Room, number: entry.Round}]
	if !ok {
		return errors.New("round not found")
	}
	err = w.db.Transaction(func(tx *gorm.DB) error {
		for identity, points := range entry.Awards {
			participantID, ok := w.participants[participantKey{room: entry.Room, identity: identity}]
			if !ok {
				continue
			}
			if err := tx.Model(&db.Submission{}).
				Where("round_id = ? AND participant_id = ?", roundID, participantID).
				Update("points_awarded", points).Error; err != nil {
				return err
			}
		}
		for identity, total := range entry.Totals {
			participantID, ok := w.participants[participantKey{room: entry.Room, identity: identity}]
			if !ok {
				continue
			}
			if err := tx.Model(&db.Participant{}).Where("id = ?", participantID).Update("total_points", total).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&db.Round{}).Where("id = ?", roundID).Update("status", phaseFinished).Error; err != nil {
			return err
		}
		return tx.Model(&db.Room{}).Where("id = ?", roomID).Update("status", phaseFinished).Error
	})
	if err != nil {
		return err
	}
	return w.persistEvent(roomID, &roundID, entry.Kind, EventPayload{
		RoundNumber: entry.Round,
		Awards:      entry.Awards,
		Totals:      entry.Totals,
	})
}

func (w *historyWriter) persistDeparture(entry historyEntry) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	if participantID, ok := w.participants[participantKey{room: entry.Room, identity: entry.Identity}]; ok {
		left := entry.At
		if err := w.db.Model(&db.Participant{}).Where("id = ?", participantID).Update("left_at", &left).Error; err != nil {
			return err
		}
	}
	return w.persistEvent(roomID, nil, entry.Kind, EventPayload{
		Participant:   entry.Name,
		ParticipantID: entry.Identity,
		Reason:        entry.Reason,
	})
}

func (w *historyWriter) persistRoomStatus(entry historyEntry, status string) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	if err := w.db.Model(&db.Room{}).Where("id = ?", roomID).Update("status", status).Error; err != nil {
		return err
	}
	return w.persistEvent(roomID, nil, entry.Kind, EventPayload{
		Phase:  status,
		Totals: entry.Totals,
		Count:  entry.Round,
	})
}

func (w *historyWriter) persistClose(entry historyEntry) error {
	roomID, err := w.roomID(entry.Room)
	if err != nil {
		return err
	}
	closedAt := entry.At
	if err := w.db.Model(&db.Room{}).Where("id = ?", roomID).Updates(map[string]any{
		"status":        "closed",
		"closed_reason": entry.Reason,
		"closed_at":     &closedAt,
	}).Error; err != nil {
		return err
	}
	err = w.persistEvent(roomID, nil, entry.Kind, EventPayload{Reason: entry.Reason})
	delete(w.rooms, entry.Room)
	for key := range w.participants {
		if key.room == entry.Room {
			delete(w.participants, key)
		}
	}
	for key := range w.rounds {
		if key.room == entry.Room {
			delete(w.rounds, key)
		}
	}
	return err
}

func (w *historyWriter) roomID(code string) (uint, error) {
	if id, ok := w.rooms[code]; ok {
		return id, nil
	}
	var record db.Room
	if err := w.db.Where("code = ?", code).First(&record).Error; err != nil {
		return 0, fmt.Errorf("room %s: %w", code, err)
	}
	w.rooms[code] = record.ID
	return record.ID, nil
}

func (w *historyWriter) persistEvent(roomID uint, roundID *uint, eventType string, payload EventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.db.Create(&db.Event{
		RoomID:    roomID,
		RoundID:   roundID,
		Type:      eventType,
		Payload:   datatypes.JSON(data),
		CreatedAt: timeNowUTC(),
	}).Error
}
