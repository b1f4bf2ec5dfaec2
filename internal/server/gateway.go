package server

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// draftThrottle is implemented by channels that limit how often drafts are stored.
type draftThrottle interface {
	allowDraft() bool
}

type channelBinding struct {
	Room     string
	Identity string
}

// gateway maps each channel to the room and identity it joined as.
type gateway struct {
	mu    sync.Mutex
	bound map[Channel]channelBinding
}

func newGateway() *gateway {
	return &gateway{bound: make(map[Channel]channelBinding)}
}

func (g *gateway) bind(ch Channel, b channelBinding) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bound[ch] = b
}

func (g *gateway) lookup(ch Channel) (channelBinding, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.bound[ch]
	return b, ok
}

func (g *gateway) unbind(ch Channel) (channelBinding, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.bound[ch]
	if ok {
		delete(g.bound, ch)
	}
	return b, ok
}

// Join admits ch into the room as identity. Rejections are sent to ch, which is then closed.
func (s *Server) Join(ch Channel, code, username, identity string) error {
	if b, ok := s.gateway.lookup(ch); ok {
		if b.Room == normalizeRoomCode(code) && b.Identity == identity {
			return nil
		}
		return errIgnored
	}
	name, err := validateName(username)
	if err != nil {
		return ValidationError(err.Error())
	}
	id, err := validateIdentity(identity)
	if err != nil {
		return ValidationError(err.Error())
	}
	roomCode, err := validateRoomCode(code)
	if err != nil {
		s.reject(ch, ErrRoomNotFound)
		return ErrRoomNotFound
	}
	now := s.now()
	err = s.rooms.Update(roomCode, func(room *Room) error {
		p, stale, known, err := room.admit(ch, id, name, now)
		if err != nil {
			return err
		}
		s.gateway.bind(ch, channelBinding{Room: room.Code, Identity: id})
		s.cancelTimer(graceTimerKey(room.Code, id))
		if stale != nil {
			s.gateway.unbind(stale)
			stale.Close("replaced")
		}
		sendPayload(ch, joinedEvent{
			Type:          evtJoined,
			RoomCode:      room.Code,
			ParticipantID: id,
			IsJudge:       room.isJudge(id),
			Reconnected:   known,
		})
		room.broadcast(room.snapshot())
		if !known {
			s.history.record(historyEntry{
				Kind:     historyParticipantJoined,
				Room:     room.Code,
				Identity: id,
				Name:     p.Name,
				IsJudge:  room.isJudge(id),
				At:       now,
			})
		}
		log.Info().Str("room", room.Code).Str("participant", id).Str("conn", ch.ID()).Bool("reconnected", known).Msg("participant joined")
		return nil
	})
	var admission AdmissionError
	if errors.As(err, &admission) {
		s.reject(ch, admission)
	}
	return err
}

func (s *Server) reject(ch Channel, err AdmissionError) {
	log.Info().Str("conn", ch.ID()).Str("reason", err.Reason()).Msg("join rejected")
	sendPayload(ch, joinRejectedEvent{
		Type:    evtJoinRejected,
		Reason:  err.Reason(),
		Message: err.Error(),
	})
	ch.Close(err.Reason())
}

// HandleMessage decodes one frame from ch and applies it to the channel's room.
func (s *Server) HandleMessage(ch Channel, data []byte) {
	req, err := decodeRequest(data)
	if err != nil {
		s.reportError(ch, err)
		return
	}
	if join, ok := req.(*joinRequest); ok {
		if err := s.Join(ch, join.Room, join.Username, join.Identity); err != nil {
			s.reportError(ch, err)
		}
		return
	}
	b, ok := s.gateway.lookup(ch)
	if !ok {
		log.Debug().Str("conn", ch.ID()).Str("type", req.requestType()).Msg("message before join ignored")
		return
	}
	if _, draft := req.(*drawingProgressRequest); draft {
		if t, ok := ch.(draftThrottle); ok && !t.allowDraft() {
			return
		}
	}
	_, leaving := req.(*leaveRequest)
	err = s.rooms.Update(b.Room, func(room *Room) error {
		if room.channels[ch] != b.Identity {
			return errIgnored
		}
		return s.dispatch(room, b.Identity, req, s.now())
	})
	if leaving && err == nil {
		s.gateway.unbind(ch)
		ch.Close("left")
		return
	}
	if err != nil {
		if errors.Is(err, errIgnored) {
			log.Debug().Str("room", b.Room).Str("participant", b.Identity).Str("type", req.requestType()).Msg("message ignored")
			return
		}
		s.reportError(ch, err)
	}
}

// HandleClose is called once the transport for ch has gone away.
func (s *Server) HandleClose(ch Channel) {
	b, ok := s.gateway.unbind(ch)
	if !ok {
		return
	}
	grace := s.cfg.DisconnectGraceSeconds > 0
	_ = s.rooms.Update(b.Room, func(room *Room) error {
		p, current := room.detach(ch, s.now())
		if !current {
			return errIgnored
		}
		if !grace {
			s.depart(room, p.ID, "disconnected")
			return nil
		}
		room.broadcast(room.snapshot())
		s.scheduleDeparture(room.Code, p.ID)
		log.Info().Str("room", room.Code).Str("participant", p.ID).Msg("participant disconnected, awaiting reconnect")
		return nil
	})
}

func (s *Server) reportError(ch Channel, err error) {
	var validation ValidationError
	switch {
	case errors.As(err, &validation):
		sendPayload(ch, errorEvent{Type: evtError, Message: validation.Error()})
	case errors.Is(err, errIgnored):
	default:
		var admission AdmissionError
		if errors.As(err, &admission) {
			return
		}
		log.Warn().Err(err).Str("conn", ch.ID()).Msg("message failed")
	}
}
