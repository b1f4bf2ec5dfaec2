package server

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type afterFunc func(d time.Duration, fn func()) (stop func() bool)

type roomTimer struct {
	stop func() bool
	gen  uint64
}

func realAfter(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

func expiryTimerKey(code string) string {
	return code + "/expiry"
}

func countdownTimerKey(code string) string {
	return code + "/countdown"
}

func graceTimerKey(code, identity string) string {
	return code + "/grace/" + identity
}

// scheduleTimer replaces any timer under key. A superseded callback never runs fn.
func (s *Server) scheduleTimer(key string, d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if existing, ok := s.timers[key]; ok {
		existing.stop()
	}
	s.timerGen++
	gen := s.timerGen
	stop := s.after(d, func() {
		s.timersMu.Lock()
		current, ok := s.timers[key]
		if !ok || current.gen != gen {
			s.timersMu.Unlock()
			return
		}
		delete(s.timers, key)
		s.timersMu.Unlock()
		fn()
	})
	s.timers[key] = &roomTimer{stop: stop, gen: gen}
}

func (s *Server) cancelTimer(key string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[key]; ok {
		timer.stop()
		delete(s.timers, key)
	}
}

func (s *Server) cancelRoomTimers(code string) {
	prefix := code + "/"
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for key, timer := range s.timers {
		if strings.HasPrefix(key, prefix) {
			timer.stop()
			delete(s.timers, key)
		}
	}
}

// scheduleCountdown finishes the countdown on the clients' behalf if none of them reports it.
func (s *Server) scheduleCountdown(room *Room) {
	code, number := room.Code, room.Round.Number
	ticks := room.settings.CountdownTicks
	d := time.Duration(ticks+s.cfg.AutoSubmitGraceSeconds) * time.Second
	s.scheduleTimer(countdownTimerKey(code), d, func() {
		err := s.rooms.Update(code, func(room *Room) error {
			if room.Round == nil || room.Round.Number != number {
				return errIgnored
			}
			return s.countdownFinished(room, "", s.now())
		})
		if err == nil {
			log.Info().Str("room", code).Int("round", number).Msg("countdown finished by server")
		}
	})
}

// scheduleExpiry auto-submits every pending drawing once the round's time is up.
func (s *Server) scheduleExpiry(room *Room) {
	round := room.Round
	code, number := room.Code, round.Number
	grace := time.Duration(s.cfg.AutoSubmitGraceSeconds) * time.Second
	d := round.deadline().Add(grace).Sub(s.now())
	s.scheduleTimer(expiryTimerKey(code), d, func() {
		s.expireRound(code, number)
	})
}

func (s *Server) expireRound(code string, number int) {
	var filled []autoFilledDrawing
	err := s.rooms.Update(code, func(room *Room) error {
		if room.Phase != phasePlaying || room.Round == nil || room.Round.Number != number {
			return errIgnored
		}
		filled = s.autoSubmitPending(room, s.now())
		return nil
	})
	if err != nil {
		return
	}
	log.Info().Str("room", code).Int("round", number).Int("auto_submitted", len(filled)).Msg("round expired")
}

// scheduleDeparture finalizes a disconnect unless the identity re-attaches within the grace period.
func (s *Server) scheduleDeparture(code, identity string) {
	d := time.Duration(s.cfg.DisconnectGraceSeconds) * time.Second
	s.scheduleTimer(graceTimerKey(code, identity), d, func() {
		_ = s.rooms.Update(code, func(room *Room) error {
			p, ok := room.participant(identity)
			if !ok || p.Connected() {
				return errIgnored
			}
			s.depart(room, identity, "disconnect_timeout")
			return nil
		})
	})
}
