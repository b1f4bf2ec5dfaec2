package server

import (
	"time"

	"github.com/rs/zerolog/log"
)

// dispatch applies one decoded request from identity to the locked room.
func (s *Server) dispatch(room *Room, identity string, req inboundRequest, now time.Time) error {
	switch msg := req.(type) {
	case *readyRequest:
		return s.setReady(room, identity, true)
	case *unreadyRequest:
		return s.setReady(room, identity, false)
	case *startRoundRequest:
		return s.startRound(room, identity)
	case *sendPromptRequest:
		return s.sendPrompt(room, identity, msg.Prompt, msg.TimeLimit)
	case *countdownFinishedRequest:
		return s.countdownFinished(room, identity, now)
	case *drawingProgressRequest:
		return s.saveDraft(room, identity, msg.DrawingData)
	case *submitDrawingRequest:
		return s.submitDrawing(room, identity, msg.DrawingData, msg.IsAutoSubmit, now)
	case *getDrawingsRequest:
		return s.getDrawings(room, identity)
	case *endRoundRequest:
		return s.endRound(room, identity, mergeAwards(msg.PointsToAward, msg.Results))
	case *resetRoundRequest:
		return s.resetRound(room, identity)
	case *endGameRequest:
		return s.endGame(room, identity)
	case *leaveRequest:
		s.depart(room, identity, "left")
		return nil
	case *joinRequest, *unknownRequest:
		return errIgnored
	default:
		return errIgnored
	}
}

func (s *Server) setReady(room *Room, identity string, ready bool) error {
	if room.GameStarted {
		return errIgnored
	}
	p, ok := room.participant(identity)
	if !ok || p.Ready == ready {
		return errIgnored
	}
	p.Ready = ready
	room.broadcast(room.snapshot())
	return nil
}

func (s *Server) startRound(room *Room, identity string) error {
	if !room.isJudge(identity) || room.GameStarted || room.Phase != phaseWaiting {
		return errIgnored
	}
	if len(room.players()) == 0 {
		return ValidationError("at least one player must join before the game starts")
	}
	room.GameStarted = true
	room.broadcast(roundStartedEvent{
		Type:         evtRoundStarted,
		Participants: room.participantViews(),
	})
	log.Info().Str("room", room.Code).Int("participants", len(room.participants)).Msg("game started")
	return nil
}

func (s *Server) sendPrompt(room *Room, identity, prompt string, timeLimit int) error {
	if !room.isJudge(identity) || room.Phase != phaseWaiting {
		return errIgnored
	}
	clean, err := validatePrompt(prompt)
	if err != nil {
		return ValidationError(err.Error())
	}
	if err := validateTimeLimit(timeLimit); err != nil {
		return ValidationError(err.Error())
	}
	players := room.players()
	if len(players) == 0 {
		return ValidationError("at least one player must join before sending a prompt")
	}
	room.GameStarted = true
	room.Round = newRound(room.RoundsPlayed+1, clean, timeLimit, players)
	room.Phase = phaseCountdown
	room.broadcast(promptSentEvent{
		Type:           evtPromptSent,
		Round:          room.Round.Number,
		Prompt:         clean,
		TimeLimit:      timeLimit,
		CountdownTicks: room.settings.CountdownTicks,
	})
	s.scheduleCountdown(room)
	s.history.record(historyEntry{
		Kind:      historyRoundStarted,
		Room:      room.Code,
		Round:     room.Round.Number,
		Prompt:    clean,
		TimeLimit: timeLimit,
	})
	log.Info().Str("room", room.Code).Int("round", room.Round.Number).Int("time_limit", timeLimit).Msg("prompt sent")
	return nil
}

// countdownFinished stamps the authoritative start time. Only the first signal of a round counts.
func (s *Server) countdownFinished(room *Room, identity string, now time.Time) error {
	if identity != "" {
		if _, ok := room.participant(identity); !ok {
			return errIgnored
		}
	}
	round := room.Round
	if room.Phase != phaseCountdown || round == nil || round.started() {
		return errIgnored
	}
	round.StartTime = now
	room.Phase = phasePlaying
	s.cancelTimer(countdownTimerKey(room.Code))
	room.broadcast(countdownFinishedEvent{
		Type:      evtCountdownFinished,
		StartTime: now.UnixMilli(),
		TimeLimit: round.TimeLimit,
	})
	s.scheduleExpiry(room)
	s.history.record(historyEntry{
		Kind:  historyRoundPlaying,
		Room:  room.Code,
		Round: round.Number,
		Phase: phasePlaying,
		At:    now,
	})
	return nil
}

func (s *Server) saveDraft(room *Room, identity, data string) error {
	round := room.Round
	if room.Phase != phasePlaying || round == nil || !round.expects(identity) || round.hasSubmitted(identity) {
		return errIgnored
	}
	clean, err := validateDrawingData(data, room.settings.MaxDrawingBytes)
	if err != nil {
		return err
	}
	round.drafts[identity] = clean
	return nil
}

// submitDrawing records a participant's drawing at most once per round. An empty auto-submit falls back
// to the latest draft, then to the blank placeholder.
func (s *Server) submitDrawing(room *Room, identity, data string, auto bool, now time.Time) error {
	round := room.Round
	if room.Phase != phasePlaying || round == nil || room.isJudge(identity) {
		return errIgnored
	}
	if !round.expects(identity) || round.hasSubmitted(identity) {
		return errIgnored
	}
	p, ok := room.participant(identity)
	if !ok {
		return errIgnored
	}
	if auto && data == "" {
		data = round.drafts[identity]
		if data == "" {
			data = blankDrawingData()
		}
	}
	clean, err := validateDrawingData(data, room.settings.MaxDrawingBytes)
	if err != nil {
		return err
	}
	sub := &Submission{
		ParticipantID: identity,
		Username:      p.Name,
		DrawingData:   clean,
		SubmittedAt:   now,
		AutoSubmitted: auto,
	}
	round.submissions[identity] = sub
	delete(round.drafts, identity)
	s.announceSubmission(room, sub)
	return nil
}

// autoSubmitPending fills every missing submission when the round's time is up.
func (s *Server) autoSubmitPending(room *Room, now time.Time) []autoFilledDrawing {
	filled := autoFillMissingDrawings(room, now)
	for _, entry := range filled {
		s.announceSubmission(room, entry.Submission)
	}
	return filled
}

func (s *Server) announceSubmission(room *Room, sub *Submission) {
	all := room.Round.allSubmitted()
	room.broadcast(drawingSubmittedEvent{
		Type:          evtDrawingSubmitted,
		ParticipantID: sub.ParticipantID,
		Username:      sub.Username,
		SubmittedAt:   sub.SubmittedAt.UnixMilli(),
		IsAutoSubmit:  sub.AutoSubmitted,
		AllSubmitted:  all,
	})
	if all {
		s.cancelTimer(expiryTimerKey(room.Code))
	}
	s.history.record(historyEntry{
		Kind:     historyDrawingSubmitted,
		Room:     room.Code,
		Identity: sub.ParticipantID,
		Name:     sub.Username,
		Round:    room.Round.Number,
		Drawing:  sub.DrawingData,
		Auto:     sub.AutoSubmitted,
		At:       sub.SubmittedAt,
	})
}

func (s *Server) getDrawings(room *Room, identity string) error {
	round := room.Round
	if !room.isJudge(identity) || room.Phase != phasePlaying || round == nil {
		return errIgnored
	}
	if !round.allSubmitted() {
		return ValidationError("waiting for every player to submit")
	}
	room.Phase = phaseReview
	s.cancelTimer(expiryTimerKey(room.Code))
	entries := make(map[string]reviewEntry, len(round.submissions))
	for id, sub := range round.submissions {
		entries[id] = reviewEntry{
			Username:      sub.Username,
			DrawingData:   sub.DrawingData,
			SubmittedAt:   sub.SubmittedAt.UnixMilli(),
			AutoSubmitted: sub.AutoSubmitted,
		}
	}
	room.broadcast(drawingsForReviewEvent{
		Type:        evtDrawingsForReview,
		Prompt:      round.Prompt,
		Submissions: entries,
	})
	s.history.record(historyEntry{
		Kind:  historyRoundReview,
		Room:  room.Code,
		Round: round.Number,
		Phase: phaseReview,
	})
	return nil
}

// mergeAwards combines the map form and the results list form of an award. The map wins on conflict.
func mergeAwards(points map[string]int, results []roundResult) map[string]int {
	merged := make(map[string]int, len(points)+len(results))
	for _, result := range results {
		if result.ParticipantID == "" || result.Points == nil {
			continue
		}
		merged[result.ParticipantID] = *result.Points
	}
	for id, value := range points {
		merged[id] = value
	}
	return merged
}

func clampAward(points, max int) int {
	if points < 0 {
		return 0
	}
	if max > 0 && points > max {
		return max
	}
	return points
}

// endRound applies point deltas. Awards to the judge or to unknown participants are dropped.
func (s *Server) endRound(room *Room, identity string, awards map[string]int) error {
	round := room.Round
	if !room.isJudge(identity) || room.Phase != phaseReview || round == nil {
		return errIgnored
	}
	applied := make(map[string]int, len(awards))
	for id, points := range awards {
		p, ok := room.participant(id)
		if !ok || room.isJudge(id) {
			continue
		}
		value := clampAward(points, room.settings.MaxAwardPoints)
		p.TotalPoints += value
		applied[id] = value
	}
	room.RoundsPlayed++
	room.Phase = phaseFinished
	room.broadcast(roundEndedEvent{
		Type:         evtRoundEnded,
		Round:        round.Number,
		Awards:       applied,
		Participants: room.participantViews(),
		Scoreboard:   room.standings(),
	})
	totals := make(map[string]int, len(room.participants))
	for id, p := range room.participants {
		totals[id] = p.TotalPoints
	}
	s.history.record(historyEntry{
		Kind:   historyRoundEnded,
		Room:   room.Code,
		Round:  round.Number,
		Awards: applied,
		Totals: totals,
	})
	log.Info().Str("room", room.Code).Int("round", round.Number).Msg("round ended")
	return nil
}

// resetRound clears the round but keeps membership and scores.
func (s *Server) resetRound(room *Room, identity string) error {
	if !room.isJudge(identity) || (room.Phase != phaseFinished && room.Phase != phasePodium) {
		return errIgnored
	}
	number := 0
	if room.Round != nil {
		number = room.Round.Number
	}
	room.Round = nil
	room.Phase = phaseWaiting
	s.cancelTimer(expiryTimerKey(room.Code))
	s.cancelTimer(countdownTimerKey(room.Code))
	room.broadcast(resetRoundEvent{Type: evtResetRound})
	room.broadcast(room.snapshot())
	if number > 0 {
		s.history.record(historyEntry{
			Kind:  historyRoundReset,
			Room:  room.Code,
			Round: number,
			Phase: phaseWaiting,
		})
	}
	return nil
}

func (s *Server) endGame(room *Room, identity string) error {
	if !room.isJudge(identity) || room.Phase != phaseFinished {
		return errIgnored
	}
	room.Phase = phasePodium
	standings := room.standings()
	podium := make([]podiumEntry, 0, len(standings))
	totals := make(map[string]int, len(standings))
	for i, view := range standings {
		podium = append(podium, podiumEntry{Rank: i + 1, participantView: view})
		totals[view.ID] = view.TotalPoints
	}
	room.broadcast(gameEndedEvent{
		Type:   evtGameEnded,
		Rounds: room.RoundsPlayed,
		Podium: podium,
	})
	s.history.record(historyEntry{
		Kind:   historyGameEnded,
		Room:   room.Code,
		Round:  room.RoundsPlayed,
		Totals: totals,
	})
	log.Info().Str("room", room.Code).Int("rounds", room.RoundsPlayed).Msg("game ended")
	return nil
}

// depart removes identity from the room. The judge leaving, or the last player leaving a started game,
// tears the room down.
func (s *Server) depart(room *Room, identity, reason string) {
	p, ok := room.participant(identity)
	if !ok {
		return
	}
	s.cancelTimer(graceTimerKey(room.Code, identity))
	s.history.record(historyEntry{
		Kind:     historyParticipantLeft,
		Room:     room.Code,
		Identity: identity,
		Name:     p.Name,
		Reason:   reason,
	})
	if room.isJudge(identity) {
		log.Info().Str("room", room.Code).Str("participant", identity).Str("reason", reason).Msg("judge left, closing room")
		room.teardown("judge_left", judgeDisconnectedEvent{Type: evtJudgeDisconnected, Reason: reason})
		return
	}
	if p.channel != nil {
		delete(room.channels, p.channel)
		p.channel = nil
	}
	room.removeParticipant(identity)
	if room.Round != nil {
		room.Round.forget(identity)
	}
	if room.GameStarted && len(room.players()) == 0 {
		log.Info().Str("room", room.Code).Msg("all players left, closing room")
		room.sendTo(room.JudgeID, allPlayersLeftEvent{Type: evtAllPlayersLeft})
		room.teardown("all_players_left", nil)
		return
	}
	all := false
	if room.Round != nil {
		all = room.Round.allSubmitted()
		if all {
			s.cancelTimer(expiryTimerKey(room.Code))
		}
	}
	room.broadcast(playerDisconnectedEvent{
		Type:          evtPlayerDisconnected,
		ParticipantID: identity,
		Username:      p.Name,
		AllSubmitted:  all,
	})
	room.broadcast(room.snapshot())
	log.Info().Str("room", room.Code).Str("participant", identity).Str("reason", reason).Msg("participant left")
}
