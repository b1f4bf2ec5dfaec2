package server

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Channel is one participant connection. Send must not block.
type Channel interface {
	ID() string
	Send(data []byte) error
	Close(reason string)
}

func newRoom(code string, settings roomSettings, now time.Time) *Room {
	return &Room{
		Code:         code,
		Phase:        phaseWaiting,
		CreatedAt:    now,
		idleSince:    now,
		settings:     settings,
		participants: make(map[string]*Participant),
		channels:     make(map[Channel]string),
	}
}

// admit binds ch to identity, creating the participant on first sight. The returned stale channel, if
// any, was bound to the same identity and must be closed by the caller.
func (room *Room) admit(ch Channel, identity, name string, now time.Time) (*Participant, Channel, bool, error) {
	if room.closed {
		return nil, nil, false, ErrRoomClosed
	}
	p, known := room.participants[identity]
	if !known {
		if room.GameStarted {
			return nil, nil, false, ErrGameAlreadyStarted
		}
		if len(room.participants) >= room.settings.MaxParticipants {
			return nil, nil, false, ErrRoomFull
		}
		p = &Participant{
			ID:        identity,
			Name:      name,
			JoinOrder: room.nextJoin,
			Color:     pickParticipantColor(room.nextJoin),
			JoinedAt:  now,
		}
		room.nextJoin++
		room.participants[identity] = p
		room.order = append(room.order, identity)
		if room.JudgeID == "" {
			room.JudgeID = identity
		}
	}
	var stale Channel
	if p.channel != nil && p.channel != ch {
		stale = p.channel
		delete(room.channels, stale)
	}
	p.channel = ch
	room.channels[ch] = identity
	room.idleSince = time.Time{}
	return p, stale, known, nil
}

// detach unbinds ch without removing the participant. It reports false when ch is no longer the
// participant's current channel.
func (room *Room) detach(ch Channel, now time.Time) (*Participant, bool) {
	identity, ok := room.channels[ch]
	if !ok {
		return nil, false
	}
	delete(room.channels, ch)
	p := room.participants[identity]
	if p == nil || p.channel != ch {
		return nil, false
	}
	p.channel = nil
	if len(room.channels) == 0 {
		room.idleSince = now
	}
	return p, true
}

func (room *Room) isJudge(identity string) bool {
	return identity != "" && identity == room.JudgeID
}

func (room *Room) participant(identity string) (*Participant, bool) {
	p, ok := room.participants[identity]
	return p, ok
}

// players returns the non-judge participants in join order.
func (room *Room) players() []*Participant {
	list := make([]*Participant, 0, len(room.order))
	for _, id := range room.order {
		if id == room.JudgeID {
			continue
		}
		if p, ok := room.participants[id]; ok {
			list = append(list, p)
		}
	}
	return list
}

func (room *Room) removeParticipant(identity string) {
	delete(room.participants, identity)
	for i, id := range room.order {
		if id == identity {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}
}

func (room *Room) broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room", room.Code).Msg("marshal broadcast failed")
		return
	}
	for _, id := range room.order {
		p := room.participants[id]
		if p == nil || p.channel == nil {
			continue
		}
		if err := p.channel.Send(data); err != nil {
			log.Debug().Err(err).Str("room", room.Code).Str("participant", id).Msg("broadcast send failed")
		}
	}
}

func (room *Room) sendTo(identity string, payload any) {
	p := room.participants[identity]
	if p == nil || p.channel == nil {
		return
	}
	sendPayload(p.channel, payload)
}

func sendPayload(ch Channel, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("conn", ch.ID()).Msg("marshal message failed")
		return
	}
	if err := ch.Send(data); err != nil {
		log.Debug().Err(err).Str("conn", ch.ID()).Msg("send failed")
	}
}

// teardown notifies every channel, closes them and marks the room closed.
func (room *Room) teardown(reason string, notice any) []Channel {
	if room.closed {
		return nil
	}
	if notice != nil {
		room.broadcast(notice)
	}
	closed := make([]Channel, 0, len(room.channels))
	for ch := range room.channels {
		ch.Close(reason)
		closed = append(closed, ch)
	}
	room.channels = make(map[Channel]string)
	for _, p := range room.participants {
		p.channel = nil
	}
	room.closed = true
	room.closeReason = reason
	return closed
}

func (room *Room) view(p *Participant) participantView {
	return participantView{
		ID:          p.ID,
		Username:    p.Name,
		IsJudge:     room.isJudge(p.ID),
		Ready:       p.Ready,
		TotalPoints: p.TotalPoints,
		Connected:   p.Connected(),
		Color:       p.Color,
	}
}

func (room *Room) participantViews() []participantView {
	views := make([]participantView, 0, len(room.order))
	for _, id := range room.order {
		if p, ok := room.participants[id]; ok {
			views = append(views, room.view(p))
		}
	}
	return views
}

// standings ranks the non-judge participants by total points, ties by join order.
func (room *Room) standings() []participantView {
	players := room.players()
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].TotalPoints != players[j].TotalPoints {
			return players[i].TotalPoints > players[j].TotalPoints
		}
		return players[i].JoinOrder < players[j].JoinOrder
	})
	views := make([]participantView, 0, len(players))
	for _, p := range players {
		views = append(views, room.view(p))
	}
	return views
}

func (room *Room) snapshot() roomStateEvent {
	state := roomStateEvent{
		Type:         evtRoomState,
		RoomCode:     room.Code,
		Phase:        room.Phase,
		GameStarted:  room.GameStarted,
		JudgeID:      room.JudgeID,
		Participants: room.participantViews(),
	}
	if round := room.Round; round != nil {
		rv := &roundView{
			Number:       round.Number,
			Prompt:       round.Prompt,
			TimeLimit:    round.TimeLimit,
			Submitted:    round.submittedIDs(),
			Pending:      round.pendingIDs(),
			AllSubmitted: round.allSubmitted(),
		}
		if round.started() {
			rv.StartTime = round.StartTime.UnixMilli()
		}
		state.Round = rv
	}
	return state
}

func (room *Room) summary() RoomSummary {
	return RoomSummary{
		Code:         room.Code,
		Phase:        room.Phase,
		GameStarted:  room.GameStarted,
		Participants: len(room.participants),
		CreatedAt:    room.CreatedAt,
	}
}
