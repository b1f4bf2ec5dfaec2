package server

const (
	historyRoomCreated       = "room_created"
	historyParticipantJoined = "participant_joined"
	historyParticipantLeft   = "participant_left"
	historyRoundStarted      = "round_started"
	historyRoundPlaying      = "round_playing"
	historyDrawingSubmitted  = "drawing_submitted"
	historyRoundReview       = "round_review"
	historyRoundEnded        = "round_ended"
	historyRoundReset        = "round_reset"
	historyGameEnded         = "game_ended"
	historyRoomClosed        = "room_closed"
)

// EventPayload is the JSON body stored with every history event.
type EventPayload struct {
	RoomCode      string         `json:"room_code,omitempty"`
	Participant   string         `json:"participant,omitempty"`
	ParticipantID string         `json:"participant_id,omitempty"`
	RoundNumber   int            `json:"round_number,omitempty"`
	Phase         string         `json:"phase,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Prompt        string         `json:"prompt,omitempty"`
	TimeLimit     int            `json:"time_limit,omitempty"`
	AutoSubmitted bool           `json:"auto_submitted,omitempty"`
	Awards        map[string]int `json:"awards,omitempty"`
	Totals        map[string]int `json:"totals,omitempty"`
	Count         int            `json:"count,omitempty"`
}
