package server

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin/binding"
)

const (
	msgJoin              = "join"
	msgReady             = "ready"
	msgUnready           = "unready"
	msgStartRound        = "start_round"
	msgSendPrompt        = "send_prompt"
	msgCountdownFinished = "countdown_finished"
	msgDrawingProgress   = "drawing_progress"
	msgSubmitDrawing     = "submit_drawing"
	msgGetDrawings       = "get_drawings"
	msgEndRound          = "end_round"
	msgResetRound        = "reset_round"
	msgEndGame           = "end_game"
	msgLeave             = "leave"
)

const (
	evtJoined             = "joined"
	evtJoinRejected       = "join_rejected"
	evtRoomState          = "room_state"
	evtRoundStarted       = "round_started"
	evtPromptSent         = "prompt_sent"
	evtCountdownFinished  = "countdown_finished"
	evtDrawingSubmitted   = "player_drawing_submitted"
	evtDrawingsForReview  = "drawings_for_review"
	evtRoundEnded         = "round_ended"
	evtPlayerDisconnected = "player_disconnected"
	evtJudgeDisconnected  = "judge_disconnected"
	evtAllPlayersLeft     = "all_players_left"
	evtResetRound         = "reset_round"
	evtGameEnded          = "game_ended"
	evtRoomClosed         = "room_closed"
	evtError              = "error"
)

// inboundRequest is one variant of the client message union.
type inboundRequest interface {
	requestType() string
}

type joinRequest struct {
	Username string `json:"username" binding:"required,name"`
	Identity string `json:"uuid" binding:"required,identity"`
	Room     string `json:"room" binding:"required,roomcode"`
}

type readyRequest struct{}

type unreadyRequest struct{}

type startRoundRequest struct{}

type sendPromptRequest struct {
	Prompt    string `json:"prompt" binding:"required,prompt"`
	TimeLimit int    `json:"timeLimit" binding:"min=5,max=3600"`
}

type countdownFinishedRequest struct{}

type drawingProgressRequest struct {
	DrawingData string `json:"drawingData" binding:"required"`
}

type submitDrawingRequest struct {
	DrawingData  string `json:"drawingData"`
	IsAutoSubmit bool   `json:"isAutoSubmit"`
}

type getDrawingsRequest struct{}

type roundResult struct {
	ParticipantID string `json:"playerId"`
	Points        *int   `json:"points,omitempty"`
}

type endRoundRequest struct {
	PointsToAward map[string]int `json:"pointsToAward"`
	Results       []roundResult  `json:"results"`
}

type resetRoundRequest struct{}

type endGameRequest struct{}

type leaveRequest struct{}

type unknownRequest struct {
	Type string
}

func (*joinRequest) requestType() string              { return msgJoin }
func (*readyRequest) requestType() string             { return msgReady }
func (*unreadyRequest) requestType() string           { return msgUnready }
func (*startRoundRequest) requestType() string        { return msgStartRound }
func (*sendPromptRequest) requestType() string        { return msgSendPrompt }
func (*countdownFinishedRequest) requestType() string { return msgCountdownFinished }
func (*drawingProgressRequest) requestType() string   { return msgDrawingProgress }
func (*submitDrawingRequest) requestType() string     { return msgSubmitDrawing }
func (*getDrawingsRequest) requestType() string       { return msgGetDrawings }
func (*endRoundRequest) requestType() string          { return msgEndRound }
func (*resetRoundRequest) requestType() string        { return msgResetRound }
func (*endGameRequest) requestType() string           { return msgEndGame }
func (*leaveRequest) requestType() string             { return msgLeave }
func (u *unknownRequest) requestType() string         { return u.Type }

var requestMessages = map[string]bindMessages{
	msgJoin: {
		"Username": {"required": "username is required", "name": "username must be 1-20 plain characters"},
		"Identity": {"required": "uuid is required", "identity": "uuid is not a valid identity"},
		"Room":     {"required": "room code is required", "roomcode": "room code is not valid"},
	},
	msgSendPrompt: {
		"Prompt":    {"required": "prompt is required", "prompt": "prompt must be 1-140 plain characters"},
		"TimeLimit": {"min": "time limit must be between 5 and 3600 seconds", "max": "time limit must be between 5 and 3600 seconds"},
	},
	msgDrawingProgress: {
		"DrawingData": {"required": "drawing data is required"},
	},
}

func newRequest(kind string) inboundRequest {
	switch kind {
	case msgJoin:
		return &joinRequest{}
	case msgReady:
		return &readyRequest{}
	case msgUnready:
		return &unreadyRequest{}
	case msgStartRound:
		return &startRoundRequest{}
	case msgSendPrompt:
		return &sendPromptRequest{}
	case msgCountdownFinished:
		return &countdownFinishedRequest{}
	case msgDrawingProgress:
		return &drawingProgressRequest{}
	case msgSubmitDrawing:
		return &submitDrawingRequest{}
	case msgGetDrawings:
		return &getDrawingsRequest{}
	case msgEndRound:
		return &endRoundRequest{}
	case msgResetRound:
		return &resetRoundRequest{}
	case msgEndGame:
		return &endGameRequest{}
	case msgLeave:
		return &leaveRequest{}
	default:
		return &unknownRequest{Type: kind}
	}
}

// decodeRequest parses one client frame. Unknown kinds decode to *unknownRequest so the
// dispatcher can drop them explicitly.
func decodeRequest(data []byte) (inboundRequest, error) {
	registerValidators()
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, ValidationError("message must be a json object")
	}
	if head.Type == "" {
		return nil, ValidationError("message type is required")
	}
	req := newRequest(head.Type)
	if _, unknown := req.(*unknownRequest); unknown {
		return req, nil
	}
	if err := json.Unmarshal(data, req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, ValidationError(typeErr.Field + " has the wrong type")
		}
		return nil, ValidationError("malformed " + head.Type + " message")
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return nil, ValidationError(resolveBindError(err, requestMessages[head.Type], "invalid "+head.Type+" message"))
	}
	return req, nil
}

type participantView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	IsJudge     bool   `json:"isJudge"`
	Ready       bool   `json:"ready"`
	TotalPoints int    `json:"totalPoints"`
	Connected   bool   `json:"connected"`
	Color       string `json:"color"`
}

type roundView struct {
	Number       int      `json:"number"`
	Prompt       string   `json:"prompt"`
	TimeLimit    int      `json:"timeLimit"`
	StartTime    int64    `json:"startTime,omitempty"`
	Submitted    []string `json:"submitted"`
	Pending      []string `json:"pending"`
	AllSubmitted bool     `json:"allSubmitted"`
}

type joinedEvent struct {
	Type          string `json:"type"`
	RoomCode      string `json:"roomCode"`
	ParticipantID string `json:"participantId"`
	IsJudge       bool   `json:"isJudge"`
	Reconnected   bool   `json:"reconnected"`
}

type roomClosedEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type joinRejectedEvent struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type roomStateEvent struct {
	Type         string            `json:"type"`
	RoomCode     string            `json:"roomCode"`
	Phase        string            `json:"phase"`
	GameStarted  bool              `json:"gameStarted"`
	JudgeID      string            `json:"judgeId"`
	Participants []participantView `json:"participants"`
	Round        *roundView        `json:"round,omitempty"`
}

type roundStartedEvent struct {
	Type         string            `json:"type"`
	Participants []participantView `json:"participants"`
}

type promptSentEvent struct {
	Type           string `json:"type"`
	Round          int    `json:"round"`
	Prompt         string `json:"prompt"`
	TimeLimit      int    `json:"timeLimit"`
	CountdownTicks int    `json:"countdownTicks"`
}

type countdownFinishedEvent struct {
	Type      string `json:"type"`
	StartTime int64  `json:"startTime"`
	TimeLimit int    `json:"timeLimit"`
}

type drawingSubmittedEvent struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
	Username      string `json:"username"`
	SubmittedAt   int64  `json:"submittedAt"`
	IsAutoSubmit  bool   `json:"isAutoSubmit"`
	AllSubmitted  bool   `json:"allSubmitted"`
}

type reviewEntry struct {
	Username      string `json:"username"`
	DrawingData   string `json:"drawingData"`
	SubmittedAt   int64  `json:"submittedAt"`
	AutoSubmitted bool   `json:"isAutoSubmit"`
}

type drawingsForReviewEvent struct {
	Type        string                 `json:"type"`
	Prompt      string                 `json:"prompt"`
	Submissions map[string]reviewEntry `json:"submissions"`
}

type roundEndedEvent struct {
	Type         string            `json:"type"`
	Round        int               `json:"round"`
	Awards       map[string]int    `json:"awards"`
	Participants []participantView `json:"participants"`
	Scoreboard   []participantView `json:"scoreboard"`
}

type playerDisconnectedEvent struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
	Username      string `json:"username"`
	AllSubmitted  bool   `json:"allSubmitted"`
}

type judgeDisconnectedEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type allPlayersLeftEvent struct {
	Type string `json:"type"`
}

type resetRoundEvent struct {
	Type string `json:"type"`
}

type podiumEntry struct {
	Rank int `json:"rank"`
	participantView
}

type gameEndedEvent struct {
	Type   string        `json:"type"`
	Rounds int           `json:"rounds"`
	Podium []podiumEntry `json:"podium"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
