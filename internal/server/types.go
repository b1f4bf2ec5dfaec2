package server

import (
	"sync"
	"time"
)

const (
	phaseWaiting   = "waiting"
	phaseCountdown = "countdown"
	phasePlaying   = "playing"
	phaseReview    = "review"
	phaseFinished  = "finished"
	phasePodium    = "podium"
)

const (
	minTimeLimit = 5
	maxTimeLimit = 3600
)

type RoomStatus struct {
	Exists           bool `json:"exists"`
	GameStarted      bool `json:"gameStarted"`
	ParticipantCount int  `json:"participantCount"`
}

type RoomSummary struct {
	Code         string    `json:"code"`
	Phase        string    `json:"phase"`
	GameStarted  bool      `json:"gameStarted"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
}

// roomSettings are copied from the server config when the room is created.
type roomSettings struct {
	MaxParticipants int
	CountdownTicks  int
	MaxAwardPoints  int
	MaxDrawingBytes int
}

type Room struct {
	mu sync.Mutex

	Code         string
	JudgeID      string
	Phase        string
	GameStarted  bool
	Round        *Round
	RoundsPlayed int
	CreatedAt    time.Time
	settings     roomSettings
	idleSince    time.Time

	participants map[string]*Participant
	order        []string
	nextJoin     int
	channels     map[Channel]string
	closed       bool
	closeReason  string
}

type Participant struct {
	ID          string
	Name        string
	Ready       bool
	TotalPoints int
	JoinOrder   int
	Color       string
	JoinedAt    time.Time
	channel     Channel
}

func (p *Participant) Connected() bool {
	return p.channel != nil
}

// Round is replaced, never reused, when the judge sends the next prompt.
type Round struct {
	Number      int
	Prompt      string
	TimeLimit   int
	StartTime   time.Time
	expected    map[string]struct{}
	submissions map[string]*Submission
	drafts      map[string]string
}

type Submission struct {
	ParticipantID string
	Username      string
	DrawingData   string
	SubmittedAt   time.Time
	AutoSubmitted bool
}

func (r *Round) started() bool {
	return !r.StartTime.IsZero()
}

func (r *Round) deadline() time.Time {
	return r.StartTime.Add(time.Duration(r.TimeLimit) * time.Second)
}
