package db

import "time"

type Room struct {
	ID            uint       `gorm:"primaryKey"`
	Code          string     `gorm:"size:12;uniqueIndex;not null"`
	JudgeIdentity string     `gorm:"size:64"`
	Status        string     `gorm:"size:32;not null"`
	ClosedReason  string     `gorm:"size:64"`
	ClosedAt      *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	Participants  []Participant
	Rounds        []Round
	Events        []Event
}

type Participant struct {
	ID          uint      `gorm:"primaryKey"`
	RoomID      uint      `gorm:"index;not null;uniqueIndex:idx_participants_room_identity"`
	Identity    string    `gorm:"size:64;not null;uniqueIndex:idx_participants_room_identity"`
	Name        string    `gorm:"size:64;not null"`
	IsJudge     bool      `gorm:"not null;default:false"`
	TotalPoints int       `gorm:"not null;default:0"`
	JoinedAt    time.Time `gorm:"not null"`
	LeftAt      *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type Round struct {
	ID               uint   `gorm:"primaryKey"`
	RoomID           uint   `gorm:"index;not null;uniqueIndex:idx_rounds_room_number"`
	Number           int    `gorm:"not null;uniqueIndex:idx_rounds_room_number"`
	Prompt           string `gorm:"size:280;not null"`
	TimeLimitSeconds int    `gorm:"not null"`
	Status           string `gorm:"size:32;not null"`
	StartedAt        *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	Submissions      []Submission
}

type Submission struct {
	ID            uint      `gorm:"primaryKey"`
	RoundID       uint      `gorm:"index;not null;uniqueIndex:idx_submissions_round_participant"`
	ParticipantID uint      `gorm:"index;not null;uniqueIndex:idx_submissions_round_participant"`
	DrawingData   string    `gorm:"type:text;not null"`
	AutoSubmitted bool      `gorm:"not null;default:false"`
	PointsAwarded int       `gorm:"not null;default:0"`
	SubmittedAt   time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
