package web

import "time"

type RoomSummary struct {
	Code         string
	Phase        string
	GameStarted  bool
	Participants int
	Capacity     int
	CreatedAt    time.Time
}
