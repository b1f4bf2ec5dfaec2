package server

import "errors"

// AdmissionError rejects a join attempt. The room itself is never affected.
type AdmissionError string

func (e AdmissionError) Error() string {
	return string(e)
}

const (
	ErrRoomNotFound       AdmissionError = "room not found"
	ErrGameAlreadyStarted AdmissionError = "game already started"
	ErrRoomFull           AdmissionError = "room is full"
	ErrRoomClosed         AdmissionError = "room closed"
)

// Reason is the wire code sent in join_rejected.
func (e AdmissionError) Reason() string {
	switch e {
	case ErrRoomNotFound, ErrRoomClosed:
		return "room_not_found"
	case ErrGameAlreadyStarted:
		return "game_already_started"
	case ErrRoomFull:
		return "room_full"
	default:
		return "rejected"
	}
}

// ValidationError is returned to the sender only; no state changed.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

// errIgnored marks a protocol violation: wrong phase, wrong role or a duplicate signal.
var errIgnored = errors.New("message ignored")

var errChannelClosed = errors.New("channel closed")
