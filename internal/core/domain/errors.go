package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrRoomFull            = errors.New("room is full")
	ErrGameAlreadyStarted  = errors.New("game already in progress")
	ErrGameNotStarted      = errors.New("game has not started")
	ErrGameCompleted       = errors.New("game already completed")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
	ErrAlreadySubmitted    = errors.New("score already submitted")
	ErrNotRoomMember       = errors.New("player is not a member of the room")
	ErrInvalidScore        = errors.New("score must be between 0 and 100")
	ErrInvalidSDP          = errors.New("invalid session description")
	ErrInvalidICECandidate = errors.New("invalid ICE candidate")
	ErrRoomCodeConflict    = errors.New("room code already in use")
)
