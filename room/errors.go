package room

import "errors"

// All of these are recoverable and surfaced only to the requesting
// connection, never to the rest of the room.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrGameInProgress  = errors.New("game already in progress")
	ErrPlayerNotFound  = errors.New("player not found in room")
	ErrNotHost         = errors.New("only the host can do that")
	ErrNotAllReady     = errors.New("not all players are ready")
	ErrInvalidRoomCode = errors.New("invalid room code")
)
