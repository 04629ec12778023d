package room

import "github.com/cockroachdb/errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomBusy     = errors.New("room is busy")
	ErrRoomFull     = errors.New("room is full")
	ErrNotAMember   = errors.New("user is not a member of the room")
	ErrNotInQueue   = errors.New("song is not in the queue")
	ErrInvalidState = errors.New("invalid room state")
	ErrPrivateRoom  = errors.New("access code does not match")
)
