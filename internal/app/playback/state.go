// Package playback applies transport commands to a room's playback snapshot.
package playback

import "github.com/osa030/19room/internal/domain/room"

// State represents the derived playback state of a room.
type State int

const (
	StateIdle    State = iota // No current song
	StatePlaying              // Song is playing
	StatePaused               // Song is loaded but paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// StateOf derives the playback state from the room snapshot fields.
func StateOf(r *room.Room) State {
	switch {
	case r.CurrentSongID == "":
		return StateIdle
	case r.IsPlaying:
		return StatePlaying
	default:
		return StatePaused
	}
}
