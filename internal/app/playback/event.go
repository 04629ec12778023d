package playback

// EventType represents what an advance did to the room.
type EventType int

const (
	EventSongStarted EventType = iota // Next song from the queue started
	EventQueueEmpty                   // Queue was empty; playback stopped
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSongStarted:
		return "song_started"
	case EventQueueEmpty:
		return "queue_empty"
	default:
		return "unknown"
	}
}

// Event describes the outcome of Advance.
type Event struct {
	Type     EventType
	SongID   string // New current song ("" for EventQueueEmpty)
	PrevSong string // Song that was replaced
	DJIndex  int    // Current DJ index after the advance
	State    State  // Playback state after the advance
}
