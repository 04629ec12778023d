package room

import "time"

// Snapshot is the client-facing view of a room after a committed transition.
// It carries the derived host and omits the access code.
type Snapshot struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"ownerId"`
	HostID            string     `json:"hostId"`
	Mode              Mode       `json:"mode"`
	Members           []Member   `json:"members"`
	DJs               []DJ       `json:"djs"`
	CurrentDJIndex    int        `json:"currentDjIndex"`
	Queue             []string   `json:"queue"`
	CurrentSongID     string     `json:"currentSongId"`
	CurrentPosition   float64    `json:"currentPosition"`
	IsPlaying         bool       `json:"isPlaying"`
	PlaybackUpdatedAt *time.Time `json:"playbackUpdatedAt,omitempty"`
	VoteSkip          []string   `json:"voteSkip"`
	MaxMembers        int        `json:"maxMembers"`
	IsPrivate         bool       `json:"isPrivate"`
	CreatedAt         time.Time  `json:"createdAt"`
	Version           uint64     `json:"version"`
	ServerTime        time.Time  `json:"serverTime"`
}

// Snapshot builds a snapshot with the given host and server clock reading.
func (r *Room) Snapshot(hostID string, now time.Time) Snapshot {
	c := r.Clone()
	return Snapshot{
		ID:                c.ID,
		OwnerID:           c.OwnerID,
		HostID:            hostID,
		Mode:              c.Mode,
		Members:           c.Members,
		DJs:               c.DJs,
		CurrentDJIndex:    c.CurrentDJIndex,
		Queue:             c.Queue,
		CurrentSongID:     c.CurrentSongID,
		CurrentPosition:   c.CurrentPosition,
		IsPlaying:         c.IsPlaying,
		PlaybackUpdatedAt: c.PlaybackUpdatedAt,
		VoteSkip:          c.VoteSkip,
		MaxMembers:        c.MaxMembers,
		IsPrivate:         c.IsPrivate,
		CreatedAt:         c.CreatedAt,
		Version:           c.Version,
		ServerTime:        now,
	}
}
