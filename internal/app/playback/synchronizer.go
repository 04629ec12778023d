package playback

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/queue"
	"github.com/osa030/19room/internal/app/rotation"
	"github.com/osa030/19room/internal/domain/room"
)

// Command is a transport write. Nil fields leave the stored value unchanged.
type Command struct {
	SongID    *string  `json:"songId,omitempty"`
	Position  *float64 `json:"position,omitempty"`
	IsPlaying *bool    `json:"isPlaying,omitempty"`
}

// IsEmpty reports whether the command sets no field at all.
func (c Command) IsEmpty() bool {
	return c.SongID == nil && c.Position == nil && c.IsPlaying == nil
}

// Apply validates cmd against r and then writes it. Nothing is written on error.
// The last accepted write wins; playbackUpdatedAt is always stamped with now.
func Apply(r *room.Room, cmd Command, now time.Time) error {
	if cmd.IsEmpty() {
		return errors.Wrap(room.ErrInvalidState, "empty playback command")
	}
	if cmd.Position != nil {
		p := *cmd.Position
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return errors.Wrapf(room.ErrInvalidState, "invalid position %v", p)
		}
	}

	songID := r.CurrentSongID
	if cmd.SongID != nil {
		songID = *cmd.SongID
	}
	playing := r.IsPlaying
	if cmd.IsPlaying != nil {
		playing = *cmd.IsPlaying
	}
	if songID == "" && playing {
		if cmd.IsPlaying != nil {
			return errors.Wrap(room.ErrInvalidState, "cannot play without a current song")
		}
		// Clearing the song stops playback.
		playing = false
	}

	if songID != r.CurrentSongID {
		ChangeSong(r, songID, now)
	} else if r.IsPlaying {
		// Rebase so the new timestamp does not rewind the running clock.
		r.CurrentPosition = ExpectedPosition(r, now)
	}
	if cmd.Position != nil {
		r.CurrentPosition = *cmd.Position
	}
	r.IsPlaying = playing
	r.PlaybackUpdatedAt = &now

	zlog.Debug().Msgf("playback: room=%s song=%s position=%.3f playing=%v",
		r.ID, r.CurrentSongID, r.CurrentPosition, r.IsPlaying)
	return nil
}

// ChangeSong replaces the current song, resetting position and skip votes.
// Every song change in the room goes through here.
func ChangeSong(r *room.Room, songID string, now time.Time) {
	r.CurrentSongID = songID
	r.CurrentPosition = 0
	r.VoteSkip = nil
	r.PlaybackUpdatedAt = &now
	if songID == "" {
		r.IsPlaying = false
	}
}

// Advance ends the current song: the queue head becomes current and starts
// playing, or playback stops when the queue is empty. In rotation mode the
// DJ turn moves on as well.
func Advance(r *room.Room, now time.Time) Event {
	ev := Event{PrevSong: r.CurrentSongID}

	if next, ok := queue.DequeueNext(r); ok {
		ChangeSong(r, next, now)
		r.IsPlaying = true
		ev.Type = EventSongStarted
		ev.SongID = next
	} else {
		ChangeSong(r, "", now)
		ev.Type = EventQueueEmpty
	}

	if r.Mode == room.ModeDJRotation {
		rotation.Advance(r)
	}
	ev.DJIndex = r.CurrentDJIndex
	ev.State = StateOf(r)
	return ev
}

// ExpectedPosition is the position a client should be at now.
func ExpectedPosition(r *room.Room, now time.Time) float64 {
	return Project(r.CurrentPosition, r.IsPlaying, r.PlaybackUpdatedAt, now)
}

// Project extrapolates a stored position to now while playing.
func Project(position float64, playing bool, updatedAt *time.Time, now time.Time) float64 {
	if !playing || updatedAt == nil {
		return position
	}
	elapsed := now.Sub(*updatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return position + elapsed
}
