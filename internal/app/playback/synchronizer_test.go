package playback

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19room/internal/domain/room"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func str(s string) *string         { return &s }
func num(f float64) *float64       { return &f }
func flag(b bool) *bool            { return &b }
func at(d time.Duration) time.Time { return t0.Add(d) }

func newRoom() *room.Room {
	r := room.New("room-1", "owner1", "Owner", 10, false, "", t0)
	r.Members = append(r.Members, room.Member{UserID: "u1"}, room.Member{UserID: "u2"})
	return r
}

func TestApply_Validation(t *testing.T) {
	tests := []struct {
		name string
		prep func(r *room.Room)
		cmd  Command
	}{
		{name: "empty command", cmd: Command{}},
		{name: "negative position", cmd: Command{Position: num(-0.5)}},
		{name: "play without song", cmd: Command{IsPlaying: flag(true)}},
		{name: "clear song but play", prep: func(r *room.Room) { r.CurrentSongID = "a" }, cmd: Command{SongID: str(""), IsPlaying: flag(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoom()
			if tt.prep != nil {
				tt.prep(r)
			}
			before := r.Clone()

			err := Apply(r, tt.cmd, t0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, room.ErrInvalidState))
			assert.Equal(t, before, r, "failed command must not write")
		})
	}
}

func TestApply_SongChangeResetsVotesAndPosition(t *testing.T) {
	r := newRoom()
	r.CurrentSongID = "a"
	r.CurrentPosition = 42
	r.VoteSkip = []string{"u1", "u2"}

	require.NoError(t, Apply(r, Command{SongID: str("b"), IsPlaying: flag(true)}, at(time.Second)))

	assert.Equal(t, "b", r.CurrentSongID)
	assert.Empty(t, r.VoteSkip)
	assert.Equal(t, 0.0, r.CurrentPosition)
	assert.True(t, r.IsPlaying)
	require.NotNil(t, r.PlaybackUpdatedAt)
	assert.Equal(t, at(time.Second), *r.PlaybackUpdatedAt)
}

func TestApply_SongChangeWithExplicitPosition(t *testing.T) {
	r := newRoom()
	r.CurrentSongID = "a"

	require.NoError(t, Apply(r, Command{SongID: str("b"), Position: num(30)}, t0))
	assert.Equal(t, 30.0, r.CurrentPosition)
}

func TestApply_SameSongKeepsVotes(t *testing.T) {
	r := newRoom()
	r.CurrentSongID = "a"
	r.VoteSkip = []string{"u1"}

	require.NoError(t, Apply(r, Command{SongID: str("a"), Position: num(10)}, t0))
	assert.Equal(t, []string{"u1"}, r.VoteSkip)
}

func TestApply_PauseRebasesPosition(t *testing.T) {
	r := newRoom()
	require.NoError(t, Apply(r, Command{SongID: str("a"), IsPlaying: flag(true)}, t0))

	require.NoError(t, Apply(r, Command{IsPlaying: flag(false)}, at(15*time.Second)))

	assert.False(t, r.IsPlaying)
	assert.InDelta(t, 15.0, r.CurrentPosition, 1e-9)
	assert.InDelta(t, 15.0, ExpectedPosition(r, at(time.Hour)), 1e-9, "paused clock does not move")
}

func TestApply_OmittedPositionRebasesWhilePlaying(t *testing.T) {
	tests := []struct {
		name        string
		cmd         Command
		wantPos     float64
		wantPlaying bool
	}{
		{name: "same song resent", cmd: Command{SongID: str("a")}, wantPos: 20, wantPlaying: true},
		{name: "play resent", cmd: Command{IsPlaying: flag(true)}, wantPos: 20, wantPlaying: true},
		{name: "explicit position wins", cmd: Command{IsPlaying: flag(true), Position: num(3)}, wantPos: 3, wantPlaying: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoom()
			require.NoError(t, Apply(r, Command{SongID: str("a"), IsPlaying: flag(true)}, t0))

			require.NoError(t, Apply(r, tt.cmd, at(20*time.Second)))
			assert.Equal(t, tt.wantPlaying, r.IsPlaying)
			assert.InDelta(t, tt.wantPos, r.CurrentPosition, 1e-9)
			assert.Equal(t, at(20*time.Second), *r.PlaybackUpdatedAt)
		})
	}
}

func TestApply_SeekWhilePlaying(t *testing.T) {
	r := newRoom()
	require.NoError(t, Apply(r, Command{SongID: str("a"), IsPlaying: flag(true)}, t0))
	require.NoError(t, Apply(r, Command{Position: num(90)}, at(5*time.Second)))

	assert.True(t, r.IsPlaying)
	assert.InDelta(t, 92.0, ExpectedPosition(r, at(7*time.Second)), 1e-9)
}

func TestApply_ClearSongStops(t *testing.T) {
	r := newRoom()
	require.NoError(t, Apply(r, Command{SongID: str("a"), IsPlaying: flag(true)}, t0))
	require.NoError(t, Apply(r, Command{SongID: str("")}, at(time.Second)))

	assert.Equal(t, "", r.CurrentSongID)
	assert.False(t, r.IsPlaying)
	assert.Equal(t, StateIdle, StateOf(r))
	assert.NoError(t, r.Validate())
}

func TestAdvance(t *testing.T) {
	t.Run("queue head starts playing", func(t *testing.T) {
		r := newRoom()
		r.CurrentSongID = "a"
		r.Queue = []string{"b", "c"}
		r.VoteSkip = []string{"u1"}

		ev := Advance(r, t0)

		assert.Equal(t, EventSongStarted, ev.Type)
		assert.Equal(t, "b", ev.SongID)
		assert.Equal(t, "a", ev.PrevSong)
		assert.Equal(t, "b", r.CurrentSongID)
		assert.Equal(t, []string{"c"}, r.Queue)
		assert.Empty(t, r.VoteSkip)
		assert.True(t, r.IsPlaying)
		assert.Equal(t, StatePlaying, ev.State)
	})

	t.Run("empty queue stops", func(t *testing.T) {
		r := newRoom()
		r.CurrentSongID = "a"
		r.IsPlaying = true

		ev := Advance(r, t0)

		assert.Equal(t, EventQueueEmpty, ev.Type)
		assert.Equal(t, "", r.CurrentSongID)
		assert.False(t, r.IsPlaying)
		assert.Equal(t, StateIdle, ev.State)
	})

	t.Run("rotation mode moves the dj turn", func(t *testing.T) {
		r := newRoom()
		r.Mode = room.ModeDJRotation
		r.DJs = []room.DJ{{UserID: "u1", IsActive: true}, {UserID: "u2", IsActive: true}}
		r.CurrentDJIndex = 0
		r.Queue = []string{"b"}

		ev := Advance(r, t0)
		assert.Equal(t, 1, ev.DJIndex)
		assert.Equal(t, 1, r.CurrentDJIndex)
	})
}

func TestProject(t *testing.T) {
	upd := t0
	tests := []struct {
		name    string
		pos     float64
		playing bool
		upd     *time.Time
		now     time.Time
		want    float64
	}{
		{name: "paused", pos: 10, playing: false, upd: &upd, now: at(time.Minute), want: 10},
		{name: "playing", pos: 10, playing: true, upd: &upd, now: at(5 * time.Second), want: 15},
		{name: "no timestamp", pos: 10, playing: true, upd: nil, now: at(time.Minute), want: 10},
		{name: "clock skew clamps", pos: 10, playing: true, upd: &upd, now: at(-time.Second), want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Project(tt.pos, tt.playing, tt.upd, tt.now), 1e-9)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.Equal(t, "song_started", EventSongStarted.String())
	assert.Equal(t, "queue_empty", EventQueueEmpty.String())
}
