package voteskip

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19room/internal/domain/room"
)

var now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func roomWith(ids ...string) *room.Room {
	r := room.New("room-1", ids[0], "", 50, false, "", now)
	for _, id := range ids[1:] {
		r.Members = append(r.Members, room.Member{UserID: id, JoinedAt: now})
	}
	r.CurrentSongID = "current"
	r.IsPlaying = true
	r.PlaybackUpdatedAt = &now
	return r
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		name    string
		members int
		ratio   float64
		want    int
	}{
		{name: "four members majority", members: 4, ratio: 0.5, want: 2},
		{name: "odd members round up", members: 5, ratio: 0.5, want: 3},
		{name: "single member", members: 1, ratio: 0.5, want: 1},
		{name: "zero members still needs one", members: 0, ratio: 0.5, want: 1},
		{name: "two thirds", members: 6, ratio: 2.0 / 3.0, want: 4},
		{name: "unanimous", members: 3, ratio: 1, want: 3},
		{name: "invalid ratio uses default", members: 4, ratio: 0, want: 2},
		{name: "ratio above one uses default", members: 4, ratio: 1.5, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Threshold(tt.members, tt.ratio))
		})
	}
}

func TestVote_QuorumSkips(t *testing.T) {
	r := roomWith("m1", "m2", "m3", "m4")
	r.Queue = []string{"next", "later"}

	res, err := Vote(r, "m1", DefaultRatio, now)
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Threshold)
	assert.Equal(t, "current", r.CurrentSongID)
	assert.Equal(t, []string{"m1"}, r.VoteSkip)

	res, err = Vote(r, "m2", DefaultRatio, now)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	require.NotNil(t, res.Advance)
	assert.Equal(t, "next", r.CurrentSongID)
	assert.Equal(t, []string{"later"}, r.Queue)
	assert.Empty(t, r.VoteSkip)
	assert.NoError(t, r.Validate())
}

func TestVote_DuplicateIsNoop(t *testing.T) {
	r := roomWith("m1", "m2", "m3", "m4")

	_, err := Vote(r, "m1", DefaultRatio, now)
	require.NoError(t, err)
	res, err := Vote(r, "m1", DefaultRatio, now)
	require.NoError(t, err)

	assert.False(t, res.Counted)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{"m1"}, r.VoteSkip)
}

func TestVote_Errors(t *testing.T) {
	t.Run("non-member", func(t *testing.T) {
		r := roomWith("m1", "m2")
		_, err := Vote(r, "stranger", DefaultRatio, now)
		assert.True(t, errors.Is(err, room.ErrNotAMember))
		assert.Empty(t, r.VoteSkip)
	})

	t.Run("nothing playing", func(t *testing.T) {
		r := roomWith("m1", "m2")
		r.CurrentSongID = ""
		r.IsPlaying = false
		_, err := Vote(r, "m1", DefaultRatio, now)
		assert.True(t, errors.Is(err, room.ErrInvalidState))
	})
}

func TestVote_RotationAdvancesDJ(t *testing.T) {
	r := roomWith("m1", "m2")
	r.Mode = room.ModeDJRotation
	r.DJs = []room.DJ{{UserID: "m1", IsActive: true}, {UserID: "m2", IsActive: true}}
	r.CurrentDJIndex = 0

	res, err := Vote(r, "m1", DefaultRatio, now)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, r.CurrentDJIndex)
	assert.Equal(t, "", r.CurrentSongID, "empty queue stops playback")
}

func TestUnvote(t *testing.T) {
	r := roomWith("m1", "m2", "m3")
	r.VoteSkip = []string{"m2"}

	assert.False(t, Unvote(r, "m1"))
	assert.Equal(t, []string{"m2"}, r.VoteSkip)

	assert.True(t, Unvote(r, "m2"))
	assert.Empty(t, r.VoteSkip)
}
