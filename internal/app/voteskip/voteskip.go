// Package voteskip tracks skip votes against the current song and triggers the
// skip once quorum is reached.
package voteskip

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/playback"
	"github.com/osa030/19room/internal/domain/room"
)

// DefaultRatio is the share of members whose votes skip a song.
const DefaultRatio = 0.5

// Threshold returns the number of votes needed to skip with memberCount members.
// It is never below 1.
func Threshold(memberCount int, ratio float64) int {
	if ratio <= 0 || ratio > 1 || math.IsNaN(ratio) {
		ratio = DefaultRatio
	}
	n := int(math.Ceil(float64(memberCount) * ratio))
	if n < 1 {
		n = 1
	}
	return n
}

// Result describes what a vote did.
type Result struct {
	Counted   bool            // The vote was new
	Votes     int             // Votes against the song that was voted on
	Threshold int             // Votes that were needed
	Skipped   bool            // Quorum reached; the room advanced
	Advance   *playback.Event // Set when Skipped
}

// Vote records userID's vote against the current song and skips when quorum
// is reached. A repeated vote is accepted without being counted twice.
func Vote(r *room.Room, userID string, ratio float64, now time.Time) (Result, error) {
	if !r.IsMember(userID) {
		return Result{}, errors.Wrapf(room.ErrNotAMember, "user %s", userID)
	}
	if r.CurrentSongID == "" {
		return Result{}, errors.Wrap(room.ErrInvalidState, "no song to skip")
	}

	res := Result{Threshold: Threshold(len(r.Members), ratio)}
	if !r.HasVoted(userID) {
		r.VoteSkip = append(r.VoteSkip, userID)
		res.Counted = true
	}
	res.Votes = len(r.VoteSkip)

	if res.Votes >= res.Threshold {
		zlog.Debug().Msgf("voteskip: room=%s song=%s quorum %d/%d reached", r.ID, r.CurrentSongID, res.Votes, res.Threshold)
		ev := playback.Advance(r, now)
		res.Skipped = true
		res.Advance = &ev
	}
	return res, nil
}

// Unvote withdraws userID's vote. It never fails and reports whether a vote was removed.
func Unvote(r *room.Room, userID string) bool {
	return r.RemoveVote(userID)
}
