// Package rotation schedules which DJ holds the turn in a dj_rotation room.
package rotation

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/domain/room"
)

// Advance moves CurrentDJIndex to the next active DJ after the current one,
// wrapping at most once around the list. It sets -1 when nobody is active.
// Returns the new index.
func Advance(r *room.Room) int {
	n := len(r.DJs)
	if n == 0 {
		r.CurrentDJIndex = -1
		return -1
	}

	cur := r.CurrentDJIndex
	if cur < -1 || cur >= n {
		cur = -1
	}
	start := (cur + 1) % n

	for i := 0; i < n; i++ {
		j := (start + i) % n
		if r.DJs[j].IsActive {
			zlog.Debug().Msgf("rotation: room=%s dj index %d -> %d (%s)", r.ID, r.CurrentDJIndex, j, r.DJs[j].UserID)
			r.CurrentDJIndex = j
			return j
		}
	}

	zlog.Debug().Msgf("rotation: room=%s no active dj after full wrap", r.ID)
	r.CurrentDJIndex = -1
	return -1
}

// AddDJ appends the user to the rotation, or reactivates an existing entry.
// In rotation mode an idle rotation hands the turn to the new DJ.
func AddDJ(r *room.Room, userID string, now time.Time) {
	if i := r.DJIndex(userID); i >= 0 {
		r.DJs[i].IsActive = true
	} else {
		r.DJs = append(r.DJs, room.DJ{UserID: userID, IsActive: true, JoinedAt: now})
	}

	if r.Mode == room.ModeDJRotation && !currentIsActive(r) {
		Advance(r)
	}
}

// Deactivate marks the user's DJ entry inactive.
// If that DJ held the turn in rotation mode, the turn moves on.
// Reports whether the user had an active entry.
func Deactivate(r *room.Room, userID string) bool {
	i := r.DJIndex(userID)
	if i < 0 || !r.DJs[i].IsActive {
		return false
	}
	r.DJs[i].IsActive = false

	if r.Mode == room.ModeDJRotation && r.CurrentDJIndex == i {
		Advance(r)
	}
	return true
}

// Enable switches the room into rotation mode and makes sure an active DJ holds the turn.
func Enable(r *room.Room) {
	r.Mode = room.ModeDJRotation
	if !currentIsActive(r) {
		Advance(r)
	}
}

// Disable returns the room to normal mode. The DJ list is kept for later.
func Disable(r *room.Room) {
	r.Mode = room.ModeNormal
	r.CurrentDJIndex = -1
}

func currentIsActive(r *room.Room) bool {
	i := r.CurrentDJIndex
	return i >= 0 && i < len(r.DJs) && r.DJs[i].IsActive
}
