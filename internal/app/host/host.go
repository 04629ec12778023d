// Package host derives which member currently holds host authority in a room.
package host

import "github.com/osa030/19room/internal/domain/room"

// Resolve returns the user id of the current host, or "" when the room is empty.
//
// Priority: the active current DJ in rotation mode, then the owner while still
// present, then the earliest joined member.
func Resolve(r *room.Room) string {
	if r.Mode == room.ModeDJRotation && r.CurrentDJIndex >= 0 && r.CurrentDJIndex < len(r.DJs) {
		if dj := r.DJs[r.CurrentDJIndex]; dj.IsActive {
			return dj.UserID
		}
	}

	if r.OwnerID != "" && r.IsMember(r.OwnerID) {
		return r.OwnerID
	}

	if len(r.Members) == 0 {
		return ""
	}
	// Members are kept in join order; the scan only matters for restored documents.
	first := r.Members[0]
	for _, m := range r.Members[1:] {
		if m.JoinedAt.Before(first.JoinedAt) {
			first = m
		}
	}
	return first.UserID
}

// Is reports whether userID is the current host.
func Is(r *room.Room, userID string) bool {
	return userID != "" && Resolve(r) == userID
}
