// Package room provides the Room domain entity for a shared listening session.
package room

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// Mode represents how host authority is assigned in a room.
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeDJRotation Mode = "dj_rotation"
)

// Member represents a user present in the room.
type Member struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// DJ represents an entry in the DJ rotation.
type DJ struct {
	UserID   string    `json:"userId"`
	IsActive bool      `json:"isActive"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Room is the authoritative state of one listening session.
// Host authority is not stored here; it is always derived from the fields below.
type Room struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Mode    Mode   `json:"mode"`

	Members        []Member `json:"members"`
	DJs            []DJ     `json:"djs"`
	CurrentDJIndex int      `json:"currentDjIndex"`

	Queue []string `json:"queue"`

	CurrentSongID     string     `json:"currentSongId"`
	CurrentPosition   float64    `json:"currentPosition"` // seconds
	IsPlaying         bool       `json:"isPlaying"`
	PlaybackUpdatedAt *time.Time `json:"playbackUpdatedAt,omitempty"`

	VoteSkip []string `json:"voteSkip"`

	MaxMembers int    `json:"maxMembers"`
	IsPrivate  bool   `json:"isPrivate"`
	AccessCode string `json:"accessCode,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	Version   uint64    `json:"version"`
}

// New creates a room with the owner as its sole member.
func New(id, ownerID, ownerName string, maxMembers int, isPrivate bool, accessCode string, now time.Time) *Room {
	return &Room{
		ID:             id,
		OwnerID:        ownerID,
		Mode:           ModeNormal,
		Members:        []Member{{UserID: ownerID, DisplayName: ownerName, JoinedAt: now}},
		CurrentDJIndex: -1,
		MaxMembers:     maxMembers,
		IsPrivate:      isPrivate,
		AccessCode:     accessCode,
		CreatedAt:      now,
	}
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	c := *r
	c.Members = append([]Member(nil), r.Members...)
	c.DJs = append([]DJ(nil), r.DJs...)
	c.Queue = append([]string(nil), r.Queue...)
	c.VoteSkip = append([]string(nil), r.VoteSkip...)
	if r.PlaybackUpdatedAt != nil {
		t := *r.PlaybackUpdatedAt
		c.PlaybackUpdatedAt = &t
	}
	return &c
}

// MemberIndex returns the index of the member with the given user ID, or -1.
func (r *Room) MemberIndex(userID string) int {
	for i, m := range r.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// IsMember reports whether the user is currently in the room.
func (r *Room) IsMember(userID string) bool {
	return r.MemberIndex(userID) >= 0
}

// IsEmpty reports whether the room has no members left.
func (r *Room) IsEmpty() bool {
	return len(r.Members) == 0
}

// AddMember appends a member, enforcing capacity.
// An existing member only gets the display name refreshed.
func (r *Room) AddMember(userID, displayName string, now time.Time) error {
	if i := r.MemberIndex(userID); i >= 0 {
		if displayName != "" {
			r.Members[i].DisplayName = displayName
		}
		return nil
	}
	if len(r.Members) >= r.MaxMembers {
		return errors.Wrapf(ErrRoomFull, "room %s has %d/%d members", r.ID, len(r.Members), r.MaxMembers)
	}
	r.Members = append(r.Members, Member{UserID: userID, DisplayName: displayName, JoinedAt: now})
	return nil
}

// RemoveMember removes the member and reports whether it was present.
func (r *Room) RemoveMember(userID string) bool {
	i := r.MemberIndex(userID)
	if i < 0 {
		return false
	}
	r.Members = append(r.Members[:i], r.Members[i+1:]...)
	return true
}

// DJIndex returns the index of the user's DJ entry, or -1.
func (r *Room) DJIndex(userID string) int {
	for i, d := range r.DJs {
		if d.UserID == userID {
			return i
		}
	}
	return -1
}

// HasVoted reports whether the user voted to skip the current song.
func (r *Room) HasVoted(userID string) bool {
	for _, id := range r.VoteSkip {
		if id == userID {
			return true
		}
	}
	return false
}

// RemoveVote drops the user's skip vote and reports whether one existed.
func (r *Room) RemoveVote(userID string) bool {
	for i, id := range r.VoteSkip {
		if id == userID {
			r.VoteSkip = append(r.VoteSkip[:i], r.VoteSkip[i+1:]...)
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of the room.
// Every error wraps ErrInvalidState.
func (r *Room) Validate() error {
	if r.Mode != ModeNormal && r.Mode != ModeDJRotation {
		return errors.Wrapf(ErrInvalidState, "unknown mode %q", r.Mode)
	}

	seen := make(map[string]bool, len(r.Members))
	for _, m := range r.Members {
		if m.UserID == "" {
			return errors.Wrap(ErrInvalidState, "member without user id")
		}
		if seen[m.UserID] {
			return errors.Wrapf(ErrInvalidState, "duplicate member %s", m.UserID)
		}
		seen[m.UserID] = true
	}
	if len(r.Members) > r.MaxMembers {
		return errors.Wrapf(ErrInvalidState, "%d members exceeds capacity %d", len(r.Members), r.MaxMembers)
	}

	if r.CurrentDJIndex < -1 || r.CurrentDJIndex >= len(r.DJs) {
		return errors.Wrapf(ErrInvalidState, "dj index %d out of range [-1, %d)", r.CurrentDJIndex, len(r.DJs))
	}

	voted := make(map[string]bool, len(r.VoteSkip))
	for _, id := range r.VoteSkip {
		if !seen[id] {
			return errors.Wrapf(ErrInvalidState, "vote from non-member %s", id)
		}
		if voted[id] {
			return errors.Wrapf(ErrInvalidState, "duplicate vote from %s", id)
		}
		voted[id] = true
	}

	if r.CurrentPosition < 0 || math.IsNaN(r.CurrentPosition) || math.IsInf(r.CurrentPosition, 0) {
		return errors.Wrapf(ErrInvalidState, "position %v", r.CurrentPosition)
	}
	if r.IsPlaying && r.PlaybackUpdatedAt == nil {
		return errors.Wrap(ErrInvalidState, "playing without playback timestamp")
	}
	return nil
}
