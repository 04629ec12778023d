// Package filter provides the guard chain evaluated before a room operation
// is applied. Guards decide who may do what; the room core does not.
package filter

import (
	"context"
	"fmt"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// Operation names an externally triggered room operation.
type Operation string

const (
	OpJoin         Operation = "join"
	OpLeave        Operation = "leave"
	OpSetPlayback  Operation = "set_playback"
	OpEnqueue      Operation = "enqueue"
	OpRemove       Operation = "remove"
	OpVote         Operation = "vote"
	OpUnvote       Operation = "unvote"
	OpSetMode      Operation = "set_mode"
	OpJoinDJ       Operation = "join_dj"
	OpLeaveDJ      Operation = "leave_dj"
	OpCompleteSong Operation = "complete_song"
)

// Request describes the operation being checked.
type Request struct {
	Operation     Operation
	UserID        string
	RequesterType track.RequesterType
	SongID        string
	Track         *track.Track // Catalog metadata, when it was looked up beforehand
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "not_a_member", "host_only", "duplicate_song"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// RejectionError is returned by Chain.Check when a filter rejects a request.
type RejectionError struct {
	Filter string
	Code   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected by %s: %s", e.Filter, e.Code)
}

// Filter is the interface for room operation guards.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter settings.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should run for the operation and requester.
	AppliesTo(op Operation, requesterType track.RequesterType) bool
	// Check inspects the room as it is before the operation.
	Check(ctx context.Context, req Request, r *room.Room) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// userOnly is shared by filters that only guard user-initiated requests.
func userOnly(requesterType track.RequesterType) bool {
	return requesterType == track.RequesterTypeUser
}
