package filter

import (
	"context"

	"github.com/osa030/19room/internal/app/host"
	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// DJTurnFilter lets only the host queue songs while DJ rotation is on.
// With an active current DJ the host is that DJ.
type DJTurnFilter struct{}

func (f *DJTurnFilter) Name() string {
	return "dj_turn_filter"
}

func (f *DJTurnFilter) Description() string {
	return "In DJ rotation mode only the DJ holding the turn may queue songs"
}

func (f *DJTurnFilter) ReturnCodes() []string {
	return []string{"not_your_turn"}
}

func (f *DJTurnFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *DJTurnFilter) AppliesTo(op Operation, requesterType track.RequesterType) bool {
	return op == OpEnqueue && userOnly(requesterType)
}

func (f *DJTurnFilter) Check(ctx context.Context, req Request, r *room.Room) Result {
	if r.Mode != room.ModeDJRotation {
		return Accept()
	}
	if !host.Is(r, req.UserID) {
		return Reject("not_your_turn")
	}
	return Accept()
}

func init() {
	Register("dj_turn_filter", func() Filter {
		return &DJTurnFilter{}
	})
}
