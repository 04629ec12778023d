package filter

import (
	"context"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// OwnerOnlyModeFilter restricts switching DJ rotation on or off to the room owner.
type OwnerOnlyModeFilter struct{}

func (f *OwnerOnlyModeFilter) Name() string {
	return "owner_only_mode_filter"
}

func (f *OwnerOnlyModeFilter) Description() string {
	return "Only the room owner may toggle DJ rotation"
}

func (f *OwnerOnlyModeFilter) ReturnCodes() []string {
	return []string{"owner_only"}
}

func (f *OwnerOnlyModeFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *OwnerOnlyModeFilter) AppliesTo(op Operation, requesterType track.RequesterType) bool {
	return op == OpSetMode && userOnly(requesterType)
}

func (f *OwnerOnlyModeFilter) Check(ctx context.Context, req Request, r *room.Room) Result {
	if r.OwnerID == "" || req.UserID != r.OwnerID {
		return Reject("owner_only")
	}
	return Accept()
}

func init() {
	Register("owner_only_mode_filter", func() Filter {
		return &OwnerOnlyModeFilter{}
	})
}
