package filter

import (
	"context"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// MemberOnlyFilter rejects queue and playback changes from users outside the room.
type MemberOnlyFilter struct{}

func (f *MemberOnlyFilter) Name() string {
	return "member_only_filter"
}

func (f *MemberOnlyFilter) Description() string {
	return "Only room members may change the queue, playback, or mode"
}

func (f *MemberOnlyFilter) ReturnCodes() []string {
	return []string{"not_a_member"}
}

func (f *MemberOnlyFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *MemberOnlyFilter) AppliesTo(op Operation, requesterType track.RequesterType) bool {
	if !userOnly(requesterType) {
		return false
	}
	switch op {
	case OpSetPlayback, OpEnqueue, OpRemove, OpSetMode:
		return true
	}
	return false
}

func (f *MemberOnlyFilter) Check(ctx context.Context, req Request, r *room.Room) Result {
	if !r.IsMember(req.UserID) {
		return Reject("not_a_member")
	}
	return Accept()
}

func init() {
	Register("member_only_filter", func() Filter {
		return &MemberOnlyFilter{}
	})
}
