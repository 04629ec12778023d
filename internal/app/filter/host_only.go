package filter

import (
	"context"

	"github.com/osa030/19room/internal/app/host"
	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// HostOnlyPlaybackFilter restricts transport commands to the derived host.
type HostOnlyPlaybackFilter struct{}

func (f *HostOnlyPlaybackFilter) Name() string {
	return "host_only_playback_filter"
}

func (f *HostOnlyPlaybackFilter) Description() string {
	return "Only the current host may play, pause, seek, or change the song"
}

func (f *HostOnlyPlaybackFilter) ReturnCodes() []string {
	return []string{"host_only"}
}

func (f *HostOnlyPlaybackFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *HostOnlyPlaybackFilter) AppliesTo(op Operation, requesterType track.RequesterType) bool {
	return op == OpSetPlayback && userOnly(requesterType)
}

func (f *HostOnlyPlaybackFilter) Check(ctx context.Context, req Request, r *room.Room) Result {
	if !host.Is(r, req.UserID) {
		return Reject("host_only")
	}
	return Accept()
}

func init() {
	Register("host_only_playback_filter", func() Filter {
		return &HostOnlyPlaybackFilter{}
	})
}
