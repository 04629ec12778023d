package filter

import (
	"context"

	"github.com/osa030/19room/internal/app/queue"
	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// DuplicateSongFilter rejects a song that is already queued or playing.
// The queue itself allows duplicates; enable this filter to forbid them.
type DuplicateSongFilter struct{}

func (f *DuplicateSongFilter) Name() string {
	return "duplicate_song_filter"
}

func (f *DuplicateSongFilter) Description() string {
	return "Rejects songs already in the queue or currently playing"
}

func (f *DuplicateSongFilter) ReturnCodes() []string {
	return []string{"duplicate_song"}
}

func (f *DuplicateSongFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *DuplicateSongFilter) AppliesTo(op Operation, requesterType track.RequesterType) bool {
	return op == OpEnqueue && userOnly(requesterType)
}

func (f *DuplicateSongFilter) Check(ctx context.Context, req Request, r *room.Room) Result {
	if req.SongID == r.CurrentSongID || queue.IndexOf(r, req.SongID) >= 0 {
		return Reject("duplicate_song")
	}
	return Accept()
}

func init() {
	Register("duplicate_song_filter", func() Filter {
		return &DuplicateSongFilter{}
	})
}
