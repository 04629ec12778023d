// Package autoplay completes songs whose duration has elapsed and keeps idle
// rooms supplied with background music.
package autoplay

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/bgm"
	"github.com/osa030/19room/internal/app/coordinator"
	"github.com/osa030/19room/internal/app/filter"
	"github.com/osa030/19room/internal/app/playback"
	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// Rooms is the part of the coordinator the watcher drives.
type Rooms interface {
	Snapshots() []room.Snapshot
	CompleteSong(ctx context.Context, roomID, userID, songID string) (room.Snapshot, error)
	EnqueueSystemSong(ctx context.Context, roomID, songID string, tr *track.Track) (room.Snapshot, error)
}

// Catalog looks up track metadata.
type Catalog interface {
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
}

// Candidates suggests background music.
type Candidates interface {
	GetCandidates(ctx context.Context, count int, seedTracks []track.Track, excludeIDs map[string]bool) ([]bgm.CandidateWithSource, error)
}

// Options configures a Watcher.
type Options struct {
	Tick             time.Duration
	Grace            time.Duration // Slack after the nominal end before completing
	CandidateCount   int
	SeedTrackCount   int
	StartIdleRooms   bool          // Start queued songs in rooms with nothing playing
	LookupTimeout    time.Duration // Bounds each catalog or BGM call
	RetryFailedAfter time.Duration // A failed lookup is not retried before this
	Now              func() time.Time
}

// cachedTrack is a catalog lookup result. A nil track marks a failure that
// may be retried at retryAt.
type cachedTrack struct {
	track   *track.Track
	retryAt time.Time
}

// Watcher periodically advances rooms on the server's behalf.
type Watcher struct {
	rooms   Rooms
	catalog Catalog    // nil disables completion by duration
	bgm     Candidates // nil disables background music
	opts    Options

	mu        sync.Mutex
	durations map[string]cachedTrack // songs of live rooms only
	recent    map[string][]track.Track
}

// New creates a watcher. catalog and candidates may be nil.
func New(rooms Rooms, catalog Catalog, candidates Candidates, opts Options) *Watcher {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.CandidateCount <= 0 {
		opts.CandidateCount = 5
	}
	if opts.SeedTrackCount <= 0 {
		opts.SeedTrackCount = 3
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	if opts.RetryFailedAfter <= 0 {
		opts.RetryFailedAfter = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Watcher{
		rooms:     rooms,
		catalog:   catalog,
		bgm:       candidates,
		opts:      opts,
		durations: make(map[string]cachedTrack),
		recent:    make(map[string][]track.Track),
	}
}

// Run ticks until ctx is cancelled. A panicking tick restarts the loop.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("autoplay loop panicked: %v", r)
			zlog.Info().Msg("restarting autoplay loop")
			go w.Run(ctx)
		}
	}()

	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick inspects every live room once. Each external call is bounded by
// LookupTimeout, so a stalled catalog delays the other rooms at most that long.
func (w *Watcher) Tick(ctx context.Context) {
	snaps := w.rooms.Snapshots()
	for _, s := range snaps {
		if ctx.Err() != nil {
			return
		}
		switch {
		case s.CurrentSongID != "":
			w.checkCompletion(ctx, s)
		case len(s.Queue) > 0:
			if w.opts.StartIdleRooms {
				w.start(ctx, s.ID)
			}
		case w.bgm != nil:
			w.fillWithBGM(ctx, s)
		}
	}
	w.forget(w.rooms.Snapshots())
}

func (w *Watcher) checkCompletion(ctx context.Context, s room.Snapshot) {
	if !s.IsPlaying || w.catalog == nil {
		return
	}
	tr := w.lookup(ctx, s.CurrentSongID)
	if tr == nil || tr.Duration <= 0 {
		return
	}
	w.remember(s.ID, *tr)

	pos := playback.Project(s.CurrentPosition, s.IsPlaying, s.PlaybackUpdatedAt, w.opts.Now())
	if pos < (tr.Duration + w.opts.Grace).Seconds() {
		return
	}
	if _, err := w.rooms.CompleteSong(ctx, s.ID, coordinator.SystemUserID, s.CurrentSongID); err != nil {
		zlog.Warn().Str("room_id", s.ID).Err(err).Msgf("autoplay: complete %s failed", s.CurrentSongID)
		return
	}
	zlog.Info().Str("room_id", s.ID).Msgf("autoplay: completed song_id=%s at %.1fs", s.CurrentSongID, pos)
}

// start advances an idle room onto the head of its queue.
func (w *Watcher) start(ctx context.Context, roomID string) {
	if _, err := w.rooms.CompleteSong(ctx, roomID, coordinator.SystemUserID, ""); err != nil {
		zlog.Warn().Str("room_id", roomID).Err(err).Msg("autoplay: start failed")
	}
}

// fillWithBGM queues one background track and starts it.
func (w *Watcher) fillWithBGM(ctx context.Context, s room.Snapshot) {
	const maxRetries = 3

	exclude := map[string]bool{}
	for _, id := range s.Queue {
		exclude[id] = true
	}
	seeds := w.seeds(s.ID)
	for _, t := range seeds {
		exclude[t.ID] = true
	}

	for retry := 0; retry < maxRetries; retry++ {
		lctx, cancel := context.WithTimeout(ctx, w.opts.LookupTimeout)
		candidates, err := w.bgm.GetCandidates(lctx, w.opts.CandidateCount, seeds, exclude)
		cancel()
		if err != nil {
			zlog.Error().Str("room_id", s.ID).Msgf("failed to get BGM candidates: %v", err)
			return
		}

		for _, c := range candidates {
			exclude[c.Track.ID] = true
			t := c.Track
			_, err := w.rooms.EnqueueSystemSong(ctx, s.ID, t.ID, &t)
			var rejection *filter.RejectionError
			if errors.As(err, &rejection) {
				zlog.Debug().Str("room_id", s.ID).Msgf("BGM candidate rejected by filter: track_id=%s reason=%s", t.ID, rejection.Code)
				continue
			}
			if err != nil {
				zlog.Warn().Str("room_id", s.ID).Err(err).Msg("autoplay: BGM enqueue failed")
				return
			}

			w.cache(&t)
			zlog.Info().Str("room_id", s.ID).Msgf("added BGM track: track_id=%s name=%s source=%s", t.ID, t.Name, c.DisplayName)
			w.start(ctx, s.ID)
			return
		}
		zlog.Debug().Str("room_id", s.ID).Msgf("all BGM candidates filtered out, retrying: retry=%d/%d excluded_count=%d", retry+1, maxRetries, len(exclude))
	}
	zlog.Warn().Str("room_id", s.ID).Msg("no suitable BGM candidates after filtering")
}

// lookup returns cached catalog metadata, fetching it on first use and again
// once a failed lookup is due for retry.
func (w *Watcher) lookup(ctx context.Context, songID string) *track.Track {
	now := w.opts.Now()
	w.mu.Lock()
	cached, ok := w.durations[songID]
	w.mu.Unlock()
	if ok && (cached.track != nil || now.Before(cached.retryAt)) {
		return cached.track
	}

	lctx, cancel := context.WithTimeout(ctx, w.opts.LookupTimeout)
	defer cancel()
	tr, err := w.catalog.GetTrack(lctx, songID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		zlog.Warn().Err(err).Msgf("autoplay: track lookup failed for %s, retry in %s", songID, w.opts.RetryFailedAfter)
		w.mu.Lock()
		w.durations[songID] = cachedTrack{retryAt: now.Add(w.opts.RetryFailedAfter)}
		w.mu.Unlock()
		return nil
	}
	w.cache(tr)
	return tr
}

func (w *Watcher) cache(tr *track.Track) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.durations[tr.ID] = cachedTrack{track: tr}
}

// remember records a played track as a future BGM seed, newest first.
func (w *Watcher) remember(roomID string, tr track.Track) {
	w.mu.Lock()
	defer w.mu.Unlock()
	seeds := w.recent[roomID]
	if len(seeds) > 0 && seeds[0].ID == tr.ID {
		return
	}
	seeds = append([]track.Track{tr}, seeds...)
	if len(seeds) > w.opts.SeedTrackCount {
		seeds = seeds[:w.opts.SeedTrackCount]
	}
	w.recent[roomID] = seeds
}

func (w *Watcher) seeds(roomID string) []track.Track {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]track.Track(nil), w.recent[roomID]...)
}

// forget drops seeds of rooms that no longer exist and lookups of songs no
// live room plays or queues.
func (w *Watcher) forget(snaps []room.Snapshot) {
	live := make(map[string]bool, len(snaps))
	songs := make(map[string]bool)
	for _, s := range snaps {
		live[s.ID] = true
		if s.CurrentSongID != "" {
			songs[s.CurrentSongID] = true
		}
		for _, id := range s.Queue {
			songs[id] = true
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.recent {
		if !live[id] {
			delete(w.recent, id)
		}
	}
	for id := range w.durations {
		if !songs[id] {
			delete(w.durations, id)
		}
	}
}
