package bgm

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/domain/track"
)

type PlaylistProviderConfig struct {
	PlaylistURL string `mapstructure:"playlist_url" validate:"required"`
}

// PlaylistProvider picks random tracks from a configured playlist.
// Unused picks are kept for the next call to save catalog requests.
type PlaylistProvider struct {
	catalog        Catalog
	candidateCount int // Target cache size
	config         PlaylistProviderConfig

	mu    sync.Mutex
	cache []track.Track
}

// NewPlaylistProvider creates a new PlaylistProvider.
func NewPlaylistProvider(catalog Catalog, candidateCount int, settings map[string]any) (*PlaylistProvider, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	var config PlaylistProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("playlist provider config: %+v", config)
	return &PlaylistProvider{
		catalog:        catalog,
		candidateCount: candidateCount,
		config:         config,
	}, nil
}

// GetCandidates returns random playlist tracks not in excludeIDs.
func (p *PlaylistProvider) GetCandidates(ctx context.Context, count int, _ []track.Track, excludeIDs map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	available := make([]track.Track, 0, len(p.cache))
	for _, t := range p.cache {
		if !excludeIDs[t.ID] {
			available = append(available, t)
		}
	}

	if len(available) < count {
		needed := max(p.candidateCount, count) - len(available)
		fresh, err := p.catalog.GetPlaylistTracksRandom(ctx, p.config.PlaylistURL, needed)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get random tracks from playlist")
		}
		for _, t := range fresh {
			if !excludeIDs[t.ID] && !containsTrack(available, t.ID) {
				available = append(available, t)
			}
		}
	}

	n := min(count, len(available))
	result := available[:n:n]
	p.cache = available[n:]
	return result, nil
}

// Name returns the provider name.
func (p *PlaylistProvider) Name() string {
	return "playlist"
}

func containsTrack(tracks []track.Track, id string) bool {
	for _, t := range tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}
