package bgm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/domain/track"
	"github.com/osa030/19room/internal/infra/lastfm"
)

// LastFmClient defines the Last.fm lookups the provider uses.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.TrackRef, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TrackRef, error)
}

type LastFmProviderConfig struct {
	APIKey         string `mapstructure:"api_key" validate:"required"`
	SeedTrackCount int    `mapstructure:"seed_track_count" default:"3" validate:"gte=1"`
	SimilarLimit   int    `mapstructure:"similar_limit" default:"10" validate:"gte=1,lte=100"`
	ChartLimit     int    `mapstructure:"chart_limit" default:"50" validate:"gte=1,lte=100"`
}

// LastFmProvider suggests tracks similar to what the room played recently.
// Without seeds it falls back to the global chart.
type LastFmProvider struct {
	lastfm  LastFmClient
	catalog Catalog
	config  LastFmProviderConfig

	// Catalog lookups per "title:artist"; nil marks a miss
	mu          sync.RWMutex
	searchCache map[string]*track.Track
}

// NewLastFmProvider creates a provider with its own Last.fm client.
func NewLastFmProvider(catalog Catalog, settings map[string]any) (*LastFmProvider, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}
	var config LastFmProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return newLastFmProvider(catalog, client, config), nil
}

func newLastFmProvider(catalog Catalog, client LastFmClient, config LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{
		lastfm:      client,
		catalog:     catalog,
		config:      config,
		searchCache: make(map[string]*track.Track),
	}
}

// GetCandidates returns a random pick among tracks similar to the seeds.
func (p *LastFmProvider) GetCandidates(ctx context.Context, count int, seedTracks []track.Track, excludeIDs map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}
	if len(seedTracks) > p.config.SeedTrackCount {
		seedTracks = seedTracks[:p.config.SeedTrackCount]
	}

	var refs []lastfm.TrackRef
	for _, seed := range seedTracks {
		if seed.PrimaryArtist() == "" {
			continue
		}
		similar, err := p.lastfm.GetSimilarTracks(ctx, seed.Name, seed.PrimaryArtist(), p.config.SimilarLimit)
		if err != nil {
			zlog.Debug().Msgf("lastfm provider: similar lookup failed for %s: %v", seed.Name, err)
			continue
		}
		refs = append(refs, similar...)
	}

	if len(refs) == 0 {
		chart, err := p.lastfm.GetChartTopTracks(ctx, p.config.ChartLimit)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get chart tracks")
		}
		refs = chart
	}

	rand.Shuffle(len(refs), func(i, j int) {
		refs[i], refs[j] = refs[j], refs[i]
	})

	seen := make(map[string]bool)
	result := make([]track.Track, 0, count)
	for _, ref := range refs {
		if len(result) >= count {
			break
		}
		t := p.resolve(ctx, ref)
		if t == nil || excludeIDs[t.ID] || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		result = append(result, *t)
	}
	return result, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

// resolve finds the catalog track for a Last.fm reference.
func (p *LastFmProvider) resolve(ctx context.Context, ref lastfm.TrackRef) *track.Track {
	key := ref.Name + ":" + ref.Artist

	p.mu.RLock()
	cached, ok := p.searchCache[key]
	p.mu.RUnlock()
	if ok {
		return cached
	}

	var found *track.Track
	results, err := p.catalog.Search(ctx, fmt.Sprintf("track:%s artist:%s", ref.Name, ref.Artist), 1)
	if err == nil && len(results) > 0 {
		found = &results[0]
	}

	p.mu.Lock()
	p.searchCache[key] = found
	p.mu.Unlock()
	return found
}
