package bgm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19room/internal/domain/track"
	"github.com/osa030/19room/internal/infra/config"
	"github.com/osa030/19room/internal/infra/lastfm"
)

type fakeCatalog struct {
	playlist      []track.Track
	playlistCalls int
	searchCalls   int
	byQuery       map[string]track.Track
	err           error
}

func (f *fakeCatalog) GetPlaylistTracksRandom(_ context.Context, _ string, count int) ([]track.Track, error) {
	f.playlistCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.playlist[:min(count, len(f.playlist))], nil
}

func (f *fakeCatalog) Search(_ context.Context, query string, _ int) ([]track.Track, error) {
	f.searchCalls++
	if t, ok := f.byQuery[query]; ok {
		return []track.Track{t}, nil
	}
	return nil, nil
}

func (f *fakeCatalog) GetTrack(_ context.Context, id string) (*track.Track, error) {
	return &track.Track{ID: id}, nil
}

type fakeLastFm struct {
	similar map[string][]lastfm.TrackRef
	chart   []lastfm.TrackRef
}

func (f *fakeLastFm) GetSimilarTracks(_ context.Context, name, _ string, _ int) ([]lastfm.TrackRef, error) {
	refs, ok := f.similar[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return refs, nil
}

func (f *fakeLastFm) GetChartTopTracks(_ context.Context, _ int) ([]lastfm.TrackRef, error) {
	return f.chart, nil
}

type fakeProvider struct {
	name   string
	tracks []track.Track
	err    error
}

func (f *fakeProvider) GetCandidates(_ context.Context, count int, _ []track.Track, exclude map[string]bool) ([]track.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []track.Track
	for _, t := range f.tracks {
		if len(out) < count && !exclude[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeProvider) Name() string { return f.name }

func tracks(ids ...string) []track.Track {
	out := make([]track.Track, len(ids))
	for i, id := range ids {
		out[i] = track.Track{ID: id, Name: "name-" + id, Artists: []string{"artist-" + id}}
	}
	return out
}

func TestPlaylistProvider_GetCandidates(t *testing.T) {
	catalog := &fakeCatalog{playlist: tracks("a", "b", "c", "d")}
	p, err := NewPlaylistProvider(catalog, 4, map[string]any{"playlist_url": "spotify:playlist:x"})
	require.NoError(t, err)
	assert.Equal(t, "playlist", p.Name())

	got, err := p.GetCandidates(context.Background(), 2, nil, map[string]bool{"b": true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, 1, catalog.playlistCalls)

	// Leftover "d" is served from the cache
	got, err = p.GetCandidates(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, 1, catalog.playlistCalls)
}

func TestPlaylistProvider_Config(t *testing.T) {
	_, err := NewPlaylistProvider(&fakeCatalog{}, 5, map[string]any{})
	assert.Error(t, err)

	_, err = NewPlaylistProvider(nil, 5, map[string]any{"playlist_url": "x"})
	assert.Error(t, err)
}

func TestPlaylistProvider_CatalogError(t *testing.T) {
	p, err := NewPlaylistProvider(&fakeCatalog{err: errors.New("boom")}, 5, map[string]any{"playlist_url": "x"})
	require.NoError(t, err)
	_, err = p.GetCandidates(context.Background(), 1, nil, nil)
	assert.Error(t, err)
}

func TestLastFmProvider_SimilarTracks(t *testing.T) {
	catalog := &fakeCatalog{byQuery: map[string]track.Track{
		"track:Sim1 artist:A1": {ID: "s1"},
		"track:Sim2 artist:A2": {ID: "s2"},
	}}
	client := &fakeLastFm{similar: map[string][]lastfm.TrackRef{
		"name-seed": {{Name: "Sim1", Artist: "A1"}, {Name: "Sim2", Artist: "A2"}, {Name: "Nope", Artist: "X"}},
	}}
	p := newLastFmProvider(catalog, client, LastFmProviderConfig{SeedTrackCount: 3, SimilarLimit: 10, ChartLimit: 10})

	got, err := p.GetCandidates(context.Background(), 5, tracks("seed"), map[string]bool{"s2": true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)

	// Misses are cached too
	calls := catalog.searchCalls
	_, err = p.GetCandidates(context.Background(), 5, tracks("seed"), nil)
	require.NoError(t, err)
	assert.Equal(t, calls, catalog.searchCalls)
}

func TestLastFmProvider_ChartFallback(t *testing.T) {
	catalog := &fakeCatalog{byQuery: map[string]track.Track{
		"track:Hit artist:Star": {ID: "hit"},
	}}
	client := &fakeLastFm{chart: []lastfm.TrackRef{{Name: "Hit", Artist: "Star"}}}
	p := newLastFmProvider(catalog, client, LastFmProviderConfig{SeedTrackCount: 1, SimilarLimit: 10, ChartLimit: 10})

	got, err := p.GetCandidates(context.Background(), 3, tracks("unknown"), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hit", got[0].ID)
	assert.Equal(t, "lastfm", p.Name())
}

func TestLastFmProvider_Config(t *testing.T) {
	_, err := NewLastFmProvider(&fakeCatalog{}, nil)
	assert.Error(t, err)

	_, err = NewLastFmProvider(&fakeCatalog{}, map[string]any{"seed_track_count": 2})
	assert.Error(t, err)

	p, err := NewLastFmProvider(&fakeCatalog{}, map[string]any{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.config.SeedTrackCount)
	assert.Equal(t, 10, p.config.SimilarLimit)
}

func TestProviderChain_GetCandidates(t *testing.T) {
	tests := []struct {
		name      string
		providers []ProviderWithMetadata
		count     int
		wantIDs   []string
		wantSrc   []string
		wantErr   bool
	}{
		{
			name: "first provider fills the request",
			providers: []ProviderWithMetadata{
				{Provider: &fakeProvider{name: "p", tracks: tracks("a", "b")}, DisplayName: "First"},
				{Provider: &fakeProvider{name: "p", tracks: tracks("c")}, DisplayName: "Second"},
			},
			count:   2,
			wantIDs: []string{"a", "b"},
			wantSrc: []string{"First", "First"},
		},
		{
			name: "failing provider is skipped",
			providers: []ProviderWithMetadata{
				{Provider: &fakeProvider{name: "p", err: errors.New("down")}, DisplayName: "Broken"},
				{Provider: &fakeProvider{name: "p", tracks: tracks("c")}, DisplayName: "Backup"},
			},
			count:   2,
			wantIDs: []string{"c"},
			wantSrc: []string{"Backup"},
		},
		{
			name: "duplicates across providers are dropped",
			providers: []ProviderWithMetadata{
				{Provider: &fakeProvider{name: "p", tracks: tracks("a")}, DisplayName: "One"},
				{Provider: &fakeProvider{name: "p", tracks: tracks("a", "b")}, DisplayName: "Two"},
			},
			count:   3,
			wantIDs: []string{"a", "b"},
			wantSrc: []string{"One", "Two"},
		},
		{
			name: "all providers empty",
			providers: []ProviderWithMetadata{
				{Provider: &fakeProvider{name: "p", err: errors.New("down")}, DisplayName: "Broken"},
			},
			count:   1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewProviderChain(tt.providers)
			got, err := chain.GetCandidates(context.Background(), tt.count, nil, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var ids, src []string
			for _, c := range got {
				ids = append(ids, c.Track.ID)
				src = append(src, c.DisplayName)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantSrc, src)
		})
	}
}

func TestNewProviderChainFromConfig(t *testing.T) {
	cfg := config.BGMConfig{
		CandidateCount: 5,
		Providers: []config.ProviderConfig{
			{Type: "playlist", DisplayName: "Chill", Settings: map[string]any{"playlist_url": "x"}},
			{Type: "lastfm", DisplayName: "Radio", Settings: map[string]any{"api_key": "k"}},
		},
	}
	chain, err := NewProviderChainFromConfig(cfg, &fakeCatalog{})
	require.NoError(t, err)
	assert.Equal(t, 2, chain.Len())

	cfg.Providers = append(cfg.Providers, config.ProviderConfig{Type: "radio", DisplayName: "x", Settings: map[string]any{}})
	_, err = NewProviderChainFromConfig(cfg, &fakeCatalog{})
	assert.Error(t, err)

	_, err = NewProviderChainFromConfig(config.BGMConfig{}, &fakeCatalog{})
	assert.Error(t, err)
}
