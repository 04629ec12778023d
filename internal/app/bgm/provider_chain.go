package bgm

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/domain/track"
)

// CandidateWithSource represents a track candidate with its source provider info.
type CandidateWithSource struct {
	Track       track.Track
	DisplayName string
}

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain asks providers in order until enough candidates are collected.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{providers: providers}
}

// GetCandidates collects up to count candidates, earlier providers first.
// A failing provider is skipped.
func (c *ProviderChain) GetCandidates(ctx context.Context, count int, seedTracks []track.Track, excludeIDs map[string]bool) ([]CandidateWithSource, error) {
	var all []CandidateWithSource
	exclude := make(map[string]bool, len(excludeIDs))
	for k, v := range excludeIDs {
		exclude[k] = v
	}

	for i, pm := range c.providers {
		remaining := count - len(all)
		if remaining <= 0 {
			break
		}
		zlog.Debug().Msgf("bgm: trying provider %d/%d name=%s type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.GetCandidates(ctx, remaining, seedTracks, exclude)
		if err != nil {
			zlog.Warn().Msgf("bgm: provider %s failed, trying next: %v", pm.DisplayName, err)
			continue
		}
		for _, t := range candidates {
			if exclude[t.ID] {
				continue
			}
			all = append(all, CandidateWithSource{Track: t, DisplayName: pm.DisplayName})
			exclude[t.ID] = true
		}
	}

	if len(all) == 0 {
		return nil, errors.New("all providers failed to return candidates")
	}
	return all, nil
}

// Len returns the number of providers.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}
