package bgm

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/infra/config"
)

// NewProviderChainFromConfig creates a provider chain from configuration.
func NewProviderChainFromConfig(cfg config.BGMConfig, catalog Catalog) (*ProviderChain, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no BGM providers configured")
	}

	providers := make([]ProviderWithMetadata, 0, len(cfg.Providers))
	for i, pcfg := range cfg.Providers {
		var (
			provider Provider
			err      error
		)
		switch pcfg.Type {
		case "playlist":
			provider, err = NewPlaylistProvider(catalog, cfg.CandidateCount, pcfg.Settings)
		case "lastfm":
			provider, err = NewLastFmProvider(catalog, pcfg.Settings)
		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{Provider: provider, DisplayName: pcfg.DisplayName})
		zlog.Info().Msgf("Registered BGM provider %d: type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}
	return NewProviderChain(providers), nil
}
