package filter

import (
	"context"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// MarketConfig represents the configuration for MarketFilter.
type MarketConfig struct {
	Market string `yaml:"market" mapstructure:"market" default:"JP" validate:"len=2"`
}

// MarketFilter checks if the song is available in the configured market.
type MarketFilter struct {
	market string
}

// NewMarketFilter creates a new MarketFilter with the specified market.
func NewMarketFilter(market string) *MarketFilter {
	return &MarketFilter{market: market}
}

func (f *MarketFilter) Name() string {
	return "market_filter"
}

func (f *MarketFilter) Description() string {
	return "Checks if the song is available in the configured market"
}

func (f *MarketFilter) ReturnCodes() []string {
	return []string{"market_restriction"}
}

func (f *MarketFilter) ValidateConfig(settings map[string]any) error {
	var config MarketConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.market = config.Market
	return nil
}

func (f *MarketFilter) AppliesTo(op Operation, requesterType track.RequesterType) bool {
	// Background picks come from the same catalog and are checked too
	return op == OpEnqueue
}

func (f *MarketFilter) Check(ctx context.Context, req Request, r *room.Room) Result {
	if f.market == "" || req.Track == nil {
		return Accept()
	}
	if !req.Track.IsAvailableInMarket(f.market) {
		return Reject("market_restriction")
	}
	return Accept()
}

func init() {
	Register("market_filter", func() Filter {
		return &MarketFilter{}
	})
}
