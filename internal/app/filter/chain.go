package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain from the enabled entries of the filters
// config section, in name order.
func NewChainFromConfig(filters map[string]config.FilterConfig) (*Chain, error) {
	names := make([]string, 0, len(filters))
	for name, fc := range filters {
		if fc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	chain := NewChain()
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		f := factory()
		if err := f.ValidateConfig(filters[name].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("registered filter: name=%s", name)
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
func (c *Chain) Execute(ctx context.Context, req Request, r *room.Room) (Result, string) {
	for _, f := range c.filters {
		if !f.AppliesTo(req.Operation, req.RequesterType) {
			continue
		}

		result := f.Check(ctx, req, r)
		if !result.Accepted {
			return result, f.Name()
		}
	}
	return Accept(), ""
}

// Check runs the chain and converts a rejection into a *RejectionError.
func (c *Chain) Check(ctx context.Context, req Request, r *room.Room) error {
	result, name := c.Execute(ctx, req, r)
	if result.Accepted {
		return nil
	}
	zlog.Debug().Msgf("filter rejected: room=%s op=%s user=%s filter=%s code=%s",
		r.ID, req.Operation, req.UserID, name, result.Code)
	return &RejectionError{Filter: name, Code: result.Code}
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
