// Package store opens the room document store selected by configuration.
package store

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/persist"
	"github.com/osa030/19room/internal/infra/config"
	"github.com/osa030/19room/internal/infra/store/memory"
	"github.com/osa030/19room/internal/infra/store/postgres"
	"github.com/osa030/19room/internal/infra/store/sqlite"
	"github.com/osa030/19room/internal/infra/store/valkeystore"
)

// Open returns the store for cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (persist.Store, error) {
	zlog.Info().Msgf("Opening %s room store", cfg.Driver)

	var (
		s   persist.Store
		err error
	)
	switch cfg.Driver {
	case "", "memory":
		s = memory.New()
	case "postgres":
		s, err = openPostgres(ctx, cfg.PostgresDSN)
	case "valkey":
		s, err = openValkey(ctx, cfg)
	case "sqlite":
		s, err = openSQLite(cfg.SQLitePath)
	default:
		return nil, errors.Newf("unknown storage driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s store", cfg.Driver)
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (persist.Store, error) {
	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openValkey(ctx context.Context, cfg config.StorageConfig) (persist.Store, error) {
	s, err := valkeystore.Open(ctx, cfg.ValkeyAddr, cfg.ValkeyPassword, cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (persist.Store, error) {
	s, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
