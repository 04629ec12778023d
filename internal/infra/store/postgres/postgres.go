// Package postgres stores room documents in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osa030/19room/internal/domain/room"
)

const schema = `
	CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT PRIMARY KEY,
		doc        JSONB NOT NULL,
		version    BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// NewPool creates and pings a connection pool.
func NewPool(parentCtx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(parentCtx, 3*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return pool, nil
}

// Store keeps one JSONB document per room.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and makes sure the rooms table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to create rooms table")
	}
	return &Store{pool: pool}, nil
}

// Load returns the stored room.
func (s *Store) Load(ctx context.Context, id string) (*room.Room, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM rooms WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(room.ErrRoomNotFound, "room %s", id)
		}
		return nil, errors.Wrapf(err, "failed to load room %s", id)
	}

	var r room.Room
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, errors.Wrapf(err, "failed to decode room %s", id)
	}
	return &r, nil
}

// Save upserts the room. Rows holding a newer version are left alone.
func (s *Store) Save(ctx context.Context, r *room.Room) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return errors.Wrapf(err, "failed to encode room %s", r.ID)
	}

	query := `
		INSERT INTO rooms (id, doc, version, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET doc = EXCLUDED.doc, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
		WHERE rooms.version <= EXCLUDED.version
	`
	if _, err := s.pool.Exec(ctx, query, r.ID, doc, int64(r.Version), time.Now().UTC()); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "operation cancelled")
		}
		return errors.Wrapf(err, "failed to save room %s", r.ID)
	}
	return nil
}

// Delete removes the room row.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return errors.Wrapf(err, "failed to delete room %s", id)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
