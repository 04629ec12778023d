// Package sqlite stores room documents in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/osa030/19room/internal/domain/room"
)

// Store keeps one JSON document per room.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" keeps it in process.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id         TEXT PRIMARY KEY,
			doc        TEXT NOT NULL,
			version    INTEGER NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create rooms table")
	}

	return &Store{db: db}, nil
}

// Load returns the stored room.
func (s *Store) Load(ctx context.Context, id string) (*room.Room, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM rooms WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(room.ErrRoomNotFound, "room %s", id)
		}
		return nil, errors.Wrapf(err, "failed to load room %s", id)
	}

	var r room.Room
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, doc, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET doc = excluded.doc, version = excluded.version, updated_at = excluded.updated_at
		WHERE rooms.version <= excluded.version
	`, r.ID, string(doc), int64(r.Version), time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to save room %s", r.ID)
	}
	return nil
}

// Delete removes the room row.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return errors.Wrapf(err, "failed to delete room %s", id)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
