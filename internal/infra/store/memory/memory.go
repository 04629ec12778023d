// Package memory provides an in-process room document store.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19room/internal/domain/room"
)

type document struct {
	version uint64
	data    []byte
}

// Store keeps room documents as JSON in a map.
type Store struct {
	mu   sync.RWMutex
	docs map[string]document
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]document)}
}

// Load returns a decoded copy of the stored room.
func (s *Store) Load(ctx context.Context, id string) (*room.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(room.ErrRoomNotFound, "room %s", id)
	}

	var r room.Room
	if err := json.Unmarshal(doc.data, &r); err != nil {
		return nil, errors.Wrapf(err, "failed to decode room %s", id)
	}
	return &r, nil
}

// Save stores r unless a newer version is already stored.
func (s *Store) Save(ctx context.Context, r *room.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrapf(err, "failed to encode room %s", r.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.docs[r.ID]; ok && cur.version > r.Version {
		return nil
	}
	s.docs[r.ID] = document{version: r.Version, data: data}
	return nil
}

// Delete removes the room.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
