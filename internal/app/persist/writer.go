// Package persist writes committed room state to a Store in the background.
// Failures are logged and never reach the caller; the in-memory room stays
// authoritative.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/tombstone"
	"github.com/osa030/19room/internal/domain/room"
)

// Store persists room documents.
type Store interface {
	// Load returns the stored room, or an error wrapping room.ErrRoomNotFound.
	Load(ctx context.Context, id string) (*room.Room, error)
	// Save upserts the room. Implementations ignore versions older than the stored one.
	Save(ctx context.Context, r *room.Room) error
	// Delete removes the room. Deleting a missing room is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}

type request struct {
	room    *room.Room // nil for delete
	id      string
	version uint64
}

// Writer coalesces writes per room and applies them from a single worker.
// Only the newest pending request of a room is kept.
type Writer struct {
	store   Store
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]request
	order   []string
	written map[string]uint64 // live rooms only
	deleted *tombstone.Set
	closed  bool

	wake    chan struct{}
	stopped chan struct{}
}

// NewWriter starts a writer in front of store. timeout bounds each store call.
func NewWriter(store Store, timeout time.Duration) *Writer {
	w := &Writer{
		store:   store,
		timeout: timeout,
		pending: make(map[string]request),
		written: make(map[string]uint64),
		deleted: tombstone.New(tombstone.DefaultLimit),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

// Save queues r for saving. The writer keeps its own reference; callers must
// not mutate r afterwards.
func (w *Writer) Save(r *room.Room) {
	w.submit(request{room: r, id: r.ID, version: r.Version})
}

// Delete queues removal of the room at the given version.
func (w *Writer) Delete(id string, version uint64) {
	w.submit(request{id: id, version: version})
}

func (w *Writer) submit(req request) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		zlog.Warn().Msgf("persist: writer closed, dropping room=%s version=%d", req.id, req.version)
		return
	}
	if cur, ok := w.pending[req.id]; ok {
		if req.version < cur.version {
			w.mu.Unlock()
			return
		}
	} else {
		w.order = append(w.order, req.id)
	}
	w.pending[req.id] = req
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Load returns the newest known state of a room: a pending save wins over
// the store, and a pending delete reports the room as missing.
func (w *Writer) Load(ctx context.Context, id string) (*room.Room, error) {
	w.mu.Lock()
	req, ok := w.pending[id]
	w.mu.Unlock()
	if ok {
		if req.room == nil {
			return nil, errors.Wrapf(room.ErrRoomNotFound, "room %s is being deleted", id)
		}
		return req.room.Clone(), nil
	}
	return w.store.Load(ctx, id)
}

func (w *Writer) run() {
	defer close(w.stopped)
	for {
		req, ok, closed := w.next()
		if ok {
			w.write(req)
			continue
		}
		if closed {
			return
		}
		<-w.wake
	}
}

// next pops the oldest pending room.
func (w *Writer) next() (request, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return request{}, false, w.closed
	}
	id := w.order[0]
	w.order = w.order[1:]
	req := w.pending[id]
	delete(w.pending, id)
	return req, true, w.closed
}

func (w *Writer) write(req request) {
	w.mu.Lock()
	last, seen := w.written[req.id]
	if v, ok := w.deleted.Get(req.id); ok {
		last, seen = v, true
	}
	w.mu.Unlock()
	if seen && req.version <= last {
		zlog.Debug().Msgf("persist: room=%s skipped stale version %d (written %d)", req.id, req.version, last)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	if req.room == nil {
		err = w.store.Delete(ctx, req.id)
	} else {
		err = w.store.Save(ctx, req.room)
	}
	if err != nil {
		zlog.Error().Err(err).Str("room_id", req.id).Uint64("version", req.version).
			Bool("delete", req.room == nil).Msg("persist: store write failed")
		return
	}

	// Deletes are remembered for a while, so a late save cannot bring the
	// document back.
	w.mu.Lock()
	if req.room == nil {
		delete(w.written, req.id)
		w.deleted.Add(req.id, req.version)
	} else {
		w.written[req.id] = req.version
	}
	w.mu.Unlock()
}

// Close flushes pending writes and closes the store.
// It gives up waiting when ctx ends; the store is closed either way.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}

	var flushErr error
	select {
	case <-w.stopped:
	case <-ctx.Done():
		flushErr = errors.Wrap(ctx.Err(), "persist flush interrupted")
	}
	if err := w.store.Close(); err != nil {
		return errors.CombineErrors(flushErr, errors.Wrap(err, "failed to close store"))
	}
	return flushErr
}
