package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19room/internal/app/tombstone"
	"github.com/osa030/19room/internal/domain/room"
)

// entry is one live room. The slot serializes mutations; readers use the
// atomic pointer and never block. Stored rooms are never mutated in place.
type entry struct {
	id   string
	slot chan struct{}
	room atomic.Pointer[room.Room]
	dead bool // guarded by slot
}

func newEntry(r *room.Room) *entry {
	e := &entry{id: r.ID, slot: make(chan struct{}, 1)}
	e.room.Store(r)
	return e
}

// acquire takes the slot, waiting at most timeout.
// Waiters are served in arrival order.
func (e *entry) acquire(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "waiting for room %s", e.id)
	case <-timer.C:
		return errors.Wrapf(room.ErrRoomBusy, "room %s not available after %s", e.id, timeout)
	}
}

func (e *entry) release() {
	<-e.slot
}

// registry maps room ids to live entries. It is locked separately from the
// per-room slots, always after a slot when both are held.
type registry struct {
	mu    sync.RWMutex
	rooms map[string]*entry
	gone  *tombstone.Set // recently destroyed ids; not rehydrated
}

func newRegistry(tombstones int) *registry {
	return &registry{
		rooms: make(map[string]*entry),
		gone:  tombstone.New(tombstones),
	}
}

func (g *registry) get(id string) (*entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.rooms[id]
	return e, ok
}

func (g *registry) destroyed(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gone.Contains(id)
}

// insert adds e unless the id is taken or destroyed.
// It returns the entry that ended up registered, or false for a destroyed id.
func (g *registry) insert(e *entry) (*entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gone.Contains(e.id) {
		return nil, false
	}
	if cur, ok := g.rooms[e.id]; ok {
		return cur, true
	}
	g.rooms[e.id] = e
	return e, true
}

func (g *registry) remove(id string, version uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, id)
	g.gone.Add(id, version)
}

func (g *registry) all() []*entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*entry, 0, len(g.rooms))
	for _, e := range g.rooms {
		out = append(out, e)
	}
	return out
}

func (g *registry) len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
