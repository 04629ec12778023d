// Package coordinator owns the live rooms and applies every room operation
// one at a time per room: clone, guard, transition, validate, commit, then
// broadcast and persist outside the room's slot.
package coordinator

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/filter"
	"github.com/osa030/19room/internal/app/host"
	"github.com/osa030/19room/internal/app/voteskip"
	"github.com/osa030/19room/internal/domain/room"
)

// Publisher receives committed snapshots.
type Publisher interface {
	Publish(snap room.Snapshot) bool
	CloseRoom(roomID string)
}

// Persister mirrors committed rooms to storage. Calls must not block.
type Persister interface {
	Save(r *room.Room)
	Delete(roomID string, version uint64)
}

// Loader rehydrates rooms missing from memory.
type Loader interface {
	Load(ctx context.Context, roomID string) (*room.Room, error)
}

// Guard authorizes an operation against the room as it is before the operation.
type Guard interface {
	Check(ctx context.Context, req filter.Request, r *room.Room) error
}

// Transition mutates a private copy of the room. Returning an error discards the copy.
type Transition func(r *room.Room, now time.Time) error

// errUnchanged lets a transition succeed without committing a new version.
var errUnchanged = errors.New("unchanged")

// Options configures a Coordinator.
type Options struct {
	AcquireTimeout    time.Duration
	VoteSkipRatio     float64
	DefaultMaxMembers int
	MaxMembersLimit   int

	Publisher Publisher
	Persister Persister
	Loader    Loader
	Guard     Guard

	// Tombstones bounds how many destroyed ids are remembered; 0 uses the default.
	Tombstones int

	Now   func() time.Time
	NewID func() string
}

// Coordinator is the single entry point for room state changes.
type Coordinator struct {
	opts     Options
	registry *registry
}

// New creates a coordinator. Zero options get working defaults.
func New(opts Options) *Coordinator {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 2 * time.Second
	}
	if opts.VoteSkipRatio <= 0 || opts.VoteSkipRatio > 1 {
		opts.VoteSkipRatio = voteskip.DefaultRatio
	}
	if opts.DefaultMaxMembers <= 0 {
		opts.DefaultMaxMembers = 50
	}
	if opts.MaxMembersLimit < opts.DefaultMaxMembers {
		opts.MaxMembersLimit = opts.DefaultMaxMembers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Coordinator{opts: opts, registry: newRegistry(opts.Tombstones)}
}

// Apply runs fn against roomID under the room's slot.
// On success the new snapshot is published exactly once and persisted.
// On failure nothing is committed, published or persisted.
func (c *Coordinator) Apply(ctx context.Context, roomID string, req filter.Request, fn Transition) (room.Snapshot, error) {
	for {
		e, err := c.resolve(ctx, roomID)
		if err != nil {
			return room.Snapshot{}, err
		}
		if err := e.acquire(ctx, c.opts.AcquireTimeout); err != nil {
			return room.Snapshot{}, err
		}
		if e.dead {
			// Destroyed while we waited; resolve again.
			e.release()
			continue
		}
		return c.applyLocked(ctx, e, req, fn)
	}
}

// applyLocked runs with e's slot held and releases it.
func (c *Coordinator) applyLocked(ctx context.Context, e *entry, req filter.Request, fn Transition) (room.Snapshot, error) {
	cur := e.room.Load()
	next := cur.Clone()

	if c.opts.Guard != nil {
		if err := c.opts.Guard.Check(ctx, req, next); err != nil {
			e.release()
			return room.Snapshot{}, err
		}
	}

	now := c.opts.Now()
	if err := fn(next, now); err != nil {
		e.release()
		if errors.Is(err, errUnchanged) {
			return cur.Snapshot(host.Resolve(cur), now), nil
		}
		return room.Snapshot{}, err
	}
	if err := next.Validate(); err != nil {
		e.release()
		zlog.Error().Err(err).Str("room_id", e.id).Str("op", string(req.Operation)).Msg("coordinator: transition broke room invariants")
		return room.Snapshot{}, err
	}
	next.Version = cur.Version + 1

	destroyed := next.IsEmpty()
	if destroyed {
		e.dead = true
		c.registry.remove(e.id, next.Version)
	} else {
		e.room.Store(next)
	}
	e.release()

	snap := next.Snapshot(host.Resolve(next), now)
	zlog.Debug().Str("room_id", e.id).Str("op", string(req.Operation)).Str("user_id", req.UserID).
		Uint64("version", next.Version).Bool("destroyed", destroyed).Msg("coordinator: committed")

	if c.opts.Publisher != nil {
		c.opts.Publisher.Publish(snap)
		if destroyed {
			c.opts.Publisher.CloseRoom(e.id)
		}
	}
	if c.opts.Persister != nil {
		if destroyed {
			c.opts.Persister.Delete(e.id, next.Version)
		} else {
			c.opts.Persister.Save(next)
		}
	}
	if destroyed {
		zlog.Info().Msgf("Room %s destroyed after last member left", e.id)
	}
	return snap, nil
}

// resolve finds the live entry for roomID, loading it from storage on a miss.
// The load happens outside any slot; a concurrent insert wins.
func (c *Coordinator) resolve(ctx context.Context, roomID string) (*entry, error) {
	if e, ok := c.registry.get(roomID); ok {
		return e, nil
	}
	if roomID == "" || c.opts.Loader == nil || c.registry.destroyed(roomID) {
		return nil, errors.Wrapf(room.ErrRoomNotFound, "room %q", roomID)
	}

	r, err := c.opts.Loader.Load(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to load room %s", roomID)
	}
	if r.IsEmpty() {
		return nil, errors.Wrapf(room.ErrRoomNotFound, "stored room %s has no members", roomID)
	}
	if err := r.Validate(); err != nil {
		return nil, errors.Wrapf(err, "stored room %s is corrupt", roomID)
	}

	e, ok := c.registry.insert(newEntry(r))
	if !ok {
		return nil, errors.Wrapf(room.ErrRoomNotFound, "room %q", roomID)
	}
	zlog.Info().Msgf("Room %s restored from storage at version %d", roomID, e.room.Load().Version)
	return e, nil
}

// Get returns the current snapshot of a room without waiting for its slot.
func (c *Coordinator) Get(ctx context.Context, roomID string) (room.Snapshot, error) {
	e, err := c.resolve(ctx, roomID)
	if err != nil {
		return room.Snapshot{}, err
	}
	r := e.room.Load()
	return r.Snapshot(host.Resolve(r), c.opts.Now()), nil
}

// List returns snapshots of public rooms, oldest first.
func (c *Coordinator) List() []room.Snapshot {
	return c.snapshots(func(r *room.Room) bool { return !r.IsPrivate })
}

// Snapshots returns every live room, oldest first.
func (c *Coordinator) Snapshots() []room.Snapshot {
	return c.snapshots(func(*room.Room) bool { return true })
}

func (c *Coordinator) snapshots(keep func(*room.Room) bool) []room.Snapshot {
	now := c.opts.Now()
	entries := c.registry.all()
	out := make([]room.Snapshot, 0, len(entries))
	for _, e := range entries {
		r := e.room.Load()
		if keep(r) {
			out = append(out, r.Snapshot(host.Resolve(r), now))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RoomCount returns the number of live rooms.
func (c *Coordinator) RoomCount() int {
	return c.registry.len()
}
