// Package notification fans committed room snapshots out to per-room subscribers.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/tombstone"
	"github.com/osa030/19room/internal/domain/room"
)

// Subscription receives snapshots for one room.
// C holds at most one unread snapshot; a newer one replaces it.
type Subscription struct {
	ID     string
	RoomID string
	C      <-chan room.Snapshot
	Done   <-chan struct{}

	ch   chan room.Snapshot
	done chan struct{}
	once sync.Once
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// deliver replaces any unread snapshot with snap. It never blocks.
func (s *Subscription) deliver(snap room.Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Manager manages per-room subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]map[string]*Subscription // room id -> subscription id
	lastVersion   map[string]uint64
	closed        *tombstone.Set // destroyed rooms; late publishes are dropped
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]map[string]*Subscription),
		lastVersion:   make(map[string]uint64),
		closed:        tombstone.New(tombstone.DefaultLimit),
	}
}

// Subscribe registers a subscriber for roomID.
func (m *Manager) Subscribe(roomID string) *Subscription {
	ch := make(chan room.Snapshot, 1)
	done := make(chan struct{})
	sub := &Subscription{
		ID:     uuid.New().String(),
		RoomID: roomID,
		C:      ch,
		Done:   done,
		ch:     ch,
		done:   done,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.subscriptions[roomID]
	if !ok {
		subs = make(map[string]*Subscription)
		m.subscriptions[roomID] = subs
	}
	subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its Done channel.
func (m *Manager) Unsubscribe(sub *Subscription) {
	m.mu.Lock()
	if subs, ok := m.subscriptions[sub.RoomID]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(m.subscriptions, sub.RoomID)
		}
	}
	m.mu.Unlock()
	sub.close()
}

// Publish delivers snap to every subscriber of its room.
// A snapshot not newer than the last one published for the room, or for a
// closed room, is dropped. Returns whether the snapshot was delivered.
func (m *Manager) Publish(snap room.Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Contains(snap.ID) {
		zlog.Debug().Msgf("notification: room=%s closed, dropped version %d", snap.ID, snap.Version)
		return false
	}

	if last, ok := m.lastVersion[snap.ID]; ok && snap.Version <= last {
		zlog.Debug().Msgf("notification: room=%s dropped stale version %d (last %d)", snap.ID, snap.Version, last)
		return false
	}
	m.lastVersion[snap.ID] = snap.Version

	// deliver never blocks, so holding the lock keeps per-room order.
	for _, sub := range m.subscriptions[snap.ID] {
		sub.deliver(snap)
	}
	return true
}

// CloseRoom ends every subscription of a destroyed room.
func (m *Manager) CloseRoom(roomID string) {
	m.mu.Lock()
	subs := m.subscriptions[roomID]
	delete(m.subscriptions, roomID)
	m.closed.Add(roomID, m.lastVersion[roomID])
	delete(m.lastVersion, roomID)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// SubscriberCount returns the number of subscribers of roomID.
func (m *Manager) SubscriberCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions[roomID])
}

// Close ends all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.subscriptions
	m.subscriptions = make(map[string]map[string]*Subscription)
	m.lastVersion = make(map[string]uint64)
	m.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.close()
		}
	}
}
