// Package presence counts live connections per room member and makes the
// member leave once the last one is gone.
package presence

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// LeaveFunc removes a user from a room.
type LeaveFunc func(ctx context.Context, roomID, userID string) error

type key struct {
	roomID string
	userID string
}

// Tracker reference-counts (room, user) connections.
type Tracker struct {
	leave   LeaveFunc
	timeout time.Duration

	mu     sync.Mutex
	conns  map[key]int
	closed bool
	wg     sync.WaitGroup
}

// NewTracker creates a tracker. timeout bounds each asynchronous leave.
func NewTracker(leave LeaveFunc, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Tracker{
		leave:   leave,
		timeout: timeout,
		conns:   make(map[key]int),
	}
}

// Connect registers one more connection for the user in the room.
func (t *Tracker) Connect(roomID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[key{roomID, userID}]++
}

// Disconnect drops one connection. When it was the user's last one, the
// user leaves the room in the background.
func (t *Tracker) Disconnect(roomID, userID string) {
	k := key{roomID, userID}

	t.mu.Lock()
	n := t.conns[k] - 1
	if n > 0 {
		t.conns[k] = n
		t.mu.Unlock()
		return
	}
	delete(t.conns, k)
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.leave(ctx, roomID, userID); err != nil {
			zlog.Warn().Str("room_id", roomID).Str("user_id", userID).Err(err).
				Msg("presence: leave after disconnect failed")
			return
		}
		zlog.Debug().Str("room_id", roomID).Str("user_id", userID).Msg("presence: left after last disconnect")
	}()
}

// Connections returns the live connection count for the user in the room.
func (t *Tracker) Connections(roomID, userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[key{roomID, userID}]
}

// Close stops leaving rooms on disconnect, so a server shutdown keeps
// members in their rooms. It waits for pending leaves.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

// Wait blocks until pending leaves have finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
