// Package queue provides ordered mutation of a room's pending songs.
// No authorization happens here; callers decide who may mutate the queue.
package queue

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/19room/internal/domain/room"
)

// Enqueue appends a song to the tail. The same song may be queued more than once.
func Enqueue(r *room.Room, songID string) error {
	if songID == "" {
		return errors.Wrap(room.ErrInvalidState, "empty song id")
	}
	r.Queue = append(r.Queue, songID)
	return nil
}

// DequeueNext pops the head of the queue. ok is false when the queue is empty.
func DequeueNext(r *room.Room) (songID string, ok bool) {
	if len(r.Queue) == 0 {
		return "", false
	}
	songID = r.Queue[0]
	r.Queue = r.Queue[1:]
	return songID, true
}

// RemoveByID removes the first entry matching songID.
func RemoveByID(r *room.Room, songID string) error {
	i := IndexOf(r, songID)
	if i < 0 {
		return errors.Wrapf(room.ErrNotInQueue, "song %s", songID)
	}
	r.Queue = append(r.Queue[:i], r.Queue[i+1:]...)
	return nil
}

// IndexOf returns the position of the first entry matching songID, or -1.
func IndexOf(r *room.Room, songID string) int {
	for i, id := range r.Queue {
		if id == songID {
			return i
		}
	}
	return -1
}
