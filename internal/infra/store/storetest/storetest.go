// Package storetest holds behavior checks shared by every store driver.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19room/internal/app/persist"
	"github.com/osa030/19room/internal/domain/room"
)

// Run exercises s. Room ids are prefixed with prefix so shared servers stay clean.
func Run(t *testing.T, s persist.Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("missing room", func(t *testing.T) {
		_, err := s.Load(ctx, prefix+"missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, room.ErrRoomNotFound))
	})

	t.Run("save and load", func(t *testing.T) {
		r := room.New(prefix+"r1", "owner1", "Owner", 10, true, "code", now)
		r.Queue = []string{"a", "b"}
		r.Version = 3
		require.NoError(t, s.Save(ctx, r))

		got, err := s.Load(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
		assert.Equal(t, []string{"a", "b"}, got.Queue)
		assert.Equal(t, uint64(3), got.Version)
		assert.Equal(t, "code", got.AccessCode)
		assert.True(t, got.CreatedAt.Equal(now))
	})

	t.Run("older version is ignored", func(t *testing.T) {
		r := room.New(prefix+"r2", "owner1", "Owner", 10, false, "", now)
		r.Version = 5
		r.Queue = []string{"new"}
		require.NoError(t, s.Save(ctx, r))

		old := r.Clone()
		old.Version = 4
		old.Queue = []string{"old"}
		require.NoError(t, s.Save(ctx, old))

		got, err := s.Load(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), got.Version)
		assert.Equal(t, []string{"new"}, got.Queue)
	})

	t.Run("delete", func(t *testing.T) {
		r := room.New(prefix+"r3", "owner1", "Owner", 10, false, "", now)
		require.NoError(t, s.Save(ctx, r))
		require.NoError(t, s.Delete(ctx, r.ID))
		require.NoError(t, s.Delete(ctx, r.ID))

		_, err := s.Load(ctx, r.ID)
		assert.True(t, errors.Is(err, room.ErrRoomNotFound))
	})
}
