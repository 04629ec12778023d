// Package valkeystore stores room documents in Valkey hashes.
package valkeystore

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/valkey-io/valkey-go"

	"github.com/osa030/19room/internal/domain/room"
)

// saveScript writes the document unless the stored version is newer.
var saveScript = valkey.NewLuaScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'doc', ARGV[1], 'version', ARGV[2])
return 1
`)

// Store keeps each room in a hash at <prefix>room:<id>.
type Store struct {
	client valkey.Client
	prefix string
}

// Open connects to the Valkey server at addr.
func Open(ctx context.Context, addr, password, prefix string) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create valkey client")
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to ping valkey")
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) key(id string) string {
	return s.prefix + "room:" + id
}

// Load returns the stored room.
func (s *Store) Load(ctx context.Context, id string) (*room.Room, error) {
	cmd := s.client.B().Hget().Key(s.key(id)).Field("doc").Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, errors.Wrapf(room.ErrRoomNotFound, "room %s", id)
		}
		return nil, errors.Wrapf(err, "failed to load room %s", id)
	}

	var r room.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "failed to decode room %s", id)
	}
	return &r, nil
}

// Save writes the room unless a newer version is stored.
func (s *Store) Save(ctx context.Context, r *room.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrapf(err, "failed to encode room %s", r.ID)
	}
	args := []string{string(data), strconv.FormatUint(r.Version, 10)}
	if err := saveScript.Exec(ctx, s.client, []string{s.key(r.ID)}, args).Error(); err != nil {
		return errors.Wrapf(err, "failed to save room %s", r.ID)
	}
	return nil
}

// Delete removes the room key.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(id)).Build()).Error(); err != nil {
		return errors.Wrapf(err, "failed to delete room %s", id)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}
