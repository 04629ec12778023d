package coordinator

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/filter"
	"github.com/osa030/19room/internal/app/host"
	"github.com/osa030/19room/internal/app/playback"
	"github.com/osa030/19room/internal/app/queue"
	"github.com/osa030/19room/internal/app/rotation"
	"github.com/osa030/19room/internal/app/voteskip"
	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// SystemUserID identifies operations the server performs on its own.
const SystemUserID = "system"

// CreateParams describes a new room.
type CreateParams struct {
	OwnerID     string
	DisplayName string
	MaxMembers  int // 0 picks the configured default
	IsPrivate   bool
	AccessCode  string
}

// CreateRoom registers a new room with the owner as its only member.
func (c *Coordinator) CreateRoom(ctx context.Context, p CreateParams) (room.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return room.Snapshot{}, err
	}
	if p.OwnerID == "" {
		return room.Snapshot{}, errors.Wrap(room.ErrInvalidState, "owner id is required")
	}
	maxMembers := p.MaxMembers
	if maxMembers == 0 {
		maxMembers = c.opts.DefaultMaxMembers
	}
	if maxMembers < 1 || maxMembers > c.opts.MaxMembersLimit {
		return room.Snapshot{}, errors.Wrapf(room.ErrInvalidState, "max members %d outside [1, %d]", maxMembers, c.opts.MaxMembersLimit)
	}
	if p.IsPrivate && p.AccessCode == "" {
		return room.Snapshot{}, errors.Wrap(room.ErrInvalidState, "private room needs an access code")
	}

	now := c.opts.Now()
	r := room.New(c.opts.NewID(), p.OwnerID, p.DisplayName, maxMembers, p.IsPrivate, p.AccessCode, now)
	r.Version = 1
	if err := r.Validate(); err != nil {
		return room.Snapshot{}, err
	}

	e, ok := c.registry.insert(newEntry(r))
	if !ok || e.room.Load() != r {
		return room.Snapshot{}, errors.Newf("room id %s already in use", r.ID)
	}

	zlog.Info().Msgf("Room %s created by %s (max %d, private %v)", r.ID, p.OwnerID, maxMembers, p.IsPrivate)
	snap := r.Snapshot(host.Resolve(r), now)
	if c.opts.Publisher != nil {
		c.opts.Publisher.Publish(snap)
	}
	if c.opts.Persister != nil {
		c.opts.Persister.Save(r)
	}
	return snap, nil
}

// JoinRoom adds the user to the room. Joining again only refreshes the display name.
// Private rooms require the access code from users who are not already members.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID, userID, displayName, accessCode string) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpJoin, UserID: userID, RequesterType: track.RequesterTypeUser}
	return c.Apply(ctx, roomID, req, func(r *room.Room, now time.Time) error {
		if userID == "" {
			return errors.Wrap(room.ErrInvalidState, "user id is required")
		}
		if r.IsPrivate && !r.IsMember(userID) && accessCode != r.AccessCode {
			return errors.Wrapf(room.ErrPrivateRoom, "room %s", r.ID)
		}
		if i := r.MemberIndex(userID); i >= 0 && (displayName == "" || r.Members[i].DisplayName == displayName) {
			return errUnchanged
		}
		return r.AddMember(userID, displayName, now)
	})
}

// LeaveRoom removes the user, their skip vote and their DJ turn.
// The room is destroyed when the last member leaves. Quorum is not re-evaluated.
func (c *Coordinator) LeaveRoom(ctx context.Context, roomID, userID string) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpLeave, UserID: userID, RequesterType: track.RequesterTypeUser}
	return c.Apply(ctx, roomID, req, func(r *room.Room, _ time.Time) error {
		if !r.RemoveMember(userID) {
			return errors.Wrapf(room.ErrNotAMember, "user %s in room %s", userID, r.ID)
		}
		r.RemoveVote(userID)
		rotation.Deactivate(r, userID)
		return nil
	})
}

// SetPlayback writes a transport command. The last accepted write wins.
func (c *Coordinator) SetPlayback(ctx context.Context, roomID, userID string, cmd playback.Command) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpSetPlayback, UserID: userID, RequesterType: track.RequesterTypeUser}
	if cmd.SongID != nil {
		req.SongID = *cmd.SongID
	}
	return c.Apply(ctx, roomID, req, func(r *room.Room, now time.Time) error {
		return playback.Apply(r, cmd, now)
	})
}

// EnqueueSong appends a song to the queue. tr is optional catalog metadata for guards.
func (c *Coordinator) EnqueueSong(ctx context.Context, roomID, userID, songID string, tr *track.Track) (room.Snapshot, error) {
	req := filter.Request{
		Operation:     filter.OpEnqueue,
		UserID:        userID,
		RequesterType: track.RequesterTypeUser,
		SongID:        songID,
		Track:         tr,
	}
	return c.Apply(ctx, roomID, req, func(r *room.Room, _ time.Time) error {
		return queue.Enqueue(r, songID)
	})
}

// RemoveSong removes the first queued occurrence of songID.
func (c *Coordinator) RemoveSong(ctx context.Context, roomID, userID, songID string) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpRemove, UserID: userID, RequesterType: track.RequesterTypeUser, SongID: songID}
	return c.Apply(ctx, roomID, req, func(r *room.Room, _ time.Time) error {
		return queue.RemoveByID(r, songID)
	})
}

// VoteSkip records a skip vote and advances the room when quorum is reached.
// A repeated vote succeeds without changing the room.
func (c *Coordinator) VoteSkip(ctx context.Context, roomID, userID string) (voteskip.Result, room.Snapshot, error) {
	var res voteskip.Result
	req := filter.Request{Operation: filter.OpVote, UserID: userID, RequesterType: track.RequesterTypeUser}
	snap, err := c.Apply(ctx, roomID, req, func(r *room.Room, now time.Time) error {
		var err error
		res, err = voteskip.Vote(r, userID, c.opts.VoteSkipRatio, now)
		if err != nil {
			return err
		}
		if !res.Counted && !res.Skipped {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return voteskip.Result{}, room.Snapshot{}, err
	}
	if res.Skipped {
		zlog.Info().Msgf("Room %s skipped %s by vote (%d/%d)", roomID, res.Advance.PrevSong, res.Votes, res.Threshold)
	}
	return res, snap, nil
}

// UnvoteSkip withdraws the user's vote. Withdrawing a missing vote is a no-op.
func (c *Coordinator) UnvoteSkip(ctx context.Context, roomID, userID string) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpUnvote, UserID: userID, RequesterType: track.RequesterTypeUser}
	return c.Apply(ctx, roomID, req, func(r *room.Room, _ time.Time) error {
		if !voteskip.Unvote(r, userID) {
			return errUnchanged
		}
		return nil
	})
}

// SetDJRotationMode turns DJ rotation on or off.
func (c *Coordinator) SetDJRotationMode(ctx context.Context, roomID, userID string, enabled bool) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpSetMode, UserID: userID, RequesterType: track.RequesterTypeUser}
	return c.Apply(ctx, roomID, req, func(r *room.Room, _ time.Time) error {
		if enabled == (r.Mode == room.ModeDJRotation) {
			return errUnchanged
		}
		if enabled {
			rotation.Enable(r)
		} else {
			rotation.Disable(r)
		}
		return nil
	})
}

// JoinDJ puts a member into the DJ rotation, reactivating an earlier entry.
func (c *Coordinator) JoinDJ(ctx context.Context, roomID, userID string) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpJoinDJ, UserID: userID, RequesterType: track.RequesterTypeUser}
	return c.Apply(ctx, roomID, req, func(r *room.Room, now time.Time) error {
		if !r.IsMember(userID) {
			return errors.Wrapf(room.ErrNotAMember, "user %s in room %s", userID, r.ID)
		}
		if i := r.DJIndex(userID); i >= 0 && r.DJs[i].IsActive {
			return errUnchanged
		}
		rotation.AddDJ(r, userID, now)
		return nil
	})
}

// LeaveDJ takes the user out of the rotation. The turn moves on if it was theirs.
func (c *Coordinator) LeaveDJ(ctx context.Context, roomID, userID string) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpLeaveDJ, UserID: userID, RequesterType: track.RequesterTypeUser}
	return c.Apply(ctx, roomID, req, func(r *room.Room, _ time.Time) error {
		if !rotation.Deactivate(r, userID) {
			return errUnchanged
		}
		return nil
	})
}

// CompleteSong reports that songID finished playing and advances the room.
// A report for a song that is no longer current is ignored. An empty songID
// starts the queue of an idle room.
func (c *Coordinator) CompleteSong(ctx context.Context, roomID, userID, songID string) (room.Snapshot, error) {
	req := filter.Request{Operation: filter.OpCompleteSong, UserID: userID, RequesterType: requesterOf(userID), SongID: songID}
	return c.Apply(ctx, roomID, req, func(r *room.Room, now time.Time) error {
		if userID != SystemUserID && !r.IsMember(userID) {
			return errors.Wrapf(room.ErrNotAMember, "user %s in room %s", userID, r.ID)
		}
		if songID != r.CurrentSongID {
			return errUnchanged
		}
		if songID == "" && len(r.Queue) == 0 {
			return errUnchanged
		}
		ev := playback.Advance(r, now)
		zlog.Debug().Msgf("coordinator: room=%s completed %q, %s next=%q", r.ID, songID, ev.Type, ev.SongID)
		return nil
	})
}

// EnqueueSystemSong queues a song on behalf of the server, e.g. background music.
func (c *Coordinator) EnqueueSystemSong(ctx context.Context, roomID, songID string, tr *track.Track) (room.Snapshot, error) {
	req := filter.Request{
		Operation:     filter.OpEnqueue,
		UserID:        SystemUserID,
		RequesterType: track.RequesterTypeBGM,
		SongID:        songID,
		Track:         tr,
	}
	return c.Apply(ctx, roomID, req, func(r *room.Room, _ time.Time) error {
		return queue.Enqueue(r, songID)
	})
}

func requesterOf(userID string) track.RequesterType {
	if userID == SystemUserID {
		return track.RequesterTypeSystem
	}
	return track.RequesterTypeUser
}
