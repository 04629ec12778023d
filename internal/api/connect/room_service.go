// Package connect provides the Connect RPC surface of the room service.
package connect

import (
	"context"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/coordinator"
	"github.com/osa030/19room/internal/app/notification"
	"github.com/osa030/19room/internal/app/playback"
	"github.com/osa030/19room/internal/app/presence"
	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// Catalog looks up track metadata for guards.
type Catalog interface {
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
}

// RoomService implements room.v1.RoomService.
type RoomService struct {
	rooms    *coordinator.Coordinator
	notifier *notification.Manager
	presence *presence.Tracker
	catalog  Catalog
	messages Messages
}

// NewRoomService creates a new RoomService. catalog may be nil.
func NewRoomService(
	rooms *coordinator.Coordinator,
	notifier *notification.Manager,
	tracker *presence.Tracker,
	catalog Catalog,
	messages Messages,
) *RoomService {
	return &RoomService{
		rooms:    rooms,
		notifier: notifier,
		presence: tracker,
		catalog:  catalog,
		messages: messages,
	}
}

func caller(ctx context.Context) Identity {
	id, _ := IdentityFromContext(ctx)
	return id
}

func (s *RoomService) roomResponse(snap room.Snapshot, err error) (*connect.Response[RoomResponse], error) {
	if err != nil {
		return nil, toConnectError(err, s.messages)
	}
	return connect.NewResponse(&RoomResponse{Room: snap}), nil
}

// CreateRoom creates a room owned by the caller.
func (s *RoomService) CreateRoom(
	ctx context.Context,
	req *connect.Request[CreateRoomRequest],
) (*connect.Response[RoomResponse], error) {
	id := caller(ctx)
	name := req.Msg.DisplayName
	if name == "" {
		name = id.DisplayName
	}
	return s.roomResponse(s.rooms.CreateRoom(ctx, coordinator.CreateParams{
		OwnerID:     id.UserID,
		DisplayName: name,
		MaxMembers:  req.Msg.MaxMembers,
		IsPrivate:   req.Msg.IsPrivate,
		AccessCode:  req.Msg.AccessCode,
	}))
}

// JoinRoom adds the caller to a room.
func (s *RoomService) JoinRoom(
	ctx context.Context,
	req *connect.Request[JoinRoomRequest],
) (*connect.Response[RoomResponse], error) {
	id := caller(ctx)
	name := req.Msg.DisplayName
	if name == "" {
		name = id.DisplayName
	}
	return s.roomResponse(s.rooms.JoinRoom(ctx, req.Msg.RoomID, id.UserID, name, req.Msg.AccessCode))
}

// LeaveRoom removes the caller from a room.
func (s *RoomService) LeaveRoom(
	ctx context.Context,
	req *connect.Request[RoomRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.LeaveRoom(ctx, req.Msg.RoomID, caller(ctx).UserID))
}

// SetPlayback applies a transport command.
func (s *RoomService) SetPlayback(
	ctx context.Context,
	req *connect.Request[SetPlaybackRequest],
) (*connect.Response[RoomResponse], error) {
	cmd := playback.Command{
		SongID:    req.Msg.SongID,
		Position:  req.Msg.Position,
		IsPlaying: req.Msg.IsPlaying,
	}
	return s.roomResponse(s.rooms.SetPlayback(ctx, req.Msg.RoomID, caller(ctx).UserID, cmd))
}

// EnqueueSong appends a song. Catalog metadata is fetched before the room is locked.
func (s *RoomService) EnqueueSong(
	ctx context.Context,
	req *connect.Request[SongRequest],
) (*connect.Response[RoomResponse], error) {
	var tr *track.Track
	if s.catalog != nil && req.Msg.SongID != "" {
		t, err := s.catalog.GetTrack(ctx, req.Msg.SongID)
		if err != nil {
			zlog.Warn().Err(err).Msgf("room service: catalog lookup failed for %s", req.Msg.SongID)
		} else {
			tr = t
		}
	}
	return s.roomResponse(s.rooms.EnqueueSong(ctx, req.Msg.RoomID, caller(ctx).UserID, req.Msg.SongID, tr))
}

// RemoveSong removes a queued song.
func (s *RoomService) RemoveSong(
	ctx context.Context,
	req *connect.Request[SongRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.RemoveSong(ctx, req.Msg.RoomID, caller(ctx).UserID, req.Msg.SongID))
}

// VoteSkip votes against the current song.
func (s *RoomService) VoteSkip(
	ctx context.Context,
	req *connect.Request[RoomRequest],
) (*connect.Response[VoteSkipResponse], error) {
	result, snap, err := s.rooms.VoteSkip(ctx, req.Msg.RoomID, caller(ctx).UserID)
	if err != nil {
		return nil, toConnectError(err, s.messages)
	}
	return connect.NewResponse(&VoteSkipResponse{
		Room:      snap,
		Counted:   result.Counted,
		Votes:     result.Votes,
		Threshold: result.Threshold,
		Skipped:   result.Skipped,
	}), nil
}

// UnvoteSkip withdraws the caller's vote.
func (s *RoomService) UnvoteSkip(
	ctx context.Context,
	req *connect.Request[RoomRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.UnvoteSkip(ctx, req.Msg.RoomID, caller(ctx).UserID))
}

// SetDJRotationMode switches between normal and DJ rotation mode.
func (s *RoomService) SetDJRotationMode(
	ctx context.Context,
	req *connect.Request[SetDJRotationModeRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.SetDJRotationMode(ctx, req.Msg.RoomID, caller(ctx).UserID, req.Msg.Enabled))
}

// JoinDJ enters the caller into the DJ rotation.
func (s *RoomService) JoinDJ(
	ctx context.Context,
	req *connect.Request[RoomRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.JoinDJ(ctx, req.Msg.RoomID, caller(ctx).UserID))
}

// LeaveDJ takes the caller out of the DJ rotation.
func (s *RoomService) LeaveDJ(
	ctx context.Context,
	req *connect.Request[RoomRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.LeaveDJ(ctx, req.Msg.RoomID, caller(ctx).UserID))
}

// CompleteSong reports the end of the current song.
func (s *RoomService) CompleteSong(
	ctx context.Context,
	req *connect.Request[SongRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.CompleteSong(ctx, req.Msg.RoomID, caller(ctx).UserID, req.Msg.SongID))
}

// GetRoom returns the current state of a room.
func (s *RoomService) GetRoom(
	ctx context.Context,
	req *connect.Request[RoomRequest],
) (*connect.Response[RoomResponse], error) {
	return s.roomResponse(s.rooms.Get(ctx, req.Msg.RoomID))
}

// ListRooms returns the public rooms.
func (s *RoomService) ListRooms(
	ctx context.Context,
	req *connect.Request[ListRoomsRequest],
) (*connect.Response[ListRoomsResponse], error) {
	return connect.NewResponse(&ListRoomsResponse{Rooms: s.rooms.List()}), nil
}

// Subscribe streams the current snapshot followed by every newer one.
// A member's stream counts as a connection for presence.
func (s *RoomService) Subscribe(
	ctx context.Context,
	req *connect.Request[RoomRequest],
	stream *connect.ServerStream[RoomResponse],
) error {
	roomID := req.Msg.RoomID
	userID := caller(ctx).UserID

	// Subscribe before reading so no commit falls in between
	sub := s.notifier.Subscribe(roomID)
	defer s.notifier.Unsubscribe(sub)

	snap, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return toConnectError(err, s.messages)
	}
	if s.presence != nil && isMember(snap, userID) {
		s.presence.Connect(roomID, userID)
		defer s.presence.Disconnect(roomID, userID)
	}

	if err := stream.Send(&RoomResponse{Room: snap}); err != nil {
		return err
	}
	last := snap.Version

	send := func(next room.Snapshot) error {
		if next.Version <= last {
			return nil
		}
		last = next.Version
		return stream.Send(&RoomResponse{Room: next})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-sub.C:
			if err := send(next); err != nil {
				return err
			}
		case <-sub.Done:
			// Deliver the final snapshot of a destroyed room
			select {
			case next := <-sub.C:
				return send(next)
			default:
				return nil
			}
		}
	}
}

func isMember(snap room.Snapshot, userID string) bool {
	for _, m := range snap.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
