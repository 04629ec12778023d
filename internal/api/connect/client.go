package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/19room/internal/domain/room"
)

// Client calls RoomService as one user.
type Client struct {
	createRoom        *connect.Client[CreateRoomRequest, RoomResponse]
	joinRoom          *connect.Client[JoinRoomRequest, RoomResponse]
	leaveRoom         *connect.Client[RoomRequest, RoomResponse]
	setPlayback       *connect.Client[SetPlaybackRequest, RoomResponse]
	enqueueSong       *connect.Client[SongRequest, RoomResponse]
	removeSong        *connect.Client[SongRequest, RoomResponse]
	voteSkip          *connect.Client[RoomRequest, VoteSkipResponse]
	unvoteSkip        *connect.Client[RoomRequest, RoomResponse]
	setDJRotationMode *connect.Client[SetDJRotationModeRequest, RoomResponse]
	joinDJ            *connect.Client[RoomRequest, RoomResponse]
	leaveDJ           *connect.Client[RoomRequest, RoomResponse]
	completeSong      *connect.Client[SongRequest, RoomResponse]
	getRoom           *connect.Client[RoomRequest, RoomResponse]
	listRooms         *connect.Client[ListRoomsRequest, ListRoomsResponse]
	subscribe         *connect.Client[RoomRequest, RoomResponse]
}

// NewClient creates a client for the server at baseURL acting as userID.
func NewClient(httpClient connect.HTTPClient, baseURL, userID, displayName string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(identityHeaders{userID: userID, displayName: displayName}),
	}, opts...)

	return &Client{
		createRoom:        connect.NewClient[CreateRoomRequest, RoomResponse](httpClient, baseURL+RoomServiceCreateRoomProcedure, opts...),
		joinRoom:          connect.NewClient[JoinRoomRequest, RoomResponse](httpClient, baseURL+RoomServiceJoinRoomProcedure, opts...),
		leaveRoom:         connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceLeaveRoomProcedure, opts...),
		setPlayback:       connect.NewClient[SetPlaybackRequest, RoomResponse](httpClient, baseURL+RoomServiceSetPlaybackProcedure, opts...),
		enqueueSong:       connect.NewClient[SongRequest, RoomResponse](httpClient, baseURL+RoomServiceEnqueueSongProcedure, opts...),
		removeSong:        connect.NewClient[SongRequest, RoomResponse](httpClient, baseURL+RoomServiceRemoveSongProcedure, opts...),
		voteSkip:          connect.NewClient[RoomRequest, VoteSkipResponse](httpClient, baseURL+RoomServiceVoteSkipProcedure, opts...),
		unvoteSkip:        connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceUnvoteSkipProcedure, opts...),
		setDJRotationMode: connect.NewClient[SetDJRotationModeRequest, RoomResponse](httpClient, baseURL+RoomServiceSetDJRotationModeProcedure, opts...),
		joinDJ:            connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceJoinDJProcedure, opts...),
		leaveDJ:           connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceLeaveDJProcedure, opts...),
		completeSong:      connect.NewClient[SongRequest, RoomResponse](httpClient, baseURL+RoomServiceCompleteSongProcedure, opts...),
		getRoom:           connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceGetRoomProcedure, opts...),
		listRooms:         connect.NewClient[ListRoomsRequest, ListRoomsResponse](httpClient, baseURL+RoomServiceListRoomsProcedure, opts...),
		subscribe:         connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceSubscribeProcedure, opts...),
	}
}

func roomOf(res *connect.Response[RoomResponse], err error) (room.Snapshot, error) {
	if err != nil {
		return room.Snapshot{}, err
	}
	return res.Msg.Room, nil
}

func (c *Client) CreateRoom(ctx context.Context, req *CreateRoomRequest) (room.Snapshot, error) {
	return roomOf(c.createRoom.CallUnary(ctx, connect.NewRequest(req)))
}

func (c *Client) JoinRoom(ctx context.Context, req *JoinRoomRequest) (room.Snapshot, error) {
	return roomOf(c.joinRoom.CallUnary(ctx, connect.NewRequest(req)))
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) (room.Snapshot, error) {
	return roomOf(c.leaveRoom.CallUnary(ctx, connect.NewRequest(&RoomRequest{RoomID: roomID})))
}

func (c *Client) SetPlayback(ctx context.Context, req *SetPlaybackRequest) (room.Snapshot, error) {
	return roomOf(c.setPlayback.CallUnary(ctx, connect.NewRequest(req)))
}

func (c *Client) EnqueueSong(ctx context.Context, roomID, songID string) (room.Snapshot, error) {
	return roomOf(c.enqueueSong.CallUnary(ctx, connect.NewRequest(&SongRequest{RoomID: roomID, SongID: songID})))
}

func (c *Client) RemoveSong(ctx context.Context, roomID, songID string) (room.Snapshot, error) {
	return roomOf(c.removeSong.CallUnary(ctx, connect.NewRequest(&SongRequest{RoomID: roomID, SongID: songID})))
}

func (c *Client) VoteSkip(ctx context.Context, roomID string) (*VoteSkipResponse, error) {
	res, err := c.voteSkip.CallUnary(ctx, connect.NewRequest(&RoomRequest{RoomID: roomID}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) UnvoteSkip(ctx context.Context, roomID string) (room.Snapshot, error) {
	return roomOf(c.unvoteSkip.CallUnary(ctx, connect.NewRequest(&RoomRequest{RoomID: roomID})))
}

func (c *Client) SetDJRotationMode(ctx context.Context, roomID string, enabled bool) (room.Snapshot, error) {
	return roomOf(c.setDJRotationMode.CallUnary(ctx, connect.NewRequest(&SetDJRotationModeRequest{RoomID: roomID, Enabled: enabled})))
}

func (c *Client) JoinDJ(ctx context.Context, roomID string) (room.Snapshot, error) {
	return roomOf(c.joinDJ.CallUnary(ctx, connect.NewRequest(&RoomRequest{RoomID: roomID})))
}

func (c *Client) LeaveDJ(ctx context.Context, roomID string) (room.Snapshot, error) {
	return roomOf(c.leaveDJ.CallUnary(ctx, connect.NewRequest(&RoomRequest{RoomID: roomID})))
}

func (c *Client) CompleteSong(ctx context.Context, roomID, songID string) (room.Snapshot, error) {
	return roomOf(c.completeSong.CallUnary(ctx, connect.NewRequest(&SongRequest{RoomID: roomID, SongID: songID})))
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (room.Snapshot, error) {
	return roomOf(c.getRoom.CallUnary(ctx, connect.NewRequest(&RoomRequest{RoomID: roomID})))
}

func (c *Client) ListRooms(ctx context.Context) ([]room.Snapshot, error) {
	res, err := c.listRooms.CallUnary(ctx, connect.NewRequest(&ListRoomsRequest{}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Rooms, nil
}

// Subscribe opens a snapshot stream. The caller must close it.
func (c *Client) Subscribe(ctx context.Context, roomID string) (*connect.ServerStreamForClient[RoomResponse], error) {
	return c.subscribe.CallServerStream(ctx, connect.NewRequest(&RoomRequest{RoomID: roomID}))
}

// identityHeaders stamps the caller identity on outgoing requests.
type identityHeaders struct {
	userID      string
	displayName string
}

func (h identityHeaders) set(header http.Header) {
	header.Set(UserIDHeader, h.userID)
	if h.displayName != "" {
		header.Set(DisplayNameHeader, h.displayName)
	}
}

func (h identityHeaders) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		h.set(req.Header())
		return next(ctx, req)
	}
}

func (h identityHeaders) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		h.set(conn.RequestHeader())
		return conn
	}
}

func (h identityHeaders) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
