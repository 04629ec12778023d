package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19room/internal/app/coordinator"
	"github.com/osa030/19room/internal/app/notification"
	"github.com/osa030/19room/internal/app/presence"
	"github.com/osa030/19room/internal/domain/room"
)

type fixture struct {
	server *httptest.Server
	rooms  *coordinator.Coordinator
	roomID string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	notifier := notification.NewManager()
	rooms := coordinator.New(coordinator.Options{Publisher: notifier})
	tracker := presence.NewTracker(func(ctx context.Context, roomID, userID string) error {
		_, err := rooms.LeaveRoom(ctx, roomID, userID)
		return err
	}, time.Second)

	snap, err := rooms.CreateRoom(context.Background(), coordinator.CreateParams{
		OwnerID: "alice", DisplayName: "Alice", MaxMembers: 2, IsPrivate: true, AccessCode: "1234",
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(rooms, notifier, tracker, opts).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &fixture{server: server, rooms: rooms, roomID: snap.ID}
}

func (f *fixture) url(roomID, query string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/rooms/" + roomID + "?" + query
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHandler_StreamsSnapshotsAndLeavesOnClose(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.roomID, "user=bob&name=Bob&code=1234"), nil)
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, "snapshot", ev.Type)
	require.NotNil(t, ev.Room)
	require.Len(t, ev.Room.Members, 2)
	assert.Equal(t, "Bob", ev.Room.Members[1].DisplayName)

	_, err = f.rooms.EnqueueSong(ctx, f.roomID, "alice", "s1", nil)
	require.NoError(t, err)
	ev = readEvent(t, conn)
	require.NotNil(t, ev.Room)
	assert.Equal(t, []string{"s1"}, ev.Room.Queue)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		snap, err := f.rooms.Get(ctx, f.roomID)
		return err == nil && len(snap.Members) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_ClosedRoom(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.roomID, "user=alice"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	_, err = f.rooms.LeaveRoom(ctx, f.roomID, "alice")
	require.NoError(t, err)

	ev := readEvent(t, conn)
	require.NotNil(t, ev.Room)
	assert.Empty(t, ev.Room.Members)
	ev = readEvent(t, conn)
	assert.Equal(t, "closed", ev.Type)

	_, err = f.rooms.Get(ctx, f.roomID)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestHandler_RejectsBeforeUpgrade(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name   string
		roomID string
		query  string
		status int
	}{
		{name: "missing user", roomID: f.roomID, query: "", status: http.StatusBadRequest},
		{name: "unknown room", roomID: "missing", query: "user=bob", status: http.StatusNotFound},
		{name: "wrong access code", roomID: f.roomID, query: "user=bob&code=nope", status: http.StatusForbidden},
		{name: "reserved user id", roomID: f.roomID, query: "user=" + coordinator.SystemUserID + "&code=1234", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(f.url(tt.roomID, tt.query), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"https://app.example"}})

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(f.url(f.roomID, "user=bob&code=1234"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": {"https://app.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.roomID, "user=alice"), header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "snapshot", readEvent(t, conn).Type)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, httpStatus(room.ErrRoomFull))
	assert.Equal(t, http.StatusServiceUnavailable, httpStatus(room.ErrRoomBusy))
	assert.Equal(t, http.StatusInternalServerError, httpStatus(assert.AnError))
}
