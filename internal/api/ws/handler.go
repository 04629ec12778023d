// Package ws streams room snapshots to browsers over WebSocket.
package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/coordinator"
	"github.com/osa030/19room/internal/app/notification"
	"github.com/osa030/19room/internal/app/presence"
	"github.com/osa030/19room/internal/domain/room"
)

// Event is one text frame sent to the client.
type Event struct {
	Type   string         `json:"type"` // "snapshot" or "closed"
	RoomID string         `json:"roomId"`
	Room   *room.Snapshot `json:"room,omitempty"`
}

// Options configures the handler.
type Options struct {
	AllowedOrigins []string // empty means same origin only; "*" allows any
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

// Handler serves GET /ws/rooms/{id}.
type Handler struct {
	rooms    *coordinator.Coordinator
	notifier *notification.Manager
	presence *presence.Tracker
	upgrader websocket.Upgrader
	opts     Options
}

// NewHandler creates a WebSocket handler.
func NewHandler(rooms *coordinator.Coordinator, notifier *notification.Manager, tracker *presence.Tracker, opts Options) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	h := &Handler{
		rooms:    rooms,
		notifier: notifier,
		presence: tracker,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if len(opts.AllowedOrigins) > 0 {
		h.upgrader.CheckOrigin = h.checkOrigin
	}
	return h
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /ws/rooms/{id}", h)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.opts.AllowedOrigins, "*") || slices.Contains(h.opts.AllowedOrigins, origin)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	q := r.URL.Query()
	userID := q.Get("user")
	if userID == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}
	if userID == coordinator.SystemUserID {
		http.Error(w, "user id is reserved", http.StatusForbidden)
		return
	}

	if _, err := h.rooms.JoinRoom(r.Context(), roomID, userID, q.Get("name"), q.Get("code")); err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	sub := h.notifier.Subscribe(roomID)
	defer h.notifier.Unsubscribe(sub)

	// The member counts as connected from the join on, so a failed upgrade
	// still leaves the room.
	h.presence.Connect(roomID, userID)
	defer h.presence.Disconnect(roomID, userID)

	snap, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Str("room_id", roomID).Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()
	zlog.Info().Str("room_id", roomID).Str("user_id", userID).Msg("ws: connected")

	closed := h.readPump(conn)
	if err := h.stream(conn, sub, snap, closed); err != nil && !isClosed(err) {
		zlog.Debug().Str("room_id", roomID).Str("user_id", userID).Err(err).Msg("ws: stream ended")
	}
	zlog.Info().Str("room_id", roomID).Str("user_id", userID).Msg("ws: disconnected")
}

// readPump drains client frames so control frames are handled. The returned
// channel closes when the connection is gone.
func (h *Handler) readPump(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	pongWait := 2 * h.opts.PingInterval

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func (h *Handler) stream(conn *websocket.Conn, sub *notification.Subscription, snap room.Snapshot, closed <-chan struct{}) error {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	last := snap.Version
	if err := h.write(conn, Event{Type: "snapshot", RoomID: snap.ID, Room: &snap}); err != nil {
		return err
	}
	send := func(next room.Snapshot) error {
		if next.Version <= last {
			return nil
		}
		last = next.Version
		return h.write(conn, Event{Type: "snapshot", RoomID: next.ID, Room: &next})
	}

	for {
		select {
		case <-closed:
			return nil
		case next := <-sub.C:
			if err := send(next); err != nil {
				return err
			}
		case <-sub.Done:
			select {
			case next := <-sub.C:
				if err := send(next); err != nil {
					return err
				}
			default:
			}
			if err := h.write(conn, Event{Type: "closed", RoomID: sub.RoomID}); err != nil {
				return err
			}
			deadline := time.Now().Add(h.opts.WriteTimeout)
			return conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"), deadline)
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, ev Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent)
}

// httpStatus maps room errors for the pre-upgrade response.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, room.ErrPrivateRoom):
		return http.StatusForbidden
	case errors.Is(err, room.ErrRoomBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, room.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
