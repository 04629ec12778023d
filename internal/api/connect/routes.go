package connect

import (
	"net/http"

	"connectrpc.com/connect"
)

// NewRoomServiceHandler builds an HTTP handler serving every RoomService
// procedure. It returns the path prefix to mount it on.
func NewRoomServiceHandler(svc *RoomService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(NewIdentityInterceptor()),
	}, opts...)

	handlers := map[string]http.Handler{
		RoomServiceCreateRoomProcedure:        connect.NewUnaryHandler(RoomServiceCreateRoomProcedure, svc.CreateRoom, opts...),
		RoomServiceJoinRoomProcedure:          connect.NewUnaryHandler(RoomServiceJoinRoomProcedure, svc.JoinRoom, opts...),
		RoomServiceLeaveRoomProcedure:         connect.NewUnaryHandler(RoomServiceLeaveRoomProcedure, svc.LeaveRoom, opts...),
		RoomServiceSetPlaybackProcedure:       connect.NewUnaryHandler(RoomServiceSetPlaybackProcedure, svc.SetPlayback, opts...),
		RoomServiceEnqueueSongProcedure:       connect.NewUnaryHandler(RoomServiceEnqueueSongProcedure, svc.EnqueueSong, opts...),
		RoomServiceRemoveSongProcedure:        connect.NewUnaryHandler(RoomServiceRemoveSongProcedure, svc.RemoveSong, opts...),
		RoomServiceVoteSkipProcedure:          connect.NewUnaryHandler(RoomServiceVoteSkipProcedure, svc.VoteSkip, opts...),
		RoomServiceUnvoteSkipProcedure:        connect.NewUnaryHandler(RoomServiceUnvoteSkipProcedure, svc.UnvoteSkip, opts...),
		RoomServiceSetDJRotationModeProcedure: connect.NewUnaryHandler(RoomServiceSetDJRotationModeProcedure, svc.SetDJRotationMode, opts...),
		RoomServiceJoinDJProcedure:            connect.NewUnaryHandler(RoomServiceJoinDJProcedure, svc.JoinDJ, opts...),
		RoomServiceLeaveDJProcedure:           connect.NewUnaryHandler(RoomServiceLeaveDJProcedure, svc.LeaveDJ, opts...),
		RoomServiceCompleteSongProcedure:      connect.NewUnaryHandler(RoomServiceCompleteSongProcedure, svc.CompleteSong, opts...),
		RoomServiceGetRoomProcedure:           connect.NewUnaryHandler(RoomServiceGetRoomProcedure, svc.GetRoom, opts...),
		RoomServiceListRoomsProcedure:         connect.NewUnaryHandler(RoomServiceListRoomsProcedure, svc.ListRooms, opts...),
		RoomServiceSubscribeProcedure:         connect.NewServerStreamHandler(RoomServiceSubscribeProcedure, svc.Subscribe, opts...),
	}

	return "/" + RoomServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}
