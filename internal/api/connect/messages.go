package connect

import "github.com/osa030/19room/internal/domain/room"

// Service and procedure names of room.v1.RoomService.
const (
	RoomServiceName = "room.v1.RoomService"

	RoomServiceCreateRoomProcedure        = "/room.v1.RoomService/CreateRoom"
	RoomServiceJoinRoomProcedure          = "/room.v1.RoomService/JoinRoom"
	RoomServiceLeaveRoomProcedure         = "/room.v1.RoomService/LeaveRoom"
	RoomServiceSetPlaybackProcedure       = "/room.v1.RoomService/SetPlayback"
	RoomServiceEnqueueSongProcedure       = "/room.v1.RoomService/EnqueueSong"
	RoomServiceRemoveSongProcedure        = "/room.v1.RoomService/RemoveSong"
	RoomServiceVoteSkipProcedure          = "/room.v1.RoomService/VoteSkip"
	RoomServiceUnvoteSkipProcedure        = "/room.v1.RoomService/UnvoteSkip"
	RoomServiceSetDJRotationModeProcedure = "/room.v1.RoomService/SetDJRotationMode"
	RoomServiceJoinDJProcedure            = "/room.v1.RoomService/JoinDJ"
	RoomServiceLeaveDJProcedure           = "/room.v1.RoomService/LeaveDJ"
	RoomServiceCompleteSongProcedure      = "/room.v1.RoomService/CompleteSong"
	RoomServiceGetRoomProcedure           = "/room.v1.RoomService/GetRoom"
	RoomServiceListRoomsProcedure         = "/room.v1.RoomService/ListRooms"
	RoomServiceSubscribeProcedure         = "/room.v1.RoomService/Subscribe"
)

type CreateRoomRequest struct {
	DisplayName string `json:"displayName,omitempty"`
	MaxMembers  int    `json:"maxMembers,omitempty"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
	AccessCode  string `json:"accessCode,omitempty"`
}

type JoinRoomRequest struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName,omitempty"`
	AccessCode  string `json:"accessCode,omitempty"`
}

// RoomRequest addresses a room without further arguments.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// SetPlaybackRequest carries a partial transport command; nil fields are kept.
type SetPlaybackRequest struct {
	RoomID    string   `json:"roomId"`
	SongID    *string  `json:"songId,omitempty"`
	Position  *float64 `json:"position,omitempty"`
	IsPlaying *bool    `json:"isPlaying,omitempty"`
}

// SongRequest addresses a song in a room.
type SongRequest struct {
	RoomID string `json:"roomId"`
	SongID string `json:"songId"`
}

type SetDJRotationModeRequest struct {
	RoomID  string `json:"roomId"`
	Enabled bool   `json:"enabled"`
}

type ListRoomsRequest struct{}

// RoomResponse returns the room after the call.
type RoomResponse struct {
	Room room.Snapshot `json:"room"`
}

type VoteSkipResponse struct {
	Room      room.Snapshot `json:"room"`
	Counted   bool          `json:"counted"`
	Votes     int           `json:"votes"`
	Threshold int           `json:"threshold"`
	Skipped   bool          `json:"skipped"`
}

type ListRoomsResponse struct {
	Rooms []room.Snapshot `json:"rooms"`
}
