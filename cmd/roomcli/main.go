// Package main provides the room CLI for exercising a running server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/19room/internal/api/connect"
	"github.com/osa030/19room/internal/domain/room"
)

var (
	app    = kingpin.New("19room-cli", "19room listening-room client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	user   = app.Flag("user", "User ID (or set ROOM_USER_ID env)").Envar("ROOM_USER_ID").Required().String()
	name   = app.Flag("name", "Display name").Envar("ROOM_DISPLAY_NAME").String()

	createCmd     = app.Command("create", "Create a room")
	createMax     = createCmd.Flag("max-members", "Member limit (0 = server default)").Int()
	createPrivate = createCmd.Flag("access-code", "Make the room private with this code").String()

	joinCmd  = app.Command("join", "Join a room")
	joinRoom = joinCmd.Arg("room-id", "Room ID").Required().String()
	joinCode = joinCmd.Flag("access-code", "Access code of a private room").String()

	leaveCmd  = app.Command("leave", "Leave a room")
	leaveRoom = leaveCmd.Arg("room-id", "Room ID").Required().String()

	playCmd  = app.Command("play", "Resume playback")
	playRoom = playCmd.Arg("room-id", "Room ID").Required().String()

	pauseCmd  = app.Command("pause", "Pause playback")
	pauseRoom = pauseCmd.Arg("room-id", "Room ID").Required().String()

	seekCmd      = app.Command("seek", "Seek to a position")
	seekRoom     = seekCmd.Arg("room-id", "Room ID").Required().String()
	seekPosition = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	enqueueCmd  = app.Command("enqueue", "Queue a song")
	enqueueRoom = enqueueCmd.Arg("room-id", "Room ID").Required().String()
	enqueueSong = enqueueCmd.Arg("song-id", "Spotify track ID").Required().String()

	removeCmd  = app.Command("remove", "Remove a queued song")
	removeRoom = removeCmd.Arg("room-id", "Room ID").Required().String()
	removeSong = removeCmd.Arg("song-id", "Spotify track ID").Required().String()

	voteCmd  = app.Command("vote", "Vote to skip the current song")
	voteRoom = voteCmd.Arg("room-id", "Room ID").Required().String()

	unvoteCmd  = app.Command("unvote", "Withdraw a skip vote")
	unvoteRoom = unvoteCmd.Arg("room-id", "Room ID").Required().String()

	modeCmd     = app.Command("dj-mode", "Turn DJ rotation on or off")
	modeRoom    = modeCmd.Arg("room-id", "Room ID").Required().String()
	modeEnabled = modeCmd.Arg("enabled", "on or off").Required().Enum("on", "off")

	djJoinCmd  = app.Command("dj-join", "Join the DJ rotation")
	djJoinRoom = djJoinCmd.Arg("room-id", "Room ID").Required().String()

	djLeaveCmd  = app.Command("dj-leave", "Leave the DJ rotation")
	djLeaveRoom = djLeaveCmd.Arg("room-id", "Room ID").Required().String()

	completeCmd  = app.Command("complete", "Report the current song finished")
	completeRoom = completeCmd.Arg("room-id", "Room ID").Required().String()
	completeSong = completeCmd.Arg("song-id", "Song that finished (empty starts an idle room)").String()

	getCmd  = app.Command("get", "Show a room")
	getRoom = getCmd.Arg("room-id", "Room ID").Required().String()

	listCmd = app.Command("list", "List public rooms")

	subscribeCmd  = app.Command("subscribe", "Stream room updates")
	subscribeRoom = subscribeCmd.Arg("room-id", "Room ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *user, *name)
	ctx := context.Background()

	var (
		snap room.Snapshot
		err  error
	)
	switch command {
	case createCmd.FullCommand():
		snap, err = client.CreateRoom(ctx, &apiconnect.CreateRoomRequest{
			MaxMembers: *createMax,
			IsPrivate:  *createPrivate != "",
			AccessCode: *createPrivate,
		})
	case joinCmd.FullCommand():
		snap, err = client.JoinRoom(ctx, &apiconnect.JoinRoomRequest{RoomID: *joinRoom, AccessCode: *joinCode})
	case leaveCmd.FullCommand():
		snap, err = client.LeaveRoom(ctx, *leaveRoom)
	case playCmd.FullCommand():
		playing := true
		snap, err = client.SetPlayback(ctx, &apiconnect.SetPlaybackRequest{RoomID: *playRoom, IsPlaying: &playing})
	case pauseCmd.FullCommand():
		playing := false
		snap, err = client.SetPlayback(ctx, &apiconnect.SetPlaybackRequest{RoomID: *pauseRoom, IsPlaying: &playing})
	case seekCmd.FullCommand():
		snap, err = client.SetPlayback(ctx, &apiconnect.SetPlaybackRequest{RoomID: *seekRoom, Position: seekPosition})
	case enqueueCmd.FullCommand():
		snap, err = client.EnqueueSong(ctx, *enqueueRoom, *enqueueSong)
	case removeCmd.FullCommand():
		snap, err = client.RemoveSong(ctx, *removeRoom, *removeSong)
	case voteCmd.FullCommand():
		var res *apiconnect.VoteSkipResponse
		res, err = client.VoteSkip(ctx, *voteRoom)
		if err == nil {
			fmt.Printf("Votes: %d/%d (counted=%v skipped=%v)\n", res.Votes, res.Threshold, res.Counted, res.Skipped)
			snap = res.Room
		}
	case unvoteCmd.FullCommand():
		snap, err = client.UnvoteSkip(ctx, *unvoteRoom)
	case modeCmd.FullCommand():
		snap, err = client.SetDJRotationMode(ctx, *modeRoom, *modeEnabled == "on")
	case djJoinCmd.FullCommand():
		snap, err = client.JoinDJ(ctx, *djJoinRoom)
	case djLeaveCmd.FullCommand():
		snap, err = client.LeaveDJ(ctx, *djLeaveRoom)
	case completeCmd.FullCommand():
		snap, err = client.CompleteSong(ctx, *completeRoom, *completeSong)
	case getCmd.FullCommand():
		snap, err = client.GetRoom(ctx, *getRoom)
	case listCmd.FullCommand():
		listRooms(ctx, client)
		return
	case subscribeCmd.FullCommand():
		subscribe(ctx, client, *subscribeRoom)
		return
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}
	printRoom(snap)
}

func printError(err error) {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		if code := cerr.Meta().Get(apiconnect.RejectCodeHeader); code != "" {
			fmt.Printf("Rejected [%s]: %s\n", code, cerr.Message())
			return
		}
		fmt.Printf("Error [%s]: %s\n", cerr.Code(), cerr.Message())
		return
	}
	fmt.Printf("Error: %v\n", err)
}

func listRooms(ctx context.Context, client *apiconnect.Client) {
	rooms, err := client.ListRooms(ctx)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if len(rooms) == 0 {
		fmt.Println("No public rooms")
		return
	}
	for _, r := range rooms {
		fmt.Printf("%s  host=%-12s members=%d/%d queue=%d playing=%q\n",
			r.ID, r.HostID, len(r.Members), r.MaxMembers, len(r.Queue), r.CurrentSongID)
	}
}

func subscribe(ctx context.Context, client *apiconnect.Client, roomID string) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := client.Subscribe(ctx, roomID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer stream.Close()

	fmt.Println("Subscribed. Press Ctrl+C to exit.")
	for stream.Receive() {
		printRoom(stream.Msg().Room)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		printError(err)
	}
}

func printRoom(r room.Snapshot) {
	fmt.Printf("\n=== Room %s (version %d) ===\n", r.ID, r.Version)
	fmt.Printf("  Owner: %s  Host: %s  Mode: %s  Private: %v\n", r.OwnerID, r.HostID, r.Mode, r.IsPrivate)

	names := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		names = append(names, fmt.Sprintf("%s(%s)", m.DisplayName, m.UserID))
	}
	fmt.Printf("  Members (%d/%d): %s\n", len(r.Members), r.MaxMembers, strings.Join(names, ", "))

	if len(r.DJs) > 0 {
		djs := make([]string, 0, len(r.DJs))
		for i, d := range r.DJs {
			marker := ""
			if i == r.CurrentDJIndex {
				marker = "*"
			}
			if !d.IsActive {
				marker += "(inactive)"
			}
			djs = append(djs, d.UserID+marker)
		}
		fmt.Printf("  DJs: %s\n", strings.Join(djs, ", "))
	}

	state := "stopped"
	switch {
	case r.CurrentSongID != "" && r.IsPlaying:
		state = "playing"
	case r.CurrentSongID != "":
		state = "paused"
	}
	position := r.CurrentPosition
	if r.IsPlaying && r.PlaybackUpdatedAt != nil {
		position += r.ServerTime.Sub(*r.PlaybackUpdatedAt).Seconds()
	}
	fmt.Printf("  Now: %q %s at %s\n", r.CurrentSongID, state, (time.Duration(position * float64(time.Second))).Round(time.Second))
	fmt.Printf("  Queue: %v\n", r.Queue)
	if len(r.VoteSkip) > 0 {
		fmt.Printf("  Skip votes: %v\n", r.VoteSkip)
	}
}
