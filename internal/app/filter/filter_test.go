package filter

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
	"github.com/osa030/19room/internal/infra/config"
)

func testRoom() *room.Room {
	return &room.Room{
		ID:      "room-1",
		OwnerID: "owner1",
		Mode:    room.ModeNormal,
		Members: []room.Member{
			{UserID: "owner1"},
			{UserID: "dj1"},
			{UserID: "member1"},
		},
		DJs:            []room.DJ{{UserID: "dj1", IsActive: true}},
		CurrentDJIndex: 0,
		Queue:          []string{"queued"},
		CurrentSongID:  "playing",
		MaxMembers:     10,
	}
}

func userReq(op Operation, userID, songID string) Request {
	return Request{Operation: op, UserID: userID, RequesterType: track.RequesterTypeUser, SongID: songID}
}

func TestFilters_Check(t *testing.T) {
	rotation := func(r *room.Room) { r.Mode = room.ModeDJRotation }

	tests := []struct {
		name     string
		filter   Filter
		prep     func(r *room.Room)
		req      Request
		wantCode string
	}{
		{name: "member passes member_only", filter: &MemberOnlyFilter{}, req: userReq(OpEnqueue, "member1", "s")},
		{name: "stranger fails member_only", filter: &MemberOnlyFilter{}, req: userReq(OpEnqueue, "stranger", "s"), wantCode: "not_a_member"},

		{name: "host may set playback", filter: &HostOnlyPlaybackFilter{}, req: userReq(OpSetPlayback, "owner1", "")},
		{name: "non-host may not set playback", filter: &HostOnlyPlaybackFilter{}, req: userReq(OpSetPlayback, "member1", ""), wantCode: "host_only"},
		{name: "current dj is host in rotation", filter: &HostOnlyPlaybackFilter{}, prep: rotation, req: userReq(OpSetPlayback, "dj1", "")},
		{name: "owner is not host while dj holds turn", filter: &HostOnlyPlaybackFilter{}, prep: rotation, req: userReq(OpSetPlayback, "owner1", ""), wantCode: "host_only"},

		{name: "owner may set mode", filter: &OwnerOnlyModeFilter{}, req: userReq(OpSetMode, "owner1", "")},
		{name: "member may not set mode", filter: &OwnerOnlyModeFilter{}, req: userReq(OpSetMode, "member1", ""), wantCode: "owner_only"},
		{name: "ownerless room rejects mode change", filter: &OwnerOnlyModeFilter{}, prep: func(r *room.Room) { r.OwnerID = "" }, req: userReq(OpSetMode, "", ""), wantCode: "owner_only"},

		{name: "anyone may enqueue in normal mode", filter: &DJTurnFilter{}, req: userReq(OpEnqueue, "member1", "s")},
		{name: "only current dj enqueues in rotation", filter: &DJTurnFilter{}, prep: rotation, req: userReq(OpEnqueue, "member1", "s"), wantCode: "not_your_turn"},
		{name: "current dj enqueues in rotation", filter: &DJTurnFilter{}, prep: rotation, req: userReq(OpEnqueue, "dj1", "s")},

		{name: "new song passes duplicate check", filter: &DuplicateSongFilter{}, req: userReq(OpEnqueue, "member1", "new")},
		{name: "queued song is duplicate", filter: &DuplicateSongFilter{}, req: userReq(OpEnqueue, "member1", "queued"), wantCode: "duplicate_song"},
		{name: "playing song is duplicate", filter: &DuplicateSongFilter{}, req: userReq(OpEnqueue, "member1", "playing"), wantCode: "duplicate_song"},

		{name: "queue below limit", filter: &QueueLimitFilter{maxLength: 2}, req: userReq(OpEnqueue, "member1", "s")},
		{name: "queue at limit", filter: &QueueLimitFilter{maxLength: 1}, req: userReq(OpEnqueue, "member1", "s"), wantCode: "queue_full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRoom()
			if tt.prep != nil {
				tt.prep(r)
			}
			require.True(t, tt.filter.AppliesTo(tt.req.Operation, tt.req.RequesterType))

			result := tt.filter.Check(context.Background(), tt.req, r)
			if tt.wantCode == "" {
				assert.True(t, result.Accepted)
			} else {
				assert.False(t, result.Accepted)
				assert.Equal(t, tt.wantCode, result.Code)
				assert.Contains(t, tt.filter.ReturnCodes(), tt.wantCode)
			}
		})
	}
}

func TestMarketFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		market       string
		track        *track.Track
		wantAccepted bool
	}{
		{name: "available", market: "JP", track: &track.Track{Markets: []string{"JP", "US"}}, wantAccepted: true},
		{name: "unavailable", market: "JP", track: &track.Track{Markets: []string{"US"}}, wantAccepted: false},
		{name: "no market configured", market: "", track: &track.Track{Markets: []string{"US"}}, wantAccepted: true},
		{name: "no metadata", market: "JP", track: nil, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewMarketFilter(tt.market)
			req := userReq(OpEnqueue, "member1", "s")
			req.Track = tt.track

			result := f.Check(context.Background(), req, testRoom())
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "market_restriction", result.Code)
			}
		})
	}
}

func TestFilters_AppliesTo(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		op     Operation
		rt     track.RequesterType
		want   bool
	}{
		{"member_only on enqueue", &MemberOnlyFilter{}, OpEnqueue, track.RequesterTypeUser, true},
		{"member_only skips join", &MemberOnlyFilter{}, OpJoin, track.RequesterTypeUser, false},
		{"member_only skips system", &MemberOnlyFilter{}, OpEnqueue, track.RequesterTypeSystem, false},
		{"host_only skips enqueue", &HostOnlyPlaybackFilter{}, OpEnqueue, track.RequesterTypeUser, false},
		{"dj_turn skips bgm", &DJTurnFilter{}, OpEnqueue, track.RequesterTypeBGM, false},
		{"market checks bgm", &MarketFilter{}, OpEnqueue, track.RequesterTypeBGM, true},
		{"queue_limit checks bgm", &QueueLimitFilter{}, OpEnqueue, track.RequesterTypeBGM, true},
		{"duplicate skips completion", &DuplicateSongFilter{}, OpCompleteSong, track.RequesterTypeSystem, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.AppliesTo(tt.op, tt.rt))
		})
	}
}

func TestChain_Check(t *testing.T) {
	chain := NewChain()
	chain.Add(&MemberOnlyFilter{})
	chain.Add(&DuplicateSongFilter{})

	r := testRoom()

	assert.NoError(t, chain.Check(context.Background(), userReq(OpEnqueue, "member1", "new"), r))

	err := chain.Check(context.Background(), userReq(OpEnqueue, "stranger", "queued"), r)
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "member_only_filter", rej.Filter)
	assert.Equal(t, "not_a_member", rej.Code)

	err = chain.Check(context.Background(), userReq(OpEnqueue, "member1", "queued"), r)
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "duplicate_song", rej.Code)

	// System requests bypass user guards.
	sys := Request{Operation: OpEnqueue, RequesterType: track.RequesterTypeSystem, SongID: "queued"}
	assert.NoError(t, chain.Check(context.Background(), sys, r))
}

func TestNewChainFromConfig(t *testing.T) {
	chain, err := NewChainFromConfig(map[string]config.FilterConfig{
		"member_only_filter":    {Enabled: true},
		"duration_limit_filter": {Enabled: true, Settings: map[string]any{"max_minutes": 10}},
		"duplicate_song_filter": {Enabled: false},
	})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, f := range chain.Filters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"duration_limit_filter", "member_only_filter"}, names)

	_, err = NewChainFromConfig(map[string]config.FilterConfig{"nope": {Enabled: true}})
	assert.Error(t, err)

	_, err = NewChainFromConfig(map[string]config.FilterConfig{
		"duration_limit_filter": {Enabled: true, Settings: map[string]any{"min_minutes": 9, "max_minutes": 3}},
	})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	reg := GetRegistered()
	for _, name := range []string{
		"member_only_filter", "host_only_playback_filter", "owner_only_mode_filter",
		"dj_turn_filter", "duplicate_song_filter", "duration_limit_filter",
		"market_filter", "queue_limit_filter",
	} {
		factory, ok := reg[name]
		require.True(t, ok, name)
		assert.Equal(t, name, factory().Name())
	}
}
