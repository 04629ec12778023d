package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrack_IsAvailableInMarket(t *testing.T) {
	playable := true
	blocked := false

	tests := []struct {
		name       string
		markets    []string
		isPlayable *bool
		market     string
		expected   bool
	}{
		{name: "listed market", markets: []string{"JP", "US"}, market: "JP", expected: true},
		{name: "unlisted market", markets: []string{"US"}, market: "JP", expected: false},
		{name: "playable flag wins over list", markets: []string{"US"}, isPlayable: &playable, market: "JP", expected: true},
		{name: "blocked flag wins over list", markets: []string{"JP"}, isPlayable: &blocked, market: "JP", expected: false},
		{name: "no markets", market: "JP", expected: false},
		{name: "market codes are case sensitive", markets: []string{"jp"}, market: "JP", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Track{ID: "song", Markets: tt.markets, IsPlayable: tt.isPlayable}
			assert.Equal(t, tt.expected, tr.IsAvailableInMarket(tt.market))
		})
	}
}

func TestTrack_DurationSeconds(t *testing.T) {
	tr := &Track{Duration: 3*time.Minute + 500*time.Millisecond}
	assert.InDelta(t, 180.5, tr.DurationSeconds(), 1e-9)
}

func TestTrack_PrimaryArtist(t *testing.T) {
	assert.Equal(t, "", (&Track{}).PrimaryArtist())
	assert.Equal(t, "A", (&Track{Artists: []string{"A", "B"}}).PrimaryArtist())
}
