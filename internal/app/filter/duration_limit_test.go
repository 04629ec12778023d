package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name          string
		minMinutes    float64
		maxMinutes    float64
		trackDuration time.Duration
		noMetadata    bool
		shouldReject  bool
	}{
		{name: "within limits", minMinutes: 2, maxMinutes: 5, trackDuration: 3 * time.Minute},
		{name: "too short", minMinutes: 3, trackDuration: 2 * time.Minute, shouldReject: true},
		{name: "too long", minMinutes: 1, maxMinutes: 5, trackDuration: 6 * time.Minute, shouldReject: true},
		{name: "exact min", minMinutes: 3, trackDuration: 3 * time.Minute},
		{name: "exact max", minMinutes: 1, maxMinutes: 5, trackDuration: 5 * time.Minute},
		{name: "zero max means no upper limit", maxMinutes: 0, trackDuration: time.Hour},
		{name: "no catalog metadata passes", minMinutes: 3, noMetadata: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			f.config = &DurationLimitConfig{MinMinutes: tt.minMinutes, MaxMinutes: tt.maxMinutes}

			req := Request{Operation: OpEnqueue, UserID: "u1", RequesterType: track.RequesterTypeUser, SongID: "song"}
			if !tt.noMetadata {
				req.Track = &track.Track{ID: "song", Duration: tt.trackDuration}
			}

			result := f.Check(context.Background(), req, &room.Room{})
			if tt.shouldReject {
				assert.False(t, result.Accepted)
				assert.Equal(t, "duration_limit_exceeded", result.Code)
			} else {
				assert.True(t, result.Accepted)
			}
		})
	}
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{name: "valid floats", settings: map[string]any{"min_minutes": 2.5, "max_minutes": 5.0}},
		{name: "valid integers", settings: map[string]any{"min_minutes": 2, "max_minutes": 5}},
		{name: "min greater than max", settings: map[string]any{"min_minutes": 10.0, "max_minutes": 5.0}, wantErr: true},
		{name: "negative min", settings: map[string]any{"min_minutes": -1.0}, wantErr: true},
		{name: "negative max", settings: map[string]any{"max_minutes": -1.0}, wantErr: true},
		{name: "zero max keeps no limit", settings: map[string]any{"max_minutes": 0.0}},
		{name: "empty settings", settings: map[string]any{}},
		{name: "nil settings", settings: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			err := f.ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, f.config)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, f.config)
			}
		})
	}
}
