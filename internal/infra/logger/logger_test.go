package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_FileOutputIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Output: "/var/log/room.log", Level: "info"})
	l.Info().Str("room", "r1").Msg("room created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "room created", entry["message"])
	assert.Equal(t, "r1", entry["room"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Output: "file", Level: "warn"})
	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	closer, err := Init(Config{Output: path, Level: "info"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = Init(Config{Output: "stderr"})
	})

	require.NoError(t, closer())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
