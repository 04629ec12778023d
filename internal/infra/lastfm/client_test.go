package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimilarTracks(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "track.getSimilar", r.URL.Query().Get("method"))
		assert.Equal(t, "test_artist", r.URL.Query().Get("artist"))
		assert.Equal(t, "test_track", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"similartracks": {
				"track": [
					{"name": "Track 1", "artist": {"name": "Artist 1"}, "match": 1},
					{"name": "Track 2", "artist": {"name": "Artist 2"}, "match": 0.8}
				]
			}
		}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	ctx := context.Background()
	tracks, err := client.GetSimilarTracks(ctx, "test_track", "test_artist", 5)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, TrackRef{Name: "Track 1", Artist: "Artist 1"}, tracks[0])

	cached, err := client.GetSimilarTracks(ctx, "test_track", "test_artist", 5)
	require.NoError(t, err)
	assert.Equal(t, tracks, cached)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetChartTopTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chart.getTopTracks", r.URL.Query().Get("method"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"tracks": {"track": [{"name": "Hit", "artist": {"name": "Star"}, "playcount": "5000"}]}}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	tracks, err := client.GetChartTopTracks(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, []TrackRef{{Name: "Hit", Artist: "Star"}}, tracks)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{name: "api error body", status: http.StatusOK, body: `{"error": 10, "message": "Invalid API key"}`, errMsg: "Invalid API key"},
		{name: "http failure", status: http.StatusBadGateway, body: `oops`, errMsg: "HTTP 502"},
		{name: "malformed json", status: http.StatusOK, body: `{"tracks": [`, errMsg: "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client, err := New(Config{APIKey: "k", BaseURL: server.URL + "/"})
			require.NoError(t, err)
			_, err = client.GetChartTopTracks(context.Background(), 10)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	client, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	_, err = client.GetSimilarTracks(context.Background(), "", "artist", 5)
	assert.Error(t, err)
}
