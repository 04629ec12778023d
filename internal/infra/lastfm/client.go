// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Similar-track lookups are cached per artist and title
	cacheMu      sync.RWMutex
	similarCache map[string][]TrackRef
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, defaults to the public endpoint
}

// TrackRef names a track by title and artist.
type TrackRef struct {
	Name   string
	Artist string
}

// trackList is the shape shared by track.getSimilar and chart.getTopTracks.
type trackList struct {
	Track []struct {
		Name   string `json:"name"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"track"`
}

func (l trackList) refs() []TrackRef {
	out := make([]TrackRef, 0, len(l.Track))
	for _, t := range l.Track {
		out = append(out, TrackRef{Name: t.Name, Artist: t.Artist.Name})
	}
	return out
}

type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		similarCache: make(map[string][]TrackRef),
	}, nil
}

// GetSimilarTracks retrieves tracks similar to the given one.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]TrackRef, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit)

	cacheKey := artistName + "\x00" + trackName + "\x00" + strconv.Itoa(limit)
	c.cacheMu.RLock()
	cached, ok := c.similarCache[cacheKey]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("lastfm: using cached similar tracks for %s - %s", artistName, trackName)
		return cached, nil
	}

	params := url.Values{}
	params.Set("method", "track.getSimilar")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocorrect", "1")

	var response struct {
		SimilarTracks trackList `json:"similartracks"`
	}
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	tracks := response.SimilarTracks.refs()

	c.cacheMu.Lock()
	c.similarCache[cacheKey] = tracks
	c.cacheMu.Unlock()
	return tracks, nil
}

// GetChartTopTracks retrieves global top tracks from Last.fm charts.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TrackRef, error) {
	params := url.Values{}
	params.Set("method", "chart.getTopTracks")
	params.Set("limit", strconv.Itoa(clampLimit(limit)))

	var response struct {
		Tracks trackList `json:"tracks"`
	}
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	return response.Tracks.refs(), nil
}

// get calls the API and decodes a successful response into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, 100)
}
