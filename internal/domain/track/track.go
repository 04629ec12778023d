// Package track provides catalog metadata for songs played in a room.
package track

import "time"

// Track is the catalog view of a song id.
// Rooms only store the id; metadata is looked up outside the room lock.
type Track struct {
	ID          string        // Catalog track ID
	Name        string        // Track name
	Artists     []string      // Artist names
	Album       string        // Album name
	AlbumArtURL string        // Album art URL
	Duration    time.Duration // Track duration
	URL         string        // Catalog URL
	Explicit    bool          // Explicit content flag
	Markets     []string      // Available markets
	IsPlayable  *bool         // Playable in the requested market (nil if market not specified)
}

// RequesterType represents who triggered a room operation.
type RequesterType string

const (
	RequesterTypeUser   RequesterType = "USER"
	RequesterTypeSystem RequesterType = "SYSTEM"
	RequesterTypeBGM    RequesterType = "BGM"
)

// IsAvailableInMarket checks if the track is available in the specified market.
func (t *Track) IsAvailableInMarket(market string) bool {
	// Relinked tracks report playability directly
	if t.IsPlayable != nil {
		return *t.IsPlayable
	}
	for _, m := range t.Markets {
		if m == market {
			return true
		}
	}
	return false
}

// DurationSeconds returns the duration as fractional seconds, the unit of room positions.
func (t *Track) DurationSeconds() float64 {
	return t.Duration.Seconds()
}

// PrimaryArtist returns the first credited artist, or an empty string.
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}
