// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Log      LogConfig               `yaml:"log"`
	Room     RoomConfig              `yaml:"room"`
	VoteSkip VoteSkipConfig          `yaml:"vote_skip"`
	Storage  StorageConfig           `yaml:"storage"`
	Autoplay AutoplayConfig          `yaml:"autoplay"`
	BGM      BGMConfig               `yaml:"bgm"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr              string        `yaml:"addr" default:":8080"`
	ShutdownTimeoutMs int           `yaml:"shutdown_timeout_ms" default:"10000" validate:"gte=0"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	Hooks             HooksConfig   `yaml:"hooks"`
	WebSocket         WebSocketConf `yaml:"websocket"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// WebSocketConf represents WebSocket transport configuration.
type WebSocketConf struct {
	PingIntervalMs int `yaml:"ping_interval_ms" default:"30000" validate:"gte=1000"`
	WriteTimeoutMs int `yaml:"write_timeout_ms" default:"5000" validate:"gte=100"`
}

// LogConfig represents logger configuration. Command-line flags take precedence.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// RoomConfig represents room coordination configuration.
type RoomConfig struct {
	DefaultMaxMembers int `yaml:"default_max_members" default:"50" validate:"gte=1"`
	MaxMembersLimit   int `yaml:"max_members_limit" default:"500" validate:"gte=1"`
	AcquireTimeoutMs  int `yaml:"acquire_timeout_ms" default:"2000" validate:"gte=1"`
}

// VoteSkipConfig represents skip-vote quorum configuration.
type VoteSkipConfig struct {
	Ratio float64 `yaml:"ratio" default:"0.5" validate:"gt=0,lte=1"`
}

// StorageConfig selects and configures the room document store.
type StorageConfig struct {
	Driver         string `yaml:"driver" default:"memory" validate:"oneof=memory postgres valkey sqlite"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	ValkeyAddr     string `yaml:"valkey_addr"`
	ValkeyPassword string `yaml:"valkey_password"`
	SQLitePath     string `yaml:"sqlite_path" default:"data/rooms.db"`
	KeyPrefix      string `yaml:"key_prefix" default:"19room:"`
	SaveTimeoutMs  int    `yaml:"save_timeout_ms" default:"3000" validate:"gte=1"`
}

// AutoplayConfig represents the song-completion watcher configuration.
type AutoplayConfig struct {
	Enabled           bool `yaml:"enabled"`
	TickMs            int  `yaml:"tick_ms" default:"1000" validate:"gte=100"`
	CompletionGraceMs int  `yaml:"completion_grace_ms" default:"1500" validate:"gte=0"`
	StartIdleRooms    bool `yaml:"start_idle_rooms"`
	LookupTimeoutMs   int  `yaml:"lookup_timeout_ms" default:"5000" validate:"gte=100"`
	LookupRetryMs     int  `yaml:"lookup_retry_ms" default:"60000" validate:"gte=0"`
}

// BGMConfig represents background music configuration.
type BGMConfig struct {
	Enabled        bool             `yaml:"enabled"`
	CandidateCount int              `yaml:"candidate_count" default:"5" validate:"gte=1"`
	SeedTrackCount int              `yaml:"seed_track_count" default:"3" validate:"gte=0"`
	Providers      []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single BGM provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages for rejection codes.
type MessagesConfig struct {
	DefaultError          string `yaml:"default_error" default:"request rejected"`
	NotAMember            string `yaml:"not_a_member" default:"join the room first"`
	HostOnly              string `yaml:"host_only" default:"only the host can control playback"`
	OwnerOnly             string `yaml:"owner_only" default:"only the room owner can change the mode"`
	NotYourTurn           string `yaml:"not_your_turn" default:"wait for your turn as DJ"`
	DuplicateSong         string `yaml:"duplicate_song" default:"that song is already queued"`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"that song is too long or too short"`
	MarketRestriction     string `yaml:"market_restriction" default:"that song is not available here"`
	QueueFull             string `yaml:"queue_full" default:"the queue is full"`
}

// SpotifyConfig represents Spotify catalog configuration.
// The catalog is optional; without credentials no metadata lookups happen.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.BGM.Providers {
			if c.BGM.Providers[i].Type == "lastfm" {
				if c.BGM.Providers[i].Settings == nil {
					c.BGM.Providers[i].Settings = make(map[string]any)
				}
				c.BGM.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("STORAGE_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("STORAGE_VALKEY_ADDR"); v != "" {
		c.Storage.ValkeyAddr = v
	}
	if v := os.Getenv("STORAGE_VALKEY_PASSWORD"); v != "" {
		c.Storage.ValkeyPassword = v
	}
	if v := os.Getenv("ROOM_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ROOM_VOTE_SKIP_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.VoteSkip.Ratio = f
		}
	}
}

// GetMessage returns the message for the given rejection code.
func (c *Config) GetMessage(code string) string {
	var msg string
	switch code {
	case "not_a_member":
		msg = c.Messages.NotAMember
	case "host_only":
		msg = c.Messages.HostOnly
	case "owner_only":
		msg = c.Messages.OwnerOnly
	case "not_your_turn":
		msg = c.Messages.NotYourTurn
	case "duplicate_song":
		msg = c.Messages.DuplicateSong
	case "duration_limit_exceeded":
		msg = c.Messages.DurationLimitExceeded
	case "market_restriction":
		msg = c.Messages.MarketRestriction
	case "queue_full":
		msg = c.Messages.QueueFull
	}
	if msg == "" {
		return c.Messages.DefaultError
	}
	return msg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Room.DefaultMaxMembers > c.Room.MaxMembersLimit {
		return errors.Newf("room.default_max_members (%d) exceeds room.max_members_limit (%d)",
			c.Room.DefaultMaxMembers, c.Room.MaxMembersLimit)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.BGM.Enabled {
		if len(c.BGM.Providers) == 0 {
			return errors.New("bgm.enabled requires at least one provider")
		}
		if !c.HasCatalog() {
			return errors.New("bgm.enabled requires spotify credentials")
		}
	}

	return nil
}

// validateStorage checks that the selected driver has what it needs.
func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	case "valkey":
		if c.Storage.ValkeyAddr == "" {
			return errors.New("storage.valkey_addr is required for the valkey driver")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	}
	return nil
}

// HasCatalog reports whether Spotify credentials are configured.
func (c *Config) HasCatalog() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// AcquireTimeout returns the bounded wait for a room's serialization slot.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Room.AcquireTimeoutMs) * time.Millisecond
}

// SaveTimeout returns the deadline for a single store write.
func (c *Config) SaveTimeout() time.Duration {
	return time.Duration(c.Storage.SaveTimeoutMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutMs) * time.Millisecond
}
