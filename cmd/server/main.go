// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/19room/internal/api/connect"
	"github.com/osa030/19room/internal/api/ws"
	"github.com/osa030/19room/internal/app/autoplay"
	"github.com/osa030/19room/internal/app/bgm"
	"github.com/osa030/19room/internal/app/coordinator"
	"github.com/osa030/19room/internal/app/filter"
	"github.com/osa030/19room/internal/app/notification"
	"github.com/osa030/19room/internal/app/persist"
	"github.com/osa030/19room/internal/app/presence"
	"github.com/osa030/19room/internal/infra/config"
	"github.com/osa030/19room/internal/infra/logger"
	"github.com/osa030/19room/internal/infra/spotify"
	"github.com/osa030/19room/internal/infra/store"
)

var (
	app        = kingpin.New("19room-server", "19room listening-room server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	// Command-line flags take precedence over the log section
	loggerConfig := logger.Config{Output: cfg.Log.Output, Level: cfg.Log.Level}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()
	zlog.Info().Msgf("Loaded config from %s", *configPath)

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		_ = closeLog()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	guards, err := filter.NewChainFromConfig(cfg.Filters)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	var (
		roomCatalog apiconnect.Catalog
		playCatalog autoplay.Catalog
		spotifyCli  *spotify.Client
	)
	if cfg.HasCatalog() {
		spotifyCli, err = spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		roomCatalog = spotifyCli
		playCatalog = spotifyCli
	} else {
		zlog.Info().Msg("Spotify not configured, catalog lookups disabled")
	}

	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "failed to open room store")
	}
	writer := persist.NewWriter(st, cfg.SaveTimeout())
	zlog.Info().Msgf("Room store ready: driver=%s", cfg.Storage.Driver)

	notifier := notification.NewManager()
	rooms := coordinator.New(coordinator.Options{
		AcquireTimeout:    cfg.AcquireTimeout(),
		VoteSkipRatio:     cfg.VoteSkip.Ratio,
		DefaultMaxMembers: cfg.Room.DefaultMaxMembers,
		MaxMembersLimit:   cfg.Room.MaxMembersLimit,
		Publisher:         notifier,
		Persister:         writer,
		Loader:            writer,
		Guard:             guards,
	})
	tracker := presence.NewTracker(func(ctx context.Context, roomID, userID string) error {
		_, err := rooms.LeaveRoom(ctx, roomID, userID)
		return err
	}, 2*cfg.AcquireTimeout())

	if cfg.Autoplay.Enabled {
		var candidates autoplay.Candidates
		if cfg.BGM.Enabled {
			chain, err := bgm.NewProviderChainFromConfig(cfg.BGM, spotifyCli)
			if err != nil {
				return errors.Wrap(err, "failed to create BGM provider chain")
			}
			candidates = chain
		}
		watcher := autoplay.New(rooms, playCatalog, candidates, autoplay.Options{
			Tick:             time.Duration(cfg.Autoplay.TickMs) * time.Millisecond,
			Grace:            time.Duration(cfg.Autoplay.CompletionGraceMs) * time.Millisecond,
			CandidateCount:   cfg.BGM.CandidateCount,
			SeedTrackCount:   cfg.BGM.SeedTrackCount,
			StartIdleRooms:   cfg.Autoplay.StartIdleRooms,
			LookupTimeout:    time.Duration(cfg.Autoplay.LookupTimeoutMs) * time.Millisecond,
			RetryFailedAfter: time.Duration(cfg.Autoplay.LookupRetryMs) * time.Millisecond,
		})
		go watcher.Run(ctx)
		zlog.Info().Msgf("Autoplay started: tick=%dms bgm=%v", cfg.Autoplay.TickMs, cfg.BGM.Enabled)
	}

	mux := http.NewServeMux()
	roomService := apiconnect.NewRoomService(rooms, notifier, tracker, roomCatalog, cfg)
	mux.Handle(apiconnect.NewRoomServiceHandler(roomService))
	ws.NewHandler(rooms, notifier, tracker, ws.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PingInterval:   time.Duration(cfg.Server.WebSocket.PingIntervalMs) * time.Millisecond,
		WriteTimeout:   time.Duration(cfg.Server.WebSocket.WriteTimeoutMs) * time.Millisecond,
	}).Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok rooms=%d\n", rooms.RoomCount())
	})

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Give the listener a moment before running hooks
	time.Sleep(100 * time.Millisecond)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	// Members stay in their rooms across a restart; end streams, then stop.
	cancel()
	tracker.Close()
	notifier.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	if err := writer.Close(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to flush room store: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return runErr
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for name, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", name, f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))
	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
