package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/erazemk/lostfound/internal/api"
	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/config"
	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/itemstore"
	"github.com/erazemk/lostfound/internal/live"
	"github.com/erazemk/lostfound/internal/metrics"
	"github.com/erazemk/lostfound/internal/store"
	"github.com/erazemk/lostfound/internal/web"
)

// purgeInterval is how often expired token revocations are removed.
const purgeInterval = time.Hour

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := loadConfig()
			if err != nil {
				return err
			}
			defer cleanup()
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("addr", "a", ":8080", "listen address")
	flags.String("remote-addr", "", "remote item collection address (host:port)")
	flags.String("remote-password", "", "remote item collection password")
	flags.Int("remote-db", 0, "remote database number")
	flags.String("remote-collection", "items", "remote collection name")
	bindFlags(v, flags, map[string]string{
		config.Addr:             "addr",
		config.RemoteAddr:       "remote-addr",
		config.RemotePassword:   "remote-password",
		config.RemoteDB:         "remote-db",
		config.RemoteCollection: "remote-collection",
	})
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.Logger

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	logger.Info().Str("path", cfg.DBPath).Msg("Database ready")

	backend := itemstore.Open(ctx, itemstore.OpenParams{
		Remote: cfg.Remote,
		DB:     database,
		Logger: logger,
	})
	defer backend.Close()
	localMode := backend.Kind == itemstore.KindLocal

	prom := metrics.NewPrometheus()
	prom.SetBackend(string(backend.Kind))

	items := board.New(board.BoardParams{
		Store:   backend,
		Logger:  logger,
		Metrics: prom,
	})

	sessions, err := auth.NewSessions(ctx, database)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}
	provider := auth.ProviderFor(backend.Kind, database, logger)

	hub := live.NewHub(live.HubParams{
		Feed:     backend,
		Upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		Logger:   logger,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(hubCtx); err != nil {
			logger.Error().Err(err).Msg("Live hub stopped")
		}
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	go purgeRevocations(hubCtx, database)

	apiRouter := api.NewRouter(api.RouterParams{
		Board:    items,
		Sessions: sessions,
		Provider: provider,
		Hub:      hub,
		Logger:   logger,
	})
	webRouter, err := web.NewRouter(web.RouterParams{
		DB:        database,
		Board:     items,
		Sessions:  sessions,
		Provider:  provider,
		Hub:       hub,
		LocalMode: localMode,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("GET /metrics", prom.Handler())
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(logger, prom)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("backend", string(backend.Kind)).
			Str("provider", provider.Name()).
			Msg("Server started")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	logger.Info().Msg("Server stopped, closing database")
	return nil
}

// purgeRevocations drops expired revocation records until ctx is done.
func purgeRevocations(ctx context.Context, database *sql.DB) {
	logger := log.With().Str("component", "sessions").Logger()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeExpiredRevocations(ctx, database, now)
			if err != nil {
				logger.Error().Err(err).Msg("Purging expired revocations failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("purged", n).Msg("Expired revocations purged")
			}
		}
	}
}
