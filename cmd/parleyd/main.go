package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/parley/internal/chat"
	"github.com/eldtechnologies/parley/internal/config"
	"github.com/eldtechnologies/parley/internal/directory"
	"github.com/eldtechnologies/parley/internal/ops"
	"github.com/eldtechnologies/parley/internal/queue"
	"github.com/eldtechnologies/parley/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize directory backend
	var dir directory.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := directory.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dir = pgStore
		logger.Info().Msg("directory backed by PostgreSQL")
	} else {
		sqliteStore, err := directory.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dir = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("directory backed by SQLite")
	}
	defer dir.Close()

	// Initialize offline queue backend
	var q queue.Store
	if cfg.RedisURL != "" {
		redisQueue, err := queue.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		q = redisQueue
		logger.Info().Msg("offline queue backed by Redis")
	} else {
		q = queue.NewMemoryStore()
		logger.Info().Msg("offline queue in memory")
	}
	defer q.Close()

	// Chat core and websocket front end
	chatServer := chat.New(logger, dir, q)
	wsServer := ws.NewServer(logger, chatServer)

	chatMux := http.NewServeMux()
	chatMux.Handle("/ws", wsServer)

	chatSrv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     chatMux,
		ReadTimeout: 0, // websocket connections are long-lived
		IdleTimeout: 0,
	}

	// Ops listener: health, metrics, stats
	opsHandler := ops.NewHandler(dir, q, chatServer.Sessions())
	opsSrv := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      ops.NewRouter(logger, opsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start servers in goroutines
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("env", cfg.Env).
			Msg("starting parley chat server")

		if err := chatSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("chat server failed to start")
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.OpsAddr).Msg("starting ops server")

		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ops server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := chatSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("chat server forced to shutdown")
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
