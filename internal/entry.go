// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tgvault/internal/api"
	"github.com/starford/tgvault/internal/fetch"
	"github.com/starford/tgvault/internal/index"
	"github.com/starford/tgvault/internal/ingest"
	"github.com/starford/tgvault/internal/mcpserver"
	"github.com/starford/tgvault/internal/mirror"
	"github.com/starford/tgvault/internal/noteservice"
	"github.com/starford/tgvault/internal/sse"
	"github.com/starford/tgvault/internal/storage"
	"github.com/starford/tgvault/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

var errConfigRequired = errors.New("config is required")

// Run starts the bot, the index watcher and (when enabled) the read API.
// It blocks until ctx is cancelled or a termination signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	allowed, err := cfg.Telegram.AllowedChats()
	if err != nil {
		return fmt.Errorf("allowed chats: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("notes_path", cfg.Notes.Path),
		slog.String("index_path", cfg.Index.Path),
		slog.Bool("http_enabled", cfg.App.HTTP.Enabled),
		slog.Bool("mirror_enabled", cfg.Drive.Mirror().Enabled()),
		slog.Int("allowed_chats", len(allowed)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(sse.DefaultHeartbeat)
	defer broker.Close()

	m := mirror.New(ctx, cfg.Drive.Mirror(), mirror.WithLogger(logger))

	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		FileServer:  cfg.Telegram.FileServer,
	}, logger)
	if err != nil {
		return fmt.Errorf("init telegram: %w", err)
	}

	fetcher := fetch.New(bot, store.AssetsPath(),
		fetch.WithTimeout(cfg.Telegram.DownloadTimeout),
		fetch.WithLogger(logger))

	svc := ingest.New(bot, fetcher, store, m,
		ingest.WithAllowedChats(allowed),
		ingest.WithIndexer(db),
		ingest.WithPublisher(broker),
		ingest.WithLogger(logger))

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled {
		httpServer = &http.Server{
			Addr:              cfg.App.HTTP.Address(),
			Handler:           newHTTPHandler(cfg, store, db, broker),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Telegram bot")
		if err := bot.Run(gCtx, svc.Handle); err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := index.Watch(gCtx, db, store, store.Root(), logger, broker.PublishNoteEvent)
		if err != nil {
			logger.Warn("watcher disabled", slog.String("error", err.Error()))
		}
		return nil
	})

	if httpServer != nil {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Cancels gCtx on a signal so the bot stops polling.
	sigCtx, stop := signal.NotifyContext(gCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g.Go(func() error {
		<-sigCtx.Done()
		logger.Info("Shutting down...")

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}
		if gCtx.Err() == nil {
			return errShutdown
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped successfully")
	return nil
}

// errShutdown cancels the group when a signal arrives; it is not reported.
var errShutdown = errors.New("shutdown requested")

// RunMCP serves the read-only MCP tools over stdio. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	store, db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(ctx, db, store, store.Root(), logger, nil); err != nil {
			logger.Warn("watcher disabled", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(noteservice.NewService(store, db), app.version)
	logger.Info("Serving MCP over stdio", slog.String("notes_path", store.Root()))
	return srv.ServeStdio()
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore prepares the notes tree and the catalogue, then reconciles them.
func openStore(cfg *Config, logger *slog.Logger) (*storage.FS, *index.DB, error) {
	store, err := storage.NewFS(cfg.Notes.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	if err := store.EnsureDirectories(); err != nil {
		return nil, nil, fmt.Errorf("prepare notes directory: %w", err)
	}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, nil
}

func newHTTPHandler(cfg *Config, store *storage.FS, db *index.DB, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	health := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	svc := noteservice.NewService(store, db)
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, store.Root()))
	return r
}
