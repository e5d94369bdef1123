// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/live"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/similarity"
	"github.com/starford/ansuz/internal/vault"
	"github.com/starford/ansuz/internal/ws"
)

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func openCache(cfg *Config, logger *slog.Logger) *cache.Store {
	if !cfg.Cache.Enabled {
		return nil
	}
	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		// Degrade to always-full-parse rather than failing startup.
		logger.Warn("cache unavailable, falling back to full parsing",
			slog.String("path", cfg.Cache.Path),
			slog.String("error", err.Error()))
		return nil
	}
	return store
}

func viewerDefaults(cfg *Config) similarity.Settings {
	return similarity.Settings{
		Enabled:  cfg.Similarity.Enabled,
		MinScore: cfg.Similarity.MinScore,
		TopK:     cfg.Similarity.TopK,
	}
}

// Run starts the live-graph service: initial scan, filesystem watcher,
// WebSocket hub, and HTTP server, wired through one errgroup.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
		slog.Bool("similarity_enabled", cfg.Similarity.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	store, err := vault.NewFS(cfg.Vault.Path, cfg.Vault.IgnoreDirs)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}

	metaCache := openCache(cfg, logger)
	if metaCache != nil {
		defer metaCache.Close()
	}

	engine := similarity.NewEngine(cfg.Similarity.Enabled, cfg.Similarity.MaxNotes)
	defaults := viewerDefaults(cfg)

	hub := ws.NewHub(engine, defaults, logger)
	defer hub.Close()

	coord := live.New(store, metaCache, engine, cfg.Vault.Debounce(), logger, func(snap *graph.Snapshot) {
		hub.Publish(snap)
	})

	if err := coord.Scan(ctx); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	h := api.NewHandler(coord, engine, hub, defaults)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if coord.Snapshot() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"scanning"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(h))
	r.Get("/ws", hub.ServeHTTP)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watcher loop: drives incremental reindexing and snapshot publishes.
	g.Go(func() error {
		return coord.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP scans the vault once and serves the MCP tools over stdio. The
// watcher keeps the snapshot current for the lifetime of the session.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// stdio transport owns stdout; keep logs on stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := vault.NewFS(cfg.Vault.Path, cfg.Vault.IgnoreDirs)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}

	metaCache := openCache(cfg, logger)
	if metaCache != nil {
		defer metaCache.Close()
	}

	engine := similarity.NewEngine(cfg.Similarity.Enabled, cfg.Similarity.MaxNotes)
	coord := live.New(store, metaCache, engine, cfg.Vault.Debounce(), logger, nil)

	if err := coord.Scan(ctx); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gCtx)
	})
	g.Go(func() error {
		srv := mcpserver.New(coord, store, engine, viewerDefaults(cfg))
		return srv.ServeStdio()
	})
	return g.Wait()
}
