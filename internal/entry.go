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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/larder/internal/api"
	"github.com/starford/larder/internal/importer"
	"github.com/starford/larder/internal/mcpserver"
	"github.com/starford/larder/internal/sse"
	"github.com/starford/larder/internal/store"
)

// setup applies opts, installs the JSON logger and opens the store. The
// returned close func releases the store when Run opened it.
func setup(opts []Option) (*application, *slog.Logger, store.Store, func(), error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if app.store != nil {
		return app, logger, app.store, func() {}, nil
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("init store: %w", err)
	}
	return app, logger, st, func() { _ = st.Close() }, nil
}

// Run starts the HTTP API, the event stream and (when enabled) the import
// inbox watcher, and blocks until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, st, closeStore, err := setup(opts)
	if err != nil {
		return err
	}
	defer closeStore()
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Bool("import_enabled", cfg.Import.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker. Streams are scoped to the user the auth middleware resolved.
	broker := sse.NewBroker(2*time.Second, func(r *http.Request) string {
		return api.UserFromContext(r.Context())
	})
	defer broker.Close()

	svc := newServices(cfg, st, logger, broker.PublishDocumentEvent)
	apiRouter := api.NewRouter(svc.apiDeps(broker), cfg.Auth.Settings(), broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", api.Health)
	r.Get("/health/ready", api.Health)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the import inbox watcher with SSE callback.
	if cfg.Import.Enabled {
		inbox, err := importer.OpenInbox(cfg.Import.Inbox)
		if err != nil {
			return fmt.Errorf("open inbox: %w", err)
		}
		g.Go(func() error {
			err := importer.Watch(gCtx, inbox, svc.importer, cfg.Import.UserID, logger, func(_ string, sum importer.Summary) {
				broker.PublishImport(sum.SuccessCount)
			})
			if err != nil {
				logger.Error("inbox watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Ends open event streams; Shutdown would otherwise wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server is asked to stop, so the
// inbox watcher exits with it.
var errShutdown = errors.New("shutdown")

// RunImport imports one JSON, YAML or Markdown file as userID and returns the
// per-record summary. An empty userID falls back to import.user_id.
func RunImport(ctx context.Context, path, userID string, opts ...Option) (importer.Summary, error) {
	app, logger, st, closeStore, err := setup(opts)
	if err != nil {
		return importer.Summary{}, err
	}
	defer closeStore()

	if userID == "" {
		userID = app.config.Import.UserID
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return importer.Summary{}, fmt.Errorf("read %s: %w", path, err)
	}
	recs, err := importer.Decode(filepath.Base(path), data)
	if err != nil {
		return importer.Summary{}, err
	}
	svc := newServices(app.config, st, logger, nil)
	return svc.importer.Import(ctx, userID, recs), nil
}

// RunMCP serves the MCP tools on stdin/stdout as userID until the client
// disconnects. Logs must not go to stdout here; pass WithLogOutput(os.Stderr).
func RunMCP(ctx context.Context, userID string, opts ...Option) error {
	app, logger, st, closeStore, err := setup(opts)
	if err != nil {
		return err
	}
	defer closeStore()

	if userID == "" {
		userID = app.config.Auth.DefaultUser
	}
	svc := newServices(app.config, st, logger, nil)
	srv := mcpserver.New(ctx, svc.mcpDeps(app.config, userID, logger))
	defer srv.Close()

	logger.Info("MCP server starting", slog.String("user", userID))
	return srv.ServeStdio()
}

// IssueToken signs a development JWT for userID with auth.jwt_secret.
func IssueToken(cfg *Config, userID string, ttl time.Duration) (string, error) {
	if cfg.Auth.JWTSecret == "" {
		return "", errors.New("auth.jwt_secret is empty")
	}
	return api.IssueToken(userID, cfg.Auth.JWTSecret, ttl)
}
