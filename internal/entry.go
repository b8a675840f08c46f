// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/loader"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/session"
	"github.com/starford/notegraph/internal/sse"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/watch"
)

// components is the set of services shared by every command.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	vault   *storage.FS
	session *session.Session
	svc     *noteservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(app *application) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// build wires storage, the note loader and the session. The session is
// returned closed.
func build(cfg *Config, logger *slog.Logger, notifier session.Notifier) (*components, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	vault, err := storage.NewFS(cfg.Vault.Path, storage.WithIgnore(cfg.Vault.Ignore...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	loaderOpts := []loader.Option{loader.WithLogger(logger)}
	key, err := cfg.Vault.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		loaderOpts = append(loaderOpts, loader.WithCipher(loader.AESGCM{}), loader.WithKey(key))
	}

	engine := index.MemoryFactory()
	if cfg.Search.SQLitePath != "" {
		engine = index.FileFactory(cfg.Search.SQLitePath)
	}

	sess := session.New(session.Options{
		VaultPath: vault.Root(),
		CacheDir:  cfg.Vault.CacheDir,
		Corpus:    vault,
		Reader:    loader.New(vault, loaderOpts...),
		Engine:    engine,
		Predict:   cfg.Prediction.Options(),
		Debounce:  cfg.Prediction.Debounce.Std(),
		Notifier:  notifier,
		Logger:    logger,
	})

	return &components{
		cfg:     cfg,
		logger:  logger,
		vault:   vault,
		session: sess,
		svc:     noteservice.NewService(sess, noteservice.WithMaxResults(cfg.Search.MaxResults)),
	}, nil
}

// startWatch runs the filesystem watcher in g and returns once its watches
// are in place, so that edits made while the session reads the corpus are
// seen. It returns immediately when watching is disabled.
func (rt *components) startWatch(ctx context.Context, g *errgroup.Group) error {
	if !rt.cfg.Watch.Enabled {
		return nil
	}
	w := watch.New(rt.vault, rt.session,
		watch.WithDelay(rt.cfg.Watch.Debounce.Std()),
		watch.WithLogger(rt.logger))
	g.Go(func() error {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})
	select {
	case <-w.Started():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// openWatched starts the watcher, then opens the session. On failure the
// group is stopped and its first error preferred.
func (rt *components) openWatched(ctx context.Context, g *errgroup.Group, cancel context.CancelFunc) error {
	err := rt.startWatch(ctx, g)
	if err == nil {
		if err = rt.session.Open(ctx); err != nil {
			err = fmt.Errorf("open session: %w", err)
		}
	}
	if err != nil {
		cancel()
		if werr := g.Wait(); werr != nil {
			return werr
		}
		return err
	}
	return nil
}

// reindexOnSignal runs a fresh full index of the vault for every value
// received on sig until ctx ends.
func reindexOnSignal(ctx context.Context, sig <-chan os.Signal, sess *session.Session, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-sig:
			logger.Info("Reindex requested", slog.String("signal", s.String()))
			if err := sess.Reindex(ctx); err != nil {
				logger.Error("Reindex failed", slog.String("error", err.Error()))
			}
		}
	}
}

// watchHangup wires SIGHUP to reindexOnSignal.
func watchHangup(ctx context.Context, g *errgroup.Group, sess *session.Session, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(hup)
		return reindexOnSignal(ctx, hup, sess, logger)
	})
}

// newRootRouter mounts the API under /api next to unauthenticated health and
// metrics endpoints.
func newRootRouter(rt *components, events http.Handler) chi.Router {
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
		if !rt.session.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"indexing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", api.NewRouter(rt.svc, rt.cfg.Auth.AuthEnabled(), rt.cfg.Auth.Token, events))
	return r
}

// Run starts the HTTP server, the session and the watcher, and blocks until
// a shutdown signal arrives or ctx is cancelled.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.Search.SQLitePath),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(sse.DefaultGraphThrottle)
	defer broker.Close()

	rt, err := build(cfg, logger, broker)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if err := rt.openWatched(gCtx, g, cancel); err != nil {
		return err
	}
	defer rt.session.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRootRouter(rt, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchHangup(gCtx, g, rt.session, logger)

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
		defer signal.Stop(quit)

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
		// Stop the watcher if the signal path ended the server.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// readyWaiter is a session.Notifier that signals once the first full index
// finishes, successfully or not.
type readyWaiter struct {
	done chan string
}

func newReadyWaiter() *readyWaiter {
	return &readyWaiter{done: make(chan string, 1)}
}

// Notify implements session.Notifier.
func (r *readyWaiter) Notify(kind, _ string) {
	if kind != session.NotifyIndexReady && kind != session.NotifyIndexError {
		return
	}
	select {
	case r.done <- kind:
	default:
	}
}

// RunIndex performs one full index of the vault, writes the resulting status
// as JSON to out and exits. The graph cache is persisted as a side effect.
func RunIndex(ctx context.Context, out io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app)

	waiter := newReadyWaiter()
	rt, err := build(app.config, logger, waiter)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := rt.session.Open(ctx); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer rt.session.Close()

	var kind string
	select {
	case kind = <-waiter.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	logger.Info("index finished",
		slog.String("result", kind),
		slog.Duration("took", time.Since(start)))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rt.session.Status()); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if kind == session.NotifyIndexError {
		return fmt.Errorf("index failed: %s", rt.session.Status().LastError)
	}
	return nil
}

// RunMCP serves the MCP tool surface over stdio. Logs go to the configured
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app)

	rt, err := build(app.config, logger, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if err := rt.openWatched(gCtx, g, cancel); err != nil {
		return err
	}
	defer rt.session.Close()

	watchHangup(gCtx, g, rt.session, logger)
	g.Go(func() error {
		defer cancel()
		logger.Info("Starting MCP server on stdio", slog.String("version", app.version))
		return mcpserver.New(rt.svc, app.version).ServeStdio(gCtx)
	})
	return g.Wait()
}
