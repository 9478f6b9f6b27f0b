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
	"gonum.org/v1/plot/vg"

	"github.com/starford/skilltally/internal/api"
	"github.com/starford/skilltally/internal/counter"
	"github.com/starford/skilltally/internal/ledger"
	"github.com/starford/skilltally/internal/mcpserver"
	"github.com/starford/skilltally/internal/report"
	"github.com/starford/skilltally/internal/scanner"
	"github.com/starford/skilltally/internal/sse"
	"github.com/starford/skilltally/internal/storage"
	"github.com/starford/skilltally/internal/tally"
	"github.com/starford/skilltally/internal/watcher"
)

// runtime holds the wired components for one command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *ledger.DB
	svc    *tally.Service
}

func (rt *runtime) Close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("close ledger", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout, stderr: os.Stderr, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build creates the logger, storage, tracker, and pipeline service.
func (a *application) build(extra ...tally.Option) (*runtime, error) {
	cfg := a.config

	// Logs go to stderr so stdout only carries the completion message.
	logger := slog.New(slog.NewJSONHandler(a.stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("notes_path", cfg.Notes.Path),
		slog.Bool("recursive", cfg.Notes.Recursive),
		slog.String("counts_path", cfg.Counts.Path),
		slog.String("report_path", cfg.Report.Path),
		slog.String("tracking", cfg.Tracking.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Notes.Path,
		storage.WithExtension(cfg.Notes.Extension),
		storage.WithRecursive(cfg.Notes.Recursive),
		storage.WithExclude(cfg.Notes.Exclude...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store}

	var tracker scanner.Tracker = scanner.NewMarkerTracker(store, cfg.Notes.ProcessedTag)
	opts := []tally.Option{
		tally.WithChart(cfg.Report.Path, cfg.Report.TopN),
		tally.WithLogger(logger),
	}
	if cfg.Tracking.Mode == TrackingLedger {
		db, err := ledger.Open(cfg.Tracking.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		rt.db = db
		tracker = ledger.NewTracker(db)
		opts = append(opts, tally.WithHistory(db))
	}

	sc := scanner.New(store, tracker, scanner.Options{
		IndexFile:    cfg.Notes.IndexNote,
		IgnoreSkills: cfg.Notes.IgnoreSkills,
		IncludeTag:   cfg.Notes.IncludeTag,
		RejectTag:    cfg.Notes.RejectTag,
		ProcessedTag: cfg.Notes.ProcessedTag,
	}, logger)

	renderer := report.NewRenderer(report.Options{
		Width:  vg.Length(cfg.Report.Width) * vg.Inch,
		Height: vg.Length(cfg.Report.Height) * vg.Inch,
		Title:  cfg.Report.Title,
	})

	rt.svc = tally.NewService(counter.NewStore(cfg.Counts.Path), sc, renderer, append(opts, extra...)...)
	return rt, nil
}

// Run executes the pipeline once and prints the completion message.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.build()
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.svc.Run(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.stdout, "Chart generated and saved as '%s'.\n", rt.svc.ChartPath())
	return err
}

// Top prints the persisted ranking as a terminal chart without scanning.
func Top(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.build()
	if err != nil {
		return err
	}
	defer rt.Close()

	entries, err := rt.svc.Counts(0)
	if err != nil {
		return err
	}
	chart := report.NewTextChart(40, rt.cfg.Report.Title)
	_, err = fmt.Fprint(app.stdout, chart.Render(entries, rt.cfg.Report.TopN))
	return err
}

// Watch runs the pipeline once and again whenever notes change, until a
// shutdown signal arrives.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.build()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := rt.svc.Run(ctx); err != nil {
		return err
	}
	err = watcher.Watch(ctx, rt.store, rt.cfg.Watch.Debounce, rt.logger, rt.rerun(nil))
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	return nil
}

// rerun returns a watcher callback that runs the pipeline. A failed run is
// logged and the watcher keeps going.
func (rt *runtime) rerun(onChange func([]string)) watcher.ChangeFunc {
	return func(ctx context.Context, paths []string) {
		if onChange != nil {
			onChange(paths)
		}
		rt.logger.Info("notes changed", slog.Int("paths", len(paths)))
		if _, err := rt.svc.Run(ctx); err != nil {
			rt.logger.Error("run failed", slog.String("error", err.Error()))
		}
	}
}

// Serve starts the HTTP API with live events and reruns the pipeline on
// note changes.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := app.build(tally.WithRunListener(broker.PublishRun))
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger

	if _, err := rt.svc.Run(ctx); err != nil {
		logger.Warn("initial run failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.svc.Counts(1); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := watcher.Watch(gCtx, rt.store, cfg.Watch.Debounce, logger, rt.rerun(broker.PublishChanges))
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
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
		// Stop the watcher as well when the shutdown came from a signal.
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

// ServeMCP serves the MCP tools over stdin/stdout.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.build()
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(rt.svc, app.version).ServeStdio()
}
