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

	"github.com/starford/sowilo/internal/api"
	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/finder"
	"github.com/starford/sowilo/internal/listing"
	"github.com/starford/sowilo/internal/mcpserver"
	"github.com/starford/sowilo/internal/metrics"
	"github.com/starford/sowilo/internal/opener"
	"github.com/starford/sowilo/internal/sse"
	"github.com/starford/sowilo/internal/walker"
)

// stack bundles the components shared by every host.
type stack struct {
	logger *slog.Logger
	cache  *listing.Cache
	finder *finder.Finder
	opener *opener.Command
}

// hooks lets the HTTP host observe the finder.
type hooks struct {
	metrics *metrics.Metrics
	broker  *sse.Broker
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger(defaultOutput io.Writer, minLevel slog.Level) *slog.Logger {
	out := a.logOutput
	if out == nil {
		out = defaultOutput
	}
	level := a.config.App.LogLevel
	if level < minLevel {
		level = minLevel
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}

func (a *application) newStack(logger *slog.Logger, h hooks) (*stack, error) {
	cfg := a.config

	root, err := cfg.Finder.ResolveRoot()
	if err != nil {
		return nil, err
	}

	w := walker.New(walker.Options{
		Workers:       cfg.Finder.Workers,
		ShowHidden:    cfg.Finder.ShowHidden,
		Exclude:       cfg.Finder.Exclude,
		RespectIgnore: cfg.Finder.RespectGitignore,
	}, logger)

	cacheOpts := []listing.Option{listing.WithLogger(logger)}
	finderOpts := []finder.Option{
		finder.WithLogger(logger),
		finder.WithWorkers(cfg.Finder.Workers),
	}
	if h.metrics != nil {
		cacheOpts = append(cacheOpts, listing.OnHit(h.metrics.RecordCacheHit))
		finderOpts = append(finderOpts, finder.WithMetrics(h.metrics))
	}
	if h.metrics != nil || h.broker != nil {
		cacheOpts = append(cacheOpts, listing.OnPopulate(func(l listing.Listing) {
			if h.metrics != nil {
				h.metrics.RecordWalk(l.Recursive, len(l.Entries), l.Took)
			}
			if h.broker != nil {
				h.broker.PublishListing(sse.ListingEvent{
					Dir:       l.Dir,
					Recursive: l.Recursive,
					Entries:   len(l.Entries),
					TookMS:    millis(l.Took),
				})
			}
		}))
	}
	if h.broker != nil {
		finderOpts = append(finderOpts, finder.OnQuery(func(e finder.QueryEvent) {
			ev := sse.QueryEvent{
				ID:      e.ID,
				Query:   e.Raw,
				Dir:     e.Dir,
				Results: e.Results,
				TookMS:  millis(e.Took),
			}
			if e.Err != nil {
				ev.Error = e.Err.Error()
			}
			h.broker.PublishQuery(ev)
		}))
	}

	cache := listing.New(w, cacheOpts...)
	f, err := finder.New(root, cache, finderOpts...)
	if err != nil {
		return nil, fmt.Errorf("init finder: %w", err)
	}

	op, err := opener.NewCommand(cfg.Finder.Opener, logger)
	if err != nil {
		return nil, fmt.Errorf("init opener: %w", err)
	}

	return &stack{logger: logger, cache: cache, finder: f, opener: op}, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Run starts the HTTP host with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	m := metrics.New()
	broker := sse.NewBroker(250*time.Millisecond, m.RecordSSEEvent)
	defer broker.Close()

	st, err := app.newStack(logger, hooks{metrics: m, broker: broker})
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("root", st.finder.Root()),
		slog.Int("workers", cfg.Finder.Workers),
		slog.Bool("show_hidden", cfg.Finder.ShowHidden),
		slog.Bool("respect_gitignore", cfg.Finder.RespectGitignore),
		slog.String("log_level", cfg.App.LogLevel.String()))

	h := api.NewHandler(st.finder, st.opener, st.cache)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	// Health check and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if info, err := os.Stat(st.finder.Root()); err != nil || !info.IsDir() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"root unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

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

		// SSE streams only end when their subscriber channel closes.
		broker.Close()

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

// RunMCP serves the finder tools over MCP stdio. Logs go to stderr so
// stdout stays reserved for the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	logger := app.newLogger(os.Stderr, app.config.App.LogLevel)
	slog.SetDefault(logger)

	st, err := app.newStack(logger, hooks{})
	if err != nil {
		return err
	}

	logger.Info("MCP server starting", slog.String("root", st.finder.Root()))
	srv := mcpserver.New(st.finder, st.opener, app.version)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp: serve: %w", err)
	}
	return nil
}

// Query runs a single query and, when open is positive, activates the
// open-th item (1-based). Logging below warn level is suppressed.
func Query(ctx context.Context, raw string, open int, opts ...Option) (*finder.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}

	logger := app.newLogger(os.Stderr, slog.LevelWarn)
	st, err := app.newStack(logger, hooks{})
	if err != nil {
		return nil, err
	}

	// An unreadable directory degrades to no matches, logged on stderr.
	res := st.finder.Query(ctx, raw)
	if open <= 0 {
		return res, nil
	}
	if open > len(res.Items) {
		return res, fmt.Errorf("open %d of %d items: %w", open, len(res.Items), apperr.ErrNoSuchItem)
	}

	item := res.Items[open-1]
	if _, err := st.finder.Perform(ctx, item.Actions.Activate, st.opener); err != nil {
		return res, fmt.Errorf("open %s: %w", item.Path, err)
	}
	return res, nil
}
