package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/eventreduce/internal/config"
	"github.com/vango-dev/eventreduce/internal/demo"
	"github.com/vango-dev/eventreduce/internal/errors"
	"github.com/vango-dev/eventreduce/pkg/devtools"
	"github.com/vango-dev/eventreduce/pkg/instrument"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

func serveCmd(configPath *string) *cobra.Command {
	var (
		port          int
		host          string
		archiveOnExit bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the devtools server",
		Long: `Start the devtools server with the demo counter model registered.

The server exposes the inspected cells over HTTP, streams change records
over a websocket and serves Prometheus metrics.

Examples:
  eventreduce serve
  eventreduce serve --port=8080
  eventreduce serve --archive-on-exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			// Apply command-line overrides
			if port > 0 {
				cfg.Devtools.Port = port
			}
			if host != "" {
				cfg.Devtools.Host = host
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, archiveOnExit)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().BoolVar(&archiveOnExit, "archive-on-exit", false, "Archive the recorded session on shutdown")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, archiveOnExit bool) error {
	restore, err := cfg.Apply(os.Stderr)
	if err != nil {
		return err
	}
	defer restore()
	logger := reactive.Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	var hooks []reactive.Hooks
	if cfg.Metrics.Enabled {
		hooks = append(hooks, instrument.NewMetrics(
			instrument.WithRegistry(registry),
			instrument.WithNamespace(cfg.Metrics.Namespace),
			instrument.WithSubsystem(cfg.Metrics.Subsystem),
		))
	}
	if cfg.Tracing.Enabled {
		hooks = append(hooks, instrument.NewTracing(
			instrument.WithTracerName(cfg.Tracing.TracerName),
			instrument.WithIncludeValues(cfg.Tracing.IncludeValues),
		))
	}
	if len(hooks) > 0 {
		defer reactive.SetHooks(instrument.Multi(hooks...))()
	}

	loop := devtools.NewLoop(cfg.Devtools.QueueSize, logger)
	cells := devtools.NewRegistry()
	devConfig := devtools.Config{
		PathPrefix:  cfg.Devtools.PathPrefix,
		CheckOrigin: checkOrigin(cfg.Devtools.AllowedOrigins),
		MaxChanges:  cfg.Devtools.MaxChanges,
		Logger:      logger,
	}
	if cfg.Metrics.Enabled {
		devConfig.Gatherer = registry
	}
	srv := devtools.NewServer(loop, cells, devConfig)

	httpServer := &http.Server{
		Addr:              cfg.DevtoolsAddress(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := loop.Run(gctx)
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		if _, err := srv.Start(gctx); err != nil {
			return err
		}
		return loop.Do(gctx, func() error {
			counter := demo.NewCounter("Counter")
			counter.Summary.Get()
			cells.AddModel(counter.Model)
			return nil
		})
	})

	g.Go(func() error {
		success("Devtools listening on %s", cfg.DevtoolsURL())
		info("cells:   %s/api/cells", cfg.DevtoolsURL())
		info("stream:  %s/ws", cfg.DevtoolsURL())
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.New("E143").Wrap(err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		srv.Hub().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if archiveOnExit {
		if aerr := archiveRecording(context.Background(), cfg, srv.Recorder().Snapshot()); aerr != nil {
			logger.Error("archive failed", slog.Any("error", aerr))
			if err == nil {
				err = aerr
			}
		}
	}
	return err
}

// checkOrigin accepts same-origin requests and the listed origins.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return devtools.SameOriginCheck
	}
	return func(r *http.Request) bool {
		if devtools.SameOriginCheck(r) {
			return true
		}
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}
