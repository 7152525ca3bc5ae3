package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cache "github.com/krisalay/forecast-cache"
	"github.com/krisalay/forecast-cache/calllog"
	"github.com/krisalay/forecast-cache/config"
	"github.com/krisalay/forecast-cache/engine"
	"github.com/krisalay/forecast-cache/expiration"
	"github.com/krisalay/forecast-cache/forecastdb"
	"github.com/krisalay/forecast-cache/gateway"
	"github.com/krisalay/forecast-cache/logging"
	"github.com/krisalay/forecast-cache/metrics"
	"github.com/krisalay/forecast-cache/ratelimit"
	"github.com/krisalay/forecast-cache/sweeper"
	"github.com/krisalay/forecast-cache/types"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var configPath, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and the background sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			log, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (optional)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides ADDR")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	clock := clockwork.NewRealClock()

	// ---------------- Metrics ----------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewPrometheus(reg)
	if err != nil {
		return err
	}

	// ---------------- Cache ----------------
	eng := engine.NewCacheEngine(
		&expiration.Fixed{FreshFor: cfg.CacheTime(), DeleteAfter: cfg.DeleteCacheTime()},
		clock,
		cfg.QueryWait(),
		cfg.ComputeTimeout(),
		m,
		log.Named("cache"),
	)
	coord := cache.NewCoordinator(cfg.Shards, eng)

	limiter, err := ratelimit.FromConfig(cfg, clock, m)
	if err != nil {
		return err
	}

	sw := sweeper.New(cfg.SweepInterval(), clock, log.Named("sweeper"), coord, limiter)

	// ---------------- Database ----------------
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = forecastdb.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
	} else if len(cfg.Routes) > 0 {
		return fmt.Errorf("%w: routes are configured but DATABASE_URL is empty", types.ErrConfigInvalid)
	}

	// ---------------- Call log ----------------
	var sink calllog.Sink = calllog.LogSink{Logger: log.Named("calllog")}
	if pool != nil {
		pg := calllog.PGSink{Pool: pool}
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("call log schema: %w", err)
		}
		sink = pg
	}
	recorder := calllog.NewAsyncRecorder(sink, cfg.CallLogBuffer, log.Named("calllog"))
	defer recorder.Close()

	// ---------------- Gateway ----------------
	gw := gateway.New(coord, limiter, recorder, gateway.Options{
		Clock:      clock,
		Logger:     log.Named("gateway"),
		TrustProxy: cfg.TrustProxy,
		Gatherer:   reg,
	})
	if pool != nil {
		src := forecastdb.NewSource(pool)
		for _, rc := range cfg.Routes {
			gw.Handle(gateway.Route{
				Pattern: rc.Pattern,
				Tier:    rc.Tier,
				Compute: func(r *http.Request) (types.ComputeFunc, error) {
					return src.Compute(rc, r)
				},
			})
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting",
		zap.String("addr", cfg.Addr),
		zap.Int("routes", len(cfg.Routes)),
		zap.Duration("query_wait", cfg.QueryWait()),
		zap.Duration("cache_time", cfg.CacheTime()),
		zap.Duration("delete_cache_time", cfg.DeleteCacheTime()),
		zap.Int("calls_per_hour", cfg.CallsPerHour),
		zap.Int("slow_calls_per_minute", cfg.SlowCallsPerMinute),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sw.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
