// The detector command runs the duplication detection service: it restores
// the index from the last snapshot, consumes document events from Kafka,
// serves the ops HTTP API, and snapshots periodically until shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duplicheck/duplicheck/internal/detector"
	"github.com/duplicheck/duplicheck/internal/ingest"
	"github.com/duplicheck/duplicheck/internal/querycache"
	"github.com/duplicheck/duplicheck/internal/snapshot"
	"github.com/duplicheck/duplicheck/internal/tokenizer"
	"github.com/duplicheck/duplicheck/pkg/config"
	"github.com/duplicheck/duplicheck/pkg/health"
	"github.com/duplicheck/duplicheck/pkg/kafka"
	"github.com/duplicheck/duplicheck/pkg/logger"
	"github.com/duplicheck/duplicheck/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("detector exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting detector",
		"server_port", cfg.Server.Port,
		"snapshot_dir", cfg.Detector.SnapshotDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	store, err := snapshot.NewFileStore(cfg.Detector.SnapshotDir)
	if err != nil {
		return err
	}

	var pgRecorder *ingest.PostgresRecorder
	var recorder detector.StatusRecorder
	if cfg.Postgres.Host != "" {
		pgRecorder, err = ingest.OpenPostgres(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pgRecorder.Close()
		if err := pgRecorder.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing documents table: %w", err)
		}
		recorder = pgRecorder
	}

	tok := tokenizer.New(tokenizer.DefaultStopwords, cfg.Detector.MinSentenceTokens)
	engine := detector.New(cfg.Detector, tok, store, recorder, m)
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("restoring engine state: %w", err)
	}

	var cache *querycache.ReportCache
	if cfg.Redis.Addr != "" {
		cache, err = querycache.Connect(cfg.Redis, m)
		if err != nil {
			slog.Warn("redis unavailable, running without report cache", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) error {
		return engine.Validate()
	})
	if pgRecorder != nil {
		checker.Register("postgres", func(ctx context.Context) error {
			return health.Degraded(pgRecorder.Ping(ctx))
		})
	}
	if cache != nil {
		checker.Register("redis", func(ctx context.Context) error {
			return health.Degraded(cache.Ping(ctx))
		})
	}

	engine.StartSnapshotLoop(ctx, cfg.Detector.SnapshotInterval)

	handler := ingest.NewHandler(engine, cache.Invalidate)

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		ingestConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, handler.HandleIngest)
		removeConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentRemove, handler.HandleRemove)
		g.Go(func() error { return ingestConsumer.Start(gctx) })
		g.Go(func() error { return removeConsumer.Start(gctx) })
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newAPI(engine, cache, checker, *cfg).routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("api server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if saveErr := engine.ForceSave(saveCtx); saveErr != nil {
		slog.Error("final snapshot failed", "error", saveErr)
	}
	slog.Info("detector stopped")
	return err
}
