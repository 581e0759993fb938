package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sellinios/aethra/internal/adapter/kafka"
	"github.com/sellinios/aethra/internal/adapter/nomads"
	"github.com/sellinios/aethra/internal/adapter/redislock"
	"github.com/sellinios/aethra/internal/config"
	"github.com/sellinios/aethra/internal/observability"
	"github.com/sellinios/aethra/internal/pipeline"
	"github.com/sellinios/aethra/internal/store"
)

// app holds the configuration and lazily opened backends shared by the
// subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	db      *store.DB
	closers []func() error
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "fetch":
		return a.fetch(ctx, args)
	case "filter":
		return a.filter(ctx, args)
	case "import":
		return a.importFiles(ctx, args)
	case "cleanup":
		return a.cleanup(ctx, args)
	case "run":
		return a.run(ctx, args)
	case "serve":
		return a.serve(ctx, args)
	case "params":
		return a.params(ctx, args)
	case "places":
		return a.places(ctx, args)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// store opens and migrates the database on first use.
func (a *app) store() (*store.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := store.Open(a.cfg.DatabaseDriver, a.cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}

func (a *app) source() *nomads.Client {
	return nomads.NewClient(a.cfg.BaseURL, a.cfg.DownloadTimeout, a.logger)
}

func (a *app) resolver() *pipeline.Resolver {
	return pipeline.NewResolver(a.source(), pipeline.ResolverConfig{
		Cycles:   a.cfg.Cycles,
		Probe:    a.cfg.ProbeRemote,
		Lookback: a.cfg.LookbackCycles,
		MaxHours: a.cfg.MaxHours,
	}, a.logger)
}

func (a *app) fetcher() *pipeline.Fetcher {
	return pipeline.NewFetcher(a.source(), pipeline.FetcherConfig{
		DataDir:    a.cfg.DataDir,
		Workers:    a.cfg.DownloadWorkers,
		MaxRetries: a.cfg.DownloadMaxRetries,
		DryRun:     a.cfg.DryRun,
	}, a.logger, a.metrics)
}

func (a *app) filterStage(db *store.DB) *pipeline.Filter {
	return pipeline.NewFilter(a.cfg.DataDir, store.NewParameters(db), a.logger, a.metrics)
}

func (a *app) importer(db *store.DB, keepFiles bool) *pipeline.Importer {
	return pipeline.NewImporter(store.NewPlaces(db), store.NewForecasts(db), pipeline.ImporterConfig{
		Workers:   a.cfg.ImportWorkers,
		BatchSize: a.cfg.ImportBatchSize,
		KeepFiles: keepFiles,
	}, a.logger, a.metrics)
}

// cleaner prunes records too when a database is available.
func (a *app) cleaner(db *store.DB) *pipeline.Cleaner {
	var records pipeline.RecordPruner
	if db != nil {
		records = store.NewForecasts(db)
	}
	return pipeline.NewCleaner(a.cfg.DataDir, a.cfg.RetentionDays, records, a.logger, a.metrics)
}

// runLock picks the Redis lock when REDIS_URL is set.
func (a *app) runLock(ctx context.Context) (pipeline.RunLock, error) {
	if a.cfg.RedisURL == "" {
		return &pipeline.LocalLock{}, nil
	}
	client, err := redislock.Connect(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.logger.Info("redis run lock enabled", "ttl", a.cfg.LockTTL)
	return redislock.New(client, redislock.DefaultKey, a.cfg.LockTTL, a.logger), nil
}

// notifier is nil unless KAFKA_ENABLED is set.
func (a *app) notifier() pipeline.Notifier {
	if !a.cfg.KafkaEnabled {
		a.logger.Info("kafka import notifications disabled")
		return nil
	}
	n := kafka.NewNotifier(a.cfg, a.logger)
	a.closers = append(a.closers, n.Close)
	a.logger.Info("kafka import notifications enabled", "topic", a.cfg.KafkaTopic)
	return n
}

// pipeline assembles the full run. A nil db limits it to fetching.
func (a *app) pipeline(ctx context.Context, db *store.DB, opts pipeline.Options) (*pipeline.Pipeline, error) {
	lock, err := a.runLock(ctx)
	if err != nil {
		return nil, err
	}
	stages := pipeline.Stages{
		Resolver: a.resolver(),
		Fetcher:  a.fetcher(),
		Cleaner:  a.cleaner(db),
	}
	var notifier pipeline.Notifier
	if db != nil {
		stages.Filter = a.filterStage(db)
		stages.Importer = a.importer(db, false)
		notifier = a.notifier()
	}
	opts.MaxHours = a.cfg.MaxHours
	return pipeline.New(stages, lock, notifier, opts, a.logger, a.metrics), nil
}
