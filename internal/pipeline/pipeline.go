// Package pipeline runs the GFS ingestion stages: resolve a cycle, fetch its
// grid files, filter them to the enabled parameters, import the values per
// place, and enforce retention.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/observability"
)

// RunLock guards against overlapping runs. Acquire returns
// domain.ErrLockHeld when another run holds it.
type RunLock interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Notifier announces imported files.
type Notifier interface {
	Notify(ctx context.Context, reports []domain.ImportReport) error
}

// LocalLock is a RunLock scoped to this process.
type LocalLock struct {
	mu sync.Mutex
}

// Acquire takes the lock without waiting.
func (l *LocalLock) Acquire(context.Context) (func(context.Context) error, error) {
	if !l.mu.TryLock() {
		return nil, domain.ErrLockHeld
	}
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, nil
}

// Stages bundles the stage implementations a Pipeline drives.
type Stages struct {
	Resolver *Resolver
	Fetcher  *Fetcher
	Filter   *Filter
	Importer *Importer
	Cleaner  *Cleaner
}

// Options tune a Pipeline.
type Options struct {
	MaxHours int
	// StopAfterFetch ends each run once a cycle is staged, as the fetch
	// command and dry runs do.
	StopAfterFetch bool
	// RequireCycle makes a run with no available cycle an error.
	RequireCycle bool
}

// RunReport summarizes one run.
type RunReport struct {
	RunID   string
	Cycle   domain.Cycle
	Fetch   FetchResult
	Filter  FilterResult
	Imports []domain.ImportReport
	Cleanup CleanupReport
	// Skipped is set when the run ended early without doing work.
	Skipped bool
}

// Pipeline orchestrates one ingestion run end to end.
type Pipeline struct {
	stages   Stages
	lock     RunLock
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline. A nil lock means a LocalLock; a nil notifier
// disables notifications.
func New(stages Stages, lock RunLock, notifier Notifier, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if lock == nil {
		lock = &LocalLock{}
	}
	return &Pipeline{
		stages:   stages,
		lock:     lock,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// RunOnce executes lock, resolve, fetch, filter, import, cleanup and notify
// in order. A held lock or a missing cycle ends the run early without error
// unless RequireCycle is set.
func (p *Pipeline) RunOnce(ctx context.Context) (RunReport, error) {
	rep := RunReport{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", rep.RunID)

	release, err := p.lock.Acquire(ctx)
	if errors.Is(err, domain.ErrLockHeld) {
		logger.Info("another run holds the lock, skipping")
		rep.Skipped = true
		return rep, nil
	}
	if err != nil {
		return rep, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release run lock", "error", err)
		}
	}()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	logger.Info("run started")

	var candidates []domain.Cycle
	err = p.timed("resolve", func() error {
		candidates, err = p.stages.Resolver.Resolve(ctx)
		return err
	})
	if errors.Is(err, domain.ErrNoCycleAvailable) {
		return p.noCycle(logger, rep, err)
	}
	if err != nil {
		return rep, fmt.Errorf("resolve: %w", err)
	}

	hours := domain.ForecastHours(p.opts.MaxHours)
	var chosen *domain.Cycle
	err = p.timed("fetch", func() error {
		for i, c := range candidates {
			dir := p.stages.Fetcher.CycleDir(c)
			if IsDirectoryComplete(dir, len(hours)) {
				logger.Info("cycle already staged", "cycle", c.String())
				chosen = &candidates[i]
				return nil
			}
			res, err := p.stages.Fetcher.Fetch(ctx, c, hours)
			if err != nil {
				return err
			}
			rep.Fetch = res
			if p.opts.StopAfterFetch || IsDirectoryComplete(dir, len(hours)) {
				chosen = &candidates[i]
				return nil
			}
			logger.Warn("cycle incomplete, falling back", "cycle", c.String(),
				"files", len(res.Paths), "expected", len(hours))
		}
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("fetch: %w", err)
	}
	if chosen == nil {
		return p.noCycle(logger, rep, fmt.Errorf("%d candidates incomplete: %w", len(candidates), domain.ErrNoCycleAvailable))
	}
	rep.Cycle = *chosen
	logger = logger.With("cycle", rep.Cycle.String())
	if p.opts.StopAfterFetch {
		logger.Info("fetch finished", "files", len(rep.Fetch.Paths))
		return rep, nil
	}

	err = p.timed("filter", func() error {
		rep.Filter, err = p.stages.Filter.FilterAll(ctx, []domain.Cycle{rep.Cycle})
		return err
	})
	if err != nil {
		return rep, fmt.Errorf("filter: %w", err)
	}

	err = p.timed("import", func() error {
		rep.Imports, err = p.stages.Importer.ImportAll(ctx, rep.Filter.Files)
		return err
	})
	if err != nil {
		return rep, fmt.Errorf("import: %w", err)
	}

	_ = p.timed("cleanup", func() error {
		rep.Cleanup, err = p.stages.Cleaner.Run(ctx)
		if err != nil {
			logger.Warn("cleanup incomplete", "error", err)
		}
		return nil
	})

	if p.notifier != nil && len(rep.Imports) > 0 {
		if err := p.notifier.Notify(ctx, rep.Imports); err != nil {
			logger.Warn("notify failed", "files", len(rep.Imports), "error", err)
		}
	}

	p.ready.Store(true)
	p.metrics.LastSuccessfulRun.SetToCurrentTime()
	logger.Info("run finished", "files", len(rep.Imports))
	return rep, nil
}

func (p *Pipeline) noCycle(logger *slog.Logger, rep RunReport, err error) (RunReport, error) {
	logger.Warn("no cycle available, ending run", "error", err)
	rep.Skipped = true
	if p.opts.RequireCycle {
		return rep, err
	}
	return rep, nil
}

func (p *Pipeline) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

// Run repeats RunOnce every interval until the context is cancelled.
// Failed runs are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("pipeline started", "interval", interval.String())
	backoff := initialBackoff

	for {
		_, err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := interval
		if err != nil {
			p.logger.Error("run failed", "error", err, "retry_in", backoff.String())
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}
		if !sleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}
