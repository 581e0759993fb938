package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/observability"
)

const tmpSuffix = ".tmp"

// Downloader fetches one remote grid file to a local path.
type Downloader interface {
	FileURL(cycle domain.Cycle, forecastHour int) string
	Download(ctx context.Context, url, dest string) (int64, error)
}

// FetcherConfig tunes the download pool.
type FetcherConfig struct {
	DataDir    string
	Workers    int
	MaxRetries int
	DryRun     bool
	// RetryBackoff is the first retry delay; zero means 200ms.
	RetryBackoff time.Duration
}

// FetchResult summarizes one cycle's downloads. Paths lists the local files
// present for the cycle, in forecast hour order.
type FetchResult struct {
	Paths      []string
	Downloaded int
	Skipped    int
	Failed     int
}

// Fetcher downloads the raw grid files of a cycle into its staging directory.
type Fetcher struct {
	source  Downloader
	cfg     FetcherConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher.
func NewFetcher(source Downloader, cfg FetcherConfig, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = initialBackoff
	}
	return &Fetcher{source: source, cfg: cfg, logger: logger, metrics: metrics}
}

// CycleDir is the staging directory of a cycle's raw files.
func (f *Fetcher) CycleDir(c domain.Cycle) string {
	return filepath.Join(f.cfg.DataDir, c.DirName())
}

// Fetch downloads every forecast hour of the cycle that is not already on
// disk. Individual file failures are logged and counted; only cancellation
// is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, c domain.Cycle, hours []int) (FetchResult, error) {
	dir := f.CycleDir(c)
	logger := f.logger.With("stage", "fetch", "cycle", c.String())

	if f.cfg.DryRun {
		res := FetchResult{Paths: make([]string, 0, len(hours))}
		for _, h := range hours {
			logger.Info("dry run: would fetch", "url", f.source.FileURL(c, h))
			res.Paths = append(res.Paths, filepath.Join(dir, domain.RawFileName(c, h)))
		}
		return res, nil
	}

	var (
		mu      sync.Mutex
		res     FetchResult
		present = make([]bool, len(hours))
	)
	record := func(i int, outcome string) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case "downloaded":
			res.Downloaded++
			present[i] = true
		case "skipped":
			res.Skipped++
			present[i] = true
		default:
			res.Failed++
		}
		f.metrics.FilesDownloaded.WithLabelValues(outcome).Inc()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i, h := range hours {
		dest := filepath.Join(dir, domain.RawFileName(c, h))
		if _, err := os.Stat(dest); err == nil {
			record(i, "skipped")
			continue
		}
		url := f.source.FileURL(c, h)
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcome := f.fetchOne(gctx, logger, url, dest)
			if gctx.Err() != nil && outcome != "downloaded" {
				return nil
			}
			record(i, outcome)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for i, h := range hours {
		if present[i] {
			res.Paths = append(res.Paths, filepath.Join(dir, domain.RawFileName(c, h)))
		}
	}
	logger.Info("fetch finished",
		"downloaded", res.Downloaded, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, logger *slog.Logger, url, dest string) string {
	var n int64
	err := retry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff,
		func(err error) bool { return errors.Is(err, domain.ErrNetworkTransient) },
		func() error {
			start := time.Now()
			var err error
			n, err = f.source.Download(ctx, url, dest)
			f.metrics.DownloadDuration.Observe(time.Since(start).Seconds())
			if err != nil && errors.Is(err, domain.ErrNetworkTransient) {
				logger.Debug("download attempt failed", "url", url, "error", err)
			}
			return err
		})
	switch {
	case err == nil:
		f.metrics.DownloadBytes.Add(float64(n))
		return "downloaded"
	case errors.Is(err, domain.ErrNotPublished):
		logger.Info("forecast hour not published", "url", url)
		return "not_found"
	default:
		logger.Warn("download failed", "url", url, "file", dest, "error", err)
		return "failed"
	}
}

// IsDirectoryComplete reports whether dir holds at least n finished files.
// Partial downloads do not count.
func IsDirectoryComplete(dir string, n int) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	count := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		count++
	}
	return count >= n
}
