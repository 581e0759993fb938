package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/observability"
)

// CombinedDirName is the reserved directory for combined exports.
const CombinedDirName = "combined_data"

// RecordPruner deletes forecast records dated before a cutoff.
type RecordPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupReport counts what one sweep removed.
type CleanupReport struct {
	TmpFiles      int
	CycleDirs     int
	FilteredDirs  int
	CombinedFiles int
	Records       int64
}

// Cleaner enforces the retention window on the staging tree and the
// forecast table.
type Cleaner struct {
	dataDir string
	days    int
	records RecordPruner
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCleaner creates a Cleaner keeping days calendar days, today included.
// records may be nil to sweep files only.
func NewCleaner(dataDir string, days int, records RecordPruner, logger *slog.Logger, metrics *observability.Metrics) *Cleaner {
	if days < 1 {
		days = 1
	}
	return &Cleaner{dataDir: dataDir, days: days, records: records, logger: logger.With("stage", "cleanup"), metrics: metrics}
}

// Cutoff is the first retained date: today minus (days-1), UTC.
func (c *Cleaner) Cutoff() time.Time {
	return domain.DateOf(domain.Now()).AddDate(0, 0, -(c.days - 1))
}

// Run performs one sweep. Individual failures do not stop it; they are
// returned together.
func (c *Cleaner) Run(ctx context.Context) (CleanupReport, error) {
	var (
		rep    CleanupReport
		result *multierror.Error
	)
	cutoff := c.Cutoff()

	n, err := c.sweepTmp()
	rep.TmpFiles = n
	result = multierror.Append(result, err)

	n, err = c.sweepCycleDirs(ctx, c.dataDir, cutoff, "cycle_dir")
	rep.CycleDirs = n
	result = multierror.Append(result, err)

	n, err = c.sweepCycleDirs(ctx, filepath.Join(c.dataDir, FilteredDirName), cutoff, "filtered_dir")
	rep.FilteredDirs = n
	result = multierror.Append(result, err)

	n, err = c.sweepCombined(cutoff)
	rep.CombinedFiles = n
	result = multierror.Append(result, err)

	if c.records != nil {
		deleted, err := c.records.DeleteBefore(ctx, cutoff)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("delete expired records: %w", err))
		} else {
			rep.Records = deleted
			c.metrics.CleanupDeleted.WithLabelValues("records").Add(float64(deleted))
		}
	}

	c.logger.Info("cleanup finished", "cutoff", cutoff.Format(time.DateOnly),
		"tmp_files", rep.TmpFiles, "cycle_dirs", rep.CycleDirs, "filtered_dirs", rep.FilteredDirs,
		"combined_files", rep.CombinedFiles, "records", rep.Records)
	return rep, result.ErrorOrNil()
}

// sweepTmp removes partial downloads and partial filter output anywhere
// under the data root.
func (c *Cleaner) sweepTmp() (int, error) {
	var (
		removed int
		result  *multierror.Error
	)
	err := filepath.WalkDir(c.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			result = multierror.Append(result, err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), tmpSuffix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", path, err))
			return nil
		}
		removed++
		c.metrics.CleanupDeleted.WithLabelValues("tmp").Inc()
		c.logger.Debug("removed partial file", "file", path)
		return nil
	})
	result = multierror.Append(result, err)
	return removed, result.ErrorOrNil()
}

// sweepCycleDirs applies the staging directory rules to the directories
// directly under root: reserved names stay, names without a date prefix go,
// names with an unparsable date stay, and dated names before cutoff go.
func (c *Cleaner) sweepCycleDirs(ctx context.Context, root string, cutoff time.Time, kind string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list %s: %w", root, err)
	}

	var (
		removed int
		result  *multierror.Error
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, multierror.Append(result, err).ErrorOrNil()
		}
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !c.expired(name, cutoff) {
			continue
		}
		path := filepath.Join(root, name)
		if err := os.RemoveAll(path); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed++
		c.metrics.CleanupDeleted.WithLabelValues(kind).Inc()
		c.logger.Info("removed expired directory", "dir", path)
	}
	return removed, result.ErrorOrNil()
}

func (c *Cleaner) expired(name string, cutoff time.Time) bool {
	if name == FilteredDirName || name == CombinedDirName {
		return false
	}
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return true
	}
	date, err := time.Parse("20060102", prefix)
	if err != nil {
		c.logger.Warn("keeping directory with unparsable date", "dir", name, "error", err)
		return false
	}
	return date.Before(cutoff)
}

// sweepCombined removes combined_* files last modified before cutoff.
func (c *Cleaner) sweepCombined(cutoff time.Time) (int, error) {
	dir := filepath.Join(c.dataDir, CombinedDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}

	var (
		removed int
		result  *multierror.Error
	)
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), "combined_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed++
		c.metrics.CleanupDeleted.WithLabelValues("combined").Inc()
	}
	return removed, result.ErrorOrNil()
}
