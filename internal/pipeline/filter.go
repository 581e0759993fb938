package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/grib2"
	"github.com/sellinios/aethra/internal/observability"
)

// FilteredDirName is the reserved staging directory for filtered files.
const FilteredDirName = "filtered_data"

// ParameterSource supplies the filter allow-list.
type ParameterSource interface {
	EnabledKeys(ctx context.Context) (domain.ParameterSet, error)
}

// FilterResult summarizes a FilterAll pass.
type FilterResult struct {
	Files   []string
	Skipped int
	Failed  int
}

// Filter keeps only the enabled parameters of each raw grid file.
type Filter struct {
	dataDir string
	params  ParameterSource
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFilter creates a Filter over the staging tree at dataDir.
func NewFilter(dataDir string, params ParameterSource, logger *slog.Logger, metrics *observability.Metrics) *Filter {
	return &Filter{dataDir: dataDir, params: params, logger: logger, metrics: metrics}
}

// OutputDir is where filtered files of cycle c are written.
func (f *Filter) OutputDir(c domain.Cycle) string {
	return filepath.Join(f.dataDir, FilteredDirName, c.DirName())
}

// FilterFile copies the messages of rawPath whose standardized key is in
// allow, unchanged and in order, to the cycle's filtered directory. It
// returns the output path, or ErrNoMatchingParameters without writing
// anything when no message matches.
func (f *Filter) FilterFile(ctx context.Context, rawPath string, allow domain.ParameterSet) (string, error) {
	cycle, fh, err := domain.ParseRawFileName(filepath.Base(rawPath))
	if err != nil {
		return "", err
	}
	valid := cycle.Time().Add(time.Duration(fh) * time.Hour)
	outPath := filepath.Join(f.OutputDir(cycle), domain.FilteredFileName(valid, fh))
	logger := f.logger.With("stage", "filter", "file", rawPath)

	in, err := os.Open(rawPath)
	if err != nil {
		return "", fmt.Errorf("open raw file: %w", err)
	}
	defer in.Close()

	var kept [][]byte
	sc := grib2.NewScanner(in)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		msg := sc.Message()
		field, err := msg.Parse()
		if err != nil {
			logger.Warn("dropping malformed message", "offset", msg.Offset,
				"error", fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err))
			f.metrics.MessagesFiltered.WithLabelValues("malformed").Inc()
			continue
		}
		p := field.Product
		key := domain.NewParameterKey(p.Category, p.Level(), p.ShortName(), p.Name())
		if !allow.Contains(key) {
			f.metrics.MessagesFiltered.WithLabelValues("dropped").Inc()
			continue
		}
		kept = append(kept, msg.Raw())
		f.metrics.MessagesFiltered.WithLabelValues("kept").Inc()
	}
	if err := sc.Err(); err != nil {
		// Framing is lost after a bad message; keep what was read before it.
		logger.Warn("stopped reading raw file", "error", fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err))
		f.metrics.MessagesFiltered.WithLabelValues("malformed").Inc()
	}

	if len(kept) == 0 {
		return "", fmt.Errorf("%s: %w", filepath.Base(rawPath), domain.ErrNoMatchingParameters)
	}
	if err := writeMessages(outPath, kept); err != nil {
		return "", err
	}
	logger.Debug("filtered", "output", outPath, "messages", len(kept))
	return outPath, nil
}

// writeMessages writes msgs to path through path+".tmp".
func writeMessages(path string, msgs [][]byte) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + tmpSuffix
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp) //nolint:errcheck // best-effort cleanup of a partial file
		}
	}()

	w := bufio.NewWriterSize(out, 1<<20)
	for _, m := range msgs {
		if _, err = w.Write(m); err != nil {
			out.Close()
			return fmt.Errorf("write %s: %w", tmp, err)
		}
	}
	if err = w.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// FilterAll filters every raw file of the given cycles, or of every cycle
// directory in the staging tree when cycles is empty. The allow-list is
// loaded once.
func (f *Filter) FilterAll(ctx context.Context, cycles []domain.Cycle) (FilterResult, error) {
	allow, err := f.params.EnabledKeys(ctx)
	if err != nil {
		return FilterResult{}, fmt.Errorf("load enabled parameters: %w", err)
	}
	if len(allow) == 0 {
		f.logger.Warn("no enabled parameters; every message will be dropped", "stage", "filter")
	}

	if len(cycles) == 0 {
		if cycles, err = f.stagedCycles(); err != nil {
			return FilterResult{}, err
		}
	}

	var res FilterResult
	for _, c := range cycles {
		raws, err := filepath.Glob(filepath.Join(f.dataDir, c.DirName(), "gfs_*.grib2"))
		if err != nil {
			return res, err
		}
		sort.Strings(raws)
		for _, raw := range raws {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			out, err := f.FilterFile(ctx, raw, allow)
			switch {
			case err == nil:
				res.Files = append(res.Files, out)
			case errors.Is(err, domain.ErrNoMatchingParameters):
				f.logger.Info("no matching parameters", "stage", "filter", "file", raw)
				res.Skipped++
			case ctx.Err() != nil:
				return res, ctx.Err()
			default:
				f.logger.Warn("filter failed", "stage", "filter", "file", raw, "error", err)
				res.Failed++
			}
		}
	}
	f.logger.Info("filter finished", "stage", "filter",
		"cycles", len(cycles), "files", len(res.Files), "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// stagedCycles lists the per-cycle raw directories under the data root.
func (f *Filter) stagedCycles() ([]domain.Cycle, error) {
	entries, err := os.ReadDir(f.dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", f.dataDir, err)
	}
	var cycles []domain.Cycle
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		c, err := domain.ParseCycleDir(e.Name())
		if err != nil {
			continue
		}
		cycles = append(cycles, c)
	}
	return cycles, nil
}
