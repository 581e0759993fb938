package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/grib2"
	"github.com/sellinios/aethra/internal/observability"
	"github.com/sellinios/aethra/internal/spatial"
)

// PlaceSource lists the registered places.
type PlaceSource interface {
	All(ctx context.Context) ([]domain.Place, error)
}

// RecordMerger upserts forecast records, merging field maps on key collisions.
type RecordMerger interface {
	MergeBatch(ctx context.Context, records []domain.ForecastRecord) (domain.MergeResult, error)
}

// ImporterConfig tunes the importer.
type ImporterConfig struct {
	Workers   int
	BatchSize int
	// KeepFiles leaves filtered files in place after import.
	KeepFiles bool
	// RetryBackoff is the delay before a failed batch is retried; zero means 200ms.
	RetryBackoff time.Duration
}

// Importer samples filtered grid messages at every place and merges the
// values into forecast records.
type Importer struct {
	places  PlaceSource
	records RecordMerger
	cfg     ImporterConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewImporter creates an Importer.
func NewImporter(places PlaceSource, records RecordMerger, cfg ImporterConfig, logger *slog.Logger, metrics *observability.Metrics) *Importer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1000
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = initialBackoff
	}
	return &Importer{places: places, records: records, cfg: cfg, logger: logger, metrics: metrics}
}

// ImportFile imports one filtered file.
func (im *Importer) ImportFile(ctx context.Context, path string) (domain.ImportReport, error) {
	places, err := im.loadPlaces(ctx)
	if err != nil {
		return domain.ImportReport{}, err
	}
	return im.importFile(ctx, path, places, newSnapper(places, im.cfg.Workers, im.metrics))
}

// ImportAll imports the given filtered files in order. A file that cannot
// be read is logged and skipped.
func (im *Importer) ImportAll(ctx context.Context, paths []string) ([]domain.ImportReport, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	places, err := im.loadPlaces(ctx)
	if err != nil {
		return nil, err
	}
	// Every file of a run shares the GFS grid, so snapping is done once.
	snaps := newSnapper(places, im.cfg.Workers, im.metrics)

	reports := make([]domain.ImportReport, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := im.importFile(ctx, path, places, snaps)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			im.logger.Warn("import failed, skipping file", "stage", "import", "file", path, "error", err)
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (im *Importer) loadPlaces(ctx context.Context) ([]domain.Place, error) {
	places, err := im.places.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load places: %w", err)
	}
	if len(places) == 0 {
		return nil, errors.New("load places: no places registered")
	}
	return places, nil
}

func (im *Importer) importFile(ctx context.Context, path string, places []domain.Place, snaps *snapper) (domain.ImportReport, error) {
	ff, err := domain.ParseFilteredFileName(filepath.Base(path))
	if err != nil {
		return domain.ImportReport{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.ImportReport{}, fmt.Errorf("open filtered file: %w", err)
	}
	msgs, err := grib2.ReadAll(f)
	f.Close()
	if err != nil {
		// Messages before the framing error are still imported.
		im.logger.Warn("filtered file is truncated", "stage", "import", "file", path,
			"error", fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err))
	}

	cycle := ff.Cycle()
	logger := im.logger.With("stage", "import", "file", path, "cycle", cycle.String())

	var (
		imported, failed atomic.Int64
		mu               sync.Mutex
		merged           domain.MergeResult
	)
	g := new(errgroup.Group)
	g.SetLimit(im.cfg.Workers)
	for _, msg := range msgs {
		g.Go(func() error {
			res, err := im.importMessage(ctx, logger, msg, ff, places, snaps)
			mu.Lock()
			merged.Inserted += res.Inserted
			merged.Updated += res.Updated
			mu.Unlock()
			if err != nil {
				failed.Add(1)
				im.metrics.MessagesImported.WithLabelValues("error").Inc()
				logger.Warn("message import failed", "offset", msg.Offset, "error", err)
				return nil
			}
			imported.Add(1)
			im.metrics.MessagesImported.WithLabelValues("success").Inc()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return domain.ImportReport{}, err
	}

	rep := domain.ImportReport{
		File:             filepath.Base(path),
		Cycle:            cycle.String(),
		Valid:            ff.Valid,
		ForecastHour:     ff.ForecastHour,
		MessagesImported: int(imported.Load()),
		MessagesFailed:   int(failed.Load()),
		RecordsInserted:  merged.Inserted,
		RecordsUpdated:   merged.Updated,
		ImportedAt:       domain.Now(),
	}
	logger.Info("file imported",
		"messages", rep.MessagesImported, "failed", rep.MessagesFailed,
		"places", len(places), "inserted", rep.RecordsInserted, "updated", rep.RecordsUpdated)

	if !im.cfg.KeepFiles {
		if err := os.Remove(path); err != nil {
			logger.Warn("remove imported file", "error", err)
		}
	}
	return rep, nil
}

func (im *Importer) importMessage(ctx context.Context, logger *slog.Logger, msg *grib2.Message, ff domain.FilteredFile, places []domain.Place, snaps *snapper) (domain.MergeResult, error) {
	var total domain.MergeResult

	field, err := msg.Parse()
	if err != nil {
		return total, fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err)
	}
	values, err := field.Values()
	if err != nil {
		return total, fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err)
	}
	idx, err := snaps.indices(field.Grid)
	if err != nil {
		return total, fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err)
	}

	p := field.Product
	key := domain.FieldKey{
		ShortName:   strings.ToLower(p.ShortName()),
		Level:       p.Level(),
		TypeOfLevel: p.TypeOfLevel(),
	}
	date := domain.DateOf(ff.Valid)
	utcCycle := ff.UTCCycleTime()

	records := make([]domain.ForecastRecord, len(places))
	for i, place := range places {
		var v *float64
		if j := idx[i]; j >= 0 && !math.IsNaN(values[j]) {
			x := values[j]
			v = &x
		}
		records[i] = domain.ForecastRecord{
			PlaceID:      place.ID,
			Date:         date,
			Hour:         ff.Valid.Hour(),
			UTCCycleTime: utcCycle,
			Latitude:     place.Latitude,
			Longitude:    place.Longitude,
			Data:         domain.ForecastData{key: v},
		}
	}

	var abandoned int
	for start := 0; start < len(records); start += im.cfg.BatchSize {
		end := min(start+im.cfg.BatchSize, len(records))
		res, err := im.mergeBatch(ctx, records[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			abandoned++
			logger.Error("batch abandoned", "field", key.String(), "records", end-start, "error", err)
			continue
		}
		total.Inserted += res.Inserted
		total.Updated += res.Updated
	}
	im.metrics.RecordsWritten.WithLabelValues("insert").Add(float64(total.Inserted))
	im.metrics.RecordsWritten.WithLabelValues("update").Add(float64(total.Updated))
	if abandoned > 0 {
		return total, fmt.Errorf("%d batches of %s: %w", abandoned, key.String(), domain.ErrPersistence)
	}
	return total, nil
}

// mergeBatch retries a failed batch once as a unit.
func (im *Importer) mergeBatch(ctx context.Context, batch []domain.ForecastRecord) (domain.MergeResult, error) {
	var res domain.MergeResult
	err := retry(ctx, 1, im.cfg.RetryBackoff,
		func(err error) bool { return errors.Is(err, domain.ErrPersistence) },
		func() error {
			var err error
			res, err = im.records.MergeBatch(ctx, batch)
			return err
		})
	return res, err
}

// snapper maps every place to its nearest grid point, once per distinct grid.
type snapper struct {
	places  []domain.Place
	workers int
	metrics *observability.Metrics

	mu    sync.Mutex
	grids map[grib2.Grid]*snapEntry
}

type snapEntry struct {
	once sync.Once
	idx  []int
	err  error
}

func newSnapper(places []domain.Place, workers int, metrics *observability.Metrics) *snapper {
	return &snapper{places: places, workers: workers, metrics: metrics, grids: make(map[grib2.Grid]*snapEntry)}
}

// indices returns, per place, the index of the nearest grid point, or -1
// when the grid has no points.
func (s *snapper) indices(g grib2.Grid) ([]int, error) {
	s.mu.Lock()
	e, ok := s.grids[g]
	if !ok {
		e = &snapEntry{}
		s.grids[g] = e
	}
	s.mu.Unlock()

	e.once.Do(func() { e.idx, e.err = s.snap(g) })
	return e.idx, e.err
}

func (s *snapper) snap(g grib2.Grid) ([]int, error) {
	lats, lons := g.Points()
	tree, err := spatial.NewTree(lats, lons)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(s.places))
	chunk := (len(s.places) + s.workers - 1) / s.workers
	var eg errgroup.Group
	for lo := 0; lo < len(s.places); lo += chunk {
		hi := min(lo+chunk, len(s.places))
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				p := s.places[i]
				// Grid longitudes run 0..360.
				j, ok := tree.Nearest(p.Latitude, grib2.NormalizeLongitude(p.Longitude))
				if !ok {
					idx[i] = -1
					continue
				}
				idx[i] = j
				s.metrics.SnapDistance.Observe(spatial.DistanceKm(p.Latitude, p.Longitude, lats[j], lons[j]))
			}
			return nil
		})
	}
	_ = eg.Wait()

	if tree.Len() == 0 {
		return idx, fmt.Errorf("empty grid: %w", domain.ErrPlaceAssociation)
	}
	return idx, nil
}

// FilteredFiles lists every filtered file under root in name order.
func FilteredFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipDir
			}
			return err
		}
		name := d.Name()
		if d.Type().IsRegular() && strings.HasPrefix(name, "filtered_") && strings.HasSuffix(name, ".grib2") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
