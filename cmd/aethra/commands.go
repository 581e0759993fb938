package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/sellinios/aethra/internal/adapter/http"
	"github.com/sellinios/aethra/internal/catalog"
	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/pipeline"
	"github.com/sellinios/aethra/internal/query"
	"github.com/sellinios/aethra/internal/store"
)

// placeCacheTTL bounds how long an edited place keeps its old coordinates
// in the query cache.
const placeCacheTTL = 10 * time.Minute

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("aethra "+name, flag.ContinueOnError)
	fs.StringVar(&a.cfg.DataDir, "data-dir", a.cfg.DataDir, "staging directory for raw and filtered files")
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	return nil
}

func (a *app) cycleFlags(fs *flag.FlagSet) {
	fs.IntVar(&a.cfg.MaxHours, "max-hours", a.cfg.MaxHours, "last forecast hour to fetch (0-384)")
	fs.IntVar(&a.cfg.Cycles, "cycles", a.cfg.Cycles, "number of recent cycles to try")
	fs.BoolVar(&a.cfg.ProbeRemote, "probe", a.cfg.ProbeRemote, "probe the remote listing for the newest complete cycle")
	fs.IntVar(&a.cfg.LookbackCycles, "lookback", a.cfg.LookbackCycles, "cycles to probe before giving up")
	fs.IntVar(&a.cfg.DownloadWorkers, "workers", a.cfg.DownloadWorkers, "concurrent downloads")
}

func (a *app) fetch(ctx context.Context, args []string) error {
	fs := a.flags("fetch")
	a.cycleFlags(fs)
	fs.BoolVar(&a.cfg.DryRun, "dry-run", a.cfg.DryRun, "log the URLs without downloading")
	requireCycle := fs.Bool("require-cycle", false, "exit non-zero when no cycle is available")
	if err := parse(fs, args); err != nil {
		return err
	}

	p, err := a.pipeline(ctx, nil, pipeline.Options{StopAfterFetch: true, RequireCycle: *requireCycle})
	if err != nil {
		return err
	}
	rep, err := p.RunOnce(ctx)
	if err != nil {
		return err
	}
	if !rep.Skipped {
		a.logger.Info("fetch complete", "cycle", rep.Cycle.String(),
			"downloaded", rep.Fetch.Downloaded, "skipped", rep.Fetch.Skipped, "failed", rep.Fetch.Failed)
	}
	return nil
}

func (a *app) filter(ctx context.Context, args []string) error {
	fs := a.flags("filter")
	var cycleNames stringList
	fs.Var(&cycleNames, "cycle", "cycle directory to filter, e.g. 20241020_12 (repeatable; default all staged)")
	if err := parse(fs, args); err != nil {
		return err
	}
	cycles := make([]domain.Cycle, 0, len(cycleNames))
	for _, name := range cycleNames {
		c, err := domain.ParseCycleDir(name)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		cycles = append(cycles, c)
	}

	db, err := a.store()
	if err != nil {
		return err
	}
	res, err := a.filterStage(db).FilterAll(ctx, cycles)
	if err != nil {
		return err
	}
	a.logger.Info("filter complete", "files", len(res.Files), "skipped", res.Skipped, "failed", res.Failed)
	return nil
}

func (a *app) importFiles(ctx context.Context, args []string) error {
	fs := a.flags("import")
	fs.IntVar(&a.cfg.ImportWorkers, "workers", a.cfg.ImportWorkers, "concurrent messages per file")
	fs.IntVar(&a.cfg.ImportBatchSize, "batch-size", a.cfg.ImportBatchSize, "records per database batch")
	keep := fs.Bool("keep-files", false, "keep filtered files after import")
	if err := parse(fs, args); err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		var err error
		paths, err = pipeline.FilteredFiles(filepath.Join(a.cfg.DataDir, pipeline.FilteredDirName))
		if err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		a.logger.Info("nothing to import")
		return nil
	}

	db, err := a.store()
	if err != nil {
		return err
	}
	reports, err := a.importer(db, *keep).ImportAll(ctx, paths)
	if err != nil {
		return err
	}
	var inserted, updated, failed int
	for _, r := range reports {
		inserted += r.RecordsInserted
		updated += r.RecordsUpdated
		failed += r.MessagesFailed
	}
	a.logger.Info("import complete", "files", len(reports), "inserted", inserted, "updated", updated, "failed_messages", failed)
	return nil
}

func (a *app) cleanup(ctx context.Context, args []string) error {
	fs := a.flags("cleanup")
	fs.IntVar(&a.cfg.RetentionDays, "days", a.cfg.RetentionDays, "days of data to keep, today included")
	filesOnly := fs.Bool("files-only", false, "leave stored records alone")
	if err := parse(fs, args); err != nil {
		return err
	}
	if a.cfg.RetentionDays < 1 {
		return fmt.Errorf("%w: -days must be at least 1", errUsage)
	}

	var db *store.DB
	if !*filesOnly {
		var err error
		if db, err = a.store(); err != nil {
			return err
		}
	}
	rep, err := a.cleaner(db).Run(ctx)
	a.logger.Info("cleanup complete", "tmp_files", rep.TmpFiles, "cycle_dirs", rep.CycleDirs,
		"filtered_dirs", rep.FilteredDirs, "combined_files", rep.CombinedFiles, "records", rep.Records)
	return err
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := a.flags("run")
	a.cycleFlags(fs)
	once := fs.Bool("once", false, "run a single pass and exit")
	fs.DurationVar(&a.cfg.RunInterval, "interval", a.cfg.RunInterval, "time between runs")
	requireCycle := fs.Bool("require-cycle", false, "with -once, exit non-zero when no cycle is available")
	withServer := fs.Bool("serve", false, "also serve the query API")
	if err := parse(fs, args); err != nil {
		return err
	}

	db, err := a.store()
	if err != nil {
		return err
	}
	p, err := a.pipeline(ctx, db, pipeline.Options{RequireCycle: *requireCycle})
	if err != nil {
		return err
	}

	if *once {
		_, err := p.RunOnce(ctx)
		return err
	}
	if !*withServer {
		return p.Run(ctx, a.cfg.RunInterval)
	}

	// A server that fails to start stops the pipeline too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, a.cfg.RunInterval) }()
	serveErr := a.listen(ctx, db, allReady{db, p})
	cancel()
	if err := <-errCh; err != nil {
		return err
	}
	return serveErr
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := a.flags("serve")
	fs.StringVar(&a.cfg.HTTPAddr, "addr", a.cfg.HTTPAddr, "listen address")
	if err := parse(fs, args); err != nil {
		return err
	}
	db, err := a.store()
	if err != nil {
		return err
	}
	return a.listen(ctx, db, db)
}

// listen serves the query API until ctx is cancelled, then drains within
// the shutdown timeout.
func (a *app) listen(ctx context.Context, db *store.DB, ready sharedobs.ReadinessChecker) error {
	places := query.NewCachedPlaces(store.NewPlaces(db), a.cfg.PlaceCacheSize, placeCacheTTL)
	svc := query.NewService(places, store.NewForecasts(db), a.cfg.ForecastDays)
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, svc, ready, a.logger, a.metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *app) params(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: params needs scan, seed or list", errUsage)
	}
	sub, args := args[0], args[1:]
	fs := flag.NewFlagSet("aethra params "+sub, flag.ContinueOnError)
	keepEnabled := fs.Bool("keep-enabled", false, "seed: leave the enabled flag of existing rows alone")
	if err := parse(fs, args); err != nil {
		return err
	}
	switch sub {
	case "scan", "seed":
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: params %s needs exactly one file", errUsage, sub)
		}
	case "list":
	default:
		return fmt.Errorf("%w: unknown params command %q", errUsage, sub)
	}

	db, err := a.store()
	if err != nil {
		return err
	}
	repo := store.NewParameters(db)

	if sub == "list" {
		rows, err := repo.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ENABLED\tNUMBER\tCATEGORY\tLEVEL\tSHORT\tTYPE OF LEVEL\tDESCRIPTION")
		for _, r := range rows {
			fmt.Fprintf(tw, "%t\t%d\t%d\t%d\t%s\t%s\t%s\n", r.Enabled, r.Number, r.Category, r.Level, r.ShortName, r.TypeOfLevel, r.Description)
		}
		return tw.Flush()
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	var rows []domain.EnabledParameter
	setEnabled := false
	if sub == "scan" {
		rows, err = catalog.ScanParameters(f, a.logger)
	} else {
		rows, err = catalog.LoadParameters(f)
		setEnabled = !*keepEnabled
	}
	if err != nil {
		return err
	}
	n, err := repo.Upsert(ctx, rows, setEnabled)
	if err != nil {
		return err
	}
	a.logger.Info("parameter catalog updated", "source", fs.Arg(0), "rows", n)
	return nil
}

func (a *app) places(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: places needs seed or list", errUsage)
	}
	sub, args := args[0], args[1:]
	switch {
	case sub == "seed" && len(args) != 1:
		return fmt.Errorf("%w: places seed needs exactly one file", errUsage)
	case sub != "seed" && sub != "list":
		return fmt.Errorf("%w: unknown places command %q", errUsage, sub)
	}

	db, err := a.store()
	if err != nil {
		return err
	}
	repo := store.NewPlaces(db)

	if sub == "list" {
		places, err := repo.All(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSLUG\tNAME\tLAT\tLON\tELEVATION")
		for _, p := range places {
			elev := "-"
			if p.Elevation != nil {
				elev = fmt.Sprintf("%g", *p.Elevation)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%g\t%s\n", p.ID, p.Slug, p.Name, p.Latitude, p.Longitude, elev)
		}
		return tw.Flush()
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	places, err := catalog.LoadPlaces(f)
	if err != nil {
		return err
	}
	if err := repo.Upsert(ctx, places); err != nil {
		return err
	}
	a.logger.Info("places updated", "source", args[0], "places", len(places))
	return nil
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// allReady is ready when every checker is.
type allReady []sharedobs.ReadinessChecker

func (r allReady) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
