package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sellinios/aethra/internal/domain"
)

// CycleLister lists the file names published for a remote cycle.
type CycleLister interface {
	ListCycle(ctx context.Context, cycle domain.Cycle) ([]string, error)
}

// ResolverConfig selects how cycles are chosen.
type ResolverConfig struct {
	// Cycles is how many recent cycles LatestCycles returns.
	Cycles int
	// Probe switches Resolve to listing the remote source.
	Probe bool
	// Lookback bounds how many cycles the probe inspects.
	Lookback int
	// MaxHours is the last forecast hour a cycle must publish to count as complete.
	MaxHours int
}

// Resolver picks the model cycles a run works on.
type Resolver struct {
	lister CycleLister
	cfg    ResolverConfig
	logger *slog.Logger
}

// NewResolver creates a Resolver. lister may be nil when Probe is false.
func NewResolver(lister CycleLister, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	return &Resolver{lister: lister, cfg: cfg, logger: logger}
}

// LatestCycles returns up to n cycles, newest first, walking back from the
// current hour.
func (r *Resolver) LatestCycles(n int) []domain.Cycle {
	if n <= 0 {
		return nil
	}
	now := domain.Now().Truncate(time.Hour)
	span := 24*((n+3)/4) + 24

	cycles := make([]domain.Cycle, 0, n)
	seen := make(map[domain.Cycle]struct{}, n)
	for back := 0; back <= span && len(cycles) < n; back++ {
		t := now.Add(-time.Duration(back) * time.Hour)
		if !domain.IsCycleHour(t.Hour()) {
			continue
		}
		c := domain.CycleAt(t, t.Hour())
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cycles = append(cycles, c)
	}
	return cycles
}

// ProbeLatestComplete returns the newest of the last lookback cycles whose
// remote listing contains every expected forecast hour.
func (r *Resolver) ProbeLatestComplete(ctx context.Context, hours []int, lookback int) (domain.Cycle, error) {
	for _, c := range r.LatestCycles(lookback) {
		if err := ctx.Err(); err != nil {
			return domain.Cycle{}, err
		}
		listing, err := r.lister.ListCycle(ctx, c)
		if err != nil {
			r.logger.Info("cycle not ready", "cycle", c.String(), "error", err)
			continue
		}
		if missing := missingFiles(c, hours, listing); missing > 0 {
			r.logger.Info("cycle incomplete", "cycle", c.String(), "missing", missing)
			continue
		}
		return c, nil
	}
	return domain.Cycle{}, fmt.Errorf("probe %d cycles: %w", lookback, domain.ErrNoCycleAvailable)
}

func missingFiles(c domain.Cycle, hours []int, listing []string) int {
	have := make(map[string]struct{}, len(listing))
	for _, name := range listing {
		have[name] = struct{}{}
	}
	missing := 0
	for _, h := range hours {
		if _, ok := have[domain.RemoteFileName(c, h)]; !ok {
			missing++
		}
	}
	return missing
}

// Resolve returns the candidate cycles for a run, newest first. In probe
// mode it is the single newest complete remote cycle.
func (r *Resolver) Resolve(ctx context.Context) ([]domain.Cycle, error) {
	if !r.cfg.Probe {
		cycles := r.LatestCycles(r.cfg.Cycles)
		if len(cycles) == 0 {
			return nil, domain.ErrNoCycleAvailable
		}
		return cycles, nil
	}
	c, err := r.ProbeLatestComplete(ctx, domain.ForecastHours(r.cfg.MaxHours), r.cfg.Lookback)
	if err != nil {
		return nil, err
	}
	return []domain.Cycle{c}, nil
}
