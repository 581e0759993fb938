package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/pipeline"
)

type fakeLister struct {
	listings map[string][]string
	calls    []string
}

func (f *fakeLister) ListCycle(_ context.Context, c domain.Cycle) ([]string, error) {
	f.calls = append(f.calls, c.String())
	names, ok := f.listings[c.String()]
	if !ok {
		return nil, errors.New("listing unavailable")
	}
	return names, nil
}

func cycle(date string, hour int) domain.Cycle {
	d, err := time.Parse("20060102", date)
	if err != nil {
		panic(err)
	}
	return domain.CycleAt(d, hour)
}

func remoteNames(c domain.Cycle, hours []int) []string {
	names := make([]string, 0, len(hours)+1)
	for _, h := range hours {
		names = append(names, domain.RemoteFileName(c, h))
	}
	return append(names, domain.RemoteFileName(c, 0)+".idx")
}

func TestResolver_LatestCycles(t *testing.T) {
	freezeClock(t, time.Date(2024, 10, 20, 13, 30, 0, 0, time.UTC))
	r := pipeline.NewResolver(nil, pipeline.ResolverConfig{}, discardLogger())

	want := []domain.Cycle{
		cycle("20241020", 12),
		cycle("20241020", 6),
		cycle("20241020", 0),
		cycle("20241019", 18),
		cycle("20241019", 12),
	}
	if diff := cmp.Diff(want, r.LatestCycles(5)); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, r.LatestCycles(0))
}

func TestResolver_LatestCycles_OnCycleHour(t *testing.T) {
	freezeClock(t, time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC))
	r := pipeline.NewResolver(nil, pipeline.ResolverConfig{}, discardLogger())

	got := r.LatestCycles(2)
	assert.Equal(t, []domain.Cycle{cycle("20241020", 0), cycle("20241019", 18)}, got)
}

func TestResolver_LatestCycles_Many(t *testing.T) {
	freezeClock(t, time.Date(2024, 10, 20, 5, 0, 0, 0, time.UTC))
	r := pipeline.NewResolver(nil, pipeline.ResolverConfig{}, discardLogger())

	got := r.LatestCycles(12)
	require.Len(t, got, 12)
	assert.Equal(t, cycle("20241020", 0), got[0])
	assert.Equal(t, cycle("20241017", 6), got[11])
}

func TestResolver_ProbeLatestComplete(t *testing.T) {
	freezeClock(t, time.Date(2024, 10, 20, 13, 0, 0, 0, time.UTC))
	hours := domain.ForecastHours(3)

	newest := cycle("20241020", 12)
	prev := cycle("20241020", 6)
	lister := &fakeLister{listings: map[string][]string{
		newest.String(): remoteNames(newest, []int{0, 1}),
		prev.String():   remoteNames(prev, hours),
	}}
	r := pipeline.NewResolver(lister, pipeline.ResolverConfig{}, discardLogger())

	got, err := r.ProbeLatestComplete(context.Background(), hours, 4)
	require.NoError(t, err)
	assert.Equal(t, prev, got)
	assert.Equal(t, []string{"20241020_12", "20241020_06"}, lister.calls)
}

func TestResolver_ProbeSkipsListingFailures(t *testing.T) {
	freezeClock(t, time.Date(2024, 10, 20, 13, 0, 0, 0, time.UTC))
	hours := domain.ForecastHours(1)

	older := cycle("20241020", 0)
	lister := &fakeLister{listings: map[string][]string{
		older.String(): remoteNames(older, hours),
	}}
	r := pipeline.NewResolver(lister, pipeline.ResolverConfig{}, discardLogger())

	got, err := r.ProbeLatestComplete(context.Background(), hours, 3)
	require.NoError(t, err)
	assert.Equal(t, older, got)
}

func TestResolver_ProbeExhausted(t *testing.T) {
	freezeClock(t, time.Date(2024, 10, 20, 13, 0, 0, 0, time.UTC))
	lister := &fakeLister{listings: map[string][]string{}}
	r := pipeline.NewResolver(lister, pipeline.ResolverConfig{}, discardLogger())

	_, err := r.ProbeLatestComplete(context.Background(), domain.ForecastHours(0), 2)
	require.ErrorIs(t, err, domain.ErrNoCycleAvailable)
	assert.Len(t, lister.calls, 2)
}

func TestResolver_Resolve(t *testing.T) {
	freezeClock(t, time.Date(2024, 10, 20, 13, 0, 0, 0, time.UTC))

	t.Run("latest", func(t *testing.T) {
		r := pipeline.NewResolver(nil, pipeline.ResolverConfig{Cycles: 2}, discardLogger())
		got, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []domain.Cycle{cycle("20241020", 12), cycle("20241020", 6)}, got)
	})

	t.Run("probe", func(t *testing.T) {
		c := cycle("20241020", 6)
		lister := &fakeLister{listings: map[string][]string{
			c.String(): remoteNames(c, domain.ForecastHours(2)),
		}}
		r := pipeline.NewResolver(lister, pipeline.ResolverConfig{Probe: true, Lookback: 4, MaxHours: 2}, discardLogger())
		got, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []domain.Cycle{c}, got)
	})
}
