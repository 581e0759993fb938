package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/grib2"
	"github.com/sellinios/aethra/internal/observability"
	"github.com/sellinios/aethra/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

// freezeClock pins domain.Now for the duration of the test.
func freezeClock(t *testing.T, at time.Time) *clockwork.FakeClock {
	t.Helper()
	fc := clockwork.NewFakeClockAt(at)
	domain.SetClock(fc)
	t.Cleanup(func() { domain.SetClock(nil) })
	return fc
}

// testGrid is a 4x3 0.25 degree box over Attica, north to south.
var testGrid = grib2.Grid{Ni: 4, Nj: 3, La1: 38, Lo1: 23, La2: 37.5, Lo2: 23.75, Di: 0.25, Dj: 0.25}

// gridValues returns base+k for grid point k.
func gridValues(base float64) []float64 {
	v := make([]float64, testGrid.Len())
	for k := range v {
		v[k] = base + float64(k)
	}
	return v
}

func int64p(v int64) *int64 { return &v }

func temperatureMessage(t *testing.T, ref time.Time, fh int, values []float64) []byte {
	t.Helper()
	msg, err := grib2.Marshal(grib2.FieldSpec{
		Reference:    ref,
		Grid:         testGrid,
		Category:     0,
		Number:       0,
		ForecastHour: fh,
		SurfaceType:  103,
		SurfaceValue: int64p(2),
		DecimalScale: 1,
		Values:       values,
	})
	require.NoError(t, err)
	return msg
}

func pressureMessage(t *testing.T, ref time.Time, fh int, values []float64) []byte {
	t.Helper()
	msg, err := grib2.Marshal(grib2.FieldSpec{
		Reference:    ref,
		Grid:         testGrid,
		Category:     3,
		Number:       1,
		ForecastHour: fh,
		SurfaceType:  101,
		Values:       values,
	})
	require.NoError(t, err)
	return msg
}

var temperatureKey = domain.NewParameterKey(0, 2, "2t", "2 metre temperature")

// Places snapping to grid points 3 (38N 23.75E) and 8 (37.5N 23E).
var (
	athens   = domain.Place{Slug: "athens", Name: "Athens", Latitude: 37.98, Longitude: 23.72}
	elefsina = domain.Place{Slug: "elefsina", Name: "Elefsina", Latitude: 37.55, Longitude: 23.1}
)

type testStore struct {
	db         *store.DB
	places     *store.Places
	parameters *store.Parameters
	forecasts  *store.Forecasts
	seeded     []domain.Place
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "aethra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	s := &testStore{
		db:         db,
		places:     store.NewPlaces(db),
		parameters: store.NewParameters(db),
		forecasts:  store.NewForecasts(db),
	}
	ctx := context.Background()
	s.seeded = []domain.Place{athens, elefsina}
	require.NoError(t, s.places.Upsert(ctx, s.seeded))
	_, err = s.parameters.Upsert(ctx, []domain.EnabledParameter{{
		Number:      0,
		Category:    0,
		Level:       2,
		ShortName:   "2t",
		Parameter:   "Temperature",
		TypeOfLevel: "heightAboveGround",
		Description: "2 metre temperature",
		Enabled:     true,
	}}, true)
	require.NoError(t, err)
	return s
}
