package query_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/query"
	"github.com/sellinios/aethra/internal/weather"
)

type fakePlaces map[string]domain.Place

func (f fakePlaces) BySlug(_ context.Context, slug string) (domain.Place, error) {
	p, ok := f[slug]
	if !ok {
		return domain.Place{}, fmt.Errorf("%q: %w", slug, domain.ErrPlaceNotFound)
	}
	return p, nil
}

type fakeRecords struct {
	recs     []domain.ForecastRecord
	err      error
	from, to time.Time
}

func (f *fakeRecords) ListForPlace(_ context.Context, _ int64, from, to time.Time) ([]domain.ForecastRecord, error) {
	f.from, f.to = from, to
	return f.recs, f.err
}

var athens = domain.Place{ID: 1, Slug: "athens", Name: "Athens", Latitude: 37.98, Longitude: 23.72}

func f64(v float64) *float64 { return &v }

func record(date string, hour int, data domain.ForecastData) domain.ForecastRecord {
	d, _ := time.Parse("20060102", date)
	return domain.ForecastRecord{PlaceID: 1, Date: d, Hour: hour, UTCCycleTime: "06", Data: data}
}

func freeze(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func TestService_Weather(t *testing.T) {
	freeze(t, time.Date(2024, 10, 20, 13, 30, 0, 0, time.UTC))
	recs := &fakeRecords{recs: []domain.ForecastRecord{
		record("20241020", 12, domain.ForecastData{domain.Temperature2m: f64(293.15), domain.PressureMSL: f64(101325)}),
		record("20241020", 15, domain.ForecastData{domain.Temperature2m: nil}),
	}}
	svc := query.NewService(fakePlaces{"athens": athens}, recs, 7)

	fc, err := svc.Weather(context.Background(), "athens")
	require.NoError(t, err)
	assert.Equal(t, "athens", fc.Place.Slug)
	assert.Equal(t, time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC), recs.from)
	assert.Equal(t, time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC), recs.to)

	require.Len(t, fc.Entries, 2)
	first := fc.Entries[0]
	assert.Equal(t, time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC), first.Time)
	require.NotNil(t, first.Temperature)
	assert.InDelta(t, 20, *first.Temperature, 1e-9)
	require.NotNil(t, first.Pressure)
	assert.InDelta(t, 1013.25, *first.Pressure, 1e-9)
	assert.Nil(t, fc.Entries[1].Temperature)
}

func TestService_UnknownPlace(t *testing.T) {
	svc := query.NewService(fakePlaces{}, &fakeRecords{}, 7)

	_, err := svc.Weather(context.Background(), "atlantis")
	require.ErrorIs(t, err, domain.ErrPlaceNotFound)
	_, err = svc.Daily(context.Background(), "atlantis")
	require.ErrorIs(t, err, domain.ErrPlaceNotFound)
	_, err = svc.Alerts(context.Background(), "atlantis")
	require.ErrorIs(t, err, domain.ErrPlaceNotFound)
}

func TestService_ListError(t *testing.T) {
	svc := query.NewService(fakePlaces{"athens": athens}, &fakeRecords{err: domain.ErrPersistence}, 7)
	_, err := svc.Weather(context.Background(), "athens")
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestService_Daily(t *testing.T) {
	freeze(t, time.Date(2024, 10, 20, 13, 30, 0, 0, time.UTC))
	recs := &fakeRecords{recs: []domain.ForecastRecord{
		record("20241020", 12, domain.ForecastData{domain.Temperature2m: f64(293.15)}),
		record("20241020", 15, domain.ForecastData{domain.Temperature2m: f64(298.15)}),
		record("20241021", 0, domain.ForecastData{domain.Temperature2m: f64(283.15)}),
	}}
	svc := query.NewService(fakePlaces{"athens": athens}, recs, 7)

	daily, err := svc.Daily(context.Background(), "athens")
	require.NoError(t, err)
	require.Len(t, daily.Days, 2)
	assert.Equal(t, "2024-10-20", daily.Days[0].Date)
	require.NotNil(t, daily.Days[0].MaxTemp)
	assert.InDelta(t, 25, *daily.Days[0].MaxTemp, 1e-9)
	assert.InDelta(t, 20, *daily.Days[0].MinTemp, 1e-9)
	assert.Equal(t, "2024-10-21", daily.Days[1].Date)
}

func TestService_Daily_NoRecords(t *testing.T) {
	svc := query.NewService(fakePlaces{"athens": athens}, &fakeRecords{}, 7)
	daily, err := svc.Daily(context.Background(), "athens")
	require.NoError(t, err)
	assert.NotNil(t, daily.Days)
	assert.Empty(t, daily.Days)
}

func TestService_Alerts_UsesEntryInEffect(t *testing.T) {
	freeze(t, time.Date(2024, 10, 20, 13, 30, 0, 0, time.UTC))
	recs := &fakeRecords{recs: []domain.ForecastRecord{
		record("20241020", 9, domain.ForecastData{domain.Temperature2m: f64(290)}),
		record("20241020", 12, domain.ForecastData{domain.Temperature2m: f64(313.15)}),
		record("20241020", 15, domain.ForecastData{domain.Temperature2m: f64(280)}),
	}}
	svc := query.NewService(fakePlaces{"athens": athens}, recs, 7)

	c, err := svc.Alerts(context.Background(), "athens")
	require.NoError(t, err)
	require.NotNil(t, c.Entry)
	assert.Equal(t, 12, c.Entry.Hour)
	assert.Equal(t, "Hot", c.State.Temperature)
	require.Len(t, c.Alerts, 1)
	assert.Equal(t, "High Temperature", c.Alerts[0].Title)
	assert.Equal(t, weather.LevelWarning, c.Alerts[0].Level)
}

func TestService_Alerts_FutureOnly(t *testing.T) {
	freeze(t, time.Date(2024, 10, 20, 1, 0, 0, 0, time.UTC))
	recs := &fakeRecords{recs: []domain.ForecastRecord{
		record("20241020", 6, domain.ForecastData{domain.Temperature2m: f64(290)}),
		record("20241020", 9, domain.ForecastData{domain.Temperature2m: f64(291)}),
	}}
	svc := query.NewService(fakePlaces{"athens": athens}, recs, 7)

	c, err := svc.Alerts(context.Background(), "athens")
	require.NoError(t, err)
	require.NotNil(t, c.Entry)
	assert.Equal(t, 6, c.Entry.Hour)
	assert.Empty(t, c.Alerts)
}

func TestService_Alerts_NoRecords(t *testing.T) {
	svc := query.NewService(fakePlaces{"athens": athens}, &fakeRecords{}, 7)
	c, err := svc.Alerts(context.Background(), "athens")
	require.NoError(t, err)
	assert.Nil(t, c.Entry)
	assert.NotNil(t, c.Alerts)
	assert.Empty(t, c.Alerts)
}
