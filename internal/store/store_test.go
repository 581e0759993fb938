package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sellinios/aethra/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "aethra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func seedPlaces(t *testing.T, db *DB, places ...domain.Place) []domain.Place {
	t.Helper()
	require.NoError(t, NewPlaces(db).Upsert(context.Background(), places))
	return places
}

func f(v float64) *float64 { return &v }

var day = time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC)

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.CheckReadiness(context.Background()))
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	require.Error(t, err)
}

func TestPlaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	elev := 150.0
	places := seedPlaces(t, db,
		domain.Place{Slug: "athens", Name: "Athens", Latitude: 37.98, Longitude: 23.73, Elevation: &elev},
		domain.Place{Slug: "patras", Name: "Patras", Latitude: 38.25, Longitude: 21.73},
	)
	require.NotZero(t, places[0].ID)
	require.NotZero(t, places[1].ID)

	repo := NewPlaces(db)
	got, err := repo.BySlug(ctx, "athens")
	require.NoError(t, err)
	if diff := cmp.Diff(places[0], got); diff != "" {
		t.Errorf("BySlug mismatch (-want +got):\n%s", diff)
	}

	_, err = repo.BySlug(ctx, "atlantis")
	require.ErrorIs(t, err, domain.ErrPlaceNotFound)

	// Upserting by slug keeps the id.
	moved := domain.Place{Slug: "patras", Name: "Patra", Latitude: 38.24, Longitude: 21.74}
	require.NoError(t, repo.Upsert(ctx, []domain.Place{moved}))
	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, places[1].ID, all[1].ID)
	assert.Equal(t, "Patra", all[1].Name)
	assert.Nil(t, all[1].Elevation)
}

func TestParameters_UpsertAndEnabledKeys(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewParameters(db)

	scanned := []domain.EnabledParameter{
		{Number: 0, Category: 0, Level: 2, ShortName: "2t", Parameter: "Temperature", TypeOfLevel: "heightAboveGround", Description: "2 metre temperature"},
		{Number: 8, Category: 1, Level: 0, ShortName: "tp", Parameter: "Total precipitation", TypeOfLevel: "surface", Description: "Total Precipitation"},
		{Number: 8, Category: 1, Level: 0, ShortName: "tp", Parameter: "Total precipitation", TypeOfLevel: "surface", Description: "Total Precipitation"},
	}
	n, err := repo.Upsert(ctx, scanned, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := repo.EnabledKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Seeding sets flags.
	seed := scanned[:1]
	seed[0].Enabled = true
	_, err = repo.Upsert(ctx, seed, true)
	require.NoError(t, err)

	// A later scan does not reset the flag.
	rescan := []domain.EnabledParameter{scanned[0]}
	rescan[0].Enabled = false
	_, err = repo.Upsert(ctx, rescan, false)
	require.NoError(t, err)

	keys, err = repo.EnabledKeys(ctx)
	require.NoError(t, err)
	assert.True(t, keys.Contains(domain.NewParameterKey(0, 2, "2T", "2 Metre Temperature")))
	assert.Len(t, keys, 1)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2t", list[0].ShortName)
	assert.True(t, list[0].Enabled)
	assert.False(t, list[1].Enabled)
}

func record(placeID int64, hour int, cycle string, data domain.ForecastData) domain.ForecastRecord {
	return domain.ForecastRecord{
		PlaceID:      placeID,
		Date:         day,
		Hour:         hour,
		UTCCycleTime: cycle,
		Latitude:     38,
		Longitude:    23.75,
		Data:         data,
	}
}

func TestForecasts_MergeBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	places := seedPlaces(t, db, domain.Place{Slug: "a", Latitude: 38, Longitude: 23.7}, domain.Place{Slug: "b", Latitude: 40, Longitude: 22.9})
	repo := NewForecasts(db)

	res, err := repo.MergeBatch(ctx, []domain.ForecastRecord{
		record(places[0].ID, 6, "00", domain.ForecastData{domain.Temperature2m: f(290)}),
		record(places[1].ID, 6, "00", domain.ForecastData{domain.Temperature2m: f(285)}),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MergeResult{Inserted: 2}, res)

	// A second parameter merges into the same rows.
	res, err = repo.MergeBatch(ctx, []domain.ForecastRecord{
		record(places[0].ID, 6, "00", domain.ForecastData{domain.TotalPrecipitation: f(1.5)}),
		record(places[1].ID, 6, "00", domain.ForecastData{domain.TotalPrecipitation: nil}),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MergeResult{Updated: 2}, res)

	got, err := repo.ListForPlace(ctx, places[1].ID, day, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	want := domain.ForecastData{domain.Temperature2m: f(285), domain.TotalPrecipitation: nil}
	if diff := cmp.Diff(want, got[0].Data); diff != "" {
		t.Errorf("merged data mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, day, got[0].Date)
	assert.Equal(t, "00", got[0].UTCCycleTime)

	// Re-importing the same values changes nothing.
	_, err = repo.MergeBatch(ctx, []domain.ForecastRecord{
		record(places[1].ID, 6, "00", domain.ForecastData{domain.Temperature2m: f(285)}),
	})
	require.NoError(t, err)
	again, err := repo.ListForPlace(ctx, places[1].ID, day, day)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(got, again))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestForecasts_MergeBatchDuplicateKeysInBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	places := seedPlaces(t, db, domain.Place{Slug: "a", Latitude: 38, Longitude: 23.7})
	repo := NewForecasts(db)

	res, err := repo.MergeBatch(ctx, []domain.ForecastRecord{
		record(places[0].ID, 0, "00", domain.ForecastData{domain.WindU10m: f(1)}),
		record(places[0].ID, 0, "00", domain.ForecastData{domain.WindV10m: f(2)}),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MergeResult{Inserted: 1}, res)

	got, err := repo.ListForPlace(ctx, places[0].ID, day, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Data, 2)
}

func TestForecasts_ListOrderAndDeleteBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	places := seedPlaces(t, db, domain.Place{Slug: "a", Latitude: 38, Longitude: 23.7})
	id := places[0].ID
	repo := NewForecasts(db)

	mk := func(date time.Time, hour int, cycle string) domain.ForecastRecord {
		r := record(id, hour, cycle, domain.ForecastData{domain.Temperature2m: f(280)})
		r.Date = date
		return r
	}
	_, err := repo.MergeBatch(ctx, []domain.ForecastRecord{
		mk(day, 12, "06"),
		mk(day, 12, "00"),
		mk(day, 3, "00"),
		mk(day.AddDate(0, 0, -1), 23, "18"),
		mk(day.AddDate(0, 0, -2), 0, "00"),
		mk(day.AddDate(0, 0, 1), 0, "00"),
	})
	require.NoError(t, err)

	got, err := repo.ListForPlace(ctx, id, day.AddDate(0, 0, -1), day)
	require.NoError(t, err)
	type slot struct {
		date  string
		hour  int
		cycle string
	}
	var order []slot
	for _, r := range got {
		order = append(order, slot{r.Date.Format("0102"), r.Hour, r.UTCCycleTime})
	}
	assert.Equal(t, []slot{{"1019", 23, "18"}, {"1020", 3, "00"}, {"1020", 12, "00"}, {"1020", 12, "06"}}, order)

	deleted, err := repo.DeleteBefore(ctx, day.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestFieldValues_Scan(t *testing.T) {
	var v fieldValues
	require.NoError(t, v.Scan([]byte(`{"2t_level_2_heightAboveGround":290.5,"tp_level_0_surface":null}`)))
	assert.Equal(t, 290.5, *v[domain.Temperature2m])
	assert.Contains(t, v, domain.TotalPrecipitation)
	assert.Nil(t, v[domain.TotalPrecipitation])

	require.NoError(t, v.Scan(`{}`))
	assert.Empty(t, v)
	require.NoError(t, v.Scan(nil))
	assert.Empty(t, v)
	require.Error(t, v.Scan(42))
	require.Error(t, v.Scan(`{"bogus":1}`))

	val, err := fieldValues(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", val)
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	g, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return New(g, DriverPostgres), mock
}

func TestMergeBatch_PersistenceFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "forecast_records" .* FOR UPDATE`).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := NewForecasts(db).MergeBatch(context.Background(), []domain.ForecastRecord{
		record(1, 0, "00", domain.ForecastData{domain.Temperature2m: f(280)}),
	})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckReadiness_PingFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("no route to host"))

	err := db.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
	assert.NoError(t, mock.ExpectationsWereMet())
}
