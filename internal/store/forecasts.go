package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sellinios/aethra/internal/domain"
)

// Forecasts is the forecast record repository.
type Forecasts struct {
	db *DB
}

func NewForecasts(db *DB) *Forecasts {
	return &Forecasts{db: db}
}

// MergeBatch upserts records by natural key. Existing rows get the new
// fields merged into their forecast data, with incoming values winning, and
// their coordinates refreshed. New rows are plain inserts, so a row created
// concurrently elsewhere fails the batch and the caller retries it. The batch
// runs in one transaction; on postgres the existing rows are locked for the
// read-merge-write.
func (f *Forecasts) MergeBatch(ctx context.Context, records []domain.ForecastRecord) (domain.MergeResult, error) {
	var res domain.MergeResult
	if len(records) == 0 {
		return res, nil
	}

	f.db.mergeMu.Lock()
	defer f.db.mergeMu.Unlock()

	err := f.db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := f.lockExisting(tx, records)
		if err != nil {
			return err
		}

		var inserts, updates []*forecastRow
		pending := make(map[domain.RecordKey]*forecastRow, len(records))
		for _, rec := range records {
			key := rec.Key()
			if row, ok := pending[key]; ok {
				row.ForecastData = mergeFields(row.ForecastData, rec.Data)
				row.Latitude, row.Longitude = rec.Latitude, rec.Longitude
				continue
			}
			if row, ok := existing[key]; ok {
				// Updates are upserts on the natural key; the id stays out of the insert.
				row.ID = 0
				row.ForecastData = mergeFields(row.ForecastData, rec.Data)
				row.Latitude, row.Longitude = rec.Latitude, rec.Longitude
				pending[key] = row
				updates = append(updates, row)
				continue
			}
			row := &forecastRow{
				PlaceID:      key.PlaceID,
				Date:         key.Date,
				Hour:         key.Hour,
				UTCCycleTime: key.UTCCycleTime,
				Latitude:     rec.Latitude,
				Longitude:    rec.Longitude,
				ForecastData: mergeFields(nil, rec.Data),
			}
			pending[key] = row
			inserts = append(inserts, row)
		}

		if len(inserts) > 0 {
			if err := tx.Create(&inserts).Error; err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "place_id"}, {Name: "date"}, {Name: "hour"}, {Name: "utc_cycle_time"}},
				DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "forecast_data"}),
			}).Create(&updates).Error
			if err != nil {
				return err
			}
		}
		res = domain.MergeResult{Inserted: len(inserts), Updated: len(updates)}
		return nil
	})
	if err != nil {
		return domain.MergeResult{}, persistErr("merge forecast batch", err)
	}
	return res, nil
}

// lockExisting loads the rows matching the batch keys.
func (f *Forecasts) lockExisting(tx *gorm.DB, records []domain.ForecastRecord) (map[domain.RecordKey]*forecastRow, error) {
	placeIDs := make(map[int64]struct{})
	dates := make(map[time.Time]struct{})
	hours := make(map[int]struct{})
	cycles := make(map[string]struct{})
	want := make(map[domain.RecordKey]struct{}, len(records))
	for _, rec := range records {
		k := rec.Key()
		want[k] = struct{}{}
		placeIDs[k.PlaceID] = struct{}{}
		dates[k.Date] = struct{}{}
		hours[k.Hour] = struct{}{}
		cycles[k.UTCCycleTime] = struct{}{}
	}

	q := tx.Where("place_id IN ? AND date IN ? AND hour IN ? AND utc_cycle_time IN ?",
		keys(placeIDs), keys(dates), keys(hours), keys(cycles))
	if f.db.driver == DriverPostgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []*forecastRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[domain.RecordKey]*forecastRow, len(rows))
	for _, r := range rows {
		if _, ok := want[r.key()]; ok {
			out[r.key()] = r
		}
	}
	return out, nil
}

func mergeFields(dst fieldValues, src domain.ForecastData) fieldValues {
	if dst == nil {
		dst = make(fieldValues, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func keys[K comparable](m map[K]struct{}) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// DeleteBefore removes records dated before cutoff and returns how many.
func (f *Forecasts) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := f.db.gorm.WithContext(ctx).Where("date < ?", domain.DateOf(cutoff)).Delete(&forecastRow{})
	if res.Error != nil {
		return 0, persistErr("delete expired forecasts", res.Error)
	}
	return res.RowsAffected, nil
}

// ListForPlace returns a place's records dated within [from, to], ordered
// by date, hour and cycle.
func (f *Forecasts) ListForPlace(ctx context.Context, placeID int64, from, to time.Time) ([]domain.ForecastRecord, error) {
	var rows []forecastRow
	err := f.db.gorm.WithContext(ctx).
		Where("place_id = ? AND date >= ? AND date <= ?", placeID, domain.DateOf(from), domain.DateOf(to)).
		Order("date, hour, utc_cycle_time").
		Find(&rows).Error
	if err != nil {
		return nil, persistErr("list forecasts", err)
	}
	out := make([]domain.ForecastRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// Count returns the number of stored records.
func (f *Forecasts) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := f.db.gorm.WithContext(ctx).Model(&forecastRow{}).Count(&n).Error; err != nil {
		return 0, persistErr("count forecasts", err)
	}
	return n, nil
}
