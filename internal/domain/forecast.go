package domain

import "time"

// ForecastData maps parameter fields to values. A nil value is a masked
// grid point, not zero.
type ForecastData map[FieldKey]*float64

// Merge copies other into d; values from other win on shared keys.
func (d ForecastData) Merge(other ForecastData) {
	for k, v := range other {
		d[k] = v
	}
}

// Value returns the field value, or nil when missing or masked.
func (d ForecastData) Value(k FieldKey) *float64 {
	return d[k]
}

// Clone returns a shallow copy with its own map.
func (d ForecastData) Clone() ForecastData {
	out := make(ForecastData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// RecordKey is the natural key of a forecast record.
type RecordKey struct {
	PlaceID      int64
	Date         time.Time
	Hour         int
	UTCCycleTime string
}

// ForecastRecord is the per-place, per-valid-hour fact written by the importer.
type ForecastRecord struct {
	PlaceID      int64
	Date         time.Time
	Hour         int
	UTCCycleTime string
	Latitude     float64
	Longitude    float64
	Data         ForecastData
}

// Key returns the record's natural key.
func (r ForecastRecord) Key() RecordKey {
	return RecordKey{PlaceID: r.PlaceID, Date: DateOf(r.Date), Hour: r.Hour, UTCCycleTime: r.UTCCycleTime}
}

// MergeResult counts rows touched by one merge batch.
type MergeResult struct {
	Inserted int
	Updated  int
}

// ImportReport summarizes the import of one filtered file.
type ImportReport struct {
	File             string    `json:"file"`
	Cycle            string    `json:"cycle"`
	Valid            time.Time `json:"valid_time"`
	ForecastHour     int       `json:"forecast_hour"`
	MessagesImported int       `json:"messages_imported"`
	MessagesFailed   int       `json:"messages_failed"`
	RecordsInserted  int       `json:"records_inserted"`
	RecordsUpdated   int       `json:"records_updated"`
	ImportedAt       time.Time `json:"imported_at"`
}
