package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sellinios/aethra/internal/domain"
)

type placeRow struct {
	ID        int64 `gorm:"primaryKey"`
	Slug      string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation *float64
}

func (placeRow) TableName() string { return "places" }

func (r placeRow) toDomain() domain.Place {
	return domain.Place{
		ID:        r.ID,
		Slug:      r.Slug,
		Name:      r.Name,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Elevation: r.Elevation,
	}
}

type parameterRow struct {
	ID                int64 `gorm:"primaryKey"`
	Number            int
	ParameterCategory int
	LevelLayer        int
	ShortName         string
	Parameter         string
	TypeOfLevel       string
	Description       string
	Enabled           bool
	LastUpdated       time.Time
}

func (parameterRow) TableName() string { return "gfs_parameters" }

func (r parameterRow) toDomain() domain.EnabledParameter {
	return domain.EnabledParameter{
		Number:      r.Number,
		Category:    r.ParameterCategory,
		Level:       r.LevelLayer,
		ShortName:   r.ShortName,
		Parameter:   r.Parameter,
		TypeOfLevel: r.TypeOfLevel,
		Description: r.Description,
		Enabled:     r.Enabled,
		LastUpdated: r.LastUpdated,
	}
}

type forecastRow struct {
	ID           int64 `gorm:"primaryKey"`
	PlaceID      int64
	Date         time.Time
	Hour         int
	UTCCycleTime string `gorm:"column:utc_cycle_time"`
	Latitude     float64
	Longitude    float64
	ForecastData fieldValues `gorm:"column:forecast_data"`
}

func (forecastRow) TableName() string { return "forecast_records" }

func (r forecastRow) key() domain.RecordKey {
	return domain.RecordKey{PlaceID: r.PlaceID, Date: domain.DateOf(r.Date), Hour: r.Hour, UTCCycleTime: r.UTCCycleTime}
}

func (r forecastRow) toDomain() domain.ForecastRecord {
	return domain.ForecastRecord{
		PlaceID:      r.PlaceID,
		Date:         domain.DateOf(r.Date),
		Hour:         r.Hour,
		UTCCycleTime: r.UTCCycleTime,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Data:         domain.ForecastData(r.ForecastData),
	}
}

// fieldValues is the JSON column form of domain.ForecastData. Keys are
// written in their storage string form.
type fieldValues map[domain.FieldKey]*float64

func (fieldValues) GormDataType() string { return "json" }

func (v fieldValues) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[domain.FieldKey]*float64(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *fieldValues) Scan(src any) error {
	var b []byte
	switch s := src.(type) {
	case nil:
		*v = fieldValues{}
		return nil
	case []byte:
		b = s
	case string:
		b = []byte(s)
	default:
		return fmt.Errorf("forecast_data: unsupported type %T", src)
	}
	m := map[domain.FieldKey]*float64{}
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("forecast_data: %w", err)
	}
	*v = m
	return nil
}
