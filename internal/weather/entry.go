package weather

import (
	"time"

	"github.com/sellinios/aethra/internal/domain"
)

// Entry is the derived weather view of one forecast record.
type Entry struct {
	Time             time.Time `json:"datetime"`
	Date             string    `json:"date"`
	Hour             int       `json:"hour"`
	UTCCycleTime     string    `json:"utc_cycle_time"`
	Temperature      *float64  `json:"temperature_celsius"`
	Humidity         *float64  `json:"relative_humidity_percent"`
	Precipitation    *float64  `json:"total_precipitation_mm"`
	ConvectiveRate   *float64  `json:"convective_precipitation_rate"`
	StormProbability *int      `json:"storm_probability_percent"`
	Wind             Wind      `json:"wind"`
	Pressure         *float64  `json:"pressure_hpa"`
	CloudCover       *float64  `json:"low_cloud_cover_percent"`
	DayOrNight       Phase     `json:"day_or_night"`
	State            State     `json:"weather_state"`
	Flood            bool      `json:"flood"`
}

// BuildEntry derives the weather view of rec for place.
func BuildEntry(place domain.Place, rec domain.ForecastRecord) Entry {
	data := rec.Data
	date := domain.DateOf(rec.Date)
	at := date.Add(time.Duration(rec.Hour) * time.Hour)

	e := Entry{
		Time:           at,
		Date:           date.Format(time.DateOnly),
		Hour:           rec.Hour,
		UTCCycleTime:   rec.UTCCycleTime,
		Temperature:    AdjustTemperature(data.Value(domain.Temperature2m), place.ElevationOrZero()),
		Humidity:       data.Value(domain.Humidity2m),
		Precipitation:  Precipitation(data.Value(domain.TotalPrecipitation)),
		ConvectiveRate: data.Value(domain.ConvectivePrecip),
		Wind:           CalculateWind(data.Value(domain.WindU10m), data.Value(domain.WindV10m)),
		Pressure:       PressureHPa(data.Value(domain.PressureMSL)),
		CloudCover:     data.Value(domain.LowCloudCover),
		DayOrNight:     DayOrNight(at, place.Latitude, place.Longitude),
	}
	e.StormProbability = StormProbability(e.ConvectiveRate)
	e.Flood = e.StormProbability != nil && *e.StormProbability >= FloodThreshold
	e.State = ClassifyState(StateInput{
		Temperature:   e.Temperature,
		Precipitation: e.Precipitation,
		CloudCover:    e.CloudCover,
		WindSpeed:     e.Wind.Speed,
		Flood:         e.Flood,
	})
	return e
}
