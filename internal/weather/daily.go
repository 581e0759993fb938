package weather

import (
	"sort"
	"time"

	"github.com/sellinios/aethra/internal/domain"
)

// Daily aggregates one calendar day of forecast records.
type Daily struct {
	Date             string   `json:"date"`
	MaxTemp          *float64 `json:"max_temp"`
	MinTemp          *float64 `json:"min_temp"`
	AvgCloudCover    *float64 `json:"avg_cloud_cover"`
	MaxPrecipitation *float64 `json:"max_precipitation"`
	// WindUAvg is the mean of the 10 m u-component, not of wind speed.
	WindUAvg *float64 `json:"wind_u_avg"`
}

type dayAccumulator struct {
	temp, precip stat
	cloud, windU stat
}

// stat tracks max, min and mean of the non-nil values it sees.
type stat struct {
	n             int
	sum, max, min float64
}

func (s *stat) add(v *float64) {
	if v == nil {
		return
	}
	if s.n == 0 || *v > s.max {
		s.max = *v
	}
	if s.n == 0 || *v < s.min {
		s.min = *v
	}
	s.sum += *v
	s.n++
}

func (s stat) maxValue() *float64 {
	if s.n == 0 {
		return nil
	}
	return ptr(round2(s.max))
}

func (s stat) minValue() *float64 {
	if s.n == 0 {
		return nil
	}
	return ptr(round2(s.min))
}

func (s stat) mean() *float64 {
	if s.n == 0 {
		return nil
	}
	return ptr(round2(s.sum / float64(s.n)))
}

// AggregateDaily groups records by calendar date, from the given day
// onward, in date order. Temperatures are elevation-adjusted before
// aggregation.
func AggregateDaily(place domain.Place, records []domain.ForecastRecord, from time.Time) []Daily {
	from = domain.DateOf(from)
	days := make(map[time.Time]*dayAccumulator)
	for _, rec := range records {
		date := domain.DateOf(rec.Date)
		if date.Before(from) {
			continue
		}
		acc, ok := days[date]
		if !ok {
			acc = &dayAccumulator{}
			days[date] = acc
		}
		temp := AdjustTemperature(rec.Data.Value(domain.Temperature2m), place.ElevationOrZero())
		acc.temp.add(temp)
		acc.cloud.add(rec.Data.Value(domain.LowCloudCover))
		acc.precip.add(rec.Data.Value(domain.TotalPrecipitation))
		acc.windU.add(rec.Data.Value(domain.WindU10m))
	}

	dates := make([]time.Time, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]Daily, 0, len(dates))
	for _, d := range dates {
		acc := days[d]
		out = append(out, Daily{
			Date:             d.Format(time.DateOnly),
			MaxTemp:          acc.temp.maxValue(),
			MinTemp:          acc.temp.minValue(),
			AvgCloudCover:    acc.cloud.mean(),
			MaxPrecipitation: acc.precip.maxValue(),
			WindUAvg:         acc.windU.mean(),
		})
	}
	return out
}
