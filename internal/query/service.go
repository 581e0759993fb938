// Package query serves derived weather views of stored forecasts for a
// single place.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/weather"
)

// PlaceFinder looks up a place by slug.
type PlaceFinder interface {
	BySlug(ctx context.Context, slug string) (domain.Place, error)
}

// RecordLister returns a place's forecast records between two dates,
// inclusive, ordered by date and hour.
type RecordLister interface {
	ListForPlace(ctx context.Context, placeID int64, from, to time.Time) ([]domain.ForecastRecord, error)
}

// Forecast is the hourly weather view for a place.
type Forecast struct {
	Place   domain.Place    `json:"place"`
	Entries []weather.Entry `json:"entries"`
}

// DailyForecast is the per-day aggregate view for a place.
type DailyForecast struct {
	Place domain.Place    `json:"place"`
	Days  []weather.Daily `json:"days"`
}

// Conditions is the current state of a place with any alerts it raises.
type Conditions struct {
	Place  domain.Place    `json:"place"`
	Entry  *weather.Entry  `json:"entry"`
	State  weather.State   `json:"weather_state"`
	Alerts []weather.Alert `json:"alerts"`
}

// Service answers forecast queries for places.
type Service struct {
	places  PlaceFinder
	records RecordLister
	days    int
}

// NewService creates a query service that looks days ahead of today.
func NewService(places PlaceFinder, records RecordLister, days int) *Service {
	if days < 0 {
		days = 0
	}
	return &Service{places: places, records: records, days: days}
}

func (s *Service) load(ctx context.Context, slug string) (domain.Place, []domain.ForecastRecord, error) {
	place, err := s.places.BySlug(ctx, slug)
	if err != nil {
		return domain.Place{}, nil, err
	}
	today := domain.DateOf(domain.Now())
	recs, err := s.records.ListForPlace(ctx, place.ID, today, today.AddDate(0, 0, s.days))
	if err != nil {
		return place, nil, fmt.Errorf("list forecasts for %s: %w", slug, err)
	}
	return place, recs, nil
}

// Weather returns one entry per stored hour from today onward.
func (s *Service) Weather(ctx context.Context, slug string) (Forecast, error) {
	place, recs, err := s.load(ctx, slug)
	if err != nil {
		return Forecast{}, err
	}
	entries := make([]weather.Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, weather.BuildEntry(place, rec))
	}
	return Forecast{Place: place, Entries: entries}, nil
}

// Daily aggregates the stored records into calendar days.
func (s *Service) Daily(ctx context.Context, slug string) (DailyForecast, error) {
	place, recs, err := s.load(ctx, slug)
	if err != nil {
		return DailyForecast{}, err
	}
	days := weather.AggregateDaily(place, recs, domain.Now())
	if days == nil {
		days = []weather.Daily{}
	}
	return DailyForecast{Place: place, Days: days}, nil
}

// Alerts evaluates the entry in effect now: the latest one at or before
// the current time, or the first future one when none has started yet.
// A place with no stored records has a nil entry and no alerts.
func (s *Service) Alerts(ctx context.Context, slug string) (Conditions, error) {
	place, recs, err := s.load(ctx, slug)
	if err != nil {
		return Conditions{}, err
	}
	out := Conditions{Place: place, Alerts: []weather.Alert{}}
	if len(recs) == 0 {
		return out, nil
	}

	now := domain.Now()
	current := weather.BuildEntry(place, recs[0])
	for _, rec := range recs[1:] {
		e := weather.BuildEntry(place, rec)
		if e.Time.After(now) {
			break
		}
		current = e
	}
	out.Entry = &current
	out.State = current.State
	out.Alerts = weather.GenerateAlerts(current)
	return out, nil
}
