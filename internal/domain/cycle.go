package domain

import (
	"fmt"
	"time"
)

const (
	// MaxForecastHour is the last forecast hour GFS publishes.
	MaxForecastHour = 384
	hourlyUntil     = 120
	coarseStep      = 3
)

// Cycle is one GFS model run: an initialization date and one of the
// four synoptic hours.
type Cycle struct {
	Date time.Time
	Hour int
}

// IsCycleHour reports whether h is one of 00, 06, 12 or 18.
func IsCycleHour(h int) bool {
	return h >= 0 && h < 24 && h%6 == 0
}

// CycleAt builds a cycle from any instant on its date and its hour.
func CycleAt(date time.Time, hour int) Cycle {
	return Cycle{Date: DateOf(date), Hour: hour}
}

// Time is the cycle's initialization instant.
func (c Cycle) Time() time.Time {
	return c.Date.Add(time.Duration(c.Hour) * time.Hour)
}

// DateString formats the cycle date as YYYYMMDD.
func (c Cycle) DateString() string {
	return c.Date.Format("20060102")
}

// HourString formats the cycle hour as HH.
func (c Cycle) HourString() string {
	return fmt.Sprintf("%02d", c.Hour)
}

// DirName is the per-cycle staging directory name, YYYYMMDD_HH.
func (c Cycle) DirName() string {
	return c.DateString() + "_" + c.HourString()
}

func (c Cycle) String() string {
	return c.DirName()
}

// ParseCycleDir parses a YYYYMMDD_HH staging directory name.
func ParseCycleDir(name string) (Cycle, error) {
	t, err := time.Parse("20060102_15", name)
	if err != nil {
		return Cycle{}, fmt.Errorf("parse cycle directory %q: %w", name, err)
	}
	if !IsCycleHour(t.Hour()) {
		return Cycle{}, fmt.Errorf("parse cycle directory %q: hour %d is not a cycle hour", name, t.Hour())
	}
	return CycleAt(t, t.Hour()), nil
}

// ForecastHours lists the forecast offsets to fetch up to last: hourly
// through 120, then every third hour, never past MaxForecastHour.
func ForecastHours(last int) []int {
	if last < 0 {
		return nil
	}
	if last > MaxForecastHour {
		last = MaxForecastHour
	}
	hours := make([]int, 0, hourlyUntil+1+(MaxForecastHour-hourlyUntil)/coarseStep)
	for h := 0; h <= last && h <= hourlyUntil; h++ {
		hours = append(hours, h)
	}
	for h := hourlyUntil + coarseStep; h <= last; h += coarseStep {
		hours = append(hours, h)
	}
	return hours
}
