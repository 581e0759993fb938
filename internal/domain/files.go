package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawFileName is the local name of a downloaded grid file.
func RawFileName(c Cycle, forecastHour int) string {
	return fmt.Sprintf("gfs_%s_%s_%03d.grib2", c.DateString(), c.HourString(), forecastHour)
}

// ParseRawFileName recovers the cycle and forecast hour from a RawFileName.
func ParseRawFileName(name string) (Cycle, int, error) {
	rest, ok := strings.CutPrefix(name, "gfs_")
	if !ok {
		return Cycle{}, 0, fmt.Errorf("raw file name %q: missing gfs_ prefix", name)
	}
	rest, ok = strings.CutSuffix(rest, ".grib2")
	if !ok {
		return Cycle{}, 0, fmt.Errorf("raw file name %q: missing .grib2 suffix", name)
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 3 {
		return Cycle{}, 0, fmt.Errorf("raw file name %q: want gfs_YYYYMMDD_HH_FFF.grib2", name)
	}
	c, err := ParseCycleDir(parts[0] + "_" + parts[1])
	if err != nil {
		return Cycle{}, 0, err
	}
	fh, err := strconv.Atoi(parts[2])
	if err != nil || fh < 0 || fh > MaxForecastHour {
		return Cycle{}, 0, fmt.Errorf("raw file name %q: bad forecast hour", name)
	}
	return c, fh, nil
}

// RemoteFileName is the NOMADS 0.25 degree pressure-level file name.
func RemoteFileName(c Cycle, forecastHour int) string {
	return fmt.Sprintf("gfs.t%sz.pgrb2.0p25.f%03d", c.HourString(), forecastHour)
}

// FilteredFileName encodes the valid time and forecast hour of a filtered file.
func FilteredFileName(valid time.Time, forecastHour int) string {
	return fmt.Sprintf("filtered_%s_f%03d.grib2", valid.UTC().Format("20060102_1504"), forecastHour)
}

// FilteredFile is what a filtered file name says about its contents.
type FilteredFile struct {
	Valid        time.Time
	ForecastHour int
}

// Cycle is the run the file came from: valid time minus the forecast offset.
func (f FilteredFile) Cycle() Cycle {
	start := f.Valid.Add(-time.Duration(f.ForecastHour) * time.Hour)
	return CycleAt(start, start.Hour())
}

// UTCCycleTime is the cycle hour as stored on forecast records.
func (f FilteredFile) UTCCycleTime() string {
	return f.Cycle().HourString()
}

// ParseFilteredFileName recovers valid time and forecast hour from a FilteredFileName.
func ParseFilteredFileName(name string) (FilteredFile, error) {
	rest, ok := strings.CutPrefix(name, "filtered_")
	if !ok {
		return FilteredFile{}, fmt.Errorf("filtered file name %q: missing filtered_ prefix", name)
	}
	rest, ok = strings.CutSuffix(rest, ".grib2")
	if !ok {
		return FilteredFile{}, fmt.Errorf("filtered file name %q: missing .grib2 suffix", name)
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "f") {
		return FilteredFile{}, fmt.Errorf("filtered file name %q: want filtered_YYYYMMDD_HHMM_fFFF.grib2", name)
	}
	valid, err := time.Parse("20060102_1504", parts[0]+"_"+parts[1])
	if err != nil {
		return FilteredFile{}, fmt.Errorf("filtered file name %q: %w", name, err)
	}
	fh, err := strconv.Atoi(parts[2][1:])
	if err != nil || fh < 0 || fh > MaxForecastHour {
		return FilteredFile{}, fmt.Errorf("filtered file name %q: bad forecast hour", name)
	}
	return FilteredFile{Valid: valid.UTC(), ForecastHour: fh}, nil
}
