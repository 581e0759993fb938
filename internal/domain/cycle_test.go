package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastHours(t *testing.T) {
	t.Run("short range is hourly", func(t *testing.T) {
		assert.Equal(t, []int{0, 1, 2, 3}, ForecastHours(3))
	})

	t.Run("120 stays hourly", func(t *testing.T) {
		hours := ForecastHours(120)
		assert.Len(t, hours, 121)
		assert.Equal(t, 120, hours[len(hours)-1])
	})

	t.Run("past 120 steps by three", func(t *testing.T) {
		hours := ForecastHours(130)
		assert.Equal(t, []int{123, 126, 129}, hours[121:])
	})

	t.Run("capped at 384", func(t *testing.T) {
		hours := ForecastHours(385)
		assert.Len(t, hours, 121+88)
		assert.Equal(t, 384, hours[len(hours)-1])
	})

	t.Run("negative is empty", func(t *testing.T) {
		assert.Empty(t, ForecastHours(-1))
	})
}

func TestCycle_Names(t *testing.T) {
	c := CycleAt(time.Date(2024, 10, 18, 14, 30, 0, 0, time.UTC), 12)

	assert.Equal(t, "20241018", c.DateString())
	assert.Equal(t, "12", c.HourString())
	assert.Equal(t, "20241018_12", c.DirName())
	assert.Equal(t, time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC), c.Time())
}

func TestParseCycleDir(t *testing.T) {
	c, err := ParseCycleDir("20241019_06")
	require.NoError(t, err)
	assert.Equal(t, CycleAt(time.Date(2024, 10, 19, 0, 0, 0, 0, time.UTC), 6), c)

	_, err = ParseCycleDir("20241019_07")
	require.Error(t, err)

	_, err = ParseCycleDir("combined_data")
	require.Error(t, err)
}

func TestRawFileName_RoundTrip(t *testing.T) {
	c := CycleAt(time.Date(2024, 10, 18, 0, 0, 0, 0, time.UTC), 18)
	name := RawFileName(c, 7)
	assert.Equal(t, "gfs_20241018_18_007.grib2", name)

	got, fh, err := ParseRawFileName(name)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, 7, fh)

	for _, bad := range []string{"gfs.t18z.pgrb2.0p25.f007", "gfs_20241018_18.grib2", "gfs_20241018_18_abc.grib2"} {
		_, _, err := ParseRawFileName(bad)
		assert.Error(t, err, bad)
	}
}

func TestRemoteFileName(t *testing.T) {
	c := CycleAt(time.Date(2024, 10, 18, 0, 0, 0, 0, time.UTC), 6)
	assert.Equal(t, "gfs.t06z.pgrb2.0p25.f123", RemoteFileName(c, 123))
}

func TestFilteredFileName_RecoversCycle(t *testing.T) {
	valid := time.Date(2024, 10, 19, 3, 0, 0, 0, time.UTC)
	name := FilteredFileName(valid, 15)
	assert.Equal(t, "filtered_20241019_0300_f015.grib2", name)

	f, err := ParseFilteredFileName(name)
	require.NoError(t, err)
	assert.Equal(t, valid, f.Valid)
	assert.Equal(t, 15, f.ForecastHour)
	assert.Equal(t, "12", f.UTCCycleTime())
	assert.Equal(t, "20241018_12", f.Cycle().DirName())
}

func TestParseFilteredFileName_Invalid(t *testing.T) {
	for _, bad := range []string{
		"gfs_20241018_18_007.grib2",
		"filtered_20241019_0300_015.grib2",
		"filtered_20241019_0300_f015.grb",
		"filtered_2024101_0300_f015.grib2",
	} {
		_, err := ParseFilteredFileName(bad)
		assert.Error(t, err, bad)
	}
}
