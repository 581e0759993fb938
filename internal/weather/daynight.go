package weather

import (
	"math"
	"time"
)

// Phase is whether the sun is up.
type Phase string

const (
	Day   Phase = "day"
	Night Phase = "night"
)

const (
	julianUnixEpoch = 2440587.5
	julian2000      = 2451545.0
	secondsPerDay   = 86400.0
	obliquity       = 23.4397
	// Apparent sunset: refraction plus the solar disc radius.
	horizonAltitude = -0.833
)

type sunKind int

const (
	sunNormal sunKind = iota
	sunAlwaysUp
	sunAlwaysDown
)

type sunTimes struct {
	kind      sunKind
	rise, set time.Time
}

// DayOrNight reports whether t falls between sunrise and sunset at the given
// position. Sunrise and sunset are evaluated for the UTC date of t and its
// neighbours, so daylight spanning UTC midnight is handled. Polar day and
// night are resolved explicitly. Coordinates that cannot be evaluated fall
// back to Day.
func DayOrNight(t time.Time, lat, lon float64) Phase {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) || lat < -90 || lat > 90 {
		return Day
	}
	t = t.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	if st := sunOn(date, lat, lon); st.kind == sunAlwaysUp {
		return Day
	}
	for _, offset := range []int{-1, 0, 1} {
		st := sunOn(date.AddDate(0, 0, offset), lat, lon)
		if st.kind == sunNormal && !t.Before(st.rise) && !t.After(st.set) {
			return Day
		}
	}
	return Night
}

// sunOn evaluates the sunrise equation for the solar transit nearest the
// given UTC date at longitude lon.
func sunOn(date time.Time, lat, lon float64) sunTimes {
	jd := float64(date.Unix())/secondsPerDay + julianUnixEpoch
	n := math.Ceil(jd - julian2000 + 0.0008)
	jStar := n - lon/360

	m := math.Mod(357.5291+0.98560028*jStar, 360)
	mRad := rad(m)
	c := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)
	lambda := rad(math.Mod(m+c+180+102.9372, 360))
	transit := julian2000 + jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambda)

	sinDecl := math.Sin(lambda) * math.Sin(rad(obliquity))
	cosDecl := math.Cos(math.Asin(sinDecl))
	phi := rad(lat)
	cosHour := (math.Sin(rad(horizonAltitude)) - math.Sin(phi)*sinDecl) / (math.Cos(phi) * cosDecl)

	switch {
	case cosHour > 1:
		return sunTimes{kind: sunAlwaysDown}
	case cosHour < -1:
		return sunTimes{kind: sunAlwaysUp}
	}
	half := math.Acos(cosHour) * 180 / math.Pi / 360
	return sunTimes{
		kind: sunNormal,
		rise: julianToTime(transit - half),
		set:  julianToTime(transit + half),
	}
}

func julianToTime(jd float64) time.Time {
	sec := (jd - julianUnixEpoch) * secondsPerDay
	whole := math.Floor(sec)
	return time.Unix(int64(whole), int64((sec-whole)*1e9)).UTC()
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}
