package weather

import "math"

// Wind is the derived wind at 10 m. All fields are nil when either
// component is missing.
type Wind struct {
	Speed     *float64 `json:"speed_m_s"`
	Direction *string  `json:"direction"`
	Beaufort  *int     `json:"beaufort"`
}

// CompassSectors are the 16 points of the compass, clockwise from north.
var CompassSectors = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// BeaufortScale maps wind speed in m/s to Beaufort force.
var BeaufortScale = Bands[int]{
	{0, 0.3, 0},
	{0.3, 1.6, 1},
	{1.6, 3.4, 2},
	{3.4, 5.5, 3},
	{5.5, 8.0, 4},
	{8.0, 10.8, 5},
	{10.8, 13.9, 6},
	{13.9, 17.2, 7},
	{17.2, 20.8, 8},
	{20.8, 24.5, 9},
	{24.5, 28.5, 10},
	{28.5, 32.7, 11},
	{32.7, posInf, 12},
}

// CalculateWind derives speed, meteorological direction (where the wind
// blows from) and Beaufort force from the u and v components.
func CalculateWind(u, v *float64) Wind {
	if u == nil || v == nil {
		return Wind{}
	}
	speed := round2(math.Hypot(*u, *v))
	dir := CompassSector(WindDirectionDegrees(*u, *v))
	force, _ := BeaufortScale.Lookup(speed)
	return Wind{Speed: &speed, Direction: &dir, Beaufort: &force}
}

// WindDirectionDegrees is the direction the wind comes from, in [0, 360).
func WindDirectionDegrees(u, v float64) float64 {
	deg := math.Atan2(-u, -v) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// CompassSector maps degrees to one of the 16 compass sectors.
func CompassSector(deg float64) string {
	idx := int((deg+11.25)/22.5) % len(CompassSectors)
	return CompassSectors[idx]
}
