package domain

// Place is a registered geographic point forecasts are sampled for.
type Place struct {
	ID        int64    `json:"id"`
	Slug      string   `json:"slug"`
	Name      string   `json:"name"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation"`
}

// ElevationOrZero treats an unknown elevation as sea level.
func (p Place) ElevationOrZero() float64 {
	if p.Elevation == nil {
		return 0
	}
	return *p.Elevation
}
