package weather

// StormBands map convective precipitation rate (kg/m²/s) to a storm
// probability in percent. Rates at or below zero mean no convection.
var StormBands = Bands[int]{
	{negInf, above(0), 0},
	{above(0), 0.0001, 20},
	{0.0001, 0.0005, 40},
	{0.0005, 0.001, 60},
	{0.001, 0.005, 80},
	{0.005, posInf, 100},
}

// FloodThreshold is the storm probability at which an entry is flagged as
// a flood risk.
const FloodThreshold = 80

// StormProbability returns the storm probability for a convective
// precipitation rate, or nil when the rate is missing.
func StormProbability(rate *float64) *int {
	if rate == nil {
		return nil
	}
	p, ok := StormBands.Lookup(*rate)
	if !ok {
		return nil
	}
	return &p
}
