package weather

// LapseRate is the temperature drop per metre of elevation, in °C.
const LapseRate = 0.006

const kelvinOffset = 273.15

// AdjustTemperature converts kelvin to °C and corrects for the place's
// elevation in metres. The result is rounded to 2 decimals.
func AdjustTemperature(kelvin *float64, elevation float64) *float64 {
	if kelvin == nil {
		return nil
	}
	return ptr(round2(*kelvin - kelvinOffset - elevation*LapseRate))
}

// PressureHPa converts Pa to hPa, rounded to 2 decimals.
func PressureHPa(pa *float64) *float64 {
	if pa == nil {
		return nil
	}
	return ptr(round2(*pa / 100))
}

// Precipitation normalizes a total precipitation field. GFS reports tp in
// kg/m², which is already millimetres of water, so only rounding applies.
func Precipitation(tp *float64) *float64 {
	if tp == nil {
		return nil
	}
	return ptr(round2(*tp))
}
