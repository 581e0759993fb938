package grib2

import "math"

type paramID struct {
	discipline, category, number int
}

type paramName struct {
	short, name string
}

// Generic parameter names (GRIB2 code table 4.2 plus NCEP local entries).
var parameters = map[paramID]paramName{
	{0, 0, 0}:   {"t", "Temperature"},
	{0, 0, 2}:   {"pt", "Potential temperature"},
	{0, 0, 4}:   {"tmax", "Maximum temperature"},
	{0, 0, 5}:   {"tmin", "Minimum temperature"},
	{0, 0, 6}:   {"dpt", "Dew point temperature"},
	{0, 1, 0}:   {"q", "Specific humidity"},
	{0, 1, 1}:   {"r", "Relative humidity"},
	{0, 1, 3}:   {"pwat", "Precipitable water"},
	{0, 1, 7}:   {"prate", "Precipitation rate"},
	{0, 1, 8}:   {"tp", "Total precipitation"},
	{0, 1, 11}:  {"sde", "Snow depth"},
	{0, 1, 13}:  {"sdwe", "Water equivalent of accumulated snow depth"},
	{0, 1, 196}: {"cprat", "Convective precipitation rate"},
	{0, 2, 0}:   {"wdir", "Wind direction"},
	{0, 2, 1}:   {"ws", "Wind speed"},
	{0, 2, 2}:   {"u", "U component of wind"},
	{0, 2, 3}:   {"v", "V component of wind"},
	{0, 2, 8}:   {"w", "Vertical velocity"},
	{0, 2, 22}:  {"gust", "Wind speed (gust)"},
	{0, 3, 0}:   {"pres", "Pressure"},
	{0, 3, 1}:   {"prmsl", "Pressure reduced to MSL"},
	{0, 3, 5}:   {"gh", "Geopotential height"},
	{0, 6, 1}:   {"tcc", "Total cloud cover"},
	{0, 7, 6}:   {"cape", "Convective available potential energy"},
	{0, 7, 7}:   {"cin", "Convective inhibition"},
	{0, 19, 0}:  {"vis", "Visibility"},
	{2, 0, 0}:   {"lsm", "Land cover"},
}

type levelID struct {
	param   paramID
	surface int
	level   int
}

const anyLevel = math.MinInt

// Level-specific names take precedence over the generic table.
var levelNames = map[levelID]paramName{
	{paramID{0, 0, 0}, 103, 2}:        {"2t", "2 metre temperature"},
	{paramID{0, 0, 6}, 103, 2}:        {"2d", "2 metre dewpoint temperature"},
	{paramID{0, 1, 0}, 103, 2}:        {"2sh", "2 metre specific humidity"},
	{paramID{0, 1, 1}, 103, 2}:        {"2r", "2 metre relative humidity"},
	{paramID{0, 2, 2}, 103, 10}:       {"10u", "10 metre U wind component"},
	{paramID{0, 2, 3}, 103, 10}:       {"10v", "10 metre V wind component"},
	{paramID{0, 2, 2}, 103, 100}:      {"100u", "100 metre U wind component"},
	{paramID{0, 2, 3}, 103, 100}:      {"100v", "100 metre V wind component"},
	{paramID{0, 0, 0}, 1, anyLevel}:   {"t", "Surface temperature"},
	{paramID{0, 1, 8}, 1, anyLevel}:   {"tp", "Total Precipitation"},
	{paramID{0, 3, 0}, 1, anyLevel}:   {"sp", "Surface pressure"},
	{paramID{0, 6, 1}, 10, anyLevel}:  {"tcc", "Total Cloud Cover"},
	{paramID{0, 6, 1}, 200, anyLevel}: {"tcc", "Total Cloud Cover"},
	{paramID{0, 6, 1}, 214, anyLevel}: {"lcc", "Low cloud cover"},
	{paramID{0, 6, 1}, 224, anyLevel}: {"mcc", "Medium cloud cover"},
	{paramID{0, 6, 1}, 234, anyLevel}: {"hcc", "High cloud cover"},
}

// Type-of-level names as used in ecCodes keys (code table 4.5).
var levelTypes = map[int]string{
	1:   "surface",
	2:   "cloudBase",
	3:   "cloudTop",
	4:   "isothermZero",
	6:   "maxWind",
	7:   "tropopause",
	8:   "nominalTop",
	10:  "atmosphere",
	100: "isobaricInhPa",
	101: "meanSea",
	102: "heightAboveSea",
	103: "heightAboveGround",
	104: "sigma",
	105: "hybrid",
	106: "depthBelowLandLayer",
	108: "pressureFromGroundLayer",
	200: "entireAtmosphere",
	204: "highestTroposphericFreezing",
	211: "boundaryLayerCloudLayer",
	212: "lowCloudBottom",
	213: "lowCloudTop",
	214: "lowCloudLayer",
	220: "planetaryBoundaryLayer",
	222: "middleCloudBottom",
	223: "middleCloudTop",
	224: "middleCloudLayer",
	232: "highCloudBottom",
	233: "highCloudTop",
	234: "highCloudLayer",
	244: "convectiveCloudLayer",
}

const unknownName = "unknown"

func (p Product) id() paramID {
	return paramID{p.Discipline, p.Category, p.Number}
}

func (p Product) names() (paramName, bool) {
	if n, ok := levelNames[levelID{p.id(), p.SurfaceType, p.Level()}]; ok {
		return n, true
	}
	if n, ok := levelNames[levelID{p.id(), p.SurfaceType, anyLevel}]; ok {
		return n, true
	}
	n, ok := parameters[p.id()]
	return n, ok
}

// ShortName is the ecCodes-style short name, e.g. "2t" or "prmsl".
func (p Product) ShortName() string {
	if n, ok := p.names(); ok {
		return n.short
	}
	return unknownName
}

// Name is the level-specific descriptive name, e.g. "2 metre temperature".
func (p Product) Name() string {
	if n, ok := p.names(); ok {
		return n.name
	}
	return unknownName
}

// ParameterName is the generic name of the physical quantity, independent
// of level.
func (p Product) ParameterName() string {
	if n, ok := parameters[p.id()]; ok {
		return n.name
	}
	return unknownName
}

// TypeOfLevel names the first fixed surface.
func (p Product) TypeOfLevel() string {
	if p.SurfaceType == 100 && !p.SurfaceMissing && p.scaledSurface() < 100 {
		return "isobaricInPa"
	}
	if t, ok := levelTypes[p.SurfaceType]; ok {
		return t
	}
	return unknownName
}

// Level is the integer level in the units of TypeOfLevel: hPa for isobaric
// surfaces, metres for heights, zero for surfaces without a value.
func (p Product) Level() int {
	if p.SurfaceMissing {
		return 0
	}
	v := p.scaledSurface()
	if p.SurfaceType == 100 && v >= 100 {
		v /= 100
	}
	return int(math.Round(v))
}

func (p Product) scaledSurface() float64 {
	return float64(p.SurfaceValue) * math.Pow(10, -float64(p.SurfaceScale))
}
