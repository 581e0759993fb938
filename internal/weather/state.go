package weather

import (
	"fmt"
	"strconv"
)

// State is the categorical summary of one forecast entry.
type State struct {
	Temperature   string `json:"temperature"`
	Precipitation string `json:"precipitation"`
	CloudCover    string `json:"cloud_cover"`
	Wind          string `json:"wind"`
	Flood         string `json:"flood"`
}

const (
	FloodLabel   = "Flood"
	NoFloodLabel = "No Flood"
)

// Classification tables. Each threshold is exclusive: 30 °C is Normal,
// anything above is Hot.
var (
	TemperatureStates = Bands[string]{
		{negInf, 0, "Cold"},
		{0, above(30), "Normal"},
		{above(30), posInf, "Hot"},
	}
	PrecipitationStates = Bands[string]{
		{negInf, above(0), "None"},
		{above(0), above(50), "Rain"},
		{above(50), posInf, "Heavy Rain"},
	}
	CloudCoverStates = Bands[string]{
		{negInf, above(50), "Clear"},
		{above(50), above(75), "Partly Cloudy"},
		{above(75), posInf, "Overcast"},
	}
	WindStates = Bands[string]{
		{negInf, above(15), "Calm"},
		{above(15), above(30), "Windy"},
		{above(30), posInf, "Storm"},
	}
)

// StateInput holds the derived values a state is classified from.
type StateInput struct {
	Temperature   *float64
	Precipitation *float64
	CloudCover    *float64
	WindSpeed     *float64
	// Flood is decided by the caller from the storm probability.
	Flood bool
}

// ClassifyState applies each axis table independently. A missing
// temperature or precipitation keeps the neutral label; missing cloud cover
// and wind speed count as zero.
func ClassifyState(in StateInput) State {
	s := State{
		Temperature:   classify(TemperatureStates, in.Temperature, nil, "Normal"),
		Precipitation: classify(PrecipitationStates, in.Precipitation, nil, "None"),
		CloudCover:    classify(CloudCoverStates, in.CloudCover, ptr(0.0), "Clear"),
		Wind:          classify(WindStates, in.WindSpeed, ptr(0.0), "Calm"),
		Flood:         NoFloodLabel,
	}
	if in.Flood {
		s.Flood = FloodLabel
	}
	return s
}

func classify(table Bands[string], v, fallback *float64, neutral string) string {
	if v == nil {
		v = fallback
	}
	if v == nil {
		return neutral
	}
	if label, ok := table.Lookup(*v); ok {
		return label
	}
	return neutral
}

// Alert levels.
const (
	LevelWarning = "WARNING"
	LevelSevere  = "SEVERE"
)

// Alert is a single threshold breach on an entry.
type Alert struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Level       string `json:"level"`
}

// Alert thresholds.
const (
	HighTemperatureC     = 35.0
	SevereWindMS         = 40.0
	HeavyPrecipitationMM = 100.0
)

// GenerateAlerts checks the entry against each alert threshold. Several
// alerts may fire; they are returned in a fixed order: temperature, wind,
// precipitation, flood.
func GenerateAlerts(e Entry) []Alert {
	alerts := []Alert{}
	if e.Temperature != nil && *e.Temperature > HighTemperatureC {
		alerts = append(alerts, Alert{
			Title:       "High Temperature",
			Description: fmt.Sprintf("Temperature has reached %s°C.", formatValue(*e.Temperature)),
			Level:       LevelWarning,
		})
	}
	if e.Wind.Speed != nil && *e.Wind.Speed > SevereWindMS {
		alerts = append(alerts, Alert{
			Title:       "Severe Wind",
			Description: fmt.Sprintf("Wind speed is %s m/s.", formatValue(*e.Wind.Speed)),
			Level:       LevelSevere,
		})
	}
	if e.Precipitation != nil && *e.Precipitation > HeavyPrecipitationMM {
		alerts = append(alerts, Alert{
			Title:       "Heavy Precipitation",
			Description: fmt.Sprintf("Precipitation is %s mm.", formatValue(*e.Precipitation)),
			Level:       LevelWarning,
		})
	}
	if e.Flood {
		alerts = append(alerts, Alert{
			Title:       "Flood Risk",
			Description: "High risk of flooding due to heavy precipitation and storm conditions.",
			Level:       LevelSevere,
		})
	}
	return alerts
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
