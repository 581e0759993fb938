package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParameterKey is the standardized identity of a grid message used to
// decide whether the filter keeps it.
type ParameterKey struct {
	Category    int
	Level       int
	ShortName   string
	Description string
}

// NewParameterKey lower-cases and trims the text parts of a key.
func NewParameterKey(category, level int, shortName, description string) ParameterKey {
	return ParameterKey{
		Category:    category,
		Level:       level,
		ShortName:   strings.ToLower(strings.TrimSpace(shortName)),
		Description: strings.ToLower(strings.TrimSpace(description)),
	}
}

func (k ParameterKey) String() string {
	return fmt.Sprintf("%d/%d/%s/%s", k.Category, k.Level, k.ShortName, k.Description)
}

// ParameterSet is an allow-list of standardized keys.
type ParameterSet map[ParameterKey]struct{}

// NewParameterSet builds an allow-list from keys, standardizing each.
func NewParameterSet(keys ...ParameterKey) ParameterSet {
	s := make(ParameterSet, len(keys))
	for _, k := range keys {
		s[NewParameterKey(k.Category, k.Level, k.ShortName, k.Description)] = struct{}{}
	}
	return s
}

// Contains reports whether k, once standardized, is allowed.
func (s ParameterSet) Contains(k ParameterKey) bool {
	_, ok := s[NewParameterKey(k.Category, k.Level, k.ShortName, k.Description)]
	return ok
}

// FieldKey names one parameter value inside a forecast record.
type FieldKey struct {
	ShortName   string
	Level       int
	TypeOfLevel string
}

// Field keys read by the derived weather engine.
var (
	Temperature2m      = FieldKey{ShortName: "2t", Level: 2, TypeOfLevel: "heightAboveGround"}
	Humidity2m         = FieldKey{ShortName: "2r", Level: 2, TypeOfLevel: "heightAboveGround"}
	TotalPrecipitation = FieldKey{ShortName: "tp", Level: 0, TypeOfLevel: "surface"}
	ConvectivePrecip   = FieldKey{ShortName: "cprat", Level: 0, TypeOfLevel: "surface"}
	WindU10m           = FieldKey{ShortName: "10u", Level: 10, TypeOfLevel: "heightAboveGround"}
	WindV10m           = FieldKey{ShortName: "10v", Level: 10, TypeOfLevel: "heightAboveGround"}
	PressureMSL        = FieldKey{ShortName: "prmsl", Level: 0, TypeOfLevel: "meanSea"}
	LowCloudCover      = FieldKey{ShortName: "lcc", Level: 0, TypeOfLevel: "lowCloudLayer"}
)

const fieldLevelSep = "_level_"

// String is the storage form, <shortname>_level_<level>_<typeOfLevel>.
func (k FieldKey) String() string {
	return strings.ToLower(k.ShortName) + fieldLevelSep + strconv.Itoa(k.Level) + "_" + k.TypeOfLevel
}

// ParseFieldKey parses the storage form produced by FieldKey.String.
func ParseFieldKey(s string) (FieldKey, error) {
	short, rest, ok := strings.Cut(s, fieldLevelSep)
	if !ok || short == "" {
		return FieldKey{}, fmt.Errorf("field key %q: missing %q", s, fieldLevelSep)
	}
	lvl, typ, ok := strings.Cut(rest, "_")
	if !ok || typ == "" {
		return FieldKey{}, fmt.Errorf("field key %q: missing type of level", s)
	}
	level, err := strconv.Atoi(lvl)
	if err != nil {
		return FieldKey{}, fmt.Errorf("field key %q: level: %w", s, err)
	}
	return FieldKey{ShortName: short, Level: level, TypeOfLevel: typ}, nil
}

func (k FieldKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FieldKey) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EnabledParameter is one row of the parameter catalog.
type EnabledParameter struct {
	Number      int       `json:"number" yaml:"number"`
	Category    int       `json:"parameter_category" yaml:"category"`
	Level       int       `json:"level" yaml:"level"`
	ShortName   string    `json:"short_name" yaml:"short_name"`
	Parameter   string    `json:"parameter" yaml:"parameter"`
	TypeOfLevel string    `json:"type_of_level" yaml:"type_of_level"`
	Description string    `json:"description" yaml:"description"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	LastUpdated time.Time `json:"last_updated" yaml:"-"`
}

// Key is the filter identity of the catalog row.
func (p EnabledParameter) Key() ParameterKey {
	return NewParameterKey(p.Category, p.Level, p.ShortName, p.Description)
}

// FieldKey is the storage key values of this parameter are written under.
func (p EnabledParameter) FieldKey() FieldKey {
	return FieldKey{ShortName: strings.ToLower(p.ShortName), Level: p.Level, TypeOfLevel: p.TypeOfLevel}
}
