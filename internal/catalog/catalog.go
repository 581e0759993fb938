// Package catalog loads the parameter catalog and the place registry from
// YAML seed files, and derives catalog rows from a control GRIB2 file.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/grib2"
)

type parameterFile struct {
	Parameters []domain.EnabledParameter `yaml:"parameters"`
}

// LoadParameters decodes a YAML catalog of the form
//
//	parameters:
//	  - {number: 0, category: 0, level: 2, short_name: 2t, ...}
func LoadParameters(r io.Reader) ([]domain.EnabledParameter, error) {
	var f parameterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode parameter catalog: %w", err)
	}
	for i, p := range f.Parameters {
		if p.ShortName == "" || p.Parameter == "" || p.TypeOfLevel == "" {
			return nil, fmt.Errorf("parameter %d: short_name, parameter and type_of_level are required", i)
		}
	}
	return f.Parameters, nil
}

type placeEntry struct {
	Slug      string   `yaml:"slug"`
	Name      string   `yaml:"name"`
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Elevation *float64 `yaml:"elevation"`
}

type placeFile struct {
	Places []placeEntry `yaml:"places"`
}

// LoadPlaces decodes a YAML place registry. Slugs must be unique and
// coordinates within range; longitudes may use either the -180..180 or the
// 0..360 convention.
func LoadPlaces(r io.Reader) ([]domain.Place, error) {
	var f placeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode places: %w", err)
	}
	seen := make(map[string]bool, len(f.Places))
	places := make([]domain.Place, 0, len(f.Places))
	for i, e := range f.Places {
		slug := strings.TrimSpace(e.Slug)
		switch {
		case slug == "":
			return nil, fmt.Errorf("place %d: slug is required", i)
		case seen[slug]:
			return nil, fmt.Errorf("place %q: duplicate slug", slug)
		case e.Latitude < -90 || e.Latitude > 90:
			return nil, fmt.Errorf("place %q: latitude %v out of range", slug, e.Latitude)
		case e.Longitude < -180 || e.Longitude > 360:
			return nil, fmt.Errorf("place %q: longitude %v out of range", slug, e.Longitude)
		}
		seen[slug] = true
		name := e.Name
		if name == "" {
			name = slug
		}
		places = append(places, domain.Place{
			Slug:      slug,
			Name:      name,
			Latitude:  e.Latitude,
			Longitude: e.Longitude,
			Elevation: e.Elevation,
		})
	}
	return places, nil
}

// ScanParameters reads every message of a control GRIB2 file and returns
// one disabled catalog row per distinct (number, level, parameter).
// Messages that fail to parse are logged and skipped.
func ScanParameters(r io.Reader, logger *slog.Logger) ([]domain.EnabledParameter, error) {
	type key struct {
		number, level int
		parameter     string
	}
	seen := make(map[key]bool)
	var out []domain.EnabledParameter

	sc := grib2.NewScanner(r)
	for sc.Scan() {
		msg := sc.Message()
		field, err := msg.Parse()
		if err != nil {
			logger.Warn("skipping message", "offset", msg.Offset, "error", err)
			continue
		}
		p := field.Product
		row := domain.EnabledParameter{
			Number:      p.Number,
			Category:    p.Category,
			Level:       p.Level(),
			ShortName:   p.ShortName(),
			Parameter:   p.ParameterName(),
			TypeOfLevel: p.TypeOfLevel(),
			Description: p.Name(),
		}
		k := key{row.Number, row.Level, row.Parameter}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		if len(out) == 0 {
			return nil, fmt.Errorf("scan control file: %w", err)
		}
		logger.Warn("control file truncated, keeping parameters read so far", "parameters", len(out), "error", err)
	}
	return out, nil
}
