// Command gengrib writes a synthetic GFS cycle in the staging layout the
// pipeline reads, so filter and import can run without network access.
//
// Usage:
//
//	go run ./cmd/gengrib -out data -cycle 20241020_12 -max-hours 24 \
//	  -bbox 34,19,42,29 -res 0.25
//
// Each forecast hour gets one file holding the default catalog fields over
// the bounding box (lat1,lon1,lat2,lon2; north-west to south-east).
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/grib2"
)

type options struct {
	out      string
	cycle    domain.Cycle
	maxHours int
	grid     grib2.Grid
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("gengrib", flag.ContinueOnError)
	out := fs.String("out", "data", "data directory to write the cycle into")
	cycle := fs.String("cycle", "", "cycle to generate, YYYYMMDD_HH (default: latest cycle hour today)")
	maxHours := fs.Int("max-hours", 24, "last forecast hour")
	bbox := fs.String("bbox", "42,19,34,29", "north,west,south,east in degrees")
	res := fs.Float64("res", 0.25, "grid spacing in degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := options{out: *out, maxHours: *maxHours}
	var err error
	if opts.cycle, err = parseCycle(*cycle); err != nil {
		return err
	}
	if opts.grid, err = parseGrid(*bbox, *res); err != nil {
		return err
	}

	paths, err := generate(opts)
	if err != nil {
		return err
	}
	log.Printf("wrote %d files for cycle %s (%dx%d points)", len(paths), opts.cycle, opts.grid.Ni, opts.grid.Nj)
	return nil
}

func parseCycle(s string) (domain.Cycle, error) {
	if s != "" {
		return domain.ParseCycleDir(s)
	}
	now := time.Now().UTC()
	return domain.CycleAt(now, now.Hour()/6*6), nil
}

func parseGrid(bbox string, res float64) (grib2.Grid, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return grib2.Grid{}, errors.New("bbox needs four comma-separated values")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return grib2.Grid{}, fmt.Errorf("bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	north, west, south, east := v[0], v[1], v[2], v[3]
	if res <= 0 || north <= south || east <= west {
		return grib2.Grid{}, errors.New("bbox must run north-west to south-east with a positive resolution")
	}
	ni := int(math.Round((east-west)/res)) + 1
	nj := int(math.Round((north-south)/res)) + 1
	return grib2.Grid{
		Ni: ni, Nj: nj,
		La1: north, Lo1: west,
		La2: north - float64(nj-1)*res, Lo2: west + float64(ni-1)*res,
		Di: res, Dj: res,
	}, nil
}

// field is one catalog entry and the synthetic surface generating it.
type field struct {
	category, number int
	surfaceType      int
	surfaceValue     *int64
	decimalScale     int
	value            func(lat, lon float64, valid time.Time, fh int) float64
}

func height(m int64) *int64 { return &m }

// diurnal peaks mid-afternoon local solar time.
func diurnal(lon float64, valid time.Time) float64 {
	solar := float64(valid.Hour()) + lon/15
	return math.Cos((solar - 15) / 24 * 2 * math.Pi)
}

var fields = []field{
	{0, 0, 103, height(2), 2, func(lat, lon float64, t time.Time, _ int) float64 {
		return 288 - 0.6*(lat-38) + 6*diurnal(lon, t)
	}},
	{1, 1, 103, height(2), 1, func(lat, lon float64, t time.Time, _ int) float64 {
		return math.Max(5, math.Min(100, 65-20*diurnal(lon, t)+5*math.Sin(lat)))
	}},
	{1, 8, 1, nil, 2, func(lat, lon float64, _ time.Time, fh int) float64 {
		return math.Max(0, 0.4*float64(fh)*math.Sin(lat*3)*math.Cos(lon*2))
	}},
	{1, 196, 1, nil, 6, func(lat, lon float64, t time.Time, _ int) float64 {
		return math.Max(0, 0.002*math.Sin(lat*5+lon)*(1+diurnal(lon, t)))
	}},
	{2, 2, 103, height(10), 2, func(lat, lon float64, _ time.Time, fh int) float64 {
		return 6 * math.Sin(lat/3+float64(fh)/12)
	}},
	{2, 3, 103, height(10), 2, func(lat, lon float64, _ time.Time, fh int) float64 {
		return 4 * math.Cos(lon/4+float64(fh)/24)
	}},
	{3, 1, 101, nil, 0, func(lat, lon float64, _ time.Time, fh int) float64 {
		return 101325 + 800*math.Sin(lat/2-float64(fh)/36) + 300*math.Cos(lon/3)
	}},
	{6, 1, 214, nil, 1, func(lat, lon float64, _ time.Time, fh int) float64 {
		return math.Max(0, math.Min(100, 50+50*math.Sin(lat+lon/2+float64(fh)/6)))
	}},
}

// generate writes one raw file per forecast hour and returns their paths.
func generate(opts options) ([]string, error) {
	dir := filepath.Join(opts.out, opts.cycle.DirName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	lats, lons := opts.grid.Points()
	ref := opts.cycle.Time()

	hours := domain.ForecastHours(opts.maxHours)
	paths := make([]string, 0, len(hours))
	for _, fh := range hours {
		valid := ref.Add(time.Duration(fh) * time.Hour)
		var buf []byte
		for _, f := range fields {
			values := make([]float64, len(lats))
			for k := range values {
				values[k] = f.value(lats[k], lons[k], valid, fh)
			}
			msg, err := grib2.Marshal(grib2.FieldSpec{
				Reference:    ref,
				Grid:         opts.grid,
				Category:     f.category,
				Number:       f.number,
				ForecastHour: fh,
				SurfaceType:  f.surfaceType,
				SurfaceValue: f.surfaceValue,
				DecimalScale: f.decimalScale,
				Values:       values,
			})
			if err != nil {
				return paths, fmt.Errorf("encode f%03d: %w", fh, err)
			}
			buf = append(buf, msg...)
		}
		path := filepath.Join(dir, domain.RawFileName(opts.cycle, fh))
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
