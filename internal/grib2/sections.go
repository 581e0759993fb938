package grib2

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Field is the decoded header of a single-field message plus its packed data.
type Field struct {
	Discipline int
	Reference  time.Time
	Grid       Grid
	Product    Product
	Packing    Packing

	bitmap []byte
	data   []byte
}

// Grid is a regular latitude/longitude grid definition (template 3.0).
// Angles are in degrees.
type Grid struct {
	Template  int
	NumPoints int
	Ni, Nj    int
	La1, Lo1  float64
	La2, Lo2  float64
	Di, Dj    float64
	ScanMode  byte
}

// Len is the number of grid points.
func (g Grid) Len() int {
	return g.Ni * g.Nj
}

// Points returns latitude and longitude of every grid point in data order.
// Longitudes are normalized to [0, 360).
func (g Grid) Points() (lats, lons []float64) {
	n := g.Len()
	lats = make([]float64, n)
	lons = make([]float64, n)

	dlat := -g.Dj
	if g.ScanMode&0x40 != 0 {
		dlat = g.Dj
	}
	dlon := g.Di
	if g.ScanMode&0x80 != 0 {
		dlon = -g.Di
	}
	iConsecutive := g.ScanMode&0x20 == 0

	for j := 0; j < g.Nj; j++ {
		lat := g.La1 + float64(j)*dlat
		for i := 0; i < g.Ni; i++ {
			idx := j*g.Ni + i
			if !iConsecutive {
				idx = i*g.Nj + j
			}
			lats[idx] = lat
			lons[idx] = NormalizeLongitude(g.Lo1 + float64(i)*dlon)
		}
	}
	return lats, lons
}

// NormalizeLongitude maps lon into [0, 360).
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// Product is the product definition: what the field measures and where.
type Product struct {
	Discipline   int
	Template     int
	Category     int
	Number       int
	TimeUnit     int
	ForecastTime int
	SurfaceType  int
	SurfaceScale int
	SurfaceValue int64
	// SurfaceMissing is set when the first fixed surface carries no value.
	SurfaceMissing bool
}

// Packing is the data representation section.
type Packing struct {
	Template     int
	NumValues    int
	Reference    float32
	BinaryScale  int
	DecimalScale int
	Bits         int

	// Complex packing (5.2, 5.3).
	MissingManagement int
	NumGroups         int
	GroupWidthRef     int
	GroupWidthBits    int
	GroupLengthRef    int
	GroupLengthInc    int
	LastGroupLength   int
	GroupLengthBits   int

	// Spatial differencing (5.3).
	SpatialOrder int
	ExtraOctets  int
}

func section(raw []byte, pos int) (num byte, body []byte, err error) {
	if pos+5 > len(raw) {
		return 0, nil, fmt.Errorf("%w: truncated section header at byte %d", ErrMalformed, pos)
	}
	length := int(binary.BigEndian.Uint32(raw[pos:]))
	if length < 5 || pos+length > len(raw) {
		return 0, nil, fmt.Errorf("%w: section length %d at byte %d", ErrMalformed, length, pos)
	}
	return raw[pos+4], raw[pos : pos+length], nil
}

func parseSections(raw []byte) (*Field, error) {
	if len(raw) < indicatorLen+len(trailer) {
		return nil, fmt.Errorf("%w: message too short", ErrMalformed)
	}
	if !hasTrailer(raw) {
		return nil, fmt.Errorf("%w: missing 7777 trailer", ErrMalformed)
	}

	f := &Field{Discipline: int(raw[6])}
	var seen [8]bool
	end := len(raw) - len(trailer)

	for pos := indicatorLen; pos < end; {
		num, sec, err := section(raw, pos)
		if err != nil {
			return nil, err
		}
		if num >= 1 && num <= 7 && seen[num] {
			return nil, fmt.Errorf("%w: repeated section %d (multi-field messages)", ErrUnsupportedTemplate, num)
		}

		switch num {
		case 1:
			err = f.parseIdentification(sec)
		case 2:
		case 3:
			err = f.parseGrid(sec)
		case 4:
			err = f.parseProduct(sec)
		case 5:
			err = f.parsePacking(sec)
		case 6:
			err = f.parseBitmap(sec)
		case 7:
			f.data = sec[5:]
		default:
			err = fmt.Errorf("%w: unknown section %d", ErrMalformed, num)
		}
		if err != nil {
			return nil, err
		}
		seen[num] = true
		pos += len(sec)
	}

	for _, n := range []int{1, 3, 4, 5, 7} {
		if !seen[n] {
			return nil, fmt.Errorf("%w: missing section %d", ErrMalformed, n)
		}
	}
	return f, nil
}

func (f *Field) parseIdentification(sec []byte) error {
	if len(sec) < 21 {
		return fmt.Errorf("%w: identification section too short", ErrMalformed)
	}
	year := int(binary.BigEndian.Uint16(sec[12:14]))
	f.Reference = time.Date(year, time.Month(sec[14]), int(sec[15]), int(sec[16]), int(sec[17]), int(sec[18]), 0, time.UTC)
	return nil
}

func (f *Field) parseGrid(sec []byte) error {
	if len(sec) < 14 {
		return fmt.Errorf("%w: grid section too short", ErrMalformed)
	}
	g := Grid{
		NumPoints: int(binary.BigEndian.Uint32(sec[6:10])),
		Template:  int(binary.BigEndian.Uint16(sec[12:14])),
	}
	if g.Template != 0 {
		return fmt.Errorf("%w: grid template 3.%d", ErrUnsupportedTemplate, g.Template)
	}
	if len(sec) < 72 {
		return fmt.Errorf("%w: grid template 3.0 too short", ErrMalformed)
	}

	g.Ni = int(binary.BigEndian.Uint32(sec[30:34]))
	g.Nj = int(binary.BigEndian.Uint32(sec[34:38]))

	// Angles are in micro-degrees unless a basic angle and subdivisions are given.
	toDegrees := func(v int64) float64 { return float64(v) / 1e6 }
	basic := binary.BigEndian.Uint32(sec[38:42])
	subdiv := binary.BigEndian.Uint32(sec[42:46])
	if basic != 0 && basic != math.MaxUint32 && subdiv != 0 && subdiv != math.MaxUint32 {
		unit := float64(basic) / float64(subdiv)
		toDegrees = func(v int64) float64 { return float64(v) * unit }
	}

	g.La1 = toDegrees(int32SM(sec[46:50]))
	g.Lo1 = toDegrees(int32SM(sec[50:54]))
	g.La2 = toDegrees(int32SM(sec[55:59]))
	g.Lo2 = toDegrees(int32SM(sec[59:63]))
	g.ScanMode = sec[71]

	if g.Ni <= 0 || g.Nj <= 0 || g.Ni*g.Nj != g.NumPoints {
		return fmt.Errorf("%w: grid %dx%d does not match %d points", ErrMalformed, g.Ni, g.Nj, g.NumPoints)
	}
	if g.ScanMode&0x10 != 0 {
		return fmt.Errorf("%w: boustrophedonic scanning", ErrUnsupportedTemplate)
	}

	di := binary.BigEndian.Uint32(sec[63:67])
	dj := binary.BigEndian.Uint32(sec[67:71])
	g.Di = toDegrees(int64(di))
	g.Dj = toDegrees(int64(dj))
	if di == math.MaxUint32 && g.Ni > 1 {
		g.Di = math.Abs(NormalizeLongitude(g.Lo2-g.Lo1)) / float64(g.Ni-1)
	}
	if dj == math.MaxUint32 && g.Nj > 1 {
		g.Dj = math.Abs(g.La2-g.La1) / float64(g.Nj-1)
	}

	f.Grid = g
	return nil
}

func (f *Field) parseProduct(sec []byte) error {
	if len(sec) < 9 {
		return fmt.Errorf("%w: product section too short", ErrMalformed)
	}
	p := Product{
		Discipline: f.Discipline,
		Template:   int(binary.BigEndian.Uint16(sec[7:9])),
	}
	switch p.Template {
	case 0, 1, 8, 11:
	default:
		return fmt.Errorf("%w: product template 4.%d", ErrUnsupportedTemplate, p.Template)
	}
	if len(sec) < 34 {
		return fmt.Errorf("%w: product template 4.%d too short", ErrMalformed, p.Template)
	}

	p.Category = int(sec[9])
	p.Number = int(sec[10])
	p.TimeUnit = int(sec[17])
	p.ForecastTime = int(int32SM(sec[18:22]))
	p.SurfaceType = int(sec[22])

	scale := sec[23]
	value := binary.BigEndian.Uint32(sec[24:28])
	if scale == 0xff || value == math.MaxUint32 {
		p.SurfaceMissing = true
	} else {
		p.SurfaceScale = int8SM(scale)
		p.SurfaceValue = int64(value)
	}

	f.Product = p
	return nil
}

func (f *Field) parsePacking(sec []byte) error {
	if len(sec) < 11 {
		return fmt.Errorf("%w: data representation section too short", ErrMalformed)
	}
	p := Packing{
		NumValues: int(binary.BigEndian.Uint32(sec[5:9])),
		Template:  int(binary.BigEndian.Uint16(sec[9:11])),
	}

	need := map[int]int{0: 21, 2: 47, 3: 49}[p.Template]
	if need == 0 {
		return fmt.Errorf("%w: data representation template 5.%d", ErrUnsupportedTemplate, p.Template)
	}
	if len(sec) < need {
		return fmt.Errorf("%w: data representation template 5.%d too short", ErrMalformed, p.Template)
	}

	p.Reference = math.Float32frombits(binary.BigEndian.Uint32(sec[11:15]))
	p.BinaryScale = int16SM(sec[15:17])
	p.DecimalScale = int16SM(sec[17:19])
	p.Bits = int(sec[19])

	if p.Template >= 2 {
		p.MissingManagement = int(sec[22])
		p.NumGroups = int(binary.BigEndian.Uint32(sec[31:35]))
		p.GroupWidthRef = int(sec[35])
		p.GroupWidthBits = int(sec[36])
		p.GroupLengthRef = int(binary.BigEndian.Uint32(sec[37:41]))
		p.GroupLengthInc = int(sec[41])
		p.LastGroupLength = int(binary.BigEndian.Uint32(sec[42:46]))
		p.GroupLengthBits = int(sec[46])
	}
	if p.Template == 3 {
		p.SpatialOrder = int(sec[47])
		p.ExtraOctets = int(sec[48])
		if p.SpatialOrder != 1 && p.SpatialOrder != 2 {
			return fmt.Errorf("%w: spatial differencing order %d", ErrUnsupportedTemplate, p.SpatialOrder)
		}
	}

	f.Packing = p
	return nil
}

func (f *Field) parseBitmap(sec []byte) error {
	if len(sec) < 6 {
		return fmt.Errorf("%w: bitmap section too short", ErrMalformed)
	}
	switch ind := sec[5]; ind {
	case 0:
		f.bitmap = sec[6:]
	case 255:
		f.bitmap = nil
	default:
		return fmt.Errorf("%w: bitmap indicator %d", ErrUnsupportedTemplate, ind)
	}
	return nil
}

// ForecastDuration converts the product's forecast time to a duration.
func (p Product) ForecastDuration() (time.Duration, error) {
	unit, ok := timeUnits[p.TimeUnit]
	if !ok {
		return 0, fmt.Errorf("%w: time range unit %d", ErrUnsupportedTemplate, p.TimeUnit)
	}
	return time.Duration(p.ForecastTime) * unit, nil
}

var timeUnits = map[int]time.Duration{
	0:  time.Minute,
	1:  time.Hour,
	2:  24 * time.Hour,
	10: 3 * time.Hour,
	11: 6 * time.Hour,
	12: 12 * time.Hour,
	13: time.Second,
}
