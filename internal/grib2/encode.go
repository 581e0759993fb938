package grib2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"time"
)

// FieldSpec describes a single-field message to encode with a regular
// lat/lon grid, product template 4.0 and simple packing.
type FieldSpec struct {
	Discipline int
	Reference  time.Time
	Grid       Grid

	Category     int
	Number       int
	ForecastHour int
	SurfaceType  int
	// SurfaceValue is the first fixed surface in its natural unit (Pa for
	// isobaric surfaces). Nil encodes a missing value.
	SurfaceValue *int64

	// DecimalScale is the number of decimal digits kept.
	DecimalScale int
	// Values holds one value per grid point; NaN entries are masked out
	// through a bitmap.
	Values []float64
}

// Encode writes spec as one GRIB2 message.
func Encode(w io.Writer, spec FieldSpec) error {
	msg, err := Marshal(spec)
	if err != nil {
		return err
	}
	_, err = w.Write(msg)
	return err
}

// Marshal returns spec encoded as one GRIB2 message.
func Marshal(spec FieldSpec) ([]byte, error) {
	g := spec.Grid
	if g.Ni <= 0 || g.Nj <= 0 {
		return nil, errors.New("grib2: grid dimensions must be positive")
	}
	if len(spec.Values) != g.Len() {
		return nil, fmt.Errorf("grib2: %d values for %dx%d grid", len(spec.Values), g.Ni, g.Nj)
	}

	sec5, sec6, sec7, err := packSimple(spec.Values, spec.DecimalScale)
	if err != nil {
		return nil, err
	}
	body := concat(
		identificationSection(spec.Reference),
		gridSection(g),
		productSection(spec),
		sec5, sec6, sec7,
	)

	total := indicatorLen + len(body) + len(trailer)
	msg := make([]byte, 0, total)
	head := make([]byte, indicatorLen)
	copy(head, magic)
	head[6] = byte(spec.Discipline)
	head[7] = 2
	binary.BigEndian.PutUint64(head[8:], uint64(total))
	msg = append(msg, head...)
	msg = append(msg, body...)
	msg = append(msg, trailer...)
	return msg, nil
}

func newSection(num byte, length int) []byte {
	b := make([]byte, length)
	binary.BigEndian.PutUint32(b, uint32(length))
	b[4] = num
	return b
}

func identificationSection(ref time.Time) []byte {
	ref = ref.UTC()
	b := newSection(1, 21)
	binary.BigEndian.PutUint16(b[5:], 7) // NCEP
	b[9] = 2                              // master tables version
	b[10] = 1                             // local tables version
	b[11] = 1                             // start of forecast
	binary.BigEndian.PutUint16(b[12:], uint16(ref.Year()))
	b[14] = byte(ref.Month())
	b[15] = byte(ref.Day())
	b[16] = byte(ref.Hour())
	b[17] = byte(ref.Minute())
	b[18] = byte(ref.Second())
	b[20] = 1 // forecast products
	return b
}

func microDegrees(v float64) int64 {
	return int64(math.Round(v * 1e6))
}

func gridSection(g Grid) []byte {
	b := newSection(3, 72)
	binary.BigEndian.PutUint32(b[6:], uint32(g.Len()))
	b[14] = 6 // spherical earth, radius 6371229 m
	binary.BigEndian.PutUint32(b[30:], uint32(g.Ni))
	binary.BigEndian.PutUint32(b[34:], uint32(g.Nj))
	binary.BigEndian.PutUint32(b[42:], math.MaxUint32)
	putInt32SM(b[46:], microDegrees(g.La1))
	putInt32SM(b[50:], microDegrees(g.Lo1))
	b[54] = 48
	putInt32SM(b[55:], microDegrees(g.La2))
	putInt32SM(b[59:], microDegrees(g.Lo2))
	binary.BigEndian.PutUint32(b[63:], uint32(microDegrees(g.Di)))
	binary.BigEndian.PutUint32(b[67:], uint32(microDegrees(g.Dj)))
	b[71] = g.ScanMode
	return b
}

func productSection(spec FieldSpec) []byte {
	b := newSection(4, 34)
	b[9] = byte(spec.Category)
	b[10] = byte(spec.Number)
	b[11] = 2  // forecast
	b[13] = 96 // GFS
	b[17] = 1  // hours
	putInt32SM(b[18:], int64(spec.ForecastHour))
	b[22] = byte(spec.SurfaceType)
	if spec.SurfaceValue == nil {
		b[23] = 0xff
		binary.BigEndian.PutUint32(b[24:], math.MaxUint32)
	} else {
		binary.BigEndian.PutUint32(b[24:], uint32(*spec.SurfaceValue))
	}
	b[28] = 255
	b[29] = 0xff
	binary.BigEndian.PutUint32(b[30:], math.MaxUint32)
	return b
}

// packSimple builds sections 5, 6 and 7 for simple packing with E = 0.
func packSimple(values []float64, decimal int) (sec5, sec6, sec7 []byte, err error) {
	factor := math.Pow(10, float64(decimal))
	scaled := make([]float64, 0, len(values))
	var bitmap bitWriter
	masked := false
	for _, v := range values {
		if math.IsNaN(v) {
			masked = true
			bitmap.write(0, 1)
			continue
		}
		bitmap.write(1, 1)
		scaled = append(scaled, v*factor)
	}

	ref := 0.0
	if len(scaled) > 0 {
		ref = math.Floor(minOf(scaled))
	}
	var maxX uint64
	xs := make([]uint64, len(scaled))
	for i, s := range scaled {
		x := math.Round(s - ref)
		if x < 0 || x > math.MaxUint32 {
			return nil, nil, nil, fmt.Errorf("grib2: value range too wide to pack at decimal scale %d", decimal)
		}
		xs[i] = uint64(x)
		if xs[i] > maxX {
			maxX = xs[i]
		}
	}
	nbits := bits.Len64(maxX)

	sec5 = newSection(5, 21)
	binary.BigEndian.PutUint32(sec5[5:], uint32(len(scaled)))
	binary.BigEndian.PutUint32(sec5[11:], math.Float32bits(float32(ref)))
	putInt16SM(sec5[17:], decimal)
	sec5[19] = byte(nbits)

	if masked {
		bm := bitmap.bytes()
		sec6 = newSection(6, 6+len(bm))
		copy(sec6[6:], bm)
	} else {
		sec6 = newSection(6, 6)
		sec6[5] = 255
	}

	var data bitWriter
	for _, x := range xs {
		data.write(x, nbits)
	}
	packed := data.bytes()
	sec7 = newSection(7, 5+len(packed))
	copy(sec7[5:], packed)
	return sec5, sec6, sec7, nil
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
