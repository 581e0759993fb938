package grib2

import (
	"fmt"
	"math"
)

// Values unpacks the field into one value per grid point in data order.
// Points masked by the bitmap or flagged missing by the packing are NaN.
func (f *Field) Values() ([]float64, error) {
	var (
		packed []float64
		err    error
	)
	switch f.Packing.Template {
	case 0:
		packed, err = unpackSimple(f.Packing, f.data)
	case 2, 3:
		packed, err = unpackComplex(f.Packing, f.data)
	default:
		err = fmt.Errorf("%w: data representation template 5.%d", ErrUnsupportedTemplate, f.Packing.Template)
	}
	if err != nil {
		return nil, err
	}

	n := f.Grid.Len()
	if f.bitmap == nil {
		if len(packed) != n {
			return nil, fmt.Errorf("%w: %d values for %d grid points", ErrMalformed, len(packed), n)
		}
		return packed, nil
	}

	if len(f.bitmap)*8 < n {
		return nil, fmt.Errorf("%w: bitmap shorter than grid", ErrMalformed)
	}
	out := make([]float64, n)
	k := 0
	for i := 0; i < n; i++ {
		if f.bitmap[i/8]>>(7-uint(i%8))&1 == 0 {
			out[i] = math.NaN()
			continue
		}
		if k >= len(packed) {
			return nil, fmt.Errorf("%w: bitmap selects more points than packed values", ErrMalformed)
		}
		out[i] = packed[k]
		k++
	}
	if k != len(packed) {
		return nil, fmt.Errorf("%w: %d packed values left over after bitmap", ErrMalformed, len(packed)-k)
	}
	return out, nil
}

type scaler struct {
	ref float64
	bin float64
	dec float64
}

func newScaler(p Packing) scaler {
	return scaler{
		ref: float64(p.Reference),
		bin: math.Pow(2, float64(p.BinaryScale)),
		dec: math.Pow(10, -float64(p.DecimalScale)),
	}
}

// value applies Y = (R + X * 2^E) / 10^D.
func (s scaler) value(x int64) float64 {
	return (s.ref + float64(x)*s.bin) * s.dec
}

func unpackSimple(p Packing, data []byte) ([]float64, error) {
	s := newScaler(p)
	out := make([]float64, p.NumValues)
	if p.Bits == 0 {
		for i := range out {
			out[i] = s.value(0)
		}
		return out, nil
	}

	r := newBitReader(data)
	for i := range out {
		out[i] = s.value(int64(r.read(p.Bits)))
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: simple packing: %w", ErrMalformed, r.err)
	}
	return out, nil
}

func unpackComplex(p Packing, data []byte) ([]float64, error) {
	r := newBitReader(data)

	var ival1, ival2, minsd int64
	differenced := p.Template == 3 && p.ExtraOctets > 0
	if differenced {
		nb := p.ExtraOctets * 8
		ival1 = r.readSigned(nb)
		if p.SpatialOrder == 2 {
			ival2 = r.readSigned(nb)
		}
		minsd = r.readSigned(nb)
	}

	ng := p.NumGroups
	refs := make([]int64, ng)
	for g := range refs {
		refs[g] = int64(r.read(p.Bits))
	}
	r.align()

	widths := make([]int, ng)
	for g := range widths {
		widths[g] = p.GroupWidthRef + int(r.read(p.GroupWidthBits))
	}
	r.align()

	lengths := make([]int, ng)
	for g := range lengths {
		lengths[g] = p.GroupLengthRef + int(r.read(p.GroupLengthBits))*p.GroupLengthInc
	}
	r.align()
	if ng > 0 {
		lengths[ng-1] = p.LastGroupLength
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: complex packing group descriptors: %w", ErrMalformed, r.err)
	}

	total := 0
	for _, l := range lengths {
		total += l
	}
	if total != p.NumValues {
		return nil, fmt.Errorf("%w: groups cover %d values, want %d", ErrMalformed, total, p.NumValues)
	}

	raw := make([]int64, total)
	missing := make([]bool, total)
	refMissing1 := int64(1)<<p.Bits - 1
	idx := 0
	for g := 0; g < ng; g++ {
		w := widths[g]
		if w > 63 {
			return nil, fmt.Errorf("%w: group width %d", ErrMalformed, w)
		}
		for k := 0; k < lengths[g]; k++ {
			if w == 0 {
				raw[idx] = refs[g]
				missing[idx] = isMissing(p.MissingManagement, refs[g], refMissing1)
			} else {
				x := int64(r.read(w))
				missing[idx] = isMissing(p.MissingManagement, x, int64(1)<<w-1)
				raw[idx] = refs[g] + x
			}
			idx++
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: complex packing values: %w", ErrMalformed, r.err)
	}

	if differenced {
		undifference(raw, missing, p.SpatialOrder, ival1, ival2, minsd)
	}

	s := newScaler(p)
	out := make([]float64, total)
	for i, v := range raw {
		if missing[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = s.value(v)
	}
	return out, nil
}

// isMissing applies missing value management: 1 flags the all-ones value,
// 2 also flags all-ones minus one.
func isMissing(mgmt int, v, allOnes int64) bool {
	switch mgmt {
	case 1:
		return v == allOnes
	case 2:
		return v == allOnes || v == allOnes-1
	}
	return false
}

// undifference reverses first or second order spatial differencing over the
// non-missing values, in place.
func undifference(raw []int64, missing []bool, order int, ival1, ival2, minsd int64) {
	present := make([]int, 0, len(raw))
	for i := range raw {
		if !missing[i] {
			present = append(present, i)
		}
	}
	if len(present) == 0 {
		return
	}

	raw[present[0]] = ival1
	start := 1
	if order == 2 {
		if len(present) > 1 {
			raw[present[1]] = ival2
		}
		start = 2
	}
	for n := start; n < len(present); n++ {
		cur := raw[present[n]] + minsd
		prev := raw[present[n-1]]
		if order == 1 {
			raw[present[n]] = cur + prev
		} else {
			raw[present[n]] = cur + 2*prev - raw[present[n-2]]
		}
	}
}
