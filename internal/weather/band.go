package weather

import "math"

// Band labels the half-open range Lower <= x < Upper.
type Band[T any] struct {
	Lower, Upper float64
	Label        T
}

// Bands is an ordered range table. The first matching band wins.
type Bands[T any] []Band[T]

// Lookup returns the label of the band containing x. ok is false when no
// band matches, including for NaN.
func (b Bands[T]) Lookup(x float64) (label T, ok bool) {
	for _, band := range b {
		if band.Lower <= x && x < band.Upper {
			return band.Label, true
		}
	}
	return label, false
}

// above is the smallest float strictly greater than x. It turns a "> x"
// threshold into an inclusive lower bound.
func above(x float64) float64 {
	return math.Nextafter(x, math.Inf(1))
}

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func ptr[T any](v T) *T {
	return &v
}
