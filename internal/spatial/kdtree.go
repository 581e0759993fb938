// Package spatial provides nearest-neighbour lookup over grid coordinates.
package spatial

import (
	"errors"
	"fmt"
	"math"
)

// Tree is a static 2-d tree over (lat, lon) points using Euclidean distance
// in degree space. It is immutable after construction and safe for
// concurrent queries.
type Tree struct {
	coords [2][]float64
	perm   []int32
}

// NewTree indexes the points lats[i], lons[i]. Query results are indices
// into these slices.
func NewTree(lats, lons []float64) (*Tree, error) {
	if len(lats) != len(lons) {
		return nil, fmt.Errorf("spatial: %d latitudes but %d longitudes", len(lats), len(lons))
	}
	if len(lats) > math.MaxInt32 {
		return nil, errors.New("spatial: too many points")
	}
	t := &Tree{
		coords: [2][]float64{lats, lons},
		perm:   make([]int32, len(lats)),
	}
	for i := range t.perm {
		t.perm[i] = int32(i)
	}
	t.build(0, len(t.perm), 0)
	return t, nil
}

// Len is the number of indexed points.
func (t *Tree) Len() int {
	return len(t.perm)
}

func (t *Tree) coord(i int32, axis int) float64 {
	return t.coords[axis][i]
}

func (t *Tree) build(lo, hi, depth int) {
	if hi-lo <= 1 {
		return
	}
	mid := lo + (hi-lo)/2
	t.selectNth(lo, hi, mid, depth%2)
	t.build(lo, mid, depth+1)
	t.build(mid+1, hi, depth+1)
}

// selectNth partially orders perm[lo:hi] so perm[k] holds the k-th smallest
// coordinate on axis. Three-way partitioning keeps regular grids, which
// repeat every coordinate many times, linear.
func (t *Tree) selectNth(lo, hi, k, axis int) {
	for hi-lo > 1 {
		pivot := t.coord(t.perm[lo+(hi-lo)/2], axis)
		lt, i, gt := lo, lo, hi
		for i < gt {
			c := t.coord(t.perm[i], axis)
			switch {
			case c < pivot:
				t.perm[lt], t.perm[i] = t.perm[i], t.perm[lt]
				lt++
				i++
			case c > pivot:
				gt--
				t.perm[i], t.perm[gt] = t.perm[gt], t.perm[i]
			default:
				i++
			}
		}
		switch {
		case k < lt:
			hi = lt
		case k >= gt:
			lo = gt
		default:
			return
		}
	}
}

// Nearest returns the index of the point closest to (lat, lon). Ties go to
// the lowest index. ok is false for an empty tree or a NaN query.
func (t *Tree) Nearest(lat, lon float64) (idx int, ok bool) {
	s := search{tree: t, q: [2]float64{lat, lon}, best: -1, bestD: math.Inf(1)}
	s.visit(0, len(t.perm), 0)
	if s.best < 0 {
		return 0, false
	}
	return int(s.best), true
}

type search struct {
	tree  *Tree
	q     [2]float64
	best  int32
	bestD float64
}

func (s *search) visit(lo, hi, depth int) {
	if lo >= hi {
		return
	}
	mid := lo + (hi-lo)/2
	i := s.tree.perm[mid]

	dLat := s.q[0] - s.tree.coords[0][i]
	dLon := s.q[1] - s.tree.coords[1][i]
	if d := dLat*dLat + dLon*dLon; d < s.bestD || (d == s.bestD && i < s.best) {
		s.best, s.bestD = i, d
	}

	axis := depth % 2
	diff := s.q[axis] - s.tree.coords[axis][i]
	nearLo, nearHi, farLo, farHi := lo, mid, mid+1, hi
	if diff >= 0 {
		nearLo, nearHi, farLo, farHi = mid+1, hi, lo, mid
	}
	s.visit(nearLo, nearHi, depth+1)
	if diff*diff <= s.bestD {
		s.visit(farLo, farHi, depth+1)
	}
}
