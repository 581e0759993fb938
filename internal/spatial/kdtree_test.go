package spatial

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bruteNearest(lats, lons []float64, lat, lon float64) int {
	best, bestD := -1, math.Inf(1)
	for i := range lats {
		d := (lats[i]-lat)*(lats[i]-lat) + (lons[i]-lon)*(lons[i]-lon)
		if d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func regularGrid(ni, nj int, la1, lo1, step float64) (lats, lons []float64) {
	for j := 0; j < nj; j++ {
		for i := 0; i < ni; i++ {
			lats = append(lats, la1-float64(j)*step)
			lons = append(lons, lo1+float64(i)*step)
		}
	}
	return lats, lons
}

func TestTree_MatchesBruteForceOnRandomPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 2000
	lats := make([]float64, n)
	lons := make([]float64, n)
	for i := range lats {
		lats[i] = rng.Float64()*180 - 90
		lons[i] = rng.Float64() * 360
	}

	tree, err := NewTree(lats, lons)
	require.NoError(t, err)
	assert.Equal(t, n, tree.Len())

	for q := 0; q < 500; q++ {
		lat, lon := rng.Float64()*180-90, rng.Float64()*360
		got, ok := tree.Nearest(lat, lon)
		require.True(t, ok)
		assert.Equal(t, bruteNearest(lats, lons, lat, lon), got)
	}
}

func TestTree_RegularGridWithDuplicates(t *testing.T) {
	lats, lons := regularGrid(40, 30, 42, 19, 0.25)
	tree, err := NewTree(lats, lons)
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"on a grid point", 40.0, 23.0},
		{"athens", 37.98, 23.73},
		{"between points", 38.125, 21.1},
		{"outside the grid", 50, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tree.Nearest(tt.lat, tt.lon)
			require.True(t, ok)
			assert.Equal(t, bruteNearest(lats, lons, tt.lat, tt.lon), got)
		})
	}

	got, ok := tree.Nearest(37.98, 23.73)
	require.True(t, ok)
	assert.InDelta(t, 38.0, lats[got], 1e-9)
	assert.InDelta(t, 23.75, lons[got], 1e-9)
}

func TestTree_ConcurrentQueries(t *testing.T) {
	lats, lons := regularGrid(50, 50, 45, 15, 0.25)
	tree, err := NewTree(lats, lons)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			lat, lon := 40+float64(w)*0.3, 20+float64(w)*0.2
			got, ok := tree.Nearest(lat, lon)
			assert.True(t, ok)
			assert.Equal(t, bruteNearest(lats, lons, lat, lon), got)
		}(w)
	}
	wg.Wait()
}

func TestTree_EdgeCases(t *testing.T) {
	empty, err := NewTree(nil, nil)
	require.NoError(t, err)
	_, ok := empty.Nearest(0, 0)
	assert.False(t, ok)

	single, err := NewTree([]float64{10}, []float64{20})
	require.NoError(t, err)
	got, ok := single.Nearest(-80, 300)
	assert.True(t, ok)
	assert.Equal(t, 0, got)

	_, ok = single.Nearest(math.NaN(), 20)
	assert.False(t, ok)

	_, err = NewTree([]float64{1, 2}, []float64{1})
	require.Error(t, err)
}

func TestDistanceKm(t *testing.T) {
	// Athens to Thessaloniki.
	assert.InDelta(t, 302, DistanceKm(37.9838, 23.7275, 40.6401, 22.9444), 5)
	assert.InDelta(t, 0, DistanceKm(10, 20, 10, 20), 1e-9)
	// A quarter of the equator.
	assert.InDelta(t, math.Pi/2*EarthRadiusKm, DistanceKm(0, 0, 0, 90), 1e-6)
}
