package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/grib2"
)

func TestParseGrid(t *testing.T) {
	g, err := parseGrid("38, 23, 37.5, 23.75", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Ni)
	assert.Equal(t, 3, g.Nj)
	assert.InDelta(t, 37.5, g.La2, 1e-9)
	assert.InDelta(t, 23.75, g.Lo2, 1e-9)

	_, err = parseGrid("37,23,38,24", 0.25)
	require.Error(t, err)
	_, err = parseGrid("38,23,37", 0.25)
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	c, err := domain.ParseCycleDir("20241020_12")
	require.NoError(t, err)
	g, err := parseGrid("38,23,37.5,23.75", 0.25)
	require.NoError(t, err)

	paths, err := generate(options{out: t.TempDir(), cycle: c, maxHours: 2, grid: g})
	require.NoError(t, err)
	require.Len(t, paths, 3)

	f, err := os.Open(paths[2])
	require.NoError(t, err)
	defer f.Close()
	msgs, err := grib2.ReadAll(f)
	require.NoError(t, err)
	require.Len(t, msgs, len(fields))

	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		field, err := m.Parse()
		require.NoError(t, err)
		assert.Equal(t, g.Len(), field.Grid.Len())
		names = append(names, field.Product.ShortName())

		values, err := field.Values()
		require.NoError(t, err)
		assert.Len(t, values, g.Len())
	}
	assert.Equal(t, []string{"2t", "2r", "tp", "cprat", "10u", "10v", "prmsl", "lcc"}, names)
}
