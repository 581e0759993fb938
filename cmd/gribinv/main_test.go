package main

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellinios/aethra/internal/grib2"
)

func TestInventory(t *testing.T) {
	grid := grib2.Grid{Ni: 2, Nj: 2, La1: 38, Lo1: 23, La2: 37.75, Lo2: 23.25, Di: 0.25, Dj: 0.25}
	two := int64(2)
	temp, err := grib2.Marshal(grib2.FieldSpec{
		Reference:    time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC),
		Grid:         grid,
		SurfaceType:  103,
		SurfaceValue: &two,
		Values:       []float64{280, 282, math.NaN(), 284},
	})
	require.NoError(t, err)
	broken := append([]byte(nil), temp...)
	copy(broken[len(broken)-4:], "XXXX")

	var out bytes.Buffer
	require.NoError(t, inventory(&out, bytes.NewReader(append(temp, broken...)), true))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1:0:cat=0:num=0:2t:2:heightAboveGround:packing=5.0:min=280:max=284:mean=282:masked=1", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2:"), lines[1])
	assert.Contains(t, lines[1], "error=")
}
