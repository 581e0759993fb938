package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParameterKey_Standardizes(t *testing.T) {
	k := NewParameterKey(0, 2, " 2T ", "2 Metre Temperature")
	assert.Equal(t, ParameterKey{Category: 0, Level: 2, ShortName: "2t", Description: "2 metre temperature"}, k)
}

func TestParameterSet_Contains(t *testing.T) {
	set := NewParameterSet(ParameterKey{Category: 0, Level: 2, ShortName: "2T", Description: "2 metre temperature"})

	assert.True(t, set.Contains(ParameterKey{Category: 0, Level: 2, ShortName: "2t", Description: "2 Metre Temperature"}))
	assert.False(t, set.Contains(ParameterKey{Category: 0, Level: 850, ShortName: "t", Description: "temperature"}))
	assert.False(t, set.Contains(ParameterKey{Category: 1, Level: 2, ShortName: "2t", Description: "2 metre temperature"}))
}

func TestFieldKey_String(t *testing.T) {
	assert.Equal(t, "2t_level_2_heightAboveGround", Temperature2m.String())
	assert.Equal(t, "lcc_level_0_lowCloudLayer", LowCloudCover.String())
	assert.Equal(t, "10u_level_10_heightAboveGround", FieldKey{ShortName: "10U", Level: 10, TypeOfLevel: "heightAboveGround"}.String())
}

func TestParseFieldKey(t *testing.T) {
	for _, k := range []FieldKey{Temperature2m, Humidity2m, TotalPrecipitation, ConvectivePrecip, WindU10m, WindV10m, PressureMSL, LowCloudCover} {
		got, err := ParseFieldKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	for _, bad := range []string{"", "2t", "2t_level_x_surface", "2t_level_2", "_level_2_surface"} {
		_, err := ParseFieldKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestForecastData_JSONUsesStorageKeys(t *testing.T) {
	v := 288.5
	data := ForecastData{Temperature2m: &v, LowCloudCover: nil}

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2t_level_2_heightAboveGround":288.5,"lcc_level_0_lowCloudLayer":null}`, string(raw))

	var back ForecastData
	require.NoError(t, json.Unmarshal(raw, &back))
	if diff := cmp.Diff(data, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestForecastData_Merge(t *testing.T) {
	a, b, c := 1.0, 2.0, 3.0
	existing := ForecastData{Temperature2m: &a, WindU10m: &b}
	existing.Merge(ForecastData{WindU10m: &c, PressureMSL: nil})

	want := ForecastData{Temperature2m: &a, WindU10m: &c, PressureMSL: nil}
	if diff := cmp.Diff(want, existing); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestEnabledParameter_Keys(t *testing.T) {
	p := EnabledParameter{Category: 2, Level: 10, ShortName: "10U", Description: "10 metre U wind component", TypeOfLevel: "heightAboveGround"}

	assert.Equal(t, ParameterKey{Category: 2, Level: 10, ShortName: "10u", Description: "10 metre u wind component"}, p.Key())
	assert.Equal(t, WindU10m, p.FieldKey())
}
