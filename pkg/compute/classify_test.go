package compute

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackwatch/rackwatch/pkg/types"
)

var probe = Threshold{Baseline: 45, Caution: 5, Warning: 10, Critical: 20}

func liquid() Threshold { return DefaultTable()[KeyLiquidLevel] }

func TestClassify_TwoSided(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  types.Severity
	}{
		{"at baseline", 45, types.Normal},
		{"inside caution width", 49.9, types.Normal},
		{"exactly on caution width is not exceeded", 50, types.Normal},
		{"just over caution", 50.1, types.Caution},
		{"below baseline caution", 39, types.Caution},
		{"warning", 56, types.Warning},
		{"warning below", 33, types.Warning},
		{"deviation 23 is critical", 68, types.Critical},
		{"far below", -100, types.Critical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.value, probe)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassify_LiquidLevelBelowOnly(t *testing.T) {
	tests := []struct {
		value float64
		want  types.Severity
	}{
		{95, types.Normal},
		{100, types.Normal},
		{1e6, types.Normal}, // clamped to 100, still above baseline
		{85, types.Normal},
		{74, types.Caution},
		{64, types.Warning},
		{50, types.Warning}, // deviation 35 does not exceed the critical width
		{40, types.Critical},
		{-5, types.Critical}, // clamped to 10
	}
	for _, tc := range tests {
		got, err := Classify(tc.value, liquid())
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "liquid level %v", tc.value)
	}
}

func TestClassify_AboveOnly(t *testing.T) {
	th := Threshold{Baseline: 10, Caution: 1, Warning: 2, Critical: 3, Direction: Above}

	got, err := Classify(0, th)
	require.NoError(t, err)
	assert.Equal(t, types.Normal, got)

	got, err = Classify(13.5, th)
	require.NoError(t, err)
	assert.Equal(t, types.Critical, got)
}

func TestClassify_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Classify(v, probe)
		var inv *InvalidReadingError
		require.True(t, errors.As(err, &inv), "value %v: want InvalidReadingError, got %v", v, err)
	}
}

func TestClassify_DisabledBand(t *testing.T) {
	th := Threshold{Baseline: 0, Caution: 0, Warning: 0, Critical: 5}

	got, err := Classify(4, th)
	require.NoError(t, err)
	assert.Equal(t, types.Normal, got)

	got, err = Classify(6, th)
	require.NoError(t, err)
	assert.Equal(t, types.Critical, got)
}

func TestClassify_LastMatchingBandWins(t *testing.T) {
	// Out-of-order widths: the most severe band exceeded still decides.
	th := Threshold{Baseline: 0, Caution: 10, Warning: 5, Critical: 30}

	got, err := Classify(7, th)
	require.NoError(t, err)
	assert.Equal(t, types.Warning, got)

	got, err = Classify(12, th)
	require.NoError(t, err)
	assert.Equal(t, types.Warning, got)
}

func TestClassify_Monotonic(t *testing.T) {
	rules := map[string]Threshold{
		"two-sided": probe,
		"liquid":    liquid(),
		"odd bands": {Baseline: 3, Caution: 4, Warning: 1, Critical: 9},
	}
	for name, th := range rules {
		t.Run(name, func(t *testing.T) {
			for _, sign := range []float64{1, -1} {
				if th.Direction == Below && sign > 0 {
					continue
				}
				prev := types.Normal
				for d := 0.0; d <= 100; d += 0.25 {
					got, err := Classify(th.Baseline+sign*d, th)
					require.NoError(t, err)
					require.GreaterOrEqual(t, types.Compare(got, prev), 0,
						"deviation %v (sign %v) dropped from %s to %s", d, sign, prev, got)
					prev = got
				}
			}
		})
	}
}

func TestTable_Classify(t *testing.T) {
	table := DefaultTable()

	r, err := table.Classify(KeyProbeTemperature, 68)
	require.NoError(t, err)
	assert.Equal(t, MetricReading{Metric: KeyProbeTemperature, Value: 68, Severity: types.Critical}, r)

	_, err = table.Classify(KeyLiquidLevel, math.NaN())
	var inv *InvalidReadingError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, KeyLiquidLevel, inv.Metric)

	_, err = table.Classify("bogus.metric", 1)
	assert.Error(t, err)
}
