package compute

import (
	"fmt"
	"math"

	"github.com/rackwatch/rackwatch/pkg/types"
)

// InvalidReadingError is returned when a raw value is NaN or infinite.
// Such readings are never classified as normal.
type InvalidReadingError struct {
	Metric MetricKey // empty when classified without a table
	Value  float64
}

func (e *InvalidReadingError) Error() string {
	if e.Metric == "" {
		return fmt.Sprintf("invalid reading: %v is not a finite number", e.Value)
	}
	return fmt.Sprintf("invalid reading for %s: %v is not a finite number", e.Metric, e.Value)
}

// Classify maps value onto the severity scale using th.
//
// The deviation from th.Baseline is measured according to th.Direction after
// clamping to [th.Min, th.Max]. Bands are consulted from caution to critical
// and the last band whose width the deviation exceeds wins, so the result is
// the largest threshold exceeded.
func Classify(value float64, th Threshold) (types.Severity, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return types.Normal, &InvalidReadingError{Value: value}
	}

	dev := th.deviation(th.clamp(value))

	out := types.Normal
	for _, band := range [...]struct {
		width float64
		level types.Severity
	}{
		{th.Caution, types.Caution},
		{th.Warning, types.Warning},
		{th.Critical, types.Critical},
	} {
		if band.width > 0 && dev > band.width {
			out = band.level
		}
	}
	return out, nil
}

func (th Threshold) clamp(v float64) float64 {
	if th.Min != nil && v < *th.Min {
		v = *th.Min
	}
	if th.Max != nil && v > *th.Max {
		v = *th.Max
	}
	return v
}

func (th Threshold) deviation(v float64) float64 {
	switch th.Direction {
	case Below:
		return math.Max(0, th.Baseline-v)
	case Above:
		return math.Max(0, v-th.Baseline)
	default:
		return math.Abs(v - th.Baseline)
	}
}

// Classify looks up key and classifies value against its threshold.
func (t Table) Classify(key MetricKey, value float64) (MetricReading, error) {
	th, ok := t[key]
	if !ok {
		return MetricReading{}, fmt.Errorf("no threshold configured for %q", key)
	}
	sev, err := Classify(value, th)
	if err != nil {
		if inv, ok := err.(*InvalidReadingError); ok {
			inv.Metric = key
		}
		return MetricReading{}, err
	}
	return MetricReading{Metric: key, Value: value, Severity: sev}, nil
}
