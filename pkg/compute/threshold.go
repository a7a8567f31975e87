package compute

import (
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// MetricKey names one kind of leaf reading. Each key has its own Threshold.
type MetricKey string

// Metric keys for every leaf reading in a cabinet.
const (
	KeyPowerCurrent = MetricKey("power.current")
	KeyPowerVoltage = MetricKey("power.voltage")
	KeyPowerWatts   = MetricKey("power.power")

	KeyInputFlowRate        = MetricKey("input_flow.flow_rate")
	KeyInputFlowPressure    = MetricKey("input_flow.pressure")
	KeyInputFlowSpeed       = MetricKey("input_flow.flow_speed")
	KeyInputFlowTemperature = MetricKey("input_flow.temperature")

	KeyOutputFlowRate        = MetricKey("output_flow.flow_rate")
	KeyOutputFlowPressure    = MetricKey("output_flow.pressure")
	KeyOutputFlowSpeed       = MetricKey("output_flow.flow_speed")
	KeyOutputFlowTemperature = MetricKey("output_flow.temperature")

	KeyCabinetTemperature = MetricKey("cabinet.temperature")
	KeyLiquidLevel        = MetricKey("cabinet.liquid_level")

	KeyProbeTemperature = MetricKey("server.probe_temperature")
)

// RequiredKeys lists every metric the engine classifies. A Table handed to
// NewEngine must define all of them.
func RequiredKeys() []MetricKey {
	return []MetricKey{
		KeyPowerCurrent, KeyPowerVoltage, KeyPowerWatts,
		KeyInputFlowRate, KeyInputFlowPressure, KeyInputFlowSpeed, KeyInputFlowTemperature,
		KeyOutputFlowRate, KeyOutputFlowPressure, KeyOutputFlowSpeed, KeyOutputFlowTemperature,
		KeyCabinetTemperature, KeyLiquidLevel,
		KeyProbeTemperature,
	}
}

// Direction selects which side of the baseline counts as deviation.
type Direction string

const (
	// Both measures absolute distance from the baseline. The empty string
	// is treated as Both.
	Both Direction = "both"
	// Below only counts readings under the baseline; readings at or above
	// it are always normal.
	Below Direction = "below"
	// Above only counts readings over the baseline.
	Above Direction = "above"
)

// Threshold is the classification rule for one metric: a nominal baseline and
// the deviation band widths for caution, warning and critical. A band matches
// when the deviation strictly exceeds its width; a zero width disables it.
type Threshold struct {
	Baseline float64 `yaml:"baseline" json:"baseline"`
	Caution  float64 `yaml:"caution" json:"caution"`
	Warning  float64 `yaml:"warning" json:"warning"`
	Critical float64 `yaml:"critical" json:"critical"`

	Direction Direction `yaml:"direction,omitempty" json:"direction,omitempty"`

	// Min and Max clamp the raw value before the deviation is measured.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Validate checks that the rule is usable: finite numbers, non-negative
// widths in non-decreasing order, a known direction and a sane clamp.
func (th Threshold) Validate() error {
	for name, v := range map[string]float64{
		"baseline": th.Baseline, "caution": th.Caution,
		"warning": th.Warning, "critical": th.Critical,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if th.Caution < 0 || th.Warning < 0 || th.Critical < 0 {
		return fmt.Errorf("band widths must not be negative")
	}
	if th.Caution == 0 && th.Warning == 0 && th.Critical == 0 {
		return fmt.Errorf("at least one band width must be set")
	}
	prev := 0.0
	for _, w := range []float64{th.Caution, th.Warning, th.Critical} {
		if w == 0 {
			continue
		}
		if w < prev {
			return fmt.Errorf("band widths must not decrease with severity")
		}
		prev = w
	}
	switch th.Direction {
	case "", Both, Below, Above:
	default:
		return fmt.Errorf("unknown direction %q: want both|below|above", th.Direction)
	}
	if th.Min != nil && th.Max != nil && *th.Min > *th.Max {
		return fmt.Errorf("min %.2f is above max %.2f", *th.Min, *th.Max)
	}
	return nil
}

// Table maps each metric to its Threshold. It is loaded once at startup and
// treated as constant afterwards.
type Table map[MetricKey]Threshold

// UnmarshalYAML merges the YAML mapping onto the existing entries, so a
// config file only needs to list the fields it overrides.
func (t *Table) UnmarshalYAML(node *yaml.Node) error {
	var raw map[MetricKey]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if *t == nil {
		*t = make(Table, len(raw))
	}
	for key, n := range raw {
		th := (*t)[key]
		th.Min = copyFloat(th.Min)
		th.Max = copyFloat(th.Max)
		if err := n.Decode(&th); err != nil {
			return fmt.Errorf("thresholds %q: %w", key, err)
		}
		(*t)[key] = th
	}
	return nil
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, th := range t {
		th.Min = copyFloat(th.Min)
		th.Max = copyFloat(th.Max)
		out[k] = th
	}
	return out
}

// Validate checks every entry and that the table holds exactly the
// RequiredKeys. A key the engine never reads is usually a typo that would
// otherwise leave the intended metric on its default.
func (t Table) Validate() error {
	required := make(map[MetricKey]bool, len(t))
	for _, k := range RequiredKeys() {
		if _, ok := t[k]; !ok {
			return fmt.Errorf("thresholds: missing entry for %q", k)
		}
		required[k] = true
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !required[MetricKey(k)] {
			return fmt.Errorf("thresholds: unknown metric %q", k)
		}
	}
	for _, k := range keys {
		if err := t[MetricKey(k)].Validate(); err != nil {
			return fmt.Errorf("thresholds %q: %w", k, err)
		}
	}
	return nil
}

// DefaultTable returns the built-in thresholds for a standard liquid-cooled
// cabinet. Every call returns a fresh copy.
func DefaultTable() Table {
	return Table{
		KeyPowerCurrent: {Baseline: 85, Caution: 4, Warning: 8, Critical: 15},
		KeyPowerVoltage: {Baseline: 220, Caution: 5, Warning: 10, Critical: 20},
		KeyPowerWatts:   {Baseline: 18700, Caution: 900, Warning: 1800, Critical: 3500},

		KeyInputFlowRate:        {Baseline: 45, Caution: 2, Warning: 4, Critical: 8},
		KeyInputFlowPressure:    {Baseline: 350, Caution: 15, Warning: 30, Critical: 60},
		KeyInputFlowSpeed:       {Baseline: 1.8, Caution: 0.1, Warning: 0.2, Critical: 0.4},
		KeyInputFlowTemperature: {Baseline: 25, Caution: 1.5, Warning: 3, Critical: 6},

		KeyOutputFlowRate:        {Baseline: 44, Caution: 2, Warning: 4, Critical: 8},
		KeyOutputFlowPressure:    {Baseline: 280, Caution: 15, Warning: 30, Critical: 60},
		KeyOutputFlowSpeed:       {Baseline: 1.7, Caution: 0.1, Warning: 0.2, Critical: 0.4},
		KeyOutputFlowTemperature: {Baseline: 35, Caution: 1.5, Warning: 3, Critical: 6},

		KeyCabinetTemperature: {Baseline: 28, Caution: 1.5, Warning: 3, Critical: 6},
		KeyLiquidLevel: {
			Baseline: 85, Caution: 10, Warning: 20, Critical: 35,
			Direction: Below,
			Min:       floatPtr(10),
			Max:       floatPtr(100),
		},

		KeyProbeTemperature: {Baseline: 45, Caution: 5, Warning: 10, Critical: 20},
	}
}

func floatPtr(v float64) *float64 { return &v }

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return floatPtr(*p)
}
