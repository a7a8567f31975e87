package compute

import (
	"fmt"

	"github.com/rackwatch/rackwatch/pkg/types"
)

// ConsistencyWarning records a severity supplied by the data source that
// disagrees with the severity the engine derived. The derived value is
// authoritative; the warning is informational only.
type ConsistencyWarning struct {
	// Path locates the entity, e.g. "C01", "C01/power", "C01/S02/C01-S02-1".
	Path string `json:"path"`

	// Entity is one of: enclosure | group | reading | unit | sensor.
	Entity string `json:"entity"`

	Reported types.Severity `json:"reported"`
	Computed types.Severity `json:"computed"`
}

func (w ConsistencyWarning) String() string {
	return fmt.Sprintf("%s %s: reported %s, computed %s", w.Entity, w.Path, w.Reported, w.Computed)
}

// Engine classifies and aggregates fleet snapshots against a fixed threshold
// table. It holds no mutable state, so Evaluate is safe for concurrent use.
type Engine struct {
	table Table
}

// NewEngine validates table and returns an Engine using a private copy of it.
func NewEngine(table Table) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	return &Engine{table: table.Clone()}, nil
}

// Table returns a copy of the engine's thresholds.
func (e *Engine) Table() Table {
	return e.table.Clone()
}

// Classify classifies one value of the given metric.
func (e *Engine) Classify(key MetricKey, value float64) (MetricReading, error) {
	return e.table.Classify(key, value)
}

// Evaluate validates snap, classifies every leaf reading and folds the
// severities upward: sensors into units, readings into groups, and groups,
// cabinet readings and units into each enclosure.
//
// Any error rejects the snapshot as a whole; no partial FleetStatus is ever
// returned. Mismatching source-reported severities do not fail evaluation and
// are returned in FleetStatus.Warnings.
func (e *Engine) Evaluate(snap *types.FleetSnapshot) (*FleetStatus, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}

	ev := &evaluation{table: e.table}
	out := &FleetStatus{
		SnapshotID: snap.ID,
		Source:     snap.Source,
		Timestamp:  snap.Timestamp,
		Enclosures: make([]EnclosureStatus, 0, len(snap.Enclosures)),
		Warnings:   []ConsistencyWarning{},
	}

	levels := make([]types.Severity, 0, len(snap.Enclosures))
	for _, enc := range snap.Enclosures {
		st, err := ev.enclosure(enc)
		if err != nil {
			return nil, fmt.Errorf("compute: enclosure %s: %w", enc.ID, err)
		}
		out.Enclosures = append(out.Enclosures, st)
		levels = append(levels, st.Severity)
	}

	sev, err := types.JoinAll(levels)
	if err != nil {
		return nil, fmt.Errorf("compute: %w", &types.EmptyAggregationError{What: "fleet enclosures"})
	}
	out.Severity = sev
	out.Summary = Summarize(out.Enclosures)
	out.Warnings = append(out.Warnings, ev.warnings...)
	return out, nil
}

// evaluation carries the per-call warning list so Engine itself stays
// immutable.
type evaluation struct {
	table    Table
	warnings []ConsistencyWarning
}

type leaf struct {
	key   MetricKey
	value float64
}

func (ev *evaluation) check(path, entity string, reported *types.Severity, computed types.Severity) {
	if reported == nil || *reported == computed {
		return
	}
	ev.warnings = append(ev.warnings, ConsistencyWarning{
		Path:     path,
		Entity:   entity,
		Reported: *reported,
		Computed: computed,
	})
}

func (ev *evaluation) group(path string, name GroupName, reported *types.Severity, leaves []leaf) (GroupStatus, error) {
	g := GroupStatus{Group: name, Readings: make([]MetricReading, 0, len(leaves))}
	for _, l := range leaves {
		r, err := ev.table.Classify(l.key, l.value)
		if err != nil {
			return g, err
		}
		g.Readings = append(g.Readings, r)
	}
	g, err := AggregateGroup(g)
	if err != nil {
		return g, err
	}
	ev.check(path+"/"+string(name), "group", reported, g.Severity)
	return g, nil
}

func (ev *evaluation) flow(path string, name GroupName, f types.FlowMetrics) (GroupStatus, error) {
	keys := [4]MetricKey{KeyInputFlowRate, KeyInputFlowPressure, KeyInputFlowSpeed, KeyInputFlowTemperature}
	if name == GroupOutputFlow {
		keys = [4]MetricKey{KeyOutputFlowRate, KeyOutputFlowPressure, KeyOutputFlowSpeed, KeyOutputFlowTemperature}
	}
	return ev.group(path, name, f.Reported, []leaf{
		{keys[0], f.FlowRate},
		{keys[1], f.Pressure},
		{keys[2], f.FlowSpeed},
		{keys[3], f.Temperature},
	})
}

func (ev *evaluation) unit(encPath string, u types.ComponentUnit) (UnitStatus, error) {
	path := encPath + "/" + u.ID
	us := UnitStatus{ID: u.ID, Name: u.Name, Sensors: make([]SensorStatus, 0, len(u.Sensors))}
	for _, s := range u.Sensors {
		r, err := ev.table.Classify(KeyProbeTemperature, s.Temperature)
		if err != nil {
			return us, fmt.Errorf("sensor %s/%s: %w", u.ID, s.ID, err)
		}
		ev.check(path+"/"+s.ID, "sensor", s.Reported, r.Severity)
		us.Sensors = append(us.Sensors, SensorStatus{ID: s.ID, Name: s.Name, Reading: r, Severity: r.Severity})
	}
	us, err := AggregateUnit(us)
	if err != nil {
		return us, err
	}
	ev.check(path, "unit", u.Reported, us.Severity)
	return us, nil
}

func (ev *evaluation) enclosure(enc types.Enclosure) (EnclosureStatus, error) {
	st := EnclosureStatus{ID: enc.ID, Name: enc.Name, Leak: enc.Leak}
	var err error

	st.Power, err = ev.group(enc.ID, GroupPower, enc.Power.Reported, []leaf{
		{KeyPowerCurrent, enc.Power.Current},
		{KeyPowerVoltage, enc.Power.Voltage},
		{KeyPowerWatts, enc.Power.Power},
	})
	if err != nil {
		return st, err
	}
	if st.InputFlow, err = ev.flow(enc.ID, GroupInputFlow, enc.InputFlow); err != nil {
		return st, err
	}
	if st.OutputFlow, err = ev.flow(enc.ID, GroupOutputFlow, enc.OutputFlow); err != nil {
		return st, err
	}

	if st.Temperature, err = ev.table.Classify(KeyCabinetTemperature, enc.Temperature); err != nil {
		return st, err
	}
	ev.check(enc.ID+"/temperature", "reading", enc.TemperatureReported, st.Temperature.Severity)

	if st.LiquidLevel, err = ev.table.Classify(KeyLiquidLevel, enc.LiquidLevel); err != nil {
		return st, err
	}
	ev.check(enc.ID+"/liquid_level", "reading", enc.LiquidLevelReported, st.LiquidLevel.Severity)

	st.Units = make([]UnitStatus, 0, len(enc.Units))
	for _, u := range enc.Units {
		us, err := ev.unit(enc.ID, u)
		if err != nil {
			return st, err
		}
		st.Units = append(st.Units, us)
	}

	if st, err = AggregateEnclosure(st); err != nil {
		return st, err
	}
	ev.check(enc.ID, "enclosure", enc.Reported, st.Severity)
	return st, nil
}
