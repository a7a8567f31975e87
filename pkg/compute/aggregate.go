package compute

import (
	"time"

	"github.com/rackwatch/rackwatch/pkg/types"
)

// GroupName identifies one of the metric groups of a cabinet.
type GroupName string

const (
	GroupPower      GroupName = "power"
	GroupInputFlow  GroupName = "input_flow"
	GroupOutputFlow GroupName = "output_flow"
)

// MetricReading is a classified leaf value.
type MetricReading struct {
	Metric   MetricKey      `json:"metric"`
	Value    float64        `json:"value"`
	Severity types.Severity `json:"severity"`
}

// SensorStatus is a classified temperature probe.
type SensorStatus struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Reading  MetricReading  `json:"reading"`
	Severity types.Severity `json:"severity"`
}

// UnitStatus is a server with its classified probes.
type UnitStatus struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Sensors  []SensorStatus `json:"sensors"`
	Severity types.Severity `json:"severity"`
}

// GroupStatus is a metric group (power, input flow, output flow).
type GroupStatus struct {
	Group    GroupName       `json:"group"`
	Readings []MetricReading `json:"readings"`
	Severity types.Severity  `json:"severity"`
}

// EnclosureStatus is a fully classified cabinet.
type EnclosureStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Power      GroupStatus `json:"power"`
	InputFlow  GroupStatus `json:"input_flow"`
	OutputFlow GroupStatus `json:"output_flow"`

	Temperature MetricReading `json:"temperature"`
	LiquidLevel MetricReading `json:"liquid_level"`

	// Leak is reported next to Severity and never folded into it.
	Leak bool `json:"leak"`

	Units []UnitStatus `json:"units"`

	// UnitSeverity is the join of all unit severities.
	UnitSeverity types.Severity `json:"unit_severity"`

	// Severity is the overall cabinet severity.
	Severity types.Severity `json:"severity"`
}

// FleetStatus is the result of evaluating one FleetSnapshot.
type FleetStatus struct {
	SnapshotID string            `json:"snapshot_id"`
	Source     string            `json:"source"`
	Timestamp  time.Time         `json:"timestamp"`
	Enclosures []EnclosureStatus `json:"enclosures"`

	// Severity is the join of all enclosure severities.
	Severity types.Severity `json:"severity"`

	Summary  Summary              `json:"summary"`
	Warnings []ConsistencyWarning `json:"warnings"`
}

// Enclosure returns the enclosure with the given ID.
func (f *FleetStatus) Enclosure(id string) (EnclosureStatus, bool) {
	for _, e := range f.Enclosures {
		if e.ID == id {
			return e, true
		}
	}
	return EnclosureStatus{}, false
}

// Unit returns the unit with the given ID.
func (e EnclosureStatus) Unit(id string) (UnitStatus, bool) {
	for _, u := range e.Units {
		if u.ID == id {
			return u, true
		}
	}
	return UnitStatus{}, false
}

// AggregateUnit returns u with Severity set to the join of its sensors.
// Any Severity already present on u is ignored.
func AggregateUnit(u UnitStatus) (UnitStatus, error) {
	levels := make([]types.Severity, 0, len(u.Sensors))
	for _, s := range u.Sensors {
		levels = append(levels, s.Severity)
	}
	sev, err := types.JoinAll(levels)
	if err != nil {
		return u, &types.EmptyAggregationError{What: "unit " + u.ID + " sensors"}
	}
	u.Severity = sev
	return u, nil
}

// AggregateGroup returns g with Severity set to the join of its readings.
func AggregateGroup(g GroupStatus) (GroupStatus, error) {
	levels := make([]types.Severity, 0, len(g.Readings))
	for _, r := range g.Readings {
		levels = append(levels, r.Severity)
	}
	sev, err := types.JoinAll(levels)
	if err != nil {
		return g, &types.EmptyAggregationError{What: string(g.Group) + " readings"}
	}
	g.Severity = sev
	return g, nil
}

// AggregateEnclosure returns e with UnitSeverity and Severity computed from
// its children. The group and unit severities are taken as given, so callers
// fold those first. The overall severity joins the three groups, the cabinet
// temperature, the liquid level and the joined units. Leak is not included.
func AggregateEnclosure(e EnclosureStatus) (EnclosureStatus, error) {
	unitLevels := make([]types.Severity, 0, len(e.Units))
	for _, u := range e.Units {
		unitLevels = append(unitLevels, u.Severity)
	}
	units, err := types.JoinAll(unitLevels)
	if err != nil {
		return e, &types.EmptyAggregationError{What: "enclosure " + e.ID + " units"}
	}

	sev, err := types.JoinAll([]types.Severity{
		e.Power.Severity,
		e.InputFlow.Severity,
		e.OutputFlow.Severity,
		e.Temperature.Severity,
		e.LiquidLevel.Severity,
		units,
	})
	if err != nil {
		return e, err
	}

	e.UnitSeverity = units
	e.Severity = sev
	return e, nil
}

// Counts tallies items per severity level.
type Counts struct {
	Normal   int `json:"normal"`
	Caution  int `json:"caution"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

// Add counts one item at level s.
func (c *Counts) Add(s types.Severity) {
	switch s {
	case types.Normal:
		c.Normal++
	case types.Caution:
		c.Caution++
	case types.Warning:
		c.Warning++
	case types.Critical:
		c.Critical++
	}
}

// Get returns the tally for level s.
func (c Counts) Get(s types.Severity) int {
	switch s {
	case types.Normal:
		return c.Normal
	case types.Caution:
		return c.Caution
	case types.Warning:
		return c.Warning
	case types.Critical:
		return c.Critical
	}
	return 0
}

// Total returns the sum over all levels.
func (c Counts) Total() int {
	return c.Normal + c.Caution + c.Warning + c.Critical
}

// Summary holds the fleet-wide tallies shown in the dashboard header.
// The three tallies are independent; none is derived from another.
type Summary struct {
	Enclosures      int    `json:"enclosures"`
	Units           int    `json:"units"`
	EnclosureCounts Counts `json:"enclosure_counts"`
	UnitCounts      Counts `json:"unit_counts"`
	LeakCount       int    `json:"leak_count"`
}

// Summarize counts enclosures per severity, units per severity across all
// enclosures, and enclosures with the leak flag set.
func Summarize(enclosures []EnclosureStatus) Summary {
	var s Summary
	s.Enclosures = len(enclosures)
	for _, e := range enclosures {
		s.EnclosureCounts.Add(e.Severity)
		if e.Leak {
			s.LeakCount++
		}
		for _, u := range e.Units {
			s.Units++
			s.UnitCounts.Add(u.Severity)
		}
	}
	return s
}
