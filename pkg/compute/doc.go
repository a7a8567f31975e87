// Package compute derives cabinet severities from raw telemetry snapshots.
//
// threshold.go defines the per-metric Threshold (baseline plus caution,
// warning and critical band widths, optional one-sided direction and clamp)
// and the Table that maps every MetricKey to its rule. DefaultTable returns
// the built-in rules for a standard cabinet; YAML overrides merge onto it.
//
// classify.go provides the pure Classify(value, Threshold) function. The
// result is the most severe band whose width the deviation exceeds.
// NaN and infinite inputs fail with *InvalidReadingError.
//
// aggregate.go folds severities upward with types.JoinAll:
// sensor -> unit, reading -> group, and groups + cabinet temperature +
// liquid level + units -> enclosure. Summarize produces the fleet tallies.
//
// engine.go wires the above into Engine.Evaluate, which validates a
// FleetSnapshot (validate.go), classifies every leaf, folds the tree and
// reports source-supplied severities that disagree as ConsistencyWarnings.
package compute
