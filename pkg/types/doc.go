// Package types defines shared Go types used by both the agent and server.
// These are the canonical in-memory representations of cabinet telemetry,
// separate from any wire or exposition format.
//
// severity.go holds the four-level Severity scale (normal < caution <
// warning < critical) together with Compare, Join and JoinAll.
//
// snapshot.go holds the raw FleetSnapshot tree produced by a data source:
// enclosures (cabinets) with power and coolant flow groups, cabinet
// temperature, liquid level, a leak flag and component units (servers), each
// carrying its temperature sensor points. Severities a source attaches to the
// tree are advisory only; the compute package always derives its own.
package types
