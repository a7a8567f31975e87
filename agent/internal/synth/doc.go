// Package synth generates synthetic fleet snapshots for demos and tests.
//
// The generator picks a severity first, using the configured weights, and
// then places each value strictly inside that severity's band of the
// metric's threshold. One draw covers a whole reading group (power, input
// flow, output flow), the cabinet temperature, the liquid level and each
// server's probes. Every Reported field is filled with the severity the
// generator intended, so a server evaluating the snapshot against the same
// thresholds derives identical severities and records no consistency
// warnings.
package synth
