// Package metrics exposes rackwatch-server self-metrics in Prometheus format.
//
// Ingest counters (accepted and rejected snapshots, consistency warnings by
// entity) are updated by the receiver. Fleet gauges are produced at scrape
// time by a custom prometheus.Collector that reads the store's current
// status, so they always reflect the last-known-good snapshot and vanish
// when it expires.
package metrics
