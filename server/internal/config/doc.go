// Package config loads the server-side configuration from the `server:` section
// of the config file (other top-level keys are ignored by the server binary).
//
// Config fields:
//   - GRPCPort: port for the gRPC receiver (default 50051)
//   - HTTPPort: port for the REST API, WebSocket hub and /metrics (default 8080)
//   - BroadcastInterval: WebSocket push period (default 5s)
//   - Snapshot.TTL: how long the last accepted status stays current (default 2m)
//   - Thresholds: per-metric overrides merged onto compute.DefaultTable
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
