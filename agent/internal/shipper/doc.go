// Package shipper sends FleetSnapshots to rackwatch-server via gRPC
// (rackwatch.v1.SnapshotService.SendSnapshot unary RPC, JSON codec from
// pkg/wire).
//
// Shipper.Ship() is non-blocking: snapshots are placed in an in-memory
// channel. When the buffer is full the oldest entry is evicted so the latest
// fleet state is always preserved.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection or send errors.
// InvalidArgument means the server evaluated the snapshot and rejected it;
// such snapshots are discarded rather than retried. A reply with Ok=false
// means the server already holds a newer status; that snapshot is dropped too.
//
// Shipper.Stats() reports delivered, rejected, superseded and evicted counts.
//
// The dialFn field is injectable for testing.
package shipper
