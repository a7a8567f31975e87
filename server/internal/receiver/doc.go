// Package receiver accepts fleet snapshots and turns them into the server's
// current status.
//
// Receiver.Ingest is the single ingest path shared by the gRPC
// SnapshotService (Receiver.SendSnapshot) and the REST JSON endpoint. It runs
// compute.Engine.Evaluate on the snapshot; an evaluation error rejects the
// snapshot as a whole, leaving the last-known-good status in the store and
// recording the rejection. Consistency warnings never reject; they are logged
// and counted. Over gRPC a rejection maps to codes.InvalidArgument.
//
// OnAccept registers a callback run after each status becomes current; the
// server uses it to wake the WebSocket hub.
//
// LoggingInterceptor logs every unary call with its duration and status code.
package receiver
