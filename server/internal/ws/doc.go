// Package ws implements the WebSocket hub for rackwatch-server.
//
// Hub manages a set of connected clients and broadcasts the current fleet
// status to all of them on a configurable interval (server.broadcast_interval,
// default 5s).
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker. It blocks until ctx is cancelled,
// then closes all active connections.
// Hub.Notify requests an immediate broadcast; the server calls it whenever the
// receiver accepts a snapshot, so dashboards see new data without waiting for
// the next tick.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// status immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot" | "unavailable",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// A client whose send buffer is full is disconnected. The upgrader accepts
// all origins. The server mounts the hub at /ws/stream.
package ws
