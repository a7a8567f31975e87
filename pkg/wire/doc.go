// Package wire defines the gRPC SnapshotService shared by rackwatch-agent and
// rackwatch-server.
//
// Messages are the plain Go types from pkg/types encoded as JSON. codec.go
// registers the "json" codec with grpc-go's encoding registry; clients select
// it per call with grpc.CallContentSubtype, and the server picks it from the
// request content-subtype. service.go holds the hand-written ServiceDesc,
// the server interface and the client stub.
package wire
