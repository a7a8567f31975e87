package wire

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rackwatch/rackwatch/pkg/types"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "rackwatch.v1.SnapshotService"

	// SendSnapshotMethod is the full method path of SendSnapshot.
	SendSnapshotMethod = "/" + ServiceName + "/SendSnapshot"
)

// SendResponse acknowledges one FleetSnapshot.
type SendResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`

	// Warnings is the number of consistency warnings the server recorded
	// while evaluating the snapshot.
	Warnings int `json:"warnings"`
}

// SnapshotServiceServer is implemented by the rackwatch-server receiver.
type SnapshotServiceServer interface {
	SendSnapshot(context.Context, *types.FleetSnapshot) (*SendResponse, error)
}

// RegisterSnapshotServiceServer registers srv on s.
func RegisterSnapshotServiceServer(s grpc.ServiceRegistrar, srv SnapshotServiceServer) {
	s.RegisterService(&SnapshotServiceDesc, srv)
}

// SnapshotServiceDesc is the grpc.ServiceDesc for SnapshotService.
var SnapshotServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendSnapshot",
			Handler:    sendSnapshotHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rackwatch/v1/snapshot.json",
}

func sendSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(types.FleetSnapshot)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).SendSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendSnapshotMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServiceServer).SendSnapshot(ctx, req.(*types.FleetSnapshot))
	}
	return interceptor(ctx, in, info, handler)
}

// SnapshotServiceClient is the client API for SnapshotService.
type SnapshotServiceClient interface {
	SendSnapshot(ctx context.Context, in *types.FleetSnapshot, opts ...grpc.CallOption) (*SendResponse, error)
}

type snapshotServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSnapshotServiceClient returns a client that sends every call with the
// JSON codec.
func NewSnapshotServiceClient(cc grpc.ClientConnInterface) SnapshotServiceClient {
	return &snapshotServiceClient{cc: cc}
}

func (c *snapshotServiceClient) SendSnapshot(ctx context.Context, in *types.FleetSnapshot, opts ...grpc.CallOption) (*SendResponse, error) {
	out := new(SendResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SendSnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
