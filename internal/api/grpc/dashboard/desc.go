package dashboard

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cucoon.v1.DashboardService"

// Full method names.
const (
	GetStateMethod         = "/" + ServiceName + "/GetState"
	StopSirenMethod        = "/" + ServiceName + "/StopSiren"
	TriggerTestAlertMethod = "/" + ServiceName + "/TriggerTestAlert"
	TriggerTestSafeMethod  = "/" + ServiceName + "/TriggerTestSafe"
)

// DashboardServiceServer is the server API for the dashboard service.
//
//nolint:revive // Mirrors protoc-gen-go-grpc naming.
type DashboardServiceServer interface {
	GetState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	StopSiren(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	TriggerTestAlert(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	TriggerTestSafe(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedDashboardServiceServer answers every method with codes.Unimplemented.
type UnimplementedDashboardServiceServer struct{}

// GetState is not implemented.
func (UnimplementedDashboardServiceServer) GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetState not implemented")
}

// StopSiren is not implemented.
func (UnimplementedDashboardServiceServer) StopSiren(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method StopSiren not implemented")
}

// TriggerTestAlert is not implemented.
func (UnimplementedDashboardServiceServer) TriggerTestAlert(
	context.Context,
	*emptypb.Empty,
) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TriggerTestAlert not implemented")
}

// TriggerTestSafe is not implemented.
func (UnimplementedDashboardServiceServer) TriggerTestSafe(
	context.Context,
	*emptypb.Empty,
) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TriggerTestSafe not implemented")
}

// RegisterDashboardServiceServer registers srv on s.
func RegisterDashboardServiceServer(s grpc.ServiceRegistrar, srv DashboardServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unaryHandler adapts one server method to the grpc.MethodDesc handler shape.
func unaryHandler(
	fullMethod string,
	call func(DashboardServiceServer, context.Context, *emptypb.Empty) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(DashboardServiceServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			empty, _ := req.(*emptypb.Empty)
			return call(server, ctx, empty)
		}

		return interceptor(ctx, in, info, handler)
	}
}

//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetState",
			Handler:    unaryHandler(GetStateMethod, DashboardServiceServer.GetState),
		},
		{
			MethodName: "StopSiren",
			Handler:    unaryHandler(StopSirenMethod, DashboardServiceServer.StopSiren),
		},
		{
			MethodName: "TriggerTestAlert",
			Handler:    unaryHandler(TriggerTestAlertMethod, DashboardServiceServer.TriggerTestAlert),
		},
		{
			MethodName: "TriggerTestSafe",
			Handler:    unaryHandler(TriggerTestSafeMethod, DashboardServiceServer.TriggerTestSafe),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cucoon/v1/dashboard.proto",
}

// DashboardServiceClient is the client API for the dashboard service.
//
//nolint:revive // Mirrors protoc-gen-go-grpc naming.
type DashboardServiceClient interface {
	GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	StopSiren(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	TriggerTestAlert(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	TriggerTestSafe(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type dashboardServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDashboardServiceClient creates a client over cc.
func NewDashboardServiceClient(cc grpc.ClientConnInterface) DashboardServiceClient {
	return &dashboardServiceClient{cc: cc}
}

func (c *dashboardServiceClient) GetState(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, GetStateMethod, in, opts)
}

func (c *dashboardServiceClient) StopSiren(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, StopSirenMethod, in, opts)
}

func (c *dashboardServiceClient) TriggerTestAlert(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, TriggerTestAlertMethod, in, opts)
}

func (c *dashboardServiceClient) TriggerTestSafe(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, TriggerTestSafeMethod, in, opts)
}

func (c *dashboardServiceClient) invoke(
	ctx context.Context,
	method string,
	in *emptypb.Empty,
	opts []grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)

	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
