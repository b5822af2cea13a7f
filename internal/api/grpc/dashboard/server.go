package dashboard

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
)

// ActorMetadataKey carries "user@host" of the caller for the audit log.
const ActorMetadataKey = "x-cucoon-actor"

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Snapshot() *alert.Snapshot
	StopSiren(ctx context.Context) (*alert.Snapshot, error)
	TriggerTestAlert(ctx context.Context) (*alert.Snapshot, error)
	TriggerTestSafe(ctx context.Context) (*alert.Snapshot, error)
}

// Server implements the DashboardService gRPC API.
type Server struct {
	UnimplementedDashboardServiceServer

	// service provides the alert state and local actions.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetState returns the current snapshot.
func (s *Server) GetState(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(s.service.Snapshot())
}

// StopSiren acknowledges the alert.
func (s *Server) StopSiren(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.act(ctx, "stop siren", s.service.StopSiren)
}

// TriggerTestAlert raises a local test alert.
func (s *Server) TriggerTestAlert(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.act(ctx, "test alert", s.service.TriggerTestAlert)
}

// TriggerTestSafe returns the dashboard to SAFE locally.
func (s *Server) TriggerTestSafe(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.act(ctx, "test safe", s.service.TriggerTestSafe)
}

func (s *Server) act(
	ctx context.Context,
	action string,
	call func(context.Context) (*alert.Snapshot, error),
) (*structpb.Struct, error) {
	logger.InfoKV(ctx, "Control request received", "action", action, "actor", actorFromContext(ctx))

	snapshot, err := call(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return encode(snapshot)
}

// actorFromContext reads the caller identity from incoming metadata.
func actorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "unknown"
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return "unknown"
	}

	return values[0]
}

func encode(snapshot *alert.Snapshot) (*structpb.Struct, error) {
	result, err := SnapshotToStruct(snapshot)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode snapshot")
	}

	return result, nil
}

// toStatus maps service errors to gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, alert.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
