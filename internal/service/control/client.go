package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/cucoon/internal/api/grpc/dashboard"
	"github.com/oshokin/cucoon/internal/config"
	"github.com/oshokin/cucoon/internal/domain/alert"
)

// Client wraps the gRPC DashboardService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the dashboard.
	conn *grpc.ClientConn
	// api is the DashboardService client interface.
	api api.DashboardServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent with every call, empty means anonymous.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the caller identity to every call.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the dashboard control API.
// Note: this uses insecure transport credentials; the control API is meant
// for the local machine or a trusted network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial dashboard: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewDashboardServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetState retrieves the current snapshot.
func (c *Client) GetState(ctx context.Context) (*alert.Snapshot, error) {
	return c.call(ctx, "get state", c.api.GetState)
}

// StopSiren acknowledges the alert on the dashboard.
func (c *Client) StopSiren(ctx context.Context) (*alert.Snapshot, error) {
	return c.call(ctx, "stop siren", c.api.StopSiren)
}

// TriggerTestAlert raises a test alert on the dashboard.
func (c *Client) TriggerTestAlert(ctx context.Context) (*alert.Snapshot, error) {
	return c.call(ctx, "trigger test alert", c.api.TriggerTestAlert)
}

// TriggerTestSafe resets the dashboard to SAFE without notifying the broker.
func (c *Client) TriggerTestSafe(ctx context.Context) (*alert.Snapshot, error) {
	return c.call(ctx, "trigger test safe", c.api.TriggerTestSafe)
}

type unaryCall func(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)

func (c *Client) call(ctx context.Context, name string, method unaryCall) (*alert.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := method(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	snapshot, err := api.SnapshotFromStruct(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return snapshot, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor, if any,
// travels as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, api.ActorMetadataKey, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
