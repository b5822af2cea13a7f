package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/oshokin/cucoon/internal/config"
	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
)

// Action names one cucoon-ctl operation.
type Action string

// Supported actions.
const (
	ActionStatus    Action = "status"
	ActionStop      Action = "stop"
	ActionTestAlert Action = "test-alert"
	ActionTestSafe  Action = "test-safe"
)

// Options configures one control call.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides the control address derived from config when specified.
	ServerAddress string

	// Action is the operation to perform.
	Action Action
}

var (
	// errUnknownAction is returned for an action that cucoon-ctl does not know.
	errUnknownAction = errors.New("unknown action")
	// errNoServerAddress indicates that neither config nor flags name the dashboard.
	errNoServerAddress = errors.New("no server address configured")
)

// Run performs one action against a running dashboard and logs the resulting state.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "cucoon-ctl")

	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	serverAddress, err := resolveServerAddress(cfg.GRPC.ListenAddress, opts.ServerAddress)
	if err != nil {
		return err
	}

	actor, err := DetectActor()
	if err != nil {
		return err
	}

	client, err := Dial(ctx, serverAddress, WithCallTimeout(cfg.Timeout), WithActor(actor))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	var call func(context.Context) (*alert.Snapshot, error)

	switch opts.Action {
	case ActionStatus:
		call = client.GetState
	case ActionStop:
		call = client.StopSiren
	case ActionTestAlert:
		call = client.TriggerTestAlert
	case ActionTestSafe:
		call = client.TriggerTestSafe
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}

	logger.DebugKV(ctx, "Calling dashboard", "server_address", serverAddress, "action", string(opts.Action))

	snapshot, err := call(ctx)
	if err != nil {
		return err
	}

	logger.Infof(ctx, "Dashboard: %s", FormatSnapshot(snapshot))

	return nil
}

// loadSettings reads the config file. A missing file is tolerated when the
// server address is given explicitly, since only the timeout is needed then.
func loadSettings(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err == nil {
		return cfg, nil
	}

	if opts.ServerAddress == "" || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return &config.Config{Timeout: config.DefaultTimeout}, nil
}

// resolveServerAddress turns the dashboard's gRPC listen address into a dial target.
// A listen address without host (":50051") is dialled on the loopback interface.
func resolveServerAddress(listenAddress, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if listenAddress == "" {
		return "", errNoServerAddress
	}

	host, port, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return "", fmt.Errorf("invalid grpc listen address %q: %w", listenAddress, err)
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port), nil
}

// FormatSnapshot renders a snapshot as one readable line.
func FormatSnapshot(snapshot *alert.Snapshot) string {
	if snapshot == nil {
		return "<nil snapshot>"
	}

	changedAt := "never"
	if !snapshot.ChangedAt.IsZero() {
		changedAt = snapshot.ChangedAt.Local().Format(time.RFC3339)
	}

	source := string(snapshot.LastSource)
	if source == "" {
		source = "none"
	}

	siren := "silent"
	if snapshot.AlarmPlaying {
		siren = "playing"
	}

	return fmt.Sprintf("%s, siren %s, broker %s (changed %s by %s, revision %d)",
		snapshot.State, siren, snapshot.Connection, changedAt, source, snapshot.Revision)
}
