package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcapi "github.com/oshokin/cucoon/internal/api/grpc/dashboard"
	httpapi "github.com/oshokin/cucoon/internal/api/http/dashboard"
	"github.com/oshokin/cucoon/internal/audio"
	"github.com/oshokin/cucoon/internal/config"
	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
	"github.com/oshokin/cucoon/internal/messaging"
	"github.com/oshokin/cucoon/internal/service/alarm"
	"github.com/oshokin/cucoon/internal/service/instance"
	"github.com/oshokin/cucoon/internal/version"
)

// Options controls the cucoon-dashboard process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// HTTPAddress overrides the dashboard listen address.
	HTTPAddress string
	// GRPCAddress overrides the control API listen address.
	GRPCAddress string
	// BrokerURL overrides the broker endpoint.
	BrokerURL string
	// AllowMultiple skips the check for another running dashboard.
	AllowMultiple bool
}

const (
	// brokerQuiesce is how long pending publishes may drain on shutdown.
	brokerQuiesce = 250 * time.Millisecond
	// readHeaderTimeout bounds slow request headers.
	readHeaderTimeout = 10 * time.Second
)

// Run starts the dashboard and blocks until ctx is cancelled or a server fails.
//
//nolint:funlen // Linear wiring of every component reads best in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "cucoon-dashboard")

	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if err = logger.SetLevelName(cfg.LogLevel); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}

	logger.InfoKV(ctx, "Starting dashboard", version.LogFields()...)

	// One process owns the sound card.
	if !opts.AllowMultiple {
		if err = instance.EnsureSingle(); err != nil {
			return err
		}
	}

	output, err := audio.Open(cfg.Audio.Backend, cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}

	defer func() {
		if closeErr := output.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close audio output", "error", closeErr)
		}
	}()

	params := audio.SirenParams{
		SampleRate:    cfg.Audio.SampleRate,
		ToneHz:        cfg.Audio.ToneHz,
		WarbleHz:      cfg.Audio.WarbleHz,
		WarbleDepthHz: cfg.Audio.WarbleDepthHz,
		Gain:          cfg.Audio.Gain,
	}

	// The controller reports background changes before the service exists,
	// so notifications go through a channel drained by the service group.
	refresh := make(chan struct{}, 1)

	controller, err := alarm.NewController(
		ctx,
		func() (*audio.Handle, error) { return audio.NewHandle(output, params) },
		alarm.WithRebuildDelay(cfg.Audio.RebuildDelay),
		alarm.WithNotify(func() {
			select {
			case refresh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("create alarm controller: %w", err)
	}

	defer controller.Close()

	var svc *Service

	client, err := messaging.New(
		ctx,
		messaging.Options{
			BrokerURL:            cfg.MQTT.BrokerURL,
			ClientID:             cfg.MQTT.ClientID,
			Username:             cfg.MQTT.Username,
			Password:             cfg.MQTT.Password,
			Topic:                cfg.MQTT.AlertTopic,
			QoS:                  cfg.MQTT.QoSLevel(),
			ConnectTimeout:       cfg.MQTT.ConnectTimeout,
			ConnectRetryInterval: cfg.MQTT.ConnectRetryInterval,
			MaxReconnectInterval: cfg.MQTT.MaxReconnectInterval,
			KeepAlive:            cfg.MQTT.KeepAlive,
			PublishTimeout:       cfg.Timeout,
		},
		// Callbacks only fire after Connect, by which time svc is set.
		func(topic string, payload []byte) { svc.HandleMessage(topic, payload) },
		func(status alert.ConnectionStatus) { svc.SetConnectionStatus(status) },
	)
	if err != nil {
		return fmt.Errorf("create broker client: %w", err)
	}

	svc, err = NewService(
		Settings{
			ControlTopic:     cfg.MQTT.ControlTopic,
			PublishTestAlert: !cfg.MQTT.SkipTestAlertPublish,
		},
		client,
		controller,
	)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", cfg.HTTP.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTP.ListenAddress, err)
	}

	grpcListener, err := lc.Listen(ctx, "tcp", cfg.GRPC.ListenAddress)
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen on %s: %w", cfg.GRPC.ListenAddress, err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Handler:           httpapi.NewRouter(ctx, svc, httpapi.Options{ActionsPerMinute: cfg.HTTP.ActionsPerMinute}),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          logger.StdLogger(ctx, zapcore.WarnLevel),
		// Long-lived WebSocket streams end with the group.
		BaseContext: func(net.Listener) context.Context { return groupCtx },
	}

	grpcServer := grpc.NewServer()
	grpcapi.RegisterDashboardServiceServer(grpcServer, grpcapi.NewServer(svc))

	group.Go(func() error {
		return svc.Run(groupCtx)
	})

	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-refresh:
				svc.Refresh()
			}
		}
	})

	group.Go(func() error {
		logger.InfoKV(ctx, "Dashboard listening", "http_address", httpListener.Addr().String())

		if serveErr := httpServer.Serve(httpListener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		logger.InfoKV(ctx, "Control API listening", "grpc_address", grpcListener.Addr().String())

		if serveErr := grpcServer.Serve(grpcListener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down dashboard")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.WarnKV(ctx, "HTTP server shutdown failed", "error", shutdownErr)
		}

		grpcServer.GracefulStop()

		return nil
	})

	logger.InfoKV(ctx, "Connecting to broker",
		"broker_url", cfg.MQTT.BrokerURL,
		"alert_topic", cfg.MQTT.AlertTopic,
		"control_topic", cfg.MQTT.ControlTopic,
	)
	client.Connect()

	err = group.Wait()

	client.Close(brokerQuiesce)
	logger.Info(ctx, "Dashboard stopped")

	//nolint:errcheck // Sync fails on plain terminals, there is nothing to flush there.
	logger.Logger().Sync()

	return err
}

// loadSettings reads the config file and applies command line overrides.
func loadSettings(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.HTTPAddress != "" {
		cfg.HTTP.ListenAddress = opts.HTTPAddress
	}

	if opts.GRPCAddress != "" {
		cfg.GRPC.ListenAddress = opts.GRPCAddress
	}

	if opts.BrokerURL != "" {
		cfg.MQTT.BrokerURL = opts.BrokerURL
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
