package messaging

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
	"github.com/oshokin/cucoon/internal/metrics"
)

// MessageHandler receives payloads published on the subscribed topic.
type MessageHandler func(topic string, payload []byte)

// StatusHandler is told about every connection status change.
type StatusHandler func(status alert.ConnectionStatus)

// Options describes the broker session.
type Options struct {
	// BrokerURL is the broker endpoint (tcp, ssl, ws or wss).
	BrokerURL string
	// ClientID identifies the session; generated when empty.
	ClientID string
	// Username is the optional broker username.
	Username string
	// Password is the optional broker password.
	Password string
	// Topic is subscribed on every connect.
	Topic string
	// QoS is used for the subscription and publishes.
	QoS byte
	// ConnectTimeout bounds one connection attempt.
	ConnectTimeout time.Duration
	// ConnectRetryInterval is the delay between initial connection attempts.
	ConnectRetryInterval time.Duration
	// MaxReconnectInterval caps reconnect back-off.
	MaxReconnectInterval time.Duration
	// KeepAlive is the MQTT keep-alive period.
	KeepAlive time.Duration
	// PublishTimeout bounds how long a publish is watched for completion.
	PublishTimeout time.Duration
}

// clientIDPrefix is used for generated client ids.
const clientIDPrefix = "cucoon-dashboard-"

const (
	// defaultPublishTimeout applies when Options.PublishTimeout is not set.
	defaultPublishTimeout = 5 * time.Second
	// defaultConnectRetryInterval applies when Options.ConnectRetryInterval is not set.
	defaultConnectRetryInterval = 5 * time.Second
)

var (
	// ErrNotConnected is returned by Publish while the broker session is down.
	ErrNotConnected = errors.New("not connected to broker")
	// errBrokerRequired is returned when no broker URL is configured.
	errBrokerRequired = errors.New("broker url must be provided")
	// errTopicRequired is returned when no subscription topic is configured.
	errTopicRequired = errors.New("topic must be provided")

	// bridgeOnce installs the zap bridge for the library loggers once per process.
	//nolint:gochecknoglobals // Paho loggers are package globals.
	bridgeOnce sync.Once
)

// Client is a single broker session.
type Client struct {
	// ctx carries the logger; it is detached from caller cancellation.
	ctx       context.Context //nolint:containedctx // Logger scope for library callbacks.
	opts      Options
	api       mqtt.Client
	onMessage MessageHandler
	onStatus  StatusHandler

	status atomic.Int32
	// connectMu orders connection attempts against Close, so no attempt starts after Disconnect.
	connectMu sync.Mutex
	done      chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// factory builds the underlying library client. Tests replace it.
type factory func(*mqtt.ClientOptions) mqtt.Client

// New prepares a client. Call Connect to start the session.
func New(ctx context.Context, opts Options, onMessage MessageHandler, onStatus StatusHandler) (*Client, error) {
	return newClient(ctx, opts, onMessage, onStatus, mqtt.NewClient)
}

func newClient(
	ctx context.Context,
	opts Options,
	onMessage MessageHandler,
	onStatus StatusHandler,
	build factory,
) (*Client, error) {
	if opts.BrokerURL == "" {
		return nil, errBrokerRequired
	}

	if opts.Topic == "" {
		return nil, errTopicRequired
	}

	if _, err := url.Parse(opts.BrokerURL); err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	if opts.ClientID == "" {
		opts.ClientID = clientIDPrefix + uuid.NewString()
	}

	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	if opts.ConnectRetryInterval <= 0 {
		opts.ConnectRetryInterval = defaultConnectRetryInterval
	}

	ctx = logger.WithKV(
		logger.WithName(context.WithoutCancel(ctx), "mqtt"),
		"broker", opts.BrokerURL,
		"client_id", opts.ClientID,
	)

	bridgeLibraryLogs(ctx)

	c := &Client{
		ctx:       ctx,
		opts:      opts,
		onMessage: onMessage,
		onStatus:  onStatus,
		done:      make(chan struct{}),
	}

	c.api = build(c.clientOptions())

	return c, nil
}

// clientOptions translates Options into library options with lifecycle hooks bound to c.
func (c *Client) clientOptions() *mqtt.ClientOptions {
	options := mqtt.NewClientOptions().
		AddBroker(c.opts.BrokerURL).
		SetClientID(c.opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(c.opts.MaxReconnectInterval).
		SetConnectTimeout(c.opts.ConnectTimeout).
		SetKeepAlive(c.opts.KeepAlive).
		SetOnConnectHandler(c.handleConnect).
		SetConnectionLostHandler(c.handleConnectionLost).
		SetReconnectingHandler(c.handleReconnecting).
		SetConnectionAttemptHandler(c.handleConnectionAttempt)

	if c.opts.Username != "" {
		options.SetUsername(c.opts.Username)
		options.SetPassword(c.opts.Password)
	}

	return options
}

// Connect starts the session in the background. A failed attempt is logged,
// reported as DISCONNECTED and retried after ConnectRetryInterval until the
// first session is up; lost sessions are then handled by auto reconnect.
func (c *Client) Connect() {
	c.setStatus(alert.Connecting)
	logger.Info(c.ctx, "Connecting to broker")

	c.wg.Add(1)

	go c.connectLoop()
}

func (c *Client) connectLoop() {
	defer c.wg.Done()

	for {
		token, ok := c.attempt()
		if !ok {
			return
		}

		select {
		case <-token.Done():
		case <-c.done:
			return
		}

		err := token.Error()
		if err == nil {
			return
		}

		logger.ErrorKV(c.ctx, "Broker connection failed", "error", err, "retry_in", c.opts.ConnectRetryInterval)
		c.setStatus(alert.Disconnected)

		timer := time.NewTimer(c.opts.ConnectRetryInterval)

		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			return
		}
	}
}

// attempt starts one connection attempt unless the client is closed.
func (c *Client) attempt() (mqtt.Token, bool) {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	select {
	case <-c.done:
		return nil, false
	default:
	}

	c.setStatus(alert.Connecting)

	return c.api.Connect(), true
}

// Status returns the current connection status.
func (c *Client) Status() alert.ConnectionStatus {
	return alert.ConnectionStatus(c.status.Load())
}

// IsConnected reports whether the broker session is open.
func (c *Client) IsConnected() bool {
	return c.api.IsConnectionOpen()
}

// Publish sends payload to topic without waiting for the broker. Delivery
// failures are logged. It returns ErrNotConnected while the session is down.
func (c *Client) Publish(topic, payload string) error {
	if !c.IsConnected() {
		metrics.IncPublish(payload, metrics.OutcomeDisconnected)
		return ErrNotConnected
	}

	token := c.api.Publish(topic, c.opts.QoS, false, payload)

	c.wg.Add(1)

	go c.watchPublish(token, topic, payload)

	return nil
}

// Close ends the session and waits for background watchers.
func (c *Client) Close(quiesce time.Duration) {
	c.once.Do(func() {
		c.connectMu.Lock()
		close(c.done)
		c.connectMu.Unlock()

		c.api.Disconnect(uint(quiesce.Milliseconds()))
		c.wg.Wait()
		c.setStatus(alert.Disconnected)
		logger.Info(c.ctx, "Disconnected from broker")
	})
}

// watchPublish logs the outcome of one publish.
func (c *Client) watchPublish(token mqtt.Token, topic, payload string) {
	defer c.wg.Done()

	timer := time.NewTimer(c.opts.PublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		logger.WarnKV(c.ctx, "Publish not confirmed in time", "topic", topic, "payload", payload)
		metrics.IncPublish(payload, metrics.OutcomeFailed)

		return
	case <-c.done:
		return
	}

	if err := token.Error(); err != nil {
		logger.ErrorKV(c.ctx, "Publish failed", "topic", topic, "payload", payload, "error", err)
		metrics.IncPublish(payload, metrics.OutcomeFailed)

		return
	}

	logger.InfoKV(c.ctx, "Published", "topic", topic, "payload", payload)
	metrics.IncPublish(payload, metrics.OutcomeSent)
}

// handleConnect subscribes on every (re)connect; clean sessions forget subscriptions.
func (c *Client) handleConnect(api mqtt.Client) {
	c.setStatus(alert.Connected)
	logger.InfoKV(c.ctx, "Connected to broker", "topic", c.opts.Topic)

	token := api.Subscribe(c.opts.Topic, c.opts.QoS, c.handleMessage)

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		select {
		case <-token.Done():
		case <-c.done:
			return
		}

		if err := token.Error(); err != nil {
			logger.ErrorKV(c.ctx, "Subscribe failed", "topic", c.opts.Topic, "error", err)
			return
		}

		logger.InfoKV(c.ctx, "Subscribed", "topic", c.opts.Topic)
	}()
}

func (c *Client) handleConnectionLost(_ mqtt.Client, err error) {
	logger.WarnKV(c.ctx, "Broker connection lost", "error", err)
	c.setStatus(alert.Disconnected)
}

func (c *Client) handleReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	logger.Info(c.ctx, "Reconnecting to broker")
	c.setStatus(alert.Connecting)
}

func (c *Client) handleConnectionAttempt(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
	logger.DebugKV(c.ctx, "Connection attempt", "endpoint", broker.Redacted())
	c.setStatus(alert.Connecting)

	return tlsCfg
}

func (c *Client) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	if c.onMessage != nil {
		c.onMessage(msg.Topic(), msg.Payload())
	}
}

// setStatus records status and notifies the handler on change.
func (c *Client) setStatus(status alert.ConnectionStatus) {
	previous := alert.ConnectionStatus(c.status.Swap(int32(status)))
	if previous == status {
		return
	}

	metrics.BrokerConnectionStatus.Set(float64(status))

	if c.onStatus != nil {
		c.onStatus(status)
	}
}

// bridgeLibraryLogs routes Paho's error and warning loggers through zap.
func bridgeLibraryLogs(ctx context.Context) {
	bridgeOnce.Do(func() {
		libraryCtx := logger.WithName(ctx, "paho")
		mqtt.CRITICAL = logger.StdLogger(libraryCtx, zap.ErrorLevel)
		mqtt.ERROR = logger.StdLogger(libraryCtx, zap.ErrorLevel)
		mqtt.WARN = logger.StdLogger(libraryCtx, zap.WarnLevel)
	})
}
