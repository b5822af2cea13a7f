package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/cucoon/internal/domain/alert"
)

// Config holds the settings of the dashboard and its control CLI.
type Config struct {
	// LogLevel is the minimum level written to the log (debug, info, warn, error).
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// Timeout bounds control calls and graceful shutdown.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// MQTT is the broker connection.
	MQTT MQTT `yaml:"mqtt"`
	// HTTP is the dashboard web listener.
	HTTP HTTP `yaml:"http"`
	// GRPC is the control API listener.
	GRPC GRPC `yaml:"grpc"`
	// Audio configures the local siren.
	Audio Audio `yaml:"audio"`
}

// MQTT describes the broker session.
type MQTT struct {
	// BrokerURL is the broker endpoint, e.g. wss://broker.example.com:8884/mqtt.
	BrokerURL string `yaml:"broker_url" validate:"required,url"`
	// ClientID identifies the session. A random one is generated when empty.
	ClientID string `yaml:"client_id"`
	// Username is the optional broker username.
	Username string `yaml:"username"`
	// Password is the optional broker password.
	Password string `yaml:"password"`
	// AlertTopic is subscribed for ALERT and STOP payloads.
	AlertTopic string `yaml:"alert_topic"`
	// ControlTopic receives STOP acknowledgements and TEST_ALERT notifications.
	ControlTopic string `yaml:"control_topic"`
	// QoS is used for both the subscription and outbound publishes.
	// Nil selects DefaultQoS; an explicit 0 is kept.
	QoS *byte `yaml:"qos,omitempty" validate:"omitempty,lte=2"`
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
	// ConnectRetryInterval is the delay between initial connection attempts.
	ConnectRetryInterval time.Duration `yaml:"connect_retry_interval" validate:"gte=0"`
	// MaxReconnectInterval caps the back-off between reconnects after a lost session.
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval" validate:"gte=0"`
	// KeepAlive is the MQTT keep-alive period.
	KeepAlive time.Duration `yaml:"keep_alive" validate:"gte=0"`
	// SkipTestAlertPublish keeps local test alerts off the broker.
	SkipTestAlertPublish bool `yaml:"skip_test_alert_publish"`
}

// QoSLevel returns the configured QoS, or DefaultQoS when unset.
func (m *MQTT) QoSLevel() byte {
	if m.QoS == nil {
		return DefaultQoS
	}

	return *m.QoS
}

// HTTP describes the dashboard web listener.
type HTTP struct {
	// ListenAddress is the TCP address of the dashboard, e.g. ":8080".
	ListenAddress string `yaml:"listen_addr"`
	// ActionsPerMinute limits operator actions per client IP. Zero selects
	// DefaultActionsPerMinute, DisableActionLimit turns the limit off.
	ActionsPerMinute int `yaml:"actions_per_minute" validate:"gte=-1"`
}

// GRPC describes the control API listener.
type GRPC struct {
	// ListenAddress is the TCP address of the control API, e.g. ":50051".
	ListenAddress string `yaml:"listen_addr"`
}

// Audio configures siren synthesis and playback.
type Audio struct {
	// Backend selects the output: "oto" plays through the sound card, "none" stays silent.
	Backend string `yaml:"backend" validate:"omitempty,oneof=oto none"`
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int `yaml:"sample_rate" validate:"gte=0,lte=192000"`
	// ToneHz is the carrier frequency of the siren.
	ToneHz float64 `yaml:"tone_hz" validate:"gte=0"`
	// WarbleHz is the frequency of the pitch modulator.
	WarbleHz float64 `yaml:"warble_hz" validate:"gte=0"`
	// WarbleDepthHz is how far the modulator moves the pitch either way.
	WarbleDepthHz float64 `yaml:"warble_depth_hz" validate:"gte=0"`
	// Gain is the output amplitude in the [0, 1] range.
	Gain float64 `yaml:"gain" validate:"gte=0,lte=1"`
	// RebuildDelay is how long after a stop the replacement siren is built.
	RebuildDelay time.Duration `yaml:"rebuild_delay" validate:"gte=0"`
}

const (
	// DefaultConfigFilename is the default filename for dashboard settings.
	DefaultConfigFilename = "cucoon-settings.yaml"

	// DefaultTimeout is the default duration for control calls and shutdown.
	DefaultTimeout = 5 * time.Second

	// DefaultHTTPAddress is where the dashboard page is served.
	DefaultHTTPAddress = ":8080"

	// DefaultGRPCAddress is where the control API listens.
	DefaultGRPCAddress = ":50051"

	// DefaultActionsPerMinute limits operator actions per client IP.
	DefaultActionsPerMinute = 60

	// DisableActionLimit as ActionsPerMinute serves actions without rate limiting.
	DisableActionLimit = -1

	// DefaultQoS is used for the subscription and publishes.
	DefaultQoS = 1

	// DefaultConnectTimeout bounds one broker connection attempt.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultConnectRetryInterval is the delay between initial connection attempts.
	DefaultConnectRetryInterval = 5 * time.Second

	// DefaultMaxReconnectInterval caps reconnect back-off.
	DefaultMaxReconnectInterval = time.Minute

	// DefaultKeepAlive is the MQTT keep-alive period.
	DefaultKeepAlive = 30 * time.Second

	// DefaultAudioBackend plays through the sound card.
	DefaultAudioBackend = "oto"

	// DefaultSampleRate is the PCM sample rate of the siren.
	DefaultSampleRate = 44100

	// DefaultToneHz is the siren carrier frequency.
	DefaultToneHz = 800

	// DefaultWarbleHz is the siren modulation frequency.
	DefaultWarbleHz = 2

	// DefaultWarbleDepthHz is the siren modulation depth.
	DefaultWarbleDepthHz = 200

	// DefaultGain is the siren amplitude.
	DefaultGain = 0.1

	// DefaultRebuildDelay is the pause before a replacement siren is built.
	DefaultRebuildDelay = 100 * time.Millisecond

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnsupportedScheme is returned for broker URLs the MQTT client cannot dial.
	errUnsupportedScheme = errors.New("unsupported broker scheme")

	// brokerSchemes lists the URL schemes understood by the MQTT client.
	//nolint:gochecknoglobals // Read-only lookup table.
	brokerSchemes = []string{"tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss"}

	// validate checks struct tags of the configuration.
	//nolint:gochecknoglobals // validator caches struct metadata and is safe for concurrent use.
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills in defaults and checks the provided settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	brokerURL, err := url.Parse(cfg.MQTT.BrokerURL)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}

	if !slices.Contains(brokerSchemes, brokerURL.Scheme) {
		return fmt.Errorf("%w: %q", errUnsupportedScheme, brokerURL.Scheme)
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.HTTP.ListenAddress); err != nil {
		return fmt.Errorf("invalid http listen address: %w", err)
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.GRPC.ListenAddress); err != nil {
		return fmt.Errorf("invalid grpc listen address: %w", err)
	}

	return nil
}

// applyDefaults sets every omitted field to its default value.
//
//nolint:cyclop // A flat list of defaults reads better than a table.
func applyDefaults(cfg *Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.MQTT.AlertTopic == "" {
		cfg.MQTT.AlertTopic = alert.DefaultAlertTopic
	}

	if cfg.MQTT.ControlTopic == "" {
		cfg.MQTT.ControlTopic = alert.DefaultControlTopic
	}

	if cfg.MQTT.QoS == nil {
		qos := byte(DefaultQoS)
		cfg.MQTT.QoS = &qos
	}

	if cfg.MQTT.ConnectTimeout <= 0 {
		cfg.MQTT.ConnectTimeout = DefaultConnectTimeout
	}

	if cfg.MQTT.ConnectRetryInterval <= 0 {
		cfg.MQTT.ConnectRetryInterval = DefaultConnectRetryInterval
	}

	if cfg.MQTT.MaxReconnectInterval <= 0 {
		cfg.MQTT.MaxReconnectInterval = DefaultMaxReconnectInterval
	}

	if cfg.MQTT.KeepAlive <= 0 {
		cfg.MQTT.KeepAlive = DefaultKeepAlive
	}

	if cfg.HTTP.ListenAddress == "" {
		cfg.HTTP.ListenAddress = DefaultHTTPAddress
	}

	if cfg.HTTP.ActionsPerMinute == 0 {
		cfg.HTTP.ActionsPerMinute = DefaultActionsPerMinute
	}

	if cfg.GRPC.ListenAddress == "" {
		cfg.GRPC.ListenAddress = DefaultGRPCAddress
	}

	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = DefaultAudioBackend
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}

	if cfg.Audio.ToneHz == 0 {
		cfg.Audio.ToneHz = DefaultToneHz
	}

	if cfg.Audio.WarbleHz == 0 {
		cfg.Audio.WarbleHz = DefaultWarbleHz
	}

	if cfg.Audio.WarbleDepthHz == 0 {
		cfg.Audio.WarbleDepthHz = DefaultWarbleDepthHz
	}

	if cfg.Audio.Gain == 0 {
		cfg.Audio.Gain = DefaultGain
	}

	if cfg.Audio.RebuildDelay <= 0 {
		cfg.Audio.RebuildDelay = DefaultRebuildDelay
	}
}
