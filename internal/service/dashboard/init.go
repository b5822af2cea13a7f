package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/cucoon/internal/config"
	"github.com/oshokin/cucoon/internal/logger"
)

// InitOptions controls how a starter settings file is written.
type InitOptions struct {
	// ConfigPath is where the settings file is written.
	ConfigPath string
	// BrokerURL is the broker endpoint stored in the file.
	BrokerURL string
	// Force overwrites an existing file.
	Force bool
}

// ErrSettingsExist is returned when the target file exists and Force is not set.
var ErrSettingsExist = errors.New("settings file already exists")

// Init writes a settings file with every default spelled out.
func Init(ctx context.Context, opts *InitOptions) error {
	ctx = logger.WithName(ctx, "cucoon-init")

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFilename
	}

	if !opts.Force {
		_, err := os.Stat(filepath.Clean(path))

		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrSettingsExist, path)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("check settings file: %w", err)
		}
	}

	cfg := &config.Config{
		MQTT: config.MQTT{BrokerURL: opts.BrokerURL},
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	logger.InfoKV(ctx, "Settings written", "path", path, "broker_url", cfg.MQTT.BrokerURL)

	return nil
}
