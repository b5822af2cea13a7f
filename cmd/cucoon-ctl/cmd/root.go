package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/cucoon/internal/config"
	"github.com/oshokin/cucoon/internal/service/control"
	"github.com/oshokin/cucoon/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string

	// rootCmd represents the base command for controlling a running dashboard.
	rootCmd = &cobra.Command{
		Use:   "cucoon-ctl",
		Short: "Control a running CuCoon dashboard.",
		Long: `Talks to the control API of a running cucoon-dashboard.

The server address can be given as an argument to every subcommand; otherwise
it is derived from the grpc listen address in the configuration file.`,
	}
)

// actionCommand builds a subcommand that performs one control action.
func actionCommand(action control.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " [server-address]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use server address argument if provided, otherwise rely on config.
			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			return control.Run(ctx, &control.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Action:        action,
			})
		},
	}
}

// Execute runs the cucoon-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	rootCmd.AddCommand(
		actionCommand(control.ActionStatus, "Print the current dashboard state."),
		actionCommand(control.ActionStop, "Stop the siren and acknowledge the alert."),
		actionCommand(control.ActionTestAlert, "Raise a test alert on the dashboard."),
		actionCommand(control.ActionTestSafe, "Return the dashboard to SAFE without notifying the broker."),
	)
}
