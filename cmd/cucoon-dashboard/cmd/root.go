package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/cucoon/internal/config"
	"github.com/oshokin/cucoon/internal/service/dashboard"
	"github.com/oshokin/cucoon/internal/version"
)

var (
	// options collects the flags of the root command.
	options dashboard.Options

	// initOptions collects the flags of the init command.
	initOptions dashboard.InitOptions

	// initCmd writes a starter settings file.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the defaults filled in.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dashboard.Init(cmd.Context(), &initOptions)
		},
	}

	// rootCmd represents the base command for running the dashboard.
	rootCmd = &cobra.Command{
		Use:   "cucoon-dashboard",
		Short: "Run the CuCoon alert dashboard.",
		Long: `Starts the CuCoon dashboard that mirrors the SAFE/ALERT state published on the broker.

The dashboard subscribes to the alert topic, plays a local siren while in ALERT
and serves a web page with the current state and the Stop Siren, Test Alert and
Test Safe buttons. The same actions are available over gRPC for cucoon-ctl.
Stopping the siren publishes STOP on the control topic when the broker is connected.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return dashboard.Run(ctx, &options)
		},
	}
)

// Execute runs the cucoon-dashboard CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&options.HTTPAddress, "http-addr", "", "override the dashboard listen address")
	flags.StringVar(&options.GRPCAddress, "grpc-addr", "", "override the control API listen address")
	flags.StringVar(&options.BrokerURL, "broker", "", "override the broker URL")
	flags.BoolVar(&options.AllowMultiple, "allow-multiple", false, "start even if another dashboard is running")

	initFlags := initCmd.Flags()
	initFlags.StringVarP(&initOptions.ConfigPath, "config", "c", config.DefaultConfigFilename, "path of the file to write")
	initFlags.StringVar(&initOptions.BrokerURL, "broker", "", "broker URL, e.g. tcp://broker.local:1883")
	initFlags.BoolVar(&initOptions.Force, "force", false, "overwrite an existing file")

	if err := initCmd.MarkFlagRequired("broker"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(initCmd)
}
