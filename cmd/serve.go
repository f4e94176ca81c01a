package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"overseer/internal/app"
)

// serveDebug enables debug logging regardless of the configured level.
var serveDebug bool

// serveQuiet disables the startup spinner.
var serveQuiet bool

// serveConfigPath is the directory holding config.yaml.
var serveConfigPath string

// serveMetricsAddress is the listen address of the Prometheus endpoint.
var serveMetricsAddress string

// serveCmd runs overseer in the foreground.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run overseer and manage the configured servers",
	Long: `Loads the configuration, starts every server marked autoStart after publishing
its deployables, and keeps supervising the servers until interrupted.

On SIGINT or SIGTERM all servers are stopped gracefully; servers that do not stop
within the shutdown timeout are stopped with force.

Configuration:
  overseer reads config.yaml from ~/.config/overseer unless --config-path is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath, serveMetricsAddress)
	cfg.Quiet = serveQuiet

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "Disable the startup spinner")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Configuration directory (default ~/.config/overseer)")
	serveCmd.Flags().StringVar(&serveMetricsAddress, "metrics-address", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
