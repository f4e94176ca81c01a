package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"overseer/internal/api"
	"overseer/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeInvalidConfig indicates the configuration failed validation.
	ExitCodeInvalidConfig = 2
	// ExitCodeLaunchFailed indicates a server process could not be launched.
	ExitCodeLaunchFailed = 3
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "overseer",
	Short: "Start, stop and publish to externally running servers",
	Long: `overseer drives the lifecycle of external server processes such as servlet
containers. It launches and stops them from templated command lines, confirms
every transition with a readiness probe, notices when a server process exits and
keeps the deployables of each server in sync with its deployment folder.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "overseer version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var validationErrs config.ValidationErrors
	if errors.As(err, &validationErrs) {
		return ExitCodeInvalidConfig
	}
	if api.IsValidation(err) {
		return ExitCodeInvalidConfig
	}
	if api.IsLaunch(err) {
		return ExitCodeLaunchFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
