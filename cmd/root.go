package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adbridge/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates the configuration is missing or invalid.
	ExitCodeConfig = 2
)

// configPath is shared by every command that reads configuration.
var configPath string

// rootCmd represents the base command for the adbridge application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "adbridge",
	Short: "Telegram bot that links chats to an advertising account",
	Long: `adbridge is a Telegram bot that lets a chat connect its advertising
account through OAuth and then request campaign performance reports.

The bot serves the OAuth redirect on its own HTTP listener and receives
Telegram updates by long polling or by webhook.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "adbridge version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var single config.ConfigurationError
	if errors.As(err, &single) {
		return ExitCodeConfig
	}
	var collection *config.ConfigurationErrorCollection
	if errors.As(err, &collection) {
		return ExitCodeConfig
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "",
		fmt.Sprintf("Configuration directory containing config.yaml (default %s)", config.GetDefaultConfigPath()))

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newStateCmd())
}
