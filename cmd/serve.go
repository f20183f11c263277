package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"adbridge/internal/app"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveCmd starts the bot.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and its OAuth callback listener",
	Long: `Starts the Telegram bot and the HTTP listener that receives the
advertising provider's OAuth redirect.

Configuration is layered, lowest precedence first: built-in defaults,
config.yaml in --config-path, a .env file in the working directory, and the
process environment. BOT_TOKEN is required. Without PROVIDER_CLIENT_ID,
PROVIDER_CLIENT_SECRET and PROVIDER_REDIRECT_URI the bot still starts and
tells users that the provider is not configured.

Updates arrive by long polling unless TELEGRAM_MODE=webhook, in which case
TELEGRAM_WEBHOOK_URL is registered with Telegram at startup.

The process stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, configPath)

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

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging (overrides LOG_LEVEL)")
}
