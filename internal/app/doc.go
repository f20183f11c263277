// Package app provides application bootstrap and lifecycle management for adbridge.
//
// # Architecture Overview
//
// The app package wires the bot together and runs it:
//
// 1. **Configuration (`config.go`)**: runtime options from the command line
// 2. **Bootstrap (`bootstrap.go`)**: configuration loading, validation and logging setup
// 3. **Services (`services.go`)**: construction of every collaborator
// 4. **Modes (`modes.go`)**: the polling and webhook run loops
//
// # Initialization Sequence
//
//  1. Load configuration (defaults, config.yaml, .env, environment)
//  2. Validate; a missing BOT_TOKEN stops here
//  3. Initialize logging from --debug or LOG_LEVEL
//  4. Build metrics, the state codec and the token store (Redis when
//     REDIS_URL is set, memory otherwise)
//  5. Build the provider exchanger; missing credentials leave it nil and the
//     bot answers /connect with a configuration message
//  6. Build the report fetcher, dispatcher, scheduler and Telegram client
//  7. Build the callback handler and the HTTP server
//
// # Execution Modes
//
// **Polling** (default): the poller removes any webhook and long-polls
// getUpdates. **Webhook**: the bot registers TELEGRAM_WEBHOOK_URL with
// setWebhook and the server accepts updates on the webhook path.
//
// In both modes the HTTP server and the update source run concurrently in
// one errgroup. Every chat event and every OAuth callback runs on the shared
// scheduler, so neither source can starve the other.
//
// # Shutdown
//
// SIGINT and SIGTERM cancel the root context. The server stops accepting
// connections and waits for in-flight requests, the poller returns, the
// scheduler drains and the token store is closed. Under systemd the process
// reports READY=1 once the listener is bound and STOPPING=1 on shutdown.
//
// # Usage
//
//	cfg := app.NewConfig(false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("bootstrap failed: %w", err)
//	}
//	return application.Run(ctx)
package app
