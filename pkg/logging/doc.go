// Package logging provides subsystem-tagged structured logging for adbridge.
//
// It is a thin layer over log/slog. Every entry carries a "subsystem"
// attribute so that output from the callback listener, the chat poller and
// the provider client can be told apart in a single stream:
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stdout)
//	logging.Info("Callback", "Committed token for chat=%d", chatID)
//	logging.Error("Poller", err, "getUpdates failed")
//
// Secrets must never be passed as format arguments. Wrap them in
// oauth.RedactedToken, which prints as [REDACTED].
//
// Libraries that accept a *slog.Logger (or a leveled key/value logger, such
// as go-retryablehttp) can be given Logger(), which shares the configured
// handler.
package logging
