package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"adbridge/internal/config"
	"adbridge/pkg/logging"
)

// run executes the bot until ctx is cancelled or a termination signal
// arrives.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): Triggers graceful shutdown
//   - SIGTERM: Triggers graceful shutdown (common in container environments)
func run(ctx context.Context, s *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Server.Run(gctx, notifyReady)
	})

	switch s.Settings.Telegram.Mode {
	case config.ModeWebhook:
		if err := registerWebhook(gctx, s); err != nil {
			stop()
			_ = g.Wait()
			shutdown(s)
			return err
		}
	default:
		g.Go(func() error {
			logging.Info("Modes", "Polling Telegram for updates")
			return s.Poller.Run(gctx)
		})
	}

	err := g.Wait()
	shutdown(s)
	if err != nil {
		logging.Error("Modes", err, "adbridge stopped with an error")
		return err
	}
	logging.Info("Modes", "adbridge stopped")
	return nil
}

func registerWebhook(ctx context.Context, s *Services) error {
	tg := s.Settings.Telegram
	if err := s.Telegram.SetWebhook(ctx, tg.WebhookURL, tg.WebhookSecret); err != nil {
		return fmt.Errorf("failed to register Telegram webhook: %w", err)
	}
	logging.Info("Modes", "Registered Telegram webhook at %s", tg.WebhookURL)
	return nil
}

// shutdown drains the scheduler and closes the store. Callback and chat
// tasks already accepted get up to the shutdown timeout to finish.
func shutdown(s *Services) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		logging.Debug("Modes", "sd_notify STOPPING failed: %v", err)
	}

	timeout := s.Settings.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logging.Info("Modes", "--- Draining in-flight tasks ---")
	if err := s.Scheduler.Close(ctx); err != nil {
		logging.Warn("Modes", "Scheduler did not drain before the deadline: %v", err)
	}
	if err := s.Close(); err != nil {
		logging.Warn("Modes", "Failed to close token store: %v", err)
	}
}

// notifyReady tells systemd the listener is bound. Outside systemd it is a
// no-op.
func notifyReady(addr net.Addr) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	switch {
	case err != nil:
		logging.Warn("Modes", "sd_notify READY failed: %v", err)
	case sent:
		logging.Debug("Modes", "Notified systemd readiness on %s", addr)
	}
}
