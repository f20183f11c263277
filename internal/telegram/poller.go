package telegram

import (
	"context"
	"errors"
	"time"

	"adbridge/pkg/logging"
)

const (
	// DefaultPollTimeout is the server-side long-poll wait.
	DefaultPollTimeout = 30 * time.Second

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Updater is the part of Client the Poller needs.
type Updater interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error)
	DeleteWebhook(ctx context.Context) error
}

// Poller fetches updates with getUpdates and enqueues them on a Processor.
type Poller struct {
	api         Updater
	processor   *Processor
	pollTimeout time.Duration
}

// NewPoller creates a Poller. pollTimeout <= 0 uses DefaultPollTimeout.
func NewPoller(api Updater, processor *Processor, pollTimeout time.Duration) *Poller {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Poller{api: api, processor: processor, pollTimeout: pollTimeout}
}

// Run polls until ctx is cancelled. It removes any registered webhook
// first, since Telegram refuses getUpdates while one is set.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.api.DeleteWebhook(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logging.Warn("Telegram", "deleteWebhook failed, polling anyway: %v", err)
	}

	logging.Info("Telegram", "Long polling started (timeout %s)", p.pollTimeout)
	offset := 0
	backoff := minBackoff

	for {
		if ctx.Err() != nil {
			logging.Info("Telegram", "Long polling stopped")
			return nil
		}

		updates, err := p.api.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}
			logging.Warn("Telegram", "getUpdates failed, retrying in %s: %v", wait, err)
			if !sleep(ctx, wait) {
				continue
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		for _, u := range updates {
			offset = u.UpdateID + 1
			if err := p.processor.Enqueue(u); err != nil {
				// The scheduler is closing; stop consuming so the update is
				// redelivered after restart.
				logging.Warn("Telegram", "Could not enqueue update %d: %v", u.UpdateID, err)
				return nil
			}
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
