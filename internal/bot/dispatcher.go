package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adbridge/internal/insights"
	"adbridge/internal/metrics"
	"adbridge/internal/oauth"
	"adbridge/internal/template"
	"adbridge/pkg/logging"
)

const (
	// accountCallbackPrefix marks account selection button data.
	accountCallbackPrefix = "acct:"

	// maxAccountButtons caps the selection list.
	maxAccountButtons = 20

	// DefaultRefreshWithin is how close to expiry a token must be before
	// its lifetime is extended on use.
	DefaultRefreshWithin = 24 * time.Hour
)

// Encoder produces the correlation token for a chat.
type Encoder interface {
	Encode(id oauth.ChatID) string
}

// Authorizer is the provider side of the OAuth flow.
type Authorizer interface {
	AuthCodeURL(state string) string
	ExtendLifetime(ctx context.Context, rec oauth.TokenRecord) (oauth.TokenRecord, error)
}

// ReportSource fetches provider data for a token.
type ReportSource interface {
	ListAccounts(ctx context.Context, token oauth.RedactedToken) ([]insights.Account, error)
	GetInsights(ctx context.Context, token oauth.RedactedToken, accountID string, window insights.Window) ([]insights.InsightRow, error)
}

// Config holds the Dispatcher's collaborators.
type Config struct {
	Encoder Encoder
	Store   oauth.TokenStore
	Reports ReportSource

	// Authorizer is nil when provider credentials are not configured.
	Authorizer Authorizer

	Metrics *metrics.Metrics

	// WindowDays is the trailing report window. Zero uses
	// insights.DefaultWindowDays.
	WindowDays int

	// RefreshWithin is how close to expiry a stored token is extended.
	// Zero uses DefaultRefreshWithin.
	RefreshWithin time.Duration

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// Dispatcher routes chat events to handlers.
type Dispatcher struct {
	encoder    Encoder
	store      oauth.TokenStore
	reports    ReportSource
	authorizer Authorizer
	metrics    *metrics.Metrics
	messages   *template.Engine

	windowDays    int
	refreshWithin time.Duration
	now           func() time.Time
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Encoder == nil {
		return nil, errors.New("encoder is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("token store is required")
	}
	if cfg.Reports == nil {
		return nil, errors.New("report source is required")
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = insights.DefaultWindowDays
	}
	if cfg.RefreshWithin <= 0 {
		cfg.RefreshWithin = DefaultRefreshWithin
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		encoder:       cfg.Encoder,
		store:         cfg.Store,
		reports:       cfg.Reports,
		authorizer:    cfg.Authorizer,
		metrics:       cfg.Metrics,
		messages:      newMessages(),
		windowDays:    cfg.WindowDays,
		refreshWithin: cfg.RefreshWithin,
		now:           cfg.Now,
	}, nil
}

// Dispatch handles one event and returns the reply to show. It never
// returns raw error text; failures are logged and mapped to messages.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Reply {
	if ev.Kind == EventCallback {
		d.metrics.ChatEvent("callback")
		return d.handleCallback(ctx, ev)
	}

	d.metrics.ChatEvent(commandLabel(ev.Command))
	logging.Debug("Dispatcher", "chat=%s command=%s", ev.ChatID, ev.Command)

	switch ev.Command {
	case "start":
		return d.render(ev.ChatID, msgStart, map[string]interface{}{
			"Name": ev.FromName,
		})
	case "connect":
		return d.handleConnect(ev)
	case "report":
		return d.handleReport(ctx, ev)
	case "disconnect", "logout":
		return d.handleDisconnect(ctx, ev)
	default:
		return d.render(ev.ChatID, msgHelp, nil)
	}
}

func (d *Dispatcher) handleConnect(ev Event) Reply {
	if d.authorizer == nil {
		return d.render(ev.ChatID, msgNotConfigured, nil)
	}

	authURL := d.authorizer.AuthCodeURL(d.encoder.Encode(ev.ChatID))
	reply := d.render(ev.ChatID, msgConnect, nil)
	reply.Buttons = []Button{{Text: "🔗 Connect account", URL: authURL}}
	return reply
}

func (d *Dispatcher) handleReport(ctx context.Context, ev Event) Reply {
	if d.authorizer == nil {
		return d.render(ev.ChatID, msgNotConfigured, nil)
	}

	rec, reply, ok := d.session(ctx, ev.ChatID)
	if !ok {
		return reply
	}

	accounts, err := d.reports.ListAccounts(ctx, rec.AccessToken)
	if err != nil {
		return d.fetchFailed(ctx, ev.ChatID, err)
	}
	if len(accounts) == 0 {
		return d.render(ev.ChatID, msgNoAccounts, nil)
	}

	reply = d.render(ev.ChatID, msgChooseAccount, map[string]interface{}{"Count": len(accounts)})
	for i, a := range accounts {
		if i == maxAccountButtons {
			break
		}
		reply.Buttons = append(reply.Buttons, Button{
			Text: a.Label(),
			Data: accountCallbackPrefix + a.ID,
		})
	}
	return reply
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev Event) Reply {
	accountID, ok := strings.CutPrefix(ev.Data, accountCallbackPrefix)
	if !ok || accountID == "" {
		reply := d.render(ev.ChatID, msgStaleButton, nil)
		reply.Notice = "Unknown option"
		return reply
	}

	// The token may have been invalidated since the list was shown.
	rec, reply, ok := d.session(ctx, ev.ChatID)
	if !ok {
		reply.Notice = "Not connected"
		return reply
	}

	window := insights.TrailingWindow(d.now(), d.windowDays)
	rows, err := d.reports.GetInsights(ctx, rec.AccessToken, accountID, window)
	if err != nil {
		reply := d.fetchFailed(ctx, ev.ChatID, err)
		reply.Notice = "Request failed"
		return reply
	}
	if len(rows) == 0 {
		reply := d.render(ev.ChatID, msgNoData, map[string]interface{}{
			"Account": accountID,
		})
		reply.Notice = "No data"
		return reply
	}

	reply = d.render(ev.ChatID, msgReport, map[string]interface{}{
		"Account": accountID,
		"Since":   window.Since,
		"Until":   window.Until,
		"Table":   insights.RenderTable(rows),
	})
	reply.Notice = "Report ready"
	return reply
}

func (d *Dispatcher) handleDisconnect(ctx context.Context, ev Event) Reply {
	if err := d.store.Invalidate(ctx, ev.ChatID); err != nil {
		logging.Error("Dispatcher", err, "Failed to invalidate token for chat=%s", ev.ChatID)
		return d.render(ev.ChatID, msgStoreFailed, nil)
	}
	logging.Info("Dispatcher", "Token invalidated on request for chat=%s", ev.ChatID)
	return d.render(ev.ChatID, msgDisconnected, nil)
}

// session loads the chat's token, extending it when it is close to expiry.
// When ok is false, reply explains why no usable token exists.
func (d *Dispatcher) session(ctx context.Context, id oauth.ChatID) (rec *oauth.TokenRecord, reply Reply, ok bool) {
	rec, err := d.store.Get(ctx, id)
	if err != nil {
		logging.Error("Dispatcher", err, "Failed to read token for chat=%s", id)
		return nil, d.render(id, msgStoreFailed, nil), false
	}
	if rec == nil {
		return nil, d.render(id, msgConnectFirst, nil), false
	}

	if rec.IsExpired(0) {
		logging.Info("Dispatcher", "Stored token for chat=%s expired at %s", id, rec.ExpiresAt.Format(time.RFC3339))
		if err := d.store.Invalidate(ctx, id); err != nil {
			logging.Warn("Dispatcher", "Failed to invalidate expired token for chat=%s: %v", id, err)
		}
		return nil, d.render(id, msgExpired, nil), false
	}

	if d.authorizer != nil && rec.IsExpired(d.refreshWithin) {
		extended, err := d.authorizer.ExtendLifetime(ctx, *rec)
		if err != nil {
			d.metrics.Exchange("refresh", "error")
			logging.Warn("Dispatcher", "Refresh for chat=%s failed, using current token: %v", id, err)
			return rec, Reply{}, true
		}
		d.metrics.Exchange("refresh", "ok")
		if err := d.store.Set(ctx, id, extended); err != nil {
			logging.Warn("Dispatcher", "Failed to store refreshed token for chat=%s: %v", id, err)
		}
		return &extended, Reply{}, true
	}
	return rec, Reply{}, true
}

// fetchFailed maps a provider error to a reply. Unauthorized errors
// invalidate the stored token.
func (d *Dispatcher) fetchFailed(ctx context.Context, id oauth.ChatID, err error) Reply {
	if insights.IsUnauthorized(err) {
		logging.Info("Dispatcher", "Provider rejected token for chat=%s, invalidating: %v", id, err)
		if invErr := d.store.Invalidate(ctx, id); invErr != nil {
			logging.Warn("Dispatcher", "Failed to invalidate rejected token for chat=%s: %v", id, invErr)
		}
		return d.render(id, msgReconnect, nil)
	}
	logging.Warn("Dispatcher", "Provider fetch for chat=%s failed: %v", id, err)
	return d.render(id, msgFetchFailed, nil)
}

// Connected is the message sent to a chat after a committed callback.
func (d *Dispatcher) Connected(id oauth.ChatID) Reply {
	return d.render(id, msgConnected, nil)
}

// render executes a message with the dispatcher-wide context underneath
// data. Keys in data win.
func (d *Dispatcher) render(id oauth.ChatID, name string, data map[string]interface{}) Reply {
	base := map[string]interface{}{
		"WindowDays": d.windowDays,
	}
	text, err := d.messages.Render(name, template.MergeContexts(base, data))
	if err != nil {
		logging.Error("Dispatcher", err, "Failed to render message %s", name)
		text = fmt.Sprintf("Something went wrong (%s).", name)
	}
	return Reply{ChatID: id, Text: text}
}

// commandLabel bounds metric label cardinality to known commands.
func commandLabel(command string) string {
	switch command {
	case "start", "connect", "report", "disconnect", "logout", "help":
		return command
	default:
		return "unknown"
	}
}
