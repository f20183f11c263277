package oauth

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"adbridge/internal/metrics"
	"adbridge/pkg/logging"
)

// CodeExchanger is the part of Exchanger the callback needs.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (TokenRecord, error)
	ExtendLifetime(ctx context.Context, rec TokenRecord) (TokenRecord, error)
}

// StateDecoder recovers a chat identity from the state parameter.
type StateDecoder interface {
	Decode(state string) (ChatID, error)
}

// ConnectNotifier is told about a committed authorization so it can tell
// the chat. It must not block; delivery is its own concern.
type ConnectNotifier interface {
	NotifyConnected(ctx context.Context, id ChatID)
}

// TaskRunner runs fn as a work item on the shared scheduler and waits for
// its result.
type TaskRunner interface {
	Do(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Callback outcomes, used for metrics and tests.
const (
	OutcomeCommitted      = "committed"
	OutcomeProviderError  = "provider_error"
	OutcomeBadRequest     = "bad_request"
	OutcomeInvalidState   = "invalid_state"
	OutcomeExchangeFailed = "exchange_failed"
	OutcomeStoreFailed    = "store_failed"
)

// Handler serves the OAuth redirect endpoint.
//
// Each request moves through Received -> Decoding -> Exchanging ->
// Extending -> Committed. Every failure before Committed ends the request
// without touching the TokenStore.
type Handler struct {
	decoder   StateDecoder
	exchanger CodeExchanger
	store     TokenStore

	notifier  ConnectNotifier
	runner    TaskRunner
	metrics   *metrics.Metrics
	returnURL string
}

// HandlerOption configures optional Handler collaborators.
type HandlerOption func(*Handler)

// WithNotifier sets the collaborator told about committed authorizations.
func WithNotifier(n ConnectNotifier) HandlerOption {
	return func(h *Handler) { h.notifier = n }
}

// WithTaskRunner runs the exchange on the shared scheduler.
func WithTaskRunner(r TaskRunner) HandlerOption {
	return func(h *Handler) { h.runner = r }
}

// WithMetrics records callback outcomes.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithReturnURL links the success page back into the chat client.
func WithReturnURL(u string) HandlerOption {
	return func(h *Handler) { h.returnURL = u }
}

// NewHandler creates the callback handler. exchanger may be nil when the
// provider is not configured; callbacks then fail with 500.
func NewHandler(decoder StateDecoder, exchanger CodeExchanger, store TokenStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		decoder:   decoder,
		exchanger: exchanger,
		store:     store,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.HandleCallback(w, r)
}

// HandleCallback processes one provider redirect.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if providerErr := query.Get("error"); providerErr != "" {
		logging.Warn("Callback", "Provider reported error=%s reason=%s", providerErr, query.Get("error_reason"))
		h.fail(w, OutcomeProviderError, http.StatusBadRequest, "Authorization was denied or failed at the provider.")
		return
	}

	if code == "" || state == "" {
		logging.Warn("Callback", "Callback missing code or state parameter")
		h.fail(w, OutcomeBadRequest, http.StatusBadRequest, "Invalid callback: missing required parameters.")
		return
	}

	chatID, err := h.decoder.Decode(state)
	if err != nil {
		logging.Warn("Callback", "Rejected state=%s: %v", truncateState(state), err)
		outcome := OutcomeBadRequest
		if errors.Is(err, ErrForgedToken) {
			outcome = OutcomeInvalidState
		}
		h.fail(w, outcome, http.StatusBadRequest, "Invalid callback: the authorization link is not valid.")
		return
	}

	if h.exchanger == nil {
		logging.Warn("Callback", "Callback for chat=%s but provider is not configured", chatID)
		h.fail(w, OutcomeExchangeFailed, http.StatusInternalServerError, "The bot is not configured to complete authorization.")
		return
	}

	work := func(ctx context.Context) error {
		return h.complete(ctx, chatID, code)
	}

	if h.runner != nil {
		err = h.runner.Do(r.Context(), "oauth-callback", work)
	} else {
		err = work(r.Context())
	}

	if err != nil {
		var storeErr *storeError
		if errors.As(err, &storeErr) {
			logging.Error("Callback", err, "Failed to store token for chat=%s", chatID)
			h.fail(w, OutcomeStoreFailed, http.StatusInternalServerError, "Could not save the authorization. Please run /connect again.")
			return
		}
		logging.Error("Callback", err, "Code exchange failed for chat=%s", chatID)
		h.fail(w, OutcomeExchangeFailed, http.StatusInternalServerError,
			"Could not complete authorization with the provider. Please run /connect again.")
		return
	}

	h.metrics.Callback(OutcomeCommitted)
	logging.Info("Callback", "Authorization committed for chat=%s", chatID)

	if h.notifier != nil {
		h.notifier.NotifyConnected(context.WithoutCancel(r.Context()), chatID)
	}

	h.renderPage(w, http.StatusOK, pageData{
		Title:     "Connected",
		Heading:   "Authorization complete",
		Message:   "Your advertising account is now linked. Return to the chat and run /report.",
		ReturnURL: h.returnURL,
	})
}

type storeError struct{ err error }

func (e *storeError) Error() string { return "store token: " + e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// complete runs the Exchanging, Extending and Committed steps.
func (h *Handler) complete(ctx context.Context, chatID ChatID, code string) error {
	rec, err := h.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		h.metrics.Exchange("exchange", "error")
		return err
	}
	h.metrics.Exchange("exchange", "ok")

	extended, err := h.exchanger.ExtendLifetime(ctx, rec)
	if err != nil {
		h.metrics.Exchange("extend", "error")
		logging.Warn("Callback", "Lifetime extension failed for chat=%s, keeping short-lived token: %v", chatID, err)
	} else {
		h.metrics.Exchange("extend", "ok")
		rec = extended
	}

	if err := h.store.Set(ctx, chatID, rec); err != nil {
		return &storeError{err: err}
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, outcome string, status int, message string) {
	h.metrics.Callback(outcome)
	h.renderPage(w, status, pageData{
		Title:   "Authorization failed",
		Heading: "Authorization failed",
		Message: message,
		Failed:  true,
	})
}

// setSecurityHeaders sets recommended security headers for HTML responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
}

type pageData struct {
	Title     string
	Heading   string
	Message   string
	ReturnURL string
	Failed    bool
}

var pageTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} - adbridge</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #f4f5f7; color: #1c1e21; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
.card { background: #fff; border-radius: 12px; padding: 2.5rem; max-width: 460px; text-align: center; box-shadow: 0 2px 12px rgba(0,0,0,.08); }
h1 { font-size: 1.5rem; margin: 0 0 1rem; color: {{if .Failed}}#c0392b{{else}}#1e8e3e{{end}}; }
p { line-height: 1.5; color: #4b4f56; }
a { color: #1877f2; }
</style>
</head>
<body>
<div class="card">
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
{{if .ReturnURL}}<p><a href="{{.ReturnURL}}">Back to the chat</a></p>{{else}}<p>You can close this window.</p>{{end}}
</div>
</body>
</html>
`))

func (h *Handler) renderPage(w http.ResponseWriter, status int, data pageData) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		logging.Error("Callback", err, "Failed to render callback page")
	}
}
