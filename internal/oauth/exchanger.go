package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"adbridge/pkg/logging"
)

const (
	// DefaultExchangeTimeout bounds a single token endpoint call.
	DefaultExchangeTimeout = 10 * time.Second

	// DefaultExtendRetries is how many times lifetime extension is retried.
	DefaultExtendRetries = 2

	// maxTokenResponseBytes caps how much of a token response is read.
	maxTokenResponseBytes = 1 << 20
)

// ErrNotConfigured is returned when provider credentials are missing.
var ErrNotConfigured = errors.New("provider OAuth credentials are not configured")

// ExchangeErrorKind classifies token endpoint failures.
type ExchangeErrorKind int

const (
	// ProviderRejected: the provider answered but issued no access token.
	ProviderRejected ExchangeErrorKind = iota + 1
	// NetworkError: the request failed in transport.
	NetworkError
	// Timeout: no response within the exchange timeout.
	Timeout
)

func (k ExchangeErrorKind) String() string {
	switch k {
	case ProviderRejected:
		return "provider_rejected"
	case NetworkError:
		return "network_error"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ExchangeError is returned by ExchangeCode and ExtendLifetime.
type ExchangeError struct {
	Kind ExchangeErrorKind

	// Step is "exchange" or "extend".
	Step string

	// StatusCode is the provider's HTTP status, when a response arrived.
	StatusCode int

	// ProviderPayload is the provider's error body, kept for diagnostics.
	ProviderPayload string

	Err error
}

func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("token %s failed (%s)", e.Step, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// ExchangerConfig configures an Exchanger.
type ExchangerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthURL  string
	TokenURL string
	Scopes   []string

	// Timeout bounds each token endpoint call. Zero uses DefaultExchangeTimeout.
	Timeout time.Duration

	// ExtendRetries is the retry budget for lifetime extension. Negative
	// disables retries; zero uses DefaultExtendRetries.
	ExtendRetries int

	// HTTPClient is the base transport. Nil uses a pooled cleanhttp client.
	HTTPClient *http.Client
}

// Configured reports whether the credentials needed for the flow are set.
func (c ExchangerConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// Exchanger drives the provider's token endpoint.
//
// Authorization codes are single-use, so ExchangeCode only retries when the
// request failed before any response arrived. ExtendLifetime uses the
// standard retry policy since it may be repeated freely.
type Exchanger struct {
	oauth   *oauth2.Config
	timeout time.Duration

	exchangeClient *http.Client
	extendClient   *retryablehttp.Client

	now func() time.Time
}

// NewExchanger validates cfg and builds an Exchanger.
func NewExchanger(cfg ExchangerConfig) (*Exchanger, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, fmt.Errorf("provider auth and token URLs are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	retries := cfg.ExtendRetries
	switch {
	case retries == 0:
		retries = DefaultExtendRetries
	case retries < 0:
		retries = 0
	}

	base := cfg.HTTPClient
	if base == nil {
		base = cleanhttp.DefaultPooledClient()
	}

	exchangeRetry := newRetryClient(base, DefaultExtendRetries, retryBeforeResponse)
	extendRetry := newRetryClient(base, retries, retryablehttp.DefaultRetryPolicy)

	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		timeout:        timeout,
		exchangeClient: exchangeRetry.StandardClient(),
		extendClient:   extendRetry,
		now:            time.Now,
	}, nil
}

func newRetryClient(base *http.Client, retries int, policy retryablehttp.CheckRetry) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = policy
	rc.Logger = newRetryLogger()
	// Hand the final response back instead of a "giving up" error so the
	// provider's payload can still be classified.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// retryBeforeResponse retries only transport failures where no response was
// received. Any response means the provider saw the code.
func retryBeforeResponse(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil || err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// AuthCodeURL builds the provider authorization URL carrying state.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a short-lived token.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (TokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.exchangeClient)

	tok, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		xerr := classify(ctx, "exchange", err)
		logging.Debug("Exchanger", "Code exchange failed: kind=%s status=%d payload=%s",
			xerr.Kind, xerr.StatusCode, xerr.ProviderPayload)
		return TokenRecord{}, xerr
	}

	now := e.now()
	rec := TokenRecord{
		AccessToken: NewRedactedToken(tok.AccessToken),
		ObtainedAt:  now,
		ExpiresAt:   tok.Expiry,
	}

	logging.Debug("Exchanger", "Exchanged code for token (expires: %v)", rec.ExpiresAt)
	return rec, nil
}

// ExtendLifetime trades a short-lived token for a long-lived one. Callers
// must treat failure as non-fatal and keep using the token they have.
func (e *Exchanger) ExtendLifetime(ctx context.Context, rec TokenRecord) (TokenRecord, error) {
	if rec.AccessToken.IsEmpty() {
		return rec, &ExchangeError{Kind: ProviderRejected, Step: "extend", Err: errors.New("no token to extend")}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	form := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {e.oauth.ClientID},
		"client_secret":     {e.oauth.ClientSecret},
		"fb_exchange_token": {rec.AccessToken.Value()},
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return rec, &ExchangeError{Kind: NetworkError, Step: "extend", Err: sanitizeError(err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.extendClient.Do(req)
	if err != nil {
		return rec, classify(ctx, "extend", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return rec, classify(ctx, "extend", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Debug("Exchanger", "Lifetime extension failed: status=%d body=%s", resp.StatusCode, string(body))
		return rec, &ExchangeError{
			Kind:            ProviderRejected,
			Step:            "extend",
			StatusCode:      resp.StatusCode,
			ProviderPayload: string(body),
			Err:             fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return rec, &ExchangeError{
			Kind:            ProviderRejected,
			Step:            "extend",
			StatusCode:      resp.StatusCode,
			ProviderPayload: string(body),
			Err:             errors.New("response missing access_token"),
		}
	}

	extended := payload.record(e.now())
	extended.LongLived = true

	logging.Debug("Exchanger", "Extended token lifetime (expires: %v)", extended.ExpiresAt)
	return extended, nil
}

// classify maps a token endpoint error onto an ExchangeError kind.
func classify(ctx context.Context, step string, err error) *ExchangeError {
	err = sanitizeError(err)

	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		xerr := &ExchangeError{Kind: ProviderRejected, Step: step, ProviderPayload: string(rErr.Body), Err: err}
		if rErr.Response != nil {
			xerr.StatusCode = rErr.Response.StatusCode
		}
		return xerr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ExchangeError{Kind: Timeout, Step: step, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ExchangeError{Kind: Timeout, Step: step, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &ExchangeError{Kind: NetworkError, Step: step, Err: err}
	}

	// oauth2 reports a 200 response without access_token as a plain error.
	if strings.Contains(err.Error(), "access_token") {
		return &ExchangeError{Kind: ProviderRejected, Step: step, Err: err}
	}

	return &ExchangeError{Kind: NetworkError, Step: step, Err: err}
}
