package insights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/singleflight"

	"adbridge/internal/metrics"
	"adbridge/internal/oauth"
	"adbridge/pkg/logging"
)

const (
	// DefaultBaseURL is the provider's data API root.
	DefaultBaseURL = "https://graph.facebook.com/v19.0"

	// DefaultFetchTimeout bounds each provider data call.
	DefaultFetchTimeout = 15 * time.Second

	// maxPages bounds how many result pages are followed per call.
	maxPages = 5

	maxResponseBytes = 4 << 20
)

// Provider error codes that mean the access token is no longer usable.
var unauthorizedCodes = map[int]bool{
	102: true, // session invalid
	190: true, // access token expired or revoked
}

// Config configures a Fetcher.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Fetcher retrieves account and insight data from the provider.
type Fetcher struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics

	// insightsGroup collapses concurrent identical insights requests.
	insightsGroup singleflight.Group
}

// NewFetcher creates a Fetcher. m may be nil.
func NewFetcher(cfg Config, m *metrics.Metrics) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = cfg.Timeout
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		metrics:    m,
	}
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type graphPaging struct {
	Next string `json:"next"`
}

type accountsPage struct {
	Data []struct {
		ID        string `json:"id"`
		AccountID string `json:"account_id"`
		Name      string `json:"name"`
	} `json:"data"`
	Paging graphPaging `json:"paging"`
	Error  *graphError `json:"error"`
}

type insightsPage struct {
	Data []struct {
		CampaignName string `json:"campaign_name"`
		Impressions  string `json:"impressions"`
		Clicks       string `json:"clicks"`
		Spend        string `json:"spend"`
	} `json:"data"`
	Paging graphPaging `json:"paging"`
	Error  *graphError `json:"error"`
}

// ListAccounts returns the ad accounts visible to token.
func (f *Fetcher) ListAccounts(ctx context.Context, token oauth.RedactedToken) ([]Account, error) {
	const op = "list_accounts"

	params := url.Values{}
	params.Set("fields", "id,account_id,name")
	params.Set("limit", "50")

	var accounts []Account
	err := f.paginate(ctx, op, token, f.baseURL+"/me/adaccounts?"+params.Encode(), func(body []byte) (string, *graphError, error) {
		var page accountsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return "", nil, err
		}
		for _, a := range page.Data {
			id := a.ID
			if id == "" && a.AccountID != "" {
				id = "act_" + a.AccountID
			}
			accounts = append(accounts, Account{ID: id, Name: a.Name})
		}
		return page.Paging.Next, page.Error, nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetInsights returns per-campaign metrics for accountID over window.
func (f *Fetcher) GetInsights(ctx context.Context, token oauth.RedactedToken, accountID string, window Window) ([]InsightRow, error) {
	if accountID == "" || strings.ContainsAny(accountID, "/?#") {
		return nil, &FetchError{Kind: Transient, Operation: "get_insights", Message: "invalid account id"}
	}

	key := flightKey(token, accountID, window)
	result, err, shared := f.insightsGroup.Do(key, func() (interface{}, error) {
		return f.getInsights(context.WithoutCancel(ctx), token, accountID, window)
	})
	if shared {
		logging.Debug("Insights", "Shared in-flight insights request for account=%s", accountID)
	}
	if err != nil {
		return nil, err
	}
	rows := result.([]InsightRow)
	// Each caller gets its own slice.
	out := make([]InsightRow, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *Fetcher) getInsights(ctx context.Context, token oauth.RedactedToken, accountID string, window Window) ([]InsightRow, error) {
	const op = "get_insights"

	params := url.Values{}
	params.Set("level", "campaign")
	params.Set("fields", "campaign_name,impressions,clicks,spend")
	params.Set("time_range", window.timeRange())
	params.Set("limit", "100")

	endpoint := fmt.Sprintf("%s/%s/insights?%s", f.baseURL, url.PathEscape(accountID), params.Encode())

	var rows []InsightRow
	err := f.paginate(ctx, op, token, endpoint, func(body []byte) (string, *graphError, error) {
		var page insightsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return "", nil, err
		}
		for _, d := range page.Data {
			rows = append(rows, InsightRow{
				CampaignName: d.CampaignName,
				Impressions:  parseInt(d.Impressions),
				Clicks:       parseInt(d.Clicks),
				Spend:        parseFloat(d.Spend),
			})
		}
		return page.Paging.Next, page.Error, nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// pageDecoder consumes one response body and returns the next page URL.
type pageDecoder func(body []byte) (next string, apiErr *graphError, err error)

func (f *Fetcher) paginate(ctx context.Context, op string, token oauth.RedactedToken, endpoint string, decode pageDecoder) error {
	start := time.Now()
	err := f.doPaginate(ctx, op, token, endpoint, decode)

	result := "ok"
	var fe *FetchError
	if errors.As(err, &fe) {
		result = fe.Kind.String()
	}
	f.metrics.Fetch(op, result, time.Since(start).Seconds())
	return err
}

func (f *Fetcher) doPaginate(ctx context.Context, op string, token oauth.RedactedToken, endpoint string, decode pageDecoder) error {
	if token.IsEmpty() {
		return &FetchError{Kind: Unauthorized, Operation: op, Message: "no access token"}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	for page := 0; endpoint != "" && page < maxPages; page++ {
		body, status, err := f.get(ctx, token, endpoint)
		if err != nil {
			return classifyTransport(op, err)
		}

		next, apiErr, decodeErr := decode(body)
		if apiErr != nil || status >= 400 {
			return classifyResponse(op, status, apiErr)
		}
		if decodeErr != nil {
			return &FetchError{Kind: Transient, Operation: op, StatusCode: status, Err: fmt.Errorf("decode response: %w", decodeErr)}
		}
		if next != "" && !strings.HasPrefix(next, f.baseURL) {
			logging.Warn("Insights", "Ignoring paging link outside provider base URL")
			next = ""
		}
		endpoint = next
	}
	if endpoint != "" {
		logging.Warn("Insights", "%s stopped after %d pages; remaining results dropped", op, maxPages)
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, token oauth.RedactedToken, endpoint string) ([]byte, int, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, 0, err
	}
	q := u.Query()
	q.Set("access_token", token.Value())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func classifyResponse(op string, status int, apiErr *graphError) *FetchError {
	fe := &FetchError{Kind: Transient, Operation: op, StatusCode: status}
	if apiErr != nil {
		fe.Message = apiErr.Message
		if unauthorizedCodes[apiErr.Code] {
			fe.Kind = Unauthorized
		}
	}
	if status == http.StatusUnauthorized {
		fe.Kind = Unauthorized
	}
	return fe
}

func classifyTransport(op string, err error) *FetchError {
	fe := &FetchError{Kind: Transient, Operation: op, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		fe.Message = "timeout"
	}
	// The request URL carries the token; drop it from the wrapped error.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		fe.Err = urlErr.Err
	}
	return fe
}

func flightKey(token oauth.RedactedToken, accountID string, window Window) string {
	sum := sha256.Sum256([]byte(token.Value()))
	return hex.EncodeToString(sum[:8]) + "|" + accountID + "|" + window.timeRange()
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
