package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbridge/internal/metrics"
)

type fakeExchanger struct {
	mu          sync.Mutex
	exchangeErr error
	extendErr   error
	codes       []string
	extended    int
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code string) (TokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return TokenRecord{}, f.exchangeErr
	}
	return testRecord("short-"+code, time.Hour), nil
}

func (f *fakeExchanger) ExtendLifetime(_ context.Context, rec TokenRecord) (TokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extended++
	if f.extendErr != nil {
		return rec, f.extendErr
	}
	long := testRecord("long-"+rec.AccessToken.Value(), 60*24*time.Hour)
	long.LongLived = true
	return long, nil
}

type failingStore struct{ TokenStore }

func (failingStore) Set(context.Context, ChatID, TokenRecord) error {
	return errors.New("disk full")
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []ChatID
}

func (n *recordingNotifier) NotifyConnected(_ context.Context, id ChatID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, id)
}

type countingRunner struct{ calls int }

func (r *countingRunner) Do(ctx context.Context, _ string, fn func(context.Context) error) error {
	r.calls++
	return fn(ctx)
}

func callback(t *testing.T, h http.Handler, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Success(t *testing.T) {
	codec := newTestCodec(t)
	store := NewMemoryTokenStore(time.Hour)
	defer store.Stop()
	ex := &fakeExchanger{}
	notifier := &recordingNotifier{}
	runner := &countingRunner{}
	m := metrics.New()

	h := NewHandler(codec, ex, store,
		WithNotifier(notifier),
		WithTaskRunner(runner),
		WithMetrics(m),
		WithReturnURL("https://t.me/adbridge_bot"),
	)

	rec := callback(t, h, url.Values{"code": {"abc"}, "state": {codec.Encode(42)}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization complete")
	assert.Contains(t, rec.Body.String(), "https://t.me/adbridge_bot")
	assert.Equal(t, []string{"abc"}, ex.codes)
	assert.Equal(t, 1, ex.extended)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, []ChatID{42}, notifier.ids)

	stored, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "long-short-abc", stored.AccessToken.Value())
	assert.True(t, stored.LongLived)
}

func TestHandler_ExtendFailureKeepsShortLivedToken(t *testing.T) {
	codec := newTestCodec(t)
	store := NewMemoryTokenStore(time.Hour)
	defer store.Stop()
	ex := &fakeExchanger{extendErr: errors.New("provider down")}

	rec := callback(t, NewHandler(codec, ex, store), url.Values{"code": {"abc"}, "state": {codec.Encode(-1001)}})

	assert.Equal(t, http.StatusOK, rec.Code)
	stored, err := store.Get(context.Background(), -1001)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "short-abc", stored.AccessToken.Value())
	assert.False(t, stored.LongLived)
}

func TestHandler_Rejections(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec([]byte("another-secret-of-enough-length"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		params url.Values
		status int
	}{
		{
			name:   "provider error",
			params: url.Values{"error": {"access_denied"}, "state": {codec.Encode(42)}},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing code",
			params: url.Values{"state": {codec.Encode(42)}},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing state",
			params: url.Values{"code": {"abc"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed state",
			params: url.Values{"code": {"abc"}, "state": {"not-a-token"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "forged state",
			params: url.Values{"code": {"abc"}, "state": {other.Encode(42)}},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryTokenStore(time.Hour)
			defer store.Stop()
			ex := &fakeExchanger{}

			rec := callback(t, NewHandler(codec, ex, store), tt.params)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "Authorization failed")
			assert.Empty(t, ex.codes, "exchange must not be attempted")
			assert.Equal(t, 0, store.Count())
		})
	}
}

func TestHandler_ExchangeFailure(t *testing.T) {
	codec := newTestCodec(t)
	store := NewMemoryTokenStore(time.Hour)
	defer store.Stop()
	ex := &fakeExchanger{exchangeErr: &ExchangeError{Kind: ProviderRejected, Step: "exchange", StatusCode: 400}}
	notifier := &recordingNotifier{}

	rec := callback(t, NewHandler(codec, ex, store, WithNotifier(notifier)),
		url.Values{"code": {"used"}, "state": {codec.Encode(42)}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, ex.extended)
	assert.Equal(t, 0, store.Count())
	assert.Empty(t, notifier.ids)
}

func TestHandler_NotConfigured(t *testing.T) {
	codec := newTestCodec(t)
	store := NewMemoryTokenStore(time.Hour)
	defer store.Stop()

	rec := callback(t, NewHandler(codec, nil, store), url.Values{"code": {"abc"}, "state": {codec.Encode(42)}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, store.Count())
}

func TestHandler_StoreFailure(t *testing.T) {
	codec := newTestCodec(t)
	notifier := &recordingNotifier{}

	rec := callback(t, NewHandler(codec, &fakeExchanger{}, failingStore{}, WithNotifier(notifier)),
		url.Values{"code": {"abc"}, "state": {codec.Encode(42)}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not save")
	assert.Empty(t, notifier.ids)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	codec := newTestCodec(t)
	h := NewHandler(codec, &fakeExchanger{}, NewMemoryTokenStore(time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/oauth/callback", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestHandler_SecurityHeaders(t *testing.T) {
	codec := newTestCodec(t)
	store := NewMemoryTokenStore(time.Hour)
	defer store.Stop()

	rec := callback(t, NewHandler(codec, &fakeExchanger{}, store), url.Values{"error": {"access_denied"}})

	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; style-src 'unsafe-inline'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
		"Content-Type":            "text/html; charset=utf-8",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}
}

func TestHandler_PageEscapesContent(t *testing.T) {
	rec := httptest.NewRecorder()
	h := &Handler{}
	h.renderPage(rec, http.StatusOK, pageData{
		Title:   "x",
		Heading: "<script>alert(1)</script>",
		Message: "ok",
	})

	body := rec.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
}
