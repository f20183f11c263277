package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	limiter := NewRateLimiter(1, 2, false)
	require.NotNil(t, limiter)

	calls := 0
	h := limiter.Middleware(countingHandler(&calls))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1:1234"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, calls, "rejected request must not reach the handler")
}

func TestRateLimiter_PerClient(t *testing.T) {
	limiter := NewRateLimiter(1, 1, false)
	calls := 0
	h := limiter.Middleware(countingHandler(&calls))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(addr))
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
	assert.Equal(t, 3, calls)
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(1, 1, true)
	calls := 0
	h := limiter.Middleware(countingHandler(&calls))

	for _, fwd := range []string{"203.0.113.1", "203.0.113.2, 10.0.0.1"} {
		req := requestFrom("10.0.0.1:1")
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, fwd)
	}

	req := requestFrom("10.0.0.9:1")
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiter_IgnoresForwardedForByDefault(t *testing.T) {
	req := requestFrom("10.0.0.1:1")
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	assert.Equal(t, "10.0.0.1", clientIP(req, false))
	assert.Equal(t, "203.0.113.1", clientIP(req, true))
}

func TestRateLimiter_Disabled(t *testing.T) {
	var limiter *RateLimiter = NewRateLimiter(0, 5, false)
	assert.Nil(t, limiter)

	calls := 0
	h := limiter.Middleware(countingHandler(&calls))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1:1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_CleansUpIdleClients(t *testing.T) {
	limiter := NewRateLimiter(60, 1, false)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.getLimiter("a")
	now = now.Add(idleClientWindow + time.Second)
	limiter.getLimiter("b")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.clients, "a")
	assert.Contains(t, limiter.clients, "b")
}
