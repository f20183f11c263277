package telegram

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testToken = "123456:secret-bot-token"

type apiCall struct {
	Method  string
	Payload map[string]any
}

// fakeBotAPI records Bot API calls. Responses default to ok with a null
// result; respond overrides them per method.
type fakeBotAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	calls   []apiCall
	respond map[string]func(payload map[string]any) (int, any)
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{t: t, respond: make(map[string]func(map[string]any) (int, any))}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)

	var payload map[string]any
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &payload)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Payload: payload})
	respond := f.respond[method]
	f.mu.Unlock()

	status, resp := http.StatusOK, any(map[string]any{"ok": true, "result": nil})
	if respond != nil {
		status, resp = respond(payload)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeBotAPI) on(method string, fn func(payload map[string]any) (int, any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond[method] = fn
}

func (f *fakeBotAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBotAPI) client() *Client {
	return NewClient(testToken, WithAPIURL(f.srv.URL))
}
