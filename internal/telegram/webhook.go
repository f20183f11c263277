package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"adbridge/pkg/logging"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxWebhookBody = 1 << 20

// WebhookHandler receives updates pushed by Telegram.
type WebhookHandler struct {
	processor *Processor
	secret    string
}

// NewWebhookHandler creates the handler. When secret is non-empty every
// request must carry it in SecretHeader.
func NewWebhookHandler(processor *Processor, secret string) *WebhookHandler {
	return &WebhookHandler{processor: processor, secret: secret}
}

// ServeHTTP implements http.Handler. Updates are enqueued and acknowledged
// immediately; handling happens on the scheduler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			logging.Warn("Webhook", "Rejected update with bad secret from %s", r.RemoteAddr)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		logging.Warn("Webhook", "Malformed update: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := h.processor.Enqueue(u); err != nil {
		// Telegram retries non-2xx responses.
		logging.Warn("Webhook", "Could not enqueue update %d: %v", u.UpdateID, err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
