package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"adbridge/internal/bot"
	"adbridge/internal/oauth"
	"adbridge/pkg/logging"
)

const (
	// DefaultAPIURL is the Bot API root.
	DefaultAPIURL = "https://api.telegram.org"

	// DefaultRequestTimeout bounds non-polling API calls.
	DefaultRequestTimeout = 10 * time.Second

	maxMessageLength = 4096
	maxAPIResponse   = 8 << 20
)

// Client calls the Telegram Bot API.
type Client struct {
	token      oauth.RedactedToken
	apiURL     string
	httpClient *http.Client
	timeout    time.Duration
}

var _ bot.Sender = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIURL points the client at a different Bot API server.
func WithAPIURL(u string) ClientOption {
	return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Bot API client for token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      oauth.NewRedactedToken(token),
		apiURL:     DefaultAPIURL,
		httpClient: cleanhttp.DefaultPooledClient(),
		timeout:    DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call POSTs payload to method and decodes the result into out, if non-nil.
// timeout <= 0 leaves the deadline to ctx.
func (c *Client) call(ctx context.Context, method string, payload any, out any, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}

	endpoint := c.apiURL + "/bot" + c.token.Value() + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, stripURL(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponse))
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("telegram %s: status %d: decode response: %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = envelope.Parameters.RetryAfter
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// stripURL drops the request URL, which carries the bot token, from
// transport errors.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me, c.timeout); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates starting at offset, waiting up to
// timeout on the server side.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	// Leave room for the server-side wait.
	if err := c.call(ctx, "getUpdates", payload, &updates, timeout+c.timeout); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends a message.
func (c *Client) SendMessage(ctx context.Context, msg SendMessageRequest) error {
	return c.call(ctx, "sendMessage", msg, nil, c.timeout)
}

// Send renders reply as an HTML message with an inline keyboard.
func (c *Client) Send(ctx context.Context, reply bot.Reply) error {
	if reply.Empty() {
		return nil
	}
	msg := SendMessageRequest{
		ChatID:                int64(reply.ChatID),
		Text:                  truncateMessage(reply.Text),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           keyboard(reply.Buttons),
	}
	if msg.Text == "" {
		msg.Text = "…"
	}
	err := c.SendMessage(ctx, msg)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Description, "parse entities") {
		logging.Warn("Telegram", "HTML rejected for chat=%s, resending as plain text", reply.ChatID)
		msg.ParseMode = ""
		return c.SendMessage(ctx, msg)
	}
	return err
}

// AnswerCallbackQuery acknowledges a button press with an optional toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil, c.timeout)
}

// SetWebhook registers webhookURL. secret, if set, is echoed by Telegram in
// the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	payload := map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil, c.timeout)
}

// DeleteWebhook removes any registered webhook so getUpdates can be used.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil, c.timeout)
}

func keyboard(buttons []bot.Button) *InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         b.Text,
			CallbackData: b.Data,
			URL:          b.URL,
		}})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func truncateMessage(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLength {
		return text
	}
	return string(runes[:maxMessageLength-1]) + "…"
}
