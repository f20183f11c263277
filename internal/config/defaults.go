package config

import (
	"net"
	"strconv"
	"time"
)

const (
	// DefaultOAuthCallbackPath is the default path for OAuth callbacks.
	DefaultOAuthCallbackPath = "/oauth/callback"

	// DefaultWebhookPath is where Telegram posts updates in webhook mode.
	DefaultWebhookPath = "/telegram/webhook"

	DefaultPort = 8080

	DefaultAuthURL  = "https://www.facebook.com/v19.0/dialog/oauth"
	DefaultTokenURL = "https://graph.facebook.com/v19.0/oauth/access_token"
	DefaultGraphURL = "https://graph.facebook.com/v19.0"
)

// DefaultScopes is the permission set requested on /connect.
var DefaultScopes = []string{"ads_read"}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Telegram: TelegramConfig{
			Mode:        ModePolling,
			APIURL:      "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			AuthURL:          DefaultAuthURL,
			TokenURL:         DefaultTokenURL,
			GraphURL:         DefaultGraphURL,
			Scopes:           append([]string(nil), DefaultScopes...),
			ExchangeTimeout:  10 * time.Second,
			FetchTimeout:     15 * time.Second,
			ReportWindowDays: 7,
		},
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  DefaultPort,
			CallbackPath:          DefaultOAuthCallbackPath,
			WebhookPath:           DefaultWebhookPath,
			CallbackRatePerMinute: 20,
			CallbackBurst:         5,
			ShutdownTimeout:       10 * time.Second,
			MetricsEnabled:        true,
		},
		Store: StoreConfig{
			KeyPrefix:     "adbridge:token:",
			SweepInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
