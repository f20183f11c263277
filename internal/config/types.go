package config

import "time"

// Telegram update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config is the top-level configuration structure for adbridge.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Provider ProviderConfig `yaml:"provider"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TelegramConfig configures the chat transport.
type TelegramConfig struct {
	BotToken      string        `yaml:"botToken,omitempty"`
	BotUsername   string        `yaml:"botUsername,omitempty"`
	Mode          string        `yaml:"mode,omitempty"`          // polling or webhook
	WebhookURL    string        `yaml:"webhookURL,omitempty"`    // required in webhook mode
	WebhookSecret string        `yaml:"webhookSecret,omitempty"` // optional shared secret
	APIURL        string        `yaml:"apiURL,omitempty"`
	PollTimeout   time.Duration `yaml:"pollTimeout,omitempty"`
}

// ProviderConfig configures the advertising provider's OAuth and data API.
type ProviderConfig struct {
	ClientID     string `yaml:"clientID,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	RedirectURI  string `yaml:"redirectURI,omitempty"`

	AuthURL  string   `yaml:"authURL,omitempty"`
	TokenURL string   `yaml:"tokenURL,omitempty"`
	GraphURL string   `yaml:"graphURL,omitempty"`
	Scopes   []string `yaml:"scopes,omitempty"`

	ExchangeTimeout  time.Duration `yaml:"exchangeTimeout,omitempty"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout,omitempty"`
	ReportWindowDays int           `yaml:"reportWindowDays,omitempty"`
}

// Configured reports whether the OAuth credentials are all present.
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURI != ""
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	CallbackPath string `yaml:"callbackPath,omitempty"`
	WebhookPath  string `yaml:"webhookPath,omitempty"`

	// CallbackRatePerMinute and CallbackBurst shape the per-client limit
	// on the OAuth callback.
	CallbackRatePerMinute float64 `yaml:"callbackRatePerMinute,omitempty"`
	CallbackBurst         int     `yaml:"callbackBurst,omitempty"`
	// TrustForwardedFor keys the limit on X-Forwarded-For. Enable only
	// behind a proxy that sets it.
	TrustForwardedFor bool `yaml:"trustForwardedFor,omitempty"`

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
	MetricsEnabled  bool          `yaml:"metricsEnabled"`

	// ReturnURL is linked from the callback success page. Empty derives
	// https://t.me/<bot username> when the username is known.
	ReturnURL string `yaml:"returnURL,omitempty"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// StoreConfig selects and configures the token store.
type StoreConfig struct {
	// RedisURL enables the Redis store. Empty keeps tokens in memory.
	RedisURL      string        `yaml:"redisURL,omitempty"`
	KeyPrefix     string        `yaml:"keyPrefix,omitempty"`
	SweepInterval time.Duration `yaml:"sweepInterval,omitempty"`
}

// SecurityConfig holds the OAuth state signing key.
type SecurityConfig struct {
	// StateSecret signs correlation tokens. Empty generates a random
	// per-process key.
	StateSecret string `yaml:"stateSecret,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text or json
}
