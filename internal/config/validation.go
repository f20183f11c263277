package config

import (
	"fmt"
	"net/url"
	"strings"
)

// minStateSecretLength matches the state codec's minimum key length.
const minStateSecretLength = 16

// Validate checks cfg for settings the service cannot start without.
// Missing provider credentials are not reported; see ProviderConfig.Configured.
func Validate(cfg Config) error {
	errs := NewConfigurationErrorCollection()

	errs.Add(ValidateRequired("BOT_TOKEN", cfg.Telegram.BotToken,
		"create a bot with @BotFather and export its token as BOT_TOKEN"))

	errs.Add(ValidateOneOf("TELEGRAM_MODE", cfg.Telegram.Mode, []string{ModePolling, ModeWebhook}))
	if cfg.Telegram.Mode == ModeWebhook {
		errs.Add(ValidateRequired("TELEGRAM_WEBHOOK_URL", cfg.Telegram.WebhookURL,
			"set the public https URL that routes to "+cfg.Server.WebhookPath))
		if !errs.Has("TELEGRAM_WEBHOOK_URL") {
			errs.Add(ValidateURL("TELEGRAM_WEBHOOK_URL", cfg.Telegram.WebhookURL, true))
		}
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs.Add(ConfigurationError{
			Field:     "PORT",
			ErrorType: ErrorTypeInvalid,
			Message:   fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.Port),
		})
	}

	if cfg.Security.StateSecret != "" {
		errs.Add(ValidateMinLength("STATE_SECRET", cfg.Security.StateSecret, minStateSecretLength))
	}

	if cfg.Provider.RedirectURI != "" {
		errs.Add(ValidateURL("PROVIDER_REDIRECT_URI", cfg.Provider.RedirectURI, false))
	}

	if cfg.Logging.Level != "" {
		errs.Add(ValidateOneOf("LOG_LEVEL", strings.ToLower(cfg.Logging.Level), []string{"debug", "info", "warn", "warning", "error"}))
	}

	return errs.ErrOrNil()
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, suggestion string) error {
	if strings.TrimSpace(value) == "" {
		ce := ConfigurationError{
			Field:     field,
			ErrorType: ErrorTypeMissing,
			Message:   "is required",
		}
		if suggestion != "" {
			ce.Suggestions = []string{suggestion}
		}
		return ce
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ConfigurationError{
		Field:     field,
		ErrorType: ErrorTypeInvalid,
		Message:   fmt.Sprintf("must be one of: %s (got %q)", strings.Join(allowed, ", "), value),
	}
}

// ValidateMinLength checks if a string meets minimum length requirements
func ValidateMinLength(field, value string, minLength int) error {
	if len(strings.TrimSpace(value)) < minLength {
		return ConfigurationError{
			Field:     field,
			ErrorType: ErrorTypeInvalid,
			Message:   fmt.Sprintf("must be at least %d characters long", minLength),
		}
	}
	return nil
}

// ValidateURL checks that value is an absolute http(s) URL. requireHTTPS
// rejects plain http.
func ValidateURL(field, value string, requireHTTPS bool) error {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return ConfigurationError{
			Field:     field,
			ErrorType: ErrorTypeInvalid,
			Message:   fmt.Sprintf("must be an absolute http(s) URL (got %q)", value),
		}
	}
	if requireHTTPS && u.Scheme != "https" {
		return ConfigurationError{
			Field:     field,
			ErrorType: ErrorTypeInvalid,
			Message:   "must use https",
		}
	}
	return nil
}
