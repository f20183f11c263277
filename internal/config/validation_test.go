package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Telegram.BotToken = "123:abc"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:   "minimal valid config",
			mutate: func(*Config) {},
		},
		{
			name:       "missing bot token",
			mutate:     func(c *Config) { c.Telegram.BotToken = "" },
			wantFields: []string{"BOT_TOKEN"},
		},
		{
			name:   "provider credentials are optional",
			mutate: func(c *Config) { c.Provider.ClientID = ""; c.Provider.ClientSecret = "" },
		},
		{
			name:       "unknown mode",
			mutate:     func(c *Config) { c.Telegram.Mode = "carrier-pigeon" },
			wantFields: []string{"TELEGRAM_MODE"},
		},
		{
			name:       "webhook without url",
			mutate:     func(c *Config) { c.Telegram.Mode = ModeWebhook },
			wantFields: []string{"TELEGRAM_WEBHOOK_URL"},
		},
		{
			name: "webhook over plain http",
			mutate: func(c *Config) {
				c.Telegram.Mode = ModeWebhook
				c.Telegram.WebhookURL = "http://bot.example.com/telegram/webhook"
			},
			wantFields: []string{"TELEGRAM_WEBHOOK_URL"},
		},
		{
			name: "webhook valid",
			mutate: func(c *Config) {
				c.Telegram.Mode = ModeWebhook
				c.Telegram.WebhookURL = "https://bot.example.com/telegram/webhook"
			},
		},
		{
			name:       "port out of range",
			mutate:     func(c *Config) { c.Server.Port = 70000 },
			wantFields: []string{"PORT"},
		},
		{
			name:       "short state secret",
			mutate:     func(c *Config) { c.Security.StateSecret = "short" },
			wantFields: []string{"STATE_SECRET"},
		},
		{
			name:       "relative redirect uri",
			mutate:     func(c *Config) { c.Provider.RedirectURI = "/oauth/callback" },
			wantFields: []string{"PROVIDER_REDIRECT_URI"},
		},
		{
			name:       "bad log level",
			mutate:     func(c *Config) { c.Logging.Level = "chatty" },
			wantFields: []string{"LOG_LEVEL"},
		},
		{
			name: "several problems",
			mutate: func(c *Config) {
				c.Telegram.BotToken = ""
				c.Server.Port = 0
			},
			wantFields: []string{"BOT_TOKEN", "PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var errs *ConfigurationErrorCollection
			require.ErrorAs(t, err, &errs)
			assert.Equal(t, len(tt.wantFields), errs.Count())
			for _, field := range tt.wantFields {
				assert.True(t, errs.Has(field), "expected error for %s, got %v", field, errs)
			}
		})
	}
}

func TestValidate_MissingBotTokenHasSuggestion(t *testing.T) {
	cfg := DefaultConfig()

	err := Validate(cfg)
	var errs *ConfigurationErrorCollection
	require.ErrorAs(t, err, &errs)
	require.Equal(t, 1, errs.Count())
	assert.Equal(t, ErrorTypeMissing, errs.Errors[0].ErrorType)
	assert.NotEmpty(t, errs.Errors[0].Suggestions)
	assert.Contains(t, errs.GetDetailedReport(), "BotFather")
}

func TestConfigurationError_Formatting(t *testing.T) {
	ce := ConfigurationError{Field: "PORT", ErrorType: ErrorTypeParse, Message: "must be a number", Source: "env"}
	assert.Equal(t, "PORT: must be a number", ce.Error())
	assert.Contains(t, ce.DetailedError(), "Source: env")

	errs := NewConfigurationErrorCollection()
	assert.NoError(t, errs.ErrOrNil())
	errs.Add(nil)
	assert.False(t, errs.HasErrors())

	errs.Add(ce)
	errs.Add(ConfigurationError{Field: "BOT_TOKEN", Message: "is required"})
	assert.Equal(t, "2 configuration errors: PORT: must be a number (and 1 more)", errs.Error())
}
