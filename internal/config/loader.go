package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"adbridge/pkg/logging"
)

const (
	userConfigDir  = ".config/adbridge"
	configFileName = "config.yaml"
	dotenvFileName = ".env"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// GetDefaultConfigPath returns ~/.config/adbridge, or "." when the home
// directory is unknown.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from configPath/config.yaml, then .env in
// the working directory, then the process environment.
func LoadConfig(configPath string) (Config, error) {
	return Load(configPath, dotenvFileName, os.LookupEnv)
}

// Load layers defaults, configPath/config.yaml, envFile and lookup. Missing
// files are skipped. The result is not validated; see Validate.
func Load(configPath, envFile string, lookup LookupFunc) (Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadYAML(filepath.Join(configPath, configFileName), &cfg); err != nil {
			return Config{}, err
		}
	}

	dotenv, err := readDotenv(envFile)
	if err != nil {
		return Config{}, err
	}

	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", path)
			return nil
		}
		return ConfigurationError{
			Field:     path,
			Source:    "file",
			ErrorType: ErrorTypeIO,
			Message:   err.Error(),
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return ConfigurationError{
			Field:     path,
			Source:    "file",
			ErrorType: ErrorTypeParse,
			Message:   fmt.Sprintf("error loading config: %v", err),
		}
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, ConfigurationError{
			Field:     path,
			Source:    "dotenv",
			ErrorType: ErrorTypeParse,
			Message:   err.Error(),
		}
	}
	logging.Info("ConfigLoader", "Loaded %d values from %s", len(values), path)
	return values, nil
}

// applyEnv overlays environment values onto cfg. Only non-empty values
// override.
func applyEnv(cfg *Config, env LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("BOT_TOKEN", &cfg.Telegram.BotToken)
	str("TELEGRAM_BOT_USERNAME", &cfg.Telegram.BotUsername)
	str("TELEGRAM_WEBHOOK_URL", &cfg.Telegram.WebhookURL)
	str("TELEGRAM_WEBHOOK_SECRET", &cfg.Telegram.WebhookSecret)
	str("PROVIDER_CLIENT_ID", &cfg.Provider.ClientID)
	str("PROVIDER_CLIENT_SECRET", &cfg.Provider.ClientSecret)
	str("PROVIDER_REDIRECT_URI", &cfg.Provider.RedirectURI)
	str("STATE_SECRET", &cfg.Security.StateSecret)
	str("REDIS_URL", &cfg.Store.RedisURL)

	if v, ok := env("TELEGRAM_MODE"); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := env("LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}

	if v, ok := env("TRUST_FORWARDED_FOR"); ok && strings.TrimSpace(v) != "" {
		trust, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return ConfigurationError{
				Field:     "TRUST_FORWARDED_FOR",
				Source:    "env",
				ErrorType: ErrorTypeParse,
				Message:   fmt.Sprintf("must be true or false (got %q)", v),
			}
		}
		cfg.Server.TrustForwardedFor = trust
	}

	if v, ok := env("PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return ConfigurationError{
				Field:     "PORT",
				Source:    "env",
				ErrorType: ErrorTypeParse,
				Message:   fmt.Sprintf("must be a number (got %q)", v),
			}
		}
		cfg.Server.Port = port
	}
	return nil
}

// ReturnURL is the link shown on the callback success page.
func (c Config) ReturnURL() string {
	if c.Server.ReturnURL != "" {
		return c.Server.ReturnURL
	}
	if c.Telegram.BotUsername != "" {
		return "https://t.me/" + strings.TrimPrefix(c.Telegram.BotUsername, "@")
	}
	return ""
}
