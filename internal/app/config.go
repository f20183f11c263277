package app

import (
	"adbridge/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of LOG_LEVEL.
	Debug bool

	// Custom configuration directory (optional). Empty uses
	// ~/.config/adbridge.
	ConfigPath string

	// Settings, when non-nil, is used as-is instead of being loaded.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
