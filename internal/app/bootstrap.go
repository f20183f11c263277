package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"adbridge/internal/config"
	"adbridge/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs adbridge.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load and validate configuration, initialize logging, build services
//  2. Execution phase: run the HTTP server and the update source until shutdown
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and builds all
// services. Configuration errors are returned as config.ConfigurationError
// or *config.ConfigurationErrorCollection.
func NewApplication(cfg *Config) (*Application, error) {
	settings, err := loadSettings(cfg)
	if err != nil {
		return nil, err
	}

	if err := initLogging(cfg.Debug, settings.Logging); err != nil {
		return nil, err
	}

	if err := config.Validate(settings); err != nil {
		logging.Error("Bootstrap", err, "%s", invalidConfigMessage(err))
		return nil, err
	}
	cfg.Settings = &settings

	services, err := InitializeServices(context.Background(), settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logging.Info("Bootstrap", "adbridge initialized in %s mode, provider configured: %t",
		settings.Telegram.Mode, services.Exchanger != nil)

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func loadSettings(cfg *Config) (config.Config, error) {
	if cfg.Settings != nil {
		return *cfg.Settings, nil
	}
	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	settings, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load adbridge configuration from %s: %w", configPath, err)
	}
	return settings, nil
}

// invalidConfigMessage expands a collection into its detailed report.
func invalidConfigMessage(err error) string {
	var collection *config.ConfigurationErrorCollection
	if !errors.As(err, &collection) {
		return "Configuration is invalid"
	}
	return fmt.Sprintf("Configuration is invalid (%d problems)\n%s",
		collection.Count(), collection.GetDetailedReport())
}

func initLogging(debug bool, cfg config.LoggingConfig) error {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return config.ConfigurationError{
			Field:     "LOG_LEVEL",
			Source:    "env",
			ErrorType: config.ErrorTypeInvalid,
			Message:   err.Error(),
		}
	}
	if debug {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if cfg.Format == string(logging.FormatJSON) {
		format = logging.FormatJSON
	}
	logging.Init(level, format, os.Stdout)
	return nil
}

// Services exposes the wired collaborators, mainly for tests.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (a *Application) Run(ctx context.Context) error {
	return run(ctx, a.services)
}
