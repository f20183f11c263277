package config

import (
	"fmt"
	"strings"
)

// Error types.
const (
	ErrorTypeMissing = "missing"
	ErrorTypeInvalid = "invalid"
	ErrorTypeParse   = "parse"
	ErrorTypeIO      = "io"
)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	Field       string   `json:"field"`       // Configuration key, e.g. BOT_TOKEN or server.port
	Source      string   `json:"source"`      // "env", "dotenv", "file" or "defaults"
	ErrorType   string   `json:"errorType"`   // missing, invalid, parse, io
	Message     string   `json:"message"`     // Human-readable error message
	Details     string   `json:"details"`     // Additional details about the error
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	if ce.Field == "" {
		return ce.Message
	}
	return fmt.Sprintf("%s: %s", ce.Field, ce.Message)
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration error in %s", ce.Field))
	if ce.Source != "" {
		parts = append(parts, fmt.Sprintf("  Source: %s", ce.Source))
	}
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// ConfigurationErrorCollection holds multiple configuration errors
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// Error implements the error interface for the collection
func (cec *ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}

	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}

	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Count returns the number of errors in the collection
func (cec *ConfigurationErrorCollection) Count() int {
	return len(cec.Errors)
}

// Add adds a new error to the collection. Nil errors are ignored; errors of
// other types are wrapped.
func (cec *ConfigurationErrorCollection) Add(err error) {
	if err == nil {
		return
	}
	if ce, ok := err.(ConfigurationError); ok {
		cec.Errors = append(cec.Errors, ce)
		return
	}
	cec.Errors = append(cec.Errors, ConfigurationError{ErrorType: ErrorTypeInvalid, Message: err.Error()})
}

// Has reports whether the collection contains an error for field.
func (cec *ConfigurationErrorCollection) Has(field string) bool {
	for _, err := range cec.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetDetailedReport returns a detailed report of all errors
func (cec *ConfigurationErrorCollection) GetDetailedReport() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors to report"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Configuration Error Report (%d errors):", len(cec.Errors)))
	parts = append(parts, strings.Repeat("=", 60))

	for i, err := range cec.Errors {
		parts = append(parts, err.DetailedError())
		if i < len(cec.Errors)-1 {
			parts = append(parts, strings.Repeat("-", 40))
		}
	}

	return strings.Join(parts, "\n")
}

// ErrOrNil returns the collection as an error, or nil when it is empty.
func (cec *ConfigurationErrorCollection) ErrOrNil() error {
	if !cec.HasErrors() {
		return nil
	}
	return cec
}

// NewConfigurationErrorCollection creates a new empty error collection
func NewConfigurationErrorCollection() *ConfigurationErrorCollection {
	return &ConfigurationErrorCollection{
		Errors: make([]ConfigurationError, 0),
	}
}
