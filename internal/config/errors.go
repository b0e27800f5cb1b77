package config

import (
	"fmt"
	"strings"
)

// ConfigurationError describes a problem with the loaded configuration.
type ConfigurationError struct {
	FilePath    string   // File the value came from, empty for defaults and environment
	Field       string   // Offending field
	ErrorType   string   // parse, validation or io
	Message     string   // Human-readable error message
	Suggestions []string // Actionable suggestions to fix the error
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	if ce.Field != "" {
		return fmt.Sprintf("config %s: %s: %s", ce.ErrorType, ce.Field, ce.Message)
	}
	return fmt.Sprintf("config %s: %s", ce.ErrorType, ce.Message)
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigurationError) DetailedError() string {
	parts := []string{ce.Error()}
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}
	return strings.Join(parts, "\n")
}
