package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateRequired checks that a string field is not empty.
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidatePort checks if a port number is valid.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

// ValidateLogLevel checks if a log level is valid.
func ValidateLogLevel(field, level string) error {
	return ValidateOneOf(field, level, "debug", "info", "warn", "warning", "error", "fatal")
}

// ValidateOneOf checks that value is one of allowed.
func ValidateOneOf(field, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return &ValidationError{
		Field:   field,
		Message: "must be one of: " + strings.Join(allowed, ", "),
	}
}

// ValidateNonNegativeDuration rejects negative durations.
func ValidateNonNegativeDuration(field string, d time.Duration) error {
	if d < 0 {
		return &ValidationError{Field: field, Message: "must not be negative"}
	}
	return nil
}
