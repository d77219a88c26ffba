package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "locking.retry_count")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLocking()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateDashboard()...)

	return errors
}

// validateLocking validates the LockingConfig
func (c *Config) validateLocking() []ValidationError {
	var errors []ValidationError
	l := c.Locking

	positive := []struct {
		field string
		value int
	}{
		{"locking.stale_after_ms", l.StaleAfterMs},
		{"locking.min_backoff_ms", l.MinBackoffMs},
		{"locking.max_backoff_ms", l.MaxBackoffMs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must be positive",
			})
		}
	}

	if l.RetryCount < 0 {
		errors = append(errors, ValidationError{
			Field:   "locking.retry_count",
			Value:   l.RetryCount,
			Message: "must be non-negative",
		})
	}

	// Cap retries so a misconfigured value cannot stall a command for hours
	const maxRetryCount = 1000
	if l.RetryCount > maxRetryCount {
		errors = append(errors, ValidationError{
			Field:   "locking.retry_count",
			Value:   l.RetryCount,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRetryCount),
		})
	}

	if l.MinBackoffMs > 0 && l.MaxBackoffMs > 0 && l.MinBackoffMs > l.MaxBackoffMs {
		errors = append(errors, ValidationError{
			Field:   "locking.min_backoff_ms",
			Value:   l.MinBackoffMs,
			Message: fmt.Sprintf("must not exceed locking.max_backoff_ms (%d)", l.MaxBackoffMs),
		})
	}

	// A holder that is merely waiting out one backoff must not look abandoned
	if l.StaleAfterMs > 0 && l.MaxBackoffMs > 0 && l.StaleAfterMs <= l.MaxBackoffMs {
		errors = append(errors, ValidationError{
			Field:   "locking.stale_after_ms",
			Value:   l.StaleAfterMs,
			Message: fmt.Sprintf("must be greater than locking.max_backoff_ms (%d)", l.MaxBackoffMs),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateDashboard validates the DashboardConfig
func (c *Config) validateDashboard() []ValidationError {
	var errors []ValidationError

	// Faster polling than this only burns lock round-trips
	const minRefreshIntervalMs = 100
	if c.Dashboard.RefreshIntervalMs < minRefreshIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "dashboard.refresh_interval_ms",
			Value:   c.Dashboard.RefreshIntervalMs,
			Message: fmt.Sprintf("must be at least %d", minRefreshIntervalMs),
		})
	}

	return errors
}
