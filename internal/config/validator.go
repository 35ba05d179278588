package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"multishot/internal/job"
	"multishot/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "defaults.quality")
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

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "concurrency",
			Value:   c.Concurrency,
			Message: "must be at least 1",
		})
	}
	if c.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must be a positive duration",
		})
	}

	if !slices.Contains(logging.ValidLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(logging.ValidLevels(), ", ")),
		})
	}

	errors = append(errors, c.validateDefaults()...)

	return errors
}

func (c *Config) validateDefaults() []ValidationError {
	var errors []ValidationError
	d := c.Defaults

	format, err := job.ParseFormat(d.Format)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   "defaults.format",
			Value:   d.Format,
			Message: "must be png or jpg",
		})
	}
	// 0 leaves the choice to the encoder.
	if format == job.FormatJPG && d.Quality != 0 && (d.Quality < 1 || d.Quality > 100) {
		errors = append(errors, ValidationError{
			Field:   "defaults.quality",
			Value:   d.Quality,
			Message: "must be between 1 and 100",
		})
	}
	if d.DelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "defaults.delay_ms",
			Value:   d.DelayMs,
			Message: "must not be negative",
		})
	}
	if !positiveFinite(d.ZoomFactor) {
		errors = append(errors, ValidationError{
			Field:   "defaults.zoom_factor",
			Value:   d.ZoomFactor,
			Message: "must be greater than 0",
		})
	}
	if !positiveFinite(d.DeviceScaleFactor) {
		errors = append(errors, ValidationError{
			Field:   "defaults.device_scale_factor",
			Value:   d.DeviceScaleFactor,
			Message: "must be greater than 0",
		})
	}

	return errors
}

func positiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
