package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
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
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the configuration and returns every problem found.
func (c RunnerConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := ValidateOneOf("logLevel", strings.ToLower(c.LogLevel), []string{"debug", "info", "warn", "error"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateOneOf("logFormat", strings.ToLower(c.LogFormat), []string{"text", "json"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateRequired("manifestDir", c.ManifestDir, "pluginrunner"); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateRequired("intentsFile", c.IntentsFile, "pluginrunner"); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if c.MinComponentVersion != "" {
		if _, err := version.NewVersion(c.MinComponentVersion); err != nil {
			errs.Add("minComponentVersion", fmt.Sprintf("is not a valid version: %v", err), c.MinComponentVersion)
		}
	}
	if c.HookTimeout < 0 {
		errs.Add("hookTimeout", "must not be negative", c.HookTimeout.Std().String())
	}
	if c.WatchDebounce < 0 {
		errs.Add("watchDebounce", "must not be negative", c.WatchDebounce.Std().String())
	}

	return errs
}

// FormatValidationError creates a consistent validation error message
func FormatValidationError(entityType, entityName string, err error) error {
	if err == nil {
		return nil
	}

	if entityName != "" {
		return fmt.Errorf("validation failed for %s '%s': %w", entityType, entityName, err)
	}
	return fmt.Errorf("validation failed for %s: %w", entityType, err)
}
