package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrState matches every StateError.
	ErrState = errors.New("state error")
)

// ConfigurationError reports partitioning or routing that is not set up for
// the requested operation. It is never retried.
type ConfigurationError struct {
	Reason string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ValidationError reports an argument rejected before any store call.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StateError reports an operation that needs a partition binding the
// current context does not carry.
type StateError struct {
	Reason string
}

// NewStateError creates a new StateError.
func NewStateError(format string, args ...any) *StateError {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}

func (e *StateError) Error() string {
	return "state error: " + e.Reason
}

// Is reports whether target is ErrState.
func (e *StateError) Is(target error) bool {
	return target == ErrState
}
