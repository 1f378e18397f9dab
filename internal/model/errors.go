package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a conversation does not exist for the user.
	ErrNotFound = errors.New("conversation not found")
	// ErrUnauthorized is returned when no user identity could be resolved.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable marks a store that is unconfigured or unreachable.
	ErrStoreUnavailable = errors.New("conversation store unavailable")
	// ErrCorruptRecord is returned when a stored conversation does not decode into its record shape.
	ErrCorruptRecord = errors.New("corrupt conversation record")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed or out-of-range input.
type ValidationError struct {
	Details []FieldError
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Details: []FieldError{{Field: field, Message: message}}}
}

// Add records another invalid field.
func (e *ValidationError) Add(field, message string) {
	e.Details = append(e.Details, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Details) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProviderError wraps a backend failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
