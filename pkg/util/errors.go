// Package util provides logging helpers and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across packages
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidPackage     = errors.New("invalid CSAR package")
	ErrUnsupportedVersion = errors.New("unsupported version")
)

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// PackageError ties a failure to the CSAR source it was raised for.
type PackageError struct {
	Source string
	Reason string
	Err    error
}

func (e *PackageError) Error() string {
	msg := fmt.Sprintf("package %q: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the cause and ErrInvalidPackage to errors.Is.
func (e *PackageError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidPackage, e.Err}
	}
	return []error{ErrInvalidPackage}
}

// NewPackageError creates a package error
func NewPackageError(source, reason string, err error) *PackageError {
	return &PackageError{Source: source, Reason: reason, Err: err}
}

// VersionError reports a version value outside what is supported.
type VersionError struct {
	Field     string
	Value     string
	Supported string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s %q is not supported (want %s)", e.Field, e.Value, e.Supported)
}

func (e *VersionError) Unwrap() error {
	return ErrUnsupportedVersion
}

// NewVersionError creates a version error
func NewVersionError(field, value, supported string) *VersionError {
	return &VersionError{Field: field, Value: value, Supported: supported}
}
