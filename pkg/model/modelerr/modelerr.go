// Package modelerr defines the errors raised while building or running the classifier.
package modelerr

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrShape         = errors.New("shape error")
)

// ConfigurationError reports a model that cannot be built or run as configured,
// e.g. mismatching embedding widths or two absent modalities.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func Configuration(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ShapeError reports an input whose size does not match the configured one.
type ShapeError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s has size %d, expected %d", ErrShape, e.What, e.Actual, e.Expected)
}

func (e *ShapeError) Unwrap() error {
	return ErrShape
}

// CheckSize returns a *ShapeError when actual differs from expected.
func CheckSize(what string, expected, actual int) error {
	if expected != actual {
		return &ShapeError{What: what, Expected: expected, Actual: actual}
	}
	return nil
}

// MustSize panics with a *ShapeError when actual differs from expected.
// Used inside forward passes, where inputs are expected to be validated already.
func MustSize(what string, expected, actual int) {
	if err := CheckSize(what, expected, actual); err != nil {
		panic(err)
	}
}
