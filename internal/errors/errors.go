// Package apperrors defines the error taxonomy shared by the fetcher, the
// providers and the CLI driver, together with the process exit codes.
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Exit codes returned by the pricebench driver.
const (
	ExitSuccess       = 0   // every strategy completed
	ExitErrorGeneric  = 1   // at least one strategy failed
	ExitErrorConfig   = 4   // invalid configuration or flags
	ExitErrorCanceled = 130 // interrupted by the user (SIGINT)
)

// ErrComputationInterrupted is the only failure a price computation can
// produce: the simulated delay was cancelled before it elapsed.
var ErrComputationInterrupted = errors.New("price computation interrupted")

// ComputationError records which provider failed and why. It matches
// ErrComputationInterrupted with errors.Is and unwraps to the cause
// (typically context.Canceled or context.DeadlineExceeded).
type ComputationError struct {
	Provider string
	Cause    error
}

func (e *ComputationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Provider, ErrComputationInterrupted)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, ErrComputationInterrupted, e.Cause)
}

func (e *ComputationError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrComputationInterrupted.
func (e *ComputationError) Is(target error) bool {
	return target == ErrComputationInterrupted
}

// Interrupted builds the error returned when provider's computation was
// cancelled by cause.
func Interrupted(provider string, cause error) error {
	return &ComputationError{Provider: provider, Cause: cause}
}

// ConfigError represents invalid configuration or constructor input.
type ConfigError struct {
	Field   string
	Message string
}

func (e ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("config error in field %q: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError for field with a formatted message.
func NewConfigError(field, format string, a ...any) error {
	return ConfigError{Field: field, Message: fmt.Sprintf(format, a...)}
}

// WrapError wraps err with a formatted context message. It returns nil when
// err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsContextError reports whether err is a context cancellation or deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
