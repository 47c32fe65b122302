// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrSystemDisabled     = errors.New("system disabled by master switch")
	ErrNotInitialized     = errors.New("portfolios not initialized")
	ErrMarketNotTradable  = errors.New("market not tradable")
	ErrNoOrderbook        = errors.New("orderbook unavailable")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrBelowMinimum       = errors.New("bet below minimum size")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("monitor secret mismatch")
	ErrBetNotFound        = errors.New("bet not found")
	ErrPortfolioNotFound  = errors.New("portfolio not found")
	ErrDeadlineExceeded   = errors.New("cycle deadline exceeded")
	ErrInvalidTransition  = errors.New("invalid bet status transition")
	ErrLowGas             = errors.New("custody wallet gas too low for redemption")
)

// ConfigError is fatal at startup; the process exits non-zero.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %s", e.Field, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// TransientError wraps a failure that may succeed on retry (timeouts,
// locked database, flaky network). Callers retry with backoff, bounded
// at 3 attempts.
type TransientError struct {
	Operation string
	Err       error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error [%s]: %v", e.Operation, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new TransientError.
func NewTransientError(operation string, err error) *TransientError {
	return &TransientError{Operation: operation, Err: err}
}

// IsTransient reports whether any error in the chain is transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// VenueError represents a business error decoded from the venue's numeric
// errno. Success is errno==0; anything else is surfaced here.
type VenueError struct {
	Errno     int
	Operation string
	Message   string
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue error %d [%s]: %s", e.Errno, e.Operation, e.Message)
}

// NewVenueError creates a new VenueError.
func NewVenueError(errno int, operation, message string) *VenueError {
	return &VenueError{Errno: errno, Operation: operation, Message: message}
}

// Venue errno codes with special handling.
const (
	VenueErrAuth          = 10001 // fatal configuration
	VenueErrLowGas        = 10005 // custody wallet cannot pay redemption gas
	VenueErrInvalidArea   = 10403 // geographic block, retry pointless
	VenueErrNotFound      = 10404 // resource missing
	VenueErrPriceDecimals = 10602 // caller bug, do not retry
)

// Retryable reports whether the venue error belongs to the transient
// network class. Business errors are never retried.
func (e *VenueError) Retryable() bool {
	switch e.Errno {
	case VenueErrAuth, VenueErrInvalidArea, VenueErrPriceDecimals:
		return false
	}
	// 1xxxx codes are business rejections; 5xx-style codes from the
	// gateway are transient.
	return e.Errno >= 500 && e.Errno < 600
}

// SchemaError represents an unrecoverable violation in model output.
// The orchestrator logs and skips the (firm, market) pair.
type SchemaError struct {
	FirmName string
	Field    string
	Value    interface{}
	Message  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error [%s] %s (%v): %s", e.FirmName, e.Field, e.Value, e.Message)
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(firmName, field string, value interface{}, message string) *SchemaError {
	return &SchemaError{FirmName: firmName, Field: field, Value: value, Message: message}
}

// IntegrityError represents a store invariant violation. It aborts the
// current transaction and the current (firm, market) pair only.
type IntegrityError struct {
	Table   string
	Message string
	Err     error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integrity error [%s]: %s: %v", e.Table, e.Message, e.Err)
	}
	return fmt.Sprintf("integrity error [%s]: %s", e.Table, e.Message)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// NewIntegrityError creates a new IntegrityError.
func NewIntegrityError(table, message string, err error) *IntegrityError {
	return &IntegrityError{Table: table, Message: message, Err: err}
}

// RiskError represents a risk-guard veto. Expected during normal
// operation, not a failure.
type RiskError struct {
	FirmName string
	Reason   string // machine tag: tier_suspended, daily_spend_exceeded, ...
	Current  float64
	Limit    float64
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk veto [%s] %s (current: %.2f, limit: %.2f)", e.FirmName, e.Reason, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(firmName, reason string, current, limit float64) *RiskError {
	return &RiskError{FirmName: firmName, Reason: reason, Current: current, Limit: limit}
}

// AgentError represents a failure from a firm's model client.
type AgentError struct {
	FirmName  string
	Operation string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s] %s: %v", e.FirmName, e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError.
func NewAgentError(firmName, operation string, err error) *AgentError {
	return &AgentError{FirmName: firmName, Operation: operation, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
