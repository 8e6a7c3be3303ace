package helpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"market-dashboard/src/logger"

	"github.com/cenkalti/backoff/v5"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type DashboardError struct {
	Message string
	Cause   error
}

func (e *DashboardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DashboardError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ DashboardError }
type TransportError struct{ DashboardError }
type DatabaseError struct{ DashboardError }
type ValidationError struct{ DashboardError }

// ParseError marks an inbound stream message that could not be classified
type ParseError struct {
	DashboardError
	Raw []byte
}

// FetchError is the single opaque failure of a REST call
type FetchError struct {
	DashboardError
	Method string
	Path   string
	Status int
}

// -----------------------------------------------------------------------------

func NewParseError(raw []byte, format string, args ...interface{}) *ParseError {
	return &ParseError{DashboardError: DashboardError{Message: fmt.Sprintf(format, args...)}, Raw: raw}
}

func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{DashboardError{Message: message, Cause: cause}}
}

func NewFetchError(method, path string, status int, statusText string) *FetchError {
	return &FetchError{
		DashboardError: DashboardError{Message: fmt.Sprintf("API Error: %d %s", status, statusText)},
		Method:         method,
		Path:           path,
		Status:         status,
	}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{DashboardError{Message: message, Cause: cause}}
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{DashboardError{Message: fmt.Sprintf(format, args...)}}
}

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{DashboardError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times with exponential backoff
// starting at baseDelay. Failed attempts are logged as warnings.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		return fn()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			if log != nil {
				log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt, maxRetries, operation, err, next)
			}
		}),
	)
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs and counts errors at log-and-continue sites
type ErrorHandler struct {
	Logger     *logger.Logger
	errorCount atomic.Int64
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int64 {
	return e.errorCount.Load()
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.errorCount.Store(0)
}

// -----------------------------------------------------------------------------

// Handle logs err with its context; nil is ignored
func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.errorCount.Add(1)
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
