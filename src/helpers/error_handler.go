package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketstore-client/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

// ErrorKind classifies failures by how the client reacts to them.
type ErrorKind string

const (
	KindTransport     ErrorKind = "transport"
	KindProtocol      ErrorKind = "protocol"
	KindHandler       ErrorKind = "handler"
	KindSerialization ErrorKind = "serialization"
	KindInvalidData   ErrorKind = "invalid data"
	KindConnection    ErrorKind = "connection"
	KindTimeout       ErrorKind = "timeout"
	KindRpc           ErrorKind = "rpc"
)

// Sentinels for errors.Is against a MarketStoreError kind.
var (
	ErrTransport     = errors.New(string(KindTransport))
	ErrProtocol      = errors.New(string(KindProtocol))
	ErrHandler       = errors.New(string(KindHandler))
	ErrSerialization = errors.New(string(KindSerialization))
	ErrInvalidData   = errors.New(string(KindInvalidData))
	ErrConnection    = errors.New(string(KindConnection))
	ErrTimeout       = errors.New(string(KindTimeout))
	ErrRpc           = errors.New(string(KindRpc))
)

var kindSentinels = map[ErrorKind]error{
	KindTransport:     ErrTransport,
	KindProtocol:      ErrProtocol,
	KindHandler:       ErrHandler,
	KindSerialization: ErrSerialization,
	KindInvalidData:   ErrInvalidData,
	KindConnection:    ErrConnection,
	KindTimeout:       ErrTimeout,
	KindRpc:           ErrRpc,
}

type MarketStoreError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *MarketStoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *MarketStoreError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrTransport) match on kind.
func (e *MarketStoreError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// -----------------------------------------------------------------------------

func NewError(kind ErrorKind, cause error, format string, args ...interface{}) *MarketStoreError {
	return &MarketStoreError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func TransportError(cause error, format string, args ...interface{}) *MarketStoreError {
	return NewError(KindTransport, cause, format, args...)
}

func ProtocolError(cause error, format string, args ...interface{}) *MarketStoreError {
	return NewError(KindProtocol, cause, format, args...)
}

func InvalidDataError(cause error, format string, args ...interface{}) *MarketStoreError {
	return NewError(KindInvalidData, cause, format, args...)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling baseDelay after each
// failure. It stops early when ctx is done and returns the last error.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts and logs recoverable errors of a long running component.
type ErrorHandler struct {
	Logger     *logger.Logger
	ErrorCount int
	MaxErrors  int
}

func NewErrorHandler(log *logger.Logger, maxErrors int) *ErrorHandler {
	return &ErrorHandler{
		Logger:     log,
		ErrorCount: 0,
		MaxErrors:  maxErrors,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// Handle logs err and reports whether the error budget is exhausted.
func (e *ErrorHandler) Handle(err error, where string) bool {
	if err == nil {
		if e.ErrorCount > 0 {
			e.ErrorCount--
		}
		return false
	}
	e.ErrorCount++
	e.Logger.Error("Error in %s (%d/%d): %v", where, e.ErrorCount, e.MaxErrors, err)
	return e.MaxErrors > 0 && e.ErrorCount >= e.MaxErrors
}
