// Package types defines the failure taxonomy shared across the resilience engine
package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Predefined errors
var (
	// ErrCircuitOpen indicates a call was rejected because the circuit is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrServiceNotRegistered indicates no circuit breaker exists for the service
	ErrServiceNotRegistered = errors.New("service is not registered")

	// ErrServiceAlreadyRegistered indicates a circuit breaker already exists for the service
	ErrServiceAlreadyRegistered = errors.New("service is already registered")

	// ErrEngineClosed indicates the engine has been closed
	ErrEngineClosed = errors.New("engine is closed")
)

// FailureKind classifies an operation failure for retry decisions.
// The kind is assigned once at the network/API boundary and carried on the
// error; the engine never inspects error text.
type FailureKind int

const (
	// KindUnclassified is the zero value for errors without explicit classification
	KindUnclassified FailureKind = iota

	// KindTransientNetwork indicates a transport-level failure (connection reset, DNS)
	KindTransientNetwork

	// KindTimeout indicates the operation exceeded its own time budget
	KindTimeout

	// KindRateLimited indicates the remote service asked the caller to back off
	KindRateLimited

	// KindClientRequest indicates the request itself was rejected (4xx class)
	KindClientRequest

	// KindServerFault indicates a remote server failure (5xx class)
	KindServerFault

	// KindAborted indicates the caller canceled the operation
	KindAborted

	// KindCircuitOpen indicates the operation was never attempted
	KindCircuitOpen
)

// String returns the string representation of the kind
func (k FailureKind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient-network"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate-limited"
	case KindClientRequest:
		return "client-request"
	case KindServerFault:
		return "server-fault"
	case KindAborted:
		return "aborted"
	case KindCircuitOpen:
		return "circuit-open"
	default:
		return "unclassified"
	}
}

// ClassifiedError tags an underlying error with a FailureKind and, for
// HTTP-originated failures, the status code. Boundary code (HTTP clients,
// transport adapters) constructs these; the engine consumes them.
type ClassifiedError struct {
	// Kind is the failure classification
	Kind FailureKind

	// StatusCode is the HTTP status, if the failure carries one (0 otherwise)
	StatusCode int

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (http %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Is checks if the underlying error matches target
func (e *ClassifiedError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewClassifiedError creates an error tagged with the given kind
func NewClassifiedError(kind FailureKind, err error) *ClassifiedError {
	return &ClassifiedError{
		Kind: kind,
		Err:  err,
	}
}

// NewHTTPError creates a classified error from an HTTP status code.
// 408 maps to Timeout, 429 to RateLimited, other 4xx to ClientRequest,
// and 5xx to ServerFault.
func NewHTTPError(statusCode int, err error) *ClassifiedError {
	kind := KindUnclassified
	switch {
	case statusCode == http.StatusRequestTimeout:
		kind = KindTimeout
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case statusCode >= 400 && statusCode < 500:
		kind = KindClientRequest
	case statusCode >= 500:
		kind = KindServerFault
	}

	return &ClassifiedError{
		Kind:       kind,
		StatusCode: statusCode,
		Err:        err,
	}
}

// KindOf extracts the failure kind from an error chain. Context cancellation
// and deadline errors are recognized even without explicit classification.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindUnclassified
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindAborted
	}

	return KindUnclassified
}

// StatusCode extracts the HTTP status from an error chain, if present
func StatusCode(err error) (int, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) && classified.StatusCode != 0 {
		return classified.StatusCode, true
	}
	return 0, false
}
