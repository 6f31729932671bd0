// Package provider defines the failure kinds shared by DNS provider clients.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrAPIResponseFailure is matched by every error that carries a provider status code.
	ErrAPIResponseFailure = errors.New("API response indicates failure")

	// ErrTransport indicates a network failure or a non-2xx HTTP status.
	ErrTransport = errors.New("provider transport failure")

	// ErrProtocol indicates a response body that does not match the expected schema.
	ErrProtocol = errors.New("provider protocol failure")

	// ErrTimeout indicates that the request did not complete within its deadline.
	ErrTimeout = errors.New("provider request timed out")

	// ErrCanceled indicates that the caller canceled the request.
	ErrCanceled = errors.New("provider request canceled")
)

// StatusError is returned when the provider answers with a status code
// other than its success and empty-result codes.
//
// StatusError matches [ErrAPIResponseFailure] and [ErrProtocol] with [errors.Is].
type StatusError struct {
	Code    string
	Message string
}

// Error implements [error].
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: code %s: %s", ErrAPIResponseFailure, e.Code, e.Message)
}

// Is reports whether target is one of the kinds a status error belongs to.
func (e *StatusError) Is(target error) bool {
	return target == ErrAPIResponseFailure || target == ErrProtocol
}

// ClassifyRequestError wraps an error returned by [net/http.Client.Do]
// with the matching failure kind.
func ClassifyRequestError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	// The transport may report a plain error after the context is done.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrTransport, err)
}
