package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrMissingToken  = fmt.Errorf("missing access or refresh token")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")
	ErrUnauthorized  = fmt.Errorf("unauthorized")
	ErrAuthFailed    = fmt.Errorf("authentication failed")

	// Request errors
	ErrAborted         = fmt.Errorf("request aborted")
	ErrAPIRequest      = fmt.Errorf("API request failed")
	ErrTooManyIDs      = fmt.Errorf("too many ids for a single request")
	ErrCacheMiss       = fmt.Errorf("cache miss")
	ErrKeyNotFound     = fmt.Errorf("key not found")
	ErrDecrypt         = fmt.Errorf("failed to decrypt value")
	ErrWorkerPoolClose = fmt.Errorf("worker pool closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// HTTPError is returned for any non-2xx response other than a retried 401.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

// Unwrap lets callers match [ErrAPIRequest] and, for 401s, [ErrUnauthorized].
func (e *HTTPError) Unwrap() []error {
	if e.Status == http.StatusUnauthorized {
		return []error{ErrAPIRequest, ErrUnauthorized}
	}
	return []error{ErrAPIRequest}
}

// ValidationError reports a response body that did not match the expected shape.
//
// It carries the endpoint and the raw payload so the drift can be diagnosed.
type ValidationError struct {
	Endpoint string
	Payload  []byte
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("response from %s failed validation: %v", e.Endpoint, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// WorkerStage names the color extraction step that failed.
type WorkerStage string

const (
	StageFetch  WorkerStage = "fetch"
	StageDecode WorkerStage = "decode"
	StagePixels WorkerStage = "pixels"
)

// WorkerError is a failed color extraction.
type WorkerError struct {
	Stage WorkerStage
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("color worker %s failed: %v", e.Stage, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Aborted converts a context cancellation into [ErrAborted].
// Any other error is returned unchanged.
func Aborted(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || (ctx != nil && errors.Is(ctx.Err(), context.Canceled)) {
		return fmt.Errorf("%w: %w", ErrAborted, context.Canceled)
	}
	return err
}

// NeedsLogin reports whether err can only be resolved by authenticating again.
func NeedsLogin(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrRefreshFailed)
}
