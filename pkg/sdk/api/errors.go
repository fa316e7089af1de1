package api

import (
	"context"
	"errors"
	"net"

	sdkhttp "github.com/betbot/copybot/pkg/sdk/http"
)

// TransientError marks a failure worth retrying: rate limits, 5xx
// responses, network errors, timeouts.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// DataError marks a malformed or inconsistent API response. Retrying
// will not help; the caller should skip and keep its previous state.
type DataError struct {
	Err error
}

func (e *DataError) Error() string {
	return e.Err.Error()
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// IsTransient classifies an error for retry decisions.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var de *DataError
	if errors.As(err, &de) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var se *sdkhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// classify wraps a request error so IsTransient can make a decision
// without inspecting transport details at the call site.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return &TransientError{Err: err}
	}
	var se *sdkhttp.StatusError
	if errors.As(err, &se) {
		return err // 4xx: not retryable, caller skips
	}
	return err
}
