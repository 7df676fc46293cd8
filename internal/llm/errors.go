package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// =============================================================================
// PROVIDER ERROR CLASSIFICATION
// =============================================================================

// TimeoutError indicates a provider call exceeded its deadline. The pipeline
// state it interrupted is preserved; callers decide whether to retry.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llm provider %s timed out: %v", e.Provider, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// UnavailableError indicates the provider could not be reached at all.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("llm provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is (or wraps) a provider timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsUnavailable reports whether err is (or wraps) a provider outage.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// classify maps transport-level failures onto the provider error types.
// Anything unrecognized passes through unchanged.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: provider, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Provider: provider, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "timed out"):
		return &TimeoutError{Provider: provider, Err: err}
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "status 502"),
		strings.Contains(msg, "status 503"):
		return &UnavailableError{Provider: provider, Err: err}
	}

	return err
}

// retryable reports whether a failed call is worth repeating. Rate limits and
// transient transport faults qualify; malformed requests do not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "status 502"),
		strings.Contains(msg, "status 503"):
		return true
	}
	return false
}
