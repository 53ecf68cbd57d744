// Package retry wraps fallible provider calls with exponential backoff.
//
// Only failures classified as transient are retried: network-level errors
// (timeouts, refused or reset connections) and HTTP statuses in the
// configured retryable set. Everything else, auth failures in
// particular, propagates immediately.
package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/reeve-agent/reeve/internal/llm"
)

// DefaultRetryableStatus is the HTTP status set retried by default.
var DefaultRetryableStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Policy configures the retry behavior.
type Policy struct {
	// MaxRetries is how many times a failed call is retried after the
	// initial attempt.
	MaxRetries int
	// Base is the initial backoff delay; each retry doubles it
	// (base, 2*base, 4*base, ...).
	Base time.Duration
	// RetryableStatus overrides DefaultRetryableStatus when non-nil.
	RetryableStatus map[int]bool
}

// DefaultPolicy returns the standard provider retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Base:       500 * time.Millisecond,
	}
}

func (p Policy) retryable(status int) bool {
	if p.RetryableStatus != nil {
		return p.RetryableStatus[status]
	}
	return DefaultRetryableStatus[status]
}

// Do runs fn, retrying transient failures per the policy. The last error
// is returned once retries are exhausted; non-retryable errors return
// immediately without delay.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultPolicy().MaxRetries
	}
	if p.Base <= 0 {
		p.Base = DefaultPolicy().Base
	}

	backoff := retry.WithMaxRetries(uint64(p.MaxRetries), retry.NewExponential(p.Base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isRetryable reports whether err is worth another attempt.
func (p Policy) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return p.retryable(apiErr.Status)
	}

	return isNetworkError(err)
}

// isNetworkError returns true for transient connection-level failures
// that are likely to succeed on retry.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET,
			syscall.ECONNREFUSED,
			syscall.EHOSTUNREACH,
			syscall.ENETUNREACH:
			return true
		}
	}

	return false
}

// Class buckets a terminal provider failure for user-facing messaging.
type Class int

const (
	ClassOther Class = iota
	ClassRateLimited
	ClassServerDown
	ClassAuth
	ClassNetwork
)

// Classify maps a provider error to its failure class. Used by the agent
// loop to synthesize a short, specific user-facing message after retries
// and fallback are exhausted.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 429:
			return ClassRateLimited
		case apiErr.Status == 401 || apiErr.Status == 403:
			return ClassAuth
		case apiErr.Status >= 500:
			return ClassServerDown
		default:
			return ClassOther
		}
	}

	if isNetworkError(err) {
		return ClassNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetwork
	}

	return ClassOther
}
