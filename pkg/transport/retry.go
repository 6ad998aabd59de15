package transport

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"time"

	rcerrors "github.com/tombee/restclient/pkg/errors"
)

// RetryConfig configures the optional retry hook. A nil *RetryConfig means
// every request is attempted exactly once.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first (default: 3)
	MaxAttempts int

	// InitialBackoff is the initial backoff duration (default: 1s)
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration (default: 30s)
	MaxBackoff time.Duration

	// BackoffFactor is the exponential backoff multiplier (default: 2.0)
	BackoffFactor float64

	// RetryableStatuses is the list of HTTP status codes that should be retried
	// Default: [408, 429, 500, 502, 503, 504]
	RetryableStatuses []int

	// AllowNonIdempotent enables retries for POST and PATCH.
	// Default: false (only GET, HEAD, OPTIONS, PUT and DELETE are retried).
	AllowNonIdempotent bool
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

// Validate checks if the retry configuration is valid.
func (c *RetryConfig) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return &rcerrors.ValidationError{
			Field:   "retry.max_attempts",
			Message: "max_attempts must be at least 1, got " + strconv.Itoa(c.MaxAttempts),
		}
	case c.InitialBackoff < 0:
		return &rcerrors.ValidationError{
			Field:   "retry.initial_backoff",
			Message: "initial_backoff must be non-negative, got " + c.InitialBackoff.String(),
		}
	case c.MaxBackoff < c.InitialBackoff:
		return &rcerrors.ValidationError{
			Field:   "retry.max_backoff",
			Message: "max_backoff (" + c.MaxBackoff.String() + ") must be >= initial_backoff (" + c.InitialBackoff.String() + ")",
		}
	case c.BackoffFactor < 1.0:
		return &rcerrors.ValidationError{
			Field:   "retry.backoff_factor",
			Message: "backoff_factor must be >= 1.0, got " + strconv.FormatFloat(c.BackoffFactor, 'f', -1, 64),
		}
	}
	return nil
}

// IsRetryable returns true if the given status code should be retried.
func (c *RetryConfig) IsRetryable(statusCode int) bool {
	return slices.Contains(c.RetryableStatuses, statusCode)
}

// AllowsMethod reports whether requests with method may be retried.
func (c *RetryConfig) AllowsMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch:
		return c.AllowNonIdempotent
	default:
		return true
	}
}

// ExecuteFunc executes a single request attempt.
type ExecuteFunc func(ctx context.Context) (*Result, error)

// Execute runs fn, retrying according to config.
//
// With a nil config fn runs once. Otherwise:
//   - Retryable TransportErrors (connection, timeout) are retried
//   - Results with a status in RetryableStatuses are retried
//   - Retry-After on 429 and 503 results is honored, capped at MaxBackoff
//   - Cancellation stops immediately
//
// When attempts run out the last Result (or error) is returned unchanged.
func Execute(ctx context.Context, config *RetryConfig, fn ExecuteFunc) (*Result, error) {
	if config == nil {
		res, err := fn(ctx)
		if res != nil {
			res.setMetadata(MetadataRetryCount, 0)
		}
		return res, err
	}

	for attempt := 1; ; attempt++ {
		res, err := fn(ctx)

		retry, retryAfter := shouldRetry(res, err, config)
		if !retry || attempt >= config.MaxAttempts {
			if res != nil {
				res.setMetadata(MetadataRetryCount, attempt-1)
			}
			return res, err
		}

		if ctx.Err() != nil {
			return nil, &TransportError{
				Type:    ErrorTypeCancelled,
				Message: "request cancelled before retry",
				Cause:   ctx.Err(),
			}
		}

		timer := time.NewTimer(calculateBackoff(config, attempt, retryAfter))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &TransportError{
				Type:    ErrorTypeCancelled,
				Message: "request cancelled during retry backoff",
				Cause:   ctx.Err(),
			}
		}
	}
}

func shouldRetry(res *Result, err error, config *RetryConfig) (bool, time.Duration) {
	if err != nil {
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			return false, 0
		}
		return transportErr.Retryable, 0
	}

	if res == nil || !config.IsRetryable(res.StatusCode) {
		return false, 0
	}

	var retryAfter time.Duration
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusServiceUnavailable {
		retryAfter = parseRetryAfter(res.Header("Retry-After"), time.Now())
	}
	return true, retryAfter
}

// calculateBackoff returns
// min(InitialBackoff * BackoffFactor^(attempt-1), MaxBackoff), raised to
// retryAfter (still capped at MaxBackoff), plus 0-100ms of jitter.
func calculateBackoff(config *RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	baseDelay := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt-1))
	if baseDelay > float64(config.MaxBackoff) {
		baseDelay = float64(config.MaxBackoff)
	}

	delay := time.Duration(baseDelay)
	if retryAfter > delay {
		delay = min(retryAfter, config.MaxBackoff)
	}

	jitter := time.Duration(rand.Int64N(101)) * time.Millisecond
	return delay + jitter
}

// parseRetryAfter accepts delta-seconds or an HTTP-date. Malformed or past
// values yield 0.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	retryTime, err := http.ParseTime(value)
	if err != nil {
		return 0
	}

	if delay := retryTime.Sub(now); delay > 0 {
		return delay
	}
	return 0
}
