// Package transport performs the HTTP exchanges behind the REST client.
//
// A Transport executes a Request and returns a Result. Non-2xx statuses are
// ordinary Results; only failures to obtain a response at all (connection,
// timeout, cancellation, invalid request) are reported as *TransportError.
//
// Callers usually go through a Call, which binds a bearer token, per-call
// options and headers to a Transport:
//
//	res, err := transport.WithBearer(t, token).
//		SetHeader("Accept", "application/json").
//		Get(ctx, "https://api.example.com/users/1", nil)
//
// Retries and rate limiting are opt-in hooks configured on the transport and
// are disabled by default.
package transport

import (
	"context"
)

// Params are request parameters. They are sent as the query string for
// GET, HEAD, DELETE and OPTIONS requests and as the body otherwise.
type Params map[string]any

// Options are per-call transport options keyed by name (see OptionTimeout,
// OptionEncoding).
type Options map[string]any

// Transport executes requests with protocol-specific handling.
type Transport interface {
	// Execute sends a request and returns its result.
	// The context controls cancellation and deadlines.
	// Returns *TransportError when no response could be obtained.
	Execute(ctx context.Context, req *Request) (*Result, error)

	// Name returns the transport identifier (e.g., "http").
	Name() string

	// SetRateLimiter configures rate limiting for this transport.
	// A nil limiter disables rate limiting.
	SetRateLimiter(limiter RateLimiter)
}

// Request represents a transport-agnostic request.
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS)
	Method string

	// URL is the full request URL
	URL string

	// Bearer is the access token sent as "Authorization: Bearer <token>".
	// Empty means no Authorization header is added.
	Bearer string

	// Params are encoded into the query string or body depending on Method
	Params Params

	// Options are per-call transport options
	Options Options

	// Headers are request headers. They override transport defaults.
	Headers map[string]string
}

// Option names understood by the HTTP transport.
const (
	// OptionTimeout bounds a single call, including retries.
	// Value: time.Duration or a string accepted by time.ParseDuration.
	OptionTimeout = "timeout"

	// OptionEncoding selects the body encoding for POST, PUT and PATCH.
	// Value: EncodingJSON (default) or EncodingForm.
	OptionEncoding = "encoding"
)

// Body encodings for OptionEncoding.
const (
	EncodingJSON = "json"
	EncodingForm = "form"
)

// Standard metadata keys set on results.
const (
	// MetadataRequestID is the X-Request-ID returned by the server
	MetadataRequestID = "request_id"

	// MetadataRetryCount is the number of retries performed for this request
	MetadataRetryCount = "retry_count"

	// MetadataDurationMS is the wall time of the call in milliseconds
	MetadataDurationMS = "duration_ms"
)

// RateLimiter provides rate limiting for transport requests.
// *golang.org/x/time/rate.Limiter satisfies this interface.
type RateLimiter interface {
	// Wait blocks until a request is allowed under the rate limit.
	// Returns an error if the context is cancelled before the request can proceed.
	Wait(ctx context.Context) error
}
