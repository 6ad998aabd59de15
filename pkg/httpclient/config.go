package httpclient

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	rcerrors "github.com/tombee/restclient/pkg/errors"
)

// DefaultUserAgent is sent when the caller does not configure one.
const DefaultUserAgent = "restclient/1.0"

// Config configures the HTTP client with timeout, TLS and observability settings.
type Config struct {
	// Timeout is the total request timeout.
	// Default: 30s. Must be > 0.
	Timeout time.Duration

	// UserAgent is the User-Agent header value.
	// Required. Must be non-empty.
	UserAgent string

	// InsecureSkipVerify disables TLS certificate verification.
	// Only meant for local development against self-signed token endpoints.
	InsecureSkipVerify bool

	// DefaultHeaders are added to every request that does not already set them.
	DefaultHeaders map[string]string

	// Logger receives request logs. Default: slog.Default().
	Logger *slog.Logger

	// TracerProvider creates request spans. Default: the global provider.
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: DefaultUserAgent,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return &rcerrors.ValidationError{
			Field:      "http.timeout",
			Message:    "timeout must be > 0, got " + c.Timeout.String(),
			Suggestion: "Set a positive duration such as 30s",
		}
	}

	if c.UserAgent == "" {
		return &rcerrors.ValidationError{
			Field:   "http.user_agent",
			Message: "user_agent is required and must be non-empty",
		}
	}

	for name := range c.DefaultHeaders {
		if name == "" {
			return &rcerrors.ValidationError{
				Field:   "http.headers",
				Message: "header names must be non-empty",
			}
		}
	}

	return nil
}
