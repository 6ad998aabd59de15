// Package httpclient builds the *http.Client used by the REST transport.
//
// Clients created by New share a consistent set of behaviors:
//   - Request logging with sanitized URLs (tokens, secrets and authorization codes redacted)
//   - User-Agent and default header injection
//   - Correlation ID propagation via X-Correlation-ID
//   - An OpenTelemetry client span per request with W3C trace-context propagation
//   - TLS 1.2 minimum (TLS 1.3 preferred)
//   - Connection pooling
//
// # Usage
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "billing-sync/2.0"
//	cfg.Timeout = 10 * time.Second
//	client, err := httpclient.New(cfg)
//	if err != nil {
//	    return err
//	}
//
// Retries are not performed here. Callers that want them configure
// transport.RetryConfig on the REST transport.
//
// # Observability
//
// All requests emit structured logs through the configured *slog.Logger:
//   - Debug level: requests answered with status < 400
//   - Warn level: requests answered with status >= 400 and transport errors
//   - Fields: method, url (sanitized), status, duration_ms, error
//
// Authorization headers are never logged.
package httpclient
