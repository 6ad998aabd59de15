package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/restclient/internal/log"
	"github.com/tombee/restclient/internal/tracing"
)

// loggingTransport wraps an http.RoundTripper to add request logging,
// header injection, correlation IDs and a client span.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
	logger    *slog.Logger
	tp        trace.TracerProvider
}

func newLoggingTransport(base http.RoundTripper, cfg Config, logger *slog.Logger) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &loggingTransport{
		base:      base,
		userAgent: cfg.UserAgent,
		headers:   cfg.DefaultHeaders,
		logger:    logger,
		tp:        cfg.TracerProvider,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()
	logURL := sanitizeURL(req.URL)

	ctx, span := tracing.StartClientSpan(ctx, t.tp, req.Method, logURL)

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)

	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for name, value := range t.headers {
		if req.Header.Get(name) == "" {
			req.Header.Set(name, value)
		}
	}

	tracing.InjectIntoRequest(ctx, req)
	tracing.InjectHTTPHeaders(ctx, req)

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		tracing.EndClientSpan(span, 0, err)
		t.logger.WarnContext(ctx, "http request failed",
			log.MethodKey, req.Method,
			log.URLKey, logURL,
			log.DurationKey, duration,
			"error", err.Error(),
		)
		return nil, err
	}

	tracing.EndClientSpan(span, resp.StatusCode, nil)

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	t.logger.Log(ctx, level, "http request",
		log.MethodKey, req.Method,
		log.URLKey, logURL,
		log.StatusKey, resp.StatusCode,
		log.DurationKey, duration,
	)

	return resp, nil
}
