package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	rcerrors "github.com/tombee/restclient/pkg/errors"
	"github.com/tombee/restclient/pkg/httpclient"
)

// defaultMaxResponseBytes caps how much of a response body is read into a Result.
const defaultMaxResponseBytes = 10 << 20

// HTTPTransport implements Transport over net/http using a client built by
// pkg/httpclient.
type HTTPTransport struct {
	config *HTTPTransportConfig
	client *http.Client

	mu          sync.RWMutex
	rateLimiter RateLimiter
}

// HTTPTransportConfig configures the HTTP transport.
type HTTPTransportConfig struct {
	// Timeout is the default per-call timeout (default: 30s)
	Timeout time.Duration

	// UserAgent is sent when the request does not set one
	UserAgent string

	// Headers are default headers applied to all requests
	Headers map[string]string

	// TLSInsecure disables TLS certificate validation (default: false)
	// WARNING: Only use for development/testing
	TLSInsecure bool

	// Retry enables the retry hook. Nil means a single attempt.
	Retry *RetryConfig

	// MaxResponseBytes is the largest body accepted (default: 10 MiB).
	// Larger responses fail with ErrorTypeResponseTooLarge.
	MaxResponseBytes int64

	// Logger receives request logs (default: slog.Default())
	Logger *slog.Logger

	// TracerProvider creates request spans (default: global provider)
	TracerProvider trace.TracerProvider
}

// TransportType returns "http".
func (c *HTTPTransportConfig) TransportType() string {
	return "http"
}

// Validate checks if the configuration is valid.
func (c *HTTPTransportConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Timeout)
	}

	if c.MaxResponseBytes < 0 {
		return fmt.Errorf("max response bytes must be non-negative, got %d", c.MaxResponseBytes)
	}

	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return rcerrors.Wrap(err, "invalid retry configuration")
		}
	}

	return nil
}

// NewHTTPTransport creates a new HTTP transport with the given configuration.
// A nil config uses defaults.
func NewHTTPTransport(config *HTTPTransportConfig) (*HTTPTransport, error) {
	if config == nil {
		config = &HTTPTransportConfig{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientCfg := httpclient.DefaultConfig()
	if config.Timeout > 0 {
		clientCfg.Timeout = config.Timeout
	}
	if config.UserAgent != "" {
		clientCfg.UserAgent = config.UserAgent
	}
	clientCfg.DefaultHeaders = config.Headers
	clientCfg.InsecureSkipVerify = config.TLSInsecure
	clientCfg.Logger = config.Logger
	clientCfg.TracerProvider = config.TracerProvider

	client, err := httpclient.New(clientCfg)
	if err != nil {
		return nil, err
	}

	return &HTTPTransport{
		config: config,
		client: client,
	}, nil
}

// Name returns "http".
func (t *HTTPTransport) Name() string {
	return "http"
}

// SetRateLimiter configures rate limiting for this transport.
func (t *HTTPTransport) SetRateLimiter(limiter RateLimiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rateLimiter = limiter
}

func (t *HTTPTransport) limiter() RateLimiter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rateLimiter
}

// callOptions is the parsed form of Request.Options.
type callOptions struct {
	timeout  time.Duration
	encoding string
}

// Execute sends an HTTP request and returns the result.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	opts, err := parseOptions(req.Options)
	if err != nil {
		return nil, err
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	retry := t.config.Retry
	if retry != nil && !retry.AllowsMethod(req.Method) {
		retry = nil
	}

	start := time.Now()
	res, err := Execute(ctx, retry, func(ctx context.Context) (*Result, error) {
		return t.executeOnce(ctx, req, opts)
	})
	if res != nil {
		res.setMetadata(MetadataDurationMS, time.Since(start).Milliseconds())
	}
	return res, err
}

// executeOnce executes a single HTTP request without retry logic.
func (t *HTTPTransport) executeOnce(ctx context.Context, req *Request, opts callOptions) (*Result, error) {
	if limiter := t.limiter(); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &TransportError{
				Type:    ErrorTypeCancelled,
				Message: "rate limit wait cancelled",
				Cause:   err,
			}
		}
	}

	httpReq, err := buildHTTPRequest(ctx, req, opts)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	defer httpResp.Body.Close()

	limit := t.maxResponseBytes()
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, limit+1))
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	if int64(len(body)) > limit {
		return nil, &TransportError{
			Type:    ErrorTypeResponseTooLarge,
			Message: fmt.Sprintf("response body exceeds %d bytes", limit),
			Cause:   fmt.Errorf("HTTP %d response larger than %d bytes", httpResp.StatusCode, limit),
		}
	}

	res := NewResult(httpResp.StatusCode, httpResp.Header, body)
	if requestID := httpResp.Header.Get("X-Request-ID"); requestID != "" {
		res.Metadata[MetadataRequestID] = requestID
	}
	return res, nil
}

func (t *HTTPTransport) maxResponseBytes() int64 {
	if t.config.MaxResponseBytes > 0 {
		return t.config.MaxResponseBytes
	}
	return defaultMaxResponseBytes
}

var validMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true, http.MethodDelete: true,
	http.MethodPatch: true, http.MethodHead: true, http.MethodOptions: true,
}

// validateRequest checks if the request is valid.
func validateRequest(req *Request) error {
	if req == nil {
		return invalidRequest("request is nil")
	}
	if req.Method == "" {
		return invalidRequest("method is required")
	}
	if !validMethods[req.Method] {
		return invalidRequest("invalid HTTP method: %q", req.Method)
	}
	if req.URL == "" {
		return invalidRequest("URL is required")
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return invalidRequest("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidRequest("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return invalidRequest("URL must include host")
	}

	return nil
}

func parseOptions(options Options) (callOptions, error) {
	opts := callOptions{encoding: EncodingJSON}

	for name, value := range options {
		switch name {
		case OptionTimeout:
			switch v := value.(type) {
			case time.Duration:
				opts.timeout = v
			case string:
				d, err := time.ParseDuration(v)
				if err != nil {
					return opts, invalidRequest("option %q: %v", name, err)
				}
				opts.timeout = d
			default:
				return opts, invalidRequest("option %q must be a duration, got %T", name, value)
			}
			if opts.timeout < 0 {
				return opts, invalidRequest("option %q must be non-negative", name)
			}

		case OptionEncoding:
			enc, ok := value.(string)
			if !ok || (enc != EncodingJSON && enc != EncodingForm) {
				return opts, invalidRequest("option %q must be %q or %q, got %v", name, EncodingJSON, EncodingForm, value)
			}
			opts.encoding = enc

		default:
			return opts, invalidRequest("unknown option %q", name)
		}
	}

	return opts, nil
}

// paramsInQuery reports whether params for method travel in the query string.
func paramsInQuery(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// buildHTTPRequest constructs an http.Request from a transport Request.
func buildHTTPRequest(ctx context.Context, req *Request, opts callOptions) (*http.Request, error) {
	target := req.URL
	var body io.Reader
	var contentType string

	if len(req.Params) > 0 {
		if paramsInQuery(req.Method) {
			u, _ := url.Parse(req.URL)
			q := u.Query()
			for k, vs := range formValues(req.Params) {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			u.RawQuery = q.Encode()
			target = u.String()
		} else if opts.encoding == EncodingForm {
			body = strings.NewReader(formValues(req.Params).Encode())
			contentType = "application/x-www-form-urlencoded"
		} else {
			encoded, err := json.Marshal(req.Params)
			if err != nil {
				return nil, invalidRequest("encode params: %v", err)
			}
			body = bytes.NewReader(encoded)
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, invalidRequest("build HTTP request: %v", err)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if req.Bearer != "" {
		(&oauth2.Token{AccessToken: req.Bearer, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	return httpReq, nil
}

// formValues flattens params into url.Values. Slices become repeated keys
// and nil values are skipped.
func formValues(params Params) url.Values {
	values := make(url.Values, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case nil:
		case string:
			values.Add(key, v)
		case []string:
			for _, s := range v {
				values.Add(key, s)
			}
		case []any:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}
	return values
}

// classifyHTTPError classifies client errors into TransportError types.
func classifyHTTPError(err error) *TransportError {
	if errors.Is(err, context.Canceled) {
		return &TransportError{
			Type:    ErrorTypeCancelled,
			Message: "request cancelled",
			Cause:   err,
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransportError{
			Type:      ErrorTypeTimeout,
			Message:   "request timeout",
			Retryable: true,
			Cause:     err,
		}
	}

	msg := "connection error"
	if u := urlFromError(err); u != "" {
		msg += ": " + httpclient.SanitizeURL(u)
	}
	return &TransportError{
		Type:      ErrorTypeConnection,
		Message:   msg,
		Retryable: true,
		Cause:     err,
	}
}

// urlFromError extracts the request URL from a *url.Error, if any.
func urlFromError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.URL
	}
	return ""
}
