package restclient

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tombee/restclient/internal/log"
	"github.com/tombee/restclient/internal/tracing"
	rcerrors "github.com/tombee/restclient/pkg/errors"
	"github.com/tombee/restclient/pkg/httpclient"
	"github.com/tombee/restclient/pkg/transport"
)

// ErrNoAdapter is returned by every call made before an Adapter is set.
var ErrNoAdapter = &rcerrors.ConfigError{Key: "adapter", Reason: "no adapter set"}

// Client issues REST calls against a base URL through an Adapter.
// It is safe for concurrent use.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	adapter    Adapter
	handlers   map[HandlerKey]Handler
	operations map[string]HandlerFunc
	logger     *slog.Logger
}

// Option configures a Client at construction.
type Option func(*Client)

// WithAdapter sets the adapter used for every call.
func WithAdapter(a Adapter) Option {
	return func(c *Client) { c.adapter = a }
}

// WithBaseURL sets the base URL (see SetBaseURL).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = normalizeBaseURL(baseURL) }
}

// WithResponseHandler registers h for key.
func WithResponseHandler(key HandlerKey, h Handler) Option {
	return func(c *Client) { c.handlers[key] = h }
}

// WithOperation registers a named operation.
func WithOperation(name string, fn HandlerFunc) Option {
	return func(c *Client) { c.operations[name] = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client. The default handler is Named(OperationPassthrough).
func New(opts ...Option) *Client {
	c := &Client{
		handlers:   map[HandlerKey]Handler{DefaultKey: Named(OperationPassthrough)},
		operations: builtinOperations(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.WithComponent(c.logger, "restclient")
	return c
}

// SetAdapter replaces the adapter. It may be called at any time.
func (c *Client) SetAdapter(a Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapter = a
}

// Adapter returns the current adapter, or nil.
func (c *Client) Adapter() Adapter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapter
}

// SetBaseURL sets the base URL, normalized to end in exactly one "/".
// An empty base URL stays empty.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = normalizeBaseURL(baseURL)
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// RegisterResponseHandler sets the handler for key, replacing any existing
// one. Registering DefaultKey replaces the default passthrough.
func (c *Client) RegisterResponseHandler(key HandlerKey, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[key] = h
}

// RegisterOperation adds or replaces a named operation that Named handlers
// can refer to.
func (c *Client) RegisterOperation(name string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations[name] = fn
}

// CallOption adds transport options or headers to a single call.
type CallOption func(*callConfig)

type callConfig struct {
	options transport.Options
	headers map[string]string
}

// WithOptions merges options into the call's transport options.
func WithOptions(options transport.Options) CallOption {
	return func(cc *callConfig) { maps.Copy(cc.options, options) }
}

// WithOption sets a single transport option.
func WithOption(name string, value any) CallOption {
	return func(cc *callConfig) { cc.options[name] = value }
}

// WithHeaders merges headers into the call's headers.
func WithHeaders(headers map[string]string) CallOption {
	return func(cc *callConfig) { maps.Copy(cc.headers, headers) }
}

// WithHeader sets a single header.
func WithHeader(name, value string) CallOption {
	return func(cc *callConfig) { cc.headers[name] = value }
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, params transport.Params, opts ...CallOption) (*transport.Result, error) {
	return c.makeCall(ctx, http.MethodGet, path, params, opts)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, params transport.Params, opts ...CallOption) (*transport.Result, error) {
	return c.makeCall(ctx, http.MethodPost, path, params, opts)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, params transport.Params, opts ...CallOption) (*transport.Result, error) {
	return c.update(ctx, http.MethodPut, path, params, opts)
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, params transport.Params, opts ...CallOption) (*transport.Result, error) {
	return c.update(ctx, http.MethodPatch, path, params, opts)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, params transport.Params, opts ...CallOption) (*transport.Result, error) {
	return c.makeCall(ctx, http.MethodDelete, path, params, opts)
}

func (c *Client) update(ctx context.Context, method, path string, params transport.Params, opts []CallOption) (*transport.Result, error) {
	return c.makeCall(ctx, method, path, params, opts)
}

func (c *Client) makeCall(ctx context.Context, method, path string, params transport.Params, opts []CallOption) (*transport.Result, error) {
	c.mu.RLock()
	adapter := c.adapter
	baseURL := c.baseURL
	c.mu.RUnlock()

	if adapter == nil {
		return nil, ErrNoAdapter
	}

	cc := callConfig{options: transport.Options{}, headers: map[string]string{}}
	for _, opt := range opts {
		opt(&cc)
	}

	path = strings.TrimPrefix(path, "/")
	url := baseURL + path

	ctx, corrID := tracing.EnsureContext(ctx)
	logger := log.WithCorrelationID(c.logger, corrID.String())

	start := time.Now()
	res, err := adapter.DoRequest(ctx, method, url, params, cc.options, cc.headers)
	if err != nil {
		var oauthErr *rcerrors.OAuthError
		if !errors.As(err, &oauthErr) {
			recordTransportError(method)
		}
		logger.DebugContext(ctx, "rest call failed",
			log.MethodKey, method,
			log.URLKey, httpclient.SanitizeURL(url),
			log.Error(err),
		)
		return nil, err
	}

	recordRequest(method, res.StatusCode)
	logger.DebugContext(ctx, "rest call",
		log.MethodKey, method,
		log.URLKey, httpclient.SanitizeURL(url),
		log.StatusKey, res.StatusCode,
		log.DurationKey, time.Since(start).Milliseconds(),
	)

	return c.runResponseHandler(ctx, res, method, path, params)
}

// runResponseHandler routes res to the handler for its status, or the
// default handler.
func (c *Client) runResponseHandler(ctx context.Context, res *transport.Result, method, path string, params transport.Params) (*transport.Result, error) {
	c.mu.RLock()
	h, ok := c.handlers[StatusKey(res.StatusCode)]
	if !ok {
		h = c.handlers[DefaultKey]
	}
	var fn HandlerFunc
	switch h := h.(type) {
	case HandlerFunc:
		fn = h
	case Named:
		fn = c.operations[string(h)]
		if fn == nil {
			c.mu.RUnlock()
			recordHandlerError("not_found")
			return nil, &rcerrors.HandlerNotFoundError{Name: string(h)}
		}
	}
	c.mu.RUnlock()

	if fn == nil {
		recordHandlerError("not_found")
		return nil, &rcerrors.HandlerNotFoundError{Name: StatusKey(res.StatusCode).String()}
	}

	out, err := fn(ctx, res, method, path, params)
	if err != nil {
		recordHandlerError("handler")
		return nil, err
	}
	return out, nil
}

func normalizeBaseURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/"
}
