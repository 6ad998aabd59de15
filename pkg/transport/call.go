package transport

import (
	"context"
	"maps"
	"net/http"
)

// Call binds a bearer token, options and headers to a Transport.
// A Call is not safe for concurrent mutation; build one per request.
type Call struct {
	transport Transport
	bearer    string
	options   Options
	headers   map[string]string
}

// WithBearer returns a Call that authenticates with token.
// An empty token sends no Authorization header.
func WithBearer(t Transport, token string) *Call {
	return &Call{
		transport: t,
		bearer:    token,
		options:   make(Options),
		headers:   make(map[string]string),
	}
}

// SetOption sets a per-call transport option.
func (c *Call) SetOption(name string, value any) *Call {
	c.options[name] = value
	return c
}

// SetHeader sets a request header.
func (c *Call) SetHeader(name, value string) *Call {
	c.headers[name] = value
	return c
}

// Get performs a GET request.
func (c *Call) Get(ctx context.Context, url string, params Params) (*Result, error) {
	return c.Do(ctx, http.MethodGet, url, params)
}

// Post performs a POST request.
func (c *Call) Post(ctx context.Context, url string, params Params) (*Result, error) {
	return c.Do(ctx, http.MethodPost, url, params)
}

// Put performs a PUT request.
func (c *Call) Put(ctx context.Context, url string, params Params) (*Result, error) {
	return c.Do(ctx, http.MethodPut, url, params)
}

// Patch performs a PATCH request.
func (c *Call) Patch(ctx context.Context, url string, params Params) (*Result, error) {
	return c.Do(ctx, http.MethodPatch, url, params)
}

// Delete performs a DELETE request.
func (c *Call) Delete(ctx context.Context, url string, params Params) (*Result, error) {
	return c.Do(ctx, http.MethodDelete, url, params)
}

// Do performs a request with an arbitrary method.
func (c *Call) Do(ctx context.Context, method, url string, params Params) (*Result, error) {
	return c.transport.Execute(ctx, &Request{
		Method:  method,
		URL:     url,
		Bearer:  c.bearer,
		Params:  params,
		Options: maps.Clone(c.options),
		Headers: maps.Clone(c.headers),
	})
}

// Post performs an unauthenticated, form-encoded POST. Token endpoints
// expect this shape (RFC 6749 section 4.1.3).
func Post(ctx context.Context, t Transport, url string, params Params) (*Result, error) {
	return WithBearer(t, "").
		SetOption(OptionEncoding, EncodingForm).
		SetHeader("Accept", "application/json").
		Post(ctx, url, params)
}
