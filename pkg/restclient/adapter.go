package restclient

import (
	"context"

	"github.com/tombee/restclient/pkg/transport"
)

// Adapter performs authenticated calls on behalf of a Client.
//
// DoRequest must apply every option and header to the underlying transport
// call, perform method against url with params, and return the transport
// Result unmodified. Transport failures are returned as-is.
type Adapter interface {
	DoRequest(ctx context.Context, method, url string, params transport.Params, options transport.Options, headers map[string]string) (*transport.Result, error)
}

// AdapterFunc adapts an ordinary function to the Adapter interface.
type AdapterFunc func(ctx context.Context, method, url string, params transport.Params, options transport.Options, headers map[string]string) (*transport.Result, error)

// DoRequest calls f.
func (f AdapterFunc) DoRequest(ctx context.Context, method, url string, params transport.Params, options transport.Options, headers map[string]string) (*transport.Result, error) {
	return f(ctx, method, url, params, options, headers)
}

// StaticAdapter authenticates every call with a fixed bearer token.
// An empty token sends requests without an Authorization header.
type StaticAdapter struct {
	transport transport.Transport
	token     string
}

// NewStaticAdapter creates an adapter that always uses token.
func NewStaticAdapter(t transport.Transport, token string) *StaticAdapter {
	return &StaticAdapter{transport: t, token: token}
}

// DoRequest implements Adapter.
func (a *StaticAdapter) DoRequest(ctx context.Context, method, url string, params transport.Params, options transport.Options, headers map[string]string) (*transport.Result, error) {
	return BindCall(a.transport, a.token, options, headers).Do(ctx, method, url, params)
}

// BindCall returns a transport.Call for token with every option and then
// every header applied.
func BindCall(t transport.Transport, token string, options transport.Options, headers map[string]string) *transport.Call {
	call := transport.WithBearer(t, token)
	for name, value := range options {
		call.SetOption(name, value)
	}
	for name, value := range headers {
		call.SetHeader(name, value)
	}
	return call
}
