package restclient

import (
	"context"
	"strconv"

	rcerrors "github.com/tombee/restclient/pkg/errors"
	"github.com/tombee/restclient/pkg/transport"
)

// Handler post-processes a Result. It is either a HandlerFunc, invoked
// directly, or a Named reference resolved against the client's operations
// at dispatch time.
type Handler interface {
	isHandler()
}

// HandlerFunc receives the Result together with the method, the path
// relative to the base URL and the params of the call that produced it.
type HandlerFunc func(ctx context.Context, res *transport.Result, method, path string, params transport.Params) (*transport.Result, error)

func (HandlerFunc) isHandler() {}

// Named refers to an operation registered on the client with RegisterOperation.
type Named string

func (Named) isHandler() {}

// HandlerKey selects a handler: an HTTP status code or DefaultKey.
type HandlerKey int

// DefaultKey is used when no handler is registered for a status code.
const DefaultKey HandlerKey = -1

// StatusKey returns the key for an HTTP status code.
func StatusKey(code int) HandlerKey {
	return HandlerKey(code)
}

// String returns "default" or the status code.
func (k HandlerKey) String() string {
	if k == DefaultKey {
		return "default"
	}
	return strconv.Itoa(int(k))
}

// Built-in operation names.
const (
	// OperationPassthrough returns the Result unchanged. It is the initial default handler.
	OperationPassthrough = "passthrough"

	// OperationRaiseForStatus turns statuses >= 400 into *errors.StatusError.
	OperationRaiseForStatus = "raiseForStatus"
)

// maxErrorBody bounds the response body copied into a StatusError.
const maxErrorBody = 512

// Passthrough returns res unchanged.
func Passthrough(_ context.Context, res *transport.Result, _, _ string, _ transport.Params) (*transport.Result, error) {
	return res, nil
}

// RaiseForStatus returns a *errors.StatusError for statuses >= 400 and res otherwise.
func RaiseForStatus(_ context.Context, res *transport.Result, method, path string, _ transport.Params) (*transport.Result, error) {
	if res.StatusCode < 400 {
		return res, nil
	}

	body := res.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return nil, &rcerrors.StatusError{
		Method:     method,
		Path:       path,
		StatusCode: res.StatusCode,
		Body:       string(body),
	}
}

func builtinOperations() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		OperationPassthrough:    Passthrough,
		OperationRaiseForStatus: RaiseForStatus,
	}
}
