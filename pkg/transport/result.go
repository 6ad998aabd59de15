package transport

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Result is the outcome of a call that reached the server, whatever its status.
type Result struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Headers contains response headers
	Headers http.Header

	// Body is the raw response body
	Body []byte

	// Metadata contains transport-specific data (request ID, retry count)
	Metadata map[string]any

	decodeOnce sync.Once
	data       any
	decodeErr  error
}

// NewResult builds a Result from its parts. Used by transports and test doubles.
func NewResult(statusCode int, headers http.Header, body []byte) *Result {
	if headers == nil {
		headers = make(http.Header)
	}
	return &Result{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		Metadata:   make(map[string]any),
	}
}

// NewJSONResult builds a Result whose body is v encoded as JSON.
func NewJSONResult(statusCode int, v any) (*Result, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return NewResult(statusCode, h, body), nil
}

// Status returns the HTTP status code.
func (r *Result) Status() int {
	return r.StatusCode
}

// Data returns the body decoded as JSON. An empty body decodes to nil.
// The body is decoded once and the outcome cached.
func (r *Result) Data() (any, error) {
	r.decodeOnce.Do(func() {
		if len(r.Body) == 0 {
			return
		}
		if err := json.Unmarshal(r.Body, &r.data); err != nil {
			r.decodeErr = &TransportError{
				Type:    ErrorTypeDecode,
				Message: "response body is not valid JSON",
				Cause:   err,
			}
		}
	})
	return r.data, r.decodeErr
}

// Map returns the decoded body when it is a JSON object, nil otherwise.
func (r *Result) Map() map[string]any {
	data, err := r.Data()
	if err != nil {
		return nil
	}
	m, _ := data.(map[string]any)
	return m
}

// Header returns the first value of the named response header.
func (r *Result) Header(name string) string {
	return r.Headers.Get(name)
}

// IsSuccess reports whether the status is 2xx.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Result) setMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}
