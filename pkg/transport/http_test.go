package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPTransport(t *testing.T, cfg *HTTPTransportConfig) *HTTPTransport {
	t.Helper()
	tr, err := NewHTTPTransport(cfg)
	require.NoError(t, err)
	return tr
}

func TestHTTPTransportConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *HTTPTransportConfig
		wantErr bool
	}{
		{"empty config", &HTTPTransportConfig{}, false},
		{"with timeout and retry", &HTTPTransportConfig{Timeout: 5 * time.Second, Retry: DefaultRetryConfig()}, false},
		{"negative timeout", &HTTPTransportConfig{Timeout: -time.Second}, true},
		{"invalid retry", &HTTPTransportConfig{Retry: &RetryConfig{MaxAttempts: 0}}, true},
		{"negative max response bytes", &HTTPTransportConfig{MaxResponseBytes: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPTransport_GetSendsParamsInQuery(t *testing.T) {
	var gotQuery url.Values
	var gotAuth, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-Request-ID", "req-42")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	res, err := WithBearer(tr, "tok-123").Get(context.Background(), server.URL+"/users?sort=asc", Params{
		"page": 2,
		"tags": []string{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "GET", gotMethod)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "asc", gotQuery.Get("sort"))
	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, []string{"a", "b"}, gotQuery["tags"])

	assert.Equal(t, 200, res.Status())
	assert.Equal(t, float64(1), res.Map()["id"])
	assert.Equal(t, "req-42", res.Metadata[MetadataRequestID])
}

func TestHTTPTransport_PostJSONBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	res, err := WithBearer(tr, "").Post(context.Background(), server.URL+"/users", Params{"name": "ada", "admin": true})
	require.NoError(t, err)

	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]any{"name": "ada", "admin": true}, gotBody)
}

func TestHTTPTransport_PostFormBody(t *testing.T) {
	var gotForm url.Values
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotForm = r.PostForm
		_, _ = w.Write([]byte(`{"access_token":"a1"}`))
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	res, err := Post(context.Background(), tr, server.URL+"/token", Params{
		"grant_type": "authorization_code",
		"code":       "xyz",
		"client_id":  "cid",
	})
	require.NoError(t, err)

	assert.Empty(t, gotAuth)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "xyz", gotForm.Get("code"))
	assert.Equal(t, "cid", gotForm.Get("client_id"))
	assert.Equal(t, "a1", res.Map()["access_token"])
}

func TestHTTPTransport_ErrorStatusIsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	res, err := WithBearer(tr, "").Delete(context.Background(), server.URL+"/users/9", nil)
	require.NoError(t, err)

	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, "not found", res.Map()["error"])
}

func TestHTTPTransport_ResponseSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/big" {
			_, _ = w.Write([]byte(`{"data":"0123456789"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":1}`))
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, &HTTPTransportConfig{MaxResponseBytes: 10})

	res, err := WithBearer(tr, "").Get(context.Background(), server.URL+"/small", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":1}`, string(res.Body))

	_, err = WithBearer(tr, "").Get(context.Background(), server.URL+"/big", nil)
	require.Error(t, err)
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.True(t, tErr.IsType(ErrorTypeResponseTooLarge))
	assert.False(t, tErr.IsRetryable())
	assert.Contains(t, tErr.Message, "10 bytes")
}

func TestHTTPTransport_HeadersOverrideDefaults(t *testing.T) {
	var gotAccept, gotUA, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, &HTTPTransportConfig{
		UserAgent: "billing-sync/1.0",
		Headers:   map[string]string{"Accept": "text/plain", "X-Custom": "default"},
	})
	_, err := WithBearer(tr, "").SetHeader("Accept", "application/json").Get(context.Background(), server.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "billing-sync/1.0", gotUA)
	assert.Equal(t, "default", gotCustom)
}

func TestHTTPTransport_InvalidRequests(t *testing.T) {
	tr := newTestHTTPTransport(t, nil)

	tests := []struct {
		name string
		req  *Request
	}{
		{"missing method", &Request{URL: "https://api.example.com"}},
		{"bad method", &Request{Method: "BREW", URL: "https://api.example.com"}},
		{"missing URL", &Request{Method: "GET"}},
		{"relative URL", &Request{Method: "GET", URL: "users/1"}},
		{"unknown option", &Request{Method: "GET", URL: "https://api.example.com", Options: Options{"verify": false}}},
		{"bad timeout type", &Request{Method: "GET", URL: "https://api.example.com", Options: Options{OptionTimeout: 5}}},
		{"bad timeout string", &Request{Method: "GET", URL: "https://api.example.com", Options: Options{OptionTimeout: "soon"}}},
		{"bad encoding", &Request{Method: "POST", URL: "https://api.example.com", Options: Options{OptionEncoding: "xml"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Execute(context.Background(), tt.req)
			var transportErr *TransportError
			require.True(t, errors.As(err, &transportErr), "expected TransportError, got %v", err)
			assert.Equal(t, ErrorTypeInvalidReq, transportErr.Type)
			assert.False(t, transportErr.IsRetryable())
		})
	}
}

func TestHTTPTransport_TimeoutOption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	_, err := WithBearer(tr, "").SetOption(OptionTimeout, 20*time.Millisecond).Get(context.Background(), server.URL, nil)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "expected TransportError, got %v", err)
	assert.Equal(t, ErrorTypeTimeout, transportErr.Type)
}

func TestHTTPTransport_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	tr := newTestHTTPTransport(t, nil)
	_, err := WithBearer(tr, "").Get(context.Background(), addr, nil)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "expected TransportError, got %v", err)
	assert.Equal(t, ErrorTypeConnection, transportErr.Type)
	assert.True(t, transportErr.IsRetryable())
}

func TestHTTPTransport_RetryHook(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, &HTTPTransportConfig{Retry: fastRetry()})

	res, err := WithBearer(tr, "").Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 2, res.Metadata[MetadataRetryCount])

	// POST is not retried unless AllowNonIdempotent is set.
	attempts.Store(0)
	res, err = WithBearer(tr, "").Post(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, 503, res.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestHTTPTransport_NoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	res, err := WithBearer(tr, "").Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, 503, res.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

type countingLimiter struct {
	calls atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return l.err
}

func TestHTTPTransport_RateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	limiter := &countingLimiter{}
	tr.SetRateLimiter(limiter)

	for i := 0; i < 3; i++ {
		_, err := WithBearer(tr, "").Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), limiter.calls.Load())

	limiter.err = context.Canceled
	_, err := WithBearer(tr, "").Get(context.Background(), server.URL, nil)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, ErrorTypeCancelled, transportErr.Type)
}

func TestHTTPTransport_XTimeRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{}")
	}))
	defer server.Close()

	tr := newTestHTTPTransport(t, nil)
	tr.SetRateLimiter(NewRateLimiter(1000, 5))

	res, err := WithBearer(tr, "").Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
}

func TestFormValues(t *testing.T) {
	values := formValues(Params{
		"s":     "x",
		"n":     3,
		"b":     true,
		"list":  []any{1, "two"},
		"skip":  nil,
		"multi": []string{"a", "b"},
	})

	assert.Equal(t, "x", values.Get("s"))
	assert.Equal(t, "3", values.Get("n"))
	assert.Equal(t, "true", values.Get("b"))
	assert.Equal(t, []string{"1", "two"}, values["list"])
	assert.Equal(t, []string{"a", "b"}, values["multi"])
	_, hasSkip := values["skip"]
	assert.False(t, hasSkip)
}
