package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffFactor:     2.0,
		RetryableStatuses: []int{429, 500, 502, 503, 504},
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *RetryConfig
		wantErr bool
	}{
		{"valid default config", DefaultRetryConfig(), false},
		{
			name:    "max_attempts too low",
			config:  &RetryConfig{MaxAttempts: 0, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second, BackoffFactor: 2.0},
			wantErr: true,
		},
		{
			name:    "negative initial_backoff",
			config:  &RetryConfig{MaxAttempts: 3, InitialBackoff: -time.Second, MaxBackoff: 30 * time.Second, BackoffFactor: 2.0},
			wantErr: true,
		},
		{
			name:    "max_backoff less than initial_backoff",
			config:  &RetryConfig{MaxAttempts: 3, InitialBackoff: 30 * time.Second, MaxBackoff: time.Second, BackoffFactor: 2.0},
			wantErr: true,
		},
		{
			name:    "backoff_factor less than 1.0",
			config:  &RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second, BackoffFactor: 0.5},
			wantErr: true,
		},
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

func TestRetryConfig_AllowsMethod(t *testing.T) {
	cfg := DefaultRetryConfig()
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead} {
		if !cfg.AllowsMethod(m) {
			t.Errorf("expected %s to be retryable", m)
		}
	}
	for _, m := range []string{http.MethodPost, http.MethodPatch} {
		if cfg.AllowsMethod(m) {
			t.Errorf("expected %s not to be retryable by default", m)
		}
	}

	cfg.AllowNonIdempotent = true
	if !cfg.AllowsMethod(http.MethodPost) {
		t.Error("expected POST to be retryable with AllowNonIdempotent")
	}
}

func TestExecute_NilConfigSingleAttempt(t *testing.T) {
	attempts := 0
	res, err := Execute(context.Background(), nil, func(ctx context.Context) (*Result, error) {
		attempts++
		return NewResult(503, nil, nil), nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if res.StatusCode != 503 {
		t.Errorf("expected status 503, got %d", res.StatusCode)
	}
	if res.Metadata[MetadataRetryCount] != 0 {
		t.Errorf("expected retry_count 0, got %v", res.Metadata[MetadataRetryCount])
	}
}

func TestExecute_RetriesStatusThenSucceeds(t *testing.T) {
	attempts := 0
	res, err := Execute(context.Background(), fastRetry(), func(ctx context.Context) (*Result, error) {
		attempts++
		if attempts < 3 {
			return NewResult(502, nil, nil), nil
		}
		return NewResult(200, nil, nil), nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if res.StatusCode != 200 {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if res.Metadata[MetadataRetryCount] != 2 {
		t.Errorf("expected retry_count 2, got %v", res.Metadata[MetadataRetryCount])
	}
}

func TestExecute_ExhaustedReturnsLastResult(t *testing.T) {
	attempts := 0
	res, err := Execute(context.Background(), fastRetry(), func(ctx context.Context) (*Result, error) {
		attempts++
		return NewResult(500, nil, []byte("boom")), nil
	})

	if err != nil {
		t.Fatalf("exhausted status retries should not produce an error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if res.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", res.StatusCode)
	}
}

func TestExecute_NonRetryableStatus(t *testing.T) {
	attempts := 0
	_, _ = Execute(context.Background(), fastRetry(), func(ctx context.Context) (*Result, error) {
		attempts++
		return NewResult(404, nil, nil), nil
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt for 404, got %d", attempts)
	}
}

func TestExecute_RetryableTransportError(t *testing.T) {
	attempts := 0
	_, err := Execute(context.Background(), fastRetry(), func(ctx context.Context) (*Result, error) {
		attempts++
		return nil, &TransportError{Type: ErrorTypeConnection, Message: "reset", Retryable: true}
	})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.Type != ErrorTypeConnection {
		t.Fatalf("expected connection error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecute_NonTransportErrorNotRetried(t *testing.T) {
	attempts := 0
	want := errors.New("opaque")
	_, err := Execute(context.Background(), fastRetry(), func(ctx context.Context) (*Result, error) {
		attempts++
		return nil, want
	})

	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := fastRetry()
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := Execute(ctx, cfg, func(ctx context.Context) (*Result, error) {
		attempts++
		cancel()
		return NewResult(503, nil, nil), nil
	})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.Type != ErrorTypeCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2.0}

	tests := []struct {
		name       string
		attempt    int
		retryAfter time.Duration
		min        time.Duration
	}{
		{"first attempt", 1, 0, 100 * time.Millisecond},
		{"third attempt", 3, 0, 400 * time.Millisecond},
		{"capped", 10, 0, time.Second},
		{"retry-after wins", 1, 500 * time.Millisecond, 500 * time.Millisecond},
		{"retry-after capped", 1, time.Minute, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(cfg, tt.attempt, tt.retryAfter)
			if got < tt.min || got > tt.min+100*time.Millisecond {
				t.Errorf("calculateBackoff() = %v, want in [%v, %v]", got, tt.min, tt.min+100*time.Millisecond)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "120", 2 * time.Minute},
		{"negative seconds", "-5", 0},
		{"http date", now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"malformed", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
