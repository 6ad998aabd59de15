// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	rcerrors "github.com/tombee/restclient/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Adapter != AdapterStatic {
		t.Errorf("expected adapter %q, got %q", AdapterStatic, cfg.Adapter)
	}
	if cfg.Transport != "http" {
		t.Errorf("expected transport 'http', got %q", cfg.Transport)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format 'json', got %q", cfg.Log.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
base_url: https://api.example.com/v1
adapter: oauth2
oauth:
  auth_url: https://auth.example.com/token
  client_id: my-client
  client_secret: my-secret
  redirect_uri: https://app.example.com/callback
  request_token: code-123
http:
  timeout: 5s
  user_agent: test-agent/1.0
  headers:
    X-Tenant: acme
  retry:
    max_attempts: 5
    initial_backoff: 10ms
  rate_limit:
    requests_per_second: 20
    burst: 5
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "https://api.example.com/v1" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Adapter != AdapterOAuth2 {
		t.Errorf("Adapter = %q", cfg.Adapter)
	}
	if cfg.OAuth.ClientSecret != "my-secret" {
		t.Errorf("ClientSecret = %q", cfg.OAuth.ClientSecret)
	}
	if cfg.OAuth.RequestToken != "code-123" {
		t.Errorf("RequestToken = %q", cfg.OAuth.RequestToken)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.Headers["X-Tenant"] != "acme" {
		t.Errorf("Headers = %v", cfg.HTTP.Headers)
	}
	if cfg.HTTP.RateLimit == nil || cfg.HTTP.RateLimit.RequestsPerSecond != 20 || cfg.HTTP.RateLimit.Burst != 5 {
		t.Errorf("RateLimit = %+v", cfg.HTTP.RateLimit)
	}
	if cfg.Transport != "http" {
		t.Errorf("Transport = %q, want default", cfg.Transport)
	}

	retry := cfg.HTTP.RetryConfig()
	if retry == nil {
		t.Fatal("expected retry config")
	}
	if retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", retry.MaxAttempts)
	}
	if retry.InitialBackoff != 10*time.Millisecond {
		t.Errorf("InitialBackoff = %v", retry.InitialBackoff)
	}
	if retry.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want default", retry.MaxBackoff)
	}

	logCfg := cfg.Log.LoggerConfig()
	if logCfg.Level != "debug" || logCfg.Format != "text" {
		t.Errorf("LoggerConfig() = %+v", logCfg)
	}
}

func TestLoad_NoRetryMeansNil(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.RetryConfig() != nil {
		t.Error("expected nil retry config")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
base_url: https://file.example.com
adapter: static
static:
  token: file-token
log:
  level: info
`)

	t.Setenv("RESTCLIENT_BASE_URL", "https://env.example.com")
	t.Setenv("RESTCLIENT_STATIC_TOKEN", "env-token")
	t.Setenv("RESTCLIENT_HTTP_TIMEOUT", "45s")
	t.Setenv("RESTCLIENT_HTTP_TLS_INSECURE", "true")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_SOURCE", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Static.Token != "env-token" {
		t.Errorf("Static.Token = %q", cfg.Static.Token)
	}
	if cfg.HTTP.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.HTTP.Timeout)
	}
	if !cfg.HTTP.TLSInsecure {
		t.Error("expected TLSInsecure from env")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if !cfg.Log.AddSource {
		t.Error("expected AddSource from env")
	}
}

func TestLoad_ResolvesReferences(t *testing.T) {
	path := writeConfig(t, `
adapter: oauth2
oauth:
  auth_url: https://auth.example.com/token
  client_id: my-client
  client_secret: ${TEST_OAUTH_SECRET}
http:
  headers:
    X-Api-Key: ${TEST_API_KEY}
    X-Literal: plain$value
`)

	t.Setenv("TEST_OAUTH_SECRET", "resolved-secret")
	t.Setenv("TEST_API_KEY", "resolved-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OAuth.ClientSecret != "resolved-secret" {
		t.Errorf("ClientSecret = %q", cfg.OAuth.ClientSecret)
	}
	if cfg.HTTP.Headers["X-Api-Key"] != "resolved-key" {
		t.Errorf("X-Api-Key = %q", cfg.HTTP.Headers["X-Api-Key"])
	}
	if cfg.HTTP.Headers["X-Literal"] != "plain$value" {
		t.Errorf("X-Literal = %q", cfg.HTTP.Headers["X-Literal"])
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

		var cfgErr *rcerrors.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if cfgErr.Key != "config_file" {
			t.Errorf("Key = %q", cfgErr.Key)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected fs.ErrNotExist in chain, got %v", err)
		}
		if cause := cfgErr.Unwrap(); cause == nil || !strings.HasPrefix(cause.Error(), "failed to read config file: ") {
			t.Errorf("cause = %v", cause)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "base_url: [unterminated")
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "config_file") {
			t.Fatalf("expected config_file error, got %v", err)
		}
		var cfgErr *rcerrors.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if cause := cfgErr.Unwrap(); cause == nil || !strings.Contains(cause.Error(), "failed to parse YAML in "+path) {
			t.Errorf("cause = %v", cause)
		}
	})

	t.Run("validation wraps ValidationError", func(t *testing.T) {
		_, err := Load(writeConfig(t, "adapter: oauth2\n"))

		var cfgErr *rcerrors.ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Key != "validation" {
			t.Fatalf("expected validation ConfigError, got %v", err)
		}
		var valErr *rcerrors.ValidationError
		if !errors.As(err, &valErr) {
			t.Fatalf("expected ValidationError in chain, got %v", err)
		}
		if valErr.Field != "oauth.auth_url" {
			t.Errorf("Field = %q", valErr.Field)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errText string
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown adapter",
			modify:  func(c *Config) { c.Adapter = "basic" },
			wantErr: true,
			errText: "adapter must be one of",
		},
		{
			name:    "oauth2 without client id",
			modify:  func(c *Config) { c.Adapter = AdapterOAuth2; c.OAuth.AuthURL = "https://auth.example.com" },
			wantErr: true,
			errText: "client_id is required",
		},
		{
			name: "oauth2 with bad auth url",
			modify: func(c *Config) {
				c.Adapter = AdapterOAuth2
				c.OAuth.AuthURL = "ftp://auth.example.com"
				c.OAuth.ClientID = "id"
			},
			wantErr: true,
			errText: "scheme must be http or https",
		},
		{
			name:    "base url without host",
			modify:  func(c *Config) { c.BaseURL = "https://" },
			wantErr: true,
			errText: "must include a host",
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.HTTP.Timeout = -time.Second },
			wantErr: true,
			errText: "timeout must be non-negative",
		},
		{
			name:    "bad retry",
			modify:  func(c *Config) { c.HTTP.Retry = &RetryConfig{BackoffFactor: 0.5} },
			wantErr: true,
			errText: "backoff_factor",
		},
		{
			name:    "zero rate",
			modify:  func(c *Config) { c.HTTP.RateLimit = &RateLimitConfig{} },
			wantErr: true,
			errText: "requests_per_second must be positive",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
			errText: "log.level must be one of",
		},
		{
			name:    "trace log level",
			modify:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: false,
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
			errText: "log.format must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("expected error containing %q, got %q", tt.errText, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	cfg := Default()
	cfg.Adapter = "nope"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "adapter") || !strings.Contains(err.Error(), "log.format") {
		t.Errorf("expected both failures, got %q", err.Error())
	}
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error = %v", err)
	}
	want := filepath.Join(dir, "restclient", "config.yaml")
	if path != want {
		t.Errorf("ConfigPath() = %q, want %q", path, want)
	}
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() without file error = %v", err)
	}
	if cfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want empty", cfg.BaseURL)
	}

	if err := os.MkdirAll(filepath.Join(dir, "restclient"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "restclient", "config.yaml"), []byte("base_url: https://xdg.example.com\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err = LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if cfg.BaseURL != "https://xdg.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}
