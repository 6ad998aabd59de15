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

// Package config loads REST client configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/restclient/internal/log"
	rcerrors "github.com/tombee/restclient/pkg/errors"
	"github.com/tombee/restclient/pkg/transport"
)

// Adapter names accepted in the adapter field.
const (
	AdapterOAuth2 = "oauth2"
	AdapterStatic = "static"
)

// Config represents the complete REST client configuration.
type Config struct {
	// BaseURL is joined with every call path.
	// Environment: RESTCLIENT_BASE_URL
	BaseURL string `yaml:"base_url"`

	// Adapter selects how calls are authenticated (oauth2, static).
	// Environment: RESTCLIENT_ADAPTER
	// Default: static
	Adapter string `yaml:"adapter"`

	// Transport names the registered transport to build.
	// Default: http
	Transport string `yaml:"transport"`

	OAuth  OAuthConfig  `yaml:"oauth"`
	Static StaticConfig `yaml:"static"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
}

// OAuthConfig configures the oauth2 adapter. Secret fields may hold a
// ${VAR} reference that is resolved from the environment at load time.
type OAuthConfig struct {
	// Environment: RESTCLIENT_OAUTH_AUTH_URL
	AuthURL string `yaml:"auth_url"`
	// Environment: RESTCLIENT_OAUTH_CLIENT_ID
	ClientID string `yaml:"client_id"`
	// Environment: RESTCLIENT_OAUTH_CLIENT_SECRET
	ClientSecret string `yaml:"client_secret"`
	// Environment: RESTCLIENT_OAUTH_REDIRECT_URI
	RedirectURI string `yaml:"redirect_uri"`
	// RequestToken is the authorization code used for the first fetch.
	// Environment: RESTCLIENT_OAUTH_REQUEST_TOKEN
	RequestToken string `yaml:"request_token"`
	// Environment: RESTCLIENT_OAUTH_ACCESS_TOKEN
	AccessToken string `yaml:"access_token"`
	// Environment: RESTCLIENT_OAUTH_REFRESH_TOKEN
	RefreshToken string `yaml:"refresh_token"`
}

// StaticConfig configures the static adapter.
type StaticConfig struct {
	// Token is sent as the bearer on every call. Empty sends no Authorization header.
	// Environment: RESTCLIENT_STATIC_TOKEN
	Token string `yaml:"token"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Timeout bounds every call.
	// Environment: RESTCLIENT_HTTP_TIMEOUT
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent when a call does not set one.
	// Environment: RESTCLIENT_HTTP_USER_AGENT
	UserAgent string `yaml:"user_agent"`

	// TLSInsecure disables certificate validation. Development only.
	// Environment: RESTCLIENT_HTTP_TLS_INSECURE
	TLSInsecure bool `yaml:"tls_insecure"`

	// Headers are sent on every call unless the call overrides them.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Retry enables the retry hook. Omitted means one attempt per call.
	Retry *RetryConfig `yaml:"retry,omitempty"`

	// RateLimit installs a token-bucket limiter on the transport.
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RetryConfig mirrors transport.RetryConfig. Zero fields take transport defaults.
type RetryConfig struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	InitialBackoff     time.Duration `yaml:"initial_backoff"`
	MaxBackoff         time.Duration `yaml:"max_backoff"`
	BackoffFactor      float64       `yaml:"backoff_factor"`
	RetryableStatuses  []int         `yaml:"retryable_statuses,omitempty"`
	AllowNonIdempotent bool          `yaml:"allow_non_idempotent"`
}

// RateLimitConfig configures the transport rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Adapter:   AdapterStatic,
		Transport: "http",
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file and then environment variables.
// Environment variables take precedence over file-based configuration.
// If configPath is empty, only environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &rcerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()
	cfg.resolveReferences()

	if err := cfg.Validate(); err != nil {
		return nil, &rcerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadDefault loads the file at ConfigPath when it exists, otherwise only
// the environment.
func LoadDefault() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Load("")
	}
	if _, err := os.Stat(path); err != nil {
		return Load("")
	}
	return Load(path)
}

// applyDefaults fills in zero values so minimal files work.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Adapter == "" {
		c.Adapter = defaults.Adapter
	}
	if c.Transport == "" {
		c.Transport = defaults.Transport
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return rcerrors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rcerrors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return rcerrors.Wrapf(err, "failed to parse YAML in %s", path)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	setString := func(dst *string, key string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}

	setString(&c.BaseURL, "RESTCLIENT_BASE_URL")
	if val := os.Getenv("RESTCLIENT_ADAPTER"); val != "" {
		c.Adapter = strings.ToLower(val)
	}

	setString(&c.OAuth.AuthURL, "RESTCLIENT_OAUTH_AUTH_URL")
	setString(&c.OAuth.ClientID, "RESTCLIENT_OAUTH_CLIENT_ID")
	setString(&c.OAuth.ClientSecret, "RESTCLIENT_OAUTH_CLIENT_SECRET")
	setString(&c.OAuth.RedirectURI, "RESTCLIENT_OAUTH_REDIRECT_URI")
	setString(&c.OAuth.RequestToken, "RESTCLIENT_OAUTH_REQUEST_TOKEN")
	setString(&c.OAuth.AccessToken, "RESTCLIENT_OAUTH_ACCESS_TOKEN")
	setString(&c.OAuth.RefreshToken, "RESTCLIENT_OAUTH_REFRESH_TOKEN")
	setString(&c.Static.Token, "RESTCLIENT_STATIC_TOKEN")

	if val := os.Getenv("RESTCLIENT_HTTP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.HTTP.Timeout = d
		}
	}
	setString(&c.HTTP.UserAgent, "RESTCLIENT_HTTP_USER_AGENT")
	if val := os.Getenv("RESTCLIENT_HTTP_TLS_INSECURE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.HTTP.TLSInsecure = b
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
}

// resolveReferences replaces ${VAR} values in secret fields and header
// values with the named environment variable.
func (c *Config) resolveReferences() {
	for _, field := range []*string{
		&c.OAuth.ClientID,
		&c.OAuth.ClientSecret,
		&c.OAuth.RequestToken,
		&c.OAuth.AccessToken,
		&c.OAuth.RefreshToken,
		&c.Static.Token,
	} {
		*field = resolveReference(*field)
	}
	for name, value := range c.HTTP.Headers {
		c.HTTP.Headers[name] = resolveReference(value)
	}
}

func resolveReference(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	return os.Getenv(value[2 : len(value)-1])
}

// Validate checks that the configuration is valid. All failures are
// reported together as *errors.ValidationError values.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &rcerrors.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.BaseURL != "" {
		if err := validateHTTPURL(c.BaseURL); err != nil {
			fail("base_url", "%v", err)
		}
	}

	switch c.Adapter {
	case AdapterOAuth2:
		if c.OAuth.AuthURL == "" {
			fail("oauth.auth_url", "auth_url is required for the oauth2 adapter")
		} else if err := validateHTTPURL(c.OAuth.AuthURL); err != nil {
			fail("oauth.auth_url", "%v", err)
		}
		if c.OAuth.ClientID == "" {
			fail("oauth.client_id", "client_id is required for the oauth2 adapter")
		}
	case AdapterStatic:
	default:
		fail("adapter", "adapter must be one of [%s, %s], got %q", AdapterOAuth2, AdapterStatic, c.Adapter)
	}

	if c.Transport == "" {
		fail("transport", "transport must not be empty")
	}

	if c.HTTP.Timeout < 0 {
		fail("http.timeout", "timeout must be non-negative, got %v", c.HTTP.Timeout)
	}
	if retry := c.HTTP.RetryConfig(); retry != nil {
		if err := retry.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if rl := c.HTTP.RateLimit; rl != nil {
		if rl.RequestsPerSecond <= 0 {
			fail("http.rate_limit.requests_per_second", "requests_per_second must be positive, got %v", rl.RequestsPerSecond)
		}
		if rl.Burst < 0 {
			fail("http.rate_limit.burst", "burst must be non-negative, got %d", rl.Burst)
		}
	}

	if !log.ValidLevel(c.Log.Level) {
		fail("log.level", "log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level)
	}
	if c.Log.Format != string(log.FormatJSON) && c.Log.Format != string(log.FormatText) {
		fail("log.format", "log.format must be one of [json, text], got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return rcerrors.Wrap(err, "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

// RetryConfig converts the retry section to a transport.RetryConfig, or
// returns nil when retries are not configured.
func (h *HTTPConfig) RetryConfig() *transport.RetryConfig {
	if h.Retry == nil {
		return nil
	}
	cfg := transport.DefaultRetryConfig()
	if h.Retry.MaxAttempts != 0 {
		cfg.MaxAttempts = h.Retry.MaxAttempts
	}
	if h.Retry.InitialBackoff != 0 {
		cfg.InitialBackoff = h.Retry.InitialBackoff
	}
	if h.Retry.MaxBackoff != 0 {
		cfg.MaxBackoff = h.Retry.MaxBackoff
	}
	if h.Retry.BackoffFactor != 0 {
		cfg.BackoffFactor = h.Retry.BackoffFactor
	}
	if len(h.Retry.RetryableStatuses) > 0 {
		cfg.RetryableStatuses = h.Retry.RetryableStatuses
	}
	cfg.AllowNonIdempotent = h.Retry.AllowNonIdempotent
	return cfg
}

// LoggerConfig converts the log section to a log.Config writing to stderr.
func (l LogConfig) LoggerConfig() *log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = log.Format(l.Format)
	cfg.AddSource = l.AddSource
	return cfg
}
