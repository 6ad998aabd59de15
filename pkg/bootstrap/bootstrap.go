// Package bootstrap assembles a restclient.Client from a config.Config.
package bootstrap

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/restclient/internal/log"
	"github.com/tombee/restclient/pkg/config"
	rcerrors "github.com/tombee/restclient/pkg/errors"
	"github.com/tombee/restclient/pkg/restclient"
	"github.com/tombee/restclient/pkg/restclient/oauth"
	"github.com/tombee/restclient/pkg/transport"
)

// AdapterFactory builds the adapter named by config.Config.Adapter.
type AdapterFactory func(cfg *config.Config, t transport.Transport, logger *slog.Logger) (restclient.Adapter, error)

type options struct {
	logger         *slog.Logger
	registry       *transport.Registry
	transport      transport.Transport
	tracerProvider trace.TracerProvider
	adapters       map[string]AdapterFactory
	clock          oauth.Clock
}

// Option customizes New.
type Option func(*options)

// WithLogger overrides the logger built from the log section.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTransportRegistry replaces transport.DefaultRegistry().
func WithTransportRegistry(r *transport.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTransport uses t as-is instead of creating one from the registry.
// The http section is ignored except for rate_limit.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithTracerProvider sets the provider for HTTP client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithAdapterFactory registers or replaces the factory for an adapter name.
func WithAdapterFactory(name string, f AdapterFactory) Option {
	return func(o *options) { o.adapters[name] = f }
}

// WithClock sets the clock used by the oauth2 adapter.
func WithClock(c oauth.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New builds the logger, transport, rate limiter, adapter and client
// described by cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*restclient.Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	o := &options{
		adapters: map[string]AdapterFactory{
			config.AdapterStatic: newStaticAdapter,
		},
	}
	o.adapters[config.AdapterOAuth2] = func(cfg *config.Config, t transport.Transport, logger *slog.Logger) (restclient.Adapter, error) {
		return newOAuthAdapter(cfg, t, logger, o.clock)
	}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.New(cfg.Log.LoggerConfig())
	}

	t := o.transport
	if t == nil {
		registry := o.registry
		if registry == nil {
			registry = transport.DefaultRegistry()
		}
		var err error
		t, err = registry.Create(cfg.Transport, &transport.HTTPTransportConfig{
			Timeout:        cfg.HTTP.Timeout,
			UserAgent:      cfg.HTTP.UserAgent,
			Headers:        cfg.HTTP.Headers,
			TLSInsecure:    cfg.HTTP.TLSInsecure,
			Retry:          cfg.HTTP.RetryConfig(),
			Logger:         log.WithComponent(logger, "http"),
			TracerProvider: o.tracerProvider,
		})
		if err != nil {
			return nil, &rcerrors.ConfigError{
				Key:    "transport",
				Reason: fmt.Sprintf("failed to create transport %q", cfg.Transport),
				Cause:  err,
			}
		}
	}

	if rl := cfg.HTTP.RateLimit; rl != nil {
		t.SetRateLimiter(transport.NewRateLimiter(rl.RequestsPerSecond, rl.Burst))
	}

	factory, ok := o.adapters[cfg.Adapter]
	if !ok {
		return nil, &rcerrors.ConfigError{
			Key:    "adapter",
			Reason: fmt.Sprintf("unknown adapter %q (available: %s)", cfg.Adapter, strings.Join(slices.Sorted(maps.Keys(o.adapters)), ", ")),
		}
	}
	adapter, err := factory(cfg, t, logger)
	if err != nil {
		return nil, &rcerrors.ConfigError{
			Key:    "adapter",
			Reason: fmt.Sprintf("failed to create %s adapter", cfg.Adapter),
			Cause:  err,
		}
	}

	logger.Debug("rest client configured",
		log.AdapterKey, cfg.Adapter,
		"transport", t.Name(),
		log.URLKey, cfg.BaseURL,
	)

	clientOpts := []restclient.Option{
		restclient.WithAdapter(adapter),
		restclient.WithLogger(logger),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, restclient.WithBaseURL(cfg.BaseURL))
	}
	return restclient.New(clientOpts...), nil
}

func newStaticAdapter(cfg *config.Config, t transport.Transport, _ *slog.Logger) (restclient.Adapter, error) {
	return restclient.NewStaticAdapter(t, cfg.Static.Token), nil
}

func newOAuthAdapter(cfg *config.Config, t transport.Transport, logger *slog.Logger, clock oauth.Clock) (restclient.Adapter, error) {
	if cfg.OAuth.AuthURL == "" {
		return nil, &rcerrors.ValidationError{Field: "oauth.auth_url", Message: "auth_url is required"}
	}
	return oauth.New(t,
		oauth.WithAuthURL(cfg.OAuth.AuthURL),
		oauth.WithClientCredentials(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret),
		oauth.WithRedirectURI(cfg.OAuth.RedirectURI),
		oauth.WithRequestToken(cfg.OAuth.RequestToken),
		oauth.WithAccessToken(cfg.OAuth.AccessToken),
		oauth.WithRefreshToken(cfg.OAuth.RefreshToken),
		oauth.WithClock(clock),
		oauth.WithLogger(logger),
	), nil
}
