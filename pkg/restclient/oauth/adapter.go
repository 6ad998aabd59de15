// Package oauth provides a restclient.Adapter that authenticates calls with
// an OAuth2 bearer token obtained through the authorization-code grant and
// renewed with the refresh-token grant.
//
// The adapter fetches an access token with its authorization code on first
// use, reuses it until the expiry elapses, and then refreshes it. Token
// endpoint responses are merged into the current state field by field, so a
// response without refresh_token or expire_time keeps the previous values.
package oauth

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/tombee/restclient/internal/log"
	rcerrors "github.com/tombee/restclient/pkg/errors"
	"github.com/tombee/restclient/pkg/restclient"
	"github.com/tombee/restclient/pkg/transport"
)

// Grant types sent to the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// Token response fields.
const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldExpireTime   = "expire_time"
)

// Adapter implements restclient.Adapter with OAuth2 bearer tokens.
// It is safe for concurrent use; concurrent fetches or refreshes are
// collapsed into a single token endpoint call.
type Adapter struct {
	transport    transport.Transport
	authURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	clock        Clock
	logger       *slog.Logger

	mu           sync.Mutex
	requestToken string
	token        oauth2.Token

	group singleflight.Group
}

var (
	_ restclient.Adapter = (*Adapter)(nil)
	_ oauth2.TokenSource = (*Adapter)(nil)
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithAuthURL sets the token endpoint used for both fetch and refresh.
func WithAuthURL(u string) Option {
	return func(a *Adapter) { a.authURL = u }
}

// WithClientCredentials sets the client ID and secret.
func WithClientCredentials(id, secret string) Option {
	return func(a *Adapter) {
		a.clientID = id
		a.clientSecret = secret
	}
}

// WithRedirectURI sets the redirect URI sent with authorization-code exchanges.
func WithRedirectURI(u string) Option {
	return func(a *Adapter) { a.redirectURI = u }
}

// WithRequestToken sets the authorization code used for the first fetch.
func WithRequestToken(code string) Option {
	return func(a *Adapter) { a.requestToken = code }
}

// WithAccessToken seeds the access token.
func WithAccessToken(token string) Option {
	return func(a *Adapter) { a.token.AccessToken = token }
}

// WithRefreshToken seeds the refresh token.
func WithRefreshToken(token string) Option {
	return func(a *Adapter) { a.token.RefreshToken = token }
}

// WithExpiry seeds the absolute expiry of the access token.
func WithExpiry(t time.Time) Option {
	return func(a *Adapter) { a.token.Expiry = t }
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(a *Adapter) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Adapter that reaches the token endpoint and the API through t.
func New(t transport.Transport, opts ...Option) *Adapter {
	a := &Adapter{
		transport: t,
		clock:     SystemClock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = log.WithAdapter(log.WithComponent(a.logger, "oauth"), "oauth2")
	return a
}

// SetRequestToken replaces the authorization code.
func (a *Adapter) SetRequestToken(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requestToken = code
}

// SetAccessToken replaces the access token.
func (a *Adapter) SetAccessToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token.AccessToken = token
}

// SetRefreshToken replaces the refresh token.
func (a *Adapter) SetRefreshToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token.RefreshToken = token
}

// SetExpiry replaces the access token expiry. The zero time means no expiry.
func (a *Adapter) SetExpiry(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token.Expiry = t
}

// CurrentToken returns a copy of the stored token state without contacting
// the token endpoint.
func (a *Adapter) CurrentToken() *oauth2.Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok := a.token
	return &tok
}

// DoRequest obtains an access token, binds it to a transport call together
// with options and headers, and performs method against url.
func (a *Adapter) DoRequest(ctx context.Context, method, url string, params transport.Params, options transport.Options, headers map[string]string) (*transport.Result, error) {
	token, err := a.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return restclient.BindCall(a.transport, token, options, headers).Do(ctx, method, url, params)
}

// AccessToken returns a usable access token, fetching or refreshing it first
// when needed.
func (a *Adapter) AccessToken(ctx context.Context) (string, error) {
	return a.accessToken(ctx, false)
}

// Refresh forces a refresh-token grant and returns the new access token.
func (a *Adapter) Refresh(ctx context.Context) (string, error) {
	return a.accessToken(ctx, true)
}

// Token implements oauth2.TokenSource so the adapter can back oauth2.NewClient.
func (a *Adapter) Token() (*oauth2.Token, error) {
	if _, err := a.accessToken(context.Background(), false); err != nil {
		return nil, err
	}
	tok := a.CurrentToken()
	tok.TokenType = "Bearer"
	return tok, nil
}

func (a *Adapter) accessToken(ctx context.Context, forceExpired bool) (string, error) {
	a.mu.Lock()
	mustRefresh := forceExpired || a.expiredLocked()
	hasAccess := a.token.AccessToken != ""
	hasRefresh := a.token.RefreshToken != ""
	a.mu.Unlock()

	switch {
	case mustRefresh:
		if !hasRefresh {
			return "", &rcerrors.OAuthError{Reason: rcerrors.ReasonExpiredNoRefresh}
		}
		if err := a.flight(ctx, GrantRefreshToken, func(ctx context.Context) error {
			if !forceExpired && !a.expired() {
				return nil
			}
			return a.refresh(ctx)
		}); err != nil {
			return "", err
		}

	case !hasAccess:
		if err := a.flight(ctx, GrantAuthorizationCode, func(ctx context.Context) error {
			if a.CurrentToken().AccessToken != "" {
				return nil
			}
			return a.fetch(ctx)
		}); err != nil {
			return "", err
		}

	default:
		log.Trace(ctx, a.logger, "reusing access token")
	}

	a.mu.Lock()
	token := a.token.AccessToken
	a.mu.Unlock()

	if token == "" {
		return "", &rcerrors.OAuthError{Reason: rcerrors.ReasonNoAccessToken}
	}
	return token, nil
}

// flight runs fn once per key for all concurrent callers. The token request
// is detached from the caller's cancellation so one caller giving up does not
// fail the others; each caller still stops waiting when its own ctx is done.
func (a *Adapter) flight(ctx context.Context, key string, fn func(context.Context) error) error {
	detached := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (any, error) {
		return nil, fn(detached)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) expired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expiredLocked()
}

// expiredLocked reports whether an expiry is set and has been reached.
// Callers hold a.mu.
func (a *Adapter) expiredLocked() bool {
	return !a.token.Expiry.IsZero() && !a.clock.Now().Before(a.token.Expiry)
}

func (a *Adapter) fetch(ctx context.Context) error {
	a.mu.Lock()
	code := a.requestToken
	a.mu.Unlock()

	a.logger.DebugContext(ctx, "fetching access token", log.GrantTypeKey, GrantAuthorizationCode)

	res, err := a.postToken(ctx, a.codeParams(code), GrantAuthorizationCode)
	if err != nil {
		return err
	}
	return a.parseResult(ctx, res, GrantAuthorizationCode)
}

func (a *Adapter) refresh(ctx context.Context) error {
	a.mu.Lock()
	refreshToken := a.token.RefreshToken
	a.mu.Unlock()

	a.logger.DebugContext(ctx, "refreshing access token", log.GrantTypeKey, GrantRefreshToken)

	res, err := a.postToken(ctx, transport.Params{
		"client_id":     a.clientID,
		"client_secret": a.clientSecret,
		"grant_type":    GrantRefreshToken,
		"refresh_token": refreshToken,
	}, GrantRefreshToken)
	if err != nil {
		return err
	}
	return a.parseResult(ctx, res, GrantRefreshToken)
}

// ProcessRequestToken exchanges code at the token endpoint and returns the
// raw Result. Adapter state is not read for tokens nor modified.
func (a *Adapter) ProcessRequestToken(ctx context.Context, code string) (*transport.Result, error) {
	a.logger.DebugContext(ctx, "exchanging authorization code", log.GrantTypeKey, GrantAuthorizationCode)

	res, err := a.postToken(ctx, a.codeParams(code), GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == 200 {
		recordTokenRequest(GrantAuthorizationCode, outcomeSuccess)
	} else {
		recordTokenRequest(GrantAuthorizationCode, outcomeUnexpectedStatus)
	}
	return res, nil
}

func (a *Adapter) codeParams(code string) transport.Params {
	params := transport.Params{
		"client_id":     a.clientID,
		"client_secret": a.clientSecret,
		"grant_type":    GrantAuthorizationCode,
		"code":          code,
	}
	if a.redirectURI != "" {
		params["redirect_uri"] = a.redirectURI
	}
	return params
}

// postToken sends params to the token endpoint. Transport errors are returned unchanged.
func (a *Adapter) postToken(ctx context.Context, params transport.Params, grantType string) (*transport.Result, error) {
	res, err := transport.Post(ctx, a.transport, a.authURL, params)
	if err != nil {
		recordTokenRequest(grantType, outcomeTransportError)
		a.logger.DebugContext(ctx, "token request failed", log.GrantTypeKey, grantType, log.Error(err))
		return nil, err
	}
	return res, nil
}

// parseResult merges a token endpoint response into the adapter state.
// Only fields present in the response are updated.
func (a *Adapter) parseResult(ctx context.Context, res *transport.Result, grantType string) error {
	if res.StatusCode != 200 {
		recordTokenRequest(grantType, outcomeUnexpectedStatus)
		a.logger.DebugContext(ctx, "token endpoint rejected request",
			log.GrantTypeKey, grantType,
			log.StatusKey, res.StatusCode,
		)
		return &rcerrors.OAuthError{
			Reason:     rcerrors.ReasonUnexpectedStatus,
			GrantType:  grantType,
			StatusCode: res.StatusCode,
		}
	}

	data, err := res.Data()
	if err != nil {
		recordTokenRequest(grantType, outcomeInvalidResponse)
		return &rcerrors.OAuthError{
			Reason:     rcerrors.ReasonNoAccessToken,
			GrantType:  grantType,
			StatusCode: res.StatusCode,
			Cause:      err,
		}
	}
	fields, _ := data.(map[string]any)

	a.mu.Lock()
	if v, ok := fields[fieldAccessToken].(string); ok {
		a.token.AccessToken = v
	}
	if v, ok := fields[fieldRefreshToken].(string); ok {
		a.token.RefreshToken = v
	}
	if seconds, ok := parseSeconds(fields[fieldExpireTime]); ok {
		a.token.Expiry = a.clock.Now().Add(secondsToDuration(seconds))
	}
	token := a.token
	a.mu.Unlock()

	recordTokenRequest(grantType, outcomeSuccess)
	a.logger.DebugContext(ctx, "access token stored",
		log.GrantTypeKey, grantType,
		"access_token", log.SanitizeToken(token.AccessToken),
		"expiry", token.Expiry,
	)
	return nil
}

// maxExpireSeconds is the largest expire_time representable as a time.Duration.
const maxExpireSeconds = float64(math.MaxInt64 / int64(time.Second))

// parseSeconds accepts a finite JSON number or numeric string.
func parseSeconds(v any) (float64, bool) {
	var f float64
	switch s := v.(type) {
	case float64:
		f = s
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// secondsToDuration converts seconds, clamping to the Duration range.
func secondsToDuration(seconds float64) time.Duration {
	switch {
	case seconds >= maxExpireSeconds:
		return time.Duration(maxExpireSeconds) * time.Second
	case seconds <= -maxExpireSeconds:
		return -time.Duration(maxExpireSeconds) * time.Second
	}
	return time.Duration(seconds * float64(time.Second))
}
