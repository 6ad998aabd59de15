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

package errors

import (
	"fmt"
)

// ValidationError represents a configuration value that failed validation.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// ConfigError represents configuration problems, including a client that
// was used before an adapter was attached.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "adapter", "oauth.auth_url")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "configuration" }

// IsRetryable implements ErrorClassifier.
func (e *ConfigError) IsRetryable() bool { return false }

// OAuthReason identifies why token acquisition failed.
type OAuthReason string

const (
	// ReasonExpiredNoRefresh means the access token expired (or a refresh was
	// forced) and no refresh token is available.
	ReasonExpiredNoRefresh OAuthReason = "expired_no_refresh_token"

	// ReasonUnexpectedStatus means the token endpoint answered with a status other than 200.
	ReasonUnexpectedStatus OAuthReason = "unexpected_status"

	// ReasonNoAccessToken means no access token was available after fetch/refresh.
	ReasonNoAccessToken OAuthReason = "no_access_token"
)

// OAuthError represents a failure to obtain a usable bearer token.
// Transport-level failures are never reported as OAuthError.
type OAuthError struct {
	// Reason classifies the failure
	Reason OAuthReason

	// GrantType is the grant that was attempted, if any ("authorization_code", "refresh_token")
	GrantType string

	// StatusCode is the token endpoint status for ReasonUnexpectedStatus
	StatusCode int

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonExpiredNoRefresh:
		msg = "token expired but no refresh token found"
	case ReasonUnexpectedStatus:
		msg = fmt.Sprintf("unexpected status %d requesting access token", e.StatusCode)
	case ReasonNoAccessToken:
		msg = "no access token found"
	default:
		msg = string(e.Reason)
	}

	if e.GrantType != "" {
		msg = fmt.Sprintf("%s (grant_type=%s)", msg, e.GrantType)
	}
	return "oauth: " + msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *OAuthError) Unwrap() error {
	return e.Cause
}

// Is matches another *OAuthError with the same Reason, so callers can write
// errors.Is(err, &OAuthError{Reason: ReasonNoAccessToken}).
func (e *OAuthError) Is(target error) bool {
	t, ok := target.(*OAuthError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// ErrorType implements ErrorClassifier.
func (e *OAuthError) ErrorType() string { return "oauth" }

// IsRetryable implements ErrorClassifier. Token errors are never retried internally.
func (e *OAuthError) IsRetryable() bool { return false }

// IsUserVisible implements UserVisibleError.
func (e *OAuthError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *OAuthError) UserMessage() string {
	switch e.Reason {
	case ReasonExpiredNoRefresh:
		return "The access token has expired and cannot be refreshed."
	case ReasonUnexpectedStatus:
		return "The authorization server rejected the token request."
	default:
		return "No access token is available."
	}
}

// Suggestion implements UserVisibleError.
func (e *OAuthError) Suggestion() string {
	switch e.Reason {
	case ReasonExpiredNoRefresh:
		return "Provide a refresh token or run the authorization flow again."
	case ReasonUnexpectedStatus:
		return "Check the client credentials, authorization code and token endpoint URL."
	default:
		return "Provide an authorization code or an access token."
	}
}

// HandlerNotFoundError is returned when a response handler refers to a named
// operation that the client does not have.
type HandlerNotFoundError struct {
	// Name is the missing operation name
	Name string
}

// Error implements the error interface.
func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("response handler not found: %s", e.Name)
}

// ErrorType implements ErrorClassifier.
func (e *HandlerNotFoundError) ErrorType() string { return "not_found" }

// IsRetryable implements ErrorClassifier.
func (e *HandlerNotFoundError) IsRetryable() bool { return false }

// StatusError reports an HTTP error status surfaced by a response handler.
type StatusError struct {
	// Method is the HTTP method of the call
	Method string

	// Path is the request path relative to the base URL
	Path string

	// StatusCode is the response status
	StatusCode int

	// Body is a truncated copy of the response body
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

// ErrorType implements ErrorClassifier.
func (e *StatusError) ErrorType() string { return "status" }

// IsRetryable implements ErrorClassifier.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
