package httpclient

import (
	"net/url"
	"strings"
)

// sensitiveParams contains query parameter name fragments that are redacted
// from logs and spans. Matched case-insensitively as substrings.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"password",
	"auth",
	"secret",
	"key",
	"credential",
}

// exactSensitiveParams are redacted only on an exact (case-insensitive) match.
// "code" carries OAuth2 authorization codes; substring matching would also
// catch names like "postcode".
var exactSensitiveParams = []string{
	"code",
	"state",
}

// SanitizeURL parses raw and returns it with sensitive query parameters and
// userinfo passwords redacted. Unparseable input is returned as "[INVALID URL]".
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[INVALID URL]"
	}
	return sanitizeURL(u)
}

func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	safe := *u
	if _, hasPassword := u.User.Password(); hasPassword {
		safe.User = url.UserPassword(u.User.Username(), "[REDACTED]")
	}

	if u.RawQuery == "" {
		return safe.String()
	}

	q := u.Query()
	for param := range q {
		if isSensitiveParam(param) {
			q.Set(param, "[REDACTED]")
		}
	}

	safe.RawQuery = q.Encode()
	return safe.String()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, exact := range exactSensitiveParams {
		if lower == exact {
			return true
		}
	}
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
