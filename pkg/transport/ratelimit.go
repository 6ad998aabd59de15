package transport

import (
	"golang.org/x/time/rate"
)

// NewRateLimiter returns a token-bucket limiter allowing rps requests per
// second with the given burst. A burst below 1 is raised to 1.
func NewRateLimiter(rps float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
