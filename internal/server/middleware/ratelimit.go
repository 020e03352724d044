package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute. Uses a sliding window algorithm. The
// metadata endpoint is polled by every running frontend client, so the limit
// should stay generous.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}
