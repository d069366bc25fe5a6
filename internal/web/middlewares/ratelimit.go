package middlewares

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/podvault/podvault/internal/store/constants"
)

// RateLimit applies a process-wide token bucket to the API. The UI
// polls aggressively during a batch; the bucket is sized so legitimate
// polling never trips it.
func RateLimit(next http.Handler) http.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(constants.HTTPRateLimit), constants.HTTPRateBurst)

	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}
