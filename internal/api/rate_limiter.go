package api

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"stealthcompany.com/wardbook/pkg/apperrors"
)

// RateLimiter sheds load once the process-wide token bucket is empty
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns nil when rps is not positive, which disables limiting
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			log.Warn().Str("path", r.URL.Path).Msg("Rate limit exceeded")
			writeJSON(w, r, http.StatusTooManyRequests, &apperrors.AppError{
				Reason:  "rate_limited",
				Message: "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
