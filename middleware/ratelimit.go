package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// LoginLimiter is one token bucket shared by the whole process, not
// partitioned per client: it bounds the total rate of login and registration
// attempts against brute force and registration abuse.
type LoginLimiter struct {
	limiter *rate.Limiter
}

// NewLoginLimiter allows perSecond requests with a matching burst.
func NewLoginLimiter(perSecond float64) *LoginLimiter {
	return &LoginLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond))}
}

// Allow reports whether one more attempt may proceed right now.
func (l *LoginLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Wrap returns 429 when the bucket is empty.
func (l *LoginLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			http.Error(w, "Rate limit exceeded. Try again later.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
