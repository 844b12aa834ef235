package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mockforge/mockforge/internal/http/errors"
	"github.com/mockforge/mockforge/internal/observability/logger"
	"github.com/mockforge/mockforge/internal/rate"
)

// WithRateLimit limita requests por usuario autenticado (fallback: IP).
// Un error del limiter deja pasar el request: proteger upstream no puede
// tirar el servicio propio.
func WithRateLimit(limiter rate.Limiter) Middleware {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetUserID(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			key += "|" + r.URL.Path

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				errors.WriteError(w, errors.ErrRateLimited)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
