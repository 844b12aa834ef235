package middlewares

import (
	"net/http"
	"time"

	"github.com/mockforge/mockforge/internal/http/helpers"
	"github.com/mockforge/mockforge/internal/observability/logger"
)

// statusWriter captura el status code y bytes escritos para el access log.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// WithLogging emite una línea de access log por request.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			logger.From(r.Context()).Info("http request",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(sw.status),
				logger.DurationMs(time.Since(start).Milliseconds()),
				logger.Bytes(sw.bytes),
				logger.ClientIP(helpers.ClientIP(r)),
			)
		})
	}
}
