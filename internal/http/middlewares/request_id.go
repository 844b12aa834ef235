package middlewares

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mockforge/mockforge/internal/observability/logger"
)

const requestIDHeader = "X-Request-ID"

// WithRequestID asigna un request ID (o respeta el entrante), lo expone en
// el header de respuesta y cuelga un logger con el campo requestId en el
// contexto para el resto de la cadena.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(requestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, rid)

			ctx := setRequestID(r.Context(), rid)
			ctx = logger.ToContext(ctx, logger.L().With(logger.RequestID(rid)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
