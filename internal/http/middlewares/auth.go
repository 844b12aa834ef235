package middlewares

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mockforge/mockforge/internal/http/errors"
	"github.com/mockforge/mockforge/internal/http/helpers"
	"github.com/mockforge/mockforge/internal/observability/logger"
)

// WithAuth valida el bearer token de la app (HS256) y cuelga el user ID
// (claim sub) en el contexto. issuer es opcional: vacío no se valida.
func WithAuth(secret []byte, issuer string) Middleware {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := helpers.BearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("missing bearer token"))
				return
			}

			claims := jwt.MapClaims{}
			_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				return secret, nil
			})
			if err == nil && issuer != "" {
				if iss, _ := claims.GetIssuer(); iss != issuer {
					err = fmt.Errorf("issuer %q no esperado", iss)
				}
			}
			if err != nil {
				logger.From(r.Context()).Debug("bearer token rechazado", logger.Err(err))
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}

			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("token sin subject"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
		})
	}
}
