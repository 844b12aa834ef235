// Package middlewares contiene los middlewares HTTP del servicio.
package middlewares

import "net/http"

// Middleware es la firma estándar compatible con chi.Router.Use.
type Middleware func(http.Handler) http.Handler
