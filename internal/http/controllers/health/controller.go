// Package health expone el endpoint de salud del servicio.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/mockforge/mockforge/internal/http/helpers"
)

// Check verifica una dependencia. nil = sana.
type Check func(ctx context.Context) error

// Controller maneja GET /healthz.
type Controller struct {
	checks map[string]Check
}

// NewController crea el controller con los checks de dependencias.
func NewController(checks map[string]Check) *Controller {
	return &Controller{checks: checks}
}

// Health responde 200 con el detalle por dependencia, o 503 si alguna falla.
func (c *Controller) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(c.checks))
	for name, check := range c.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["deps"] = deps
	}
	helpers.WriteJSON(w, status, body)
}
