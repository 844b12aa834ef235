// Package router arma el árbol de rutas de la API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	billingctrl "github.com/mockforge/mockforge/internal/http/controllers/billing"
	healthctrl "github.com/mockforge/mockforge/internal/http/controllers/health"
	integrationsctrl "github.com/mockforge/mockforge/internal/http/controllers/integrations"
	offlinectrl "github.com/mockforge/mockforge/internal/http/controllers/offline"
	mw "github.com/mockforge/mockforge/internal/http/middlewares"
)

// Deps contiene todo lo que el router necesita para registrar rutas.
type Deps struct {
	Integrations *integrationsctrl.Controller
	Offline      *offlinectrl.Controller
	Billing      *billingctrl.Controller
	Health       *healthctrl.Controller

	// Auth valida el bearer de la app. Se aplica a todo /api/v1 salvo el
	// callback OAuth (redirect del proveedor) y el webhook (firma propia).
	Auth mw.Middleware

	// RateLimit es opcional; nil desactiva el límite.
	RateLimit mw.Middleware

	CORSAllowedOrigins []string
}

// New construye el handler raíz con la cadena de middlewares estándar.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID())
	r.Use(mw.WithRecover())
	r.Use(mw.WithLogging())
	r.Use(mw.WithCORS(d.CORSAllowedOrigins))

	if d.Health != nil {
		r.Get("/healthz", d.Health.Health)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Endpoints sin bearer: el callback llega por redirect del navegador
		// y el webhook se autentica con la firma del proveedor.
		if d.Integrations != nil {
			r.Get("/oauth/callback", d.Integrations.Callback)
		}
		if d.Billing != nil {
			r.Post("/webhooks/stripe", d.Billing.Webhook)
		}

		r.Group(func(r chi.Router) {
			r.Use(d.Auth)
			if d.RateLimit != nil {
				r.Use(d.RateLimit)
			}

			if d.Integrations != nil {
				r.Get("/integrations", d.Integrations.List)
				r.Post("/integrations/{integrationID}/connect", d.Integrations.Connect)
				r.Post("/integrations/{integrationID}/sync", d.Integrations.Sync)
				r.Delete("/integrations/{integrationID}", d.Integrations.Disconnect)
			}

			if d.Offline != nil {
				r.Get("/offline/status", d.Offline.Status)
				r.Post("/changes", d.Offline.Change)
			}

			if d.Billing != nil {
				r.Post("/payments/initialize", d.Billing.Initialize)
				r.Post("/payments/verify", d.Billing.Verify)
				r.Get("/subscription", d.Billing.Subscription)
			}
		})
	})

	return r
}
