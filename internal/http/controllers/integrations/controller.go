// Package integrations expone los endpoints HTTP de integraciones.
package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mockforge/mockforge/internal/dispatch"
	"github.com/mockforge/mockforge/internal/domain/repository"
	dto "github.com/mockforge/mockforge/internal/http/dto/integrations"
	httperrors "github.com/mockforge/mockforge/internal/http/errors"
	"github.com/mockforge/mockforge/internal/http/helpers"
	"github.com/mockforge/mockforge/internal/http/middlewares"
	svc "github.com/mockforge/mockforge/internal/http/services/integrations"
	"github.com/mockforge/mockforge/internal/oauth"
	"github.com/mockforge/mockforge/internal/observability/logger"
	"github.com/mockforge/mockforge/internal/platform"
)

// Controller maneja los endpoints de integraciones.
type Controller struct {
	service   *svc.Service
	appOrigin string // destino de los redirects del callback OAuth
}

// NewController crea el controller.
func NewController(s *svc.Service, appOrigin string) *Controller {
	return &Controller{service: s, appOrigin: strings.TrimRight(appOrigin, "/")}
}

// List maneja GET /api/v1/integrations.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	views, err := c.service.List(r.Context(), middlewares.GetUserID(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"integrations": views})
}

// Connect maneja POST /api/v1/integrations/{integrationID}/connect.
// Devuelve la URL de autorización; el frontend redirige al usuario.
func (c *Controller) Connect(w http.ResponseWriter, r *http.Request) {
	integrationID := chi.URLParam(r, "integrationID")
	settings := map[string]string{}
	if shop := normalizeShop(r.URL.Query().Get("shop")); shop != "" {
		settings["shop"] = shop
	}

	authURL, state, err := c.service.Connect(r.Context(), middlewares.GetUserID(r.Context()), integrationID, settings)
	if err != nil {
		switch {
		case repository.IsNotFound(err), errors.Is(err, platform.ErrUnknownPlatform):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("integration not found"))
		case errors.Is(err, svc.ErrUnavailable):
			httperrors.WriteError(w, httperrors.ErrIntegrationUnavailable)
		case errors.Is(err, svc.ErrMissingShop):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("query param shop requerido para esta plataforma"))
		case errors.Is(err, oauth.ErrCredentialsNotConfigured):
			httperrors.WriteError(w, httperrors.ErrPlatformNotConfigured)
		default:
			httperrors.WriteError(w, err)
		}
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ConnectResponse{Success: true, AuthURL: authURL, State: state})
}

// Callback maneja GET /api/v1/oauth/callback. Llega por redirect del
// proveedor, sin bearer token: la identidad viene del state. Cualquier
// falla vuelve al frontend con el error en la query, nunca como JSON.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		http.Redirect(w, r, c.callbackURL("", "invalid_state"), http.StatusFound)
		return
	}

	settings := map[string]string{}
	if shop := normalizeShop(q.Get("shop")); shop != "" {
		settings["shop"] = shop
	}

	_, integrationID, err := c.service.HandleCallback(r.Context(), code, state, settings)
	if err != nil {
		if errors.Is(err, oauth.ErrStateInvalid) {
			http.Redirect(w, r, c.callbackURL("", "invalid_state"), http.StatusFound)
			return
		}
		logger.From(r.Context()).Warn("oauth callback failed",
			logger.IntegrationID(integrationID),
			logger.Err(err),
		)
		http.Redirect(w, r, c.callbackURL(integrationID, "connection_failed"), http.StatusFound)
		return
	}

	http.Redirect(w, r, c.callbackURL(integrationID, ""), http.StatusFound)
}

// Sync maneja POST /api/v1/integrations/{integrationID}/sync.
func (c *Controller) Sync(w http.ResponseWriter, r *http.Request) {
	integrationID := chi.URLParam(r, "integrationID")

	var req dto.SyncRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Operation) == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("operation requerida"))
		return
	}

	result, err := c.service.Sync(r.Context(), middlewares.GetUserID(r.Context()), integrationID, req.Operation, req.Payload)
	if err != nil {
		var upstream *platform.UpstreamError
		switch {
		case repository.IsNotFound(err), errors.Is(err, platform.ErrUnknownPlatform):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("integration not found"))
		case errors.Is(err, dispatch.ErrIntegrationUnavailable):
			httperrors.WriteError(w, httperrors.ErrIntegrationUnavailable)
		case errors.Is(err, dispatch.ErrNotConnected):
			httperrors.WriteError(w, httperrors.ErrNotConnected)
		case errors.Is(err, platform.ErrUnsupportedOperation):
			httperrors.WriteError(w, httperrors.ErrUnsupportedOperation)
		case errors.Is(err, repository.ErrQuotaExhausted):
			httperrors.WriteError(w, httperrors.ErrQuotaExhausted)
		case errors.Is(err, oauth.ErrReauthorizationRequired):
			httperrors.WriteError(w, httperrors.ErrReauthorizationRequired)
		case errors.Is(err, oauth.ErrTokenExchangeFailed):
			httperrors.WriteError(w, httperrors.ErrTokenExchange)
		case errors.As(err, &upstream):
			httperrors.WriteError(w, httperrors.ErrUpstream.WithDetail(upstream.Error()))
		default:
			httperrors.WriteError(w, err)
		}
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// Disconnect maneja DELETE /api/v1/integrations/{integrationID}.
func (c *Controller) Disconnect(w http.ResponseWriter, r *http.Request) {
	integrationID := chi.URLParam(r, "integrationID")

	err := c.service.Disconnect(r.Context(), middlewares.GetUserID(r.Context()), integrationID)
	if err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrNotConnected)
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.DisconnectResponse{
		Success: true,
		Message: "integration disconnected",
	})
}

// callbackURL arma el redirect de vuelta a la página de integraciones del
// frontend: success indica el resultado, error lleva la causa visible.
func (c *Controller) callbackURL(platformID, errMsg string) string {
	q := url.Values{}
	q.Set("success", strconv.FormatBool(errMsg == ""))
	if platformID != "" {
		q.Set("platform", platformID)
	}
	if errMsg != "" {
		q.Set("error", errMsg)
	}
	return c.appOrigin + "/integrations/callback?" + q.Encode()
}

// normalizeShop reduce el dominio de la tienda al subdominio que esperan
// las plantillas de URL ({shop}.myshopify.com).
func normalizeShop(shop string) string {
	shop = strings.TrimSpace(strings.ToLower(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimSuffix(shop, "/")
	return strings.TrimSuffix(shop, ".myshopify.com")
}
