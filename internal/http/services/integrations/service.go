// Package integrations implementa los casos de uso de la API de
// integraciones: catálogo, conexión OAuth, sync y desconexión.
package integrations

import (
	"context"
	"errors"
	"strings"

	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/dispatch"
	"github.com/mockforge/mockforge/internal/domain/repository"
	dto "github.com/mockforge/mockforge/internal/http/dto/integrations"
	"github.com/mockforge/mockforge/internal/metrics"
	"github.com/mockforge/mockforge/internal/oauth"
	"github.com/mockforge/mockforge/internal/observability/logger"
	"github.com/mockforge/mockforge/internal/platform"
	"github.com/mockforge/mockforge/internal/security/secretbox"
)

// Errores del flujo de conexión.
var (
	// ErrUnavailable: la integración existe pero no es conectable
	// (coming_soon o disabled). No se crea state en este caso.
	ErrUnavailable = errors.New("integrations: integration not available")

	// ErrMissingShop: la plataforma necesita el dominio de la tienda
	// (Shopify) y el request no lo trae.
	ErrMissingShop = errors.New("integrations: missing shop parameter")
)

// Service orquesta catálogo, states, ciclo de vida de tokens y despacho.
type Service struct {
	catalog     repository.IntegrationRepository
	conns       repository.ConnectionRepository
	states      *oauth.StateStore
	lifecycle   *oauth.Lifecycle
	dispatcher  *dispatch.Dispatcher
	credentials map[config.Platform]config.PlatformCredentials
}

// NewService crea el service de integraciones.
func NewService(
	catalog repository.IntegrationRepository,
	conns repository.ConnectionRepository,
	states *oauth.StateStore,
	lifecycle *oauth.Lifecycle,
	dispatcher *dispatch.Dispatcher,
	credentials map[config.Platform]config.PlatformCredentials,
) *Service {
	return &Service{
		catalog:     catalog,
		conns:       conns,
		states:      states,
		lifecycle:   lifecycle,
		dispatcher:  dispatcher,
		credentials: credentials,
	}
}

// List devuelve el catálogo completo con el estado de conexión del usuario.
func (s *Service) List(ctx context.Context, userID string) ([]dto.IntegrationView, error) {
	catalog, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := s.conns.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byIntegration := make(map[string]*repository.UserIntegration, len(conns))
	for i := range conns {
		byIntegration[conns[i].IntegrationID] = &conns[i]
	}

	out := make([]dto.IntegrationView, 0, len(catalog))
	for _, it := range catalog {
		view := dto.IntegrationView{
			ID:       it.ID,
			Name:     it.Name,
			Category: it.Category,
			LogoURL:  it.LogoURL,
			Status:   string(it.Status),
		}
		if conn, ok := byIntegration[it.ID]; ok {
			view.IsConnected = true
			view.ConnectedAt = &conn.ConnectedAt
			view.LastSyncedAt = conn.LastSyncedAt
		}
		out = append(out, view)
	}
	return out, nil
}

// Connect inicia el flujo OAuth: valida que la integración sea conectable,
// emite el state CSRF y arma la URL de autorización.
// settings trae valores por-conexión para plantillas de URL ({shop}).
func (s *Service) Connect(ctx context.Context, userID, integrationID string, settings map[string]string) (authURL, state string, err error) {
	integration, err := s.catalog.GetByID(ctx, integrationID)
	if err != nil {
		return "", "", err
	}
	if integration.Status != repository.IntegrationActive {
		return "", "", ErrUnavailable
	}

	desc, err := platform.DescriptorFor(integrationID)
	if err != nil {
		return "", "", err
	}
	p, _ := config.ParsePlatform(integrationID)
	creds := s.credentials[p]
	if !creds.Configured() {
		return "", "", oauth.ErrCredentialsNotConfigured
	}
	if strings.Contains(desc.AuthURL, "{shop}") && settings["shop"] == "" {
		return "", "", ErrMissingShop
	}

	state, err = s.states.CreateState(ctx, userID, integrationID)
	if err != nil {
		return "", "", err
	}

	logger.FromWithFields(ctx,
		logger.UserID(userID),
		logger.IntegrationID(integrationID),
	).Info("oauth flow started")
	return desc.BuildAuthURL(creds, state, settings), state, nil
}

// HandleCallback procesa el retorno del proveedor: consume el state,
// canjea el code, cifra los tokens y crea (o reemplaza) la conexión.
// Devuelve el user ID y el integration ID del state consumido.
func (s *Service) HandleCallback(ctx context.Context, code, state string, settings map[string]string) (userID, integrationID string, err error) {
	st, err := s.states.ConsumeState(ctx, state)
	if err != nil {
		return "", "", err
	}
	userID, integrationID = st.UserID, st.IntegrationID

	outcome := "error"
	defer func() { metrics.OAuthCallbacks.WithLabelValues(integrationID, outcome).Inc() }()

	desc, err := platform.DescriptorFor(integrationID)
	if err != nil {
		return userID, integrationID, err
	}
	p, _ := config.ParsePlatform(integrationID)

	set, err := s.lifecycle.ExchangeCode(ctx, desc, s.credentials[p], code, settings)
	if err != nil {
		return userID, integrationID, err
	}

	accessEnc, err := secretbox.Encrypt(set.AccessToken)
	if err != nil {
		return userID, integrationID, err
	}
	refreshEnc := ""
	if set.RefreshToken != "" {
		if refreshEnc, err = secretbox.Encrypt(set.RefreshToken); err != nil {
			return userID, integrationID, err
		}
	}

	if err := s.conns.Upsert(ctx, repository.UpsertConnectionInput{
		UserID:                userID,
		IntegrationID:         integrationID,
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		TokenExpiresAt:        set.ExpiresAt,
		Settings:              settings,
	}); err != nil {
		return userID, integrationID, err
	}

	outcome = "ok"
	logger.FromWithFields(ctx,
		logger.UserID(userID),
		logger.IntegrationID(integrationID),
	).Info("integration connected")
	return userID, integrationID, nil
}

// Sync delega la operación en el dispatcher.
func (s *Service) Sync(ctx context.Context, userID, integrationID, operation string, payload []byte) (*platform.Result, error) {
	return s.dispatcher.Sync(ctx, userID, integrationID, operation, payload)
}

// Disconnect revoca el token upstream (best-effort) y elimina la conexión.
// La revocación fallida no impide el borrado local.
func (s *Service) Disconnect(ctx context.Context, userID, integrationID string) error {
	conn, err := s.conns.Get(ctx, userID, integrationID)
	if err != nil {
		return err
	}

	desc, err := platform.DescriptorFor(integrationID)
	if err == nil && desc.HasRevocation() {
		p, _ := config.ParsePlatform(integrationID)
		if accessPlain, decErr := secretbox.Decrypt(conn.AccessTokenEncrypted); decErr == nil {
			if revErr := s.lifecycle.Revoke(ctx, desc, s.credentials[p], accessPlain); revErr != nil {
				logger.From(ctx).Warn("token revocation failed",
					logger.IntegrationID(integrationID),
					logger.Err(revErr),
				)
			}
		}
	}

	if err := s.conns.Delete(ctx, userID, integrationID); err != nil {
		return err
	}
	logger.FromWithFields(ctx,
		logger.UserID(userID),
		logger.IntegrationID(integrationID),
	).Info("integration disconnected")
	return nil
}
