// Package dispatch resuelve y ejecuta operaciones de sync: busca la
// integración y la conexión del usuario, obtiene un access token vigente
// (refrescando si hace falta) y delega en el handler de la plataforma.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/metrics"
	"github.com/mockforge/mockforge/internal/observability/logger"
	"github.com/mockforge/mockforge/internal/platform"
)

// Errores propios del despacho.
var (
	// ErrIntegrationUnavailable: la integración existe pero no está activa
	// (coming_soon o disabled).
	ErrIntegrationUnavailable = errors.New("dispatch: integration not available")

	// ErrNotConnected: el usuario no tiene conexión con la integración.
	ErrNotConnected = errors.New("dispatch: integration not connected")
)

// TokenSource entrega un access token en claro listo para usar.
// *oauth.Lifecycle lo implementa.
type TokenSource interface {
	AccessToken(ctx context.Context, d platform.Descriptor, creds config.PlatformCredentials, conn *repository.UserIntegration) (string, error)
}

// QuotaGuard descuenta cuota de generaciones antes de las operaciones que
// publican mockups. *billing.Service lo implementa.
type QuotaGuard interface {
	ConsumeQuota(ctx context.Context, userID string, n int) error
}

// Dispatcher ejecuta operaciones contra plataformas conectadas.
type Dispatcher struct {
	integrations repository.IntegrationRepository
	conns        repository.ConnectionRepository
	tokens       TokenSource
	registry     *platform.Registry
	credentials  map[config.Platform]config.PlatformCredentials
	timeout      time.Duration
	quota        QuotaGuard
}

// New crea un Dispatcher. timeout acota cada llamada upstream.
func New(
	integrations repository.IntegrationRepository,
	conns repository.ConnectionRepository,
	tokens TokenSource,
	registry *platform.Registry,
	credentials map[config.Platform]config.PlatformCredentials,
	timeout time.Duration,
) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		integrations: integrations,
		conns:        conns,
		tokens:       tokens,
		registry:     registry,
		credentials:  credentials,
		timeout:      timeout,
	}
}

// SetQuotaGuard instala el guard de cuota. Sin guard (nil) las operaciones
// no descuentan: deployments sin billing siguen funcionando.
func (d *Dispatcher) SetQuotaGuard(q QuotaGuard) { d.quota = q }

// Sync ejecuta una operación de sincronización para (user, integration).
//
// Orden de resolución: catálogo -> conexión -> token -> handler. Cada paso
// corta con su error propio para que la capa HTTP lo mapee a un status.
func (d *Dispatcher) Sync(ctx context.Context, userID, integrationID, operation string, payload json.RawMessage) (*platform.Result, error) {
	integration, err := d.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if integration.Status != repository.IntegrationActive {
		return nil, ErrIntegrationUnavailable
	}

	conn, err := d.conns.Get(ctx, userID, integrationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotConnected
		}
		return nil, err
	}

	desc, err := platform.DescriptorFor(integrationID)
	if err != nil {
		return nil, err
	}
	p, _ := config.ParsePlatform(integrationID)

	accessToken, err := d.tokens.AccessToken(ctx, desc, d.credentials[p], conn)
	if err != nil {
		return nil, err
	}

	handler, err := d.registry.Get(integrationID)
	if err != nil {
		return nil, err
	}
	if !platform.SupportsOperation(handler, operation) {
		return nil, platform.ErrUnsupportedOperation
	}

	// Las operaciones que publican mockups descuentan cuota antes de
	// tocar la plataforma. Retorna repository.ErrQuotaExhausted si no alcanza.
	if d.quota != nil {
		if qc, ok := handler.(platform.QuotaConsumer); ok {
			if n := qc.QuotaCost(operation, payload); n > 0 {
				if err := d.quota.ConsumeQuota(ctx, userID, n); err != nil {
					return nil, err
				}
			}
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := handler.Handle(opCtx, platform.Request{
		Operation:   operation,
		UserID:      userID,
		AccessToken: accessToken,
		Settings:    conn.Settings,
		Payload:     payload,
	})
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SyncOperations.WithLabelValues(integrationID, operation, outcome).Inc()
	metrics.SyncLatency.WithLabelValues(integrationID).Observe(float64(elapsed.Milliseconds()))

	log := logger.FromWithFields(ctx,
		logger.UserID(userID),
		logger.Platform(integrationID),
		logger.Operation(operation),
		logger.DurationMs(elapsed.Milliseconds()),
	)
	if err != nil {
		log.Warn("sync failed", logger.Err(err))
		return nil, err
	}

	if touchErr := d.conns.TouchLastSynced(ctx, userID, integrationID); touchErr != nil {
		log.Warn("touch last_synced_at failed", logger.Err(touchErr))
	}
	log.Info("sync completed")
	return res, nil
}
