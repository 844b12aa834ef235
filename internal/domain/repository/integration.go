package repository

import (
	"context"
	"time"
)

// IntegrationStatus es el estado de publicación de una integración.
type IntegrationStatus string

const (
	IntegrationActive     IntegrationStatus = "active"
	IntegrationComingSoon IntegrationStatus = "coming_soon"
	IntegrationDisabled   IntegrationStatus = "disabled"
)

// OAuthConfig describe los endpoints OAuth de una plataforma tal como se
// publica en el catálogo. Las credenciales (client id/secret) NO viven acá:
// se resuelven desde la configuración del servicio por nombre de plataforma.
type OAuthConfig struct {
	AuthURL  string   `json:"authUrl"`
	TokenURL string   `json:"tokenUrl"`
	Scopes   []string `json:"scopes"`
}

// Integration es un descriptor de plataforma del catálogo.
// Lo crean operadores; para usuarios finales es solo lectura.
type Integration struct {
	ID          string
	Name        string
	Category    string
	LogoURL     string
	Status      IntegrationStatus
	OAuthConfig OAuthConfig
	CreatedAt   time.Time
}

// IntegrationRepository define acceso al catálogo de integraciones.
type IntegrationRepository interface {
	// GetByID busca una integración por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Integration, error)

	// List devuelve el catálogo completo ordenado por nombre.
	List(ctx context.Context) ([]Integration, error)

	// Upsert crea o actualiza un descriptor (uso operador/seed).
	Upsert(ctx context.Context, in Integration) error
}

// UserIntegration es la conexión de un usuario con una integración.
// Una fila por par (user, integration); upsert on conflict.
type UserIntegration struct {
	UserID                string
	IntegrationID         string
	AccessTokenEncrypted  string
	RefreshTokenEncrypted string // vacío si la plataforma no emite refresh token
	TokenExpiresAt        *time.Time
	ConnectedAt           time.Time
	UpdatedAt             time.Time
	LastSyncedAt          *time.Time
	Settings              map[string]string
}

// UpsertConnectionInput contiene los datos para crear/actualizar una conexión.
type UpsertConnectionInput struct {
	UserID                string
	IntegrationID         string
	AccessTokenEncrypted  string
	RefreshTokenEncrypted string
	TokenExpiresAt        *time.Time
	Settings              map[string]string
}

// ConnectionRepository define operaciones sobre conexiones usuario-integración.
type ConnectionRepository interface {
	// Get busca la conexión (user, integration). Retorna ErrNotFound si no existe.
	Get(ctx context.Context, userID, integrationID string) (*UserIntegration, error)

	// ListByUser devuelve todas las conexiones de un usuario.
	ListByUser(ctx context.Context, userID string) ([]UserIntegration, error)

	// Upsert crea o reemplaza la conexión (ON CONFLICT (user_id, integration_id)).
	Upsert(ctx context.Context, in UpsertConnectionInput) error

	// UpdateTokens reescribe el set de tokens en una sola escritura atómica.
	// Usado por el refresh: nunca debe dejar access token vacío.
	UpdateTokens(ctx context.Context, userID, integrationID, accessEnc, refreshEnc string, expiresAt *time.Time) error

	// TouchLastSynced actualiza last_synced_at = now.
	TouchLastSynced(ctx context.Context, userID, integrationID string) error

	// Delete elimina la conexión. Retorna ErrNotFound si no existía.
	Delete(ctx context.Context, userID, integrationID string) error
}
