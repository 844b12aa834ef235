package repository

import (
	"context"
	"time"
)

// PaymentType distingue compras de suscripción vs créditos.
type PaymentType string

const (
	PaymentSubscription PaymentType = "subscription"
	PaymentCredit       PaymentType = "credit"
)

// PaymentStatus es el estado de una transacción.
// pending es el único estado no-terminal.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentTransaction registra un intento de pago contra el proveedor.
type PaymentTransaction struct {
	ID                string
	UserID            string
	Type              PaymentType
	Amount            int64 // centavos
	Currency          string
	Status            PaymentStatus
	ProviderToken     string // session/checkout token del proveedor
	ProviderPaymentID string
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentRepository define operaciones sobre payment_transactions.
type PaymentRepository interface {
	// Create inserta una transacción en estado pending.
	Create(ctx context.Context, tx PaymentTransaction) error

	// GetByProviderToken busca por el token del proveedor.
	GetByProviderToken(ctx context.Context, token string) (*PaymentTransaction, error)

	// Settle transiciona pending -> completed|failed y guarda el payment id
	// del proveedor. Si la transacción ya salió de pending retorna ErrTerminal.
	Settle(ctx context.Context, id string, status PaymentStatus, providerPaymentID string) error
}

// Subscription es la suscripción vigente de un usuario.
type Subscription struct {
	UserID             string
	PlanID             string
	Status             string // active | expired | canceled
	RemainingQuota     int
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	ExpiresAt          time.Time
	AutoRenew          bool
	UpdatedAt          time.Time
}

// SubscriptionRepository define operaciones sobre subscriptions.
type SubscriptionRepository interface {
	// Get busca la suscripción de un usuario. ErrNotFound si no tiene.
	Get(ctx context.Context, userID string) (*Subscription, error)

	// Upsert crea o reemplaza la suscripción del usuario.
	Upsert(ctx context.Context, sub Subscription) error

	// ConsumeQuota descuenta n de remaining_quota de forma atómica.
	// Retorna ErrQuotaExhausted si no alcanza (la cuota nunca queda negativa).
	ConsumeQuota(ctx context.Context, userID string, n int) error

	// ListRenewable devuelve suscripciones con auto_renew y período vencido.
	ListRenewable(ctx context.Context, now time.Time) ([]Subscription, error)
}
