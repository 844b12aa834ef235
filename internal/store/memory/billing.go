package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// PaymentRepo implementa repository.PaymentRepository en memoria.
type PaymentRepo struct {
	mu    sync.Mutex
	items map[string]repository.PaymentTransaction
}

// NewPaymentRepo crea un repositorio vacío.
func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{items: make(map[string]repository.PaymentTransaction)}
}

func (r *PaymentRepo) Create(ctx context.Context, tx repository.PaymentTransaction) error {
	if tx.ID == "" || tx.UserID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[tx.ID]; ok {
		return repository.ErrConflict
	}
	if tx.Status == "" {
		tx.Status = repository.PaymentPending
	}
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	r.items[tx.ID] = tx
	return nil
}

func (r *PaymentRepo) GetByProviderToken(ctx context.Context, token string) (*repository.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.items {
		if tx.ProviderToken == token {
			out := tx
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Settle aplica la transición pending -> terminal bajo el lock; una
// transacción ya terminal retorna ErrTerminal sin modificarse.
func (r *PaymentRepo) Settle(ctx context.Context, id string, status repository.PaymentStatus, providerPaymentID string) error {
	if status != repository.PaymentCompleted && status != repository.PaymentFailed {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if tx.Status != repository.PaymentPending {
		return repository.ErrTerminal
	}
	tx.Status = status
	tx.ProviderPaymentID = providerPaymentID
	tx.UpdatedAt = time.Now()
	r.items[id] = tx
	return nil
}

// SubscriptionRepo implementa repository.SubscriptionRepository en memoria.
type SubscriptionRepo struct {
	mu    sync.Mutex
	items map[string]repository.Subscription
}

// NewSubscriptionRepo crea un repositorio vacío.
func NewSubscriptionRepo() *SubscriptionRepo {
	return &SubscriptionRepo{items: make(map[string]repository.Subscription)}
}

func (r *SubscriptionRepo) Get(ctx context.Context, userID string) (*repository.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.items[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

func (r *SubscriptionRepo) Upsert(ctx context.Context, sub repository.Subscription) error {
	if sub.UserID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.UpdatedAt = time.Now()
	r.items[sub.UserID] = sub
	return nil
}

// ConsumeQuota descuenta bajo el lock: la cuota nunca queda negativa.
func (r *SubscriptionRepo) ConsumeQuota(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.items[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if sub.RemainingQuota < n {
		return repository.ErrQuotaExhausted
	}
	sub.RemainingQuota -= n
	sub.UpdatedAt = time.Now()
	r.items[userID] = sub
	return nil
}

func (r *SubscriptionRepo) ListRenewable(ctx context.Context, now time.Time) ([]repository.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]repository.Subscription, 0)
	for _, sub := range r.items {
		if sub.AutoRenew && now.After(sub.CurrentPeriodEnd) {
			out = append(out, sub)
		}
	}
	return out, nil
}
