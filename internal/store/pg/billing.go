package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// Payments implementa repository.PaymentRepository.
type Payments struct{ pool *pgxpool.Pool }

func (r *Payments) Create(ctx context.Context, tx repository.PaymentTransaction) error {
	if tx.ID == "" || tx.UserID == "" {
		return repository.ErrInvalidInput
	}
	if tx.Status == "" {
		tx.Status = repository.PaymentPending
	}
	meta, err := json.Marshal(tx.Metadata)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO payment_transactions
			(id, user_id, type, amount_cents, currency, status,
			 provider_token, provider_payment_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`
	_, err = r.pool.Exec(ctx, q,
		tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Currency, tx.Status,
		tx.ProviderToken, tx.ProviderPaymentID, meta,
	)
	return mapErr(err)
}

func (r *Payments) GetByProviderToken(ctx context.Context, token string) (*repository.PaymentTransaction, error) {
	const q = `
		SELECT id, user_id, type, amount_cents, currency, status,
		       provider_token, provider_payment_id, metadata, created_at, updated_at
		FROM payment_transactions WHERE provider_token = $1`

	var (
		tx   repository.PaymentTransaction
		meta []byte
	)
	err := r.pool.QueryRow(ctx, q, token).Scan(
		&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Currency, &tx.Status,
		&tx.ProviderToken, &tx.ProviderPaymentID, &meta, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &tx.Metadata); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

// Settle transiciona pending -> terminal en un solo UPDATE condicionado:
// dos settles concurrentes no pueden ganar los dos.
func (r *Payments) Settle(ctx context.Context, id string, status repository.PaymentStatus, providerPaymentID string) error {
	if status != repository.PaymentCompleted && status != repository.PaymentFailed {
		return repository.ErrInvalidInput
	}

	const q = `
		UPDATE payment_transactions
		SET status = $2, provider_payment_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	ct, err := r.pool.Exec(ctx, q, id, status, providerPaymentID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		// Distinguir inexistente de ya-terminal.
		const exists = `SELECT 1 FROM payment_transactions WHERE id = $1`
		var one int
		if err := r.pool.QueryRow(ctx, exists, id).Scan(&one); err != nil {
			return mapErr(err)
		}
		return repository.ErrTerminal
	}
	return nil
}

// Subscriptions implementa repository.SubscriptionRepository.
type Subscriptions struct{ pool *pgxpool.Pool }

func (r *Subscriptions) Get(ctx context.Context, userID string) (*repository.Subscription, error) {
	const q = `
		SELECT user_id, plan_id, status, remaining_quota,
		       current_period_start, current_period_end, expires_at, auto_renew, updated_at
		FROM subscriptions WHERE user_id = $1`

	var sub repository.Subscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&sub.UserID, &sub.PlanID, &sub.Status, &sub.RemainingQuota,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.ExpiresAt, &sub.AutoRenew, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sub, nil
}

func (r *Subscriptions) Upsert(ctx context.Context, sub repository.Subscription) error {
	if sub.UserID == "" {
		return repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO subscriptions
			(user_id, plan_id, status, remaining_quota,
			 current_period_start, current_period_end, expires_at, auto_renew, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			remaining_quota = EXCLUDED.remaining_quota,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			expires_at = EXCLUDED.expires_at,
			auto_renew = EXCLUDED.auto_renew,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q,
		sub.UserID, sub.PlanID, sub.Status, sub.RemainingQuota,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.ExpiresAt, sub.AutoRenew,
	)
	return mapErr(err)
}

// ConsumeQuota descuenta en un solo UPDATE condicionado: la cuota nunca
// queda negativa, sin transacción explícita.
func (r *Subscriptions) ConsumeQuota(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return repository.ErrInvalidInput
	}

	const q = `
		UPDATE subscriptions
		SET remaining_quota = remaining_quota - $2, updated_at = NOW()
		WHERE user_id = $1 AND remaining_quota >= $2`
	ct, err := r.pool.Exec(ctx, q, userID, n)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		const exists = `SELECT 1 FROM subscriptions WHERE user_id = $1`
		var one int
		if err := r.pool.QueryRow(ctx, exists, userID).Scan(&one); err != nil {
			return mapErr(err)
		}
		return repository.ErrQuotaExhausted
	}
	return nil
}

func (r *Subscriptions) ListRenewable(ctx context.Context, now time.Time) ([]repository.Subscription, error) {
	const q = `
		SELECT user_id, plan_id, status, remaining_quota,
		       current_period_start, current_period_end, expires_at, auto_renew, updated_at
		FROM subscriptions
		WHERE auto_renew = TRUE AND current_period_end < $1`

	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]repository.Subscription, 0)
	for rows.Next() {
		var sub repository.Subscription
		if err := rows.Scan(
			&sub.UserID, &sub.PlanID, &sub.Status, &sub.RemainingQuota,
			&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.ExpiresAt, &sub.AutoRenew, &sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
