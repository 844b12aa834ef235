package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// States implementa repository.StateRepository.
type States struct{ pool *pgxpool.Pool }

func (r *States) Create(ctx context.Context, st repository.OAuthState) error {
	if st.State == "" {
		return repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO oauth_states (state, user_id, integration_id, expires_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, st.State, st.UserID, st.IntegrationID, st.ExpiresAt)
	return mapErr(err)
}

// Consume usa DELETE ... RETURNING: de dos callbacks concurrentes con el
// mismo state, exactamente uno recibe la fila. Un state expirado se borra
// igual pero retorna ErrNotFound.
func (r *States) Consume(ctx context.Context, state string) (*repository.OAuthState, error) {
	const q = `
		DELETE FROM oauth_states WHERE state = $1
		RETURNING state, user_id, integration_id, expires_at`

	var st repository.OAuthState
	err := r.pool.QueryRow(ctx, q, state).Scan(&st.State, &st.UserID, &st.IntegrationID, &st.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if time.Now().After(st.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (r *States) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	const q = `DELETE FROM oauth_states WHERE expires_at < $1`
	ct, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(ct.RowsAffected()), nil
}
