package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// Connections implementa repository.ConnectionRepository.
type Connections struct{ pool *pgxpool.Pool }

const connectionCols = `
	user_id, integration_id, access_token_encrypted, refresh_token_encrypted,
	token_expires_at, connected_at, updated_at, last_synced_at, settings`

func scanConnection(row pgx.Row) (*repository.UserIntegration, error) {
	var (
		c        repository.UserIntegration
		settings []byte
	)
	err := row.Scan(
		&c.UserID, &c.IntegrationID, &c.AccessTokenEncrypted, &c.RefreshTokenEncrypted,
		&c.TokenExpiresAt, &c.ConnectedAt, &c.UpdatedAt, &c.LastSyncedAt, &settings,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &c.Settings); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (r *Connections) Get(ctx context.Context, userID, integrationID string) (*repository.UserIntegration, error) {
	const q = `SELECT ` + connectionCols + `
		FROM user_integrations WHERE user_id = $1 AND integration_id = $2`
	return scanConnection(r.pool.QueryRow(ctx, q, userID, integrationID))
}

func (r *Connections) ListByUser(ctx context.Context, userID string) ([]repository.UserIntegration, error) {
	const q = `SELECT ` + connectionCols + `
		FROM user_integrations WHERE user_id = $1 ORDER BY integration_id`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]repository.UserIntegration, 0)
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Upsert crea o reemplaza la conexión. connected_at solo se fija en el
// insert: reconectar no reescribe la fecha original.
func (r *Connections) Upsert(ctx context.Context, in repository.UpsertConnectionInput) error {
	if in.UserID == "" || in.IntegrationID == "" || in.AccessTokenEncrypted == "" {
		return repository.ErrInvalidInput
	}
	settings, err := json.Marshal(in.Settings)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO user_integrations
			(user_id, integration_id, access_token_encrypted, refresh_token_encrypted,
			 token_expires_at, connected_at, updated_at, settings)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), $6)
		ON CONFLICT (user_id, integration_id) DO UPDATE SET
			access_token_encrypted = EXCLUDED.access_token_encrypted,
			refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
			token_expires_at = EXCLUDED.token_expires_at,
			settings = EXCLUDED.settings,
			updated_at = NOW()`
	_, err = r.pool.Exec(ctx, q,
		in.UserID, in.IntegrationID, in.AccessTokenEncrypted, in.RefreshTokenEncrypted,
		in.TokenExpiresAt, settings,
	)
	return mapErr(err)
}

// UpdateTokens reescribe el set de tokens en una sola escritura.
func (r *Connections) UpdateTokens(ctx context.Context, userID, integrationID, accessEnc, refreshEnc string, expiresAt *time.Time) error {
	if accessEnc == "" {
		return repository.ErrInvalidInput
	}

	const q = `
		UPDATE user_integrations SET
			access_token_encrypted = $3,
			refresh_token_encrypted = $4,
			token_expires_at = $5,
			updated_at = NOW()
		WHERE user_id = $1 AND integration_id = $2`
	ct, err := r.pool.Exec(ctx, q, userID, integrationID, accessEnc, refreshEnc, expiresAt)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Connections) TouchLastSynced(ctx context.Context, userID, integrationID string) error {
	const q = `
		UPDATE user_integrations SET last_synced_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND integration_id = $2`
	ct, err := r.pool.Exec(ctx, q, userID, integrationID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Connections) Delete(ctx context.Context, userID, integrationID string) error {
	const q = `DELETE FROM user_integrations WHERE user_id = $1 AND integration_id = $2`
	ct, err := r.pool.Exec(ctx, q, userID, integrationID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
