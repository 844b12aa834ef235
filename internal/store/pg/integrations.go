package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// Integrations implementa repository.IntegrationRepository.
type Integrations struct{ pool *pgxpool.Pool }

func (r *Integrations) GetByID(ctx context.Context, id string) (*repository.Integration, error) {
	const q = `
		SELECT id, name, category, logo_url, status, oauth_config, created_at
		FROM integrations WHERE id = $1`

	var (
		it  repository.Integration
		cfg []byte
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&it.ID, &it.Name, &it.Category, &it.LogoURL, &it.Status, &cfg, &it.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &it.OAuthConfig); err != nil {
			return nil, err
		}
	}
	return &it, nil
}

func (r *Integrations) List(ctx context.Context) ([]repository.Integration, error) {
	const q = `
		SELECT id, name, category, logo_url, status, oauth_config, created_at
		FROM integrations ORDER BY name`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]repository.Integration, 0)
	for rows.Next() {
		var (
			it  repository.Integration
			cfg []byte
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.LogoURL, &it.Status, &cfg, &it.CreatedAt); err != nil {
			return nil, err
		}
		if len(cfg) > 0 {
			if err := json.Unmarshal(cfg, &it.OAuthConfig); err != nil {
				return nil, err
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Integrations) Upsert(ctx context.Context, in repository.Integration) error {
	if in.ID == "" {
		return repository.ErrInvalidInput
	}
	cfg, err := json.Marshal(in.OAuthConfig)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO integrations (id, name, category, logo_url, status, oauth_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			logo_url = EXCLUDED.logo_url,
			status = EXCLUDED.status,
			oauth_config = EXCLUDED.oauth_config`
	_, err = r.pool.Exec(ctx, q, in.ID, in.Name, in.Category, in.LogoURL, in.Status, cfg)
	return mapErr(err)
}
