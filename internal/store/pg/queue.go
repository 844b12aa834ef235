package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// Queue implementa repository.QueueRepository. El bigserial id define el
// orden FIFO.
type Queue struct{ pool *pgxpool.Pool }

func (r *Queue) Append(ctx context.Context, ch repository.QueuedChange) (int64, error) {
	if !repository.ValidEntity(ch.Entity) {
		return 0, repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO queued_changes (change_type, entity, data, user_id, queued_at, attempts)
		VALUES ($1, $2, $3, $4, NOW(), 0)
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, q, ch.Type, ch.Entity, ch.Data, ch.UserID).Scan(&id)
	if err != nil {
		return 0, mapErr(err)
	}
	return id, nil
}

func (r *Queue) NextPending(ctx context.Context, entity repository.ChangeEntity, limit int) ([]repository.QueuedChange, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, change_type, entity, data, user_id, queued_at, attempts
		FROM queued_changes WHERE entity = $1
		ORDER BY id ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, q, entity, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]repository.QueuedChange, 0)
	for rows.Next() {
		var ch repository.QueuedChange
		if err := rows.Scan(&ch.ID, &ch.Type, &ch.Entity, &ch.Data, &ch.UserID, &ch.Timestamp, &ch.Attempts); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *Queue) MarkApplied(ctx context.Context, id int64) error {
	const q = `DELETE FROM queued_changes WHERE id = $1`
	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Queue) Requeue(ctx context.Context, id int64) error {
	const q = `UPDATE queued_changes SET attempts = attempts + 1 WHERE id = $1`
	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Queue) CountPending(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM queued_changes`
	var n int64
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
