// Package pg implementa los repositorios sobre PostgreSQL (pgxpool).
package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// Store agrupa los repositorios Postgres sobre un pool compartido.
type Store struct {
	pool *pgxpool.Pool

	Integrations  *Integrations
	Connections   *Connections
	States        *States
	Queue         *Queue
	Payments      *Payments
	Subscriptions *Subscriptions
}

// New abre el pool y arma los repositorios. El ping inicial es
// obligatorio: sin base no arrancamos (fail fast).
func New(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		pcfg.MaxConns = int32(maxOpenConns)
	}
	// pgxpool no tiene idle conns: MinConns es lo más cercano.
	if maxIdleConns > 0 {
		pcfg.MinConns = int32(maxIdleConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		pool:          pool,
		Integrations:  &Integrations{pool: pool},
		Connections:   &Connections{pool: pool},
		States:        &States{pool: pool},
		Queue:         &Queue{pool: pool},
		Payments:      &Payments{pool: pool},
		Subscriptions: &Subscriptions{pool: pool},
	}, nil
}

// Pool expone el pool interno (métricas, migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// PoolStats devuelve un snapshot del estado del pool.
func (s *Store) PoolStats() *pgxpool.Stat {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Stat()
}

// Ping verifica la conexión (healthcheck).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// mapErr traduce errores de pgx al vocabulario del dominio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}
