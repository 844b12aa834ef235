package repository

import (
	"context"
	"time"
)

// OAuthState es un registro CSRF de corta vida que correlaciona el inicio
// del flujo OAuth con su callback. Single-use: se elimina al consumirse.
type OAuthState struct {
	State         string
	UserID        string
	IntegrationID string
	ExpiresAt     time.Time
}

// StateRepository define operaciones sobre oauth_states.
//
// Invariante: cero o un registro válido (no consumido, no expirado) por
// valor de state.
type StateRepository interface {
	// Create inserta un state nuevo. El valor de state es único.
	Create(ctx context.Context, st OAuthState) error

	// Consume elimina y retorna el state en una sola operación atómica
	// (DELETE ... RETURNING). Dos consumos concurrentes del mismo state:
	// exactamente uno gana, el otro recibe ErrNotFound.
	// Un state expirado también retorna ErrNotFound (y se purga).
	Consume(ctx context.Context, state string) (*OAuthState, error)

	// PurgeExpired elimina states vencidos. Retorna cuántos borró.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
