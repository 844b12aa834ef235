// Package oauth implementa el ciclo de vida de tokens de integración:
// states CSRF de corta vida, intercambio de authorization code, refresh
// on-expiry con deduplicación y revocación best-effort.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/security/token"
)

// ErrStateInvalid indica que el state del callback no existe, ya fue
// consumido, o expiró. Las tres causas son indistinguibles a propósito.
var ErrStateInvalid = errors.New("oauth: invalid or expired state")

// stateTokenBytes produce ~22 chars base64url, suficiente entropía CSRF.
const stateTokenBytes = 16

// StateStore maneja los registros CSRF single-use del flujo OAuth.
type StateStore struct {
	repo repository.StateRepository
	ttl  time.Duration
}

// NewStateStore crea un StateStore con el TTL configurado.
func NewStateStore(repo repository.StateRepository, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{repo: repo, ttl: ttl}
}

// CreateState genera un state opaco y lo persiste asociado a (user, integration).
func (s *StateStore) CreateState(ctx context.Context, userID, integrationID string) (string, error) {
	st, err := token.GenerateOpaqueToken(stateTokenBytes)
	if err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	rec := repository.OAuthState{
		State:         st,
		UserID:        userID,
		IntegrationID: integrationID,
		ExpiresAt:     time.Now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("oauth: persist state: %w", err)
	}
	return st, nil
}

// ConsumeState valida y elimina el state en una sola operación atómica.
// De dos callbacks concurrentes con el mismo state, exactamente uno gana.
func (s *StateStore) ConsumeState(ctx context.Context, state string) (*repository.OAuthState, error) {
	if state == "" {
		return nil, ErrStateInvalid
	}
	rec, err := s.repo.Consume(ctx, state)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrStateInvalid
		}
		return nil, err
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrStateInvalid
	}
	return rec, nil
}

// PurgeExpired borra states vencidos (job periódico).
func (s *StateStore) PurgeExpired(ctx context.Context) (int, error) {
	return s.repo.PurgeExpired(ctx, time.Now())
}
