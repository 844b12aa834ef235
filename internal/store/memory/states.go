package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// StateRepo implementa repository.StateRepository en memoria.
type StateRepo struct {
	mu    sync.Mutex
	items map[string]repository.OAuthState
}

// NewStateRepo crea un repositorio vacío.
func NewStateRepo() *StateRepo {
	return &StateRepo{items: make(map[string]repository.OAuthState)}
}

func (r *StateRepo) Create(ctx context.Context, st repository.OAuthState) error {
	if st.State == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[st.State]; ok {
		return repository.ErrConflict
	}
	r.items[st.State] = st
	return nil
}

// Consume elimina y retorna el state bajo el mismo lock: de dos consumos
// concurrentes exactamente uno gana.
func (r *StateRepo) Consume(ctx context.Context, state string) (*repository.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.items[state]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.items, state)

	if time.Now().After(st.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (r *StateRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, st := range r.items {
		if now.After(st.ExpiresAt) {
			delete(r.items, k)
			n++
		}
	}
	return n, nil
}
