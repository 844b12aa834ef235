package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// IntegrationRepo implementa repository.IntegrationRepository en memoria.
type IntegrationRepo struct {
	mu    sync.RWMutex
	items map[string]repository.Integration
}

// NewIntegrationRepo crea un catálogo vacío.
func NewIntegrationRepo() *IntegrationRepo {
	return &IntegrationRepo{items: make(map[string]repository.Integration)}
}

func (r *IntegrationRepo) GetByID(ctx context.Context, id string) (*repository.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (r *IntegrationRepo) List(ctx context.Context) ([]repository.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.Integration, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *IntegrationRepo) Upsert(ctx context.Context, in repository.Integration) error {
	if in.ID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[in.ID] = in
	return nil
}
