package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// ConnectionRepo implementa repository.ConnectionRepository en memoria.
// Una entrada por par (user, integration), igual que el unique constraint
// de la tabla user_integrations.
type ConnectionRepo struct {
	mu    sync.RWMutex
	items map[string]repository.UserIntegration
}

// NewConnectionRepo crea un repositorio vacío.
func NewConnectionRepo() *ConnectionRepo {
	return &ConnectionRepo{items: make(map[string]repository.UserIntegration)}
}

func connKey(userID, integrationID string) string {
	return userID + "\x00" + integrationID
}

func (r *ConnectionRepo) Get(ctx context.Context, userID, integrationID string) (*repository.UserIntegration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[connKey(userID, integrationID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Settings = cloneSettings(c.Settings)
	return &c, nil
}

func (r *ConnectionRepo) ListByUser(ctx context.Context, userID string) ([]repository.UserIntegration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.UserIntegration, 0)
	for _, c := range r.items {
		if c.UserID == userID {
			c.Settings = cloneSettings(c.Settings)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IntegrationID < out[j].IntegrationID })
	return out, nil
}

func (r *ConnectionRepo) Upsert(ctx context.Context, in repository.UpsertConnectionInput) error {
	if in.UserID == "" || in.IntegrationID == "" || in.AccessTokenEncrypted == "" {
		return repository.ErrInvalidInput
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey(in.UserID, in.IntegrationID)
	c, exists := r.items[key]
	if !exists {
		c = repository.UserIntegration{
			UserID:        in.UserID,
			IntegrationID: in.IntegrationID,
			ConnectedAt:   now,
		}
	}
	c.AccessTokenEncrypted = in.AccessTokenEncrypted
	c.RefreshTokenEncrypted = in.RefreshTokenEncrypted
	c.TokenExpiresAt = in.TokenExpiresAt
	c.Settings = cloneSettings(in.Settings)
	c.UpdatedAt = now
	r.items[key] = c
	return nil
}

func (r *ConnectionRepo) UpdateTokens(ctx context.Context, userID, integrationID, accessEnc, refreshEnc string, expiresAt *time.Time) error {
	if accessEnc == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey(userID, integrationID)
	c, ok := r.items[key]
	if !ok {
		return repository.ErrNotFound
	}
	c.AccessTokenEncrypted = accessEnc
	c.RefreshTokenEncrypted = refreshEnc
	c.TokenExpiresAt = expiresAt
	c.UpdatedAt = time.Now()
	r.items[key] = c
	return nil
}

func (r *ConnectionRepo) TouchLastSynced(ctx context.Context, userID, integrationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey(userID, integrationID)
	c, ok := r.items[key]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	c.LastSyncedAt = &now
	c.UpdatedAt = now
	r.items[key] = c
	return nil
}

func (r *ConnectionRepo) Delete(ctx context.Context, userID, integrationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey(userID, integrationID)
	if _, ok := r.items[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, key)
	return nil
}
