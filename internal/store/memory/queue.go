package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// QueueRepo implementa repository.QueueRepository en memoria.
// El id autoincremental define el orden FIFO, igual que el serial de la
// tabla queued_changes.
type QueueRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]repository.QueuedChange
}

// NewQueueRepo crea una cola vacía.
func NewQueueRepo() *QueueRepo {
	return &QueueRepo{nextID: 1, items: make(map[int64]repository.QueuedChange)}
}

func (r *QueueRepo) Append(ctx context.Context, ch repository.QueuedChange) (int64, error) {
	if !repository.ValidEntity(ch.Entity) {
		return 0, repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ch.ID = r.nextID
	r.nextID++
	if ch.Timestamp.IsZero() {
		ch.Timestamp = time.Now()
	}
	r.items[ch.ID] = ch
	return ch.ID, nil
}

func (r *QueueRepo) NextPending(ctx context.Context, entity repository.ChangeEntity, limit int) ([]repository.QueuedChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]repository.QueuedChange, 0)
	for _, ch := range r.items {
		if ch.Entity == entity {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *QueueRepo) MarkApplied(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *QueueRepo) Requeue(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	ch.Attempts++
	r.items[id] = ch
	return nil
}

func (r *QueueRepo) CountPending(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.items)), nil
}
