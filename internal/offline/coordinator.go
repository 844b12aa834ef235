// Package offline implementa el modo degradado: cuando no hay
// conectividad, las mutaciones se encolan en orden y el caller recibe un
// resultado optimista con id temporal. Un worker asynq drena la cola en
// orden FIFO por entidad cuando vuelve la conexión. Las lecturas nunca
// pasan por acá.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/metrics"
	"github.com/mockforge/mockforge/internal/observability/logger"
)

// ErrOffline indica que no hay conectividad y la operación no admite
// encolado (p.ej. lecturas o retries abortados).
var ErrOffline = errors.New("offline: no connectivity")

// probeTTL: el resultado del probe de conectividad se cachea esta ventana
// para no pagar un ping por request.
const probeTTL = 5 * time.Second

// Probe verifica conectividad. nil error = online.
type Probe func(ctx context.Context) error

// taskEnqueuer es el subconjunto de asynq.Client que usa el coordinator.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Result es el resultado de una mutación ejecutada vía coordinator.
// Pending=true significa encolada: TempID es el id optimista que el
// cliente usa hasta que el drain replique el cambio real.
type Result struct {
	Pending bool   `json:"pending"`
	TempID  string `json:"tempId,omitempty"`
	QueueID int64  `json:"queueId,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Coordinator decide entre ejecutar una mutación directo o encolarla.
type Coordinator struct {
	queue    repository.QueueRepository
	probe    Probe
	enqueuer taskEnqueuer // nil: sin drain automático (tests, dev sin redis)

	baseDelay  time.Duration
	maxRetries int

	mu         sync.Mutex
	lastProbe  time.Time
	lastOnline bool
}

// NewCoordinator crea un Coordinator. probe no puede ser nil.
func NewCoordinator(queue repository.QueueRepository, probe Probe, enqueuer taskEnqueuer, baseDelay time.Duration, maxRetries int) *Coordinator {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Coordinator{
		queue:      queue,
		probe:      probe,
		enqueuer:   enqueuer,
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
	}
}

// Online reporta conectividad, cacheada por probeTTL.
func (c *Coordinator) Online(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastProbe) < probeTTL {
		return c.lastOnline
	}
	c.lastOnline = c.probe(ctx) == nil
	c.lastProbe = time.Now()
	return c.lastOnline
}

// InvalidateProbe fuerza un probe fresco en el próximo Online.
func (c *Coordinator) InvalidateProbe() {
	c.mu.Lock()
	c.lastProbe = time.Time{}
	c.mu.Unlock()
}

// Do ejecuta una mutación. Online: corre apply y retorna su resultado.
// Offline: encola el cambio y retorna un resultado optimista con id
// temporal; el caller responde como si hubiera funcionado.
func (c *Coordinator) Do(ctx context.Context, userID string, typ repository.ChangeType, entity repository.ChangeEntity, payload json.RawMessage, apply func(ctx context.Context) (any, error)) (*Result, error) {
	if !repository.ValidEntity(entity) {
		return nil, repository.ErrInvalidInput
	}

	if c.Online(ctx) {
		data, err := apply(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data}, nil
	}

	id, err := c.queue.Append(ctx, repository.QueuedChange{
		Type:      typ,
		Entity:    entity,
		Data:      payload,
		UserID:    userID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("offline: enqueue change: %w", err)
	}

	metrics.QueuedChanges.WithLabelValues(string(entity)).Inc()
	if n, err := c.queue.CountPending(ctx); err == nil {
		metrics.OfflineQueueDepth.Set(float64(n))
	}

	tempID := fmt.Sprintf("temp_%d", time.Now().UnixMilli())
	logger.FromWithFields(ctx,
		logger.UserID(userID),
		logger.Entity(string(entity)),
		logger.String("tempId", tempID),
	).Info("change queued offline")

	c.scheduleDrain(ctx, entity)
	return &Result{Pending: true, TempID: tempID, QueueID: id}, nil
}

// scheduleDrain agenda el task de drain para la entidad (best-effort).
func (c *Coordinator) scheduleDrain(ctx context.Context, entity repository.ChangeEntity) {
	if c.enqueuer == nil {
		return
	}
	task, err := NewDrainTask(entity)
	if err != nil {
		return
	}
	if _, err := c.enqueuer.EnqueueContext(ctx, task, asynq.Queue(queueName)); err != nil {
		logger.From(ctx).Warn("schedule drain failed", logger.Err(err))
	}
}

// Pending devuelve el total de cambios encolados (endpoint de estado).
func (c *Coordinator) Pending(ctx context.Context) (int64, error) {
	return c.queue.CountPending(ctx)
}
