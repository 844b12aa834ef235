package offline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/observability/logger"
)

const (
	// queueName es la cola asynq dedicada al drain offline.
	queueName = "offline"

	// TaskTypeDrain es el task que drena los cambios pendientes de una entidad.
	TaskTypeDrain = "offline:drain"
)

// drainBatchSize: cambios leídos por iteración del drain.
const drainBatchSize = 50

type drainPayload struct {
	Entity string `json:"entity"`
}

// NewDrainTask arma el task asynq de drain para una entidad.
func NewDrainTask(entity repository.ChangeEntity) (*asynq.Task, error) {
	b, err := json.Marshal(drainPayload{Entity: string(entity)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDrain, b), nil
}

// Applier replica un cambio encolado contra el backend una vez que hay
// conectividad. La capa de servicios provee la implementación real.
type Applier interface {
	ApplyChange(ctx context.Context, ch repository.QueuedChange) error
}

// DrainWorker consume la cola de cambios offline en orden FIFO por entidad.
type DrainWorker struct {
	queue       repository.QueueRepository
	applier     Applier
	maxAttempts int
}

// NewDrainWorker crea el worker de drain.
func NewDrainWorker(queue repository.QueueRepository, applier Applier, maxAttempts int) *DrainWorker {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &DrainWorker{queue: queue, applier: applier, maxAttempts: maxAttempts}
}

// Register registra el handler en el mux de asynq.
func (w *DrainWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeDrain, w.ProcessTask)
}

// ProcessTask implementa asynq.Handler.
func (w *DrainWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p drainPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("drain payload: %v: %w", err, asynq.SkipRetry)
	}
	entity := repository.ChangeEntity(p.Entity)
	if !repository.ValidEntity(entity) {
		return fmt.Errorf("drain: unknown entity %q: %w", p.Entity, asynq.SkipRetry)
	}
	return w.Drain(ctx, entity)
}

// Drain replica los cambios pendientes de la entidad en orden de encolado.
//
// Un fallo corta el drain (el orden importa: un update no puede adelantar
// al create que lo precede). El cambio fallido se re-encola con attempts+1;
// agotados los intentos se descarta con log para no bloquear la cola entera.
func (w *DrainWorker) Drain(ctx context.Context, entity repository.ChangeEntity) error {
	log := logger.FromWithFields(ctx, logger.Entity(string(entity)))

	for {
		batch, err := w.queue.NextPending(ctx, entity, drainBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for _, ch := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			applyErr := w.applier.ApplyChange(ctx, ch)
			if applyErr == nil {
				if err := w.queue.MarkApplied(ctx, ch.ID); err != nil {
					return err
				}
				continue
			}

			if ch.Attempts+1 >= w.maxAttempts {
				// Cambio envenenado: descartarlo destraba la cola.
				log.Error("queued change dropped after max attempts",
					logger.Any("queueId", ch.ID),
					logger.Attempt(ch.Attempts+1),
					logger.Err(applyErr),
				)
				if err := w.queue.MarkApplied(ctx, ch.ID); err != nil {
					return err
				}
				continue
			}

			if err := w.queue.Requeue(ctx, ch.ID); err != nil {
				return err
			}
			return fmt.Errorf("drain %s: change %d failed: %w", entity, ch.ID, applyErr)
		}
	}
}
