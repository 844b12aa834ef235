package repository

import (
	"context"
	"time"
)

// ChangeType es el tipo de mutación encolada.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEntity es la entidad de aplicación afectada por la mutación.
type ChangeEntity string

const (
	EntityProject  ChangeEntity = "project"
	EntityBrandKit ChangeEntity = "brandKit"
	EntityTemplate ChangeEntity = "template"
	EntityMockup   ChangeEntity = "mockup"
	EntityVideo    ChangeEntity = "video"
)

// ValidEntity verifica que la entidad sea una de las conocidas.
func ValidEntity(e ChangeEntity) bool {
	switch e {
	case EntityProject, EntityBrandKit, EntityTemplate, EntityMockup, EntityVideo:
		return true
	}
	return false
}

// QueuedChange es una mutación diferida por falta de conectividad.
// Append-only; el drain la consume en orden FIFO por entidad.
type QueuedChange struct {
	ID        int64 // serial: define el orden FIFO
	Type      ChangeType
	Entity    ChangeEntity
	Data      []byte // payload JSON de la mutación
	UserID    string
	Timestamp time.Time
	Attempts  int
}

// QueueRepository define operaciones sobre queued_changes.
type QueueRepository interface {
	// Append agrega un cambio al final de la cola. Nunca sobreescribe.
	Append(ctx context.Context, ch QueuedChange) (int64, error)

	// NextPending devuelve hasta limit cambios pendientes de una entidad,
	// en orden de encolado (id ascendente).
	NextPending(ctx context.Context, entity ChangeEntity, limit int) ([]QueuedChange, error)

	// MarkApplied elimina un cambio ya replicado.
	MarkApplied(ctx context.Context, id int64) error

	// Requeue incrementa attempts y deja el cambio pendiente.
	Requeue(ctx context.Context, id int64) error

	// CountPending devuelve el total de cambios pendientes (para métricas).
	CountPending(ctx context.Context) (int64, error)
}
