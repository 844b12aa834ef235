// Package offline expone los endpoints de modo offline: estado de
// conectividad y mutaciones con encolado transparente.
package offline

import (
	"context"
	"errors"
	"net/http"

	"github.com/mockforge/mockforge/internal/domain/repository"
	dto "github.com/mockforge/mockforge/internal/http/dto/offline"
	httperrors "github.com/mockforge/mockforge/internal/http/errors"
	"github.com/mockforge/mockforge/internal/http/helpers"
	"github.com/mockforge/mockforge/internal/http/middlewares"
	"github.com/mockforge/mockforge/internal/offline"
)

// Applier ejecuta una mutación contra el backend de aplicación cuando hay
// conectividad. Es el mismo apply que usa el drain de la cola.
type Applier func(ctx context.Context, userID string, typ repository.ChangeType, entity repository.ChangeEntity, data []byte) (any, error)

// Controller maneja los endpoints de offline.
type Controller struct {
	coordinator *offline.Coordinator
	apply       Applier
}

// NewController crea el controller.
func NewController(c *offline.Coordinator, apply Applier) *Controller {
	return &Controller{coordinator: c, apply: apply}
}

// Status maneja GET /api/v1/offline/status.
func (c *Controller) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := c.coordinator.Pending(r.Context())
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{
		Online:         c.coordinator.Online(r.Context()),
		PendingChanges: pending,
	})
}

// Change maneja POST /api/v1/changes: ejecuta la mutación directo si hay
// conectividad, o la encola y responde optimista con un id temporal.
func (c *Controller) Change(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	typ := repository.ChangeType(req.Type)
	entity := repository.ChangeEntity(req.Entity)
	if typ != repository.ChangeCreate && typ != repository.ChangeUpdate && typ != repository.ChangeDelete {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("type debe ser create, update o delete"))
		return
	}

	userID := middlewares.GetUserID(r.Context())
	result, err := c.coordinator.Do(r.Context(), userID, typ, entity, req.Data, func(ctx context.Context) (any, error) {
		return c.apply(ctx, userID, typ, entity, req.Data)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidInput):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("entity desconocida"))
		case errors.Is(err, offline.ErrOffline):
			httperrors.WriteError(w, httperrors.ErrOffline)
		default:
			httperrors.WriteError(w, err)
		}
		return
	}

	status := http.StatusOK
	if result.Pending {
		status = http.StatusAccepted
	}
	helpers.WriteJSON(w, status, result)
}
