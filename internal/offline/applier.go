package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
)

// HTTPApplier replica cambios drenados contra el backend de aplicación
// vía POST. El backend de proyectos vive en otro servicio: este applier
// es el puente cuando offline.apply_url está configurado.
type HTTPApplier struct {
	url  string
	http *http.Client
}

// NewHTTPApplier crea el applier. client nil usa un default con timeout.
func NewHTTPApplier(applyURL string, client *http.Client) *HTTPApplier {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPApplier{url: applyURL, http: client}
}

// appliedChange es el cuerpo que recibe el backend por cada mutación.
type appliedChange struct {
	Type      string          `json:"type"`
	Entity    string          `json:"entity"`
	Data      json.RawMessage `json:"data"`
	UserID    string          `json:"userId"`
	Timestamp time.Time       `json:"timestamp"`
}

// ApplyChange implementa Applier. Cualquier respuesta no-2xx es un error:
// el worker decide si re-encolar o descartar según los intentos.
func (a *HTTPApplier) ApplyChange(ctx context.Context, ch repository.QueuedChange) error {
	body, err := json.Marshal(appliedChange{
		Type:      string(ch.Type),
		Entity:    string(ch.Entity),
		Data:      ch.Data,
		UserID:    ch.UserID,
		Timestamp: ch.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("offline: encode change %d: %w", ch.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("offline: apply change %d: %w", ch.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("offline: apply change %d: status %d: %s",
			ch.ID, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
