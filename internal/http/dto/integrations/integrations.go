// Package integrations contiene los DTOs de los endpoints de integraciones.
package integrations

import (
	"encoding/json"
	"time"
)

// IntegrationView es la vista de catálogo que recibe el frontend:
// descriptor público más el estado de conexión del usuario autenticado.
type IntegrationView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	LogoURL      string     `json:"logoUrl,omitempty"`
	Status       string     `json:"status"`
	IsConnected  bool       `json:"isConnected"`
	ConnectedAt  *time.Time `json:"connectedAt,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
}

// ConnectResponse devuelve la URL de autorización a la que el frontend
// debe redirigir al usuario, junto con el state emitido.
type ConnectResponse struct {
	Success bool   `json:"success"`
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

// SyncRequest es el body de POST /integrations/{id}/sync.
type SyncRequest struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

// DisconnectResponse confirma la desconexión local.
type DisconnectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
