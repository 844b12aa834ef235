// Package offline contiene los DTOs de los endpoints de modo offline.
package offline

import "encoding/json"

// ChangeRequest es una mutación de aplicación enviada por el cliente.
type ChangeRequest struct {
	Type   string          `json:"type"`   // create | update | delete
	Entity string          `json:"entity"` // project | brandKit | template | mockup | video
	Data   json.RawMessage `json:"data"`
}

// StatusResponse describe el estado de conectividad y la cola pendiente.
type StatusResponse struct {
	Online         bool  `json:"online"`
	PendingChanges int64 `json:"pendingChanges"`
}
