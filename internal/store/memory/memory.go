// Package memory implementa los repositorios sobre mapas en memoria.
// Se usa en desarrollo (storage.driver: memory) y en tests. Todos los
// métodos son seguros para uso concurrente; los datos se pierden al
// reiniciar el proceso.
package memory

// Store agrupa todos los repositorios en memoria.
type Store struct {
	Integrations  *IntegrationRepo
	Connections   *ConnectionRepo
	States        *StateRepo
	Queue         *QueueRepo
	Payments      *PaymentRepo
	Subscriptions *SubscriptionRepo
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		Integrations:  NewIntegrationRepo(),
		Connections:   NewConnectionRepo(),
		States:        NewStateRepo(),
		Queue:         NewQueueRepo(),
		Payments:      NewPaymentRepo(),
		Subscriptions: NewSubscriptionRepo(),
	}
}

func cloneSettings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
