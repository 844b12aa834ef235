package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del servicio. Viven en un paquete propio para
// evitar ciclos de import entre las capas HTTP y de dominio.

var (
	SyncOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_operations_total",
		Help: "Operaciones de sync despachadas, por plataforma/operación/resultado",
	}, []string{"platform", "operation", "outcome"})

	SyncLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_latency_ms",
		Help:    "Latencia de operaciones de sync en milisegundos",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	}, []string{"platform"})

	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_refreshes_total",
		Help: "Refrescos de access token, por plataforma/resultado",
	}, []string{"platform", "outcome"})

	OAuthCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_callbacks_total",
		Help: "Callbacks OAuth procesados, por plataforma/resultado",
	}, []string{"platform", "outcome"})

	OfflineQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_depth",
		Help: "Cambios pendientes en la cola offline",
	})

	QueuedChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_queued_changes_total",
		Help: "Cambios encolados en modo offline, por entidad",
	}, []string{"entity"})

	PaymentsSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Transacciones liquidadas, por estado final",
	}, []string{"status"})
)

// Register registra todas las métricas en el registry dado (o el default
// si es nil). Tolera registros duplicados.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		SyncOperations, SyncLatency, TokenRefreshes, OAuthCallbacks,
		OfflineQueueDepth, QueuedChanges, PaymentsSettled,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
