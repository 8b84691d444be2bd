package metrics

import "github.com/prometheus/client_golang/prometheus"

// Исходы проверки Idempotency-Key.
const (
	GuardStarted    = "started"
	GuardReplayed   = "replayed"
	GuardInProgress = "in_progress"
	GuardError      = "error"
)

// IdempotencyMetrics описывает защиту от повторного оформления заказа
// и очистку просроченных ключей.
type IdempotencyMetrics struct {
	guardResults       *prometheus.CounterVec
	cleanupRuns        *prometheus.CounterVec
	cleanupDeleted     prometheus.Counter
	cleanupLastDeleted prometheus.Gauge
}

// NewIdempotencyMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewIdempotencyMetrics() *IdempotencyMetrics {
	return NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewIdempotencyMetricsWithRegisterer регистрирует метрики в указанном registerer.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		guardResults: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_idempotency_requests_total",
			Help: "Total number of idempotent order requests grouped by result.",
		}, []string{"result"}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency keys.",
		}),
		cleanupLastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_idempotency_cleanup_last_deleted",
			Help: "Number of keys deleted during the last cleanup run.",
		}),
	}
}

// RecordGuard учитывает исход проверки ключа.
func (m *IdempotencyMetrics) RecordGuard(result string) {
	if m == nil {
		return
	}
	m.guardResults.WithLabelValues(result).Inc()
}

// RecordCleanup учитывает прогон очистки: deleted ключей либо ошибку.
func (m *IdempotencyMetrics) RecordCleanup(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.cleanupRuns.WithLabelValues("ok").Inc()
	m.cleanupDeleted.Add(float64(deleted))
	m.cleanupLastDeleted.Set(float64(deleted))
}
