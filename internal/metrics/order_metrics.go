package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Причины неудачного оформления заказа (label reason).
const (
	ReasonEmptyCart         = "empty_cart"
	ReasonValidation        = "validation"
	ReasonOutOfStock        = "out_of_stock"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonInternal          = "internal"
)

// OrderMetrics содержит метрики оформления заказов и смены статусов.
// Методы безопасно вызывать на nil.
type OrderMetrics struct {
	created          prometheus.Counter
	creationFailed   *prometheus.CounterVec
	creationDuration prometheus.Histogram
	itemsPerOrder    prometheus.Histogram

	transitions         *prometheus.CounterVec
	transitionsRejected prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в указанном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		created: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created from carts",
		}),
		creationFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_creation_failed_total",
			Help: "Total number of rejected checkouts grouped by reason",
		}, []string{"reason"}),
		creationDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_creation_duration_seconds",
			Help:    "Duration of checkout transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		itemsPerOrder: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_items_per_order",
			Help:    "Number of line items per created order",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_status_transitions_total",
			Help: "Total number of applied order status transitions",
		}, []string{"from", "to"}),
		transitionsRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_status_rejected_total",
			Help: "Total number of rejected order status transitions",
		}),
	}
}

// RecordOrderCreated фиксирует успешное оформление заказа.
func (m *OrderMetrics) RecordOrderCreated(items int, duration time.Duration) {
	if m == nil {
		return
	}
	m.created.Inc()
	m.itemsPerOrder.Observe(float64(items))
	m.creationDuration.Observe(duration.Seconds())
}

// RecordOrderCreationFailed фиксирует отказ с причиной, выведенной из ошибки.
func (m *OrderMetrics) RecordOrderCreationFailed(err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.creationFailed.WithLabelValues(FailureReason(err)).Inc()
	m.creationDuration.Observe(duration.Seconds())
}

// RecordStatusTransition фиксирует применённый переход.
func (m *OrderMetrics) RecordStatusTransition(from, to domain.OrderStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordStatusRejected фиксирует отклонённый переход.
func (m *OrderMetrics) RecordStatusRejected() {
	if m == nil {
		return
	}
	m.transitionsRejected.Inc()
}

// FailureReason сводит ошибку оформления к ограниченному набору значений label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return ReasonEmptyCart
	case errors.Is(err, domain.ErrValidation):
		return ReasonValidation
	case errors.Is(err, domain.ErrOutOfStock):
		return ReasonOutOfStock
	case errors.Is(err, domain.ErrInsufficientStock):
		return ReasonInsufficientStock
	default:
		return ReasonInternal
	}
}
