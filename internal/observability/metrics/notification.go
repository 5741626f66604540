package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/preloadwatch/internal/errors"
)

// NotificationMetrics contains the delivery metrics for notifiers.
type NotificationMetrics struct {
	DeliveriesTotal *prometheus.CounterVec // Delivery attempts by notifier and status
	DeliveryErrors  *prometheus.CounterVec // Failed deliveries by notifier and error category

	registry *prometheus.Registry
}

// NewNotificationMetrics creates the collectors and registers them with
// registry.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preloadwatch_notifier_deliveries_total",
			Help: "Total number of report deliveries by notifier and status",
		},
		[]string{"notifier", "status"}, // status: success, error
	)

	m.DeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preloadwatch_notifier_delivery_errors_total",
			Help: "Total number of failed deliveries by notifier and error category",
		},
		[]string{"notifier", "error_category"},
	)
}

// ObserveDelivery records one delivery attempt. It satisfies
// notify.DeliveryObserver.
func (m *NotificationMetrics) ObserveDelivery(notifier string, err error) {
	notifier = labelOrUnknown(notifier)
	if err == nil {
		m.DeliveriesTotal.WithLabelValues(notifier, StatusSuccess).Inc()
		return
	}
	m.DeliveriesTotal.WithLabelValues(notifier, StatusError).Inc()
	m.DeliveryErrors.WithLabelValues(notifier, errorCategory(err)).Inc()
}

func errorCategory(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return labelOrUnknown(ee.GetCategory())
	}
	return string(errors.CategoryGeneric)
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryErrors.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryErrors.Describe(ch)
}
