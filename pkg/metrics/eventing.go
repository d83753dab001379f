package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EventingMetrics records outcomes across the event pipeline: internal bus
// deliveries, consumer failures, and external publish completions.
type EventingMetrics struct {
	deliveries      *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	publishSuccess  *prometheus.CounterVec
	publishFailure  *prometheus.CounterVec
	routingMisses   prometheus.Counter
}

// NewEventingMetrics registers the pipeline metrics on the provided registerer.
func NewEventingMetrics(reg prometheus.Registerer) *EventingMetrics {
	if reg == nil {
		return &EventingMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_deliveries_total",
		Help: "Events delivered to internal bus subscribers.",
	}, []string{"address", "consumer"})
	handlerFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_handler_failures_total",
		Help: "Subscriber apply errors, isolated per consumer.",
	}, []string{"address", "consumer"})
	publishSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "external_publish_success_total",
		Help: "Acknowledged external broker sends.",
	}, []string{"topic", "mode"})
	publishFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "external_publish_failure_total",
		Help: "External broker sends that exhausted producer retries.",
	}, []string{"topic", "mode"})
	routingMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routing_misses_total",
		Help: "Events resolved to the default address by fallback.",
	})
	reg.MustRegister(deliveries, handlerFailures, publishSuccess, publishFailure, routingMisses)
	return &EventingMetrics{
		deliveries:      deliveries,
		handlerFailures: handlerFailures,
		publishSuccess:  publishSuccess,
		publishFailure:  publishFailure,
		routingMisses:   routingMisses,
	}
}

// IncDelivery counts one delivery to a subscriber.
func (m *EventingMetrics) IncDelivery(address, consumer string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(address), normalizeLabel(consumer)).Inc()
}

// IncHandlerFailure counts one isolated subscriber failure.
func (m *EventingMetrics) IncHandlerFailure(address, consumer string) {
	if m == nil || m.handlerFailures == nil {
		return
	}
	m.handlerFailures.WithLabelValues(normalizeLabel(address), normalizeLabel(consumer)).Inc()
}

// IncPublishSuccess counts one acknowledged external send.
func (m *EventingMetrics) IncPublishSuccess(topic, mode string) {
	if m == nil || m.publishSuccess == nil {
		return
	}
	m.publishSuccess.WithLabelValues(normalizeLabel(topic), normalizeLabel(mode)).Inc()
}

// IncPublishFailure counts one external send that gave up.
func (m *EventingMetrics) IncPublishFailure(topic, mode string) {
	if m == nil || m.publishFailure == nil {
		return
	}
	m.publishFailure.WithLabelValues(normalizeLabel(topic), normalizeLabel(mode)).Inc()
}

// IncRoutingMiss counts one fallback to the default address.
func (m *EventingMetrics) IncRoutingMiss() {
	if m == nil || m.routingMisses == nil {
		return
	}
	m.routingMisses.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
