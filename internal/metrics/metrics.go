package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "calllogger"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics holds the counters for one running instance. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	webhooksReceived *prometheus.CounterVec
	recordsDelivered *prometheus.CounterVec
	tokenExchanges   *prometheus.CounterVec
	identityLookups  *prometheus.CounterVec
	eventsIgnored    prometheus.Counter
	backgroundPanics prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.webhooksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_received_total",
		Help:      "Webhook notifications received by event name",
	}, []string{"event"})
	m.recordsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_delivered_total",
		Help:      "Destination page writes by result",
	}, []string{"result"})
	m.tokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_exchanges_total",
		Help:      "Client-credentials token exchanges by result",
	}, []string{"result"})
	m.identityLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_lookups_total",
		Help:      "Host identity lookups by result",
	}, []string{"result"})
	m.eventsIgnored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_ignored_total",
		Help:      "Webhook events with no canonical mapping",
	})
	m.backgroundPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "background_panics_total",
		Help:      "Panics recovered in background event tasks",
	})

	m.registry.MustRegister(
		m.webhooksReceived, m.recordsDelivered, m.tokenExchanges,
		m.identityLookups, m.eventsIgnored, m.backgroundPanics,
	)

	return m
}

func (m *Metrics) WebhookReceived(event string) {
	if m == nil {
		return
	}
	m.webhooksReceived.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordDelivered(result string) {
	if m == nil {
		return
	}
	m.recordsDelivered.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenExchange(result string) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(result).Inc()
}

func (m *Metrics) IdentityLookup(result string) {
	if m == nil {
		return
	}
	m.identityLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) EventIgnored() {
	if m == nil {
		return
	}
	m.eventsIgnored.Inc()
}

func (m *Metrics) BackgroundPanic() {
	if m == nil {
		return
	}
	m.backgroundPanics.Inc()
}

// Handler exposes this instance's registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
