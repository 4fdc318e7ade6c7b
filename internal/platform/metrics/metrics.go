package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	contractsv1 "merkledrop/contracts/gen/events/v1"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "merkledrop"

// Metrics owns a private registry so tests and processes never share collectors.
type Metrics struct {
	registry *prometheus.Registry

	// requests counts HTTP requests.
	// Labels: route, method, code
	requests *prometheus.CounterVec

	// requestDuration measures HTTP handling latency.
	// Labels: route
	requestDuration *prometheus.HistogramVec

	// claims counts claim attempts by result.
	// Labels: outcome (paid, not_participant, claimed, invalid_proof, transfer_failed, rejected)
	claims *prometheus.CounterVec

	// published counts relayed integration events.
	// Labels: topic, result (ok, error)
	published *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "total",
			Help:      "Claim attempts by outcome",
		}, []string{"outcome"}),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Integration events handed to the event bus",
		}, []string{"topic", "result"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveClaim(outcome string) {
	m.claims.WithLabelValues(outcome).Inc()
}

// Publisher matches the outbox relay's publishing port.
type Publisher interface {
	Publish(ctx context.Context, topic string, event contractsv1.Envelope) error
}

type instrumentedPublisher struct {
	next    Publisher
	metrics *Metrics
}

// InstrumentPublisher counts every publish attempt made through next.
func (m *Metrics) InstrumentPublisher(next Publisher) Publisher {
	return instrumentedPublisher{next: next, metrics: m}
}

func (p instrumentedPublisher) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	err := p.next.Publish(ctx, topic, event)
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.metrics.published.WithLabelValues(topic, result).Inc()
	return err
}
