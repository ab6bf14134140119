package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/btgateway/internal/workers"
)

// pollResultOK labels a successful device poll; faults use their kind.
const pollResultOK = "ok"

// Metrics holds the gateway's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	cyclesSkipped   *prometheus.CounterVec
	polls           *prometheus.CounterVec
	pollDuration    *prometheus.HistogramVec
	published       *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	reachable       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btgateway_cycles_total",
			Help: "Poll cycles completed per worker",
		}, []string{"worker"}),
		cyclesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btgateway_cycles_skipped_total",
			Help: "Poll cycles skipped because the previous cycle was still running",
		}, []string{"worker"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btgateway_device_polls_total",
			Help: "Device polls by result (ok or fault kind)",
		}, []string{"worker", "result"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "btgateway_device_poll_duration_seconds",
			Help:    "Time spent in a single device driver call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"worker"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btgateway_messages_published_total",
			Help: "MQTT messages published by kind (state or discovery)",
		}, []string{"worker", "kind"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btgateway_publish_failures_total",
			Help: "MQTT publishes that returned an error",
		}, []string{"worker", "kind"}),
		reachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "btgateway_device_reachable",
			Help: "1 if the device answered its last poll, 0 otherwise",
		}, []string{"worker", "device"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.cyclesSkipped,
		m.polls,
		m.pollDuration,
		m.published,
		m.publishFailures,
		m.reachable,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records a completed poll cycle.
func (m *Metrics) ObserveCycle(cycle workers.Cycle) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(cycle.Worker).Inc()
	for _, r := range cycle.Results {
		result := pollResultOK
		reachable := 1.0
		if r.Fault != nil {
			result = r.Fault.Kind
			reachable = 0
		}
		m.polls.WithLabelValues(cycle.Worker, result).Inc()
		m.pollDuration.WithLabelValues(cycle.Worker).Observe(r.Duration.Seconds())
		m.reachable.WithLabelValues(cycle.Worker, r.Device.Name).Set(reachable)
	}
}

// ObservePublish records one publish attempt.
func (m *Metrics) ObservePublish(worker string, kind workers.Kind, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishFailures.WithLabelValues(worker, kind.String()).Inc()
		return
	}
	m.published.WithLabelValues(worker, kind.String()).Inc()
}

// ObserveSkip records a skipped cycle.
func (m *Metrics) ObserveSkip(worker string) {
	if m == nil {
		return
	}
	m.cyclesSkipped.WithLabelValues(worker).Inc()
}
