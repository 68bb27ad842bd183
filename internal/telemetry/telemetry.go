// Package telemetry exposes Prometheus metrics for the orchestration engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trender_provider_calls_total",
		Help: "Provider call attempts by outcome.",
	}, []string{"provider", "outcome"})

	providerDisabled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trender_provider_disabled_total",
		Help: "Times a provider was disabled after exhausting its credential pool.",
	}, []string{"provider"})

	recordsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trender_provider_records_total",
		Help: "Records returned by each provider.",
	}, []string{"provider"})

	fanoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trender_fanout_duration_seconds",
		Help:    "Wall time of one full search fan-out.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	generationIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trender_generation_iterations",
		Help:    "Conversation iterations used per generation request.",
		Buckets: []float64{1, 2, 3, 4, 5},
	})
)

// Telemetry records engine events into the process-wide Prometheus registry.
// It satisfies the engine's Recorder interface.
type Telemetry struct{}

func New() *Telemetry { return &Telemetry{} }

func (t *Telemetry) ProviderCall(provider, outcome string) {
	providerCalls.WithLabelValues(provider, outcome).Inc()
}

func (t *Telemetry) ProviderDisabled(provider string) {
	providerDisabled.WithLabelValues(provider).Inc()
}

func (t *Telemetry) RecordsFetched(provider string, n int) {
	recordsFetched.WithLabelValues(provider).Add(float64(n))
}

func (t *Telemetry) FanoutDuration(seconds float64) {
	fanoutDuration.Observe(seconds)
}

func (t *Telemetry) GenerationIterations(n int) {
	generationIterations.Observe(float64(n))
}
