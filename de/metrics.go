package de

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus instruments of an optimizer.  A nil *Metrics
// records nothing.
type Metrics struct {
	Generation   prometheus.Gauge
	BestFitness  prometheus.Gauge
	Episodes     prometheus.Counter
	Immigrations prometheus.Counter
	GenSeconds   prometheus.Histogram
}

// NewMetrics creates the instruments and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Generation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "flyopt",
			Subsystem: "de",
			Name:      "generation",
			Help:      "Current generation of the optimizer",
		}),
		BestFitness: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "flyopt",
			Subsystem: "de",
			Name:      "best_fitness",
			Help:      "Best fitness of the current generation",
		}),
		Episodes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "flyopt",
			Subsystem: "de",
			Name:      "episodes_total",
			Help:      "Fly scan episodes evaluated",
		}),
		Immigrations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "flyopt",
			Subsystem: "de",
			Name:      "immigrations_total",
			Help:      "Worst individuals replaced by random ones after a stall",
		}),
		GenSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flyopt",
			Subsystem: "de",
			Name:      "generation_seconds",
			Help:      "Wall time of one generation",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

func (m *Metrics) generation(g int, best, seconds float64) {
	if m == nil {
		return
	}
	m.Generation.Set(float64(g))
	m.BestFitness.Set(best)
	m.GenSeconds.Observe(seconds)
}

func (m *Metrics) episodes(n int) {
	if m == nil {
		return
	}
	m.Episodes.Add(float64(n))
}

func (m *Metrics) immigration() {
	if m == nil {
		return
	}
	m.Immigrations.Inc()
}
