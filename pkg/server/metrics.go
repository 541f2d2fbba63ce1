package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kacperjurak/gopolcore"
)

// Metrics exposes analysis counters and latency on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	analyses prometheus.Counter
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates and registers the analysis collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gopol_analyses_total",
			Help: "Total number of waveform analyses attempted.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gopol_analysis_failures_total",
			Help: "Failed waveform analyses by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gopol_analysis_duration_seconds",
			Help:    "Waveform analysis duration.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	m.registry.MustRegister(m.analyses, m.failures, m.duration)
	return m
}

// ObserveAnalysis records one analysis outcome.
func (m *Metrics) ObserveAnalysis(duration time.Duration, err error) {
	m.analyses.Inc()
	m.duration.Observe(duration.Seconds())
	if err != nil {
		m.failures.WithLabelValues(failureReason(err)).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func failureReason(err error) string {
	switch {
	// ErrInsufficientBaselineData wraps ErrInvalidWaveform, so it must be
	// checked first to keep its reason distinct.
	case errors.Is(err, gopolcore.ErrInsufficientBaselineData):
		return "insufficient_baseline"
	case errors.Is(err, gopolcore.ErrInvalidWaveform):
		return "invalid_waveform"
	case errors.Is(err, gopolcore.ErrNoSwitchingPeakFound):
		return "no_peak"
	case errors.Is(err, gopolcore.ErrDegenerateIntegrationWindow):
		return "degenerate_window"
	case errors.Is(err, gopolcore.ErrInconsistentPolarity):
		return "inconsistent_polarity"
	default:
		return "other"
	}
}
