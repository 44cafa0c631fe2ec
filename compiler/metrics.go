package compiler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/metric"
)

// compilerMetrics holds Prometheus metrics for flow compilation.
type compilerMetrics struct {
	compiles        *prometheus.CounterVec   // By flow_id and status (success/failure)
	compileDuration *prometheus.HistogramVec // By flow_id
	compileErrors   *prometheus.CounterVec   // By flow_id and error_class
}

// newCompilerMetrics creates and registers compiler metrics with the provided registry.
func newCompilerMetrics(registry *metric.MetricsRegistry) (*compilerMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &compilerMetrics{
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strom",
			Subsystem: "compiler",
			Name:      "compiles_total",
			Help:      "Total number of flow compile operations",
		}, []string{"flow_id", "status"}),

		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "strom",
			Subsystem: "compiler",
			Name:      "compile_duration_seconds",
			Help:      "Flow compile duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"flow_id"}),

		compileErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strom",
			Subsystem: "compiler",
			Name:      "compile_errors_total",
			Help:      "Total number of flow compile errors",
		}, []string{"flow_id", "error_class"}),
	}

	if err := registry.RegisterCounterVec("compiler", "compiles", m.compiles); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("compiler", "compile_duration", m.compileDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("compiler", "compile_errors", m.compileErrors); err != nil {
		return nil, err
	}

	return m, nil
}

// recordCompile records one compile operation.
func (m *compilerMetrics) recordCompile(flowID string, duration float64, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
		m.compileErrors.WithLabelValues(flowID, errors.Classify(err).String()).Inc()
	}

	m.compiles.WithLabelValues(flowID, status).Inc()
	m.compileDuration.WithLabelValues(flowID).Observe(duration)
}
