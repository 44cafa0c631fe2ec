package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all engine-level metrics (not flow-specific)
type Metrics struct {
	// Pipeline metrics
	PipelineState *prometheus.GaugeVec
	BusMessages   *prometheus.CounterVec
	EventsEmitted *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec

	// Telemetry metrics
	QosSignals   *prometheus.CounterVec
	QosSummaries *prometheus.CounterVec

	// Endpoint metrics
	EndpointRecreations *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all engine metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PipelineState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "strom",
				Subsystem: "pipeline",
				Name:      "state",
				Help:      "Pipeline lifecycle state (0=constructing, 1=ready, 2=playing, 3=paused, 4=stopped, 5=destroyed, 6=error)",
			},
			[]string{"flow_id"},
		),

		BusMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "bus",
				Name:      "messages_total",
				Help:      "Total number of live-graph bus messages observed",
			},
			[]string{"flow_id", "type"},
		),

		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Total number of classified events emitted to subscribers",
			},
			[]string{"flow_id", "type"},
		),

		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Total number of events dropped due to slow subscribers",
			},
			[]string{"flow_id"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		QosSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "qos",
				Name:      "signals_total",
				Help:      "Total number of raw quality-of-service signals aggregated",
			},
			[]string{"flow_id"},
		),

		QosSummaries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "qos",
				Name:      "summaries_total",
				Help:      "Total number of periodic quality-of-service summaries emitted",
			},
			[]string{"flow_id"},
		),

		EndpointRecreations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "endpoint",
				Name:      "recreations_total",
				Help:      "Total number of listener-node recreations",
			},
			[]string{"flow_id", "endpoint"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "strom",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "strom",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordPipelineState updates the pipeline state gauge
func (c *Metrics) RecordPipelineState(flowID string, state int) {
	c.PipelineState.WithLabelValues(flowID).Set(float64(state))
}

// RecordBusMessage increments the bus message counter
func (c *Metrics) RecordBusMessage(flowID, messageType string) {
	c.BusMessages.WithLabelValues(flowID, messageType).Inc()
}

// RecordEventEmitted increments the emitted event counter
func (c *Metrics) RecordEventEmitted(flowID, eventType string) {
	c.EventsEmitted.WithLabelValues(flowID, eventType).Inc()
}

// RecordEventDropped increments the dropped event counter
func (c *Metrics) RecordEventDropped(flowID string) {
	c.EventsDropped.WithLabelValues(flowID).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordQosSignals adds to the raw QoS signal counter
func (c *Metrics) RecordQosSignals(flowID string, count int) {
	c.QosSignals.WithLabelValues(flowID).Add(float64(count))
}

// RecordQosSummary increments the QoS summary counter
func (c *Metrics) RecordQosSummary(flowID string) {
	c.QosSummaries.WithLabelValues(flowID).Inc()
}

// RecordEndpointRecreation increments the endpoint recreation counter
func (c *Metrics) RecordEndpointRecreation(flowID, endpoint string) {
	c.EndpointRecreations.WithLabelValues(flowID, endpoint).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments the reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
