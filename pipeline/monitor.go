package pipeline

import (
	"strings"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/bus"
)

// monitor drains one live graph's bus subscription on a dedicated
// goroutine. The producer side of the subscription never blocks; this
// goroutine is the only place bus messages are classified, so the cached
// lifecycle state observes a total order of transitions.
type monitor struct {
	m    *Manager
	sub  bus.Subscription
	done chan struct{}
}

// attachMonitor subscribes to the live graph's bus and starts the drain
// goroutine plus the periodic telemetry task.
func (m *Manager) attachMonitor() {
	mon := &monitor{
		m:    m,
		sub:  m.graph.Bus(),
		done: make(chan struct{}),
	}
	m.mon = mon
	go mon.run()

	interval := m.deps.QosInterval
	if interval <= 0 {
		interval = DefaultQosInterval
	}
	m.telemetryStop = make(chan struct{})
	go m.runTelemetry(interval, m.telemetryStop)
}

// detachMonitor cancels the telemetry task and the bus subscription, then
// waits for the drain goroutine to finish. After detach no telemetry or
// bus event can reference the graph.
func (m *Manager) detachMonitor() {
	if m.telemetryStop != nil {
		close(m.telemetryStop)
		m.telemetryStop = nil
	}
	if m.mon == nil {
		return
	}
	m.mon.sub.Unsubscribe()
	<-m.mon.done
	m.mon = nil
}

func (mon *monitor) run() {
	defer close(mon.done)
	for msg := range mon.sub.Messages() {
		mon.handle(msg)
	}
}

func (mon *monitor) handle(msg bus.Message) {
	m := mon.m
	if m.deps.Metrics != nil {
		m.deps.Metrics.RecordBusMessage(m.flowID, msg.Type.String())
	}

	switch msg.Type {
	case bus.MessageError:
		mon.handleError(msg)

	case bus.MessageWarning:
		m.broadcaster.Publish(Event{Type: EventWarning, Source: msg.Source, Text: msg.Text, Time: msg.Time})

	case bus.MessageInfo:
		m.broadcaster.Publish(Event{Type: EventInfo, Source: msg.Source, Text: msg.Text, Time: msg.Time})

	case bus.MessageEOS:
		m.broadcaster.Publish(Event{Type: EventEOS, Source: msg.Source, Time: msg.Time})

	case bus.MessageStateChanged:
		mon.handleStateChanged(msg)

	case bus.MessagePadAdded:
		m.handlePadAdded(msg.Source, msg.Pad)

	case bus.MessageQos:
		m.qos.Observe(msg.Source, msg.Qos)
	}
}

// handleError forwards graph errors as error events, except errors whose
// originating node belongs to a single-use ingest endpoint's subtree. Such
// nodes legitimately error on client disconnect; those errors are logged at
// warning level and trigger endpoint recovery instead of failing the
// pipeline. The suppression matches on ancestry alone, not error content,
// which can over-suppress; see the recovery controller notes.
func (mon *monitor) handleError(msg bus.Message) {
	m := mon.m

	if endpoint, ok := m.ingestAncestor(msg.Source); ok {
		m.deps.Logger.Warn("Suppressed error from ingest subtree",
			"flow_id", m.flowID, "source", msg.Source, "endpoint", endpoint, "error", msg.Text)

		if err := m.RecoverEndpoint(endpoint); err != nil {
			m.deps.Logger.Debug("Endpoint recovery not triggered",
				"flow_id", m.flowID, "endpoint", endpoint, "reason", err)
		}
		return
	}

	if m.deps.Metrics != nil {
		m.deps.Metrics.RecordError("pipeline", "bus")
	}
	m.broadcaster.Publish(Event{Type: EventError, Source: msg.Source, Text: msg.Text, Time: msg.Time})

	if m.props.AutoRestart {
		m.requestRestart()
	}
}

// handleStateChanged updates the cached lifecycle state when the message
// originates from the pipeline itself; child-node state changes are logged
// only.
func (mon *monitor) handleStateChanged(msg bus.Message) {
	m := mon.m

	if msg.Source != "" {
		m.deps.Logger.Debug("Child state changed",
			"flow_id", m.flowID, "source", msg.Source,
			"old", msg.OldState, "new", msg.NewState)
		return
	}

	m.setCachedState(msg.NewState)
	m.broadcaster.Publish(Event{Type: EventStateChanged, State: msg.NewState, Time: msg.Time})
}

// ingestAncestor resolves a bus message source to the single-use ingest
// endpoint it descends from, when any. A namespaced node descends from an
// ingest endpoint registered under the same block instance.
func (m *Manager) ingestAncestor(source string) (string, bool) {
	if source == "" {
		return "", false
	}

	m.epMu.Lock()
	defer m.epMu.Unlock()

	if _, ok := m.endpoints[source]; ok {
		return source, true
	}

	block, _, ok := strings.Cut(source, ":")
	if !ok {
		return "", false
	}
	for id := range m.endpoints {
		if epBlock, _, ok := strings.Cut(id, ":"); ok && epBlock == block {
			return id, true
		}
	}
	return "", false
}

// runTelemetry drains the quality-of-service aggregate on a fixed interval
// and emits one summary event per node that had activity.
func (m *Manager) runTelemetry(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.emitQosSummaries()
		}
	}
}

func (m *Manager) emitQosSummaries() {
	summaries := m.qos.Drain()
	for i := range summaries {
		s := summaries[i]
		if m.deps.Metrics != nil {
			m.deps.Metrics.RecordQosSignals(m.flowID, s.EventCount)
			m.deps.Metrics.RecordQosSummary(m.flowID)
		}
		if s.FallingBehind {
			m.deps.Logger.Warn("Node falling behind real time",
				"flow_id", m.flowID, "element", s.Element,
				"avg_proportion", s.AvgProportion, "events", s.EventCount)
		}
		m.broadcaster.Publish(Event{
			Type:   EventQosSummary,
			Source: s.Element,
			Qos:    &s,
		})
	}
}
