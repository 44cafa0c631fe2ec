package pipeline

import (
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/metric"
)

// EventType classifies events emitted to pipeline subscribers
type EventType string

// Event types produced by the monitor and the telemetry drain task
const (
	EventError        EventType = "error"
	EventWarning      EventType = "warning"
	EventInfo         EventType = "info"
	EventEOS          EventType = "eos"
	EventStateChanged EventType = "state_changed"
	EventQosSummary   EventType = "qos_summary"
)

// Event is one classified entry on a pipeline's outward event stream
type Event struct {
	Type   EventType          `json:"type"`
	FlowID string             `json:"flow_id"`
	Source string             `json:"source,omitempty"`
	Text   string             `json:"text,omitempty"`
	State  flow.PipelineState `json:"state,omitempty"`
	Qos    *QosSummary        `json:"qos,omitempty"`
	Time   time.Time          `json:"time"`
}

// EventPublisher pushes classified events to an external transport.
// Implementations must not block the caller; package natsclient provides one.
type EventPublisher interface {
	PublishEvent(ev Event) error
}

// Broadcaster fans classified events out to in-process subscribers and an
// optional external publisher. Publish never blocks: a subscriber that
// cannot keep up has events dropped and counted, not queued unboundedly.
type Broadcaster struct {
	flowID    string
	publisher EventPublisher
	metrics   *metric.Metrics

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBroadcaster creates an event broadcaster for one flow. Both publisher
// and metrics are optional.
func NewBroadcaster(flowID string, publisher EventPublisher, metrics *metric.Metrics) *Broadcaster {
	return &Broadcaster{
		flowID:    flowID,
		publisher: publisher,
		metrics:   metrics,
		subs:      make(map[int]chan Event),
	}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel function detaches the subscriber and closes its channel;
// it is safe to call more than once.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers without blocking
func (b *Broadcaster) Publish(ev Event) {
	ev.FlowID = b.flowID
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if b.metrics != nil {
		b.metrics.RecordEventEmitted(b.flowID, string(ev.Type))
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.metrics != nil {
				b.metrics.RecordEventDropped(b.flowID)
			}
		}
	}

	if b.publisher != nil {
		// Publisher failures never disturb in-process delivery
		_ = b.publisher.PublishEvent(ev)
	}
}

// Close detaches all subscribers and closes their channels. Publish after
// Close is a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
