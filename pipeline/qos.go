package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/bus"
)

// QosSummary is one periodic per-node quality-of-service digest. Namespaced
// node ids of the form "block:internal" report both the owning block and the
// internal node; un-namespaced ids report a standalone element.
type QosSummary struct {
	Element string `json:"element"`
	Block   string `json:"block,omitempty"`
	Node    string `json:"node,omitempty"`

	EventCount    int           `json:"event_count"`
	AvgProportion float64       `json:"avg_proportion"`
	MinProportion float64       `json:"min_proportion"`
	MaxProportion float64       `json:"max_proportion"`
	AvgJitter     time.Duration `json:"avg_jitter"`
	LastProcessed uint64        `json:"last_processed"`

	// FallingBehind reports an average on-time proportion below 1.0
	FallingBehind bool `json:"falling_behind"`
}

type qosEntry struct {
	count         int
	propSum       float64
	propMin       float64
	propMax       float64
	jitterSum     time.Duration
	lastProcessed uint64
}

// QosAggregator accumulates high-frequency quality-of-service signals into
// per-node running aggregates. Observe runs on the bus-drain path and holds
// the lock only for an in-memory increment; Drain swaps the whole map out so
// the periodic task never contends with producers for longer than the swap.
type QosAggregator struct {
	mu      sync.Mutex
	entries map[string]*qosEntry
}

// NewQosAggregator creates an empty aggregator
func NewQosAggregator() *QosAggregator {
	return &QosAggregator{
		entries: make(map[string]*qosEntry),
	}
}

// Observe folds one signal into the aggregate for its source node
func (a *QosAggregator) Observe(source string, v bus.QosValues) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[source]
	if !ok {
		e = &qosEntry{propMin: v.Proportion, propMax: v.Proportion}
		a.entries[source] = e
	}

	e.count++
	e.propSum += v.Proportion
	if v.Proportion < e.propMin {
		e.propMin = v.Proportion
	}
	if v.Proportion > e.propMax {
		e.propMax = v.Proportion
	}
	e.jitterSum += v.Jitter
	e.lastProcessed = v.Processed
}

// Drain removes and returns all accumulated aggregates as summaries, one
// per node that had activity since the previous drain.
func (a *QosAggregator) Drain() []QosSummary {
	a.mu.Lock()
	drained := a.entries
	a.entries = make(map[string]*qosEntry)
	a.mu.Unlock()

	if len(drained) == 0 {
		return nil
	}

	summaries := make([]QosSummary, 0, len(drained))
	for source, e := range drained {
		summaries = append(summaries, summarize(source, e))
	}
	return summaries
}

func summarize(source string, e *qosEntry) QosSummary {
	s := QosSummary{
		Element:       source,
		EventCount:    e.count,
		MinProportion: e.propMin,
		MaxProportion: e.propMax,
		LastProcessed: e.lastProcessed,
	}

	if e.count > 0 {
		s.AvgProportion = e.propSum / float64(e.count)
		s.AvgJitter = e.jitterSum / time.Duration(e.count)
	}
	s.FallingBehind = s.AvgProportion < 1.0

	if block, node, ok := strings.Cut(source, ":"); ok {
		s.Block = block
		s.Node = node
	}
	return s
}
