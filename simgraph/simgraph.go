// Package simgraph provides an in-process node.Provider with no media
// engine behind it. Nodes and links are tracked as pure topology and
// state transitions are reported on the bus, which is enough to run
// the full pipeline lifecycle for dry runs and local development.
package simgraph

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/bus"
	"github.com/eyevinn-osaas/strom-sub003/clock"
	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/node"
)

const busBuffer = 256

// Provider constructs simulated graphs, one per started flow.
type Provider struct {
	logger *slog.Logger
}

// NewProvider creates a simulated graph provider.
func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{logger: logger}
}

// NewGraph creates an empty simulated graph for a flow.
func (p *Provider) NewGraph(flowID string) (node.Graph, error) {
	return &Graph{
		flowID: flowID,
		logger: p.logger.With("flow_id", flowID),
		nodes:  make(map[string]*simNode),
		state:  flow.StateNull,
	}, nil
}

type link struct {
	fromNode, fromPad, toNode, toPad string
}

// Graph is one simulated execution graph.
type Graph struct {
	flowID string
	logger *slog.Logger

	mu        sync.Mutex
	nodes     map[string]*simNode
	links     []link
	state     flow.PipelineState
	clock     clock.Handle
	subs      []*subscription
	destroyed bool
}

// CreateNode adds a node of the given type under the given id.
func (g *Graph) CreateNode(typeName, id string) (node.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return nil, errors.WrapFatal(errors.ErrGraphDestroyed, "Graph", "CreateNode", "graph access")
	}
	if _, exists := g.nodes[id]; exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("node id %q already exists: %w", id, errors.ErrNodeCreation),
			"Graph", "CreateNode", "node creation")
	}
	n := &simNode{
		id:       id,
		typeName: typeName,
		props:    make(map[string]any),
		padProps: make(map[string]map[string]any),
	}
	g.nodes[id] = n
	return n, nil
}

// RemoveNode removes a node and every link touching it.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return errors.WrapFatal(errors.ErrGraphDestroyed, "Graph", "RemoveNode", "graph access")
	}
	if _, exists := g.nodes[id]; !exists {
		return errors.WrapInvalid(
			fmt.Errorf("node %q: %w", id, errors.ErrElementNotFound),
			"Graph", "RemoveNode", "node lookup")
	}
	delete(g.nodes, id)
	kept := g.links[:0]
	for _, l := range g.links {
		if l.fromNode != id && l.toNode != id {
			kept = append(kept, l)
		}
	}
	g.links = kept
	return nil
}

// Link connects a source pad to a sink pad. Both nodes must exist; pads
// are accepted as named since the simulation carries no media topology.
func (g *Graph) Link(fromNode, fromPad, toNode, toPad string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return errors.WrapFatal(errors.ErrGraphDestroyed, "Graph", "Link", "graph access")
	}
	for _, id := range []string{fromNode, toNode} {
		if _, exists := g.nodes[id]; !exists {
			return errors.WrapInvalid(
				fmt.Errorf("link endpoint %q: %w", id, errors.ErrElementNotFound),
				"Graph", "Link", "node lookup")
		}
	}
	g.links = append(g.links, link{fromNode, fromPad, toNode, toPad})
	return nil
}

// SetState transitions the graph and reports the change on the bus.
func (g *Graph) SetState(state flow.PipelineState) error {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return errors.WrapFatal(errors.ErrGraphDestroyed, "Graph", "SetState", "graph access")
	}
	oldState := g.state
	g.state = state
	subs := make([]*subscription, len(g.subs))
	copy(subs, g.subs)
	g.mu.Unlock()

	msg := bus.Message{
		Type:     bus.MessageStateChanged,
		OldState: oldState,
		NewState: state,
		Time:     time.Now(),
	}
	for _, s := range subs {
		s.publish(msg)
	}
	g.logger.Debug("Graph state changed", "old", oldState, "new", state)
	return nil
}

// UseClock pins the graph to a shared clock handle.
func (g *Graph) UseClock(handle clock.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return errors.WrapFatal(errors.ErrGraphDestroyed, "Graph", "UseClock", "graph access")
	}
	g.clock = handle
	return nil
}

// Bus returns a new subscription to the graph's message stream.
func (g *Graph) Bus() bus.Subscription {
	s := &subscription{ch: make(chan bus.Message, busBuffer)}
	g.mu.Lock()
	g.subs = append(g.subs, s)
	g.mu.Unlock()
	return s
}

// Destroy releases the graph and closes all subscriptions.
func (g *Graph) Destroy() error {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return nil
	}
	g.destroyed = true
	subs := g.subs
	g.subs = nil
	g.nodes = make(map[string]*simNode)
	g.links = nil
	g.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
	return nil
}

// NodeCount reports the number of live nodes, for diagnostics.
func (g *Graph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Clock is a simulated shared clock. It reports synced immediately,
// standing in for the engine binding's PTP clock.
type Clock struct {
	domain int
}

// Domain returns the clock domain this clock was created for
func (c Clock) Domain() int { return c.domain }

// IsSynced always reports true for a simulated clock
func (c Clock) IsSynced() bool { return true }

// ClockFactory builds simulated clocks, one per requested domain
func ClockFactory(domain int) (clock.Handle, error) {
	return Clock{domain: domain}, nil
}

type simNode struct {
	id       string
	typeName string

	mu       sync.Mutex
	props    map[string]any
	padProps map[string]map[string]any
}

func (n *simNode) ID() string   { return n.id }
func (n *simNode) Type() string { return n.typeName }

func (n *simNode) SetProperty(name string, value any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[name] = value
	return nil
}

func (n *simNode) GetProperty(name string) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	val, ok := n.props[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("property %q not set on node %q", name, n.id),
			"Node", "GetProperty", "property lookup")
	}
	return val, nil
}

func (n *simNode) SetPadProperty(pad, name string, value any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.padProps[pad] == nil {
		n.padProps[pad] = make(map[string]any)
	}
	n.padProps[pad][name] = value
	return nil
}

// subscription is a bounded drop-on-overflow bus subscription.
type subscription struct {
	ch   chan bus.Message
	mu   sync.Mutex
	done bool
}

func (s *subscription) Messages() <-chan bus.Message { return s.ch }

func (s *subscription) Unsubscribe() { s.close() }

func (s *subscription) publish(msg bus.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.ch <- msg:
	default:
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
