// Package testutil provides in-memory fakes for the live-graph contract so
// pipeline behavior can be tested without a media engine.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/bus"
	"github.com/eyevinn-osaas/strom-sub003/clock"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/node"
)

// GraphLink records one completed link on a fake graph
type GraphLink struct {
	FromNode string
	FromPad  string
	ToNode   string
	ToPad    string
}

// FakeNode implements node.Handle with an in-memory property map
type FakeNode struct {
	mu   sync.Mutex
	id   string
	typ  string
	prop map[string]any
	pad  map[string]map[string]any

	// SetPropertyErr, when set, is consulted before storing a property
	SetPropertyErr func(name string, value any) error
}

// ID returns the node id
func (n *FakeNode) ID() string { return n.id }

// Type returns the node type name
func (n *FakeNode) Type() string { return n.typ }

// SetProperty stores a property value
func (n *FakeNode) SetProperty(name string, value any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.SetPropertyErr != nil {
		if err := n.SetPropertyErr(name, value); err != nil {
			return err
		}
	}
	n.prop[name] = value
	return nil
}

// GetProperty returns a stored property value
func (n *FakeNode) GetProperty(name string) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.prop[name]
	if !ok {
		return nil, fmt.Errorf("property '%s' not set on node '%s'", name, n.id)
	}
	return v, nil
}

// SetPadProperty stores a pad-level property value
func (n *FakeNode) SetPadProperty(pad, name string, value any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pad[pad] == nil {
		n.pad[pad] = make(map[string]any)
	}
	n.pad[pad][name] = value
	return nil
}

// Property returns a stored property value without the error path, for
// test assertions.
func (n *FakeNode) Property(name string) any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.prop[name]
}

type fakeSubscription struct {
	mu     sync.Mutex
	ch     chan bus.Message
	closed bool
}

func (s *fakeSubscription) Messages() <-chan bus.Message { return s.ch }

func (s *fakeSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *fakeSubscription) publish(msg bus.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
	}
}

// FakeGraph implements node.Graph in memory. Tests drive its bus directly
// via the Emit helpers and simulate dynamic pads with MarkPadMissing and
// AddPad.
type FakeGraph struct {
	flowID string

	mu        sync.Mutex
	nodes     map[string]*FakeNode
	links     []GraphLink
	missing   map[string]map[string]bool
	state     flow.PipelineState
	destroyed bool
	clock     clock.Handle
	sub       *fakeSubscription

	// Call counts for verification
	CreateCalls  int
	RemoveCalls  int
	LinkCalls    int
	DestroyCalls int

	// Error injection
	CreateNodeErr func(typeName, id string) error
	LinkErr       func(fromNode, fromPad, toNode, toPad string) error
	SetStateErr   func(state flow.PipelineState) error

	// EmitStateChanges makes SetState publish a pipeline-level
	// StateChanged bus message, the way a real engine reports async
	// transitions. Enabled by NewFakeGraph.
	EmitStateChanges bool
}

// NewFakeGraph creates an empty fake graph for a flow
func NewFakeGraph(flowID string) *FakeGraph {
	return &FakeGraph{
		flowID:           flowID,
		nodes:            make(map[string]*FakeNode),
		missing:          make(map[string]map[string]bool),
		state:            flow.StateNull,
		sub:              &fakeSubscription{ch: make(chan bus.Message, 4096)},
		EmitStateChanges: true,
	}
}

// CreateNode implements node.Graph
func (g *FakeGraph) CreateNode(typeName, id string) (node.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.CreateCalls++
	if g.CreateNodeErr != nil {
		if err := g.CreateNodeErr(typeName, id); err != nil {
			return nil, err
		}
	}
	if _, exists := g.nodes[id]; exists {
		return nil, fmt.Errorf("node '%s' already exists", id)
	}

	n := &FakeNode{
		id:   id,
		typ:  typeName,
		prop: make(map[string]any),
		pad:  make(map[string]map[string]any),
	}
	g.nodes[id] = n
	return n, nil
}

// RemoveNode implements node.Graph
func (g *FakeGraph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.RemoveCalls++
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("node '%s' not found", id)
	}
	delete(g.nodes, id)

	kept := g.links[:0]
	for _, l := range g.links {
		if l.FromNode == id || l.ToNode == id {
			continue
		}
		kept = append(kept, l)
	}
	g.links = kept
	return nil
}

// Link implements node.Graph. Linking fails when either node is missing or
// the source pad has been marked missing (dynamic pads).
func (g *FakeGraph) Link(fromNode, fromPad, toNode, toPad string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.LinkCalls++
	if g.LinkErr != nil {
		if err := g.LinkErr(fromNode, fromPad, toNode, toPad); err != nil {
			return err
		}
	}
	if _, ok := g.nodes[fromNode]; !ok {
		return fmt.Errorf("source node '%s' not found", fromNode)
	}
	if _, ok := g.nodes[toNode]; !ok {
		return fmt.Errorf("target node '%s' not found", toNode)
	}
	if g.missing[fromNode][fromPad] {
		return fmt.Errorf("pad '%s' does not exist on node '%s' yet", fromPad, fromNode)
	}

	g.links = append(g.links, GraphLink{FromNode: fromNode, FromPad: fromPad, ToNode: toNode, ToPad: toPad})
	return nil
}

// SetState implements node.Graph
func (g *FakeGraph) SetState(state flow.PipelineState) error {
	g.mu.Lock()
	if g.SetStateErr != nil {
		if err := g.SetStateErr(state); err != nil {
			g.mu.Unlock()
			return err
		}
	}
	old := g.state
	g.state = state
	emit := g.EmitStateChanges
	g.mu.Unlock()

	if emit {
		g.sub.publish(bus.Message{
			Type:     bus.MessageStateChanged,
			OldState: old,
			NewState: state,
			Time:     time.Now(),
		})
	}
	return nil
}

// UseClock implements node.Graph
func (g *FakeGraph) UseClock(handle clock.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clock = handle
	return nil
}

// Bus implements node.Graph
func (g *FakeGraph) Bus() bus.Subscription { return g.sub }

// Destroy implements node.Graph
func (g *FakeGraph) Destroy() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DestroyCalls++
	g.destroyed = true
	g.nodes = make(map[string]*FakeNode)
	g.links = nil
	return nil
}

// Counts returns the call counters under the graph lock
func (g *FakeGraph) Counts() (create, remove, link, destroy int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.CreateCalls, g.RemoveCalls, g.LinkCalls, g.DestroyCalls
}

// Node returns a live node by id, or nil
func (g *FakeGraph) Node(id string) *FakeNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes[id]
}

// NodeCount returns the number of live nodes
func (g *FakeGraph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Links returns a copy of all completed links
func (g *FakeGraph) Links() []GraphLink {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GraphLink, len(g.links))
	copy(out, g.links)
	return out
}

// HasLink reports whether a link between two endpoints was completed
func (g *FakeGraph) HasLink(fromNode, fromPad, toNode, toPad string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range g.links {
		if l == (GraphLink{FromNode: fromNode, FromPad: fromPad, ToNode: toNode, ToPad: toPad}) {
			return true
		}
	}
	return false
}

// State returns the last state set on the graph
func (g *FakeGraph) State() flow.PipelineState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Destroyed reports whether Destroy was called
func (g *FakeGraph) Destroyed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.destroyed
}

// Clock returns the clock installed via UseClock, or nil
func (g *FakeGraph) Clock() clock.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clock
}

// MarkPadMissing makes links from the given source pad fail until AddPad
// creates it, simulating a node that negotiates pads at run time.
func (g *FakeGraph) MarkPadMissing(nodeID, pad string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.missing[nodeID] == nil {
		g.missing[nodeID] = make(map[string]bool)
	}
	g.missing[nodeID][pad] = true
}

// AddPad creates a previously missing pad and publishes the pad-added bus
// message a real engine would emit.
func (g *FakeGraph) AddPad(nodeID, pad string) {
	g.mu.Lock()
	if g.missing[nodeID] != nil {
		delete(g.missing[nodeID], pad)
	}
	g.mu.Unlock()

	g.sub.publish(bus.Message{
		Type:   bus.MessagePadAdded,
		Source: nodeID,
		Pad:    pad,
		Time:   time.Now(),
	})
}

// EmitError publishes an error bus message from a node
func (g *FakeGraph) EmitError(source, text string) {
	g.sub.publish(bus.Message{Type: bus.MessageError, Source: source, Text: text, Time: time.Now()})
}

// EmitWarning publishes a warning bus message from a node
func (g *FakeGraph) EmitWarning(source, text string) {
	g.sub.publish(bus.Message{Type: bus.MessageWarning, Source: source, Text: text, Time: time.Now()})
}

// EmitEOS publishes an end-of-stream bus message from a node
func (g *FakeGraph) EmitEOS(source string) {
	g.sub.publish(bus.Message{Type: bus.MessageEOS, Source: source, Time: time.Now()})
}

// EmitQos publishes one quality-of-service signal from a node
func (g *FakeGraph) EmitQos(source string, values bus.QosValues) {
	g.sub.publish(bus.Message{Type: bus.MessageQos, Source: source, Qos: values, Time: time.Now()})
}

// EmitStateChanged publishes a pipeline-level state change (empty source)
func (g *FakeGraph) EmitStateChanged(oldState, newState flow.PipelineState) {
	g.sub.publish(bus.Message{Type: bus.MessageStateChanged, OldState: oldState, NewState: newState, Time: time.Now()})
}

// EmitChildStateChanged publishes a child-node state change
func (g *FakeGraph) EmitChildStateChanged(source string, oldState, newState flow.PipelineState) {
	g.sub.publish(bus.Message{
		Type: bus.MessageStateChanged, Source: source, OldState: oldState, NewState: newState, Time: time.Now(),
	})
}

// FakeProvider implements node.Provider, recording every graph it creates
type FakeProvider struct {
	mu     sync.Mutex
	graphs map[string][]*FakeGraph

	// NewGraphErr, when set, fails graph creation
	NewGraphErr error

	// Configure, when set, is applied to each new graph before it is
	// handed out.
	Configure func(g *FakeGraph)
}

// NewFakeProvider creates an empty provider
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{graphs: make(map[string][]*FakeGraph)}
}

// NewGraph implements node.Provider
func (p *FakeProvider) NewGraph(flowID string) (node.Graph, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.NewGraphErr != nil {
		return nil, p.NewGraphErr
	}
	g := NewFakeGraph(flowID)
	if p.Configure != nil {
		p.Configure(g)
	}
	p.graphs[flowID] = append(p.graphs[flowID], g)
	return g, nil
}

// Graph returns the most recently created graph for a flow, or nil
func (p *FakeProvider) Graph(flowID string) *FakeGraph {
	p.mu.Lock()
	defer p.mu.Unlock()
	gs := p.graphs[flowID]
	if len(gs) == 0 {
		return nil
	}
	return gs[len(gs)-1]
}

// GraphCount returns how many graphs were created for a flow
func (p *FakeProvider) GraphCount(flowID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.graphs[flowID])
}
