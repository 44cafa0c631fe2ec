package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/eyevinn-osaas/strom-sub003/clock"
	"github.com/eyevinn-osaas/strom-sub003/compiler"
	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/metric"
	"github.com/eyevinn-osaas/strom-sub003/node"
	"github.com/eyevinn-osaas/strom-sub003/pkg/retry"
	"github.com/eyevinn-osaas/strom-sub003/pkg/worker"
)

// Task is a unit of blocking work executed off the caller's goroutine.
// Graph teardown and endpoint recreation both run as tasks on a shared pool
// because node-internal teardown and construction may block.
type Task func(ctx context.Context) error

// DefaultQosInterval is the drain interval for quality-of-service summaries
const DefaultQosInterval = time.Second

// DefaultStopTimeout bounds how long Stop waits for graph teardown
const DefaultStopTimeout = 10 * time.Second

// allowUnlinkedProperty marks a distribution node's outputs as optional
const allowUnlinkedProperty = "allow-not-linked"

// Lifecycle event names for the control-surface state machine
const (
	eventConstruct   = "construct"
	eventConstructed = "constructed"
	eventPlay        = "play"
	eventPause       = "pause"
	eventStop        = "stop"
	eventFail        = "fail"
)

// Deps carries the collaborators a pipeline manager needs. Provider,
// Registry, Pool, and Logger are required; the rest are optional.
type Deps struct {
	Provider  node.Provider
	Registry  *node.Registry
	Clocks    clock.Provider
	Pool      *worker.Pool[Task]
	Logger    *slog.Logger
	Metrics   *metric.Metrics
	Publisher EventPublisher

	// QosInterval overrides DefaultQosInterval when positive
	QosInterval time.Duration
}

type pendingLink struct {
	link flow.Link
}

// Manager owns one live execution graph for one compiled flow. It drives
// the lifecycle state machine, completes deferred links when dynamic pads
// appear, and exposes introspection over the running topology.
//
// The cached lifecycle state is written only by the monitor's state-changed
// handler while the bus subscription is attached, and by the teardown task
// after the subscription is detached. It is never written speculatively.
type Manager struct {
	flowID   string
	pipeline *compiler.Pipeline
	props    flow.Properties
	deps     Deps

	machine     *fsm.FSM
	broadcaster *Broadcaster
	qos         *QosAggregator

	// opMu serializes Start, Stop, and restart cycles
	opMu sync.Mutex

	stateMu     sync.RWMutex
	cachedState flow.PipelineState

	// transitioning is set while the live graph changes lifecycle state;
	// property mutation is rejected, not blocked, during that window
	transitioning atomic.Bool

	restartPending atomic.Bool

	// userStopped marks an operator-initiated Stop. A scheduled restart
	// that observes it abandons the cycle instead of resurrecting a flow
	// the operator just shut down.
	userStopped atomic.Bool

	graphMu      sync.Mutex
	graph        node.Graph
	nodes        map[string]node.Handle
	pendingLinks map[string][]pendingLink
	dynamicTees  map[string]map[string]string

	// epMu guards endpoints separately so a busy check never waits on a
	// recreation that holds graphMu
	epMu      sync.Mutex
	endpoints map[string]*endpointState

	mon           *monitor
	telemetryStop chan struct{}

	clockRelease func()
}

// NewManager creates a manager for a compiled pipeline. The manager does
// nothing until Start.
func NewManager(p *compiler.Pipeline, props flow.Properties, deps Deps) *Manager {
	m := &Manager{
		flowID:       p.FlowID,
		pipeline:     p,
		props:        props,
		deps:         deps,
		cachedState:  flow.StateNull,
		qos:          NewQosAggregator(),
		nodes:        make(map[string]node.Handle),
		pendingLinks: make(map[string][]pendingLink),
		dynamicTees:  make(map[string]map[string]string),
		endpoints:    make(map[string]*endpointState),
	}
	m.broadcaster = NewBroadcaster(p.FlowID, deps.Publisher, deps.Metrics)

	m.machine = fsm.NewFSM(
		string(flow.StateNull),
		fsm.Events{
			{Name: eventConstruct, Src: []string{string(flow.StateNull), string(flow.StateStopped)},
				Dst: string(flow.StateConstructing)},
			{Name: eventConstructed, Src: []string{string(flow.StateConstructing)},
				Dst: string(flow.StateReady)},
			{Name: eventPlay, Src: []string{string(flow.StateReady), string(flow.StatePaused)},
				Dst: string(flow.StatePlaying)},
			{Name: eventPause, Src: []string{string(flow.StatePlaying)},
				Dst: string(flow.StatePaused)},
			{Name: eventStop, Src: []string{
				string(flow.StateConstructing), string(flow.StateReady),
				string(flow.StatePlaying), string(flow.StatePaused)},
				Dst: string(flow.StateStopped)},
			{Name: eventFail, Src: []string{
				string(flow.StateNull), string(flow.StateConstructing), string(flow.StateReady),
				string(flow.StatePlaying), string(flow.StatePaused), string(flow.StateStopped)},
				Dst: string(flow.StateError)},
		},
		fsm.Callbacks{},
	)
	return m
}

// FlowID returns the id of the flow this manager runs
func (m *Manager) FlowID() string {
	return m.flowID
}

// State returns the last lifecycle state observed via the event monitor.
// It never queries the live graph, which is unsafe mid-transition for some
// asynchronous node types.
func (m *Manager) State() flow.PipelineState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.cachedState
}

// setCachedState is called from the monitor's state-changed handler, and
// from the teardown task once the monitor is detached.
func (m *Manager) setCachedState(s flow.PipelineState) {
	m.stateMu.Lock()
	m.cachedState = s
	m.stateMu.Unlock()

	if m.deps.Metrics != nil {
		m.deps.Metrics.RecordPipelineState(m.flowID, stateIndex(s))
	}
}

// Subscribe attaches an event subscriber to this pipeline's classified
// event stream.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	return m.broadcaster.Subscribe(buffer)
}

// Start builds the live graph, applies properties and links, attaches the
// event monitor, and drives the graph to playing. Calling Start on an
// already-started flow returns the current state without error and without
// creating duplicate nodes.
func (m *Manager) Start(ctx context.Context) (flow.PipelineState, error) {
	m.userStopped.Store(false)
	return m.start(ctx, false)
}

// start is the shared Start path. A restart-initiated start aborts when an
// operator Stop arrived after the restart was scheduled; the flag is
// checked under opMu so the check cannot interleave with a Stop.
func (m *Manager) start(ctx context.Context, restart bool) (flow.PipelineState, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if restart && m.userStopped.Load() {
		m.deps.Logger.Info("Restart abandoned, pipeline was stopped", "flow_id", m.flowID)
		return m.State(), nil
	}

	switch flow.PipelineState(m.machine.Current()) {
	case flow.StateConstructing, flow.StateReady, flow.StatePlaying, flow.StatePaused:
		return m.State(), nil
	case flow.StateDestroyed, flow.StateError:
		return m.State(), errors.WrapFatal(errors.ErrGraphDestroyed, "Manager", "Start", "lifecycle check")
	}

	if err := m.machine.Event(ctx, eventConstruct); err != nil {
		return m.State(), errors.WrapInvalid(err, "Manager", "Start", "lifecycle transition")
	}

	if err := m.construct(); err != nil {
		m.teardownPartial()
		_ = m.machine.Event(ctx, eventFail)
		m.setCachedState(flow.StateError)
		return flow.StateError, err
	}
	_ = m.machine.Event(ctx, eventConstructed)

	m.attachMonitor()

	if err := m.setGraphState(flow.StatePlaying); err != nil {
		m.detachMonitor()
		m.teardownPartial()
		_ = m.machine.Event(ctx, eventFail)
		m.setCachedState(flow.StateError)
		return flow.StateError, err
	}
	_ = m.machine.Event(ctx, eventPlay)

	m.deps.Logger.Info("Pipeline started",
		"flow_id", m.flowID,
		"elements", len(m.pipeline.Elements),
		"pending_links", m.pendingCount())

	return m.State(), nil
}

// construct creates all nodes, applies static properties and pad overrides,
// creates distribution nodes, registers ingest endpoints, applies the final
// link set, and acquires a shared clock when the flow asks for one.
func (m *Manager) construct() error {
	graph, err := m.deps.Provider.NewGraph(m.flowID)
	if err != nil {
		return errors.WrapTransient(err, "Manager", "Start", "create live graph")
	}

	m.graphMu.Lock()
	m.graph = graph
	m.graphMu.Unlock()

	for _, el := range m.pipeline.Elements {
		if err := m.createElement(el); err != nil {
			return err
		}
	}

	for _, dp := range m.pipeline.Distribution {
		handle, err := graph.CreateNode(compiler.DistributionNodeType, dp.Name)
		if err != nil {
			return &ElementCreationError{Element: dp.Name, Type: compiler.DistributionNodeType, Err: err}
		}
		if dp.AllowUnlinked {
			if err := handle.SetProperty(allowUnlinkedProperty, true); err != nil {
				return &InvalidPropertyError{Element: dp.Name, Property: allowUnlinkedProperty, Reason: err.Error()}
			}
		}
		m.graphMu.Lock()
		m.nodes[dp.Name] = handle
		m.graphMu.Unlock()
	}

	if err := m.applyLinks(); err != nil {
		return err
	}

	return m.acquireClock(graph)
}

func (m *Manager) createElement(el flow.Element) error {
	handle, err := m.graph.CreateNode(el.Type, el.ID)
	if err != nil {
		return &ElementCreationError{Element: el.ID, Type: el.Type, Err: err}
	}

	for name, value := range el.Properties {
		if err := handle.SetProperty(name, value); err != nil {
			return &InvalidPropertyError{Element: el.ID, Property: name, Reason: err.Error()}
		}
	}
	for pad, props := range el.PadProperties {
		for name, value := range props {
			if err := handle.SetPadProperty(pad, name, value); err != nil {
				return &PadNotFoundError{Element: el.ID, Pad: pad}
			}
		}
	}

	m.graphMu.Lock()
	m.nodes[el.ID] = handle
	m.graphMu.Unlock()

	if m.deps.Registry != nil && m.deps.Registry.IsSingleUseIngest(el.Type) {
		m.registerEndpoint(el)
	}
	return nil
}

// applyLinks applies the final link set. Links sourced from dynamic-pad
// node types are deferred as pending when the pad does not exist yet; a
// failed static link aborts construction.
func (m *Manager) applyLinks() error {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()

	for _, l := range m.pipeline.Links {
		err := m.graph.Link(l.From.Node(), l.From.Pad(), l.To.Node(), l.To.Pad())
		if err == nil {
			continue
		}

		if m.sourceHasDynamicPads(l.From.Node()) {
			src := l.From.Node()
			m.pendingLinks[src] = append(m.pendingLinks[src], pendingLink{link: l})
			m.deps.Logger.Debug("Link deferred until pad appears",
				"flow_id", m.flowID, "from", l.From, "to", l.To)
			continue
		}

		return &LinkError{From: l.From, To: l.To, Err: err}
	}
	return nil
}

// sourceHasDynamicPads checks the node type of a link source against the
// registry's dynamic-pad capability. Auto-inserted distribution nodes are
// static.
func (m *Manager) sourceHasDynamicPads(nodeID string) bool {
	if m.deps.Registry == nil {
		return false
	}
	handle, ok := m.nodes[nodeID]
	if !ok {
		return false
	}
	return m.deps.Registry.HasDynamicPads(handle.Type())
}

func (m *Manager) acquireClock(graph node.Graph) error {
	if m.props.ClockType != flow.ClockPTP {
		return nil
	}
	if m.deps.Clocks == nil {
		return errors.WrapInvalid(
			fmt.Errorf("flow requests clock domain %d but no clock provider is configured", m.props.ClockDomain),
			"Manager", "Start", "clock acquisition")
	}

	handle, err := m.deps.Clocks.GetOrCreateClock(m.props.ClockDomain)
	if err != nil {
		return errors.WrapTransient(err, "Manager", "Start", "clock acquisition")
	}
	if !handle.IsSynced() {
		m.deps.Logger.Warn("Shared clock not yet synced",
			"flow_id", m.flowID, "domain", m.props.ClockDomain)
	}
	if err := graph.UseClock(handle); err != nil {
		return errors.WrapTransient(err, "Manager", "Start", "clock installation")
	}

	if releaser, ok := m.deps.Clocks.(interface{ Release(domain int) }); ok {
		domain := m.props.ClockDomain
		m.clockRelease = func() { releaser.Release(domain) }
	}
	return nil
}

// setGraphState drives the live graph to a lifecycle state while the
// transitioning flag rejects concurrent property mutation.
func (m *Manager) setGraphState(target flow.PipelineState) error {
	m.transitioning.Store(true)
	defer m.transitioning.Store(false)

	if err := m.graph.SetState(target); err != nil {
		return &StateChangeError{Target: target, Err: err}
	}
	return nil
}

// Stop detaches the event monitor, cancels the telemetry task, and tears
// the live graph down on the worker pool so blocking node teardown can
// never deadlock the caller. Stopping a stopped or never-started flow
// returns the current state without error.
//
// The returned state is the cached bus-observed state: stopped once
// teardown completed within the timeout, the prior state while a slow
// teardown is still draining.
func (m *Manager) Stop(timeout time.Duration) (flow.PipelineState, error) {
	m.userStopped.Store(true)
	return m.stop(timeout)
}

func (m *Manager) stop(timeout time.Duration) (flow.PipelineState, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	switch flow.PipelineState(m.machine.Current()) {
	case flow.StateNull, flow.StateStopped, flow.StateDestroyed, flow.StateError:
		return m.State(), nil
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	m.detachMonitor()

	if err := m.machine.Event(context.Background(), eventStop); err != nil {
		return m.State(), errors.WrapInvalid(err, "Manager", "Stop", "lifecycle transition")
	}

	m.graphMu.Lock()
	graph := m.graph
	m.graph = nil
	m.nodes = make(map[string]node.Handle)
	m.pendingLinks = make(map[string][]pendingLink)
	m.dynamicTees = make(map[string]map[string]string)
	m.graphMu.Unlock()

	m.epMu.Lock()
	m.endpoints = make(map[string]*endpointState)
	m.epMu.Unlock()

	if m.clockRelease != nil {
		m.clockRelease()
		m.clockRelease = nil
	}

	done := make(chan struct{})
	teardown := func(ctx context.Context) error {
		defer close(done)
		if err := graph.SetState(flow.StateStopped); err != nil {
			m.deps.Logger.Warn("Graph stop reported error", "flow_id", m.flowID, "error", err)
		}
		if err := graph.Destroy(); err != nil {
			m.deps.Logger.Warn("Graph destroy reported error", "flow_id", m.flowID, "error", err)
		}
		// The bus subscription is already detached; this is the one
		// writer besides the monitor.
		m.setCachedState(flow.StateStopped)
		return nil
	}

	if graph != nil {
		if err := m.submitTask(teardown); err != nil {
			// Queue full: tear down inline rather than leak the graph
			m.deps.Logger.Warn("Teardown queue full, destroying inline", "flow_id", m.flowID)
			_ = teardown(context.Background())
		}
		select {
		case <-done:
		case <-time.After(timeout):
			m.deps.Logger.Warn("Graph teardown still draining after timeout",
				"flow_id", m.flowID, "timeout", timeout)
		}
	}

	m.deps.Logger.Info("Pipeline stopped", "flow_id", m.flowID)
	return m.State(), nil
}

func (m *Manager) submitTask(t Task) error {
	if m.deps.Pool == nil {
		go func() { _ = t(context.Background()) }()
		return nil
	}
	return m.deps.Pool.Submit(t)
}

// teardownPartial destroys a half-constructed graph after a failed Start.
// Runs on the worker pool; Start does not wait for it.
func (m *Manager) teardownPartial() {
	m.graphMu.Lock()
	graph := m.graph
	m.graph = nil
	m.nodes = make(map[string]node.Handle)
	m.pendingLinks = make(map[string][]pendingLink)
	m.graphMu.Unlock()

	m.epMu.Lock()
	m.endpoints = make(map[string]*endpointState)
	m.epMu.Unlock()

	if m.clockRelease != nil {
		m.clockRelease()
		m.clockRelease = nil
	}
	if graph == nil {
		return
	}
	if err := m.submitTask(func(ctx context.Context) error {
		return graph.Destroy()
	}); err != nil {
		_ = graph.Destroy()
	}
}

// SetProperty changes a property on a live node. The change is rejected,
// not blocked, while the graph is mid-transition.
func (m *Manager) SetProperty(element, property string, value any) error {
	if m.transitioning.Load() {
		return &PropertyNotMutableError{Element: element, Property: property, State: m.State()}
	}

	m.graphMu.Lock()
	handle, ok := m.nodes[element]
	m.graphMu.Unlock()
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrElementNotFound, element),
			"Manager", "SetProperty", "element lookup")
	}

	if err := handle.SetProperty(property, value); err != nil {
		return &InvalidPropertyError{Element: element, Property: property, Reason: err.Error()}
	}
	return nil
}

// handlePadAdded completes pending links whose expected source and pad
// match a newly created pad. Each pending link is retried exactly once per
// pad-created event; a pad with no matching pending link is auto-routed to
// a permissive distribution point.
func (m *Manager) handlePadAdded(source, pad string) {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()
	if m.graph == nil {
		return
	}

	pends := m.pendingLinks[source]
	matched := false
	remaining := pends[:0]

	for _, pl := range pends {
		if pl.link.From.Pad() != pad {
			remaining = append(remaining, pl)
			continue
		}
		matched = true

		err := m.graph.Link(source, pad, pl.link.To.Node(), pl.link.To.Pad())
		if err != nil {
			// Stays pending for the next pad-created event
			m.deps.Logger.Warn("Pending link attempt failed",
				"flow_id", m.flowID, "from", pl.link.From, "to", pl.link.To, "error", err)
			remaining = append(remaining, pl)
			continue
		}
		m.deps.Logger.Debug("Pending link completed",
			"flow_id", m.flowID, "from", pl.link.From, "to", pl.link.To)
	}

	if len(remaining) == 0 {
		delete(m.pendingLinks, source)
	} else {
		m.pendingLinks[source] = remaining
	}

	if !matched {
		m.routeUnmatchedPad(source, pad)
	}
}

// routeUnmatchedPad connects an unexpected dynamic pad to a fresh
// permissive distribution point so unexpected media types never abort the
// pipeline. Called with graphMu held.
func (m *Manager) routeUnmatchedPad(source, pad string) {
	if existing, ok := m.dynamicTees[source]; ok {
		if _, ok := existing[pad]; ok {
			return
		}
	}

	name := compiler.DistributionName(flow.NewEndpoint(source, pad))
	handle, err := m.graph.CreateNode(compiler.DistributionNodeType, name)
	if err != nil {
		m.deps.Logger.Warn("Failed to create distribution point for dynamic pad",
			"flow_id", m.flowID, "source", source, "pad", pad, "error", err)
		return
	}
	if err := handle.SetProperty(allowUnlinkedProperty, true); err != nil {
		m.deps.Logger.Warn("Failed to mark distribution point permissive",
			"flow_id", m.flowID, "tee", name, "error", err)
	}
	if err := m.graph.Link(source, pad, name, "sink"); err != nil {
		m.deps.Logger.Warn("Failed to route dynamic pad",
			"flow_id", m.flowID, "source", source, "pad", pad, "error", err)
		_ = m.graph.RemoveNode(name)
		return
	}

	m.nodes[name] = handle
	if m.dynamicTees[source] == nil {
		m.dynamicTees[source] = make(map[string]string)
	}
	m.dynamicTees[source][pad] = name

	m.deps.Logger.Info("Dynamic pad routed to distribution point",
		"flow_id", m.flowID, "source", source, "pad", pad, "tee", name)
}

// DynamicPads returns the runtime dynamic pads observed so far, as
// node id -> pad name -> distribution point name.
func (m *Manager) DynamicPads() map[string]map[string]string {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()

	out := make(map[string]map[string]string, len(m.dynamicTees))
	for n, pads := range m.dynamicTees {
		cp := make(map[string]string, len(pads))
		for pad, tee := range pads {
			cp[pad] = tee
		}
		out[n] = cp
	}
	return out
}

func (m *Manager) pendingCount() int {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()
	n := 0
	for _, pends := range m.pendingLinks {
		n += len(pends)
	}
	return n
}

// DebugGraph renders the current topology as DOT text: static elements,
// distribution points, completed static links, dynamic tee routes, and
// pending links (dashed).
func (m *Manager) DebugGraph() string {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", m.flowID)
	fmt.Fprintf(&b, "  rankdir=LR;\n")

	for _, el := range m.pipeline.Elements {
		fmt.Fprintf(&b, "  %q [label=\"%s\\n(%s)\"];\n", el.ID, el.ID, el.Type)
	}
	for _, dp := range m.pipeline.Distribution {
		fmt.Fprintf(&b, "  %q [label=\"%s\\n(%s)\" shape=diamond];\n",
			dp.Name, dp.Name, compiler.DistributionNodeType)
	}

	dynSources := make([]string, 0, len(m.dynamicTees))
	for src := range m.dynamicTees {
		dynSources = append(dynSources, src)
	}
	sort.Strings(dynSources)
	for _, src := range dynSources {
		pads := make([]string, 0, len(m.dynamicTees[src]))
		for pad := range m.dynamicTees[src] {
			pads = append(pads, pad)
		}
		sort.Strings(pads)
		for _, pad := range pads {
			tee := m.dynamicTees[src][pad]
			fmt.Fprintf(&b, "  %q [label=\"%s\\n(dynamic %s)\" shape=diamond style=dotted];\n",
				tee, tee, compiler.DistributionNodeType)
			fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", src, tee, pad)
		}
	}

	pending := make(map[flow.Link]bool)
	for _, pends := range m.pendingLinks {
		for _, pl := range pends {
			pending[pl.link] = true
		}
	}
	for _, l := range m.pipeline.Links {
		label := fmt.Sprintf("%s -> %s", l.From.Pad(), l.To.Pad())
		if pending[l] {
			fmt.Fprintf(&b, "  %q -> %q [label=%q style=dashed];\n", l.From.Node(), l.To.Node(), label)
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", l.From.Node(), l.To.Node(), label)
	}

	fmt.Fprintf(&b, "}\n")
	return b.String()
}

// requestRestart schedules a stop+start cycle on the worker pool. At most
// one restart is in flight at a time.
func (m *Manager) requestRestart() {
	if !m.restartPending.CompareAndSwap(false, true) {
		return
	}

	m.deps.Logger.Warn("Scheduling pipeline restart", "flow_id", m.flowID)
	err := m.submitTask(func(ctx context.Context) error {
		defer m.restartPending.Store(false)

		if m.userStopped.Load() {
			return nil
		}
		if _, err := m.stop(DefaultStopTimeout); err != nil {
			m.deps.Logger.Error("Restart stop failed", "flow_id", m.flowID, "error", err)
			return err
		}
		cfg := retry.Quick()
		return retry.Do(ctx, cfg, func() error {
			_, err := m.start(ctx, true)
			return err
		})
	})
	if err != nil {
		m.restartPending.Store(false)
		m.deps.Logger.Error("Failed to schedule restart", "flow_id", m.flowID, "error", err)
	}
}

// Close releases the manager's event stream. Call after Stop.
func (m *Manager) Close() {
	m.broadcaster.Close()
}

func stateIndex(s flow.PipelineState) int {
	switch s {
	case flow.StateConstructing:
		return 0
	case flow.StateReady:
		return 1
	case flow.StatePlaying:
		return 2
	case flow.StatePaused:
		return 3
	case flow.StateStopped:
		return 4
	case flow.StateDestroyed:
		return 5
	case flow.StateError:
		return 6
	default:
		return -1
	}
}
