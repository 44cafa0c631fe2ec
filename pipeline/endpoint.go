package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/pkg/retry"
)

// endpointState tracks one single-use network-ingest listener node. The
// recreating guard is the per-endpoint atomic flag that makes replacement
// happen at most once per session end, even when an external termination
// request races with the node's own session-ended notification.
type endpointState struct {
	element    flow.Element
	recreating atomic.Bool
}

// registerEndpoint records a single-use ingest element so the recovery
// controller can replace it after each session.
func (m *Manager) registerEndpoint(el flow.Element) {
	m.epMu.Lock()
	defer m.epMu.Unlock()
	m.endpoints[el.ID] = &endpointState{element: el}
}

// RecoverEndpoint replaces a single-use ingest listener node with a fresh
// instance. The replacement runs on the worker pool and is not awaited: a
// caller that hits a stale session gets an immediate busy response while
// recreation proceeds, so the client's own retry lands on the fresh
// instance. Triggering recovery twice for the same session end is a no-op
// on the second call.
func (m *Manager) RecoverEndpoint(nodeID string) error {
	m.epMu.Lock()
	ep, ok := m.endpoints[nodeID]
	m.epMu.Unlock()
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrEndpointNotFound, nodeID),
			"Manager", "RecoverEndpoint", "endpoint lookup")
	}

	if !ep.recreating.CompareAndSwap(false, true) {
		return errors.WrapTransient(errors.ErrEndpointBusy, "Manager", "RecoverEndpoint", "recreation")
	}

	err := m.submitTask(func(ctx context.Context) error {
		m.recreateEndpoint(ctx, nodeID, ep)
		return nil
	})
	if err != nil {
		ep.recreating.Store(false)
		return errors.WrapTransient(err, "Manager", "RecoverEndpoint", "schedule recreation")
	}
	return nil
}

// recreateEndpoint removes the stale listener node, creates a fresh
// instance with the original properties, and re-applies the static links
// that touch it. Failures stay internal: they are logged and never
// propagate to the caller that triggered recovery.
func (m *Manager) recreateEndpoint(ctx context.Context, nodeID string, ep *endpointState) {
	err := retry.Do(ctx, retry.Quick(), func() error {
		return m.replaceListener(nodeID, ep)
	})
	if err != nil {
		// Clear the guard so a later session-ended trigger can retry
		ep.recreating.Store(false)
		m.deps.Logger.Error("Endpoint recreation failed",
			"flow_id", m.flowID, "endpoint", nodeID, "error", err)
		return
	}

	if m.deps.Metrics != nil {
		m.deps.Metrics.RecordEndpointRecreation(m.flowID, nodeID)
	}
	m.deps.Logger.Info("Endpoint recreated", "flow_id", m.flowID, "endpoint", nodeID)
}

func (m *Manager) replaceListener(nodeID string, ep *endpointState) error {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()

	if m.graph == nil {
		return retry.NonRetryable(errors.ErrGraphDestroyed)
	}

	if err := m.graph.RemoveNode(nodeID); err != nil {
		m.deps.Logger.Debug("Stale listener removal reported error",
			"flow_id", m.flowID, "endpoint", nodeID, "error", err)
	}
	delete(m.nodes, nodeID)

	el := ep.element
	handle, err := m.graph.CreateNode(el.Type, el.ID)
	if err != nil {
		return fmt.Errorf("create fresh listener: %w", err)
	}
	for name, value := range el.Properties {
		if err := handle.SetProperty(name, value); err != nil {
			return retry.NonRetryable(fmt.Errorf("property '%s' rejected: %w", name, err))
		}
	}
	for pad, props := range el.PadProperties {
		for name, value := range props {
			if err := handle.SetPadProperty(pad, name, value); err != nil {
				return retry.NonRetryable(fmt.Errorf("pad property '%s' on '%s' rejected: %w", name, pad, err))
			}
		}
	}
	m.nodes[nodeID] = handle

	for _, l := range m.pipeline.Links {
		if l.From.Node() != nodeID && l.To.Node() != nodeID {
			continue
		}
		if err := m.graph.Link(l.From.Node(), l.From.Pad(), l.To.Node(), l.To.Pad()); err != nil {
			return fmt.Errorf("relink %s -> %s: %w", l.From, l.To, err)
		}
	}

	// Guard resets only once the fresh instance is fully constructed
	ep.recreating.Store(false)
	return nil
}
