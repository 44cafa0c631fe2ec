package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/errors"
)

// Flow represents a declarative processing-graph definition with metadata
// and desired runtime configuration. The compiler borrows a snapshot of a
// Flow; it never mutates one.
type Flow struct {
	// Identity
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Graph definition
	Elements []Element       `json:"elements"`
	Blocks   []BlockInstance `json:"blocks,omitempty"`
	Links    []Link          `json:"links"`

	// Desired runtime configuration
	Properties Properties `json:"properties,omitempty"`

	// Runtime state (owned by the pipeline manager, reported back here)
	State     PipelineState `json:"state,omitempty"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	StoppedAt *time.Time    `json:"stopped_at,omitempty"`

	// Audit
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Element represents a primitive processing node in a flow
type Element struct {
	ID         string         `json:"id"`         // Unique within the flow
	Type       string         `json:"type"`       // Primitive node-type name (e.g. "videotestsrc")
	Properties map[string]any `json:"properties,omitempty"`
	// PadProperties holds per-pad property overrides, keyed by pad name
	PadProperties map[string]map[string]any `json:"pad_properties,omitempty"`
}

// BlockInstance represents an instantiation of a reusable block definition.
// It expands into zero or more Elements plus internal Links, namespaced
// under the instance id.
type BlockInstance struct {
	ID         string         `json:"id"`
	Definition string         `json:"definition"` // Block-definition id in the catalog
	Properties map[string]any `json:"properties,omitempty"`
}

// Endpoint is a symbolic pad reference of the form "node:pad". Before block
// expansion an endpoint may reference a block's external pad
// ("block:external_pad"); after expansion the node part may itself be
// namespaced ("block:internal:pad"), so the pad is always the segment after
// the last colon.
type Endpoint string

// NewEndpoint builds an endpoint from a node id and pad name
func NewEndpoint(node, pad string) Endpoint {
	return Endpoint(node + ":" + pad)
}

// Node returns the node (or block) id portion of the endpoint
func (e Endpoint) Node() string {
	if i := strings.LastIndex(string(e), ":"); i >= 0 {
		return string(e)[:i]
	}
	return string(e)
}

// Pad returns the pad-name portion of the endpoint
func (e Endpoint) Pad() string {
	if i := strings.LastIndex(string(e), ":"); i >= 0 {
		return string(e)[i+1:]
	}
	return ""
}

// Valid reports whether the endpoint has both a node and a pad part
func (e Endpoint) Valid() bool {
	i := strings.LastIndex(string(e), ":")
	return i > 0 && i < len(e)-1
}

func (e Endpoint) String() string {
	return string(e)
}

// Link connects a source pad to a sink pad
type Link struct {
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// Properties holds flow-level runtime configuration
type Properties struct {
	ClockType      ClockType `json:"clock_type,omitempty"`      // Clock selection for the live graph
	ClockDomain    int       `json:"clock_domain,omitempty"`    // Shared clock domain (PTP)
	ThreadPriority int       `json:"thread_priority,omitempty"` // Requested scheduling priority
	AutoRestart    bool      `json:"auto_restart,omitempty"`    // Restart the pipeline on fatal errors
}

// ClockType selects the clock source for a flow's live graph
type ClockType string

// Supported clock types
const (
	ClockSystem ClockType = "system"
	ClockPTP    ClockType = "ptp"
)

// PipelineState represents the lifecycle state of a flow's live pipeline
type PipelineState string

// PipelineState constants define the lifecycle states of a pipeline:
//   - StateNull: no pipeline exists for the flow
//   - StateConstructing: nodes are being created and linked
//   - StateReady: constructed, resources allocated, not processing
//   - StatePlaying: actively processing media
//   - StatePaused: constructed and prerolled, processing suspended
//   - StateStopped: torn down, handles released
//   - StateDestroyed: terminal, the manager is gone
//   - StateError: terminal failure
const (
	StateNull         PipelineState = "null"
	StateConstructing PipelineState = "constructing"
	StateReady        PipelineState = "ready"
	StatePlaying      PipelineState = "playing"
	StatePaused       PipelineState = "paused"
	StateStopped      PipelineState = "stopped"
	StateDestroyed    PipelineState = "destroyed"
	StateError        PipelineState = "error"
)

// Terminal reports whether the state cannot be left without a new Start
func (s PipelineState) Terminal() bool {
	return s == StateDestroyed || s == StateError
}

// Validate checks if the flow is structurally valid for compilation
func (f *Flow) Validate() error {
	if f.ID == "" {
		return errors.WrapInvalid(fmt.Errorf("flow ID cannot be empty"), "flow", "Validate", "validation")
	}
	if f.Name == "" {
		return errors.WrapInvalid(fmt.Errorf("flow name cannot be empty"), "flow", "Validate", "validation")
	}
	if f.Properties.ClockType != "" && f.Properties.ClockType != ClockSystem && f.Properties.ClockType != ClockPTP {
		return errors.WrapInvalid(
			fmt.Errorf("unknown clock type: %s", f.Properties.ClockType),
			"flow", "Validate", "clock type validation")
	}

	// Elements and blocks share one id namespace: a link endpoint may name
	// either, so collisions are ambiguous.
	ids := make(map[string]bool)
	for i, el := range f.Elements {
		if el.ID == "" {
			return errors.WrapInvalid(
				fmt.Errorf("element at index %d has empty ID", i),
				"flow", "Validate", "element ID validation")
		}
		if el.Type == "" {
			return errors.WrapInvalid(
				fmt.Errorf("element '%s' has empty type", el.ID),
				"flow", "Validate", "element type validation")
		}
		// ':' is the endpoint and block-namespace separator
		if strings.Contains(el.ID, ":") {
			return errors.WrapInvalid(
				fmt.Errorf("element id '%s' must not contain ':'", el.ID),
				"flow", "Validate", "element ID validation")
		}
		if ids[el.ID] {
			return errors.WrapInvalid(
				fmt.Errorf("duplicate id: %s", el.ID),
				"flow", "Validate", "duplicate id detection")
		}
		ids[el.ID] = true
	}

	for i, blk := range f.Blocks {
		if blk.ID == "" {
			return errors.WrapInvalid(
				fmt.Errorf("block instance at index %d has empty ID", i),
				"flow", "Validate", "block ID validation")
		}
		if blk.Definition == "" {
			return errors.WrapInvalid(
				fmt.Errorf("block instance '%s' has empty definition reference", blk.ID),
				"flow", "Validate", "block definition validation")
		}
		if strings.Contains(blk.ID, ":") {
			return errors.WrapInvalid(
				fmt.Errorf("block id '%s' must not contain ':'", blk.ID),
				"flow", "Validate", "block ID validation")
		}
		if ids[blk.ID] {
			return errors.WrapInvalid(
				fmt.Errorf("duplicate id: %s", blk.ID),
				"flow", "Validate", "duplicate id detection")
		}
		ids[blk.ID] = true
	}

	for i, link := range f.Links {
		if !link.From.Valid() {
			return errors.WrapInvalid(
				fmt.Errorf("link at index %d has malformed source endpoint '%s'", i, link.From),
				"flow", "Validate", "link source validation")
		}
		if !link.To.Valid() {
			return errors.WrapInvalid(
				fmt.Errorf("link at index %d has malformed target endpoint '%s'", i, link.To),
				"flow", "Validate", "link target validation")
		}
		if !ids[link.From.Node()] {
			return errors.WrapInvalid(
				fmt.Errorf("link source '%s' references unknown id '%s'", link.From, link.From.Node()),
				"flow", "Validate", "link source reference validation")
		}
		if !ids[link.To.Node()] {
			return errors.WrapInvalid(
				fmt.Errorf("link target '%s' references unknown id '%s'", link.To, link.To.Node()),
				"flow", "Validate", "link target reference validation")
		}
	}

	return nil
}
