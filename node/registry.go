package node

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/eyevinn-osaas/strom-sub003/errors"
)

// Registration holds metadata and capabilities for a node type. The
// capability flags are what the compiler and pipeline manager key their
// behavior on; they never inspect node internals.
type Registration struct {
	Name        string `json:"name"`        // Node-type name (e.g. "srtsrc", "tee", "tsdemux")
	Kind        string `json:"kind"`        // "source", "filter", "sink", "distribution"
	Description string `json:"description"` // Human-readable description
	Version     string `json:"version"`     // Node-type version

	// DynamicPads marks node types that create certain pads only after
	// negotiating with connected peers (demultiplexers). Links sourced from
	// such nodes are deferred rather than failed when the pad is absent.
	DynamicPads bool `json:"dynamic_pads"`

	// AllowUnlinked marks node types that tolerate unconnected outputs
	// without stalling delivery to the connected ones. Required for the
	// distribution node type.
	AllowUnlinked bool `json:"allow_unlinked"`

	// SingleUseIngest marks externally reachable listener node types that
	// accept one client session at a time. Errors originating from such
	// nodes (or their descendants) are suppressed, and the endpoint
	// recovery controller replaces them after each session.
	SingleUseIngest bool `json:"single_use_ingest"`

	// Schema optionally holds a JSON schema for the node type's property
	// map. When present, element properties are validated against it
	// before construction.
	Schema json.RawMessage `json:"schema,omitempty"`
}

// Registry is a thread-safe, capability-tagged registry of node types. New
// node types register without touching the compiler.
type Registry struct {
	types map[string]*Registration
	mu    sync.RWMutex
}

// NewRegistry creates an empty node-type registry
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*Registration),
	}
}

// Register adds a node-type registration.
// Returns an error if a registration with the same name already exists.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "registration validation")
	}
	if len(reg.Schema) > 0 {
		// Fail early on malformed schemas rather than at first validation
		if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(reg.Schema)); err != nil {
			return errors.WrapInvalid(err, "Registry", "Register",
				fmt.Sprintf("property schema for node type '%s'", reg.Name))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[reg.Name]; exists {
		msg := fmt.Errorf("node type '%s' is already registered", reg.Name)
		return errors.WrapInvalid(msg, "Registry", "Register", "duplicate registration check")
	}

	r.types[reg.Name] = reg
	return nil
}

// Get returns the registration for a node type
func (r *Registry) Get(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.types[name]
	return reg, ok
}

// List returns a copy of all registrations keyed by name
func (r *Registry) List() map[string]*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Registration, len(r.types))
	for name, reg := range r.types {
		out[name] = reg
	}
	return out
}

// HasDynamicPads reports whether a node type creates pads on demand.
// Unknown types report false.
func (r *Registry) HasDynamicPads(typeName string) bool {
	reg, ok := r.Get(typeName)
	return ok && reg.DynamicPads
}

// IsSingleUseIngest reports whether a node type is a single-use network
// ingest listener.
func (r *Registry) IsSingleUseIngest(typeName string) bool {
	reg, ok := r.Get(typeName)
	return ok && reg.SingleUseIngest
}

// ValidateProperties validates an element property map against the node
// type's registered schema. Types without a schema accept any properties.
func (r *Registry) ValidateProperties(typeName string, properties map[string]any) error {
	reg, ok := r.Get(typeName)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("unknown node type: %s", typeName),
			"Registry", "ValidateProperties", "node type lookup")
	}
	if len(reg.Schema) == 0 {
		return nil
	}

	doc := properties
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(reg.Schema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "ValidateProperties",
			fmt.Sprintf("schema validation for node type '%s'", typeName))
	}

	if !result.Valid() {
		detail := ""
		for _, desc := range result.Errors() {
			if detail != "" {
				detail += "; "
			}
			detail += desc.String()
		}
		return errors.WrapInvalid(
			fmt.Errorf("properties rejected for node type '%s': %s", typeName, detail),
			"Registry", "ValidateProperties", "property validation")
	}

	return nil
}
