// Package catalog defines block definitions and the lookup interface the
// compiler consumes. The catalog itself is owned by the surrounding
// application; this package provides the read-only contract plus an
// in-memory implementation used by tests and the bundled binary.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
)

// Transform names supported for exposed-property values. An unknown name is
// a compile error, never a silent no-op.
const (
	// TransformNone writes the supplied value directly to the internal
	// element's property
	TransformNone = ""
	// TransformFile materializes string content to a process-unique
	// temporary file and substitutes the file path. Used to hand bulk text
	// (SDP bodies, key material) to node types that only accept paths.
	TransformFile = "file"
)

// ExposedProperty maps a block-level property name to an internal element's
// property, optionally through a named transform.
type ExposedProperty struct {
	Name      string `json:"name"`
	Element   string `json:"element"`  // Internal element id
	Property  string `json:"property"` // Property name on that element
	Transform string `json:"transform,omitempty"`
}

// ExternalPad declares an externally linkable pad on a block, resolving to a
// pad on one of the block's internal elements.
type ExternalPad struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // Media kind: "audio", "video", "data"
	Element string `json:"element"`
	Pad     string `json:"pad"`
}

// BlockDefinition describes the internal structure of a reusable block.
// Consumed read-only by the compiler.
type BlockDefinition struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`

	Elements []flow.Element    `json:"elements"`
	Links    []flow.Link       `json:"links,omitempty"`
	Exposed  []ExposedProperty `json:"exposed,omitempty"`
	Pads     []ExternalPad     `json:"pads,omitempty"`
}

// ExternalPad looks up a declared external pad by name
func (d *BlockDefinition) ExternalPad(name string) (ExternalPad, bool) {
	for _, p := range d.Pads {
		if p.Name == name {
			return p, true
		}
	}
	return ExternalPad{}, false
}

// Validate checks internal consistency of a block definition
func (d *BlockDefinition) Validate() error {
	if d.ID == "" {
		return errors.WrapInvalid(fmt.Errorf("block definition ID cannot be empty"),
			"catalog", "Validate", "validation")
	}

	elements := make(map[string]bool, len(d.Elements))
	for _, el := range d.Elements {
		if el.ID == "" || el.Type == "" {
			return errors.WrapInvalid(
				fmt.Errorf("definition '%s' has element with empty id or type", d.ID),
				"catalog", "Validate", "element validation")
		}
		if elements[el.ID] {
			return errors.WrapInvalid(
				fmt.Errorf("definition '%s' has duplicate internal element id '%s'", d.ID, el.ID),
				"catalog", "Validate", "duplicate element detection")
		}
		elements[el.ID] = true
	}

	for _, l := range d.Links {
		if !elements[l.From.Node()] || !elements[l.To.Node()] {
			return errors.WrapInvalid(
				fmt.Errorf("definition '%s' has internal link %s -> %s referencing unknown element",
					d.ID, l.From, l.To),
				"catalog", "Validate", "internal link validation")
		}
	}

	for _, ep := range d.Exposed {
		if !elements[ep.Element] {
			return errors.WrapInvalid(
				fmt.Errorf("definition '%s' exposes property '%s' on unknown element '%s'",
					d.ID, ep.Name, ep.Element),
				"catalog", "Validate", "exposed property validation")
		}
	}

	for _, p := range d.Pads {
		if !elements[p.Element] {
			return errors.WrapInvalid(
				fmt.Errorf("definition '%s' declares external pad '%s' on unknown element '%s'",
					d.ID, p.Name, p.Element),
				"catalog", "Validate", "external pad validation")
		}
	}

	return nil
}

// Catalog is the lookup interface the compiler consumes.
// GetBlockDefinition returns errors.ErrUnknownBlock (wrapped) when no
// definition exists for the id.
type Catalog interface {
	GetBlockDefinition(ctx context.Context, id string) (*BlockDefinition, error)
}

// MemoryCatalog is a thread-safe in-memory Catalog
type MemoryCatalog struct {
	definitions map[string]*BlockDefinition
	mu          sync.RWMutex
}

// NewMemoryCatalog creates an empty in-memory catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		definitions: make(map[string]*BlockDefinition),
	}
}

// Register adds a block definition after validating it
func (c *MemoryCatalog) Register(def *BlockDefinition) error {
	if def == nil {
		return errors.WrapInvalid(fmt.Errorf("nil definition"), "MemoryCatalog", "Register", "validation")
	}
	if err := def.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.definitions[def.ID]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("block definition '%s' already registered", def.ID),
			"MemoryCatalog", "Register", "duplicate definition check")
	}

	c.definitions[def.ID] = def
	return nil
}

// GetBlockDefinition implements Catalog
func (c *MemoryCatalog) GetBlockDefinition(_ context.Context, id string) (*BlockDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.definitions[id]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownBlock, id),
			"MemoryCatalog", "GetBlockDefinition", "definition lookup")
	}
	return def, nil
}

// List returns the ids of all registered definitions
func (c *MemoryCatalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.definitions))
	for id := range c.definitions {
		ids = append(ids, id)
	}
	return ids
}
