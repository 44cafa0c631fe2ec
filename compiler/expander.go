package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/eyevinn-osaas/strom-sub003/catalog"
	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
)

// ExpandedPipeline is the block expander's output: a flat set of primitive
// elements and primitive links. It is transient, consumed immediately by
// BuildTopology.
type ExpandedPipeline struct {
	Elements []flow.Element `json:"elements"`
	Links    []flow.Link    `json:"links"`
}

// Expander rewrites a graph containing block instances into a flat graph of
// primitive elements, by cloning and namespacing each block's internal
// structure and splicing its external pads into the surrounding link set.
type Expander struct {
	catalog catalog.Catalog
	logger  *slog.Logger
	tempDir string // for the file transform; defaults to os.TempDir()
}

// NewExpander creates a block expander backed by the given catalog
func NewExpander(cat catalog.Catalog, logger *slog.Logger) *Expander {
	return &Expander{
		catalog: cat,
		logger:  logger,
	}
}

// Expand flattens blocks into primitive elements and links. Element and
// link order is a pure function of input order: flow elements first, then
// each block's internals in instance order, so recompiling identical input
// yields identical output.
func (e *Expander) Expand(
	ctx context.Context,
	elements []flow.Element,
	blocks []flow.BlockInstance,
	links []flow.Link,
) (*ExpandedPipeline, error) {
	out := &ExpandedPipeline{
		Elements: make([]flow.Element, 0, len(elements)),
		Links:    make([]flow.Link, 0, len(links)),
	}

	for _, el := range elements {
		out.Elements = append(out.Elements, cloneElement(el, ""))
	}

	// Definitions by instance id, needed again for external-pad rewriting
	defs := make(map[string]*catalog.BlockDefinition, len(blocks))

	for _, blk := range blocks {
		def, err := e.catalog.GetBlockDefinition(ctx, blk.Definition)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s (instance '%s')", errors.ErrUnknownBlock, blk.Definition, blk.ID),
				"Expander", "Expand", "block definition lookup")
		}
		defs[blk.ID] = def

		cloned := make([]flow.Element, 0, len(def.Elements))
		for _, internal := range def.Elements {
			cloned = append(cloned, cloneElement(internal, blk.ID))
		}

		// Exposed properties write through to the cloned internal elements,
		// possibly via a named transform.
		for _, exposed := range def.Exposed {
			value, supplied := blk.Properties[exposed.Name]
			if !supplied {
				continue
			}

			transformed, err := e.applyTransform(exposed.Transform, value)
			if err != nil {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: block '%s' property '%s'", err, blk.ID, exposed.Name),
					"Expander", "Expand", "exposed property transform")
			}

			target := blk.ID + ":" + exposed.Element
			applied := false
			for i := range cloned {
				if cloned[i].ID == target {
					if cloned[i].Properties == nil {
						cloned[i].Properties = make(map[string]any)
					}
					cloned[i].Properties[exposed.Property] = transformed
					applied = true
					break
				}
			}
			// Registered definitions are validated on insert, but the
			// catalog interface admits implementations that are not.
			if !applied {
				return nil, errors.WrapInvalid(
					fmt.Errorf("block '%s' exposes property '%s' on unknown element '%s'",
						blk.ID, exposed.Name, exposed.Element),
					"Expander", "Expand", "exposed property target lookup")
			}
		}

		for name := range blk.Properties {
			if !hasExposedProperty(def, name) {
				return nil, errors.WrapInvalid(
					fmt.Errorf("block '%s' has no exposed property '%s'", blk.ID, name),
					"Expander", "Expand", "exposed property lookup")
			}
		}

		out.Elements = append(out.Elements, cloned...)

		for _, l := range def.Links {
			out.Links = append(out.Links, flow.Link{
				From: namespaceEndpoint(l.From, blk.ID),
				To:   namespaceEndpoint(l.To, blk.ID),
			})
		}
	}

	for _, l := range links {
		from, err := resolveExternal(l.From, defs)
		if err != nil {
			return nil, err
		}
		to, err := resolveExternal(l.To, defs)
		if err != nil {
			return nil, err
		}
		out.Links = append(out.Links, flow.Link{From: from, To: to})
	}

	// Invariant: no two elements share an id after namespacing
	seen := make(map[string]bool, len(out.Elements))
	for _, el := range out.Elements {
		if seen[el.ID] {
			return nil, errors.WrapInvalid(
				fmt.Errorf("expanded element id '%s' is not unique", el.ID),
				"Expander", "Expand", "id uniqueness check")
		}
		seen[el.ID] = true
	}

	return out, nil
}

// applyTransform applies a named exposed-property transform. Unrecognized
// transform names are a compile error, not a silent no-op.
func (e *Expander) applyTransform(transform string, value any) (any, error) {
	switch transform {
	case catalog.TransformNone:
		return value, nil
	case catalog.TransformFile:
		content, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("file transform requires string content, got %T", value)
		}

		dir := e.tempDir
		if dir == "" {
			dir = os.TempDir()
		}
		path := filepath.Join(dir, "strom-"+uuid.NewString())
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return nil, fmt.Errorf("materialize content to file: %w", err)
		}
		if e.logger != nil {
			e.logger.Debug("Materialized property content to file", "path", path, "bytes", len(content))
		}
		return path, nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedTransform, transform)
	}
}

// resolveExternal rewrites a "block:external_pad" endpoint to the concrete
// "block:internal_element:pad" it maps to. Endpoints not referencing a block
// instance pass through unchanged.
func resolveExternal(ep flow.Endpoint, defs map[string]*catalog.BlockDefinition) (flow.Endpoint, error) {
	def, ok := defs[ep.Node()]
	if !ok {
		return ep, nil
	}

	pad, ok := def.ExternalPad(ep.Pad())
	if !ok {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: '%s' on block '%s' (definition '%s')",
				errors.ErrUnknownExternalPad, ep.Pad(), ep.Node(), def.ID),
			"Expander", "Expand", "external pad resolution")
	}

	return flow.NewEndpoint(ep.Node()+":"+pad.Element, pad.Pad), nil
}

// cloneElement deep-copies an element, namespacing its id under instanceID
// when non-empty.
func cloneElement(el flow.Element, instanceID string) flow.Element {
	id := el.ID
	if instanceID != "" {
		id = instanceID + ":" + el.ID
	}

	out := flow.Element{
		ID:   id,
		Type: el.Type,
	}
	if el.Properties != nil {
		out.Properties = make(map[string]any, len(el.Properties))
		for k, v := range el.Properties {
			out.Properties[k] = v
		}
	}
	if el.PadProperties != nil {
		out.PadProperties = make(map[string]map[string]any, len(el.PadProperties))
		for pad, props := range el.PadProperties {
			cp := make(map[string]any, len(props))
			for k, v := range props {
				cp[k] = v
			}
			out.PadProperties[pad] = cp
		}
	}
	return out
}

func namespaceEndpoint(ep flow.Endpoint, instanceID string) flow.Endpoint {
	return flow.Endpoint(instanceID + ":" + string(ep))
}

func hasExposedProperty(def *catalog.BlockDefinition, name string) bool {
	for _, exposed := range def.Exposed {
		if exposed.Name == name {
			return true
		}
	}
	return false
}
