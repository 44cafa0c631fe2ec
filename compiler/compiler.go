package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/catalog"
	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/metric"
	"github.com/eyevinn-osaas/strom-sub003/node"
)

// Pipeline is the compiler's output: the concrete wiring the pipeline
// manager instantiates against a live graph.
type Pipeline struct {
	FlowID       string              `json:"flow_id"`
	Elements     []flow.Element      `json:"elements"`
	Links        []flow.Link         `json:"links"`
	Distribution []DistributionPoint `json:"distribution"`
}

// Compiler turns a declarative Flow into an executable Pipeline: block
// expansion, node-type validation, then fan-out topology.
type Compiler struct {
	expander *Expander
	registry *node.Registry
	logger   *slog.Logger
	metrics  *compilerMetrics
}

// New creates a flow compiler. The node registry is optional; without one,
// node types and properties are validated only at construction time.
func New(
	cat catalog.Catalog,
	registry *node.Registry,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) *Compiler {
	metrics, err := newCompilerMetrics(metricsRegistry)
	if err != nil {
		logger.Error("Failed to initialize compiler metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	return &Compiler{
		expander: NewExpander(cat, logger),
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// Compile validates, expands, and wires a flow. Compiling the same flow
// twice yields identical element ids, link sets, and distribution-point
// names.
func (c *Compiler) Compile(ctx context.Context, f *flow.Flow) (*Pipeline, error) {
	start := time.Now()
	var compileErr error

	defer func() {
		c.metrics.recordCompile(f.ID, time.Since(start).Seconds(), compileErr)
	}()

	if err := f.Validate(); err != nil {
		compileErr = err
		return nil, errors.WrapInvalid(err, "Compiler", "Compile", "basic validation")
	}

	expanded, err := c.expander.Expand(ctx, f.Elements, f.Blocks, f.Links)
	if err != nil {
		compileErr = err
		return nil, err
	}

	if c.registry != nil {
		for _, el := range expanded.Elements {
			if _, ok := c.registry.Get(el.Type); !ok {
				compileErr = fmt.Errorf("%w: element '%s' has unknown node type '%s'",
					errors.ErrInvalidFlow, el.ID, el.Type)
				return nil, errors.WrapInvalid(compileErr, "Compiler", "Compile", "node type lookup")
			}
			if err := c.registry.ValidateProperties(el.Type, el.Properties); err != nil {
				compileErr = err
				return nil, errors.WrapInvalid(
					fmt.Errorf("element '%s': %w", el.ID, err),
					"Compiler", "Compile", "property validation")
			}
		}
	}

	finalLinks, points := BuildTopology(expanded.Links)

	c.logger.Debug("Compiled flow",
		"flow_id", f.ID,
		"elements", len(expanded.Elements),
		"links", len(finalLinks),
		"distribution_points", len(points))

	return &Pipeline{
		FlowID:       f.ID,
		Elements:     expanded.Elements,
		Links:        finalLinks,
		Distribution: points,
	}, nil
}
