package compiler

import (
	"fmt"
	"strings"

	"github.com/eyevinn-osaas/strom-sub003/flow"
)

// DistributionNodeType is the node type used for auto-inserted fan-out
// points. The type's runtime contract: any output may be left unconnected
// without stalling delivery to the others.
const DistributionNodeType = "tee"

// distributionInputPad is the single input pad of a distribution node
const distributionInputPad = "sink"

// DistributionPoint describes a synthetic fan-out node inserted by the
// topology builder, or created at run time for an unexpected dynamic pad.
type DistributionPoint struct {
	Name          string        `json:"name"`
	Source        flow.Endpoint `json:"source"`
	Outputs       int           `json:"outputs"`
	AllowUnlinked bool          `json:"allow_unlinked"`
}

// DistributionName derives the deterministic name of the distribution node
// for a source endpoint.
func DistributionName(source flow.Endpoint) string {
	return "auto_tee_" + strings.ReplaceAll(string(source), ":", "_")
}

// DistributionOutputPad returns the pad name of the nth output on a
// distribution node. Allocation order follows input link order.
func DistributionOutputPad(n int) string {
	return fmt.Sprintf("src_%d", n)
}

// BuildTopology decides final wiring for an expanded link set. A source
// endpoint referenced by exactly one link passes through unchanged; a
// source referenced by N>=2 links gets exactly one distribution node, with
// the original source feeding the node's input and all N links rewritten to
// originate from its outputs.
//
// Naming and output allocation are pure functions of input order, so
// identical input always yields identical topology.
func BuildTopology(links []flow.Link) ([]flow.Link, []DistributionPoint) {
	counts := make(map[flow.Endpoint]int, len(links))
	for _, l := range links {
		counts[l.From]++
	}

	final := make([]flow.Link, 0, len(links))
	var points []DistributionPoint
	allocated := make(map[flow.Endpoint]int)

	for _, l := range links {
		if counts[l.From] < 2 {
			final = append(final, l)
			continue
		}

		name := DistributionName(l.From)
		if _, seen := allocated[l.From]; !seen {
			// First appearance: feed the original source into the
			// distribution node's input.
			final = append(final, flow.Link{
				From: l.From,
				To:   flow.NewEndpoint(name, distributionInputPad),
			})
			points = append(points, DistributionPoint{
				Name:          name,
				Source:        l.From,
				Outputs:       counts[l.From],
				AllowUnlinked: true,
			})
		}

		idx := allocated[l.From]
		allocated[l.From] = idx + 1

		final = append(final, flow.Link{
			From: flow.NewEndpoint(name, DistributionOutputPad(idx)),
			To:   l.To,
		})
	}

	return final, points
}
