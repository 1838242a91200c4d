package corpusstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/qerr"
	"github.com/korpling/graphannis-go/query"
)

// Plan wraps a compiled execution tree for external inspection (a REPL
// collaborator's "planning" operation), without exposing [compile.Node]
// itself as part of this package's API.
type Plan struct {
	root *compile.Node
}

// Plan compiles conj against the named corpus without executing it.
func (m *Manager) Plan(ctx context.Context, corpus string, conj query.Conjunction) (*Plan, error) {
	g, err := m.open(ctx, corpus)
	if err != nil {
		return nil, err
	}
	root, err := buildPlan(ctx, conj, g)
	if err != nil {
		return nil, err
	}
	return &Plan{root: root}, nil
}

// Describe renders the plan tree as an indented textual description: each
// node's kind, operator name (if any), and estimated output cardinality.
func (p *Plan) Describe() (string, error) {
	if p == nil || p.root == nil {
		return "", qerr.New(qerr.KindPlanDescriptionMissing, "plan was never built").Build()
	}
	var b strings.Builder
	describeNode(&b, p.root, 0)
	return b.String(), nil
}

// Cost returns the plan root's cost-model estimate.
func (p *Plan) Cost() (compile.Cost, error) {
	if p == nil || p.root == nil {
		return compile.Cost{}, qerr.New(qerr.KindPlanCostMissing, "plan was never built").Build()
	}
	return p.root.Cost, nil
}

func describeNode(b *strings.Builder, n *compile.Node, depth int) {
	if n == nil {
		return
	}
	fmt.Fprintf(b, "%s%s", strings.Repeat("  ", depth), kindName(n.Kind))
	if n.OperatorName != "" {
		fmt.Fprintf(b, " op=%s", n.OperatorName)
	}
	fmt.Fprintf(b, " output=%.1f\n", n.Cost.Output)
	describeNode(b, n.Left, depth+1)
	describeNode(b, n.Right, depth+1)
}

func kindName(k compile.NodeKind) string {
	switch k {
	case compile.NodeSearchNode:
		return "NodeSearch"
	case compile.PartOfComponentNode:
		return "PartOfComponent"
	case compile.FilterNode:
		return "Filter"
	case compile.IndexJoinNode:
		return "IndexJoin"
	case compile.NestedLoopJoinNode:
		return "NestedLoopJoin"
	default:
		return "Unknown"
	}
}
