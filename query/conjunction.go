package query

import (
	"github.com/korpling/graphannis-go/qerr"
)

// Conjunction is the compiler's full input: an ordered list of node
// searches plus the binary and unary operators connecting them.
type Conjunction struct {
	Nodes  []NodeSearchSpec
	Binary []BinaryOperatorSpec
	Unary  []UnaryOperatorSpec
}

// indexOf returns the position of the node search bound to variable, and
// whether one exists. Variables are matched by exact name; the empty
// string never matches (anonymous node searches cannot be referenced).
func (c Conjunction) indexOf(variable string) (int, bool) {
	if variable == "" {
		return 0, false
	}
	for i, n := range c.Nodes {
		if n.Variable == variable {
			return i, true
		}
	}
	return 0, false
}

// IndexOf returns the position of the node search bound to variable, and
// whether one exists. Used by the compiler to resolve operand and unary
// operator variables to node-search positions.
func (c Conjunction) IndexOf(variable string) (int, bool) {
	return c.indexOf(variable)
}

// unionFind is an append-only, never-recycled disjoint-set structure
// over node-search positions, the same indices-assigned-once discipline
// component.Registry and schema.Registry apply to their own keys.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri != rj {
		u.parent[ri] = rj
	}
}

// Validate checks that every operand variable resolves to a node search
// and that every non-optional node search is connected to every other
// non-optional node search through binding binary operators, per §4.4.
// Returns the first error found; a frontend wanting every error at once
// should collect with [qerr.Collector] itself by calling Validate on
// sub-conjunctions, since a structurally broken conjunction makes
// downstream connectivity checks meaningless.
func (c Conjunction) Validate() *qerr.Error {
	uf := newUnionFind(len(c.Nodes))

	for _, op := range c.Binary {
		li, ok := c.indexOf(op.LeftVar)
		if !ok {
			return qerr.New(qerr.KindLHSOperandNotFound, "left operand variable is unbound").
				WithSpan(op.Span).
				WithDetail("variable", op.LeftVar).
				Build()
		}
		ri, ok := c.indexOf(op.RightVar)
		if !ok {
			return qerr.New(qerr.KindRHSOperandNotFound, "right operand variable is unbound").
				WithSpan(op.Span).
				WithDetail("variable", op.RightVar).
				Build()
		}
		if op.Binding() {
			uf.union(li, ri)
		}
	}

	for _, op := range c.Unary {
		if _, ok := c.indexOf(op.Variable); !ok {
			return qerr.New(qerr.KindSemanticError, "unary operator references an unbound variable").
				WithSpan(op.Span).
				WithDetail("variable", op.Variable).
				Build()
		}
	}

	return c.checkConnectivity(uf)
}

// checkConnectivity fails when two non-optional node searches end up in
// different union-find components: the conjunction cannot be evaluated
// as a single connected plan.
func (c Conjunction) checkConnectivity(uf *unionFind) *qerr.Error {
	root := -1
	for i, n := range c.Nodes {
		if n.Optional {
			continue
		}
		r := uf.find(i)
		if root == -1 {
			root = r
			continue
		}
		if r != root {
			return qerr.New(qerr.KindSemanticError, "node searches are not connected by any binding operator").
				WithSpan(n.Span).
				WithDetail("variable", n.Variable).
				Build()
		}
	}
	return nil
}
