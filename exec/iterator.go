// Package exec turns a [compile.Node] plan into a lazy, pull-based
// iterator over [matchgroup.Group] values: node searches, part-of-
// component scans, index joins, nested-loop joins, and filters, each
// consuming the cost-model plan the compile package built.
package exec

import (
	"iter"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/matchgroup"
	"github.com/korpling/graphannis-go/query"
)

// Iterator is the lazy sequence every execution node produces. It is a
// type alias for [iter.Seq], not a distinct named type, so a value
// produced here satisfies any interface elsewhere in this module whose
// method is declared to return iter.Seq[matchgroup.Group] directly.
type Iterator = iter.Seq[matchgroup.Group]

// Build compiles plan into a lazy iterator against g. The returned
// iterator emits one full-width [matchgroup.Group] per match, sized to
// plan's total variable count (see [compile.Node.Total]) and addressed
// by [compile.Node.Pos] regardless of the join order the plan was built
// with.
func Build(plan *compile.Node, g compile.Graph) Iterator {
	switch plan.Kind {
	case compile.NodeSearchNode:
		return nodeSearch(plan, g)
	case compile.PartOfComponentNode:
		return partOfComponent(plan, g)
	case compile.FilterNode:
		return filter(plan, g)
	case compile.IndexJoinNode:
		return indexJoin(plan, g)
	case compile.NestedLoopJoinNode:
		return nestedLoopJoin(plan, g)
	default:
		return func(func(matchgroup.Group) bool) {}
	}
}

// emitNodeMatches calls emit once per (key, applicable) match this node
// search spec produces for node, honouring const-output canonicalization
// and the namespace-collision dedup rule (§4.5): when const-output is
// set, a single canonical-keyed match is emitted regardless of how many
// real keys matched.
func emitNodeMatches(spec query.NodeSearchSpec, store *anno.Store[anno.NodeID], node anno.NodeID, emit func(matchgroup.Match)) {
	if spec.ConstOutput {
		emit(matchgroup.Match{Node: node, Key: spec.CanonicalKey()})
		return
	}
	for _, key := range spec.MatchingKeys(store, node) {
		emit(matchgroup.Match{Node: node, Key: key})
	}
}

// newSlots returns a full-width, all-zero group for plan's schema.
func newSlots(plan *compile.Node) matchgroup.Group {
	return matchgroup.NewOptional(plan.Total)
}

// placed returns a copy of base with m set at pos.
func placed(base matchgroup.Group, pos int, m matchgroup.Match) matchgroup.Group {
	out := base.Clone()
	out.Set(pos, m)
	return out
}

// overlay returns a group combining every slot set in a with every slot
// set in b. a and b must share the same width and must not set the same
// slot; the zero Match (node id 0) marks an unset slot, since node ids
// are assigned starting at 1.
func overlay(a, b matchgroup.Group) matchgroup.Group {
	out := a.Clone()
	for i := 0; i < b.Len(); i++ {
		m := b.Get(i)
		if m.Node != 0 {
			out.Set(i, m)
		}
	}
	return out
}
