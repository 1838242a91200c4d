package exec

import (
	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/matchgroup"
	"github.com/korpling/graphannis-go/query"
)

// nodeSearch wraps plan's base iterator and predicate list (§4.5): for
// each candidate node surviving every predicate, emit one full-width
// group per matching key.
func nodeSearch(plan *compile.Node, g compile.Graph) Iterator {
	return func(yield func(matchgroup.Group) bool) {
		store := g.NodeAnnotations()
		coverage := g.CoverageComponentsWithNodes()
		base := plan.Spec.BaseIterator(g)

		for node := range base {
			if !passesPredicates(plan.Predicates, coverage, node) {
				continue
			}
			if !passesUnary(plan, node) {
				continue
			}
			ok := true
			emitNodeMatches(plan.Spec, store, node, func(m matchgroup.Match) {
				if !ok {
					return
				}
				ok = yield(placed(newSlots(plan), plan.Pos, m))
			})
			if !ok {
				return
			}
		}
	}
}

func passesPredicates(preds []query.Predicate, coverage []gs.GraphStorage, node anno.NodeID) bool {
	for _, pred := range preds {
		if !pred(coverage, node) {
			return false
		}
	}
	return true
}

// passesUnary reports whether node satisfies every unary operator plan
// attached to its own position. A leaf node search or part-of-component
// scan is the only place a unary operator's constrained position is
// still a single node id, before it is folded into a wider group.
func passesUnary(plan *compile.Node, node anno.NodeID) bool {
	for _, uf := range plan.Unary {
		if !uf.Operator().FilterMatch(node) {
			return false
		}
	}
	return true
}
