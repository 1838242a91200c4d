package exec

import (
	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/matchgroup"
)

// partOfComponent implements the part-of-component scan (§4.5): iterate
// the source nodes of every component plan substituted in for the
// original node search, optionally filtered by an edge-annotation
// selector, and apply the original node search's predicates and match
// emission to each source node.
func partOfComponent(plan *compile.Node, g compile.Graph) Iterator {
	return func(yield func(matchgroup.Group) bool) {
		store := g.NodeAnnotations()
		coverage := g.CoverageComponentsWithNodes()

		seen := make(map[anno.NodeID]bool)
		ok := true

		for _, d := range plan.PartOfComponents {
			storage := g.GraphStorage(d)
			for node := range storage.SourceNodes() {
				if seen[node] {
					continue
				}
				seen[node] = true

				if !edgeSelectorMatches(plan, storage, node) {
					continue
				}
				if !passesPredicates(plan.Predicates, coverage, node) {
					continue
				}
				if !passesUnary(plan, node) {
					continue
				}
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
}

// edgeSelectorMatches reports whether node has at least one outgoing
// edge in storage carrying the annotation plan's edge-annotation
// selector names, or true if plan has no selector.
func edgeSelectorMatches(plan *compile.Node, storage gs.GraphStorage, node anno.NodeID) bool {
	sel := plan.EdgeSelector
	if sel.Namespace == "" && sel.Name == "" && !sel.HasValue {
		return true
	}
	edgeAnno := storage.EdgeAnnotations()
	key := anno.Key{Namespace: sel.Namespace, Name: sel.Name}
	for target := range storage.Outgoing(node) {
		value, ok := edgeAnno.GetValue(anno.Edge{Source: node, Target: target}, key)
		if !ok {
			continue
		}
		if !sel.HasValue || value == sel.Value {
			return true
		}
	}
	return false
}
