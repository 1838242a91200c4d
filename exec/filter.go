package exec

import (
	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/matchgroup"
	"github.com/korpling/graphannis-go/query"
)

// filter implements the §4.5 filter execution node: a bound binary
// operator applied to the two positions it names within an
// already-connected group, passing through groups that satisfy it
// unchanged. Unary operators never produce a FilterNode; they are
// applied directly by the node-search and part-of-component iterators
// that hold the constrained position (see plan.Unary).
func filter(plan *compile.Node, g compile.Graph) Iterator {
	child := Build(plan.Left, g)
	matcher := plan.Operator.(query.FilterMatcher)

	return func(yield func(matchgroup.Group) bool) {
		for group := range child {
			lhs := group.Get(plan.OperandLeftPos).Node
			rhs := group.Get(plan.OperandRightPos).Node
			if !matcher.FilterMatch(lhs, rhs) {
				continue
			}
			if !yield(group) {
				return
			}
		}
	}
}
