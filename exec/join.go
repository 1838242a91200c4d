package exec

import (
	"runtime"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/matchgroup"
	"github.com/korpling/graphannis-go/query"
	"golang.org/x/sync/errgroup"
)

// indexJoin implements the §4.5 index join: the left iterator drives the
// join, and the right side's candidates come from the bound operator's
// retrieve_matches rather than from building plan.Right as its own
// iterator (plan construction only ever chooses this node kind when the
// right side is still a plain node search, so its spec, predicates and
// unary filters are applied here directly against each candidate node).
func indexJoin(plan *compile.Node, g compile.Graph) Iterator {
	retriever := plan.Operator.(query.MatchRetriever)
	store := g.NodeAnnotations()
	coverage := g.CoverageComponentsWithNodes()

	return func(yield func(matchgroup.Group) bool) {
		for leftRow := range Build(plan.Left, g) {
			leftMatch := leftRow.Get(plan.OperandLeftPos)

			var lastCandidate anno.NodeID
			haveLast := false
			ok := true

			for candidate := range retriever.RetrieveMatches(leftMatch.Node) {
				if plan.Right.Spec.ConstOutput && haveLast && candidate == lastCandidate {
					continue
				}
				haveLast, lastCandidate = true, candidate

				if !passesPredicates(plan.Right.Predicates, coverage, candidate) {
					continue
				}
				if !passesUnary(plan.Right, candidate) {
					continue
				}

				emitNodeMatches(plan.Right.Spec, store, candidate, func(m matchgroup.Match) {
					if !ok {
						return
					}
					if !plan.Reflexive && leftMatch.Node == m.Node && leftMatch.Key == m.Key {
						return
					}
					if plan.GlobalReflexive && violatesGlobalReflexivity(leftRow, m) {
						return
					}
					ok = yield(placed(leftRow, plan.OperandRightPos, m))
				})
				if !ok {
					return
				}
			}
		}
	}
}

// nestedLoopJoin implements the §4.5 nested-loop join: the inner side is
// materialised once into a cache, the smaller-output side becomes the
// outer loop, and candidate pairs against each outer row are evaluated in
// parallel batches of nestedLoopBatchSize via a bounded errgroup, the
// surviving groups of a batch yielded once the whole batch completes.
func nestedLoopJoin(plan *compile.Node, g compile.Graph) Iterator {
	matcher := plan.Operator.(query.FilterMatcher)

	return func(yield func(matchgroup.Group) bool) {
		leftRows := collect(Build(plan.Left, g))
		rightRows := collect(Build(plan.Right, g))

		outer, inner := leftRows, rightRows
		outerIsRight := false
		if len(rightRows) < len(leftRows) {
			outer, inner = rightRows, leftRows
			outerIsRight = true
		}

		for batchStart := 0; batchStart < len(outer); batchStart += nestedLoopBatchSize {
			batch := outer[batchStart:min(batchStart+nestedLoopBatchSize, len(outer))]
			results := make([][]matchgroup.Group, len(batch))

			group := new(errgroup.Group)
			group.SetLimit(runtime.GOMAXPROCS(0))
			for i, outerRow := range batch {
				i, outerRow := i, outerRow
				group.Go(func() error {
					results[i] = matchPairs(plan, matcher, outerRow, inner, outerIsRight)
					return nil
				})
			}
			_ = group.Wait()

			for _, survivors := range results {
				for _, combined := range survivors {
					if !yield(combined) {
						return
					}
				}
			}
		}
	}
}

const nestedLoopBatchSize = 512

// matchPairs evaluates outerRow against every row in inner, returning the
// combined groups that satisfy matcher and plan's reflexivity rules.
func matchPairs(plan *compile.Node, matcher query.FilterMatcher, outerRow matchgroup.Group, inner []matchgroup.Group, outerIsRight bool) []matchgroup.Group {
	var survivors []matchgroup.Group
	for _, innerRow := range inner {
		leftRow, rightRow := outerRow, innerRow
		if outerIsRight {
			leftRow, rightRow = innerRow, outerRow
		}

		leftMatch := leftRow.Get(plan.OperandLeftPos)
		rightMatch := rightRow.Get(plan.OperandRightPos)

		if !plan.Reflexive && leftMatch.Node == rightMatch.Node && leftMatch.Key == rightMatch.Key {
			continue
		}
		if !matcher.FilterMatch(leftMatch.Node, rightMatch.Node) {
			continue
		}
		if plan.GlobalReflexive && violatesGlobalReflexivity(leftRow, rightMatch) {
			continue
		}
		survivors = append(survivors, overlay(leftRow, rightRow))
	}
	return survivors
}

// violatesGlobalReflexivity implements global_reflexivity's widened
// check: candidate must not repeat a (node, key) pair already bound at
// any position of leftRow, not just the directly joined operand.
func violatesGlobalReflexivity(leftRow matchgroup.Group, candidate matchgroup.Match) bool {
	for i := 0; i < leftRow.Len(); i++ {
		m := leftRow.Get(i)
		if m.Node == 0 {
			continue
		}
		if m.Node == candidate.Node && m.Key == candidate.Key {
			return true
		}
	}
	return false
}

// collect fully materialises it; the nested-loop join uses it for both of
// its sides.
func collect(it Iterator) []matchgroup.Group {
	var out []matchgroup.Group
	for g := range it {
		out = append(out, g)
	}
	return out
}
