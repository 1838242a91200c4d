package compile

import (
	"math"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/query"
)

func newNodeSearch(pos, total int, spec query.NodeSearchSpec, store *anno.Store[anno.NodeID]) *Node {
	output := float64(spec.EstimatedOutput(store))
	return &Node{
		Kind:       NodeSearchNode,
		Cost:       Cost{Output: output, ProcessedInStep: output, IntermediateSum: output},
		Spec:       spec,
		Predicates: spec.Predicates(),
		Pos:        pos,
		Total:      total,
	}
}

// maybeSubstitutePartOfComponent implements plan construction step 2: if
// any binary operator spec whose left operand is this node search
// advertises a necessary-components set whose total cardinality is
// smaller than the node search's own estimated output, the node search
// is replaced by a scan over those components. When several operators
// qualify, the cheapest substitution wins.
func maybeSubstitutePartOfComponent(n *Node, spec query.NodeSearchSpec, conj query.Conjunction, g Graph) *Node {
	if spec.Variable == "" {
		return n
	}
	bestCard := n.Cost.Output
	var bestComps []component.Descriptor
	var bestSelector query.EdgeAnnotationSelector
	found := false

	for _, op := range conj.Binary {
		if op.LeftVar != spec.Variable {
			continue
		}
		comps := op.NecessaryComponents()
		if len(comps) == 0 {
			continue
		}
		card := 0.0
		for _, d := range comps {
			card += float64(g.GraphStorage(d).Statistics().Nodes)
		}
		if card > 0 && card < bestCard {
			bestCard = card
			bestComps = comps
			found = true
			bestSelector = query.EdgeAnnotationSelector{}
			if sel, ok := op.Impl().EdgeAnnotationSelector(); ok {
				bestSelector = sel
			}
		}
	}
	if !found {
		return n
	}

	output := math.Max(1, bestCard)
	return &Node{
		Kind:             PartOfComponentNode,
		Cost:             Cost{Output: output, ProcessedInStep: output, IntermediateSum: output},
		Spec:             spec,
		Predicates:       spec.Predicates(),
		PartOfComponents: bestComps,
		EdgeSelector:     bestSelector,
		Pos:              n.Pos,
		Total:            n.Total,
	}
}

// applySelectivity implements the filter-cost rule shared by unary
// operators and intra-component binary operators: output cardinality is
// selectivity times the input's output (or the operator's reported
// minimum cardinality, whichever estimation kind it declares), clipped
// to at least 1, with the filter's own processing cost added to the
// child's intermediate sum.
func applySelectivity(child Cost, estimation query.Estimation) Cost {
	var output float64
	switch estimation.Kind {
	case query.MinCardinality:
		output = math.Min(estimation.Value, child.Output)
	default:
		output = estimation.Value * child.Output
	}
	output = math.Max(1, output)
	return Cost{
		Output:          output,
		ProcessedInStep: output,
		IntermediateSum: output + child.IntermediateSum,
	}
}

func newFilterNode(child *Node, name string, instance query.Operator, swapped bool, operandLeft, operandRight int) *Node {
	return &Node{
		Kind:            FilterNode,
		Cost:            applySelectivity(child.Cost, instance.Estimate()),
		OperatorName:    name,
		Operator:        instance,
		Swapped:         swapped,
		Left:            child,
		Total:           child.Total,
		OperandLeftPos:  operandLeft,
		OperandRightPos: operandRight,
	}
}

// joinCost implements §4.4's join combination rule: output is the
// selectivity-scaled product of both sides (or the smaller side's
// output, for min-cardinality operators), never below 1; processed cost
// differs between an index join (driven by the left side) and a
// nested-loop join (materialising whichever side has the smaller
// output as the outer loop).
func joinCost(left, right Cost, estimation query.Estimation, indexJoin bool) Cost {
	var output float64
	switch estimation.Kind {
	case query.MinCardinality:
		output = math.Min(left.Output, right.Output)
	default:
		output = estimation.Value * left.Output * right.Output
	}
	output = math.Max(1, output)

	var processed float64
	if indexJoin {
		processed = left.Output + estimation.Value*right.Output*left.Output
	} else {
		outer, inner := left.Output, right.Output
		if right.Output < left.Output {
			outer, inner = right.Output, left.Output
		}
		processed = outer + outer*inner
	}

	return Cost{
		Output:          output,
		ProcessedInStep: processed,
		IntermediateSum: processed + left.IntermediateSum + right.IntermediateSum,
	}
}

func newIndexJoinNode(left, right *Node, name string, instance query.Operator, swapped bool, operandLeft, operandRight int, reflexive, globalReflexive bool) *Node {
	return &Node{
		Kind:            IndexJoinNode,
		Cost:            joinCost(left.Cost, right.Cost, instance.Estimate(), true),
		OperatorName:    name,
		Operator:        instance,
		Swapped:         swapped,
		Left:            left,
		Right:           right,
		Total:           left.Total,
		OperandLeftPos:  operandLeft,
		OperandRightPos: operandRight,
		Reflexive:       reflexive,
		GlobalReflexive: globalReflexive,
	}
}

func newNestedLoopJoinNode(left, right *Node, name string, instance query.Operator, swapped bool, operandLeft, operandRight int, reflexive, globalReflexive bool) *Node {
	return &Node{
		Kind:            NestedLoopJoinNode,
		Cost:            joinCost(left.Cost, right.Cost, instance.Estimate(), false),
		OperatorName:    name,
		Operator:        instance,
		Swapped:         swapped,
		Left:            left,
		Right:           right,
		Total:           left.Total,
		OperandLeftPos:  operandLeft,
		OperandRightPos: operandRight,
		Reflexive:       reflexive,
		GlobalReflexive: globalReflexive,
	}
}
