// Package compile turns a [query.Conjunction] and a fixed operator order
// into an executable plan: a tree of node searches, part-of-component
// scans, filters, and joins, each carrying the cost-model estimates
// (§4.4) the join-order optimizer and the executor both consume.
package compile

import (
	"strconv"

	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/qerr"
	"github.com/korpling/graphannis-go/query"
)

// Graph is the capability set plan construction needs from an
// annotation graph: everything a node search or a bound operator reads.
type Graph interface {
	query.Source
	query.OperatorSource
}

// NodeKind is the closed set of plan node shapes.
type NodeKind uint8

const (
	NodeSearchNode NodeKind = iota + 1
	PartOfComponentNode
	FilterNode
	IndexJoinNode
	NestedLoopJoinNode
)

// Cost is the §4.4 cost-model triple attached to every plan node.
type Cost struct {
	Output          float64
	IntermediateSum float64
	ProcessedInStep float64
}

// Node is one plan tree node. Only the fields relevant to Kind are
// populated; see the constructors in this package.
type Node struct {
	Kind NodeKind
	Cost Cost

	// NodeSearchNode / PartOfComponentNode
	Spec             query.NodeSearchSpec
	Predicates       []query.Predicate
	PartOfComponents []component.Descriptor
	EdgeSelector     query.EdgeAnnotationSelector

	// FilterNode / IndexJoinNode / NestedLoopJoinNode
	OperatorName string
	Operator     query.Operator
	Swapped      bool
	Left         *Node
	Right        *Node

	// OperandLeftPos and OperandRightPos are the global slots (see Pos)
	// of the two node-search positions the bound operator above compares,
	// already adjusted for a Swapped inverse substitution: the executor
	// reads OperandLeftPos as the operator's left-hand operand.
	OperandLeftPos  int
	OperandRightPos int

	// Reflexive and GlobalReflexive carry the bound operator's
	// reflexivity (§4.5): Reflexive reports whether a node is always a
	// valid match with itself under this operator; GlobalReflexive, set
	// from the operator spec's global_reflexivity flag, widens the
	// same-node-id suppression the executor applies to every left-side
	// position already bound, not just the two operands just joined.
	Reflexive       bool
	GlobalReflexive bool

	// Pos is the global match-group slot a NodeSearchNode or
	// PartOfComponentNode fills (its node search's index in the
	// conjunction). Total is the width of that global slot schema,
	// carried by every node so the executor can pre-size a full-width
	// group and fill it in by slot rather than by traversal order,
	// which would otherwise depend on the operator order chosen.
	Pos   int
	Total int

	// Unary operators attached as post-filters on this node.
	Unary []unaryFilter

	// NodePos maps every query variable whose node search is rooted
	// under this plan node to its fixed match-group position.
	NodePos map[string]int
}

type unaryFilter struct {
	operator query.UnaryOperator
	name     string
}

// Operator returns the bound unary operator instance.
func (u unaryFilter) Operator() query.UnaryOperator { return u.operator }

// componentState tracks, during construction, which plan node currently
// owns each node-search position and what component id that position
// belongs to (positions sharing a component id have been joined together
// already).
type componentState struct {
	nodeComponent []int
	roots         map[int]*Node
}

func newComponentState(n int) *componentState {
	ids := make([]int, n)
	roots := make(map[int]*Node, n)
	for i := range ids {
		ids[i] = i
	}
	return &componentState{nodeComponent: ids, roots: roots}
}

func (s *componentState) componentOf(i int) int { return s.nodeComponent[i] }

func (s *componentState) rootOf(i int) *Node { return s.roots[s.componentOf(i)] }

func (s *componentState) setRoot(i int, n *Node) {
	s.roots[s.componentOf(i)] = n
}

// merge makes j's component id equal to i's, folding j's root out of the
// live root set.
func (s *componentState) merge(i, j int) {
	from, to := s.componentOf(j), s.componentOf(i)
	if from == to {
		return
	}
	for k, c := range s.nodeComponent {
		if c == from {
			s.nodeComponent[k] = to
		}
	}
	delete(s.roots, from)
}

// distinctComponents returns the number of distinct component ids still
// live across every non-optional node-search position.
func (s *componentState) distinctComponents(conj query.Conjunction) int {
	seen := make(map[int]bool)
	for i, n := range conj.Nodes {
		if n.Optional {
			continue
		}
		seen[s.componentOf(i)] = true
	}
	return len(seen)
}

// Build constructs a plan for conj with operators applied in the given
// order (a permutation of indices into conj.Binary), against g.
func Build(conj query.Conjunction, g Graph, order []int) (*Node, error) {
	if len(order) != len(conj.Binary) {
		panic("compile.Build: order must be a permutation of conj.Binary")
	}

	total := len(conj.Nodes)
	state := newComponentState(total)
	store := g.NodeAnnotations()

	// Step 1+2: instantiate every node search, substituting a
	// part-of-component scan where it is cheaper.
	for i, spec := range conj.Nodes {
		n := newNodeSearch(i, total, spec, store)
		n = maybeSubstitutePartOfComponent(n, spec, conj, g)
		state.setRoot(i, n)
	}

	// Step 3: attach unary operators as post-filters.
	for _, u := range conj.Unary {
		idx, ok := conj.IndexOf(u.Variable)
		if !ok {
			return nil, qerr.New(qerr.KindSemanticError, "unary operator references an unbound variable").
				WithSpan(u.Span).
				WithDetail("variable", u.Variable).
				Build()
		}
		root := state.rootOf(idx)
		instance := u.Bind(g)
		root.Unary = append(root.Unary, unaryFilter{operator: instance, name: describeUnary(u)})
		root.Cost = applySelectivity(root.Cost, instance.Estimate())
	}

	// Step 4+5: place each operator in the given order.
	for _, opIdx := range order {
		op := conj.Binary[opIdx]
		li, ok := conj.IndexOf(op.LeftVar)
		if !ok {
			return nil, qerr.New(qerr.KindLHSOperandNotFound, "left operand variable is unbound").
				WithSpan(op.Span).WithDetail("variable", op.LeftVar).Build()
		}
		ri, ok := conj.IndexOf(op.RightVar)
		if !ok {
			return nil, qerr.New(qerr.KindRHSOperandNotFound, "right operand variable is unbound").
				WithSpan(op.Span).WithDetail("variable", op.RightVar).Build()
		}

		left, right := state.rootOf(li), state.rootOf(ri)
		operandLeft, operandRight := li, ri
		impl := op.Impl()
		swapped := false
		if inv, ok := impl.Inverse(); ok && right.Cost.Output < left.Cost.Output {
			impl = inv
			left, right = right, left
			operandLeft, operandRight = operandRight, operandLeft
			swapped = true
		}
		instance := impl.Bind(g)

		// An index join drives its outer loop from the left side (whatever
		// shape it is) and interprets retrieve_matches' raw candidate node
		// ids against the right side's own node-search spec; that requires
		// the right side to still be a plain node search. If only the left
		// side is a node search, swap both the operands and the operator
		// for its inverse so the node-search side always ends up on the
		// right, where retrieve_matches can drive it.
		if inv, ok := impl.Inverse(); ok && right.Kind != NodeSearchNode && left.Kind == NodeSearchNode {
			impl = inv
			left, right = right, left
			operandLeft, operandRight = operandRight, operandLeft
			swapped = !swapped
			instance = impl.Bind(g)
		}

		_, canRetrieveMatches := instance.(query.MatchRetriever)

		var combined *Node
		if state.componentOf(li) == state.componentOf(ri) {
			combined = newFilterNode(left, impl.Name(), instance, swapped, operandLeft, operandRight)
		} else if right.Kind == NodeSearchNode && canRetrieveMatches {
			combined = newIndexJoinNode(left, right, impl.Name(), instance, swapped, operandLeft, operandRight, impl.Reflexive(), op.GlobalReflexive)
		} else {
			combined = newNestedLoopJoinNode(left, right, impl.Name(), instance, swapped, operandLeft, operandRight, impl.Reflexive(), op.GlobalReflexive)
		}

		state.setRoot(li, combined)
		state.merge(li, ri)
	}

	if got := state.distinctComponents(conj); got != 1 {
		return nil, qerr.New(qerr.KindSemanticError, "plan construction did not converge to a single component").
			WithDetail("remaining_components", strconv.Itoa(got)).
			Build()
	}

	var root *Node
	for i, n := range conj.Nodes {
		if n.Optional {
			continue
		}
		root = state.rootOf(i)
		break
	}
	if root == nil {
		return nil, qerr.New(qerr.KindSemanticError, "conjunction has no non-optional node searches").Build()
	}
	root.NodePos = nodePositions(conj)
	return root, nil
}

// nodePositions assigns every query variable its fixed match-group
// position: the variable's index in the conjunction's node-search list,
// per §4.5's "plan-time node_pos map (query-variable index → group
// position)".
func nodePositions(conj query.Conjunction) map[string]int {
	pos := make(map[string]int, len(conj.Nodes))
	for i, n := range conj.Nodes {
		if n.Variable != "" {
			pos[n.Variable] = i
		}
	}
	return pos
}

func describeUnary(u query.UnaryOperatorSpec) string {
	return "unary:" + u.Variable
}
