package query

import (
	"iter"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/location"
)

// EstimationKind distinguishes the two ways a concrete operator instance
// may report expected join output: a selectivity factor applied to the
// product of both sides' outputs, or a hard minimum-cardinality bound
// applied directly (the *min* operators of §4.4's cost model).
type EstimationKind uint8

const (
	Selectivity EstimationKind = iota + 1
	MinCardinality
)

// Estimation is a concrete operator instance's self-reported cost input.
type Estimation struct {
	Kind  EstimationKind
	Value float64
}

// EdgeAnnotationSelector narrows a binary operator's necessary-components
// set to edges carrying a specific annotation, refining both the
// part-of-component optimisation (§4.5) and the selectivity estimate
// (§4.4) an operator instance reports.
type EdgeAnnotationSelector struct {
	Namespace string
	Name      string
	Value     string
	HasValue  bool
}

// Operator is a concrete, graph-bound operator instance: what a
// [BinaryOperatorSpec] or [UnaryOperatorSpec] produces once it has been
// attached to an annotation graph.
//
// An instance implements FilterMatch, RetrieveMatches, or both; the
// compiler and executor decide which capability a given plan node needs.
type Operator interface {
	// Estimate reports this instance's selectivity or minimum-cardinality
	// contribution to the cost model.
	Estimate() Estimation
}

// FilterMatcher is the cheap post-check capability used by nested-loop
// joins and intra-component filters.
type FilterMatcher interface {
	Operator
	FilterMatch(lhs, rhs anno.NodeID) bool
}

// MatchRetriever is the index-join-driving capability: given a left-hand
// match, lazily produce candidate right-hand nodes.
type MatchRetriever interface {
	Operator
	RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID]
}

// BinaryOperatorSpec is one conjunction member binding two node-search
// positions by left_var, right_var and a reflexivity flag.
type BinaryOperatorSpec struct {
	LeftVar          string
	RightVar         string
	GlobalReflexive  bool
	Span             location.Span
	impl             BinaryOperatorImpl
}

// BinaryOperatorImpl is what distinguishes one binary operator kind
// (Dominance, Coverage, Pointing/TokenOrder, Identity, ValueEqual,
// PartOfComponent, ...) from another: it knows how to bind itself to a
// graph, which components it needs, whether it is reflexive, whether it
// is binding for connectivity, and whether it has an inverse.
type BinaryOperatorImpl interface {
	// Name identifies the operator kind for plan descriptions.
	Name() string
	// NecessaryComponents reports the components this operator's
	// RetrieveMatches/FilterMatch implementation reads, used by the
	// part-of-component optimisation.
	NecessaryComponents() []component.Descriptor
	// Reflexive reports whether a node is always a valid match with
	// itself under this operator.
	Reflexive() bool
	// Binding reports whether this operator contributes to the
	// connectivity check's union-find.
	Binding() bool
	// Bind produces a concrete operator instance against src.
	Bind(src OperatorSource) Operator
	// Inverse optionally returns the operator with left and right operand
	// roles swapped (e.g. Dominance's inverse is "is dominated by").
	Inverse() (BinaryOperatorImpl, bool)
	// EdgeAnnotationSelector optionally narrows NecessaryComponents to a
	// specific edge annotation, for the part-of-component optimisation.
	EdgeAnnotationSelector() (EdgeAnnotationSelector, bool)
}

// OperatorSource is the graph-shaped capability binary and unary operator
// implementations bind against.
type OperatorSource interface {
	GraphStorage(component.Descriptor) gs.GraphStorage
	Components(filterType component.Type, name string) []component.Descriptor
}

// NewBinaryOperatorSpec attaches impl to a (left_var, right_var) pair.
func NewBinaryOperatorSpec(leftVar, rightVar string, impl BinaryOperatorImpl, span location.Span) BinaryOperatorSpec {
	return BinaryOperatorSpec{LeftVar: leftVar, RightVar: rightVar, Span: span, impl: impl}
}

// Impl returns the operator kind bound to this spec.
func (s BinaryOperatorSpec) Impl() BinaryOperatorImpl { return s.impl }

// NecessaryComponents forwards to the bound implementation.
func (s BinaryOperatorSpec) NecessaryComponents() []component.Descriptor {
	return s.impl.NecessaryComponents()
}

// Binding forwards to the bound implementation.
func (s BinaryOperatorSpec) Binding() bool { return s.impl.Binding() }

// Bind produces a concrete operator instance from the bound
// implementation; it does not wrap the instance. GlobalReflexive is
// applied by the executor's joins, which suppress a match repeating a
// (node, key) pair already bound at any left-side position.
func (s BinaryOperatorSpec) Bind(src OperatorSource) Operator {
	return s.impl.Bind(src)
}

// UnaryOperatorSpec is one conjunction member constraining a single bound
// node-search position (e.g. "is root", "arity == n").
type UnaryOperatorSpec struct {
	Variable string
	Span     location.Span
	impl     UnaryOperatorImpl
}

// UnaryOperatorImpl mirrors BinaryOperatorImpl for single-operand
// operators: no reflexivity, no inverse, no connectivity contribution.
type UnaryOperatorImpl interface {
	Name() string
	Bind(src OperatorSource) UnaryOperator
}

// UnaryOperator is the bound, evaluable form of a unary operator.
type UnaryOperator interface {
	Operator
	FilterMatch(node anno.NodeID) bool
}

// NewUnaryOperatorSpec attaches impl to variable.
func NewUnaryOperatorSpec(variable string, impl UnaryOperatorImpl, span location.Span) UnaryOperatorSpec {
	return UnaryOperatorSpec{Variable: variable, Span: span, impl: impl}
}

// Bind produces a concrete, evaluable unary operator instance.
func (s UnaryOperatorSpec) Bind(src OperatorSource) UnaryOperator {
	return s.impl.Bind(src)
}
