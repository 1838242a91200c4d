package query

import (
	"iter"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/gs"
)

// Dominance implements the dominance operator (parent dominates child in a
// syntax-tree-like structure) over a single Dominance component, with an
// optional depth range.
type Dominance struct {
	Layer, ComponentName string
	Min                  int
	Max                  gs.Bound
}

func (d Dominance) descriptor() component.Descriptor {
	return component.Descriptor{Type: component.Dominance, Layer: d.Layer, Name: d.ComponentName}
}

func (d Dominance) Name() string { return "Dominance" }
func (d Dominance) NecessaryComponents() []component.Descriptor {
	return []component.Descriptor{d.descriptor()}
}
func (d Dominance) Reflexive() bool { return d.Min == 0 }
func (d Dominance) Binding() bool   { return true }
func (d Dominance) Bind(src OperatorSource) Operator {
	return dominanceInstance{storage: src.GraphStorage(d.descriptor()), min: d.Min, max: d.Max}
}
func (d Dominance) Inverse() (BinaryOperatorImpl, bool) {
	return inverseDominance{d}, true
}
func (d Dominance) EdgeAnnotationSelector() (EdgeAnnotationSelector, bool) {
	return EdgeAnnotationSelector{}, false
}

type dominanceInstance struct {
	storage gs.GraphStorage
	min     int
	max     gs.Bound
}

func (d dominanceInstance) Estimate() Estimation {
	stats := d.storage.Statistics()
	if stats.Nodes == 0 {
		return Estimation{Kind: Selectivity, Value: 0}
	}
	return Estimation{Kind: Selectivity, Value: stats.AvgFanOut / float64(stats.Nodes)}
}

func (d dominanceInstance) FilterMatch(lhs, rhs anno.NodeID) bool {
	return d.storage.IsConnected(lhs, rhs, d.min, d.max)
}

func (d dominanceInstance) RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID] {
	return d.storage.FindConnected(lhs, d.min, d.max)
}

// inverseDominance swaps operand roles: "is dominated by" instead of
// "dominates", implemented by retrieving/filtering over the reverse
// graph rather than materialising a second stored component.
type inverseDominance struct{ Dominance }

func (d inverseDominance) Name() string { return "InverseDominance" }

func (d inverseDominance) Bind(src OperatorSource) Operator {
	return inverseDominanceInstance{storage: src.GraphStorage(d.descriptor()), min: d.Min, max: d.Max}
}
func (d inverseDominance) Inverse() (BinaryOperatorImpl, bool) { return d.Dominance, true }

type inverseDominanceInstance struct {
	storage gs.GraphStorage
	min     int
	max     gs.Bound
}

func (d inverseDominanceInstance) Estimate() Estimation {
	stats := d.storage.Statistics()
	if stats.Nodes == 0 {
		return Estimation{Kind: Selectivity, Value: 0}
	}
	return Estimation{Kind: Selectivity, Value: stats.AvgFanOut / float64(stats.Nodes)}
}

func (d inverseDominanceInstance) FilterMatch(lhs, rhs anno.NodeID) bool {
	return d.storage.IsConnected(rhs, lhs, d.min, d.max)
}

func (d inverseDominanceInstance) RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID] {
	return d.storage.FindConnectedInverse(lhs, d.min, d.max)
}

// Coverage implements the coverage operator: left node covers right
// token, via inherited-coverage edges (so it is true for every ancestor
// of the right token's materialized coverage, not only direct children).
type Coverage struct {
	Layer string
}

func (c Coverage) descriptor() component.Descriptor {
	return component.Descriptor{Type: component.Coverage, Layer: c.Layer, Name: "inherited-coverage"}
}
func (c Coverage) Name() string { return "Coverage" }
func (c Coverage) NecessaryComponents() []component.Descriptor {
	return []component.Descriptor{c.descriptor()}
}
func (c Coverage) Reflexive() bool { return false }
func (c Coverage) Binding() bool   { return true }
func (c Coverage) Bind(src OperatorSource) Operator {
	return coverageInstance{storage: src.GraphStorage(c.descriptor())}
}
func (c Coverage) Inverse() (BinaryOperatorImpl, bool) { return nil, false }
func (c Coverage) EdgeAnnotationSelector() (EdgeAnnotationSelector, bool) {
	return EdgeAnnotationSelector{}, false
}

type coverageInstance struct{ storage gs.GraphStorage }

func (c coverageInstance) Estimate() Estimation {
	stats := c.storage.Statistics()
	if stats.Nodes == 0 {
		return Estimation{Kind: Selectivity, Value: 0}
	}
	return Estimation{Kind: Selectivity, Value: stats.AvgFanOut / float64(stats.Nodes)}
}

func (c coverageInstance) FilterMatch(lhs, rhs anno.NodeID) bool {
	for n := range c.storage.Outgoing(lhs) {
		if n == rhs {
			return true
		}
	}
	return false
}

func (c coverageInstance) RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID] {
	return c.storage.Outgoing(lhs)
}

// TokenOrder implements the precedence operator over an Ordering
// component: left token precedes right token within [min, max] steps of
// the total order chain.
type TokenOrder struct {
	Min int
	Max gs.Bound
}

func (p TokenOrder) descriptor() component.Descriptor {
	return component.Descriptor{Type: component.Ordering}
}
func (p TokenOrder) Name() string { return "TokenOrder" }
func (p TokenOrder) NecessaryComponents() []component.Descriptor {
	return []component.Descriptor{p.descriptor()}
}
func (p TokenOrder) Reflexive() bool { return false }
func (p TokenOrder) Binding() bool   { return true }
func (p TokenOrder) Bind(src OperatorSource) Operator {
	return tokenOrderInstance{storage: src.GraphStorage(p.descriptor()), min: p.Min, max: p.Max}
}
func (p TokenOrder) Inverse() (BinaryOperatorImpl, bool) {
	return inverseTokenOrder{p}, true
}
func (p TokenOrder) EdgeAnnotationSelector() (EdgeAnnotationSelector, bool) {
	return EdgeAnnotationSelector{}, false
}

type tokenOrderInstance struct {
	storage gs.GraphStorage
	min     int
	max     gs.Bound
}

func (p tokenOrderInstance) Estimate() Estimation {
	return Estimation{Kind: MinCardinality, Value: 1}
}
func (p tokenOrderInstance) FilterMatch(lhs, rhs anno.NodeID) bool {
	return p.storage.IsConnected(lhs, rhs, p.min, p.max)
}
func (p tokenOrderInstance) RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID] {
	return p.storage.FindConnected(lhs, p.min, p.max)
}

type inverseTokenOrder struct{ TokenOrder }

func (p inverseTokenOrder) Name() string { return "InverseTokenOrder" }

func (p inverseTokenOrder) Bind(src OperatorSource) Operator {
	return inverseTokenOrderInstance{storage: src.GraphStorage(p.descriptor()), min: p.Min, max: p.Max}
}
func (p inverseTokenOrder) Inverse() (BinaryOperatorImpl, bool) { return p.TokenOrder, true }

type inverseTokenOrderInstance struct {
	storage gs.GraphStorage
	min     int
	max     gs.Bound
}

func (p inverseTokenOrderInstance) Estimate() Estimation {
	return Estimation{Kind: MinCardinality, Value: 1}
}
func (p inverseTokenOrderInstance) FilterMatch(lhs, rhs anno.NodeID) bool {
	return p.storage.IsConnected(rhs, lhs, p.min, p.max)
}
func (p inverseTokenOrderInstance) RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID] {
	return p.storage.FindConnectedInverse(lhs, p.min, p.max)
}

// Identity implements node identity: left and right must be the same
// node. Always reflexive, never has useful RetrieveMatches beyond the
// single identity candidate.
type Identity struct{}

func (Identity) Name() string                                 { return "Identity" }
func (Identity) NecessaryComponents() []component.Descriptor  { return nil }
func (Identity) Reflexive() bool                               { return true }
func (Identity) Binding() bool                                  { return true }
func (Identity) Bind(OperatorSource) Operator                   { return identityInstance{} }
func (Identity) Inverse() (BinaryOperatorImpl, bool)            { return Identity{}, true }
func (Identity) EdgeAnnotationSelector() (EdgeAnnotationSelector, bool) {
	return EdgeAnnotationSelector{}, false
}

type identityInstance struct{}

func (identityInstance) Estimate() Estimation                  { return Estimation{Kind: MinCardinality, Value: 1} }
func (identityInstance) FilterMatch(lhs, rhs anno.NodeID) bool { return lhs == rhs }
func (identityInstance) RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID] {
	return func(yield func(anno.NodeID) bool) { yield(lhs) }
}

// ValueEqual implements annotation-value equality: the two bound
// variables' values under the given keys must be equal (or unequal, when
// Negated is set). It does not read graph storage, only the node
// annotation store, so NecessaryComponents is empty.
type ValueEqual struct {
	LeftKey, RightKey anno.Key
	Negated           bool
	Store             *anno.Store[anno.NodeID]
}

func (v ValueEqual) Name() string                                { return "ValueEqual" }
func (v ValueEqual) NecessaryComponents() []component.Descriptor { return nil }
func (v ValueEqual) Reflexive() bool                             { return !v.Negated }
func (v ValueEqual) Binding() bool                               { return true }
func (v ValueEqual) Bind(OperatorSource) Operator {
	return valueEqualInstance{store: v.Store, leftKey: v.LeftKey, rightKey: v.RightKey, negated: v.Negated}
}
func (v ValueEqual) Inverse() (BinaryOperatorImpl, bool) {
	return ValueEqual{LeftKey: v.RightKey, RightKey: v.LeftKey, Negated: v.Negated, Store: v.Store}, true
}
func (v ValueEqual) EdgeAnnotationSelector() (EdgeAnnotationSelector, bool) {
	return EdgeAnnotationSelector{}, false
}

type valueEqualInstance struct {
	store             *anno.Store[anno.NodeID]
	leftKey, rightKey anno.Key
	negated           bool
}

func (v valueEqualInstance) Estimate() Estimation {
	return Estimation{Kind: Selectivity, Value: 0.1}
}

func (v valueEqualInstance) FilterMatch(lhs, rhs anno.NodeID) bool {
	lv, lok := v.store.GetValue(lhs, v.leftKey)
	rv, rok := v.store.GetValue(rhs, v.rightKey)
	if !lok || !rok {
		return false
	}
	equal := lv == rv
	return equal != v.negated
}

// PartOfComponent implements "is part of", the ancestry operator used by
// the part-of-component scan optimisation itself (§4.5): left's PartOf
// chain reaches right within [min, max] steps.
type PartOfComponent struct {
	Layer, ComponentName string
	Min                  int
	Max                  gs.Bound
}

func (p PartOfComponent) descriptor() component.Descriptor {
	return component.Descriptor{Type: component.PartOf, Layer: p.Layer, Name: p.ComponentName}
}
func (p PartOfComponent) Name() string { return "PartOfComponent" }
func (p PartOfComponent) NecessaryComponents() []component.Descriptor {
	return []component.Descriptor{p.descriptor()}
}
func (p PartOfComponent) Reflexive() bool { return p.Min == 0 }
func (p PartOfComponent) Binding() bool   { return true }
func (p PartOfComponent) Bind(src OperatorSource) Operator {
	return partOfInstance{storage: src.GraphStorage(p.descriptor()), min: p.Min, max: p.Max}
}
func (p PartOfComponent) Inverse() (BinaryOperatorImpl, bool) { return nil, false }
func (p PartOfComponent) EdgeAnnotationSelector() (EdgeAnnotationSelector, bool) {
	return EdgeAnnotationSelector{}, false
}

type partOfInstance struct {
	storage gs.GraphStorage
	min     int
	max     gs.Bound
}

func (p partOfInstance) Estimate() Estimation {
	return Estimation{Kind: MinCardinality, Value: 1}
}
func (p partOfInstance) FilterMatch(lhs, rhs anno.NodeID) bool {
	return p.storage.IsConnected(lhs, rhs, p.min, p.max)
}
func (p partOfInstance) RetrieveMatches(lhs anno.NodeID) iter.Seq[anno.NodeID] {
	return p.storage.FindConnected(lhs, p.min, p.max)
}
