package compile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/location"
	"github.com/korpling/graphannis-go/query"
)

var posKey = anno.Key{Name: "pos"}

type fakeGraph struct {
	store    *anno.Store[anno.NodeID]
	storages map[component.Descriptor]gs.GraphStorage
	coverage []gs.GraphStorage
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		store:    anno.NewStore[anno.NodeID](),
		storages: make(map[component.Descriptor]gs.GraphStorage),
	}
}

func (f *fakeGraph) with(d component.Descriptor, edges ...anno.Edge) *fakeGraph {
	s := gs.NewAdjacencyList()
	for _, e := range edges {
		s.AddEdge(e)
	}
	s.CalculateStatistics()
	f.storages[d] = s
	return f
}

func (f *fakeGraph) NodeAnnotations() *anno.Store[anno.NodeID]          { return f.store }
func (f *fakeGraph) CoverageComponentsWithNodes() []gs.GraphStorage     { return f.coverage }
func (f *fakeGraph) Components(component.Type, string) []component.Descriptor { return nil }

func (f *fakeGraph) GraphStorage(d component.Descriptor) gs.GraphStorage {
	if s, ok := f.storages[d]; ok {
		return s
	}
	return gs.NewAdjacencyList()
}

func twoNodeConjunction(impl query.BinaryOperatorImpl) query.Conjunction {
	return query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "1", Kind: query.ExactValue, Name: "pos", Value: "NN"},
			{Variable: "2", Kind: query.ExactValue, Name: "pos", Value: "VB"},
		},
		Binary: []query.BinaryOperatorSpec{
			query.NewBinaryOperatorSpec("1", "2", impl, location.Span{}),
		},
	}
}

func TestBuild_SingleOperatorProducesFilterOrJoinNode(t *testing.T) {
	g := newFakeGraph()
	g.store.Insert(1, anno.Key{Name: "pos"}, "NN")
	g.store.Insert(2, anno.Key{Name: "pos"}, "VB")

	conj := twoNodeConjunction(query.Dominance{Layer: "const", ComponentName: "edge", Max: gs.Unbounded()})

	root, err := compile.Build(conj, g, []int{0})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1": 0, "2": 1}, root.NodePos)
	assert.NotEqual(t, compile.NodeKind(0), root.Kind)
}

func TestBuild_UnboundVariableFails(t *testing.T) {
	g := newFakeGraph()
	conj := query.Conjunction{
		Nodes: []query.NodeSearchSpec{{Variable: "1", Kind: query.AnyNode}},
		Binary: []query.BinaryOperatorSpec{
			query.NewBinaryOperatorSpec("1", "missing", query.Identity{}, location.Span{}),
		},
	}
	_, err := compile.Build(conj, g, []int{0})
	require.Error(t, err)
}

func TestBuild_UnaryOperatorNarrowsCost(t *testing.T) {
	g := newFakeGraph()
	g.store.Insert(1, posKey, "NN")
	g.store.Insert(2, posKey, "NN")

	spec := query.NodeSearchSpec{Variable: "1", Kind: query.ExactValue, Name: "pos", Value: "NN"}
	conj := query.Conjunction{
		Nodes: []query.NodeSearchSpec{spec},
		Unary: []query.UnaryOperatorSpec{
			query.NewUnaryOperatorSpec("1", fakeUnary{}, location.Span{}),
		},
	}
	root, err := compile.Build(conj, g, nil)
	require.NoError(t, err)
	require.Len(t, root.Unary, 1)
	assert.LessOrEqual(t, root.Cost.Output, float64(2))
}

type fakeUnary struct{}

func (fakeUnary) Name() string { return "fake-unary" }
func (fakeUnary) Bind(query.OperatorSource) query.UnaryOperator { return fakeUnaryInstance{} }

type fakeUnaryInstance struct{}

func (fakeUnaryInstance) Estimate() query.Estimation {
	return query.Estimation{Kind: query.Selectivity, Value: 0.5}
}
func (fakeUnaryInstance) FilterMatch(anno.NodeID) bool { return true }
