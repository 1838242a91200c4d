package gs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korpling/graphannis-go/anno"
)

// allImplementations builds the same edge set into every GraphStorage
// implementation, used to check the graph-storage-equivalence property:
// every implementation must answer outgoing/incoming/distance/is_connected
// /find_connected identically for the same input.
func allImplementations(edges []anno.Edge) []GraphStorage {
	impls := []GraphStorage{
		NewAdjacencyList(),
		NewDenseAdjacencyList(16),
		NewLinearChain(),
		NewPrePostOrder(),
	}
	for _, impl := range impls {
		for _, e := range edges {
			impl.AddEdge(e)
		}
	}
	return impls
}

func chainEdges() []anno.Edge {
	return []anno.Edge{
		{Source: 1, Target: 2},
		{Source: 2, Target: 3},
		{Source: 3, Target: 4},
	}
}

func TestGraphStorageEquivalence_Outgoing(t *testing.T) {
	for _, impl := range allImplementations(chainEdges()) {
		var got []anno.NodeID
		for n := range impl.Outgoing(2) {
			got = append(got, n)
		}
		assert.Equal(t, []anno.NodeID{3}, got, impl.SerializationID())
	}
}

func TestGraphStorageEquivalence_Incoming(t *testing.T) {
	for _, impl := range allImplementations(chainEdges()) {
		var got []anno.NodeID
		for n := range impl.Incoming(3) {
			got = append(got, n)
		}
		assert.Equal(t, []anno.NodeID{2}, got, impl.SerializationID())
	}
}

func TestGraphStorageEquivalence_Distance(t *testing.T) {
	for _, impl := range allImplementations(chainEdges()) {
		d, ok := impl.Distance(1, 4)
		require.True(t, ok, impl.SerializationID())
		assert.Equal(t, 3, d, impl.SerializationID())
	}
}

func TestGraphStorageEquivalence_IsConnected(t *testing.T) {
	for _, impl := range allImplementations(chainEdges()) {
		assert.True(t, impl.IsConnected(1, 4, 1, Unbounded()), impl.SerializationID())
		assert.False(t, impl.IsConnected(1, 4, 1, Included(2)), impl.SerializationID())
	}
}

func TestGraphStorageEquivalence_FindConnected(t *testing.T) {
	for _, impl := range allImplementations(chainEdges()) {
		var got []anno.NodeID
		for n := range impl.FindConnected(1, 1, Unbounded()) {
			got = append(got, n)
		}
		assert.ElementsMatch(t, []anno.NodeID{2, 3, 4}, got, impl.SerializationID())
	}
}

func TestCycleSafety_SelfLoop(t *testing.T) {
	impl := NewAdjacencyList()
	impl.AddEdge(anno.Edge{Source: 1, Target: 1})

	var got []anno.NodeID
	for n := range impl.FindConnected(1, 1, Unbounded()) {
		got = append(got, n)
	}
	assert.Empty(t, got, "a self-loop must not be yielded or cause non-termination")
}

func TestCycleSafety_DirectedCycle(t *testing.T) {
	impl := NewAdjacencyList()
	impl.AddEdge(anno.Edge{Source: 1, Target: 2})
	impl.AddEdge(anno.Edge{Source: 2, Target: 3})
	impl.AddEdge(anno.Edge{Source: 3, Target: 1})

	var got []anno.NodeID
	for n := range impl.FindConnected(1, 1, Unbounded()) {
		got = append(got, n)
	}
	assert.ElementsMatch(t, []anno.NodeID{2, 3}, got)
	assert.Len(t, got, 2, "each reachable node must be yielded at most once")
}

func TestRegistry_SelectsAdjacencyListForShallowGraph(t *testing.T) {
	impl := OptimizeFor(nil, Statistics{MaxDepth: 1, Nodes: 2})
	assert.Equal(t, "adjacency_list_v1", impl.SerializationID())
}

func TestRegistry_SelectsDenseForFullSpanFanoutOne(t *testing.T) {
	impl := OptimizeFor(nil, Statistics{MaxDepth: 1, Nodes: 8, NodeIDSpanSize: 9, MaxFanOut: 1})
	assert.Equal(t, "dense_adjacency_list_v1", impl.SerializationID())
}

func TestRegistry_SelectsLinearChainForRootedFanoutOne(t *testing.T) {
	impl := OptimizeFor(nil, Statistics{MaxDepth: 5, RootedTree: true, MaxFanOut: 1})
	assert.Equal(t, "linear_chain_v1", impl.SerializationID())
}

func TestRegistry_SelectsPrePostForRootedTree(t *testing.T) {
	impl := OptimizeFor(nil, Statistics{MaxDepth: 5, RootedTree: true, MaxFanOut: 3})
	assert.Equal(t, "pre_post_order_v1", impl.SerializationID())
}

func TestRegistry_SelectsAdjacencyForCyclicGraph(t *testing.T) {
	impl := OptimizeFor(nil, Statistics{MaxDepth: 5, Cyclic: true, DFSVisitRatio: 2.0})
	assert.Equal(t, "adjacency_list_v1", impl.SerializationID())
}

func TestRegistry_ConvertsEdgesWhenShapeChanges(t *testing.T) {
	src := NewAdjacencyList()
	src.AddEdge(anno.Edge{Source: 1, Target: 2})
	src.EdgeAnnotations().Insert(anno.Edge{Source: 1, Target: 2}, anno.Key{Name: "deprel"}, "nsubj")

	dst := OptimizeFor(src, Statistics{MaxDepth: 5, RootedTree: true, MaxFanOut: 3})
	require.Equal(t, "pre_post_order_v1", dst.SerializationID())

	var got []anno.NodeID
	for n := range dst.Outgoing(1) {
		got = append(got, n)
	}
	assert.Equal(t, []anno.NodeID{2}, got)

	value, ok := dst.EdgeAnnotations().GetValue(anno.Edge{Source: 1, Target: 2}, anno.Key{Name: "deprel"})
	require.True(t, ok)
	assert.Equal(t, "nsubj", value)
}

func TestStatistics_ComputesFanOutAndDepth(t *testing.T) {
	impl := NewAdjacencyList()
	for _, e := range chainEdges() {
		impl.AddEdge(e)
	}
	stats := impl.CalculateStatistics()
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 1, stats.MaxFanOut)
	assert.Equal(t, 3, stats.MaxDepth)
	assert.False(t, stats.Cyclic)
}
