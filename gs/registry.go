package gs

// OptimizeFor selects the graph-storage implementation best suited to
// stats and, if current does not already match, converts every edge and
// edge annotation from current into a freshly constructed instance of the
// chosen implementation. Returns current unchanged if it already is the
// right shape.
//
// Selection rule (applied in order):
//   - max depth ≤ 1: adjacency list (dense variant if the node-id space is
//     at least 75% used and fan-out is at most one);
//   - rooted tree with fan-out ≤ 1: linear chain;
//   - rooted tree: pre/post order;
//   - acyclic with dfs-visit-ratio ≤ 1.03: pre/post order;
//   - otherwise: adjacency list.
func OptimizeFor(current GraphStorage, stats Statistics) GraphStorage {
	target := selectImplementation(stats)
	if current != nil && current.SerializationID() == target.SerializationID() {
		return current
	}
	if current != nil {
		convertInto(current, target)
	}
	return target
}

func selectImplementation(stats Statistics) GraphStorage {
	switch {
	case stats.MaxDepth <= 1:
		if isDenseEligible(stats) {
			return NewDenseAdjacencyList(stats.NodeIDSpanSize)
		}
		return NewAdjacencyList()
	case stats.RootedTree && stats.MaxFanOut <= 1:
		return NewLinearChain()
	case stats.RootedTree:
		return NewPrePostOrder()
	case !stats.Cyclic && stats.DFSVisitRatio <= 1.03:
		return NewPrePostOrder()
	default:
		return NewAdjacencyList()
	}
}

func isDenseEligible(stats Statistics) bool {
	if stats.MaxFanOut > 1 {
		return false
	}
	if stats.NodeIDSpanSize == 0 {
		return false
	}
	usage := float64(stats.Nodes) / float64(stats.NodeIDSpanSize+1)
	return usage >= 0.75
}

// convertInto copies every edge and edge annotation from src into dst.
func convertInto(src, dst GraphStorage) {
	for e := range src.Edges() {
		dst.AddEdge(e)
		for _, a := range src.EdgeAnnotations().AllAnnotations(e) {
			dst.EdgeAnnotations().Insert(e, a.Key, a.Value)
		}
	}
}
