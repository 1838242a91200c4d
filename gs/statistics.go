package gs

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/korpling/graphannis-go/anno"
)

// computeStatistics derives [Statistics] from a forward adjacency map. It
// is shared by every implementation's CalculateStatistics so the
// graph-storage-equivalence property holds: whichever implementation is
// selected, statistics and query answers agree.
func computeStatistics(out map[anno.NodeID][]anno.NodeID) Statistics {
	nodes := make(map[anno.NodeID]bool)
	inDegree := make(map[anno.NodeID]int)
	fanOuts := make([]float64, 0, len(out))
	maxFanOut := 0
	maxNodeID := anno.NodeID(0)

	for source, targets := range out {
		nodes[source] = true
		if source > maxNodeID {
			maxNodeID = source
		}
		fanOuts = append(fanOuts, float64(len(targets)))
		if len(targets) > maxFanOut {
			maxFanOut = len(targets)
		}
		for _, t := range targets {
			nodes[t] = true
			inDegree[t]++
			if t > maxNodeID {
				maxNodeID = t
			}
		}
	}

	var avgFanOut, p99FanOut float64
	if len(fanOuts) > 0 {
		avgFanOut = stat.Mean(fanOuts, nil)
		sorted := append([]float64(nil), fanOuts...)
		sort.Float64s(sorted)
		p99FanOut = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	}

	cyclic := hasCycle(out)
	rootedTree := !cyclic && isRootedTree(nodes, inDegree)

	dfsVisits := countDFSVisits(out, nodes)
	ratio := 1.0
	if len(nodes) > 0 {
		ratio = float64(dfsVisits) / float64(len(nodes))
	}

	maxDepth := 0
	if !cyclic {
		maxDepth = computeMaxDepth(out, nodes, inDegree)
	}

	return Statistics{
		Nodes:          len(nodes),
		MaxFanOut:      maxFanOut,
		AvgFanOut:      avgFanOut,
		P99FanOut:      int(p99FanOut),
		MaxDepth:       maxDepth,
		Cyclic:         cyclic,
		RootedTree:     rootedTree,
		DFSVisitRatio:  ratio,
		NodeIDSpanSize: int(maxNodeID),
	}
}

// hasCycle runs iterative DFS with a three-color scheme (white/gray/black)
// over an explicit stack, detecting a back edge to a node still on the
// current path.
func hasCycle(out map[anno.NodeID][]anno.NodeID) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[anno.NodeID]int)

	type frame struct {
		node      anno.NodeID
		childIdx  int
	}

	for start := range out {
		if color[start] != white {
			continue
		}
		stack := []frame{{node: start}}
		color[start] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := out[top.node]
			if top.childIdx < len(children) {
				child := children[top.childIdx]
				top.childIdx++
				switch color[child] {
				case white:
					color[child] = gray
					stack = append(stack, frame{node: child})
				case gray:
					return true
				}
				continue
			}
			color[top.node] = black
			stack = stack[:len(stack)-1]
		}
	}
	return false
}

// isRootedTree reports whether the graph is a forest rooted at nodes with
// zero in-degree and every other node has exactly one parent.
func isRootedTree(nodes map[anno.NodeID]bool, inDegree map[anno.NodeID]int) bool {
	for n := range nodes {
		if inDegree[n] > 1 {
			return false
		}
	}
	return true
}

// countDFSVisits counts stack pushes across a full DFS forest traversal;
// compared against len(nodes) this gives the dfs-visit-ratio selection
// statistic (>1 indicates nodes revisited along multiple paths, i.e. not a
// simple tree).
func countDFSVisits(out map[anno.NodeID][]anno.NodeID, nodes map[anno.NodeID]bool) int {
	visited := make(map[anno.NodeID]bool, len(nodes))
	visits := 0
	for start := range nodes {
		if visited[start] {
			continue
		}
		stack := []anno.NodeID{start}
		visited[start] = true
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			visits++
			for _, next := range out[n] {
				visits++
				if visited[next] {
					continue
				}
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return visits
}

// computeMaxDepth runs BFS from every zero-in-degree root and returns the
// largest depth reached.
func computeMaxDepth(out map[anno.NodeID][]anno.NodeID, nodes map[anno.NodeID]bool, inDegree map[anno.NodeID]int) int {
	maxDepth := 0
	visited := make(map[anno.NodeID]bool, len(nodes))
	for n := range nodes {
		if inDegree[n] != 0 || visited[n] {
			continue
		}
		depth := bfsDepth(out, n, visited)
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

func bfsDepth(out map[anno.NodeID][]anno.NodeID, root anno.NodeID, visited map[anno.NodeID]bool) int {
	visited[root] = true
	queue := []anno.NodeID{root}
	depth := 0
	for len(queue) > 0 {
		var next []anno.NodeID
		for _, n := range queue {
			for _, child := range out[n] {
				if visited[child] {
					continue
				}
				visited[child] = true
				next = append(next, child)
			}
		}
		if len(next) > 0 {
			depth++
		}
		queue = next
	}
	return depth
}
