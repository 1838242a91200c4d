package gs

import (
	"iter"

	"github.com/korpling/graphannis-go/anno"
)

// neighborFunc returns the immediate neighbours of a node in whichever
// direction the caller's traversal needs.
type neighborFunc func(anno.NodeID) []anno.NodeID

// findConnected performs a cycle-safe DFS from start using neighbors,
// yielding each node reached within [min, max] edges exactly once; start
// itself is never yielded. The traversal uses an explicit stack and a
// per-call visited set rather than recursion, so a self-loop or a directed
// cycle cannot cause unbounded recursion or duplicate yields.
func findConnected(start anno.NodeID, min int, max Bound, neighbors neighborFunc) iter.Seq[anno.NodeID] {
	return func(yield func(anno.NodeID) bool) {
		maxDepth, bounded := max.Max()

		type frame struct {
			node  anno.NodeID
			depth int
		}
		// Depths below min are tracked exactly; all depths at or above min
		// share one class per node that keeps only its shallowest depth,
		// which dominates for the max bound and keeps cycles finite.
		class := func(f frame) frame {
			if f.depth > min {
				f.depth = min
			}
			return f
		}
		best := map[frame]int{class(frame{node: start}): 0}
		yielded := make(map[anno.NodeID]bool)
		stack := []frame{{node: start, depth: 0}}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if top.depth > best[class(top)] {
				continue
			}
			if bounded && top.depth > maxDepth {
				continue
			}
			if top.depth >= min && top.node != start && !yielded[top.node] {
				yielded[top.node] = true
				if !yield(top.node) {
					return
				}
			}
			if bounded && top.depth == maxDepth {
				continue
			}
			for _, next := range neighbors(top.node) {
				f := frame{node: next, depth: top.depth + 1}
				if d, seen := best[class(f)]; seen && d <= f.depth {
					continue
				}
				best[class(f)] = f.depth
				stack = append(stack, f)
			}
		}
	}
}

// isConnected reports whether a node satisfying [min, max] is reachable
// from start, stopping as soon as one is found.
func isConnected(start, target anno.NodeID, min int, max Bound, neighbors neighborFunc) bool {
	found := false
	for n := range findConnected(start, min, max, neighbors) {
		if n == target {
			found = true
			break
		}
	}
	return found
}

// shortestDistance runs a cycle-safe BFS from start to target and returns
// the edge count of the shortest path, or (0, false) if target is
// unreachable. BFS (not the DFS used by findConnected) because distance
// needs the shortest path, not merely connectivity.
func shortestDistance(start, target anno.NodeID, neighbors neighborFunc) (int, bool) {
	if start == target {
		return 0, true
	}
	visited := map[anno.NodeID]bool{start: true}
	queue := []anno.NodeID{start}
	depth := 0
	for len(queue) > 0 {
		depth++
		var next []anno.NodeID
		for _, node := range queue {
			for _, n := range neighbors(node) {
				if visited[n] {
					continue
				}
				if n == target {
					return depth, true
				}
				visited[n] = true
				next = append(next, n)
			}
		}
		queue = next
	}
	return 0, false
}
