package gs

import (
	"iter"
	"sort"
	"sync"

	"github.com/korpling/graphannis-go/anno"
)

// AdjacencyList is the general-purpose graph storage: a sorted-per-source
// vector of targets plus an inverse map, suitable for any edge shape. The
// registry falls back to this implementation whenever no more specialized
// layout applies.
type AdjacencyList struct {
	mu       sync.RWMutex
	out      map[anno.NodeID][]anno.NodeID
	in       map[anno.NodeID][]anno.NodeID
	edgeAnno *anno.Store[anno.Edge]
	stats    Statistics
}

// NewAdjacencyList returns an empty AdjacencyList.
func NewAdjacencyList() *AdjacencyList {
	return &AdjacencyList{
		out:      make(map[anno.NodeID][]anno.NodeID),
		in:       make(map[anno.NodeID][]anno.NodeID),
		edgeAnno: anno.NewStore[anno.Edge](),
	}
}

// AddEdge inserts e, keeping each source's target vector sorted.
func (a *AdjacencyList) AddEdge(e anno.Edge) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out[e.Source] = insertSorted(a.out[e.Source], e.Target)
	a.in[e.Target] = insertSorted(a.in[e.Target], e.Source)
}

// RemoveEdge deletes e, if present.
func (a *AdjacencyList) RemoveEdge(e anno.Edge) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out[e.Source] = removeSorted(a.out[e.Source], e.Target)
	a.in[e.Target] = removeSorted(a.in[e.Target], e.Source)
	if len(a.out[e.Source]) == 0 {
		delete(a.out, e.Source)
	}
	if len(a.in[e.Target]) == 0 {
		delete(a.in, e.Target)
	}
}

func insertSorted(list []anno.NodeID, v anno.NodeID) []anno.NodeID {
	idx := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	if idx < len(list) && list[idx] == v {
		return list
	}
	list = append(list, 0)
	copy(list[idx+1:], list[idx:])
	list[idx] = v
	return list
}

func removeSorted(list []anno.NodeID, v anno.NodeID) []anno.NodeID {
	idx := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	if idx >= len(list) || list[idx] != v {
		return list
	}
	return append(list[:idx], list[idx+1:]...)
}

// Outgoing returns source's targets, in sorted order.
func (a *AdjacencyList) Outgoing(source anno.NodeID) iter.Seq[anno.NodeID] {
	a.mu.RLock()
	targets := append([]anno.NodeID(nil), a.out[source]...)
	a.mu.RUnlock()
	return func(yield func(anno.NodeID) bool) {
		for _, t := range targets {
			if !yield(t) {
				return
			}
		}
	}
}

// Incoming returns target's sources, in sorted order.
func (a *AdjacencyList) Incoming(target anno.NodeID) iter.Seq[anno.NodeID] {
	a.mu.RLock()
	sources := append([]anno.NodeID(nil), a.in[target]...)
	a.mu.RUnlock()
	return func(yield func(anno.NodeID) bool) {
		for _, s := range sources {
			if !yield(s) {
				return
			}
		}
	}
}

// SourceNodes returns every node with at least one outgoing edge.
func (a *AdjacencyList) SourceNodes() iter.Seq[anno.NodeID] {
	a.mu.RLock()
	sources := make([]anno.NodeID, 0, len(a.out))
	for s := range a.out {
		sources = append(sources, s)
	}
	a.mu.RUnlock()
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return func(yield func(anno.NodeID) bool) {
		for _, s := range sources {
			if !yield(s) {
				return
			}
		}
	}
}

// EdgeAnnotations returns the edge-keyed annotation store.
func (a *AdjacencyList) EdgeAnnotations() *anno.Store[anno.Edge] {
	return a.edgeAnno
}

func (a *AdjacencyList) neighborsOut(n anno.NodeID) []anno.NodeID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.out[n]
}

func (a *AdjacencyList) neighborsIn(n anno.NodeID) []anno.NodeID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.in[n]
}

// Distance returns the shortest-path edge count from source to target.
func (a *AdjacencyList) Distance(source, target anno.NodeID) (int, bool) {
	return shortestDistance(source, target, a.neighborsOut)
}

// IsConnected reports whether target is reachable from source within
// [min, max] edges.
func (a *AdjacencyList) IsConnected(source, target anno.NodeID, min int, max Bound) bool {
	return isConnected(source, target, min, max, a.neighborsOut)
}

// FindConnected performs a cycle-safe forward DFS from source.
func (a *AdjacencyList) FindConnected(source anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(source, min, max, a.neighborsOut)
}

// FindConnectedInverse performs a cycle-safe DFS from target over the
// reverse graph.
func (a *AdjacencyList) FindConnectedInverse(target anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(target, min, max, a.neighborsIn)
}

// SerializationID identifies this implementation in serialized form.
func (a *AdjacencyList) SerializationID() string { return "adjacency_list_v1" }

// Statistics returns the last computed Statistics.
func (a *AdjacencyList) Statistics() Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// CalculateStatistics recomputes fan-out, depth, and cyclicity statistics
// from the current edge set.
func (a *AdjacencyList) CalculateStatistics() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = computeStatistics(a.out)
	return a.stats
}

// Edges yields every edge currently stored.
func (a *AdjacencyList) Edges() iter.Seq[anno.Edge] {
	a.mu.RLock()
	out := a.out
	a.mu.RUnlock()
	return func(yield func(anno.Edge) bool) {
		for source, targets := range out {
			for _, target := range targets {
				if !yield(anno.Edge{Source: source, Target: target}) {
					return
				}
			}
		}
	}
}
