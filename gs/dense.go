package gs

import (
	"iter"
	"sync"

	"github.com/korpling/graphannis-go/anno"
)

// DenseAdjacencyList stores at most one outgoing edge per node in an array
// indexed directly by node id, exploiting components where the node-id
// space is at least 75% used, fan-out is at most one and no path is longer
// than one edge (the LeftToken/RightToken components are the common case).
// Incoming edges
// still use a map, since many sources can point at the same target even
// when every source has fan-out one.
type DenseAdjacencyList struct {
	mu       sync.RWMutex
	out      []anno.NodeID // out[id] is the target of node id, 0 = none
	hasEdge  []bool
	in       map[anno.NodeID][]anno.NodeID
	edgeAnno *anno.Store[anno.Edge]
	stats    Statistics
}

// NewDenseAdjacencyList returns an empty DenseAdjacencyList sized to hold
// node ids up to capacity without reallocating.
func NewDenseAdjacencyList(capacity int) *DenseAdjacencyList {
	return &DenseAdjacencyList{
		out:      make([]anno.NodeID, capacity+1),
		hasEdge:  make([]bool, capacity+1),
		in:       make(map[anno.NodeID][]anno.NodeID),
		edgeAnno: anno.NewStore[anno.Edge](),
	}
}

func (d *DenseAdjacencyList) growLocked(id anno.NodeID) {
	if int(id) < len(d.out) {
		return
	}
	newOut := make([]anno.NodeID, id+1)
	newHas := make([]bool, id+1)
	copy(newOut, d.out)
	copy(newHas, d.hasEdge)
	d.out, d.hasEdge = newOut, newHas
}

// AddEdge records e, overwriting any prior outgoing edge from e.Source:
// this implementation assumes fan-out at most one and does not detect
// violations, matching the registry's selection precondition.
func (d *DenseAdjacencyList) AddEdge(e anno.Edge) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.growLocked(e.Source)
	d.growLocked(e.Target)
	d.out[e.Source] = e.Target
	d.hasEdge[e.Source] = true
	d.in[e.Target] = insertSorted(d.in[e.Target], e.Source)
}

// RemoveEdge deletes e if it is the current outgoing edge from e.Source.
func (d *DenseAdjacencyList) RemoveEdge(e anno.Edge) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(e.Source) < len(d.out) && d.hasEdge[e.Source] && d.out[e.Source] == e.Target {
		d.hasEdge[e.Source] = false
		d.out[e.Source] = 0
	}
	d.in[e.Target] = removeSorted(d.in[e.Target], e.Source)
	if len(d.in[e.Target]) == 0 {
		delete(d.in, e.Target)
	}
}

func (d *DenseAdjacencyList) neighborsOut(n anno.NodeID) []anno.NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(n) >= len(d.out) || !d.hasEdge[n] {
		return nil
	}
	return []anno.NodeID{d.out[n]}
}

func (d *DenseAdjacencyList) neighborsIn(n anno.NodeID) []anno.NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.in[n]
}

// Outgoing returns source's single target, if any.
func (d *DenseAdjacencyList) Outgoing(source anno.NodeID) iter.Seq[anno.NodeID] {
	targets := d.neighborsOut(source)
	return func(yield func(anno.NodeID) bool) {
		for _, t := range targets {
			if !yield(t) {
				return
			}
		}
	}
}

// Incoming returns every source pointing at target.
func (d *DenseAdjacencyList) Incoming(target anno.NodeID) iter.Seq[anno.NodeID] {
	sources := d.neighborsIn(target)
	return func(yield func(anno.NodeID) bool) {
		for _, s := range sources {
			if !yield(s) {
				return
			}
		}
	}
}

// SourceNodes returns every node with an outgoing edge.
func (d *DenseAdjacencyList) SourceNodes() iter.Seq[anno.NodeID] {
	d.mu.RLock()
	has := d.hasEdge
	d.mu.RUnlock()
	return func(yield func(anno.NodeID) bool) {
		for id, present := range has {
			if present && !yield(anno.NodeID(id)) {
				return
			}
		}
	}
}

// EdgeAnnotations returns the edge-keyed annotation store.
func (d *DenseAdjacencyList) EdgeAnnotations() *anno.Store[anno.Edge] { return d.edgeAnno }

// Distance returns the shortest-path edge count from source to target.
func (d *DenseAdjacencyList) Distance(source, target anno.NodeID) (int, bool) {
	return shortestDistance(source, target, d.neighborsOut)
}

// IsConnected reports whether target is reachable from source within
// [min, max] edges.
func (d *DenseAdjacencyList) IsConnected(source, target anno.NodeID, min int, max Bound) bool {
	return isConnected(source, target, min, max, d.neighborsOut)
}

// FindConnected performs a cycle-safe forward DFS from source.
func (d *DenseAdjacencyList) FindConnected(source anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(source, min, max, d.neighborsOut)
}

// FindConnectedInverse performs a cycle-safe DFS from target over the
// reverse graph.
func (d *DenseAdjacencyList) FindConnectedInverse(target anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(target, min, max, d.neighborsIn)
}

// SerializationID identifies this implementation in serialized form.
func (d *DenseAdjacencyList) SerializationID() string { return "dense_adjacency_list_v1" }

// Statistics returns the last computed Statistics.
func (d *DenseAdjacencyList) Statistics() Statistics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// CalculateStatistics recomputes Statistics from the current edge set.
func (d *DenseAdjacencyList) CalculateStatistics() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[anno.NodeID][]anno.NodeID)
	for id, present := range d.hasEdge {
		if present {
			out[anno.NodeID(id)] = []anno.NodeID{d.out[id]}
		}
	}
	d.stats = computeStatistics(out)
	return d.stats
}

// Edges yields every edge currently stored.
func (d *DenseAdjacencyList) Edges() iter.Seq[anno.Edge] {
	d.mu.RLock()
	has := append([]bool(nil), d.hasEdge...)
	out := append([]anno.NodeID(nil), d.out...)
	d.mu.RUnlock()
	return func(yield func(anno.Edge) bool) {
		for id, present := range has {
			if present && !yield(anno.Edge{Source: anno.NodeID(id), Target: out[id]}) {
				return
			}
		}
	}
}
