// Package gs implements the graph-storage layer: pluggable directed-edge
// containers selected per component by shape-driven statistics. Every
// implementation satisfies [GraphStorage]; [OptimizeFor] picks among them.
package gs

import (
	"iter"

	"github.com/korpling/graphannis-go/anno"
)

// GraphStorage is the capability set every component's backing storage
// must implement: neighbour iteration, reachability, and serialization.
type GraphStorage interface {
	// Outgoing returns the neighbours reachable from source by one edge.
	Outgoing(source anno.NodeID) iter.Seq[anno.NodeID]
	// Incoming returns the neighbours that reach target by one edge.
	Incoming(target anno.NodeID) iter.Seq[anno.NodeID]
	// SourceNodes returns every node with at least one outgoing edge.
	SourceNodes() iter.Seq[anno.NodeID]
	// EdgeAnnotations returns the annotation store keyed on this
	// storage's edges.
	EdgeAnnotations() *anno.Store[anno.Edge]

	// Distance returns the length of the shortest path from source to
	// target, and whether one exists.
	Distance(source, target anno.NodeID) (int, bool)
	// IsConnected reports whether target is reachable from source within
	// [min, max] edges.
	IsConnected(source, target anno.NodeID, min int, max Bound) bool
	// FindConnected performs a cycle-safe DFS from source, yielding each
	// node reachable within [min, max] edges exactly once.
	FindConnected(source anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID]
	// FindConnectedInverse is FindConnected over the reverse graph.
	FindConnectedInverse(target anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID]

	// SerializationID names the concrete implementation for serialized
	// form compatibility checks.
	SerializationID() string
	// Statistics returns the storage's cached graph statistics, computed
	// on demand by CalculateStatistics.
	Statistics() Statistics
	// CalculateStatistics recomputes the storage's Statistics from its
	// current edge set.
	CalculateStatistics() Statistics

	// AddEdge and RemoveEdge mutate the storage in place. Implementations
	// that are not natively mutable (e.g. pre/post order) still support
	// these, so no implementation switch is needed before a mutation.
	AddEdge(e anno.Edge)
	RemoveEdge(e anno.Edge)
	// Edges returns every edge currently stored, used when converting
	// between implementations.
	Edges() iter.Seq[anno.Edge]
}

// Statistics summarizes a component's shape, used by the registry to pick
// an implementation and by the join-order optimizer to estimate cost.
type Statistics struct {
	Nodes          int
	MaxFanOut      int
	AvgFanOut      float64
	P99FanOut      int
	MaxDepth       int
	Cyclic         bool
	RootedTree     bool
	DFSVisitRatio  float64
	NodeIDSpanSize int // highest node id observed, for dense-storage eligibility
}
