// Package corpusgraph composes a node annotation store with a map from
// component descriptor to graph storage, owning the update pipeline and
// the inherited-coverage re-indexing that keeps derived edges consistent
// after mutation. It corresponds to the teacher's graph.Graph, generalized
// from a schema-validated object graph to a component-partitioned
// annotation graph.
package corpusgraph

import (
	"context"
	"iter"
	"log/slog"
	"sort"
	"sync"

	"github.com/im7mortal/kmutex"
	"golang.org/x/text/unicode/norm"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/internal/trace"
)

// AnnotationGraph is the evaluation target of a compiled query: a node
// annotation store plus one graph storage per registered component.
//
// AnnotationGraph is safe for concurrent use. Query evaluation takes the
// read lock; ApplyUpdate takes the write lock. Per-component writable-copy
// operations serialize on a keyed mutex so optimizing one component never
// blocks unrelated components.
type AnnotationGraph struct {
	mu sync.RWMutex

	nodeAnno   *anno.Store[anno.NodeID]
	components *component.Registry
	storages   map[component.Descriptor]gs.GraphStorage

	nextNodeID anno.NodeID
	nameToID   map[string]anno.NodeID
	idToName   map[anno.NodeID]string

	componentLock *kmutex.Kmutex

	logger *slog.Logger

	persistDir string
}

// Option configures an AnnotationGraph at construction time.
type Option func(*AnnotationGraph)

// WithLogger attaches a logger used for operation-boundary tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(g *AnnotationGraph) { g.logger = logger }
}

// WithPersistDir sets the filesystem location used by Snapshot/Load. An
// empty graph (the default) has no persistence: Snapshot is a no-op and
// Load returns an error.
func WithPersistDir(dir string) Option {
	return func(g *AnnotationGraph) { g.persistDir = dir }
}

// New returns an empty AnnotationGraph with no registered components.
func New(opts ...Option) *AnnotationGraph {
	g := &AnnotationGraph{
		nodeAnno:      anno.NewStore[anno.NodeID](),
		components:    component.NewRegistry(),
		storages:      make(map[component.Descriptor]gs.GraphStorage),
		nameToID:      make(map[string]anno.NodeID),
		idToName:      make(map[anno.NodeID]string),
		componentLock: kmutex.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.nodeAnno = g.nodeAnno.WithLogger(g.logger)
	return g
}

// NodeAnnotations returns the node-keyed annotation store. The store's own
// locking governs concurrent access; callers must not mutate it directly
// while a batch is in flight (see ApplyUpdate).
func (g *AnnotationGraph) NodeAnnotations() *anno.Store[anno.NodeID] {
	return g.nodeAnno
}

// Components lists every registered component, optionally filtered by
// type and/or name, matching [component.Registry.List]'s "any" semantics
// for a zero Type or empty name.
func (g *AnnotationGraph) Components(filterType component.Type, name string) []component.Descriptor {
	return g.components.List(filterType, name)
}

// GraphStorage returns d's graph storage, registering d with an empty
// adjacency list if it is not yet known. Components are never unloaded by
// this in-memory implementation, so the returned storage is always
// materialised.
func (g *AnnotationGraph) GraphStorage(d component.Descriptor) gs.GraphStorage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.graphStorageLocked(d)
}

func (g *AnnotationGraph) graphStorageLocked(d component.Descriptor) gs.GraphStorage {
	if s, ok := g.storages[d]; ok {
		return s
	}
	s := gs.NewAdjacencyList()
	g.storages[d] = s
	g.components.Register(d)
	g.components.MarkLoaded(d)
	return s
}

// GraphStorageAsEdgeContainer returns d's graph storage narrowed to the
// read-only edge-container capability, for callers (cost estimation, the
// part-of-component scan) that only need to iterate edges and do not
// require the full [gs.GraphStorage] surface.
func (g *AnnotationGraph) GraphStorageAsEdgeContainer(d component.Descriptor) EdgeContainer {
	return g.GraphStorage(d)
}

// EdgeContainer is the minimal read surface cost estimation and the
// part-of-component scan need from a graph storage, so they can accept
// any implementation polymorphically without depending on the full
// [gs.GraphStorage] interface.
type EdgeContainer interface {
	SourceNodes() iter.Seq[anno.NodeID]
	Outgoing(anno.NodeID) iter.Seq[anno.NodeID]
	EdgeAnnotations() *anno.Store[anno.Edge]
	Statistics() gs.Statistics
}

// GetOrCreateWritable ensures d's storage is backed by a mutable
// representation, returning it. In this implementation every storage is
// already mutable, but the call still serializes on d's keyed mutex so a
// future copy-on-write backend can be substituted without changing
// callers, and so that concurrent optimize_for calls on the same
// component do not race.
func (g *AnnotationGraph) GetOrCreateWritable(d component.Descriptor) gs.GraphStorage {
	g.componentLock.Lock(d.String())
	defer g.componentLock.Unlock(d.String())
	return g.GraphStorage(d)
}

// CalculateComponentStatistics recomputes and returns d's graph-storage
// statistics, serialized per-component.
func (g *AnnotationGraph) CalculateComponentStatistics(d component.Descriptor) gs.Statistics {
	g.componentLock.Lock(d.String())
	defer g.componentLock.Unlock(d.String())
	storage := g.GraphStorage(d)
	return storage.CalculateStatistics()
}

// OptimizeForComponent selects and installs the best graph-storage
// implementation for d given its current statistics, per the §4.2
// selection rule.
func (g *AnnotationGraph) OptimizeForComponent(ctx context.Context, d component.Descriptor) {
	if ctx == nil {
		panic("corpusgraph.AnnotationGraph.OptimizeForComponent: nil context")
	}
	op := trace.Begin(ctx, g.logger, "graphannis.corpusgraph.optimize_for",
		slog.String("component", d.String()))
	var err error
	defer func() { op.End(err) }()

	g.componentLock.Lock(d.String())
	defer g.componentLock.Unlock(d.String())

	g.mu.Lock()
	defer g.mu.Unlock()
	current := g.storages[d]
	stats := current.CalculateStatistics()
	optimized := gs.OptimizeFor(current, stats)
	g.storages[d] = optimized
}

// nodeID returns the id for name, assigning a fresh one (one above the
// current maximum) if name has not been seen before. Mirrors AddNode's
// idempotent-on-existing-names contract. Names are NFC-normalized before
// interning, the same canonicalization [location.CanonicalPath] applies
// to file paths, so two byte-distinct but canonically equal names always
// resolve to the same node.
func (g *AnnotationGraph) nodeID(rawName string) anno.NodeID {
	name := norm.NFC.String(rawName)
	if id, ok := g.nameToID[name]; ok {
		return id
	}
	g.nextNodeID++
	id := g.nextNodeID
	g.nameToID[name] = id
	g.idToName[id] = name
	return id
}

// resolvedNodeID returns the id already assigned to name, without
// creating one, and whether name is known.
func (g *AnnotationGraph) resolvedNodeID(rawName string) (anno.NodeID, bool) {
	id, ok := g.nameToID[norm.NFC.String(rawName)]
	return id, ok
}

// NodeID returns the id assigned to name, and whether name is known to the
// graph. Used by the compiler and executor to resolve query-time variable
// bindings and update-time event targets to the graph's internal ids.
func (g *AnnotationGraph) NodeID(name string) (anno.NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolvedNodeID(name)
}

// NodeName returns the name assigned to id, and whether id is known.
func (g *AnnotationGraph) NodeName(id anno.NodeID) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	name, ok := g.idToName[id]
	return name, ok
}

// NodeExists reports whether name currently carries the node_type
// annotation, the data model's existence marker (distinct from merely
// having been assigned an id via AddNode or a dangling edge reference).
func (g *AnnotationGraph) NodeExists(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodeExists(name)
}

// nodeExists reports whether name currently carries the node_type
// annotation, the data model's existence marker (distinct from merely
// having been assigned an id via AddNode or a dangling edge reference).
func (g *AnnotationGraph) nodeExists(name string) bool {
	id, ok := g.resolvedNodeID(name)
	if !ok {
		return false
	}
	return g.nodeAnno.HasValue(id, anno.KeyNodeType)
}

// allComponentDescriptors returns every registered descriptor, sorted.
func (g *AnnotationGraph) allComponentDescriptors() []component.Descriptor {
	return g.components.List(0, "")
}

// textCoverageDescriptors returns registered Coverage and Dominance
// descriptors, the component types that imply reachability to tokens.
func (g *AnnotationGraph) textCoverageDescriptors() []component.Descriptor {
	all := g.allComponentDescriptors()
	out := make([]component.Descriptor, 0, len(all))
	for _, d := range all {
		if d.Type.CoversTokens() {
			out = append(out, d)
		}
	}
	return out
}

// orderingDescriptor returns the single Ordering component, if any has
// been registered. The data model treats token order as one total order
// over the root Ordering chain, so only the first Ordering descriptor in
// [component.Registry.List]'s sorted order is used; additional ones are a
// caller error outside this
// package's scope to detect.
func (g *AnnotationGraph) orderingDescriptor() (component.Descriptor, bool) {
	ordering := g.components.List(component.Ordering, "")
	if len(ordering) == 0 {
		return component.Descriptor{}, false
	}
	return ordering[0], true
}

// CoverageComponentsWithNodes returns the graph storages of every
// registered Coverage component whose statistics claim at least one
// node, the set a token-leaf predicate (query.NodeSearchSpec's
// *TokenValue/AnyToken kinds) must check for "no outgoing coverage edge"
// to mean "is a token".
func (g *AnnotationGraph) CoverageComponentsWithNodes() []gs.GraphStorage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []gs.GraphStorage
	for _, d := range g.components.List(component.Coverage, "") {
		storage, ok := g.storages[d]
		if !ok || storage.Statistics().Nodes == 0 {
			continue
		}
		out = append(out, storage)
	}
	return out
}

// sortedNodeIDs is a small helper used by the re-indexer to iterate
// invalidated nodes in a deterministic order.
func sortedNodeIDs(ids map[anno.NodeID]struct{}) []anno.NodeID {
	out := make([]anno.NodeID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
