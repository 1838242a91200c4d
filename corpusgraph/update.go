package corpusgraph

import (
	"context"
	"log/slog"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/internal/trace"
	"github.com/korpling/graphannis-go/qerr"
	"github.com/korpling/graphannis-go/update"
)

// unboundedDepth places no upper limit on ancestor-reachability depth when
// marking invalidated nodes.
var unboundedDepth = gs.Unbounded()

// ProgressFunc reports batch-application progress as (events applied,
// total events). Called at least once, after the final event.
type ProgressFunc func(done, total int)

// ApplyUpdate applies batch's events in order, then re-indexes inherited
// coverage, LeftToken, and RightToken for every node the batch may have
// invalidated. progress may be nil.
//
// On any internal error the graph is reloaded from its persisted location
// (if one was configured via [WithPersistDir]) before the error is
// returned, per the batch's all-or-nothing contract; a graph with no
// persistence configured is left in its partially applied state, since
// there is nowhere to roll back to.
func (g *AnnotationGraph) ApplyUpdate(ctx context.Context, batch *update.Batch, progress ProgressFunc) error {
	if ctx == nil {
		panic("corpusgraph.AnnotationGraph.ApplyUpdate: nil context")
	}
	op := trace.Begin(ctx, g.logger, "graphannis.corpusgraph.apply_update",
		slog.Int("event_count", batch.Len()))
	var retErr error
	defer func() { op.End(retErr) }()

	g.mu.Lock()
	defer g.mu.Unlock()

	invalidated := make(map[anno.NodeID]struct{})
	graphWasEmpty := len(g.nameToID) == 0

	total := batch.Len()
	for i, evt := range batch.Events {
		if err := ctx.Err(); err != nil {
			retErr = err
			g.rollbackLocked(ctx)
			return err
		}
		g.applyEvent(evt, invalidated, graphWasEmpty)
		if progress != nil {
			progress(i+1, total)
		}
	}
	if progress != nil && total == 0 {
		progress(0, 0)
	}

	g.markAncestorsInvalidatedLocked(invalidated)
	if err := g.reindexLocked(ctx, invalidated); err != nil {
		retErr = qerr.New(qerr.KindTimeout, "coverage re-indexing did not complete").WithCause(err).Build()
		g.rollbackLocked(ctx)
		return retErr
	}
	return nil
}

// applyEvent dispatches a single event by type switch, recording
// invalidated nodes as it goes.
func (g *AnnotationGraph) applyEvent(evt update.Event, invalidated map[anno.NodeID]struct{}, graphWasEmpty bool) {
	switch e := evt.(type) {
	case update.AddNode:
		id := g.nodeID(e.Name)
		if graphWasEmpty {
			invalidated[id] = struct{}{}
		}

	case update.DeleteNode:
		id, ok := g.resolvedNodeID(e.Name)
		if !ok {
			return
		}
		invalidated[id] = struct{}{}
		for _, a := range g.nodeAnno.AllAnnotations(id) {
			g.nodeAnno.Remove(id, a.Key)
		}
		g.deleteNodeLocked(id, e.Name)

	case update.AddNodeLabel:
		id, ok := g.resolvedNodeID(e.Name)
		if !ok {
			id = g.nodeID(e.Name)
		}
		g.nodeAnno.Insert(id, e.Key, e.Value)
		if e.Key == anno.KeyNodeType {
			invalidated[id] = struct{}{}
		}

	case update.DeleteNodeLabel:
		id, ok := g.resolvedNodeID(e.Name)
		if !ok {
			return
		}
		g.nodeAnno.Remove(id, e.Key)
		if e.Key == anno.KeyNodeType {
			invalidated[id] = struct{}{}
		}

	case update.AddEdge:
		src, srcOK := g.resolvedNodeID(e.Source)
		tgt, tgtOK := g.resolvedNodeID(e.Target)
		if !srcOK || !tgtOK {
			return // edge events ignore non-existent endpoints
		}
		storage := g.graphStorageLocked(e.Component)
		storage.AddEdge(anno.Edge{Source: src, Target: tgt})
		if invalidatesOnEdgeChange(e.Component.Type) {
			invalidated[src] = struct{}{}
			if e.Component.Type == component.Ordering {
				invalidated[tgt] = struct{}{}
			}
		}

	case update.DeleteEdge:
		src, srcOK := g.resolvedNodeID(e.Source)
		tgt, tgtOK := g.resolvedNodeID(e.Target)
		if !srcOK || !tgtOK {
			return
		}
		storage := g.graphStorageLocked(e.Component)
		storage.RemoveEdge(anno.Edge{Source: src, Target: tgt})
		if invalidatesOnEdgeChange(e.Component.Type) {
			invalidated[src] = struct{}{}
			if e.Component.Type == component.Ordering {
				invalidated[tgt] = struct{}{}
			}
		}

	case update.AddEdgeLabel:
		src, srcOK := g.resolvedNodeID(e.Source)
		tgt, tgtOK := g.resolvedNodeID(e.Target)
		if !srcOK || !tgtOK {
			return
		}
		storage, ok := g.storages[e.Component]
		if !ok {
			return // label additions ignore non-existent edges
		}
		storage.EdgeAnnotations().Insert(anno.Edge{Source: src, Target: tgt}, e.Key, e.Value)

	case update.DeleteEdgeLabel:
		src, srcOK := g.resolvedNodeID(e.Source)
		tgt, tgtOK := g.resolvedNodeID(e.Target)
		if !srcOK || !tgtOK {
			return
		}
		storage, ok := g.storages[e.Component]
		if !ok {
			return
		}
		storage.EdgeAnnotations().Remove(anno.Edge{Source: src, Target: tgt}, e.Key)
	}
}

// invalidatesOnEdgeChange reports whether an added or deleted edge of
// this component type invalidates its source node's derived edges.
func invalidatesOnEdgeChange(t component.Type) bool {
	switch t {
	case component.Coverage, component.Dominance, component.Ordering, component.LeftToken, component.RightToken:
		return true
	default:
		return false
	}
}

// deleteNodeLocked removes id's name mapping and every incoming and
// outgoing edge of id in every registered component; its annotations were
// already removed one by one by the caller.
func (g *AnnotationGraph) deleteNodeLocked(id anno.NodeID, name string) {
	delete(g.nameToID, name)
	delete(g.idToName, id)
	for _, d := range g.allComponentDescriptors() {
		storage := g.storages[d]
		for target := range storage.Outgoing(id) {
			storage.RemoveEdge(anno.Edge{Source: id, Target: target})
		}
		for source := range storage.Incoming(id) {
			storage.RemoveEdge(anno.Edge{Source: source, Target: id})
		}
	}
}

// markAncestorsInvalidatedLocked extends invalidated with every node
// ancestor-reachable (inverse DFS) through a current text-coverage
// component from an already-invalidated node.
func (g *AnnotationGraph) markAncestorsInvalidatedLocked(invalidated map[anno.NodeID]struct{}) {
	frontier := sortedNodeIDs(invalidated)
	for _, d := range g.textCoverageDescriptors() {
		storage := g.storages[d]
		for _, n := range frontier {
			for ancestor := range storage.FindConnectedInverse(n, 1, unboundedDepth) {
				invalidated[ancestor] = struct{}{}
			}
		}
	}
}

// rollbackLocked reloads the graph from its persisted location, if one is
// configured. A graph with no persistence configured is left unchanged,
// since there is nothing to restore.
func (g *AnnotationGraph) rollbackLocked(ctx context.Context) {
	if g.persistDir == "" {
		return
	}
	_ = g.loadLocked(ctx)
}
