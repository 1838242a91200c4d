package corpusgraph

import (
	"context"
	"log/slog"
	"sort"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/internal/trace"
)

// InheritedCoverageLayer and InheritedCoverageName name the derived
// component that materialises every node's transitive token coverage.
const (
	InheritedCoverageLayer = "annis"
	InheritedCoverageName  = "inherited-coverage"
)

func inheritedCoverageDescriptor() component.Descriptor {
	return component.Descriptor{Type: component.Coverage, Layer: InheritedCoverageLayer, Name: InheritedCoverageName}
}

func leftTokenDescriptor() component.Descriptor {
	return component.Descriptor{Type: component.LeftToken}
}

func rightTokenDescriptor() component.Descriptor {
	return component.Descriptor{Type: component.RightToken}
}

// reindexLocked re-derives LeftToken, RightToken, and inherited-coverage
// edges for every node in invalidated, following the §4.6 algorithm.
// Caller must hold g.mu for writing.
func (g *AnnotationGraph) reindexLocked(ctx context.Context, invalidated map[anno.NodeID]struct{}) error {
	op := trace.Begin(ctx, g.logger, "graphannis.corpusgraph.reindex",
		slog.Int("invalidated_count", len(invalidated)))
	var err error
	defer func() { op.End(err) }()

	if d, ok := g.orderingDescriptor(); ok {
		storage := g.storages[d]
		if storage.Statistics().Nodes == 0 {
			storage.CalculateStatistics()
		}
		g.storages[d] = gs.OptimizeFor(storage, storage.Statistics())
	}

	nodes := sortedNodeIDs(invalidated)
	g.clearDerivedEdgesLocked(nodes)

	rank := g.orderingRankLocked()

	leftMemo := make(map[anno.NodeID]anno.NodeID)
	rightMemo := make(map[anno.NodeID]anno.NodeID)
	visiting := make(map[anno.NodeID]bool)
	for _, n := range nodes {
		if err = ctx.Err(); err != nil {
			return err
		}
		left, right, ok := g.alignTokenLocked(n, rank, leftMemo, rightMemo, visiting)
		if !ok {
			continue
		}
		leftStorage := g.graphStorageLocked(leftTokenDescriptor())
		rightStorage := g.graphStorageLocked(rightTokenDescriptor())
		leftStorage.AddEdge(anno.Edge{Source: n, Target: left})
		rightStorage.AddEdge(anno.Edge{Source: n, Target: right})
	}

	coverageMemo := make(map[anno.NodeID][]anno.NodeID)
	covVisiting := make(map[anno.NodeID]bool)
	inherited := g.graphStorageLocked(inheritedCoverageDescriptor())
	for _, n := range nodes {
		if err = ctx.Err(); err != nil {
			return err
		}
		for _, tok := range g.inheritedCoverageTargetsLocked(n, coverageMemo, covVisiting) {
			inherited.AddEdge(anno.Edge{Source: n, Target: tok})
		}
	}
	return nil
}

// clearDerivedEdgesLocked removes every LeftToken, RightToken, and
// inherited-coverage edge sourced at a node in nodes.
func (g *AnnotationGraph) clearDerivedEdgesLocked(nodes []anno.NodeID) {
	descriptors := []component.Descriptor{leftTokenDescriptor(), rightTokenDescriptor(), inheritedCoverageDescriptor()}
	for _, d := range descriptors {
		storage, ok := g.storages[d]
		if !ok {
			continue
		}
		for _, n := range nodes {
			targets := make([]anno.NodeID, 0)
			for t := range storage.Outgoing(n) {
				targets = append(targets, t)
			}
			for _, t := range targets {
				storage.RemoveEdge(anno.Edge{Source: n, Target: t})
			}
		}
	}
}

// hasOutgoingCoverageLocked reports whether node has at least one
// outgoing edge in any registered Coverage component other than the
// derived inherited-coverage component.
func (g *AnnotationGraph) hasOutgoingCoverageLocked(node anno.NodeID) bool {
	for _, d := range g.allComponentDescriptors() {
		if d.Type != component.Coverage || d == inheritedCoverageDescriptor() {
			continue
		}
		storage := g.storages[d]
		for range storage.Outgoing(node) {
			return true
		}
	}
	return false
}

// isTokenLocked reports whether node carries the token annotation.
func (g *AnnotationGraph) isTokenLocked(node anno.NodeID) bool {
	return g.nodeAnno.HasValue(node, anno.KeyTok)
}

// alignTokenLocked computes node's left/right token by recursive
// alignment: a token with no outgoing coverage is its own left/right
// token; otherwise the candidate tokens reachable through one hop of any
// Dominance or Coverage component are aligned recursively, sorted by
// ordering rank, and the first/last kept. Returns ok=false if node has no
// reachable token (an isolated non-token node).
func (g *AnnotationGraph) alignTokenLocked(
	node anno.NodeID,
	rank map[anno.NodeID]int,
	leftMemo, rightMemo map[anno.NodeID]anno.NodeID,
	visiting map[anno.NodeID]bool,
) (left, right anno.NodeID, ok bool) {
	if l, lok := leftMemo[node]; lok {
		return l, rightMemo[node], true
	}
	if visiting[node] {
		return 0, 0, false
	}
	visiting[node] = true
	defer delete(visiting, node)

	if g.isTokenLocked(node) && !g.hasOutgoingCoverageLocked(node) {
		leftMemo[node], rightMemo[node] = node, node
		return node, node, true
	}

	var candidates []anno.NodeID
	for _, d := range g.allComponentDescriptors() {
		if d.Type != component.Dominance && d.Type != component.Coverage {
			continue
		}
		if d == inheritedCoverageDescriptor() {
			continue
		}
		storage := g.storages[d]
		for child := range storage.Outgoing(node) {
			cl, cr, cok := g.resolveChildTokensLocked(child, rank, leftMemo, rightMemo, visiting)
			if cok {
				candidates = append(candidates, cl, cr)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, 0, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return orderingRankOf(rank, candidates[i]) < orderingRankOf(rank, candidates[j])
	})
	left, right = candidates[0], candidates[len(candidates)-1]
	leftMemo[node], rightMemo[node] = left, right
	return left, right, true
}

// resolveChildTokensLocked returns child's left/right token, preferring an
// already-materialised LeftToken/RightToken edge over recomputation when
// child was not itself invalidated this batch.
func (g *AnnotationGraph) resolveChildTokensLocked(
	child anno.NodeID,
	rank map[anno.NodeID]int,
	leftMemo, rightMemo map[anno.NodeID]anno.NodeID,
	visiting map[anno.NodeID]bool,
) (anno.NodeID, anno.NodeID, bool) {
	if l, lok := leftMemo[child]; lok {
		return l, rightMemo[child], true
	}
	if left, ok := g.existingEdgeTarget(leftTokenDescriptor(), child); ok {
		if right, ok := g.existingEdgeTarget(rightTokenDescriptor(), child); ok {
			return left, right, true
		}
	}
	return g.alignTokenLocked(child, rank, leftMemo, rightMemo, visiting)
}

// existingEdgeTarget returns the single outgoing target of node in d's
// storage, if exactly one exists.
func (g *AnnotationGraph) existingEdgeTarget(d component.Descriptor, node anno.NodeID) (anno.NodeID, bool) {
	storage, ok := g.storages[d]
	if !ok {
		return 0, false
	}
	for t := range storage.Outgoing(node) {
		return t, true
	}
	return 0, false
}

// inheritedCoverageTargetsLocked computes node's inherited-coverage
// targets: the union of direct coverage targets across all Coverage
// components (excluding the derived one); if empty and node is itself a
// token, node covers itself; if still empty, recurse through all unnamed
// Dominance components.
func (g *AnnotationGraph) inheritedCoverageTargetsLocked(
	node anno.NodeID,
	memo map[anno.NodeID][]anno.NodeID,
	visiting map[anno.NodeID]bool,
) []anno.NodeID {
	if cached, ok := memo[node]; ok {
		return cached
	}
	if visiting[node] {
		return nil
	}
	visiting[node] = true
	defer delete(visiting, node)

	targetSet := make(map[anno.NodeID]struct{})
	for _, d := range g.allComponentDescriptors() {
		if d.Type != component.Coverage || d == inheritedCoverageDescriptor() {
			continue
		}
		storage := g.storages[d]
		for t := range storage.Outgoing(node) {
			targetSet[t] = struct{}{}
		}
	}

	if len(targetSet) == 0 && g.isTokenLocked(node) {
		targetSet[node] = struct{}{}
	}

	if len(targetSet) == 0 {
		for _, d := range g.allComponentDescriptors() {
			if d.Type != component.Dominance || d.Name != "" {
				continue
			}
			storage := g.storages[d]
			for child := range storage.Outgoing(node) {
				for _, t := range g.inheritedCoverageTargetsLocked(child, memo, visiting) {
					targetSet[t] = struct{}{}
				}
			}
		}
	}

	out := make([]anno.NodeID, 0, len(targetSet))
	for t := range targetSet {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	memo[node] = out
	return out
}

// TextOrderRank returns every node's position in the total token order
// defined by the Ordering component, for callers that sort match groups
// into text position order (spec.md §5's text-position comparator). Nodes
// outside any Ordering chain are absent from the result.
func (g *AnnotationGraph) TextOrderRank() map[anno.NodeID]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.orderingRankLocked()
}

// orderingRankLocked assigns every node reachable through the Ordering
// component a position in its total order, walking each root chain
// (zero in-degree node) in ascending node-id order for determinism.
// Nodes absent from the Ordering component (should not occur for actual
// tokens) sort after every ranked node, by node id.
func (g *AnnotationGraph) orderingRankLocked() map[anno.NodeID]int {
	rank := make(map[anno.NodeID]int)
	d, ok := g.orderingDescriptor()
	if !ok {
		return rank
	}
	storage := g.storages[d]

	seen := make(map[anno.NodeID]struct{})
	var roots []anno.NodeID
	for s := range storage.SourceNodes() {
		seen[s] = struct{}{}
	}
	hasIncoming := make(map[anno.NodeID]bool)
	for s := range storage.SourceNodes() {
		for t := range storage.Outgoing(s) {
			hasIncoming[t] = true
			seen[t] = struct{}{}
		}
	}
	for n := range seen {
		if !hasIncoming[n] {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	counter := 0
	for _, root := range roots {
		n := root
		for {
			if _, done := rank[n]; done {
				break
			}
			rank[n] = counter
			counter++
			next, any := nextInChain(storage, n)
			if !any {
				break
			}
			n = next
		}
	}
	return rank
}

func nextInChain(storage gs.GraphStorage, n anno.NodeID) (anno.NodeID, bool) {
	for t := range storage.Outgoing(n) {
		return t, true
	}
	return 0, false
}

// orderingRankOf returns n's ordering rank, or a value derived from its
// node id (offset beyond every ranked position) if n is unranked, so
// sorting remains total and deterministic even for tokens never placed in
// an Ordering component.
func orderingRankOf(rank map[anno.NodeID]int, n anno.NodeID) int {
	if r, ok := rank[n]; ok {
		return r
	}
	return len(rank) + int(n)
}
