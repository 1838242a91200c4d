package gs

import (
	"iter"
	"sort"
	"sync"

	"github.com/korpling/graphannis-go/anno"
)

// PrePostOrder stores a rooted tree (or near-tree, dfs-visit-ratio ≤ 1.03)
// as a per-node pre-order/post-order pair plus depth, computed by one DFS
// pass over the current edge set and cached until the next mutation.
// Descendant checks collapse to an interval containment test on the
// pre/post pair instead of a graph walk.
type PrePostOrder struct {
	mu       sync.RWMutex
	children map[anno.NodeID][]anno.NodeID
	parent   map[anno.NodeID]anno.NodeID
	edgeAnno *anno.Store[anno.Edge]
	stats    Statistics

	numbering    map[anno.NodeID][2]int // pre, post
	depth        map[anno.NodeID]int
	numberingOK  bool
}

// NewPrePostOrder returns an empty PrePostOrder.
func NewPrePostOrder() *PrePostOrder {
	return &PrePostOrder{
		children: make(map[anno.NodeID][]anno.NodeID),
		parent:   make(map[anno.NodeID]anno.NodeID),
		edgeAnno: anno.NewStore[anno.Edge](),
	}
}

// AddEdge adds e as a parent-child relationship, invalidating the cached
// pre/post numbering.
func (p *PrePostOrder) AddEdge(e anno.Edge) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children[e.Source] = insertSorted(p.children[e.Source], e.Target)
	p.parent[e.Target] = e.Source
	p.numberingOK = false
}

// RemoveEdge deletes e, invalidating the cached pre/post numbering.
func (p *PrePostOrder) RemoveEdge(e anno.Edge) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children[e.Source] = removeSorted(p.children[e.Source], e.Target)
	if len(p.children[e.Source]) == 0 {
		delete(p.children, e.Source)
	}
	if p.parent[e.Target] == e.Source {
		delete(p.parent, e.Target)
	}
	p.numberingOK = false
}

// recomputeLocked rebuilds the pre/post/depth numbering via an iterative
// DFS. Caller must hold p.mu for writing.
func (p *PrePostOrder) recomputeLocked() {
	p.numbering = make(map[anno.NodeID][2]int)
	p.depth = make(map[anno.NodeID]int)

	roots := make([]anno.NodeID, 0)
	for n := range p.children {
		if _, hasParent := p.parent[n]; !hasParent {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	counter := 0
	type frame struct {
		node     anno.NodeID
		childIdx int
		depth    int
	}
	for _, root := range roots {
		if _, done := p.numbering[root]; done {
			continue
		}
		stack := []frame{{node: root}}
		pre := map[anno.NodeID]int{root: counter}
		counter++
		p.depth[root] = 0
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := p.children[top.node]
			if top.childIdx < len(children) {
				child := children[top.childIdx]
				top.childIdx++
				if _, seen := pre[child]; seen {
					continue
				}
				pre[child] = counter
				counter++
				p.depth[child] = top.depth + 1
				stack = append(stack, frame{node: child, depth: top.depth + 1})
				continue
			}
			post := counter
			counter++
			p.numbering[top.node] = [2]int{pre[top.node], post}
			stack = stack[:len(stack)-1]
		}
	}
	p.numberingOK = true
}

func (p *PrePostOrder) numberingFor(n anno.NodeID) ([2]int, bool) {
	p.mu.Lock()
	if !p.numberingOK {
		p.recomputeLocked()
	}
	num, ok := p.numbering[n]
	p.mu.Unlock()
	return num, ok
}

func (p *PrePostOrder) neighborsOut(n anno.NodeID) []anno.NodeID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.children[n]
}

func (p *PrePostOrder) neighborsIn(n anno.NodeID) []anno.NodeID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if parent, ok := p.parent[n]; ok {
		return []anno.NodeID{parent}
	}
	return nil
}

// Outgoing returns n's children.
func (p *PrePostOrder) Outgoing(n anno.NodeID) iter.Seq[anno.NodeID] {
	children := p.neighborsOut(n)
	return func(yield func(anno.NodeID) bool) {
		for _, c := range children {
			if !yield(c) {
				return
			}
		}
	}
}

// Incoming returns n's parent, if any.
func (p *PrePostOrder) Incoming(n anno.NodeID) iter.Seq[anno.NodeID] {
	parents := p.neighborsIn(n)
	return func(yield func(anno.NodeID) bool) {
		for _, parent := range parents {
			if !yield(parent) {
				return
			}
		}
	}
}

// SourceNodes returns every node with at least one child.
func (p *PrePostOrder) SourceNodes() iter.Seq[anno.NodeID] {
	p.mu.RLock()
	sources := make([]anno.NodeID, 0, len(p.children))
	for s := range p.children {
		sources = append(sources, s)
	}
	p.mu.RUnlock()
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
func (p *PrePostOrder) EdgeAnnotations() *anno.Store[anno.Edge] { return p.edgeAnno }

// Distance returns the shortest-path edge count from source to target.
func (p *PrePostOrder) Distance(source, target anno.NodeID) (int, bool) {
	return shortestDistance(source, target, p.neighborsOut)
}

// IsConnected reports whether target is a descendant of source within
// [min, max] edges, using the cached pre/post interval when unbounded and
// falling back to a bounded traversal otherwise.
func (p *PrePostOrder) IsConnected(source, target anno.NodeID, min int, max Bound) bool {
	if min == 0 {
		if _, unbounded := max.Max(); !unbounded && source == target {
			return true
		}
	}
	if _, bounded := max.Max(); !bounded && min <= 1 {
		srcNum, ok1 := p.numberingFor(source)
		tgtNum, ok2 := p.numberingFor(target)
		if ok1 && ok2 && source != target {
			return tgtNum[0] > srcNum[0] && tgtNum[1] < srcNum[1]
		}
	}
	return isConnected(source, target, min, max, p.neighborsOut)
}

// FindConnected performs a cycle-safe descent from source.
func (p *PrePostOrder) FindConnected(source anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(source, min, max, p.neighborsOut)
}

// FindConnectedInverse walks up the ancestor chain from target.
func (p *PrePostOrder) FindConnectedInverse(target anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(target, min, max, p.neighborsIn)
}

// SerializationID identifies this implementation in serialized form.
func (p *PrePostOrder) SerializationID() string { return "pre_post_order_v1" }

// Statistics returns the last computed Statistics.
func (p *PrePostOrder) Statistics() Statistics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// CalculateStatistics recomputes Statistics from the current edge set.
func (p *PrePostOrder) CalculateStatistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = computeStatistics(p.children)
	return p.stats
}

// Edges yields every parent-child edge.
func (p *PrePostOrder) Edges() iter.Seq[anno.Edge] {
	p.mu.RLock()
	children := p.children
	p.mu.RUnlock()
	return func(yield func(anno.Edge) bool) {
		for source, targets := range children {
			for _, target := range targets {
				if !yield(anno.Edge{Source: source, Target: target}) {
					return
				}
			}
		}
	}
}
