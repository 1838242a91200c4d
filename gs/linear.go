package gs

import (
	"iter"
	"sync"

	"github.com/korpling/graphannis-go/anno"
)

// LinearChain stores a rooted tree with fan-out at most one (a disjoint
// union of simple chains) as a contiguous vector per chain plus an offset
// map, so distance within one chain is an O(1) offset subtraction rather
// than a traversal. Used for components like Ordering where nodes form a
// single line from root token to last token.
type LinearChain struct {
	mu      sync.RWMutex
	chains  [][]anno.NodeID           // chains[c] is the ordered sequence root..leaf
	offset  map[anno.NodeID][2]int    // node -> (chain index, position within chain)
	edgeAnno *anno.Store[anno.Edge]
	stats   Statistics
}

// NewLinearChain returns an empty LinearChain.
func NewLinearChain() *LinearChain {
	return &LinearChain{
		offset:   make(map[anno.NodeID][2]int),
		edgeAnno: anno.NewStore[anno.Edge](),
	}
}

// AddEdge extends or creates a chain containing e. If e.Source already
// ends a chain, e.Target is appended; if e.Target already starts a chain,
// e.Source is prepended; if e joins the tail of one chain to the head of
// another, the two chains are merged; otherwise a new single-edge chain is
// created.
func (l *LinearChain) AddEdge(e anno.Edge) {
	l.mu.Lock()
	defer l.mu.Unlock()

	srcPos, srcOK := l.offset[e.Source]
	tgtPos, tgtOK := l.offset[e.Target]

	switch {
	case srcOK && tgtOK && srcPos[0] != tgtPos[0] && srcPos[1] == len(l.chains[srcPos[0]])-1 && tgtPos[1] == 0:
		// e joins the tail of one chain to the head of another: merge.
		c, d := srcPos[0], tgtPos[0]
		l.chains[c] = append(l.chains[c], l.chains[d]...)
		l.chains[d] = nil
		l.reindexChainLocked(c)
	case srcOK && srcPos[1] == len(l.chains[srcPos[0]])-1 && !tgtOK:
		// e.Source is the current tail of its chain: append.
		c := srcPos[0]
		l.chains[c] = append(l.chains[c], e.Target)
		l.offset[e.Target] = [2]int{c, len(l.chains[c]) - 1}
	case tgtOK && tgtPos[1] == 0 && !srcOK:
		// e.Target is the current head of its chain: prepend.
		c := tgtPos[0]
		l.chains[c] = append([]anno.NodeID{e.Source}, l.chains[c]...)
		l.reindexChainLocked(c)
	default:
		c := len(l.chains)
		l.chains = append(l.chains, []anno.NodeID{e.Source, e.Target})
		l.offset[e.Source] = [2]int{c, 0}
		l.offset[e.Target] = [2]int{c, 1}
	}
}

func (l *LinearChain) reindexChainLocked(c int) {
	for i, n := range l.chains[c] {
		l.offset[n] = [2]int{c, i}
	}
}

// RemoveEdge splits the chain containing e at that edge.
func (l *LinearChain) RemoveEdge(e anno.Edge) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.offset[e.Source]
	if !ok {
		return
	}
	c, i := pos[0], pos[1]
	chain := l.chains[c]
	if i+1 >= len(chain) || chain[i+1] != e.Target {
		return
	}
	tail := append([]anno.NodeID(nil), chain[i+1:]...)
	l.chains[c] = chain[:i+1]
	for _, n := range tail {
		delete(l.offset, n)
	}
	if len(tail) > 0 {
		newChain := len(l.chains)
		l.chains = append(l.chains, tail)
		l.reindexChainLocked(newChain)
	}
}

func (l *LinearChain) neighborsOut(n anno.NodeID) []anno.NodeID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.offset[n]
	if !ok {
		return nil
	}
	chain := l.chains[pos[0]]
	if pos[1]+1 >= len(chain) {
		return nil
	}
	return []anno.NodeID{chain[pos[1]+1]}
}

func (l *LinearChain) neighborsIn(n anno.NodeID) []anno.NodeID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.offset[n]
	if !ok || pos[1] == 0 {
		return nil
	}
	return []anno.NodeID{l.chains[pos[0]][pos[1]-1]}
}

// Outgoing returns n's single successor in its chain, if any.
func (l *LinearChain) Outgoing(n anno.NodeID) iter.Seq[anno.NodeID] {
	next := l.neighborsOut(n)
	return func(yield func(anno.NodeID) bool) {
		for _, t := range next {
			if !yield(t) {
				return
			}
		}
	}
}

// Incoming returns n's single predecessor in its chain, if any.
func (l *LinearChain) Incoming(n anno.NodeID) iter.Seq[anno.NodeID] {
	prev := l.neighborsIn(n)
	return func(yield func(anno.NodeID) bool) {
		for _, s := range prev {
			if !yield(s) {
				return
			}
		}
	}
}

// SourceNodes returns every node that is not the last element of its chain.
func (l *LinearChain) SourceNodes() iter.Seq[anno.NodeID] {
	l.mu.RLock()
	chains := l.chains
	l.mu.RUnlock()
	return func(yield func(anno.NodeID) bool) {
		for _, chain := range chains {
			for i := 0; i < len(chain)-1; i++ {
				if !yield(chain[i]) {
					return
				}
			}
		}
	}
}

// EdgeAnnotations returns the edge-keyed annotation store.
func (l *LinearChain) EdgeAnnotations() *anno.Store[anno.Edge] { return l.edgeAnno }

// Distance returns the offset difference when source and target share a
// chain (O(1)); falls back to BFS otherwise (always disconnected, since a
// disjoint union of chains has no cross-chain edges, so this returns
// not-found).
func (l *LinearChain) Distance(source, target anno.NodeID) (int, bool) {
	l.mu.RLock()
	sp, sOK := l.offset[source]
	tp, tOK := l.offset[target]
	l.mu.RUnlock()
	if sOK && tOK && sp[0] == tp[0] && tp[1] >= sp[1] {
		return tp[1] - sp[1], true
	}
	return shortestDistance(source, target, l.neighborsOut)
}

// IsConnected reports whether target is reachable from source within
// [min, max] edges.
func (l *LinearChain) IsConnected(source, target anno.NodeID, min int, max Bound) bool {
	return isConnected(source, target, min, max, l.neighborsOut)
}

// FindConnected walks forward along source's chain.
func (l *LinearChain) FindConnected(source anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(source, min, max, l.neighborsOut)
}

// FindConnectedInverse walks backward along target's chain.
func (l *LinearChain) FindConnectedInverse(target anno.NodeID, min int, max Bound) iter.Seq[anno.NodeID] {
	return findConnected(target, min, max, l.neighborsIn)
}

// SerializationID identifies this implementation in serialized form.
func (l *LinearChain) SerializationID() string { return "linear_chain_v1" }

// Statistics returns the last computed Statistics.
func (l *LinearChain) Statistics() Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// CalculateStatistics recomputes Statistics from the current chains.
func (l *LinearChain) CalculateStatistics() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[anno.NodeID][]anno.NodeID)
	for _, chain := range l.chains {
		for i := 0; i < len(chain)-1; i++ {
			out[chain[i]] = []anno.NodeID{chain[i+1]}
		}
	}
	l.stats = computeStatistics(out)
	return l.stats
}

// Edges yields every edge across every chain.
func (l *LinearChain) Edges() iter.Seq[anno.Edge] {
	l.mu.RLock()
	chains := l.chains
	l.mu.RUnlock()
	return func(yield func(anno.Edge) bool) {
		for _, chain := range chains {
			for i := 0; i < len(chain)-1; i++ {
				if !yield(anno.Edge{Source: chain[i], Target: chain[i+1]}) {
					return
				}
			}
		}
	}
}
