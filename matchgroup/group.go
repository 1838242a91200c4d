package matchgroup

// inlineCapacity is the number of Match values a Group stores without
// spilling to the heap. Most conjunctions bind eight or fewer variables;
// queries beyond that spill into an ordinary slice.
const inlineCapacity = 8

// Group is an ordered tuple of matches, one per query variable position,
// per a schema fixed by the plan that produced it (see Desc.NodePos in
// the compile package). Group stores up to eight matches inline with no
// heap allocation; longer groups spill into owned, transparently.
//
// The zero Group has length zero. Group is a value type; copying a Group
// copies its contents (inline array by value, spill slice by reference
// semantics matching ordinary slice copy — callers that need independent
// copies of a spilled Group should call [Group.Clone]).
type Group struct {
	inline [inlineCapacity]Match
	n      int
	spill  []Match
}

// New returns a Group containing matches, in order.
func New(matches ...Match) Group {
	var g Group
	for _, m := range matches {
		g.Append(m)
	}
	return g
}

// NewOptional returns a Group of length n with every position set to the
// zero Match. Callers fill bound positions with [Group.Set]; positions
// left zero represent an optional node search that did not match, per the
// optional-node testable property.
func NewOptional(n int) Group {
	var g Group
	for i := 0; i < n; i++ {
		g.Append(Match{})
	}
	return g
}

// Append adds m as the next element, growing the spill slice once the
// inline array is full.
func (g *Group) Append(m Match) {
	if g.n < inlineCapacity {
		g.inline[g.n] = m
		g.n++
		return
	}
	g.spill = append(g.spill, m)
	g.n++
}

// Len returns the number of positions in the group.
func (g Group) Len() int {
	return g.n
}

// Get returns the match at position i. Panics if i is out of range,
// matching slice semantics.
func (g Group) Get(i int) Match {
	if i < 0 || i >= g.n {
		panic("matchgroup: index out of range")
	}
	if i < inlineCapacity {
		return g.inline[i]
	}
	return g.spill[i-inlineCapacity]
}

// Set replaces the match at position i. Panics if i is out of range.
func (g *Group) Set(i int, m Match) {
	if i < 0 || i >= g.n {
		panic("matchgroup: index out of range")
	}
	if i < inlineCapacity {
		g.inline[i] = m
		return
	}
	g.spill[i-inlineCapacity] = m
}

// All returns the group's matches as a newly allocated slice, in position
// order. This is the escape hatch for callers that want to range over a
// plain slice rather than index through Get.
func (g Group) All() []Match {
	out := make([]Match, g.n)
	for i := 0; i < g.n; i++ {
		out[i] = g.Get(i)
	}
	return out
}

// Clone returns an independent copy of g; mutating the clone does not
// affect g, including for groups that have spilled.
func (g Group) Clone() Group {
	cp := g
	if len(g.spill) > 0 {
		cp.spill = make([]Match, len(g.spill))
		copy(cp.spill, g.spill)
	}
	return cp
}

// Concat returns a new Group with the positions of g followed by the
// positions of other. The joins in the exec package place matches into
// fixed positions instead and do not call it.
func Concat(g, other Group) Group {
	out := Group{}
	for i := 0; i < g.Len(); i++ {
		out.Append(g.Get(i))
	}
	for i := 0; i < other.Len(); i++ {
		out.Append(other.Get(i))
	}
	return out
}
