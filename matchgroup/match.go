// Package matchgroup defines the unit of data flow between execution
// iterators: matches and ordered tuples of matches.
//
// A [Match] pairs a node-id with the annotation key that qualified it for
// the search that produced it. A [Group] is an ordered tuple of matches,
// one per query variable position, with a schema fixed by the plan that
// produced it. Groups are the values pulled through node searches, joins,
// and filters; see [Group] for the small-buffer storage strategy.
package matchgroup

import (
	"fmt"

	"github.com/korpling/graphannis-go/anno"
)

// Match is a single (node-id, annotation-key) pair, as described in the
// glossary. It names which node satisfied a search and which annotation
// key on that node is reported to the caller, e.g. the key a node-label
// predicate matched on, or the distinguished node-name key for a bare
// node reference.
type Match struct {
	Node anno.NodeID
	Key  anno.Key
}

// String renders a Match for diagnostics and test failure output.
func (m Match) String() string {
	if m.Key.Namespace == "" {
		return fmt.Sprintf("#%d::%s", m.Node, m.Key.Name)
	}
	return fmt.Sprintf("#%d::%s:%s", m.Node, m.Key.Namespace, m.Key.Name)
}

// IsZero reports whether m is the zero Match (node 0, zero key). Node id 0
// is never assigned by an annotation graph, so this is a reliable "absent"
// sentinel for optional positions (see [NewOptional]).
func (m Match) IsZero() bool {
	return m.Node == 0 && m.Key == anno.Key{}
}
