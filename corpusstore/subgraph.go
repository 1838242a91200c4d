package corpusstore

import (
	"context"
	"log/slog"
	"sort"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/corpusgraph"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/internal/trace"
	"github.com/korpling/graphannis-go/qerr"
)

// SubgraphNode is one reconstructed node: its name, assigned id, and full
// annotation set.
type SubgraphNode struct {
	Node        anno.NodeID
	Name        string
	Annotations []anno.Annotation
}

// SubgraphEdge is one reconstructed edge, tagged with the component it
// belongs to.
type SubgraphEdge struct {
	Component component.Descriptor
	Source    anno.NodeID
	Target    anno.NodeID
}

// Subgraph is a reconstructed fragment of a corpus: the nodes covering a
// token context window plus every node that covers or dominates them, and
// the edges connecting them.
type Subgraph struct {
	Nodes []SubgraphNode
	Edges []SubgraphEdge
}

// Subgraph reconstructs the token context window around matchNodes: every
// token within contextLeft tokens to the left and contextRight tokens to
// the right along the Ordering component, plus every node whose Coverage
// or Dominance edges reach into that window, the graphANNIS "subgraph
// around a match" operation.
func (m *Manager) Subgraph(ctx context.Context, corpus string, matchNodes []string, contextLeft, contextRight int) (*Subgraph, error) {
	op := trace.Begin(ctx, m.logger, "graphannis.corpusstore.subgraph", slog.String("corpus", corpus))
	var err error
	defer func() { op.End(err) }()

	g, openErr := m.open(ctx, corpus)
	if openErr != nil {
		err = openErr
		return nil, err
	}

	anchors := make([]anno.NodeID, 0, len(matchNodes))
	for _, name := range matchNodes {
		id, ok := g.NodeID(name)
		if !ok {
			err = qerr.New(qerr.KindNoSuchNodeID, "subgraph anchor node not found").
				WithDetail(qerr.DetailKeyNodeID, name).Build()
			return nil, err
		}
		anchors = append(anchors, id)
	}

	orderingDesc, hasOrdering := orderingDescriptorOf(g)
	tokens := make(map[anno.NodeID]struct{})
	for _, a := range anchors {
		tokens[a] = struct{}{}
	}
	if hasOrdering {
		ordering := g.GraphStorage(orderingDesc)
		for _, a := range anchors {
			for t := range ordering.FindConnectedInverse(a, 1, gs.Included(contextLeft)) {
				tokens[t] = struct{}{}
			}
			for t := range ordering.FindConnected(a, 1, gs.Included(contextRight)) {
				tokens[t] = struct{}{}
			}
		}
	}

	included := make(map[anno.NodeID]struct{}, len(tokens))
	for t := range tokens {
		included[t] = struct{}{}
	}

	var edges []SubgraphEdge
	for _, d := range g.Components(0, "") {
		if d.Type != component.Coverage && d.Type != component.Dominance {
			continue
		}
		storage := g.GraphStorage(d)
		for source := range storage.SourceNodes() {
			for target := range storage.Outgoing(source) {
				if _, ok := tokens[target]; !ok {
					continue
				}
				included[source] = struct{}{}
				edges = append(edges, SubgraphEdge{Component: d, Source: source, Target: target})
			}
		}
	}

	store := g.NodeAnnotations()
	ids := make([]anno.NodeID, 0, len(included))
	for id := range included {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]SubgraphNode, len(ids))
	for i, id := range ids {
		name, _ := g.NodeName(id)
		nodes[i] = SubgraphNode{Node: id, Name: name, Annotations: store.AllAnnotations(id)}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	return &Subgraph{Nodes: nodes, Edges: edges}, nil
}

func orderingDescriptorOf(g *corpusgraph.AnnotationGraph) (component.Descriptor, bool) {
	for _, d := range g.Components(component.Ordering, "") {
		return d, true
	}
	return component.Descriptor{}, false
}
