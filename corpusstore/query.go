package corpusstore

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/compile"
	"github.com/korpling/graphannis-go/corpusgraph"
	"github.com/korpling/graphannis-go/exec"
	"github.com/korpling/graphannis-go/internal/trace"
	"github.com/korpling/graphannis-go/matchgroup"
	"github.com/korpling/graphannis-go/qerr"
	"github.com/korpling/graphannis-go/query"
)

// buildPlan validates conj, runs the join-order optimizer, and returns an
// executable tree against g. ctx's deadline, if any, is consulted before
// committing to a plan, so a budget that already expired during
// validation never reaches execution.
func buildPlan(ctx context.Context, conj query.Conjunction, g compile.Graph) (*compile.Node, error) {
	if err := checkTimeout(ctx); err != nil {
		return nil, err
	}
	if err := conj.Validate(); err != nil {
		return nil, err
	}

	order := make([]int, len(conj.Binary))
	for i := range order {
		order[i] = i
	}
	_, root, err := compile.Optimize(conj, g, order)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// checkTimeout reports a [qerr.KindTimeout] error once ctx has already
// expired, the context-deadline equivalent of consulting a timeout budget
// at a planning checkpoint or operator-creation site.
func checkTimeout(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return qerr.New(qerr.KindTimeout, "budget exhausted before plan could be built").
			WithCause(ctx.Err()).Build()
	default:
		return nil
	}
}

// Count returns the number of match groups conj produces against the
// named corpus.
func (m *Manager) Count(ctx context.Context, corpus string, conj query.Conjunction) (int, error) {
	op := trace.Begin(ctx, m.logger, "graphannis.corpusstore.count", slog.String("corpus", corpus))
	var err error
	defer func() { op.End(err) }()

	g, openErr := m.open(ctx, corpus)
	if openErr != nil {
		err = openErr
		return 0, err
	}
	root, planErr := buildPlan(ctx, conj, g)
	if planErr != nil {
		err = planErr
		return 0, err
	}

	n := 0
	for range exec.Build(root, g) {
		if ctxErr := checkTimeout(ctx); ctxErr != nil {
			err = ctxErr
			return n, err
		}
		n++
	}
	return n, nil
}

// Order is the requested ordering of a [Manager.Find] page.
type Order uint8

const (
	// OrderNone leaves result order unspecified (plan/execution order).
	OrderNone Order = iota
	// OrderAscending sorts by text position ascending.
	OrderAscending
	// OrderDescending sorts by text position descending.
	OrderDescending
)

// Match is one resolved position in a returned match group: the node's
// registered name and the qualified annotation key the search matched on.
type Match struct {
	Node anno.NodeID
	Name string
	Key  anno.Key
}

// Find returns up to limit match groups for conj against the named
// corpus, after skipping offset groups, each group's matches resolved to
// node names in query-variable order. limit <= 0 means unbounded.
func (m *Manager) Find(ctx context.Context, corpus string, conj query.Conjunction, offset, limit int, order Order) ([][]Match, error) {
	op := trace.Begin(ctx, m.logger, "graphannis.corpusstore.find", slog.String("corpus", corpus))
	var err error
	defer func() { op.End(err) }()

	g, openErr := m.open(ctx, corpus)
	if openErr != nil {
		err = openErr
		return nil, err
	}
	root, planErr := buildPlan(ctx, conj, g)
	if planErr != nil {
		err = planErr
		return nil, err
	}

	var groups []matchgroup.Group
	for group := range exec.Build(root, g) {
		if ctxErr := checkTimeout(ctx); ctxErr != nil {
			err = ctxErr
			return nil, err
		}
		groups = append(groups, group)
	}

	if order != OrderNone {
		sortByTextPosition(groups, g, order == OrderDescending)
	}

	if offset > 0 {
		if offset >= len(groups) {
			groups = nil
		} else {
			groups = groups[offset:]
		}
	}
	if limit > 0 && limit < len(groups) {
		groups = groups[:limit]
	}

	out := make([][]Match, len(groups))
	for i, group := range groups {
		out[i] = resolveGroup(g, group)
	}
	return out, nil
}

func resolveGroup(g *corpusgraph.AnnotationGraph, group matchgroup.Group) []Match {
	matches := make([]Match, group.Len())
	for i := 0; i < group.Len(); i++ {
		m := group.Get(i)
		name, _ := g.NodeName(m.Node)
		matches[i] = Match{Node: m.Node, Name: name, Key: m.Key}
	}
	return matches
}

// sortByTextPosition orders groups by their first match's (ordering rank,
// node name, annotation key), using locale-neutral collation for the name
// comparison.
func sortByTextPosition(groups []matchgroup.Group, g *corpusgraph.AnnotationGraph, descending bool) {
	rank := g.TextOrderRank()
	col := collate.New(language.Und)

	less := func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Len() == 0 || b.Len() == 0 {
			return a.Len() < b.Len()
		}
		ma, mb := a.Get(0), b.Get(0)
		ra, haveA := rank[ma.Node]
		rb, haveB := rank[mb.Node]
		if haveA && haveB && ra != rb {
			return ra < rb
		}
		if haveA != haveB {
			return haveA
		}
		nameA, _ := g.NodeName(ma.Node)
		nameB, _ := g.NodeName(mb.Node)
		if c := col.CompareString(nameA, nameB); c != 0 {
			return c < 0
		}
		if ma.Key.Name != mb.Key.Name {
			return ma.Key.Name < mb.Key.Name
		}
		return ma.Node < mb.Node
	}
	if descending {
		sort.SliceStable(groups, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(groups, less)
}
