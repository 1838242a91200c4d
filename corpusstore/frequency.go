package corpusstore

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/exec"
	"github.com/korpling/graphannis-go/internal/trace"
	"github.com/korpling/graphannis-go/qerr"
	"github.com/korpling/graphannis-go/query"
)

// FrequencyGroupKey names one column of a frequency table: the value of
// key on the node bound to variable in each match group.
type FrequencyGroupKey struct {
	Variable string
	Key      anno.Key
}

// FrequencyEntry is one row of a frequency table: the tuple of grouping
// values shared by Count match groups.
type FrequencyEntry struct {
	Values []string
	Count  int
}

// Frequency groups conj's match groups against the named corpus by the
// values named in grouping, returning one row per distinct value tuple
// with its occurrence count, sorted by descending count then by value
// tuple for determinism.
func (m *Manager) Frequency(ctx context.Context, corpus string, conj query.Conjunction, grouping []FrequencyGroupKey) ([]FrequencyEntry, error) {
	op := trace.Begin(ctx, m.logger, "graphannis.corpusstore.frequency", slog.String("corpus", corpus))
	var err error
	defer func() { op.End(err) }()

	if len(grouping) == 0 {
		err = qerr.New(qerr.KindSemanticError, "frequency grouping spec must name at least one variable").Build()
		return nil, err
	}

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

	positions := make([]int, len(grouping))
	for i, gk := range grouping {
		pos, ok := root.NodePos[gk.Variable]
		if !ok {
			err = qerr.New(qerr.KindSemanticError, "frequency grouping references an unbound variable").
				WithDetail(qerr.DetailKeyVariable, gk.Variable).Build()
			return nil, err
		}
		positions[i] = pos
	}

	store := g.NodeAnnotations()
	counts := make(map[string]*FrequencyEntry)
	var order []string
	for group := range exec.Build(root, g) {
		if ctxErr := checkTimeout(ctx); ctxErr != nil {
			err = ctxErr
			return nil, err
		}
		values := make([]string, len(grouping))
		for i, gk := range grouping {
			values[i], _ = store.GetValue(group.Get(positions[i]).Node, gk.Key)
		}
		tupleKey := strings.Join(values, "\x00")
		entry, ok := counts[tupleKey]
		if !ok {
			entry = &FrequencyEntry{Values: values}
			counts[tupleKey] = entry
			order = append(order, tupleKey)
		}
		entry.Count++
	}

	out := make([]FrequencyEntry, len(order))
	for i, k := range order {
		out[i] = *counts[k]
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.Join(out[i].Values, "\x00") < strings.Join(out[j].Values, "\x00")
	})
	return out, nil
}
