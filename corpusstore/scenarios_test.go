package corpusstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/corpusstore"
	"github.com/korpling/graphannis-go/location"
	"github.com/korpling/graphannis-go/query"
	"github.com/korpling/graphannis-go/update"
)

var posKey = anno.Key{Name: "pos"}

func newManager(t *testing.T) *corpusstore.Manager {
	t.Helper()
	return corpusstore.New(t.TempDir())
}

// Scenario 1: single-token search.
func TestScenario_SingleTokenSearch(t *testing.T) {
	m := newManager(t)
	singleTokenCorpus(t, m, "c1")

	n, err := m.Count(context.Background(), "c1", tokConjunction())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	groups, err := m.Find(context.Background(), "c1", tokConjunction(), 0, 0, corpusstore.OrderNone)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 1)
	assert.Equal(t, "doc1/tok1", groups[0][0].Name)
}

// Scenario 2: equal-value join. Two nodes with pos="NN" and one with
// pos="VV"; expect two distinct groups, each with both operands pos="NN".
func TestScenario_EqualValueJoin(t *testing.T) {
	m := newManager(t)
	batch := update.NewBatch()
	for _, name := range []string{"a", "b", "c"} {
		batch.Add(update.AddNode{Name: name}).
			Add(update.AddNodeLabel{Name: name, Key: anno.KeyNodeType, Value: "node"})
	}
	batch.Add(update.AddNodeLabel{Name: "a", Key: posKey, Value: "NN"}).
		Add(update.AddNodeLabel{Name: "b", Key: posKey, Value: "NN"}).
		Add(update.AddNodeLabel{Name: "c", Key: posKey, Value: "VV"})
	require.NoError(t, m.ApplyUpdate(context.Background(), "c2", batch, nil))

	g, err := m.Graph(context.Background(), "c2")
	require.NoError(t, err)

	conj := query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "1", Kind: query.ExactValue, Name: "pos", Value: "NN"},
			{Variable: "2", Kind: query.ExactValue, Name: "pos", Value: "NN"},
		},
		Binary: []query.BinaryOperatorSpec{
			query.NewBinaryOperatorSpec("1", "2",
				query.ValueEqual{LeftKey: posKey, RightKey: posKey, Store: g.NodeAnnotations()}, location.Span{}),
		},
	}

	n, err := m.Count(context.Background(), "c2", conj)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// Scenario 3: identity. Any node with two annotations; n1 _ident_ n2
// produces one group with the same node at both positions.
func TestScenario_Identity(t *testing.T) {
	m := newManager(t)
	batch := update.NewBatch().
		Add(update.AddNode{Name: "a"}).
		Add(update.AddNodeLabel{Name: "a", Key: anno.KeyNodeType, Value: "node"}).
		Add(update.AddNodeLabel{Name: "a", Key: posKey, Value: "NN"}).
		Add(update.AddNodeLabel{Name: "a", Key: anno.Key{Name: "lemma"}, Value: "cat"})
	require.NoError(t, m.ApplyUpdate(context.Background(), "c3", batch, nil))

	conj := query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "1", Kind: query.ExactValue, Name: "pos", Value: "NN"},
			{Variable: "2", Kind: query.ExactValue, Name: "lemma", Value: "cat"},
		},
		Binary: []query.BinaryOperatorSpec{
			query.NewBinaryOperatorSpec("1", "2", query.Identity{}, location.Span{}),
		},
	}
	n, err := m.Count(context.Background(), "c3", conj)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// Scenario 4: unsatisfiable. Two disconnected node searches with no
// operator is rejected with SemanticError naming the unbound variable.
func TestScenario_Unsatisfiable(t *testing.T) {
	m := newManager(t)
	singleTokenCorpus(t, m, "c4")

	conj := query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "1", Kind: query.AnyNode},
			{Variable: "2", Kind: query.AnyNode},
		},
	}
	_, err := m.Count(context.Background(), "c4", conj)
	require.Error(t, err)
}

// Scenario 6: regex fallback on bad pattern. The positive iterator yields
// zero groups; the negated form yields every node bearing pos.
func TestScenario_RegexFallbackOnBadPattern(t *testing.T) {
	m := newManager(t)
	batch := update.NewBatch().
		Add(update.AddNode{Name: "a"}).
		Add(update.AddNodeLabel{Name: "a", Key: anno.KeyNodeType, Value: "node"}).
		Add(update.AddNodeLabel{Name: "a", Key: posKey, Value: "NN"})
	require.NoError(t, m.ApplyUpdate(context.Background(), "c6", batch, nil))

	positive := query.Conjunction{Nodes: []query.NodeSearchSpec{
		{Variable: "1", Kind: query.RegexValue, Name: "pos", Value: "["},
	}}
	n, err := m.Count(context.Background(), "c6", positive)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	negated := query.Conjunction{Nodes: []query.NodeSearchSpec{
		{Variable: "1", Kind: query.NotRegexValue, Name: "pos", Value: "["},
	}}
	n, err = m.Count(context.Background(), "c6", negated)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
