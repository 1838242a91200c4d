package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/location"
	"github.com/korpling/graphannis-go/qerr"
	"github.com/korpling/graphannis-go/query"
)

// bindingOp is a minimal BinaryOperatorImpl stub for connectivity tests.
type bindingOp struct{ binding bool }

func (bindingOp) Name() string                                           { return "stub" }
func (bindingOp) NecessaryComponents() []component.Descriptor             { return nil }
func (bindingOp) Reflexive() bool                                        { return false }
func (o bindingOp) Binding() bool                                        { return o.binding }
func (bindingOp) Bind(query.OperatorSource) query.Operator               { return nil }
func (bindingOp) Inverse() (query.BinaryOperatorImpl, bool)              { return nil, false }
func (bindingOp) EdgeAnnotationSelector() (query.EdgeAnnotationSelector, bool) {
	return query.EdgeAnnotationSelector{}, false
}

func TestConjunction_ValidateConnected(t *testing.T) {
	c := query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "a", Kind: query.AnyNode},
			{Variable: "b", Kind: query.AnyNode},
		},
		Binary: []query.BinaryOperatorSpec{
			query.NewBinaryOperatorSpec("a", "b", bindingOp{binding: true}, location.Span{}),
		},
	}
	assert.Nil(t, c.Validate())
}

func TestConjunction_ValidateDisconnectedFails(t *testing.T) {
	c := query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "a", Kind: query.AnyNode},
			{Variable: "b", Kind: query.AnyNode},
		},
	}
	err := c.Validate()
	require.NotNil(t, err)
}

func TestConjunction_ValidateUnboundLeftOperand(t *testing.T) {
	c := query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "a", Kind: query.AnyNode},
		},
		Binary: []query.BinaryOperatorSpec{
			query.NewBinaryOperatorSpec("missing", "a", bindingOp{binding: true}, location.Span{}),
		},
	}
	err := c.Validate()
	require.NotNil(t, err)
}

func TestConjunction_ValidateOptionalNodeExemptFromConnectivity(t *testing.T) {
	c := query.Conjunction{
		Nodes: []query.NodeSearchSpec{
			{Variable: "a", Kind: query.AnyNode},
			{Variable: "b", Kind: query.AnyNode, Optional: true},
		},
	}
	assert.Nil(t, c.Validate())
}

func TestNodeSearchSpec_ImpossibleReasonOnBadPattern(t *testing.T) {
	spec := query.NodeSearchSpec{Kind: query.RegexValue, Value: "(unterminated"}
	reason, ok := spec.ImpossibleReason()
	assert.True(t, ok)
	assert.NotEmpty(t, reason)
}

func TestNodeSearchSpec_ImpossibleReasonNegatedNeverImpossible(t *testing.T) {
	spec := query.NodeSearchSpec{Kind: query.NotRegexValue, Value: "(unterminated"}
	_, ok := spec.ImpossibleReason()
	assert.False(t, ok)
}

func TestQErr_KindsUsedAreDistinct(t *testing.T) {
	assert.NotEqual(t, qerr.KindLHSOperandNotFound, qerr.KindRHSOperandNotFound)
}
