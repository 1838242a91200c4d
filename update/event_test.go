package update_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/update"
)

func TestBatch_AddAccumulatesEvents(t *testing.T) {
	b := update.NewBatch()
	b.Add(update.AddNode{Name: "n1"}).
		Add(update.AddNodeLabel{Name: "n1", Value: "NODE"}).
		Add(update.AddEdge{Source: "n1", Target: "n2", Component: component.Descriptor{Type: component.Pointing}})

	assert.Equal(t, 3, b.Len())
	assert.NotEqual(t, b.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestBatch_NilIsEmpty(t *testing.T) {
	var b *update.Batch
	assert.Equal(t, 0, b.Len())
}

func TestNewBatch_AssignsDistinctIDs(t *testing.T) {
	a := update.NewBatch()
	b := update.NewBatch()
	assert.NotEqual(t, a.ID, b.ID)
}
