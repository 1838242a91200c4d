// Package update defines the events an update batch applies to an
// annotation graph, and the batch type itself. Events are a small closed
// set dispatched by type switch in the corpusgraph package, mirroring the
// engine's enum-dispatched design elsewhere.
package update

import (
	"github.com/google/uuid"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
)

// Event is implemented by every update event. The method set is
// intentionally empty: consumers type-switch on the concrete type rather
// than calling behaviour through the interface.
type Event interface {
	isEvent()
}

// AddNode creates a node named name if it does not already exist. Per the
// data model, a node is not considered to exist until it carries the
// node_type annotation; AddNode alone does not set it.
type AddNode struct{ Name string }

// DeleteNode deletes the node named name, including every annotation,
// edge, and edge annotation referencing it.
type DeleteNode struct{ Name string }

// AddNodeLabel sets node name's annotation at Key to Value, creating the
// node's existence marker if Key is the node_type key.
type AddNodeLabel struct {
	Name  string
	Key   anno.Key
	Value string
}

// DeleteNodeLabel removes node name's annotation at Key. Deleting the
// node_type key deletes the node itself, per the data model invariant.
type DeleteNodeLabel struct {
	Name string
	Key  anno.Key
}

// AddEdge creates an edge from Source to Target in Component, creating the
// component if it is not yet registered.
type AddEdge struct {
	Source, Target string
	Component      component.Descriptor
}

// DeleteEdge removes the edge from Source to Target in Component.
type DeleteEdge struct {
	Source, Target string
	Component      component.Descriptor
}

// AddEdgeLabel sets an edge's annotation at Key to Value.
type AddEdgeLabel struct {
	Source, Target string
	Component      component.Descriptor
	Key            anno.Key
	Value          string
}

// DeleteEdgeLabel removes an edge's annotation at Key.
type DeleteEdgeLabel struct {
	Source, Target string
	Component      component.Descriptor
	Key            anno.Key
}

func (AddNode) isEvent()         {}
func (DeleteNode) isEvent()      {}
func (AddNodeLabel) isEvent()    {}
func (DeleteNodeLabel) isEvent() {}
func (AddEdge) isEvent()         {}
func (DeleteEdge) isEvent()      {}
func (AddEdgeLabel) isEvent()    {}
func (DeleteEdgeLabel) isEvent() {}

// Batch is an ordered sequence of events applied atomically: either every
// event applies, or the graph is reloaded from its on-disk snapshot before
// the error is returned to the caller.
type Batch struct {
	// ID is a fresh identifier for this batch. No journal is written and
	// the graph does not record it.
	ID     uuid.UUID
	Events []Event
}

// NewBatch returns an empty Batch with a fresh correlation id.
func NewBatch() *Batch {
	return &Batch{ID: uuid.New()}
}

// Add appends an event to the batch, returning the batch for chaining.
func (b *Batch) Add(e Event) *Batch {
	b.Events = append(b.Events, e)
	return b
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Events)
}
