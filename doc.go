// Package graphannisgo is a corpus query engine for richly-annotated
// linguistic graphs: an annotation store, a multi-layer graph-storage
// layer, a query compiler and cost-based optimizer, a lazy execution
// engine, and the consumer-facing corpus API built on top of them.
//
// # Architecture Overview
//
// The module is organized into layers with strict dependency ordering:
//
//	Foundation tier (imports only other foundation packages and internal/trace):
//	  - location: source positions and spans for error reporting
//	  - qerr: structured, builder-constructed errors with a closed kind enum
//	  - anno: annotation key interning, forward/inverse value indexes,
//	    cardinality estimation
//	  - component: component descriptors and the append-only registry
//	    partitioning a graph's edges by type/layer/name
//	  - gs: the graph-storage implementations each component is backed by
//	    (adjacency list, dense adjacency, linear chain, pre/post order)
//	  - matchgroup: the fixed-width match-group value the query engine
//	    passes between iterators
//
//	Core engine tier:
//	  - corpusgraph: the annotation graph — nodes, components, their
//	    storages — plus update application and disk persistence
//	  - update: the update-event/batch vocabulary corpusgraph applies
//	  - query: the pre-parsed conjunction/operator/node-search contract the
//	    compiler consumes
//	  - compile: the cost-model join-order optimizer and plan builder
//	  - exec: the lazy, pull-based iterator that turns a compiled plan into
//	    match groups
//
//	Consumer tier:
//	  - corpusstore: the top-level API — count, find, frequency, plan, and
//	    subgraph operations against one or more on-disk corpora
//
// # Entry Points
//
// Opening (or creating) a corpus store and applying an update batch:
//
//	import "github.com/korpling/graphannis-go/corpusstore"
//
//	m := corpusstore.New("/var/lib/corpora")
//	err := m.ApplyUpdate(ctx, "pcc2", batch, nil)
//	err = m.Snapshot(ctx, "pcc2")
//
// Running a query:
//
//	import "github.com/korpling/graphannis-go/query"
//
//	conj := query.Conjunction{ /* node searches and operators */ }
//	count, err := m.Count(ctx, "pcc2", conj)
//	groups, err := m.Find(ctx, "pcc2", conj, 0, 100, corpusstore.OrderAscending)
//
// # Subpackages
//
// See the individual package documentation for detailed usage:
//
//   - [github.com/korpling/graphannis-go/qerr]: structured errors
//   - [github.com/korpling/graphannis-go/location]: source location tracking
//   - [github.com/korpling/graphannis-go/anno]: annotation storage
//   - [github.com/korpling/graphannis-go/component]: component registry
//   - [github.com/korpling/graphannis-go/gs]: graph storage implementations
//   - [github.com/korpling/graphannis-go/corpusgraph]: the annotation graph
//   - [github.com/korpling/graphannis-go/update]: update events and batches
//   - [github.com/korpling/graphannis-go/query]: query conjunctions and operators
//   - [github.com/korpling/graphannis-go/compile]: plan construction and optimization
//   - [github.com/korpling/graphannis-go/exec]: plan execution
//   - [github.com/korpling/graphannis-go/corpusstore]: the consumer-facing API
package graphannisgo
