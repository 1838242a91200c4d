// Package corpusstore is the engine's external interface: the
// consumer-facing surface that turns a corpus name and a query conjunction
// into counts, match pages, frequency tables, plan descriptions, or
// reconstructed subgraphs, against one or more on-disk corpora managed
// under a single root directory.
//
// A [Manager] owns the corpus registry: each named subdirectory of its
// root is a [corpusgraph.AnnotationGraph] persisted with the layout
// corpusgraph.Snapshot/Load already implement (a "current" snapshot and,
// iff a prior save was interrupted, a "backup" sibling). Corpora are
// opened lazily on first use and kept resident until [Manager.Close] or
// [Manager.Unload] evicts them.
//
// A CLI or other REPL-style collaborator built on this package should map
// a [qerr.KindNoSuchCorpus] error whose cause is a missing data directory
// to a distinct process exit code; see [ExitCode].
package corpusstore
