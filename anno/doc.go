// Package anno implements the annotation store: a mapping from a subject
// (node-id or edge) to qualified key/value annotations, with exact, regex,
// and range lookups and histogram-backed selectivity estimates.
//
// [Store] is generic over the subject type, matching the polymorphism
// design note: instantiate Store[anno.NodeID] for node annotations and
// Store[anno.Edge] for a component's edge annotations. Both share the same
// in-memory implementation. [DiskStore] is a separate on-disk backend (see
// diskstore.go); corpus snapshots written by package corpusgraph do not
// use it.
//
// Annotation keys are interned per store via [KeyTable], producing small
// dense [KeyID] values so the forward and inverse indexes never repeat
// namespace/name strings per annotation.
package anno
