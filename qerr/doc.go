// Package qerr defines the query engine's structured error type.
//
// [Error] carries a stable [Kind], an optional [location.Span], a
// human-readable message, and zero or more [Detail] key-value pairs. It
// is the error type returned by query compilation, plan execution, update
// application, and annotation store access. System failures unrelated to
// query semantics (nil arguments, impossible internal states) still use
// plain Go errors; Error is reserved for the closed set of Kind values a
// caller is expected to branch on.
//
// # Construction
//
// Build an Error with [New], which returns a [Builder]:
//
//	err := qerr.New(qerr.KindNoSuchNodeID, "node not found").
//	    WithDetail(qerr.DetailKeyNodeID, name).
//	    Build()
//
// # Inspecting errors
//
// Use [Of] to check an error's Kind without extracting the value, or [As]
// when the full Error is needed:
//
//	if qerr.Of(err, qerr.KindTimeout) {
//	    // retry with a larger budget
//	}
//
// # Collecting deferred errors
//
// [Collector] gathers errors and resolves them to a single,
// precedence-ordered result. The compile package does not use it; plan
// construction returns its first error. See [Collector] for the precedence
// rule.
package qerr
