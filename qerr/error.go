package qerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/korpling/graphannis-go/location"
)

// Error is an immutable query engine error. All fields are unexported;
// construct values via [New] and the builder returned from it.
//
// Direct struct literal construction bypasses the builder's invariants and
// should not be used in production code.
type Error struct {
	kind    Kind
	span    location.Span
	message string
	details []Detail
	cause   error
}

// New starts building an Error of the given kind with the given message.
//
// New panics if kind is zero or message is empty; these are programmer
// errors caught at construction time rather than deferred to callers
// inspecting a malformed Error.
func New(kind Kind, message string) *Builder {
	if kind.IsZero() {
		panic("qerr.New: zero Kind")
	}
	if message == "" {
		panic("qerr.New: empty message")
	}
	return &Builder{err: Error{kind: kind, message: message}}
}

// Builder provides fluent construction of [Error] values.
type Builder struct {
	err Error
}

// WithSpan attaches a source location to the error under construction.
func (b *Builder) WithSpan(span location.Span) *Builder {
	b.err.span = span
	return b
}

// WithDetail appends a key-value detail to the error under construction.
func (b *Builder) WithDetail(key, value string) *Builder {
	b.err.details = append(b.err.details, Detail{Key: key, Value: value})
	return b
}

// WithDetails appends zero or more details to the error under construction.
func (b *Builder) WithDetails(details ...Detail) *Builder {
	b.err.details = append(b.err.details, details...)
	return b
}

// WithCause wraps an underlying error. [errors.Unwrap] on the built Error
// returns cause.
func (b *Builder) WithCause(cause error) *Builder {
	b.err.cause = cause
	return b
}

// Build returns the constructed, immutable Error.
func (b *Builder) Build() *Error {
	cp := b.err
	if len(b.err.details) > 0 {
		cp.details = make([]Detail, len(b.err.details))
		copy(cp.details, b.err.details)
	}
	return &cp
}

// Kind returns the error's category.
func (e *Error) Kind() Kind {
	if e == nil {
		return 0
	}
	return e.kind
}

// Span returns the error's source location, or the zero Span if none was
// attached. Check [location.Span.IsZero].
func (e *Error) Span() location.Span {
	if e == nil {
		return location.Span{}
	}
	return e.span
}

// HasSpan reports whether the error carries a non-zero span.
func (e *Error) HasSpan() bool {
	return e != nil && !e.span.IsZero()
}

// Details returns a defensive copy of the error's key-value details.
func (e *Error) Details() []Detail {
	if e == nil || len(e.details) == 0 {
		return nil
	}
	cp := make([]Detail, len(e.details))
	copy(cp, e.details)
	return cp
}

// Detail returns the value of the first detail with the given key, and
// whether one was found.
func (e *Error) Detail(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, d := range e.details {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}

// Error implements the error interface. The format is deliberately stable:
// "<kind>: <message> (key=value, ...)", with the span omitted since
// [location.Span] has its own String form callers can print separately.
func (e *Error) Error() string {
	if e == nil {
		return "<nil qerr.Error>"
	}
	var sb strings.Builder
	sb.WriteString(e.kind.String())
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if len(e.details) > 0 {
		sb.WriteString(" (")
		for i, d := range e.details {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", d.Key, d.Value)
		}
		sb.WriteString(")")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Unwrap returns the wrapped cause, if any, enabling [errors.Is] and
// [errors.As] to traverse into it.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is a *Error with the same Kind, enabling
// errors.Is(err, qerr.New(qerr.KindTimeout, "").Build()) style comparisons.
// Callers usually prefer [Of] for checking an error's Kind directly.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.kind == other.kind
}

// Of reports whether err is, or wraps, a *qerr.Error of the given kind.
func Of(err error, kind Kind) bool {
	var qe *Error
	if !errors.As(err, &qe) {
		return false
	}
	return qe.kind == kind
}

// As extracts a *qerr.Error from err via errors.As, for callers that need
// the full error value rather than just its Kind.
func As(err error) (*Error, bool) {
	var qe *Error
	ok := errors.As(err, &qe)
	return qe, ok
}
