// Package query defines the pre-parsed input contract the compiler
// consumes: conjunctions of node-search specifications connected by
// operator specifications. Nothing in this package parses text; specs are
// plain Go values a frontend (or a test) constructs directly, each
// carrying a [location.Span] so semantic errors can report a line-column
// range without this package ever seeing source text.
package query

import (
	"regexp"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/location"
)

// NodeSearchKind is the closed set of node-search specifications.
type NodeSearchKind uint8

const (
	ExactValue NodeSearchKind = iota + 1
	NotExactValue
	RegexValue
	NotRegexValue
	ExactTokenValue
	NotExactTokenValue
	RegexTokenValue
	NotRegexTokenValue
	AnyToken
	AnyNode
)

// tokenLeaf reports whether kind restricts matches to token-leaf nodes
// (no outgoing edge in any Coverage component with statistics claiming
// at least one node).
func (k NodeSearchKind) tokenLeaf() bool {
	switch k {
	case ExactTokenValue, NotExactTokenValue, RegexTokenValue, NotRegexTokenValue, AnyToken:
		return true
	default:
		return false
	}
}

func (k NodeSearchKind) regex() bool {
	switch k {
	case RegexValue, NotRegexValue, RegexTokenValue, NotRegexTokenValue:
		return true
	default:
		return false
	}
}

func (k NodeSearchKind) negated() bool {
	switch k {
	case NotExactValue, NotRegexValue, NotExactTokenValue, NotRegexTokenValue:
		return true
	default:
		return false
	}
}

// NodeSearchSpec is one conjunction member: an optional variable name, an
// optionality flag, a closed-set search kind, the qualified annotation
// name it searches (namespace may be empty to search every namespace
// sharing name), and the comparison value or regex pattern.
//
// ConstOutput, when true, marks a meta-annotation or token search whose
// emitted match key is replaced by a canonical one at execution time
// (§4.5); AnyNode and AnyToken searches set it implicitly.
type NodeSearchSpec struct {
	Variable    string
	Optional    bool
	Kind        NodeSearchKind
	Namespace   string
	Name        string
	Value       string
	ConstOutput bool
	Span        location.Span
}

// Predicate is a per-match filter predicate evaluated after the base
// iterator: a regex check, the token-leaf check, or a value comparison
// that the base iterator's [anno.Selector] could not express directly
// (e.g. the negated-regex fallback-to-every-value case).
type Predicate func(coverage []gs.GraphStorage, node anno.NodeID) bool

// Source is the minimal capability set a node search needs: the node
// annotation store, plus a way to ask whether a node has any outgoing
// edge in a Coverage component whose statistics claim at least one node
// (the token-leaf predicate).
type Source interface {
	NodeAnnotations() *anno.Store[anno.NodeID]
	CoverageComponentsWithNodes() []gs.GraphStorage
}

// BaseIterator returns the lazy sequence of candidate matches spec
// produces from src, before filters are applied.
func (spec NodeSearchSpec) BaseIterator(src Source) func(yield func(anno.NodeID) bool) {
	store := src.NodeAnnotations()
	switch spec.Kind {
	case AnyNode:
		return func(yield func(anno.NodeID) bool) {
			for hit := range store.ExactSearch("", "", anno.Any()) {
				if !yield(hit.Item) {
					return
				}
			}
		}
	case AnyToken:
		return func(yield func(anno.NodeID) bool) {
			for hit := range store.ExactSearch(anno.KeyTok.Namespace, anno.KeyTok.Name, anno.Any()) {
				if !yield(hit.Item) {
					return
				}
			}
		}
	case ExactValue, ExactTokenValue:
		ns, name := spec.namespaceName()
		return func(yield func(anno.NodeID) bool) {
			for hit := range store.ExactSearch(ns, name, anno.EqualTo(spec.Value)) {
				if !yield(hit.Item) {
					return
				}
			}
		}
	case NotExactValue, NotExactTokenValue:
		ns, name := spec.namespaceName()
		return func(yield func(anno.NodeID) bool) {
			for hit := range store.ExactSearch(ns, name, anno.NotEqualTo(spec.Value)) {
				if !yield(hit.Item) {
					return
				}
			}
		}
	case RegexValue, RegexTokenValue:
		ns, name := spec.namespaceName()
		return func(yield func(anno.NodeID) bool) {
			for hit := range store.RegexSearch(ns, name, spec.Value, false) {
				if !yield(hit.Item) {
					return
				}
			}
		}
	case NotRegexValue, NotRegexTokenValue:
		ns, name := spec.namespaceName()
		return func(yield func(anno.NodeID) bool) {
			for hit := range store.RegexSearch(ns, name, spec.Value, true) {
				if !yield(hit.Item) {
					return
				}
			}
		}
	default:
		return func(func(anno.NodeID) bool) {}
	}
}

func (spec NodeSearchSpec) namespaceName() (string, string) {
	if spec.Kind.tokenLeaf() {
		return anno.KeyTok.Namespace, anno.KeyTok.Name
	}
	return spec.Namespace, spec.Name
}

// Predicates returns the per-match filter predicates spec requires beyond
// its base iterator: the token-leaf check for *TokenValue/AnyToken kinds,
// and nothing else. Regex kinds get no predicate, because an unparsable
// pattern already makes RegexSearch return the empty or all-values
// fallback.
func (spec NodeSearchSpec) Predicates() []Predicate {
	var preds []Predicate
	if spec.Kind.tokenLeaf() {
		preds = append(preds, isTokenLeaf)
	}
	return preds
}

func isTokenLeaf(coverage []gs.GraphStorage, node anno.NodeID) bool {
	for _, storage := range coverage {
		for range storage.Outgoing(node) {
			return false
		}
	}
	return true
}

// EstimatedOutput returns spec's estimated match count from src's
// cardinality estimators, clipped to at least 1 per §4.4.
func (spec NodeSearchSpec) EstimatedOutput(store *anno.Store[anno.NodeID]) int {
	var count int
	switch spec.Kind {
	case AnyNode:
		count = store.NumberOfAnnotations()
	case AnyToken:
		count = store.GuessCount(anno.KeyTok.Namespace, anno.KeyTok.Name, "", "￿")
	case ExactValue, ExactTokenValue:
		ns, name := spec.namespaceName()
		count = store.GuessCount(ns, name, spec.Value, spec.Value)
	case NotExactValue, NotExactTokenValue:
		ns, name := spec.namespaceName()
		count = store.GuessCount(ns, name, "", "￿") - store.GuessCount(ns, name, spec.Value, spec.Value)
	case RegexValue, RegexTokenValue, NotRegexValue, NotRegexTokenValue:
		ns, name := spec.namespaceName()
		count = store.GuessCountRegex(ns, name, spec.Value)
	}
	if count < 1 {
		count = 1
	}
	return count
}

// CanonicalKey returns the key a const-output match reports instead of
// whichever concrete key it actually matched: the token key for every
// token-leaf kind, the node-existence key for AnyNode, or spec's own
// qualified name otherwise (a meta-annotation search already names an
// unambiguous key, so "canonical" is a no-op there).
func (spec NodeSearchSpec) CanonicalKey() anno.Key {
	switch spec.Kind {
	case AnyToken, ExactTokenValue, NotExactTokenValue, RegexTokenValue, NotRegexTokenValue:
		return anno.KeyTok
	case AnyNode:
		return anno.KeyNodeType
	default:
		return anno.Key{Namespace: spec.Namespace, Name: spec.Name}
	}
}

// MatchingKeys returns the annotation keys at node that satisfy spec's
// qualified-name and value constraints, the set a node-search execution
// iterator emits one match per (§4.5), before any const-output
// canonicalization collapses them to [NodeSearchSpec.CanonicalKey].
func (spec NodeSearchSpec) MatchingKeys(store *anno.Store[anno.NodeID], node anno.NodeID) []anno.Key {
	ns, name := spec.namespaceName()
	var candidates []anno.Key
	if ns != "" {
		candidates = []anno.Key{{Namespace: ns, Name: name}}
	} else {
		candidates = store.KeysQualifiedByName(name)
	}
	var out []anno.Key
	for _, k := range candidates {
		value, ok := store.GetValue(node, k)
		if !ok {
			continue
		}
		if spec.valueMatches(value) {
			out = append(out, k)
		}
	}
	return out
}

// valueMatches reports whether value satisfies spec's comparison,
// independent of which key it came from.
func (spec NodeSearchSpec) valueMatches(value string) bool {
	switch spec.Kind {
	case AnyNode, AnyToken:
		return true
	case ExactValue, ExactTokenValue:
		return value == spec.Value
	case NotExactValue, NotExactTokenValue:
		return value != spec.Value
	case RegexValue, RegexTokenValue:
		re, err := regexp.Compile("^(?:" + spec.Value + ")$")
		return err == nil && re.MatchString(value)
	case NotRegexValue, NotRegexTokenValue:
		re, err := regexp.Compile("^(?:" + spec.Value + ")$")
		return err != nil || !re.MatchString(value)
	default:
		return false
	}
}

// ImpossibleReason reports a free-text reason when spec can be proven to
// match nothing: a non-negated regex kind whose pattern fails to compile
// (a malformed pattern can never match, unlike the negated case where a
// compile failure falls back to "every value", per [Store.RegexSearch]).
func (spec NodeSearchSpec) ImpossibleReason() (string, bool) {
	if !spec.Kind.regex() || spec.Kind.negated() {
		return "", false
	}
	if _, err := regexp.Compile("^(?:" + spec.Value + ")$"); err != nil {
		return "pattern does not compile: " + err.Error(), true
	}
	return "", false
}
