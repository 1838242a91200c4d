package anno

import (
	"context"
	"iter"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/korpling/graphannis-go/internal/trace"
)

// Hit is a single result from a search: the subject that satisfied it and
// the qualified key under which it did.
type Hit[T comparable] struct {
	Item T
	Key  Key
}

// Store is an annotation store keyed by subject type T: a node-id for node
// annotations, or an [Edge] for edge annotations. It is the in-memory
// backend described in the data model — a forward map from subject to its
// annotations and an inverse map from key to value to subjects.
//
// Store is safe for concurrent use.
type Store[T comparable] struct {
	mu      sync.RWMutex
	keys    *KeyTable
	logger  *slog.Logger
	forward map[T]map[KeyID]string
	inverse map[KeyID]map[string]map[T]struct{}
	hist    map[KeyID]*Histogram
}

// NewStore returns an empty Store backed by its own key table.
func NewStore[T comparable]() *Store[T] {
	return &Store[T]{
		keys:    NewKeyTable(),
		forward: make(map[T]map[KeyID]string),
		inverse: make(map[KeyID]map[string]map[T]struct{}),
		hist:    make(map[KeyID]*Histogram),
	}
}

// WithLogger attaches a logger used for operation-boundary tracing (the
// statistics_update recompute is costly enough to be worth spanning).
func (s *Store[T]) WithLogger(logger *slog.Logger) *Store[T] {
	s.logger = logger
	return s
}

// Insert records value under key for item, idempotent on (item, key): a
// second insert with the same item and key replaces the value and updates
// the inverted index accordingly.
func (s *Store[T]) Insert(item T, key Key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.keys.Intern(key)
	if s.forward[item] == nil {
		s.forward[item] = make(map[KeyID]string)
	}
	if old, had := s.forward[item][id]; had {
		s.removeFromInverseLocked(id, old, item)
	}
	s.forward[item][id] = value
	s.addToInverseLocked(id, value, item)
}

func (s *Store[T]) addToInverseLocked(id KeyID, value string, item T) {
	byValue, ok := s.inverse[id]
	if !ok {
		byValue = make(map[string]map[T]struct{})
		s.inverse[id] = byValue
	}
	items, ok := byValue[value]
	if !ok {
		items = make(map[T]struct{})
		byValue[value] = items
	}
	items[item] = struct{}{}
}

func (s *Store[T]) removeFromInverseLocked(id KeyID, value string, item T) {
	byValue, ok := s.inverse[id]
	if !ok {
		return
	}
	items, ok := byValue[value]
	if !ok {
		return
	}
	delete(items, item)
	if len(items) == 0 {
		delete(byValue, value)
	}
}

// Remove deletes the annotation at (item, key), returning its previous
// value and whether one existed.
func (s *Store[T]) Remove(item T, key Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.keys.Find(key)
	if !ok {
		return "", false
	}
	byKey, ok := s.forward[item]
	if !ok {
		return "", false
	}
	old, ok := byKey[id]
	if !ok {
		return "", false
	}
	delete(byKey, id)
	if len(byKey) == 0 {
		delete(s.forward, item)
	}
	s.removeFromInverseLocked(id, old, item)
	return old, true
}

// GetValue returns the value stored at (item, key), and whether it exists.
func (s *Store[T]) GetValue(item T, key Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys.Find(key)
	if !ok {
		return "", false
	}
	v, ok := s.forward[item][id]
	return v, ok
}

// HasValue reports whether item carries an annotation for key.
func (s *Store[T]) HasValue(item T, key Key) bool {
	_, ok := s.GetValue(item, key)
	return ok
}

// AllAnnotations returns every annotation on item, ordered by (namespace,
// name) for determinism.
func (s *Store[T]) AllAnnotations(item T) []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey := s.forward[item]
	out := make([]Annotation, 0, len(byKey))
	for id, v := range byKey {
		k, _ := s.keys.Lookup(id)
		out = append(out, Annotation{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Namespace != out[j].Key.Namespace {
			return out[i].Key.Namespace < out[j].Key.Namespace
		}
		return out[i].Key.Name < out[j].Key.Name
	})
	return out
}

// KeysQualifiedByName enumerates every namespace that has been used with
// name.
func (s *Store[T]) KeysQualifiedByName(name string) []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys.KeysNamed(name)
}

// matchingKeys resolves a (namespace, name) query to the concrete keys it
// addresses: a single key if namespace is non-empty, or every key sharing
// the name otherwise.
func (s *Store[T]) matchingKeys(namespace, name string) []Key {
	if namespace != "" {
		return []Key{{Namespace: namespace, Name: name}}
	}
	return s.keys.KeysNamed(name)
}

// ExactSearch returns a lazy sequence of hits whose value satisfies sel,
// for the key(s) matching (namespace, name). namespace may be empty to
// search every namespace using name.
func (s *Store[T]) ExactSearch(namespace, name string, sel Selector) iter.Seq[Hit[T]] {
	return func(yield func(Hit[T]) bool) {
		s.mu.RLock()
		keys := s.matchingKeys(namespace, name)
		type found struct {
			key   Key
			items []T
		}
		var snapshot []found
		for _, k := range keys {
			id, ok := s.keys.Find(k)
			if !ok {
				continue
			}
			for value, items := range s.inverse[id] {
				if !sel.Accepts(value) {
					continue
				}
				list := make([]T, 0, len(items))
				for item := range items {
					list = append(list, item)
				}
				snapshot = append(snapshot, found{key: k, items: list})
			}
		}
		s.mu.RUnlock()

		for _, f := range snapshot {
			for _, item := range f.items {
				if !yield(Hit[T]{Item: item, Key: f.key}) {
					return
				}
			}
		}
	}
}

// RegexSearch returns a lazy sequence of hits whose value matches pattern,
// implicitly anchored with ^...$. If pattern fails to compile, a positive
// search (negated=false) yields nothing; a negated search falls back to
// matching every value for the key, matching the store's documented
// malformed-regex behaviour.
func (s *Store[T]) RegexSearch(namespace, name, pattern string, negated bool) iter.Seq[Hit[T]] {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		if !negated {
			return func(func(Hit[T]) bool) {}
		}
		return s.ExactSearch(namespace, name, Any())
	}

	return func(yield func(Hit[T]) bool) {
		for hit := range s.ExactSearch(namespace, name, Any()) {
			value, _ := s.GetValue(hit.Item, hit.Key)
			matched := re.MatchString(value)
			if matched == negated {
				continue
			}
			if !yield(hit) {
				return
			}
		}
	}
}

// GuessCount estimates the number of annotations for (namespace, name)
// whose value falls in [lower, upper], using the key's histogram. Falls
// back to the true annotation count if no histogram has been computed.
func (s *Store[T]) GuessCount(namespace, name, lower, upper string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, k := range s.matchingKeys(namespace, name) {
		id, ok := s.keys.Find(k)
		if !ok {
			continue
		}
		if h, ok := s.hist[id]; ok {
			total += h.GuessCount(lower, upper)
			continue
		}
		total += s.numberOfAnnotationsByNameLocked(id)
	}
	return total
}

// GuessCountRegex estimates the number of annotations for (namespace,
// name) whose value matches pattern, by scanning the key's distinct
// values and summing the exact number of items carrying each matching
// one; the histograms are not consulted. Malformed
// patterns return 0, matching the store's documented fallback for
// cardinality estimation (callers needing the enumerated fallback use
// [Store.RegexSearch] directly).
func (s *Store[T]) GuessCountRegex(namespace, name, pattern string) int {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, k := range s.matchingKeys(namespace, name) {
		id, ok := s.keys.Find(k)
		if !ok {
			continue
		}
		for value, items := range s.inverse[id] {
			if re.MatchString(value) {
				total += len(items)
			}
		}
	}
	return total
}

// GuessMostFrequentValue returns the value with the largest item set for
// (namespace, name), and whether any value exists at all.
func (s *Store[T]) GuessMostFrequentValue(namespace, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best, bestCount := "", -1
	found := false
	for _, k := range s.matchingKeys(namespace, name) {
		id, ok := s.keys.Find(k)
		if !ok {
			continue
		}
		for value, items := range s.inverse[id] {
			if len(items) > bestCount {
				best, bestCount = value, len(items)
				found = true
			}
		}
	}
	return best, found
}

// numberOfAnnotationsByNameLocked counts annotations for an already
// resolved KeyID. Caller must hold s.mu.
func (s *Store[T]) numberOfAnnotationsByNameLocked(id KeyID) int {
	count := 0
	for _, items := range s.inverse[id] {
		count += len(items)
	}
	return count
}

// NumberOfAnnotations returns the number of distinct (item, key) pairs
// stored.
func (s *Store[T]) NumberOfAnnotations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, byKey := range s.forward {
		count += len(byKey)
	}
	return count
}

// Clear empties both the forward and inverse indexes. The key table is
// left intact so previously assigned KeyIDs remain stable.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forward = make(map[T]map[KeyID]string)
	s.inverse = make(map[KeyID]map[string]map[T]struct{})
	s.hist = make(map[KeyID]*Histogram)
}

// StatisticsUpdate recomputes histograms and per-key cardinalities for
// every interned key. It holds the store's exclusive lock, so concurrent
// readers and writers are blocked for the duration.
func (s *Store[T]) StatisticsUpdate(ctx context.Context) {
	if ctx == nil {
		panic("anno.Store.StatisticsUpdate: nil context")
	}
	op := trace.Begin(ctx, s.logger, "graphannis.annostore.statistics_update")
	var retErr error
	defer func() { op.End(retErr) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hist = make(map[KeyID]*Histogram)
	for id, byValue := range s.inverse {
		var values []string
		universe := 0
		for value, items := range byValue {
			universe += len(items)
			for range items {
				values = append(values, value)
			}
		}
		if universe == 0 {
			continue
		}
		s.hist[id] = NewHistogram(values, universe)
	}
}
