package anno

import (
	"sync"
)

// NodeID is an opaque 64-bit node identifier, unique within one graph.
// IDs are assigned on first insertion and never reused within a graph's
// lifetime.
type NodeID uint64

// Edge is a directed edge within one component, identified by its
// endpoints. Edge annotations are keyed on the whole pair, not just the
// source, since the same ordered pair can carry different labels in
// different components.
type Edge struct {
	Source NodeID
	Target NodeID
}

// Key identifies an annotation's qualified name: a namespace and a name,
// both short strings. Namespace may be empty for unqualified annotations.
//
// Key is comparable and intended for use as a map key once interned; see
// [KeyTable].
type Key struct {
	Namespace string
	Name      string
}

// Well-known annotation keys recognised across the engine. These are
// module-level constants rather than values computed per store, since
// their string form is bit-stable across runs and corpora.
var (
	KeyNodeName = Key{Namespace: "annis", Name: "node_name"}
	KeyNodeType = Key{Namespace: "annis", Name: "node_type"}
	KeyTok      = Key{Namespace: "annis", Name: "tok"}
)

// KeyID is a small dense integer assigned to a [Key] by a [KeyTable]. Two
// KeyIDs from different tables are not comparable; KeyID is only stable
// within the table that produced it.
type KeyID uint32

// KeyTable interns [Key] values into small dense [KeyID] integers, scoped
// to one annotation store. Interning lets the forward and inverse indexes
// use a fixed-width integer instead of repeating namespace/name strings
// per annotation.
//
// KeyTable is safe for concurrent use.
type KeyTable struct {
	mu      sync.RWMutex
	byKey   map[Key]KeyID
	byID    []Key
}

// NewKeyTable returns an empty KeyTable.
func NewKeyTable() *KeyTable {
	return &KeyTable{byKey: make(map[Key]KeyID)}
}

// Intern returns the KeyID for key, assigning a new one if key has not been
// seen by this table before. Interning is append-only: once assigned, a
// KeyID is never reused or reassigned to a different Key.
func (t *KeyTable) Intern(key Key) KeyID {
	t.mu.RLock()
	id, ok := t.byKey[key]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byKey[key]; ok {
		return id
	}
	id = KeyID(len(t.byID))
	t.byID = append(t.byID, key)
	t.byKey[key] = id
	return id
}

// Lookup returns the Key for id and whether id has been assigned.
func (t *KeyTable) Lookup(id KeyID) (Key, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.byID) {
		return Key{}, false
	}
	return t.byID[id], true
}

// Find returns the KeyID for key without interning it, and whether key has
// been seen before.
func (t *KeyTable) Find(key Key) (KeyID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byKey[key]
	return id, ok
}

// KeysNamed returns every interned Key whose Name matches name, across all
// namespaces that use it. This backs keys_qualified_by_name.
func (t *KeyTable) KeysNamed(name string) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Key
	for _, k := range t.byID {
		if k.Name == name {
			out = append(out, k)
		}
	}
	return out
}

// Len reports how many distinct keys have been interned.
func (t *KeyTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
