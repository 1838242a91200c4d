package qerr

import (
	"sort"
	"sync"
)

// Collector gathers errors and resolves them to a precedence-ordered result.
//
// [Collector.Result] puts connectivity errors (SemanticError, SyntaxError)
// ahead of every other collected error because they name the actionable
// problem; a conjunction can fail many node searches for secondary reasons
// but the unbound-variable error is what the caller needs to see first.
//
// The compile package does not use a Collector: plan construction returns
// the first error it meets.
//
// Collector is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	errors []*Error
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect records an error for later resolution. A nil error is ignored.
func (c *Collector) Collect(err *Error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

// Len reports how many errors have been collected.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors)
}

// OK reports whether no errors have been collected.
func (c *Collector) OK() bool {
	return c.Len() == 0
}

// Result returns the collected errors ordered by precedence: connectivity
// errors (SemanticError, SyntaxError) first, in the order collected, then
// all other errors in the order collected. Returns nil if nothing was
// collected.
//
// The sort is stable, so errors of equal precedence retain collection order.
// This gives deterministic output across repeated builds of the same
// conjunction, matching the join-order optimizer's own determinism
// guarantee.
func (c *Collector) Result() []*Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errors) == 0 {
		return nil
	}
	out := make([]*Error, len(c.errors))
	copy(out, c.errors)
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i].kind) < rankOf(out[j].kind)
	})
	return out
}

// First returns the highest-precedence collected error, or nil if none was
// collected. This is the error the compiler should return from Plan/Build:
// it is always a connectivity error when one was collected, otherwise the
// first construction error encountered.
func (c *Collector) First() *Error {
	res := c.Result()
	if len(res) == 0 {
		return nil
	}
	return res[0]
}
