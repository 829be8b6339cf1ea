// Package codegen tracks what the emitter produced last time so unchanged
// namespaces are not emitted again.
package codegen

import (
	"maps"
	"sync"
	"sync/atomic"
)

// Refs is the set of namespaces one namespace referenced when it was last
// emitted.
type Refs map[string]struct{}

// NewRefs builds a Refs set.
func NewRefs(names ...string) Refs {
	r := make(Refs, len(names))
	for _, n := range names {
		r[n] = struct{}{}
	}
	return r
}

// DependencyCache remembers, per namespace, the references recorded on the
// previous emission pass. It is safe for concurrent use.
type DependencyCache struct {
	mu        sync.RWMutex
	prev      map[string]Refs
	firstPass atomic.Bool
}

// NewDependencyCache returns a cache that is still in its first pass.
func NewDependencyCache() *DependencyCache {
	c := &DependencyCache{prev: map[string]Refs{}}
	c.firstPass.Store(true)
	return c
}

// LookupPrev returns the references recorded for ns.
func (c *DependencyCache) LookupPrev(ns string) (Refs, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	refs, ok := c.prev[ns]
	if !ok {
		return nil, false
	}
	return maps.Clone(refs), true
}

// Record stores the references ns had when it was emitted.
func (c *DependencyCache) Record(ns string, refs Refs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prev[ns] = maps.Clone(refs)
}

// IsFirstPass reports whether no emission pass has completed yet.
func (c *DependencyCache) IsFirstPass() bool { return c.firstPass.Load() }

// MarkPassComplete ends the first pass.
func (c *DependencyCache) MarkPassComplete() { c.firstPass.Store(false) }

// Invalidate forgets the recorded references of the given namespaces so the
// next pass emits them again.
func (c *DependencyCache) Invalidate(namespaces ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ns := range namespaces {
		delete(c.prev, ns)
	}
}

// ShouldEmit reports whether ns needs emitting given its current references.
// Everything is emitted on the first pass; afterwards a namespace is skipped
// only when its previous references are known and equal to refs.
func (c *DependencyCache) ShouldEmit(ns string, refs Refs) bool {
	if c.IsFirstPass() {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	prev, ok := c.prev[ns]
	return !ok || !maps.Equal(prev, refs)
}

// Len is the number of namespaces with recorded references.
func (c *DependencyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prev)
}
