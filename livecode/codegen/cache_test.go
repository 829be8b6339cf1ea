package codegen

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldEmit(t *testing.T) {
	c := NewDependencyCache()
	refs := NewRefs("app.lib", "lilac.core")

	assert.True(t, c.IsFirstPass())
	c.Record("app.main", refs)
	assert.True(t, c.ShouldEmit("app.main", refs), "first pass always emits")

	c.MarkPassComplete()
	assert.False(t, c.ShouldEmit("app.main", refs))
	assert.True(t, c.ShouldEmit("app.main", NewRefs("app.lib")))
	assert.True(t, c.ShouldEmit("app.other", NewRefs()))

	c.Invalidate("app.main", "app.unknown")
	assert.True(t, c.ShouldEmit("app.main", refs))
	_, ok := c.LookupPrev("app.main")
	assert.False(t, ok)
}

func TestRecordCopies(t *testing.T) {
	c := NewDependencyCache()
	refs := NewRefs("a")
	c.Record("ns", refs)
	refs["b"] = struct{}{}

	prev, ok := c.LookupPrev("ns")
	require.True(t, ok)
	assert.Equal(t, NewRefs("a"), prev)

	prev["c"] = struct{}{}
	again, _ := c.LookupPrev("ns")
	assert.Equal(t, NewRefs("a"), again)
}

func TestConcurrentAccess(t *testing.T) {
	c := NewDependencyCache()
	c.MarkPassComplete()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ns := fmt.Sprintf("app.ns%d", i)
			for j := 0; j < 100; j++ {
				c.Record(ns, NewRefs("x"))
				c.ShouldEmit(ns, NewRefs("x"))
				if j%10 == 0 {
					c.Invalidate(ns)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 8)
}
