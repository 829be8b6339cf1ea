package entrybook

import (
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/ZanzyTHEbar/livecode/livecode/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLookupLoad(t *testing.T) {
	b := New[int]()
	ia := b.Insert("a", 1)
	ib := b.Insert("b", 2)

	assert.Equal(t, 0, ia)
	assert.Equal(t, 1, ib)

	v, idx, ok := b.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, ib, idx)

	v, key := b.Load(ia)
	assert.Equal(t, 1, v)
	assert.Equal(t, "a", key)

	// overwrite keeps the index
	assert.Equal(t, ia, b.Insert("a", 10))
	v, _ = b.Load(ia)
	assert.Equal(t, 10, v)
}

func TestIndexStabilityAcrossRemoval(t *testing.T) {
	b := New[string]()
	for _, k := range []string{"a", "b", "c", "d"} {
		b.Insert(k, k+"!")
	}
	_, idxC, _ := b.Lookup("c")

	require.True(t, b.Remove("b"))
	assert.False(t, b.Remove("b"))
	b.Insert("e", "e!")

	v, key := b.Load(idxC)
	assert.Equal(t, "c!", v)
	assert.Equal(t, "c", key)

	_, _, ok := b.Lookup("b")
	assert.False(t, ok)

	// re-insert restores the old index
	idxB := b.Insert("b", "again")
	assert.Equal(t, 1, idxB)
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 5, b.Live())
}

func TestLoadPanicsOnTombstone(t *testing.T) {
	b := New[int]()
	idx := b.Insert("a", 1)
	b.Remove("a")

	assertIntegrityPanic(t, func() { b.Load(idx) })
	assertIntegrityPanic(t, func() { b.Load(7) })

	_, _, ok := b.Get(idx)
	assert.False(t, ok)
}

func TestCheckName(t *testing.T) {
	b := New[int]()
	b.Insert("a", 1)
	b.Insert("b", 2)

	assert.NoError(t, b.CheckName(1, "b"))
	assert.ErrorIs(t, b.CheckName(1, "a"), common.ErrIndexIntegrity)
	assert.ErrorIs(t, b.CheckName(9, "a"), common.ErrIndexIntegrity)
}

func TestIterationAndKeys(t *testing.T) {
	b := FromMap([]string{"x", "y", "z", "missing"}, map[string]int{"x": 1, "y": 2, "z": 3})
	b.Remove("y")

	var seen []string
	for k := range b.All() {
		seen = append(seen, k)
	}
	assert.Equal(t, []string{"x", "z"}, seen)
	assert.Equal(t, []string{"x", "y", "z"}, b.Keys())
	assert.Equal(t, map[string]int{"x": 1, "z": 3}, b.ToMap())
	assert.Equal(t, []int{0, 2}, slices.Sorted(maps.Keys(maps.Collect(b.Indexed()))))
}

func TestClearReservesIndexes(t *testing.T) {
	b := New[int]()
	b.Insert("a", 1)
	b.Insert("b", 2)
	b.Clear()

	assert.Equal(t, 0, b.Live())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, b.Insert("b", 3))
}

func assertIntegrityPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, common.ErrIndexIntegrity))
	}()
	fn()
}
