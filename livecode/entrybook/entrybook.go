// Package entrybook provides Book, an arena of named entries whose indexes
// never change once assigned. Removing an entry leaves a tombstone so that
// every other index stays valid, and re-inserting the same key revives its
// old slot.
package entrybook

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ZanzyTHEbar/livecode/livecode/common"
)

type slot[T any] struct {
	key   string
	value T
	live  bool
}

// Book stores values by key with stable integer indexes. It is not safe for
// concurrent use; the owner guards it.
type Book[T any] struct {
	slots []slot[T]
	index map[string]int
	live  int
}

// New returns an empty Book.
func New[T any]() *Book[T] {
	return &Book[T]{index: make(map[string]int)}
}

// FromMap builds a Book from m. Keys are inserted in the order given by keys.
func FromMap[T any](keys []string, m map[string]T) *Book[T] {
	b := New[T]()
	for _, k := range keys {
		if v, ok := m[k]; ok {
			b.Insert(k, v)
		}
	}
	return b
}

// Insert stores v under key and returns its index. An existing or tombstoned
// key keeps its index; a new key is appended.
func (b *Book[T]) Insert(key string, v T) int {
	if idx, ok := b.index[key]; ok {
		s := &b.slots[idx]
		if !s.live {
			b.live++
		}
		s.value = v
		s.live = true
		return idx
	}
	idx := len(b.slots)
	b.slots = append(b.slots, slot[T]{key: key, value: v, live: true})
	b.index[key] = idx
	b.live++
	return idx
}

// Lookup returns the value and index stored under key. A tombstoned key is
// reported as absent.
func (b *Book[T]) Lookup(key string) (T, int, bool) {
	var zero T
	idx, ok := b.index[key]
	if !ok || !b.slots[idx].live {
		return zero, 0, false
	}
	return b.slots[idx].value, idx, true
}

// Index returns the index ever assigned to key, tombstoned or not.
func (b *Book[T]) Index(key string) (int, bool) {
	idx, ok := b.index[key]
	return idx, ok
}

// Load returns the value and key at idx. An index that was never assigned or
// that points at a tombstone is a programming error and panics with an error
// wrapping common.ErrIndexIntegrity.
func (b *Book[T]) Load(idx int) (T, string) {
	if idx < 0 || idx >= len(b.slots) {
		panic(common.Wrap(common.ErrIndexIntegrity, "index %d out of range (%d slots)", idx, len(b.slots)))
	}
	s := b.slots[idx]
	if !s.live {
		panic(common.Wrap(common.ErrIndexIntegrity, "index %d (%s) was removed", idx, s.key))
	}
	return s.value, s.key
}

// Get is the non-panicking form of Load.
func (b *Book[T]) Get(idx int) (T, string, bool) {
	var zero T
	if idx < 0 || idx >= len(b.slots) || !b.slots[idx].live {
		return zero, "", false
	}
	return b.slots[idx].value, b.slots[idx].key, true
}

// CheckName verifies that idx still holds key, for callers that cached an
// index alongside the name it was resolved from.
func (b *Book[T]) CheckName(idx int, key string) error {
	if idx < 0 || idx >= len(b.slots) {
		return common.Wrap(common.ErrIndexIntegrity, "index %d out of range", idx)
	}
	if b.slots[idx].key != key {
		return common.Wrap(common.ErrIndexIntegrity, "index %d holds %s, not %s", idx, b.slots[idx].key, key)
	}
	return nil
}

// Remove tombstones key. It reports whether a live entry was removed.
func (b *Book[T]) Remove(key string) bool {
	idx, ok := b.index[key]
	if !ok || !b.slots[idx].live {
		return false
	}
	var zero T
	b.slots[idx].value = zero
	b.slots[idx].live = false
	b.live--
	return true
}

// All yields live entries in slot order.
func (b *Book[T]) All() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		for _, s := range b.slots {
			if s.live && !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Indexed yields the index and key of every live entry in slot order.
func (b *Book[T]) Indexed() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, s := range b.slots {
			if s.live && !yield(i, s.key) {
				return
			}
		}
	}
}

// Keys returns every key ever inserted, tombstones included, in slot order.
func (b *Book[T]) Keys() []string {
	keys := make([]string, len(b.slots))
	for i, s := range b.slots {
		keys[i] = s.key
	}
	return keys
}

// Len is the number of slots, tombstones included.
func (b *Book[T]) Len() int { return len(b.slots) }

// Live is the number of live entries.
func (b *Book[T]) Live() int { return b.live }

// Clear tombstones every entry. Indexes stay reserved for their keys.
func (b *Book[T]) Clear() {
	var zero T
	for i := range b.slots {
		b.slots[i].value = zero
		b.slots[i].live = false
	}
	b.live = 0
}

// ToMap copies the live entries into a map.
func (b *Book[T]) ToMap() map[string]T {
	return maps.Collect(b.All())
}

func (b *Book[T]) String() string {
	return fmt.Sprintf("Book{live: %d, slots: %d}", b.live, len(b.slots))
}
