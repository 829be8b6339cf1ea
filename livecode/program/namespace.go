package program

import (
	"maps"
	"slices"

	"github.com/RoaringBitmap/roaring"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/entrybook"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// Namespace is one live namespace: its declaration, its definitions keyed by
// stable index, and the evaluated values cached per index.
type Namespace struct {
	Name    string
	Decl    ast.Node
	Defs    *entrybook.Book[Definition]
	Library bool

	values   []any
	occupied *roaring.Bitmap
}

func newNamespace(name string, f snapshot.File, library bool) *Namespace {
	ns := &Namespace{
		Name:     name,
		Decl:     f.NS,
		Defs:     entrybook.New[Definition](),
		Library:  library,
		occupied: roaring.New(),
	}
	for _, def := range slices.Sorted(maps.Keys(f.Defs)) {
		d := f.Defs[def]
		ns.Defs.Insert(def, Definition{Code: d.Code, Doc: d.Doc})
	}
	return ns
}

func (ns *Namespace) evaluated(idx int) (any, bool) {
	if !ns.occupied.Contains(uint32(idx)) {
		return nil, false
	}
	return ns.values[idx], true
}

func (ns *Namespace) store(idx int, v any) {
	if idx >= len(ns.values) {
		ns.values = append(ns.values, make([]any, idx+1-len(ns.values))...)
	}
	ns.values[idx] = v
	ns.occupied.Add(uint32(idx))
}

// clear drops the evaluated value at idx and reports whether there was one.
func (ns *Namespace) clear(idx int) bool {
	if !ns.occupied.CheckedRemove(uint32(idx)) {
		return false
	}
	ns.values[idx] = nil
	return true
}

// EvaluatedCount is the number of definitions holding an evaluated value.
func (ns *Namespace) EvaluatedCount() int {
	return int(ns.occupied.GetCardinality())
}

func (ns *Namespace) file() snapshot.File {
	f := snapshot.File{NS: ns.Decl, Defs: make(map[string]snapshot.DefEntry, ns.Defs.Live())}
	for name, d := range ns.Defs.All() {
		f.Defs[name] = snapshot.DefEntry{Code: d.Code, Doc: d.Doc}
	}
	return f
}
