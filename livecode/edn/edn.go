// Package edn encodes plain data (maps, vectors, sets, strings, keywords and
// quoted code) on top of ast trees so snapshots and change-sets can be written
// in the same parenthesized syntax as source files.
//
//	({} (:package |app) (:files ({} ...)))
//
// Strings are leaves prefixed with '|', keywords are prefixed with ':', and
// code is wrapped as (quote <tree>).
package edn

import (
	"slices"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
)

// Collection tags
const (
	TagMap   = "{}"
	TagVec   = "[]"
	TagSet   = "#{}"
	TagQuote = "quote"
	Nil      = ast.Leaf("nil")
)

// Entry is a single key/value pair of a map.
type Entry struct {
	Key   ast.Node
	Value ast.Node
}

// Pair is shorthand for a keyword-keyed entry.
func Pair(keyword string, value ast.Node) Entry {
	return Entry{Key: Kw(keyword), Value: value}
}

// Map builds a map node. Entries are sorted by key so output is deterministic.
func Map(entries ...Entry) ast.List {
	sorted := slices.Clone(entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ast.Compare(sorted[i].Key, sorted[j].Key) < 0
	})
	out := ast.List{ast.Leaf(TagMap)}
	for _, e := range sorted {
		out = append(out, ast.L(e.Key, e.Value))
	}
	return out
}

// Vec builds a vector node.
func Vec(items ...ast.Node) ast.List {
	return append(ast.List{ast.Leaf(TagVec)}, items...)
}

// Set builds a set node with its items sorted.
func Set(items ...ast.Node) ast.List {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, ast.Compare)
	return append(ast.List{ast.Leaf(TagSet)}, sorted...)
}

// StringSet builds a set of strings.
func StringSet[S ~map[string]struct{}](names S) ast.List {
	items := make([]ast.Node, 0, len(names))
	for name := range names {
		items = append(items, Str(name))
	}
	return Set(items...)
}

// Kw builds a keyword leaf.
func Kw(name string) ast.Leaf { return ast.Leaf(":" + name) }

// Str builds a string leaf.
func Str(s string) ast.Leaf { return ast.Leaf("|" + s) }

// Quote wraps code so it is read back as a tree instead of data.
func Quote(code ast.Node) ast.List { return ast.L(ast.Leaf(TagQuote), code) }

func tagged(n ast.Node, tag string) (ast.List, error) {
	l, ok := n.(ast.List)
	if !ok || len(l) == 0 {
		return nil, common.Wrap(common.ErrMalformedTree, "expected %s, got %s", tag, ast.Format(n))
	}
	if head, _ := ast.AsLeaf(l[0]); head != tag {
		return nil, common.Wrap(common.ErrMalformedTree, "expected %s, got %s", tag, ast.Format(n))
	}
	return l[1:], nil
}

// Entries reads the key/value pairs of a map node in written order.
func Entries(n ast.Node) ([]Entry, error) {
	body, err := tagged(n, TagMap)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(body))
	for _, item := range body {
		pair, ok := item.(ast.List)
		if !ok || len(pair) != 2 {
			return nil, common.Wrap(common.ErrMalformedTree, "map entry must be a pair, got %s", ast.Format(item))
		}
		out = append(out, Entry{Key: pair[0], Value: pair[1]})
	}
	return out, nil
}

// MapGet looks up a keyword key in a map node. A missing key or a nil value
// yields (nil, false).
func MapGet(n ast.Node, keyword string) (ast.Node, bool, error) {
	entries, err := Entries(n)
	if err != nil {
		return nil, false, err
	}
	want := Kw(keyword)
	for _, e := range entries {
		if ast.Equal(e.Key, want) {
			if ast.Equal(e.Value, Nil) {
				return nil, false, nil
			}
			return e.Value, true, nil
		}
	}
	return nil, false, nil
}

// Items reads the elements of a vector node.
func Items(n ast.Node) ([]ast.Node, error) {
	return tagged(n, TagVec)
}

// SetItems reads the elements of a set node.
func SetItems(n ast.Node) ([]ast.Node, error) {
	return tagged(n, TagSet)
}

// AsString reads a string leaf.
func AsString(n ast.Node) (string, error) {
	s, ok := ast.AsLeaf(n)
	if !ok || !strings.HasPrefix(s, "|") {
		return "", common.Wrap(common.ErrMalformedTree, "expected string, got %s", ast.Format(n))
	}
	return s[1:], nil
}

// AsStrings reads a vector or set of strings.
func AsStrings(n ast.Node) ([]string, error) {
	items, err := Items(n)
	if err != nil {
		if items, err = SetItems(n); err != nil {
			return nil, common.Wrap(common.ErrMalformedTree, "expected vector or set of strings, got %s", ast.Format(n))
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := AsString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// AsQuoted unwraps (quote code).
func AsQuoted(n ast.Node) (ast.Node, error) {
	body, err := tagged(n, TagQuote)
	if err != nil {
		return nil, err
	}
	if len(body) != 1 {
		return nil, common.Wrap(common.ErrMalformedTree, "quote takes exactly one form, got %d", len(body))
	}
	return body[0], nil
}
