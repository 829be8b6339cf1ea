// Package ast defines the syntax tree shared by source code and the EDN-like
// data files: every node is either a Leaf token or an ordered List of nodes.
package ast

import (
	"strings"
)

// Node is a Leaf or a List. A nil Node means "absent" wherever a node is optional.
type Node interface {
	isNode()
}

// Leaf is a single token.
type Leaf string

// List is an ordered sequence of child nodes.
type List []Node

func (Leaf) isNode() {}
func (List) isNode() {}

// L builds a List from nodes; handy in tests and encoders.
func L(children ...Node) List {
	if children == nil {
		return List{}
	}
	return List(children)
}

// Leaves builds a flat List of leaves.
func Leaves(tokens ...string) List {
	out := make(List, len(tokens))
	for i, t := range tokens {
		out[i] = Leaf(t)
	}
	return out
}

// AsList reports whether n is a List and returns it.
func AsList(n Node) (List, bool) {
	l, ok := n.(List)
	return l, ok
}

// AsLeaf reports whether n is a Leaf and returns its text.
func AsLeaf(n Node) (string, bool) {
	l, ok := n.(Leaf)
	return string(l), ok
}

// Equal reports structural equality. Two nil nodes are equal.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Leaf:
		y, ok := b.(Leaf)
		return ok && x == y
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders nodes: nil < Leaf < List, leaves lexically, lists element-wise
// and then by length. It returns -1, 0 or +1.
func Compare(a, b Node) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case Leaf:
		return strings.Compare(string(x), string(b.(Leaf)))
	case List:
		y := b.(List)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(x) < len(y):
			return -1
		case len(x) > len(y):
			return 1
		}
	}
	return 0
}

func rank(n Node) int {
	switch n.(type) {
	case nil:
		return 0
	case Leaf:
		return 1
	default:
		return 2
	}
}

// Clone deep-copies n so the copy can be mutated without touching shared slices.
func Clone(n Node) Node {
	l, ok := n.(List)
	if !ok {
		return n
	}
	out := make(List, len(l))
	for i, child := range l {
		out[i] = Clone(child)
	}
	return out
}

// Head returns the text of the first child when it is a leaf.
func Head(n Node) (string, bool) {
	l, ok := n.(List)
	if !ok || len(l) == 0 {
		return "", false
	}
	return AsLeaf(l[0])
}

// Size counts every node in the tree, n included.
func Size(n Node) int {
	l, ok := n.(List)
	if !ok {
		if n == nil {
			return 0
		}
		return 1
	}
	total := 1
	for _, child := range l {
		total += Size(child)
	}
	return total
}
