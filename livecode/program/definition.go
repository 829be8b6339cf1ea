package program

import (
	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// Definition is the live form of a top-level definition.
type Definition struct {
	Code ast.Node
	Doc  string
}

// heads whose form carries exactly one value: (def name value)
var singleValueHeads = map[string]bool{
	"def":     true,
	"defatom": true,
}

// ValidateDefinition checks that code is a definition form for name:
// (head name ...), with head and name leaves. def and defatom take exactly
// one value; every other head needs at least one element after the name.
func ValidateDefinition(name string, code ast.Node) error {
	if err := common.ValidateDefinitionName(name); err != nil {
		return err
	}
	l, ok := code.(ast.List)
	if !ok || len(l) < 2 {
		return common.Wrap(common.ErrMalformedTree, "definition %s must be a list (head %s ...), got %s", name, name, format(code))
	}
	head, okHead := ast.AsLeaf(l[0])
	declared, okName := ast.AsLeaf(l[1])
	if !okHead || !okName {
		return common.Wrap(common.ErrMalformedTree, "definition %s must start with two leaves, got %s", name, format(code))
	}
	if declared != name {
		return common.Wrap(common.ErrMalformedTree, "definition stored as %s declares %s", name, declared)
	}
	if singleValueHeads[head] {
		if len(l) != 3 {
			return common.Wrap(common.ErrMalformedTree, "%s %s takes exactly one value, got %d", head, name, len(l)-2)
		}
		return nil
	}
	if len(l) < 3 {
		return common.Wrap(common.ErrMalformedTree, "%s %s has no body", head, name)
	}
	return nil
}

// ValidateFile checks the declaration and every definition of a namespace.
func ValidateFile(ns string, f snapshot.File) error {
	if err := common.ValidateNamespaceName(ns); err != nil {
		return err
	}
	if err := snapshot.ValidateDecl(ns, f.NS); err != nil {
		return err
	}
	for name, d := range f.Defs {
		if err := ValidateDefinition(name, d.Code); err != nil {
			return err
		}
	}
	return nil
}

func format(n ast.Node) string {
	if n == nil {
		return "nothing"
	}
	return ast.Format(n)
}
