package bundle

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/program"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// definition heads accepted at the top level of a source file
var defHeads = map[string]bool{
	"def":      true,
	"defn":     true,
	"defmacro": true,
	"defatom":  true,
}

// ParseSource reads one source file: an (ns name ...) form followed by
// definitions. It returns the namespace name and its file.
func ParseSource(text string) (string, snapshot.File, error) {
	forms, err := ast.Parse(text)
	if err != nil {
		return "", snapshot.File{}, err
	}
	if len(forms) == 0 {
		return "", snapshot.File{}, common.Wrap(common.ErrMalformedTree, "file is empty, expected an ns form")
	}

	decl, ok := forms[0].(ast.List)
	if !ok || len(decl) < 2 {
		return "", snapshot.File{}, common.Wrap(common.ErrMalformedTree, "first expression of a file must be an ns form, got %s", ast.Format(forms[0]))
	}
	ns, ok := ast.AsLeaf(decl[1])
	if head, _ := ast.Head(decl); head != "ns" || !ok {
		return "", snapshot.File{}, common.Wrap(common.ErrMalformedTree, "invalid ns form %s", ast.Format(decl))
	}
	if err := common.ValidateNamespaceName(ns); err != nil {
		return "", snapshot.File{}, err
	}

	f := snapshot.File{NS: decl, Defs: make(map[string]snapshot.DefEntry, len(forms)-1)}
	for _, form := range forms[1:] {
		head, _ := ast.Head(form)
		l, _ := form.(ast.List)
		if !defHeads[head] || len(l) < 2 {
			return "", snapshot.File{}, common.Wrap(common.ErrMalformedTree, "%s: invalid definition %s", ns, ast.Format(form))
		}
		name, ok := ast.AsLeaf(l[1])
		if !ok {
			return "", snapshot.File{}, common.Wrap(common.ErrMalformedTree, "%s: definition name must be a leaf in %s", ns, ast.Format(form))
		}
		if _, dup := f.Defs[name]; dup {
			return "", snapshot.File{}, common.Wrap(common.ErrMalformedTree, "%s/%s is defined twice", ns, name)
		}
		if err := program.ValidateDefinition(name, form); err != nil {
			return "", snapshot.File{}, fmt.Errorf("%s: %w", ns, err)
		}
		f.Defs[name] = snapshot.DefEntry{Code: form, Doc: docOf(head, l)}
	}
	return ns, f, nil
}

// docOf extracts (defn name (args) |doc body...) doc strings.
func docOf(head string, form ast.List) string {
	if head != "defn" && head != "defmacro" || len(form) < 5 {
		return ""
	}
	s, ok := ast.AsLeaf(form[3])
	if !ok || !strings.HasPrefix(s, "|") {
		return ""
	}
	return s[1:]
}
