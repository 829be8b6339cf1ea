// Package snapshot holds the in-memory model of a whole program (Snapshot) and
// of the difference between two programs (ChangeSet), plus their text codecs.
package snapshot

import (
	"maps"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
)

// DefEntry is one top-level definition of a namespace.
type DefEntry struct {
	Code ast.Node
	Doc  string
}

// File is one namespace: its declaration form and its definitions.
type File struct {
	NS   ast.Node
	Defs map[string]DefEntry
}

// Configs carries the program entry points.
type Configs struct {
	InitFn   string
	ReloadFn string
	Version  string
	Modules  []string
}

// Snapshot is the complete source of a program.
type Snapshot struct {
	Package string
	Configs Configs
	Files   map[string]File
}

// NameSet is a set of namespace or definition names.
type NameSet map[string]struct{}

// NewNameSet builds a set from names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s NameSet) Add(name string) { s[name] = struct{}{} }

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s NameSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Default returns the snapshot of an empty "app" package.
func Default() *Snapshot {
	return &Snapshot{
		Package: "app",
		Configs: Configs{
			InitFn:   "app.main/main!",
			ReloadFn: "app.main/reload!",
			Version:  "0.0.0",
		},
		Files: map[string]File{},
	}
}

// Namespaces returns the namespace names in lexical order.
func (s *Snapshot) Namespaces() []string {
	return slices.Sorted(maps.Keys(s.Files))
}

// Clone returns a copy sharing no maps with s. Code trees are shared since
// they are never mutated in place.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Package: s.Package,
		Configs: s.Configs,
		Files:   make(map[string]File, len(s.Files)),
	}
	out.Configs.Modules = slices.Clone(s.Configs.Modules)
	for ns, f := range s.Files {
		out.Files[ns] = f.Clone()
	}
	return out
}

// Clone copies the definition map of f.
func (f File) Clone() File {
	defs := make(map[string]DefEntry, len(f.Defs))
	maps.Copy(defs, f.Defs)
	return File{NS: f.NS, Defs: defs}
}

// Equal reports whether two files have the same declaration and definitions,
// docs included.
func (f File) Equal(g File) bool {
	if !ast.Equal(f.NS, g.NS) || len(f.Defs) != len(g.Defs) {
		return false
	}
	for name, d := range f.Defs {
		e, ok := g.Defs[name]
		if !ok || !d.Equal(e) {
			return false
		}
	}
	return true
}

// Equal compares code and doc.
func (d DefEntry) Equal(e DefEntry) bool {
	return d.Doc == e.Doc && ast.Equal(d.Code, e.Code)
}

// NSDecl builds the minimal declaration (ns name).
func NSDecl(name string) ast.List {
	return ast.Leaves("ns", name)
}

// ValidateDecl checks that decl is a list starting with the leaves ns and name.
func ValidateDecl(name string, decl ast.Node) error {
	l, ok := decl.(ast.List)
	if !ok || len(l) < 2 {
		return common.Wrap(common.ErrMalformedTree, "declaration of %s must be a list (ns %s ...), got %s", name, name, ast.Format(decl))
	}
	head, okHead := ast.AsLeaf(l[0])
	declared, okName := ast.AsLeaf(l[1])
	if !okHead || head != "ns" || !okName || declared != name {
		return common.Wrap(common.ErrMalformedTree, "declaration of %s must start with (ns %s), got %s", name, name, ast.Format(decl))
	}
	return nil
}

// Validate checks every namespace and definition name and every declaration.
func (s *Snapshot) Validate() error {
	for _, ns := range s.Namespaces() {
		if err := common.ValidateNamespaceName(ns); err != nil {
			return err
		}
		f := s.Files[ns]
		if err := ValidateDecl(ns, f.NS); err != nil {
			return err
		}
		for name := range f.Defs {
			if err := common.ValidateDefinitionName(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// SplitEntry splits an entry point "ns/def" at the last slash.
func SplitEntry(entry string) (ns, def string, err error) {
	i := strings.LastIndex(entry, "/")
	if i <= 0 || i == len(entry)-1 {
		return "", "", common.Wrap(common.ErrInvalidName, "entry point %q must look like ns/def", entry)
	}
	return entry[:i], entry[i+1:], nil
}

// FileFromSnippet wraps a single expression into app.main/main! so a snippet
// can be run as a one-file program.
func FileFromSnippet(code string) (File, error) {
	body, err := ast.ParseOne(code)
	if err != nil {
		return File{}, err
	}
	return File{
		NS: NSDecl("app.main"),
		Defs: map[string]DefEntry{
			"main!": {Code: ast.L(ast.Leaf("defn"), ast.Leaf("main!"), ast.L(), body)},
		},
	}, nil
}
