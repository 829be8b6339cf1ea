package snapshot

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
)

// FileChange describes how one namespace changed. NS is nil when the
// declaration is unchanged. Changed definitions carry their whole new tree.
type FileChange struct {
	NS          ast.Node
	AddedDefs   map[string]ast.Node
	RemovedDefs NameSet
	ChangedDefs map[string]ast.Node
}

// ChangeSet is the difference between two snapshots.
type ChangeSet struct {
	Added   map[string]File
	Removed NameSet
	Changed map[string]FileChange
}

// NewFileChange returns a FileChange with initialized maps.
func NewFileChange() FileChange {
	return FileChange{
		AddedDefs:   map[string]ast.Node{},
		RemovedDefs: NameSet{},
		ChangedDefs: map[string]ast.Node{},
	}
}

// NewChangeSet returns an empty ChangeSet with initialized maps.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:   map[string]File{},
		Removed: NameSet{},
		Changed: map[string]FileChange{},
	}
}

// IsEmpty reports a FileChange with nothing in it.
func (fc FileChange) IsEmpty() bool {
	return fc.NS == nil && len(fc.AddedDefs) == 0 && len(fc.RemovedDefs) == 0 && len(fc.ChangedDefs) == 0
}

// Touched returns every definition the change adds, changes or removes.
func (fc FileChange) Touched() []string {
	names := NameSet{}
	for name := range fc.AddedDefs {
		names.Add(name)
	}
	for name := range fc.ChangedDefs {
		names.Add(name)
	}
	for name := range fc.RemovedDefs {
		names.Add(name)
	}
	return names.Sorted()
}

// Validate checks names and that the added, removed and changed definition
// sets are pairwise disjoint.
func (fc FileChange) Validate(ns string) error {
	if fc.NS != nil {
		if err := ValidateDecl(ns, fc.NS); err != nil {
			return err
		}
	}
	for _, name := range fc.Touched() {
		if err := common.ValidateDefinitionName(name); err != nil {
			return err
		}
	}
	for name := range fc.AddedDefs {
		if fc.RemovedDefs.Has(name) {
			return common.Wrap(common.ErrMalformedTree, "%s/%s is both added and removed", ns, name)
		}
		if _, ok := fc.ChangedDefs[name]; ok {
			return common.Wrap(common.ErrMalformedTree, "%s/%s is both added and changed", ns, name)
		}
	}
	for name := range fc.ChangedDefs {
		if fc.RemovedDefs.Has(name) {
			return common.Wrap(common.ErrMalformedTree, "%s/%s is both changed and removed", ns, name)
		}
	}
	return nil
}

// IsEmpty reports a ChangeSet that carries no change at all. Callers skip
// writing an artifact for it.
func (cs *ChangeSet) IsEmpty() bool {
	if len(cs.Added) > 0 || len(cs.Removed) > 0 {
		return false
	}
	for _, fc := range cs.Changed {
		if !fc.IsEmpty() {
			return false
		}
	}
	return true
}

// Validate checks names, declarations and that the three namespace
// categories are pairwise disjoint.
func (cs *ChangeSet) Validate() error {
	for _, ns := range slices.Sorted(maps.Keys(cs.Added)) {
		if err := common.ValidateNamespaceName(ns); err != nil {
			return err
		}
		if cs.Removed.Has(ns) {
			return common.Wrap(common.ErrMalformedTree, "namespace %s is both added and removed", ns)
		}
		if _, ok := cs.Changed[ns]; ok {
			return common.Wrap(common.ErrMalformedTree, "namespace %s is both added and changed", ns)
		}
		f := cs.Added[ns]
		if err := ValidateDecl(ns, f.NS); err != nil {
			return err
		}
		for name := range f.Defs {
			if err := common.ValidateDefinitionName(name); err != nil {
				return err
			}
		}
	}
	for _, ns := range cs.Removed.Sorted() {
		if err := common.ValidateNamespaceName(ns); err != nil {
			return err
		}
		if _, ok := cs.Changed[ns]; ok {
			return common.Wrap(common.ErrMalformedTree, "namespace %s is both removed and changed", ns)
		}
	}
	for _, ns := range slices.Sorted(maps.Keys(cs.Changed)) {
		if err := common.ValidateNamespaceName(ns); err != nil {
			return err
		}
		if err := cs.Changed[ns].Validate(ns); err != nil {
			return err
		}
	}
	return nil
}

// Touched returns every namespace the change-set adds, removes or changes.
func (cs *ChangeSet) Touched() []string {
	names := NameSet{}
	for ns := range cs.Added {
		names.Add(ns)
	}
	for ns := range cs.Removed {
		names.Add(ns)
	}
	for ns := range cs.Changed {
		names.Add(ns)
	}
	return names.Sorted()
}

// Summary describes the change-set one line per category, the way the watch
// loop prints it.
func (cs *ChangeSet) Summary() []string {
	var lines []string
	if len(cs.Added) > 0 {
		lines = append(lines, "+ Added namespaces: "+strings.Join(slices.Sorted(maps.Keys(cs.Added)), ", "))
	}
	if len(cs.Removed) > 0 {
		lines = append(lines, "- Removed namespaces: "+strings.Join(cs.Removed.Sorted(), ", "))
	}
	for _, ns := range slices.Sorted(maps.Keys(cs.Changed)) {
		fc := cs.Changed[ns]
		var parts []string
		if fc.NS != nil {
			parts = append(parts, "ns")
		}
		if n := len(fc.AddedDefs); n > 0 {
			parts = append(parts, fmt.Sprintf("+%d defs", n))
		}
		if n := len(fc.ChangedDefs); n > 0 {
			parts = append(parts, fmt.Sprintf("~%d defs", n))
		}
		if n := len(fc.RemovedDefs); n > 0 {
			parts = append(parts, fmt.Sprintf("-%d defs", n))
		}
		lines = append(lines, fmt.Sprintf("~ %s: %s", ns, strings.Join(parts, ", ")))
	}
	return lines
}

// ApplyTo returns a copy of s with cs applied. The program applies change-sets
// itself; this is used to keep a materialized snapshot in step.
func (cs *ChangeSet) ApplyTo(s *Snapshot) (*Snapshot, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	out := s.Clone()
	for ns := range cs.Removed {
		delete(out.Files, ns)
	}
	for ns, f := range cs.Added {
		if _, exists := out.Files[ns]; exists {
			return nil, common.Wrap(common.ErrNamespaceExists, "%s", ns)
		}
		out.Files[ns] = f.Clone()
	}
	for ns, fc := range cs.Changed {
		f, ok := out.Files[ns]
		if !ok {
			return nil, common.Wrap(common.ErrUnknownNamespace, "%s", ns)
		}
		if fc.NS != nil {
			f.NS = fc.NS
		}
		for name := range fc.RemovedDefs {
			delete(f.Defs, name)
		}
		for name, code := range fc.AddedDefs {
			f.Defs[name] = DefEntry{Code: code}
		}
		for name, code := range fc.ChangedDefs {
			prev := f.Defs[name]
			f.Defs[name] = DefEntry{Code: code, Doc: prev.Doc}
		}
		out.Files[ns] = f
	}
	return out, nil
}
