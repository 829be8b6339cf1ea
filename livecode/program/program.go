// Package program holds the live program: every namespace loaded from a
// snapshot, patched in place by change-sets. Definitions keep stable indexes
// for the lifetime of their namespace so that resolved references and cached
// evaluated values survive unrelated edits.
package program

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/armon/go-radix"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// Program is safe for concurrent readers. Writers (Apply, Patch,
// ClearEvaluated) hold the write lock for the whole change-set, so readers
// never observe a half-applied patch.
type Program struct {
	mu         sync.RWMutex
	pkg        string
	configs    snapshot.Configs
	namespaces *radix.Tree // name -> *Namespace
	gensym     atomic.Int64
	logger     zerolog.Logger
}

// New returns an empty program for package pkg.
func New(pkg string, logger zerolog.Logger) *Program {
	return &Program{
		pkg:        pkg,
		namespaces: radix.New(),
		logger:     logger.With().Str("component", "program").Logger(),
	}
}

// FromSnapshot validates s and loads every namespace from it.
func FromSnapshot(s *snapshot.Snapshot, logger zerolog.Logger) (*Program, error) {
	if err := common.ValidateNamespaceName(s.Package); err != nil {
		return nil, err
	}
	for _, ns := range s.Namespaces() {
		if err := ValidateFile(ns, s.Files[ns]); err != nil {
			return nil, fmt.Errorf("loading %s: %w", ns, err)
		}
	}

	p := New(s.Package, logger)
	p.configs = s.Configs
	for _, ns := range s.Namespaces() {
		p.namespaces.Insert(ns, newNamespace(ns, s.Files[ns], p.isLibrary(ns)))
	}
	p.logger.Debug().
		Str("package", s.Package).
		Int("namespaces", p.namespaces.Len()).
		Msg("Program loaded from snapshot")
	return p, nil
}

// Package returns the package name of the program.
func (p *Program) Package() string { return p.pkg }

// Configs returns the entry point configuration loaded with the snapshot.
func (p *Program) Configs() snapshot.Configs {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.configs
}

// IsLibrary reports whether ns belongs to a dependency rather than the
// package being developed.
func (p *Program) IsLibrary(ns string) bool { return p.isLibrary(ns) }

func (p *Program) isLibrary(ns string) bool {
	return ns != p.pkg && !strings.HasPrefix(ns, p.pkg+".")
}

func (p *Program) get(ns string) (*Namespace, bool) {
	v, ok := p.namespaces.Get(ns)
	if !ok {
		return nil, false
	}
	return v.(*Namespace), true
}

// Apply patches the program with cs. Everything is validated before the first
// mutation: a rejected change-set leaves the program untouched.
func (p *Program) Apply(cs *snapshot.ChangeSet) error {
	if err := cs.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyLocked(cs)
}

// Patch applies cs, clears the evaluated values it touched and resets the
// gensym counter in one write-locked step. Readers see either the program
// before cs with its old values, or the patched program with cleared ones.
func (p *Program) Patch(cs *snapshot.ChangeSet, reloadLibs bool) (cleared int, exempted []string, err error) {
	if err := cs.Validate(); err != nil {
		return 0, nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.applyLocked(cs); err != nil {
		return 0, nil, err
	}
	cleared, exempted = p.clearLocked(cs, reloadLibs)
	p.gensym.Store(0)
	return cleared, exempted, nil
}

func (p *Program) applyLocked(cs *snapshot.ChangeSet) error {
	if err := p.validateLocked(cs); err != nil {
		return err
	}

	for _, ns := range cs.Removed.Sorted() {
		if _, deleted := p.namespaces.Delete(ns); deleted {
			p.logger.Debug().Str("namespace", ns).Msg("Namespace removed")
		}
	}
	for _, ns := range slices.Sorted(maps.Keys(cs.Added)) {
		p.namespaces.Insert(ns, newNamespace(ns, cs.Added[ns], p.isLibrary(ns)))
		p.logger.Debug().Str("namespace", ns).Int("defs", len(cs.Added[ns].Defs)).Msg("Namespace added")
	}
	for _, name := range slices.Sorted(maps.Keys(cs.Changed)) {
		fc := cs.Changed[name]
		ns, _ := p.get(name)
		if fc.NS != nil {
			ns.Decl = fc.NS
		}
		for def := range fc.RemovedDefs {
			ns.Defs.Remove(def)
		}
		for _, def := range slices.Sorted(maps.Keys(fc.AddedDefs)) {
			ns.Defs.Insert(def, Definition{Code: fc.AddedDefs[def]})
		}
		for _, def := range slices.Sorted(maps.Keys(fc.ChangedDefs)) {
			prev, _, _ := ns.Defs.Lookup(def)
			ns.Defs.Insert(def, Definition{Code: fc.ChangedDefs[def], Doc: prev.Doc})
		}
		p.logger.Debug().
			Str("namespace", name).
			Bool("decl_changed", fc.NS != nil).
			Int("added", len(fc.AddedDefs)).
			Int("changed", len(fc.ChangedDefs)).
			Int("removed", len(fc.RemovedDefs)).
			Msg("Namespace patched")
	}
	return nil
}

func (p *Program) validateLocked(cs *snapshot.ChangeSet) error {
	for _, ns := range slices.Sorted(maps.Keys(cs.Added)) {
		if _, exists := p.get(ns); exists {
			return common.Wrap(common.ErrNamespaceExists, "cannot add %s", ns)
		}
		if err := ValidateFile(ns, cs.Added[ns]); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(cs.Changed)) {
		ns, exists := p.get(name)
		if !exists {
			return common.Wrap(common.ErrUnknownNamespace, "cannot change %s", name)
		}
		fc := cs.Changed[name]
		for def, code := range fc.AddedDefs {
			if err := ValidateDefinition(def, code); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		for def, code := range fc.ChangedDefs {
			if _, _, ok := ns.Defs.Lookup(def); !ok {
				return common.Wrap(common.ErrUnknownDefinition, "cannot change %s/%s", name, def)
			}
			if err := ValidateDefinition(def, code); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

// ClearEvaluated drops the evaluated values of every definition cs touched.
// Untouched definitions keep theirs. With reloadLibs false, library
// namespaces are skipped and returned as exempted.
func (p *Program) ClearEvaluated(cs *snapshot.ChangeSet, reloadLibs bool) (cleared int, exempted []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clearLocked(cs, reloadLibs)
}

func (p *Program) clearLocked(cs *snapshot.ChangeSet, reloadLibs bool) (cleared int, exempted []string) {
	touched := map[string][]string{}
	for name, f := range cs.Added {
		touched[name] = slices.Collect(maps.Keys(f.Defs))
	}
	for name, fc := range cs.Changed {
		touched[name] = fc.Touched()
	}

	for _, name := range slices.Sorted(maps.Keys(touched)) {
		ns, ok := p.get(name)
		if !ok {
			continue
		}
		if ns.Library && !reloadLibs {
			exempted = append(exempted, name)
			continue
		}
		for _, def := range touched[name] {
			if idx, ok := ns.Defs.Index(def); ok && ns.clear(idx) {
				cleared++
			}
		}
	}
	return cleared, exempted
}

// ClearAllEvaluated drops every evaluated value, libraries included unless
// reloadLibs is false.
func (p *Program) ClearAllEvaluated(reloadLibs bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cleared := 0
	p.namespaces.Walk(func(_ string, v interface{}) bool {
		ns := v.(*Namespace)
		if ns.Library && !reloadLibs {
			return false
		}
		cleared += ns.EvaluatedCount()
		ns.occupied.Clear()
		clear(ns.values)
		return false
	})
	return cleared
}

// LookupDef resolves a definition by name and returns its stable index.
func (p *Program) LookupDef(ns, def string) (Definition, int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, ok := p.get(ns)
	if !ok {
		return Definition{}, 0, false
	}
	return n.Defs.Lookup(def)
}

// LoadDef fetches a definition by a previously resolved index. An unknown
// namespace, or an index that no longer holds a live definition, is an index
// integrity violation and panics.
func (p *Program) LoadDef(ns string, idx int) (Definition, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, ok := p.get(ns)
	if !ok {
		panic(common.Wrap(common.ErrIndexIntegrity, "namespace %s is not loaded", ns))
	}
	return n.Defs.Load(idx)
}

// Evaluated returns the cached value of a definition.
func (p *Program) Evaluated(ns, def string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, ok := p.get(ns)
	if !ok {
		return nil, false
	}
	_, idx, ok := n.Defs.Lookup(def)
	if !ok {
		return nil, false
	}
	return n.evaluated(idx)
}

// StoreEvaluated caches the value of a definition.
func (p *Program) StoreEvaluated(ns, def string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.get(ns)
	if !ok {
		return common.Wrap(common.ErrUnknownNamespace, "%s", ns)
	}
	_, idx, ok := n.Defs.Lookup(def)
	if !ok {
		return common.Wrap(common.ErrUnknownDefinition, "%s/%s", ns, def)
	}
	n.store(idx, v)
	return nil
}

// Namespaces lists every loaded namespace in lexical order.
func (p *Program) Namespaces() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var names []string
	p.namespaces.Walk(func(name string, _ interface{}) bool {
		names = append(names, name)
		return false
	})
	return names
}

// UserNamespaces lists the namespaces of the package itself, without
// libraries.
func (p *Program) UserNamespaces() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var names []string
	p.namespaces.WalkPrefix(p.pkg, func(name string, _ interface{}) bool {
		if !p.isLibrary(name) {
			names = append(names, name)
		}
		return false
	})
	return names
}

// Decl returns the declaration form of ns.
func (p *Program) Decl(ns string) (ast.Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, ok := p.get(ns)
	if !ok {
		return nil, false
	}
	return n.Decl, true
}

// DefIndexes returns the stable index of every live definition of ns.
func (p *Program) DefIndexes(ns string) map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := map[string]int{}
	if n, ok := p.get(ns); ok {
		for idx, name := range n.Defs.Indexed() {
			out[name] = idx
		}
	}
	return out
}

// Files returns a point-in-time view of every namespace. Change-sets carry
// code only: a changed definition keeps the doc it was loaded with and an
// added one has none, so docs may lag behind the source until the next load.
func (p *Program) Files() map[string]snapshot.File {
	p.mu.RLock()
	defer p.mu.RUnlock()

	files := make(map[string]snapshot.File, p.namespaces.Len())
	p.namespaces.Walk(func(name string, v interface{}) bool {
		files[name] = v.(*Namespace).file()
		return false
	})
	return files
}

// Snapshot rebuilds a snapshot of the live program.
func (p *Program) Snapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{Package: p.pkg, Configs: p.Configs(), Files: p.Files()}
}

// Gensym returns a fresh symbol name, prefix__N or G__N without a prefix.
func (p *Program) Gensym(prefix string) string {
	n := p.gensym.Add(1)
	if prefix == "" {
		prefix = "G"
	}
	return fmt.Sprintf("%s__%d", prefix, n)
}

// ResetGensym restarts the gensym counter.
func (p *Program) ResetGensym() {
	p.gensym.Store(0)
}
