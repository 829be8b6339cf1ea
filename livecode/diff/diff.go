// Package diff computes the ChangeSet between two snapshots.
package diff

import (
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

type fileResult struct {
	ns     string
	change snapshot.FileChange
	same   bool
}

// Diff returns the changes that turn old into new. Names are validated before
// anything is compared. Namespaces present in both are compared concurrently;
// neither snapshot is modified.
func Diff(old, new *snapshot.Snapshot) (*snapshot.ChangeSet, error) {
	if err := old.Validate(); err != nil {
		return nil, err
	}
	if err := new.Validate(); err != nil {
		return nil, err
	}

	cs := snapshot.NewChangeSet()
	for ns, f := range new.Files {
		if _, ok := old.Files[ns]; !ok {
			cs.Added[ns] = f.Clone()
		}
	}
	for ns := range old.Files {
		if _, ok := new.Files[ns]; !ok {
			cs.Removed.Add(ns)
		}
	}

	p := pool.NewWithResults[fileResult]().WithErrors().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for ns, newFile := range new.Files {
		oldFile, ok := old.Files[ns]
		if !ok {
			continue
		}
		p.Go(func() (fileResult, error) {
			if oldFile.Equal(newFile) {
				return fileResult{ns: ns, same: true}, nil
			}
			return fileResult{ns: ns, change: DiffFile(oldFile, newFile)}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if !r.same {
			cs.Changed[r.ns] = r.change
		}
	}
	return cs, nil
}

// DiffFile compares two versions of one namespace. NS is set only when the
// declaration differs; changed definitions carry their whole new code.
func DiffFile(old, new snapshot.File) snapshot.FileChange {
	fc := snapshot.NewFileChange()
	if !ast.Equal(old.NS, new.NS) {
		fc.NS = new.NS
	}
	for name, d := range new.Defs {
		prev, ok := old.Defs[name]
		switch {
		case !ok:
			fc.AddedDefs[name] = d.Code
		case !prev.Equal(d):
			fc.ChangedDefs[name] = d.Code
		}
	}
	for name := range old.Defs {
		if _, ok := new.Defs[name]; !ok {
			fc.RemovedDefs.Add(name)
		}
	}
	return fc
}
