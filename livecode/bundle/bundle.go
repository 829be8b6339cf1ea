// Package bundle turns a source directory into a snapshot and keeps the
// materialized snapshot file and the incremental patch artifact in step.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"

	internal "github.com/ZanzyTHEbar/livecode/livecode"
	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/diff"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// IgnoreChecker matches paths that should be skipped.
type IgnoreChecker interface {
	MatchesPath(path string) bool
}

// Bundler reads source directories and writes artifacts.
type Bundler struct {
	logger     zerolog.Logger
	maxWorkers int
}

// New returns a Bundler parsing on up to GOMAXPROCS goroutines.
func New(logger zerolog.Logger) *Bundler {
	return &Bundler{
		logger:     logger.With().Str("component", "bundle").Logger(),
		maxWorkers: runtime.GOMAXPROCS(0),
	}
}

type parsedFile struct {
	path string
	ns   string
	file snapshot.File
}

// ReadSourceDir builds a snapshot from every source file under dir. The
// package name and configs come from package.cirru in dir's parent. Paths
// matched by a .gitignore in dir or its parent are skipped.
func (b *Bundler) ReadSourceDir(ctx context.Context, dir string) (*snapshot.Snapshot, error) {
	dir = filepath.Clean(dir)
	root := filepath.Dir(dir)

	pkg, configs, err := readPackage(ctx, filepath.Join(root, internal.DefaultPackageFile))
	if err != nil {
		return nil, err
	}

	ignored, err := loadIgnore(root, dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && path != dir && ignored.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == internal.DefaultSourceExt {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	p := pool.NewWithResults[parsedFile]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(b.maxWorkers)
	for _, path := range paths {
		p.Go(func(ctx context.Context) (parsedFile, error) {
			if err := ctx.Err(); err != nil {
				return parsedFile{}, err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return parsedFile{}, fmt.Errorf("failed to read %s: %w", path, err)
			}
			ns, f, err := ParseSource(string(data))
			if err != nil {
				return parsedFile{}, fmt.Errorf("%s: %w", path, err)
			}
			return parsedFile{path: path, ns: ns, file: f}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	s := &snapshot.Snapshot{Package: pkg, Configs: configs, Files: make(map[string]snapshot.File, len(results))}
	seen := make(map[string]string, len(results))
	for _, r := range results {
		if prev, dup := seen[r.ns]; dup {
			return nil, common.Wrap(common.ErrNamespaceExists, "%s is declared in both %s and %s", r.ns, prev, r.path)
		}
		seen[r.ns] = r.path
		s.Files[r.ns] = r.file
	}

	b.logger.Info().
		Str("dir", dir).
		Str("package", pkg).
		Int("files", len(s.Files)).
		Msg("Source directory read")
	return s, nil
}

func readPackage(ctx context.Context, path string) (string, snapshot.Configs, error) {
	if err := ctx.Err(); err != nil {
		return "", snapshot.Configs{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", snapshot.Configs{}, fmt.Errorf("failed to read package file: %w", err)
	}
	n, err := ast.ParseOne(string(data))
	if err != nil {
		return "", snapshot.Configs{}, fmt.Errorf("%s: %w", path, err)
	}
	pkg, configs, err := snapshot.DecodePackage(n)
	if err != nil {
		return "", snapshot.Configs{}, fmt.Errorf("%s: %w", path, err)
	}
	return pkg, configs, nil
}

type ignoreSet []IgnoreChecker

func (s ignoreSet) MatchesPath(path string) bool {
	for _, c := range s {
		if c.MatchesPath(path) {
			return true
		}
	}
	return false
}

// loadIgnore compiles .gitignore files found in root and dir. Patterns in
// dir's file are matched relative to dir.
func loadIgnore(root, dir string) (IgnoreChecker, error) {
	var set ignoreSet
	for _, base := range []string{root, dir} {
		path := filepath.Join(base, ".gitignore")
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("error checking for .gitignore file: %w", err)
		}
		compiled, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading .gitignore file: %w", err)
		}
		if base == root {
			set = append(set, compiled)
			continue
		}
		prefix, _ := filepath.Rel(root, dir)
		set = append(set, relativeIgnore{prefix: prefix + string(filepath.Separator), inner: compiled})
	}
	return set, nil
}

type relativeIgnore struct {
	prefix string
	inner  IgnoreChecker
}

func (r relativeIgnore) MatchesPath(path string) bool {
	rest, ok := strings.CutPrefix(path, r.prefix)
	return ok && r.inner.MatchesPath(rest)
}

// ResolveOutPath turns the --out flag into the materialized snapshot path: a
// *.cirru file is used as is, a path without extension is a directory.
func ResolveOutPath(out string) (string, error) {
	switch ext := filepath.Ext(out); ext {
	case internal.DefaultSourceExt:
		return out, nil
	case "":
		return filepath.Join(out, internal.DefaultSnapshotFile), nil
	default:
		return "", fmt.Errorf("expected *%s file, got %s", internal.DefaultSourceExt, ext)
	}
}

// Outcome reports what Materialize wrote.
type Outcome struct {
	// Full is set when no snapshot existed and the whole snapshot was written.
	Full bool
	// ChangeSet is the diff against the previous snapshot, nil when Full.
	ChangeSet *snapshot.ChangeSet
	// Written is false when nothing changed.
	Written bool
}

// Materialize writes s to compactPath. When a previous snapshot exists it is
// diffed against s: an empty diff writes nothing, otherwise the change-set is
// written to incPath and the snapshot is overwritten.
func (b *Bundler) Materialize(ctx context.Context, s *snapshot.Snapshot, compactPath, incPath string) (*Outcome, error) {
	old, err := snapshot.LoadSnapshotFile(ctx, compactPath)
	if errors.Is(err, fs.ErrNotExist) {
		if err := snapshot.WriteSnapshotFile(ctx, compactPath, s); err != nil {
			return nil, err
		}
		b.logger.Info().Str("path", compactPath).Msg("Wrote full snapshot")
		return &Outcome{Full: true, Written: true}, nil
	}
	if err != nil {
		return nil, err
	}

	cs, err := diff.Diff(old, s)
	if err != nil {
		return nil, err
	}
	if cs.IsEmpty() {
		b.logger.Info().Str("path", compactPath).Msg("No changes, nothing written")
		return &Outcome{ChangeSet: cs}, nil
	}

	if err := snapshot.WriteChangeSetFile(ctx, incPath, cs); err != nil {
		return nil, err
	}
	if err := snapshot.WriteSnapshotFile(ctx, compactPath, s); err != nil {
		return nil, err
	}
	for _, line := range cs.Summary() {
		b.logger.Info().Msg(line)
	}
	b.logger.Info().Str("path", incPath).Msg("Wrote incremental changes")
	return &Outcome{ChangeSet: cs, Written: true}, nil
}
