// Package patch applies change-sets to the live program one at a time,
// invalidates exactly what they touched, and designates the entry point to
// run afterwards.
package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/livecode/livecode/codegen"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/editor"
	"github.com/ZanzyTHEbar/livecode/livecode/journal"
	"github.com/ZanzyTHEbar/livecode/livecode/program"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// ErrNotLoaded is returned when a patch arrives before any snapshot was loaded.
var ErrNotLoaded = errors.New("no program loaded")

// Patch sources, recorded in logs, metrics and the journal.
const (
	SourceLoad      = "load"
	SourceChangeSet = "changeset"
	SourceArtifact  = "artifact"
	SourceEdit      = "edit"
)

// EntryPoint names the definition to run after a load or a patch.
type EntryPoint struct {
	NS  string
	Def string
}

func (e EntryPoint) String() string { return e.NS + "/" + e.Def }

// Runner is the evaluator collaborator. It is handed the entry point after
// every successful load or patch, while the pipeline lock is still held: it
// must use the program it is given and not call back into the pipeline.
type Runner interface {
	Run(ctx context.Context, entry EntryPoint, prog *program.Program) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, entry EntryPoint, prog *program.Program) error

func (f RunnerFunc) Run(ctx context.Context, entry EntryPoint, prog *program.Program) error {
	return f(ctx, entry, prog)
}

// Invalidation reports what a patch invalidated.
type Invalidation struct {
	Namespaces []string
	Cleared    int
	Exempted   []string
}

// Result describes one applied patch.
type Result struct {
	ID           uuid.UUID
	Source       string
	Entry        EntryPoint
	ChangeSet    *snapshot.ChangeSet
	Summary      []string
	Invalidation Invalidation
	// Skipped is set when there was nothing to apply.
	Skipped bool
	// RunErr is the runner's error. The patch itself stays applied.
	RunErr error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunner sets the evaluator collaborator.
func WithRunner(r Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithJournal records every patch attempt in j.
func WithJournal(j *journal.Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithDependencyCache shares an emitter cache with the pipeline.
func WithDependencyCache(c *codegen.DependencyCache) Option {
	return func(p *Pipeline) { p.deps = c }
}

// WithReloadLibs makes invalidation clear library namespaces too.
func WithReloadLibs(reload bool) Option {
	return func(p *Pipeline) { p.reloadLibs = reload }
}

// Pipeline serializes Load, Apply, ApplyArtifact and ApplyEdit: at most one
// patch is in flight at any time.
type Pipeline struct {
	mu         sync.Mutex
	prog       *program.Program
	deps       *codegen.DependencyCache
	runner     Runner
	journal    *journal.Journal
	reloadLibs bool
	metrics    common.PatchMetrics
	logger     zerolog.Logger
}

// New creates a pipeline with no program loaded.
func New(logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:   codegen.NewDependencyCache(),
		logger: logger.With().Str("component", "patch").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Program returns the live program, or nil before Load.
func (p *Pipeline) Program() *program.Program {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prog
}

// Dependencies returns the emitter dependency cache.
func (p *Pipeline) Dependencies() *codegen.DependencyCache { return p.deps }

// Metrics returns patch statistics.
func (p *Pipeline) Metrics() map[string]interface{} { return p.metrics.GetMetrics() }

// Load replaces the live program with s and designates init_fn. Both init_fn
// and reload_fn must name a definition as ns/def.
func (p *Pipeline) Load(ctx context.Context, s *snapshot.Snapshot) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := startPatchSpan(ctx, "Load", SourceLoad)
	start := time.Now()
	res := &Result{ID: newID(), Source: SourceLoad}

	prog, err := program.FromSnapshot(s, p.logger)
	if err == nil {
		res.Entry, err = entryPoint(s.Configs.InitFn)
	}
	if err == nil {
		_, err = entryPoint(s.Configs.ReloadFn)
	}
	if err != nil {
		endPatchSpan(span, err, 0)
		return nil, p.reject(ctx, res, start, err)
	}

	p.prog = prog
	p.deps.Invalidate(prog.Namespaces()...)
	res.Invalidation.Namespaces = prog.Namespaces()
	endPatchSpan(span, nil, len(res.Invalidation.Namespaces))

	p.logger.Info().
		Str("package", s.Package).
		Int("namespaces", len(res.Invalidation.Namespaces)).
		Str("entry", res.Entry.String()).
		Msg("Program loaded")
	p.finish(ctx, res, start)
	return res, nil
}

// Apply patches the live program with cs and designates reload_fn.
func (p *Pipeline) Apply(ctx context.Context, cs *snapshot.ChangeSet) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyLocked(ctx, cs, SourceChangeSet)
}

// ApplyArtifact reads a patch artifact and applies it. A missing or blank
// artifact, or one that carries no change, is not an error.
func (p *Pipeline) ApplyArtifact(ctx context.Context, path string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cs, err := snapshot.LoadChangeSetFile(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Info().Str("path", path).Msg("No patch artifact, nothing to apply")
		return &Result{Source: SourceArtifact, Skipped: true}, nil
	}
	if err != nil {
		return nil, p.reject(ctx, &Result{ID: newID(), Source: SourceArtifact}, time.Now(), err)
	}
	return p.applyLocked(ctx, cs, SourceArtifact)
}

// ApplyEdit runs a structural edit against the current code of one
// definition and applies the result as a single-definition change-set. The
// expected-content check and the apply happen under the same lock, so a
// concurrent patch cannot slip in between.
func (p *Pipeline) ApplyEdit(ctx context.Context, req *editor.Request) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	res := &Result{ID: newID(), Source: SourceEdit}
	if p.prog == nil {
		return nil, p.reject(ctx, res, start, ErrNotLoaded)
	}
	if err := req.Validate(); err != nil {
		return nil, p.reject(ctx, res, start, err)
	}
	if _, ok := p.prog.Decl(req.Namespace); !ok {
		return nil, p.reject(ctx, res, start, common.Wrap(common.ErrUnknownNamespace, "%s", req.Namespace))
	}
	def, _, ok := p.prog.LookupDef(req.Namespace, req.Definition)
	if !ok {
		return nil, p.reject(ctx, res, start, common.Wrap(common.ErrUnknownDefinition, "%s/%s", req.Namespace, req.Definition))
	}
	code, err := editor.Apply(def.Code, req)
	if err != nil {
		return nil, p.reject(ctx, res, start, err)
	}
	return p.applyLocked(ctx, editor.ToChangeSet(req.Namespace, req.Definition, code), SourceEdit)
}

// Invalidate drops what cs touched: evaluated values of its definitions
// (libraries exempt unless reloadLibs), the gensym counter, and the emitter
// cache of its namespaces. It cannot fail.
func (p *Pipeline) Invalidate(cs *snapshot.ChangeSet) Invalidation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalidateLocked(cs)
}

func (p *Pipeline) invalidateLocked(cs *snapshot.ChangeSet) Invalidation {
	inv := Invalidation{Namespaces: cs.Touched()}
	if p.prog != nil {
		inv.Cleared, inv.Exempted = p.prog.ClearEvaluated(cs, p.reloadLibs)
		p.prog.ResetGensym()
	}
	p.deps.Invalidate(inv.Namespaces...)
	return inv
}

func (p *Pipeline) applyLocked(ctx context.Context, cs *snapshot.ChangeSet, source string) (*Result, error) {
	start := time.Now()
	res := &Result{ID: newID(), Source: source, ChangeSet: cs}

	if cs.IsEmpty() {
		p.logger.Info().Str("source", source).Msg("Change-set is empty, nothing to apply")
		res.Skipped = true
		return res, nil
	}
	if p.prog == nil {
		return nil, p.reject(ctx, res, start, ErrNotLoaded)
	}

	ctx, span := startPatchSpan(ctx, "Apply", source)
	res.Summary = cs.Summary()
	p.logger.Info().Str("source", source).Str("patch_id", res.ID.String()).Msg("Incremental changes detected")
	for _, line := range res.Summary {
		p.logger.Info().Str("patch_id", res.ID.String()).Msg("  " + line)
	}

	entry, err := entryPoint(p.prog.Configs().ReloadFn)
	if err != nil {
		endPatchSpan(span, err, 0)
		return nil, p.reject(ctx, res, start, err)
	}
	cleared, exempted, err := p.prog.Patch(cs, p.reloadLibs)
	if err != nil {
		endPatchSpan(span, err, 0)
		return nil, p.reject(ctx, res, start, err)
	}
	res.Entry = entry
	res.Invalidation = Invalidation{Namespaces: cs.Touched(), Cleared: cleared, Exempted: exempted}
	p.deps.Invalidate(res.Invalidation.Namespaces...)
	p.logger.Info().Msg("Changes applied to program")
	p.logger.Info().
		Int("cleared", res.Invalidation.Cleared).
		Strs("exempted", res.Invalidation.Exempted).
		Msg("Cleared evaluated states and reset gensym index")
	endPatchSpan(span, nil, len(res.Invalidation.Namespaces))

	p.finish(ctx, res, start)
	return res, nil
}

// finish runs the entry point and records a successful patch.
func (p *Pipeline) finish(ctx context.Context, res *Result, start time.Time) {
	if p.runner != nil {
		if err := p.runner.Run(ctx, res.Entry, p.prog); err != nil {
			res.RunErr = err
			p.logger.Error().Err(err).Str("entry", res.Entry.String()).Msg("Entry point failed")
		}
	}

	inv := res.Invalidation
	p.metrics.RecordPatch(start, true, len(inv.Namespaces), inv.Cleared, len(inv.Exempted))
	recordPatch(ctx, res.Source, time.Since(start), len(inv.Namespaces), inv.Cleared)

	e := p.journalEntry(res)
	e.EntryFn = res.Entry.String()
	p.record(ctx, e)
}

// reject logs, counts and journals a failed patch. The program keeps its
// last good state.
func (p *Pipeline) reject(ctx context.Context, res *Result, start time.Time, err error) error {
	kind := common.Kind(err)
	p.metrics.RecordPatch(start, false, 0, 0, 0)
	recordRejected(ctx, res.Source, kind)

	e := p.journalEntry(res)
	e.Error = err.Error()
	e.ErrorKind = kind
	p.record(ctx, e)

	return common.LogAndWrapError(p.logger, err, zerolog.ErrorLevel, "patch %s rejected", res.Source)
}

func (p *Pipeline) journalEntry(res *Result) *journal.Entry {
	e := &journal.Entry{
		ID:       res.ID,
		Source:   res.Source,
		Summary:  res.Summary,
		Cleared:  res.Invalidation.Cleared,
		Exempted: res.Invalidation.Exempted,
	}
	if cs := res.ChangeSet; cs != nil {
		e.Added = slices.Sorted(maps.Keys(cs.Added))
		e.Removed = cs.Removed.Sorted()
		e.Changed = slices.Sorted(maps.Keys(cs.Changed))
		e.ChangeSet = snapshot.MarshalChangeSet(cs)
	}
	return e
}

func (p *Pipeline) record(ctx context.Context, e *journal.Entry) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Record(ctx, e); err != nil {
		p.logger.Warn().Err(err).Str("patch_id", e.ID.String()).Msg("Failed to journal patch")
	}
}

func entryPoint(fn string) (EntryPoint, error) {
	ns, def, err := snapshot.SplitEntry(fn)
	if err != nil {
		return EntryPoint{}, fmt.Errorf("entry point: %w", err)
	}
	return EntryPoint{NS: ns, Def: def}, nil
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
