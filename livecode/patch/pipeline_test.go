package patch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/codegen"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/editor"
	"github.com/ZanzyTHEbar/livecode/livecode/journal"
	"github.com/ZanzyTHEbar/livecode/livecode/program"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

func defn(name, body string) ast.Node {
	return ast.L(ast.Leaf("defn"), ast.Leaf(name), ast.L(), ast.Leaf(body))
}

func testSnapshot() *snapshot.Snapshot {
	s := snapshot.Default()
	s.Files["app.main"] = snapshot.File{
		NS: snapshot.NSDecl("app.main"),
		Defs: map[string]snapshot.DefEntry{
			"main!":   {Code: defn("main!", "1")},
			"reload!": {Code: defn("reload!", "1")},
			"helper":  {Code: defn("helper", "1")},
		},
	}
	s.Files["app.util"] = snapshot.File{
		NS:   snapshot.NSDecl("app.util"),
		Defs: map[string]snapshot.DefEntry{"u": {Code: ast.Leaves("def", "u", "1")}},
	}
	s.Files["lilac.core"] = snapshot.File{
		NS:   snapshot.NSDecl("lilac.core"),
		Defs: map[string]snapshot.DefEntry{"l": {Code: defn("l", "1")}},
	}
	return s
}

type recordingRunner struct {
	mu      sync.Mutex
	entries []EntryPoint
}

func (r *recordingRunner) Run(_ context.Context, entry EntryPoint, prog *program.Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type PipelineTestSuite struct {
	suite.Suite
	ctx      context.Context
	runner   *recordingRunner
	journal  *journal.Journal
	deps     *codegen.DependencyCache
	pipeline *Pipeline
}

func (s *PipelineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.runner = &recordingRunner{}
	j, err := journal.Open(journal.InMemoryConfig())
	s.Require().NoError(err)
	s.journal = j
	s.deps = codegen.NewDependencyCache()
	s.pipeline = New(zerolog.Nop(), WithRunner(s.runner), WithJournal(j), WithDependencyCache(s.deps))
}

func (s *PipelineTestSuite) TearDownTest() {
	s.Require().NoError(s.journal.Close())
}

func (s *PipelineTestSuite) load() *program.Program {
	res, err := s.pipeline.Load(s.ctx, testSnapshot())
	s.Require().NoError(err)
	s.Equal(EntryPoint{NS: "app.main", Def: "main!"}, res.Entry)
	return s.pipeline.Program()
}

func (s *PipelineTestSuite) TestApplyBeforeLoad() {
	cs := snapshot.NewChangeSet()
	cs.Removed.Add("app.util")
	_, err := s.pipeline.Apply(s.ctx, cs)
	s.ErrorIs(err, ErrNotLoaded)
}

func (s *PipelineTestSuite) TestEntryDesignation() {
	s.load()

	cs := snapshot.NewChangeSet()
	fc := snapshot.NewFileChange()
	fc.ChangedDefs["helper"] = defn("helper", "2")
	cs.Changed["app.main"] = fc
	res, err := s.pipeline.Apply(s.ctx, cs)
	s.Require().NoError(err)

	s.Equal(EntryPoint{NS: "app.main", Def: "reload!"}, res.Entry)
	s.Equal([]EntryPoint{{"app.main", "main!"}, {"app.main", "reload!"}}, s.runner.entries)
	s.Equal([]string{"~ app.main: ~1 defs"}, res.Summary)
}

func (s *PipelineTestSuite) TestInvalidationLocality() {
	prog := s.load()
	s.Require().NoError(prog.StoreEvaluated("app.main", "helper", "h"))
	s.Require().NoError(prog.StoreEvaluated("app.main", "main!", "m"))
	s.Require().NoError(prog.StoreEvaluated("app.util", "u", "u"))
	s.Require().NoError(prog.StoreEvaluated("lilac.core", "l", "l"))
	for _, ns := range prog.Namespaces() {
		s.deps.Record(ns, codegen.NewRefs())
	}
	s.deps.MarkPassComplete()
	_ = prog.Gensym("x")

	cs := snapshot.NewChangeSet()
	fc := snapshot.NewFileChange()
	fc.ChangedDefs["helper"] = defn("helper", "2")
	cs.Changed["app.main"] = fc
	lib := snapshot.NewFileChange()
	lib.ChangedDefs["l"] = defn("l", "2")
	cs.Changed["lilac.core"] = lib

	res, err := s.pipeline.Apply(s.ctx, cs)
	s.Require().NoError(err)

	s.Equal([]string{"app.main", "lilac.core"}, res.Invalidation.Namespaces)
	s.Equal(1, res.Invalidation.Cleared)
	s.Equal([]string{"lilac.core"}, res.Invalidation.Exempted)

	_, ok := prog.Evaluated("app.main", "helper")
	s.False(ok)
	_, ok = prog.Evaluated("app.main", "main!")
	s.True(ok)
	_, ok = prog.Evaluated("app.util", "u")
	s.True(ok)
	_, ok = prog.Evaluated("lilac.core", "l")
	s.True(ok)

	s.True(s.deps.ShouldEmit("app.main", codegen.NewRefs()))
	s.True(s.deps.ShouldEmit("lilac.core", codegen.NewRefs()))
	s.False(s.deps.ShouldEmit("app.util", codegen.NewRefs()))

	s.Equal("G__1", prog.Gensym(""), "gensym counter is reset by a patch")
}

func (s *PipelineTestSuite) TestReloadLibs() {
	s.pipeline = New(zerolog.Nop(), WithReloadLibs(true))
	prog := s.load()
	s.Require().NoError(prog.StoreEvaluated("lilac.core", "l", "l"))

	cs := snapshot.NewChangeSet()
	lib := snapshot.NewFileChange()
	lib.ChangedDefs["l"] = defn("l", "2")
	cs.Changed["lilac.core"] = lib
	inv := s.pipeline.Invalidate(cs)

	s.Equal(1, inv.Cleared)
	s.Empty(inv.Exempted)
}

func (s *PipelineTestSuite) TestRejectedPatchKeepsLastGoodState() {
	prog := s.load()
	before := prog.Snapshot()

	cs := snapshot.NewChangeSet()
	cs.Removed.Add("app.util")
	fc := snapshot.NewFileChange()
	fc.AddedDefs["broken"] = ast.Leaves("def", "broken")
	cs.Changed["app.main"] = fc

	_, err := s.pipeline.Apply(s.ctx, cs)
	s.ErrorIs(err, common.ErrMalformedTree)
	s.Equal(before.Namespaces(), prog.Namespaces())

	entries, err := s.journal.List(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(SourceLoad, entries[0].Source)
	s.Equal("MalformedTree", entries[1].ErrorKind)
	s.Equal([]string{"app.util"}, entries[1].Removed)

	m := s.pipeline.Metrics()
	s.Equal(int64(1), m["successful_ops"])
	s.Equal(int64(1), m["failed_ops"])
}

func (s *PipelineTestSuite) TestApplyArtifact() {
	prog := s.load()
	dir := s.T().TempDir()
	path := filepath.Join(dir, ".compact-inc.cirru")

	res, err := s.pipeline.ApplyArtifact(s.ctx, path)
	s.Require().NoError(err)
	s.True(res.Skipped)

	s.Require().NoError(os.WriteFile(path, []byte("\n  \n"), 0o644))
	res, err = s.pipeline.ApplyArtifact(s.ctx, path)
	s.Require().NoError(err)
	s.True(res.Skipped)

	cs := snapshot.NewChangeSet()
	cs.Added["app.extra"] = snapshot.File{
		NS:   snapshot.NSDecl("app.extra"),
		Defs: map[string]snapshot.DefEntry{"e": {Code: ast.Leaves("def", "e", "1")}},
	}
	s.Require().NoError(snapshot.WriteChangeSetFile(s.ctx, path, cs))
	res, err = s.pipeline.ApplyArtifact(s.ctx, path)
	s.Require().NoError(err)
	s.False(res.Skipped)
	s.Contains(prog.Namespaces(), "app.extra")

	s.Require().NoError(os.WriteFile(path, []byte("(unclosed"), 0o644))
	_, err = s.pipeline.ApplyArtifact(s.ctx, path)
	s.ErrorIs(err, common.ErrMalformedTree)
}

func (s *PipelineTestSuite) TestApplyEdit() {
	prog := s.load()

	req := &editor.Request{
		Namespace:       "app.main",
		Definition:      "helper",
		Coordinate:      []int{3},
		NewContent:      []byte(`"42"`),
		ExpectedContent: []byte(`"1"`),
	}
	res, err := s.pipeline.ApplyEdit(s.ctx, req)
	s.Require().NoError(err)
	s.Equal([]string{"~ app.main: ~1 defs"}, res.Summary)

	def, _, _ := prog.LookupDef("app.main", "helper")
	s.True(ast.Equal(defn("helper", "42"), def.Code))

	// same expectation again is stale now
	_, err = s.pipeline.ApplyEdit(s.ctx, req)
	s.ErrorIs(err, common.ErrStaleMatch)
	def, _, _ = prog.LookupDef("app.main", "helper")
	s.True(ast.Equal(defn("helper", "42"), def.Code))

	req.Definition = "missing"
	_, err = s.pipeline.ApplyEdit(s.ctx, req)
	s.ErrorIs(err, common.ErrUnknownDefinition)

	req.Namespace = "app.missing"
	_, err = s.pipeline.ApplyEdit(s.ctx, req)
	s.ErrorIs(err, common.ErrUnknownNamespace)
}

func (s *PipelineTestSuite) TestConcurrentEditsDoNotClobber() {
	s.load()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, content := range []string{`"a"`, `"b"`} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.pipeline.ApplyEdit(s.ctx, &editor.Request{
				Namespace:       "app.main",
				Definition:      "helper",
				Coordinate:      []int{3},
				NewContent:      []byte(content),
				ExpectedContent: []byte(`"1"`),
			})
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			s.ErrorIs(err, common.ErrStaleMatch)
			failed++
		}
	}
	s.Equal(1, failed, "exactly one of two edits against the same expectation wins")
}

func (s *PipelineTestSuite) TestEmptyChangeSetIsSkipped() {
	s.load()
	res, err := s.pipeline.Apply(s.ctx, snapshot.NewChangeSet())
	s.Require().NoError(err)
	s.True(res.Skipped)
	s.Len(s.runner.entries, 1)
}

func (s *PipelineTestSuite) TestLoadRejectsMalformedReloadFn() {
	for _, fn := range []string{"", "reload!", "app.main/"} {
		snap := testSnapshot()
		snap.Configs.ReloadFn = fn
		_, err := s.pipeline.Load(s.ctx, snap)
		s.ErrorIs(err, common.ErrInvalidName, fn)
		s.Nil(s.pipeline.Program())
	}
}

func (s *PipelineTestSuite) TestReadersNeverSeeStaleValueForNewCode() {
	prog := s.load()
	s.Require().NoError(prog.StoreEvaluated("app.main", "helper", 1))

	version := func(def program.Definition) int {
		l, _ := ast.AsList(def.Code)
		body, _ := ast.AsLeaf(l[3])
		n, _ := strconv.Atoi(body)
		return n
	}

	ctx, cancel := context.WithCancel(s.ctx)
	var stale atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			def, _, ok := prog.LookupDef("app.main", "helper")
			if !ok {
				continue
			}
			v, ok := prog.Evaluated("app.main", "helper")
			if ok && v.(int) < version(def) {
				stale.Add(1)
			}
		}
	}()

	for i := 2; i <= 200; i++ {
		cs := snapshot.NewChangeSet()
		fc := snapshot.NewFileChange()
		fc.ChangedDefs["helper"] = defn("helper", strconv.Itoa(i))
		cs.Changed["app.main"] = fc
		_, err := s.pipeline.Apply(s.ctx, cs)
		s.Require().NoError(err)
		s.Require().NoError(prog.StoreEvaluated("app.main", "helper", i))
	}
	cancel()
	wg.Wait()

	s.Zero(stale.Load(), "evaluated value older than the code it belongs to")
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}
