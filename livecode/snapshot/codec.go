package snapshot

import (
	"strings"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/edn"
)

// artifacts are pretty-printed at this width
const formatWidth = 100

// EncodeSnapshot renders s as an EDN-like map.
func EncodeSnapshot(s *Snapshot) ast.Node {
	modules := make([]ast.Node, len(s.Configs.Modules))
	for i, m := range s.Configs.Modules {
		modules[i] = edn.Str(m)
	}
	files := make([]edn.Entry, 0, len(s.Files))
	for ns, f := range s.Files {
		files = append(files, edn.Entry{Key: edn.Str(ns), Value: encodeFile(f)})
	}
	return edn.Map(
		edn.Pair("package", edn.Str(s.Package)),
		edn.Pair("configs", edn.Map(
			edn.Pair("init-fn", edn.Str(s.Configs.InitFn)),
			edn.Pair("reload-fn", edn.Str(s.Configs.ReloadFn)),
			edn.Pair("version", edn.Str(s.Configs.Version)),
			edn.Pair("modules", edn.Vec(modules...)),
		)),
		edn.Pair("files", edn.Map(files...)),
	)
}

func encodeFile(f File) ast.Node {
	defs := make([]edn.Entry, 0, len(f.Defs))
	for name, d := range f.Defs {
		defs = append(defs, edn.Entry{Key: edn.Str(name), Value: edn.Map(
			edn.Pair("code", edn.Quote(d.Code)),
			edn.Pair("doc", edn.Str(d.Doc)),
		)})
	}
	return edn.Map(
		edn.Pair("ns", edn.Quote(f.NS)),
		edn.Pair("defs", edn.Map(defs...)),
	)
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot. Declarations are
// validated; a file whose declaration does not name it is rejected.
func DecodeSnapshot(n ast.Node) (*Snapshot, error) {
	s := &Snapshot{Files: map[string]File{}}
	var err error
	if s.Package, err = requiredString(n, "package"); err != nil {
		return nil, err
	}
	configs, ok, err := edn.MapGet(n, "configs")
	if err != nil {
		return nil, err
	}
	if ok {
		if s.Configs, err = decodeConfigs(configs); err != nil {
			return nil, err
		}
	}
	files, ok, err := edn.MapGet(n, "files")
	if err != nil || !ok {
		return s, err
	}
	entries, err := edn.Entries(files)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		ns, err := edn.AsString(e.Key)
		if err != nil {
			return nil, err
		}
		f, err := decodeFile(ns, e.Value)
		if err != nil {
			return nil, err
		}
		s.Files[ns] = f
	}
	return s, nil
}

// DecodePackage reads a package description: a map with :package next to the
// config keys (:init-fn, :reload-fn, :version, :modules).
func DecodePackage(n ast.Node) (string, Configs, error) {
	pkg, err := requiredString(n, "package")
	if err != nil {
		return "", Configs{}, err
	}
	configs, err := decodeConfigs(n)
	return pkg, configs, err
}

func decodeConfigs(n ast.Node) (Configs, error) {
	var c Configs
	var err error
	if c.InitFn, err = requiredString(n, "init-fn"); err != nil {
		return c, err
	}
	if c.ReloadFn, err = requiredString(n, "reload-fn"); err != nil {
		return c, err
	}
	if c.Version, err = optionalString(n, "version"); err != nil {
		return c, err
	}
	modules, ok, err := edn.MapGet(n, "modules")
	if err != nil || !ok {
		return c, err
	}
	c.Modules, err = edn.AsStrings(modules)
	return c, err
}

func decodeFile(ns string, n ast.Node) (File, error) {
	f := File{Defs: map[string]DefEntry{}}
	decl, err := requiredQuoted(n, "ns")
	if err != nil {
		return f, err
	}
	if err := ValidateDecl(ns, decl); err != nil {
		return f, err
	}
	f.NS = decl
	defs, ok, err := edn.MapGet(n, "defs")
	if err != nil || !ok {
		return f, err
	}
	entries, err := edn.Entries(defs)
	if err != nil {
		return f, err
	}
	for _, e := range entries {
		name, err := edn.AsString(e.Key)
		if err != nil {
			return f, err
		}
		d, err := decodeDef(e.Value)
		if err != nil {
			return f, err
		}
		f.Defs[name] = d
	}
	return f, nil
}

// decodeDef accepts both {:code (quote ...) :doc |...} and a bare (quote ...).
func decodeDef(n ast.Node) (DefEntry, error) {
	if code, err := edn.AsQuoted(n); err == nil {
		return DefEntry{Code: code}, nil
	}
	code, err := requiredQuoted(n, "code")
	if err != nil {
		return DefEntry{}, err
	}
	doc, err := optionalString(n, "doc")
	return DefEntry{Code: code, Doc: doc}, err
}

// EncodeChangeSet renders cs as an EDN-like map.
func EncodeChangeSet(cs *ChangeSet) ast.Node {
	added := make([]edn.Entry, 0, len(cs.Added))
	for ns, f := range cs.Added {
		added = append(added, edn.Entry{Key: edn.Str(ns), Value: encodeFile(f)})
	}
	changed := make([]edn.Entry, 0, len(cs.Changed))
	for ns, fc := range cs.Changed {
		var decl ast.Node = edn.Nil
		if fc.NS != nil {
			decl = edn.Quote(fc.NS)
		}
		changed = append(changed, edn.Entry{Key: edn.Str(ns), Value: edn.Map(
			edn.Pair("ns", decl),
			edn.Pair("added-defs", encodeCodeMap(fc.AddedDefs)),
			edn.Pair("removed-defs", edn.StringSet(fc.RemovedDefs)),
			edn.Pair("changed-defs", encodeCodeMap(fc.ChangedDefs)),
		)})
	}
	return edn.Map(
		edn.Pair("added", edn.Map(added...)),
		edn.Pair("removed", edn.StringSet(cs.Removed)),
		edn.Pair("changed", edn.Map(changed...)),
	)
}

func encodeCodeMap(defs map[string]ast.Node) ast.Node {
	entries := make([]edn.Entry, 0, len(defs))
	for name, code := range defs {
		entries = append(entries, edn.Entry{Key: edn.Str(name), Value: edn.Quote(code)})
	}
	return edn.Map(entries...)
}

// DecodeChangeSet reads a change-set written by EncodeChangeSet. Missing
// categories decode as empty.
func DecodeChangeSet(n ast.Node) (*ChangeSet, error) {
	cs := NewChangeSet()

	if added, ok, err := edn.MapGet(n, "added"); err != nil {
		return nil, err
	} else if ok {
		entries, err := edn.Entries(added)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ns, err := edn.AsString(e.Key)
			if err != nil {
				return nil, err
			}
			if cs.Added[ns], err = decodeFile(ns, e.Value); err != nil {
				return nil, err
			}
		}
	}

	if removed, ok, err := edn.MapGet(n, "removed"); err != nil {
		return nil, err
	} else if ok {
		names, err := edn.AsStrings(removed)
		if err != nil {
			return nil, err
		}
		cs.Removed = NewNameSet(names...)
	}

	changed, ok, err := edn.MapGet(n, "changed")
	if err != nil || !ok {
		return cs, err
	}
	entries, err := edn.Entries(changed)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		ns, err := edn.AsString(e.Key)
		if err != nil {
			return nil, err
		}
		fc, err := decodeFileChange(e.Value)
		if err != nil {
			return nil, err
		}
		cs.Changed[ns] = fc
	}
	return cs, nil
}

func decodeFileChange(n ast.Node) (FileChange, error) {
	fc := NewFileChange()
	decl, ok, err := edn.MapGet(n, "ns")
	if err != nil {
		return fc, err
	}
	if ok {
		if fc.NS, err = edn.AsQuoted(decl); err != nil {
			return fc, err
		}
	}
	if fc.AddedDefs, err = decodeCodeMap(n, "added-defs"); err != nil {
		return fc, err
	}
	if fc.ChangedDefs, err = decodeCodeMap(n, "changed-defs"); err != nil {
		return fc, err
	}
	removed, ok, err := edn.MapGet(n, "removed-defs")
	if err != nil || !ok {
		return fc, err
	}
	names, err := edn.AsStrings(removed)
	if err != nil {
		return fc, err
	}
	fc.RemovedDefs = NewNameSet(names...)
	return fc, nil
}

func decodeCodeMap(n ast.Node, key string) (map[string]ast.Node, error) {
	out := map[string]ast.Node{}
	m, ok, err := edn.MapGet(n, key)
	if err != nil || !ok {
		return out, err
	}
	entries, err := edn.Entries(m)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name, err := edn.AsString(e.Key)
		if err != nil {
			return nil, err
		}
		if out[name], err = edn.AsQuoted(e.Value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func requiredString(n ast.Node, key string) (string, error) {
	v, ok, err := edn.MapGet(n, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", common.Wrap(common.ErrMalformedTree, "missing :%s", key)
	}
	return edn.AsString(v)
}

func optionalString(n ast.Node, key string) (string, error) {
	v, ok, err := edn.MapGet(n, key)
	if err != nil || !ok {
		return "", err
	}
	return edn.AsString(v)
}

func requiredQuoted(n ast.Node, key string) (ast.Node, error) {
	v, ok, err := edn.MapGet(n, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Wrap(common.ErrMalformedTree, "missing :%s", key)
	}
	return edn.AsQuoted(v)
}

// MarshalSnapshot renders s as artifact text.
func MarshalSnapshot(s *Snapshot) string {
	return ast.FormatPretty(EncodeSnapshot(s), formatWidth)
}

// UnmarshalSnapshot parses artifact text into a Snapshot.
func UnmarshalSnapshot(text string) (*Snapshot, error) {
	n, err := ast.ParseOne(text)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(n)
}

// MarshalChangeSet renders cs as artifact text.
func MarshalChangeSet(cs *ChangeSet) string {
	return ast.FormatPretty(EncodeChangeSet(cs), formatWidth)
}

// UnmarshalChangeSet parses artifact text. Blank text is an empty change-set.
func UnmarshalChangeSet(text string) (*ChangeSet, error) {
	if strings.TrimSpace(text) == "" {
		return NewChangeSet(), nil
	}
	n, err := ast.ParseOne(text)
	if err != nil {
		return nil, err
	}
	return DecodeChangeSet(n)
}
