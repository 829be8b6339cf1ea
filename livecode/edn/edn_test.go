package edn

import (
	"testing"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapIsSortedAndReadable(t *testing.T) {
	m := Map(Pair("version", Str("0.1.0")), Pair("package", Str("app")), Pair("modules", Nil))

	assert.Equal(t, `({} (:modules nil) (:package |app) (:version |0.1.0))`, ast.Format(m))

	v, ok, err := MapGet(m, "package")
	require.NoError(t, err)
	require.True(t, ok)
	s, err := AsString(v)
	require.NoError(t, err)
	assert.Equal(t, "app", s)

	_, ok, err = MapGet(m, "modules")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = MapGet(m, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStringsAndSets(t *testing.T) {
	set := StringSet(map[string]struct{}{"b": {}, "a": {}})
	assert.Equal(t, `(#{} |a |b)`, ast.Format(set))

	names, err := AsStrings(set)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	names, err = AsStrings(Vec(Str("x"), Str("")))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", ""}, names)

	_, err = AsStrings(Vec(Kw("x")))
	assert.ErrorIs(t, err, common.ErrMalformedTree)
}

func TestQuote(t *testing.T) {
	code := ast.Leaves("ns", "app.main")
	got, err := AsQuoted(Quote(code))
	require.NoError(t, err)
	assert.True(t, ast.Equal(code, got))

	_, err = AsQuoted(code)
	assert.ErrorIs(t, err, common.ErrMalformedTree)
}

func TestEntriesRejectsBadShapes(t *testing.T) {
	_, err := Entries(Vec())
	assert.ErrorIs(t, err, common.ErrMalformedTree)

	_, err = Entries(ast.L(ast.Leaf(TagMap), ast.Leaves("a")))
	assert.ErrorIs(t, err, common.ErrMalformedTree)
}
