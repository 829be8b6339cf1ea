package editor

import (
	"testing"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abc() ast.Node { return ast.Leaves("a", "b", "c") }

func nested() ast.Node { return ast.L(ast.Leaf("a"), ast.Leaves("b", "c"), ast.Leaf("d")) }

func TestModes(t *testing.T) {
	x := ast.Leaf("x")
	tests := []struct {
		name  string
		tree  ast.Node
		coord []int
		mode  Mode
		want  string
	}{
		{"replace", abc(), []int{1}, Replace, "(a x c)"},
		{"delete", abc(), []int{1}, Delete, "(a c)"},
		{"after", abc(), []int{1}, After, "(a b x c)"},
		{"before", abc(), []int{1}, Before, "(a x b c)"},
		{"prepend", nested(), []int{1}, Prepend, "(a (x b c) d)"},
		{"append", nested(), []int{1}, Append, "(a (b c x) d)"},
		{"root replace", abc(), nil, Replace, "x"},
		{"root append", abc(), nil, Append, "(a b c x)"},
		{"root prepend", abc(), []int{}, Prepend, "(x a b c)"},
		{"deep replace", ast.L(ast.L(ast.Leaves("p", "q"))), []int{0, 0, 1}, Replace, "(((p x)))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := tt.tree
			var content ast.Node = x
			if tt.mode == Delete {
				content = nil
			}
			require.NoError(t, UpdateAtCoordinate(&tree, tt.coord, content, tt.mode, nil))
			assert.Equal(t, tt.want, ast.Format(tree))
		})
	}
}

func TestOriginalTreeIsNotMutated(t *testing.T) {
	orig := nested()
	tree := orig
	require.NoError(t, UpdateAtCoordinate(&tree, []int{1}, ast.Leaf("x"), Append, nil))

	assert.Equal(t, "(a (b c) d)", ast.Format(orig))
	assert.Equal(t, "(a (b c x) d)", ast.Format(tree))
}

func TestExpectedContent(t *testing.T) {
	tree := abc()
	require.NoError(t, UpdateAtCoordinate(&tree, []int{1}, ast.Leaf("x"), Replace, ast.Leaf("b")))
	assert.Equal(t, "(a x c)", ast.Format(tree))

	err := UpdateAtCoordinate(&tree, []int{1}, ast.Leaf("y"), Replace, ast.Leaf("b"))
	assert.ErrorIs(t, err, common.ErrStaleMatch)
	assert.Equal(t, "(a x c)", ast.Format(tree), "stale edits leave the tree unchanged")

	err = UpdateAtCoordinate(&tree, nil, ast.Leaf("y"), Replace, abc())
	assert.ErrorIs(t, err, common.ErrStaleMatch)
	assert.Equal(t, "(a x c)", ast.Format(tree))
}

func TestErrors(t *testing.T) {
	x := ast.Leaf("x")
	tests := []struct {
		name    string
		tree    ast.Node
		coord   []int
		content ast.Node
		mode    Mode
		want    error
	}{
		{"out of bounds", abc(), []int{3}, x, Replace, common.ErrOutOfBounds},
		{"negative", abc(), []int{-1}, x, Replace, common.ErrOutOfBounds},
		{"deep out of bounds", nested(), []int{1, 5}, x, Replace, common.ErrOutOfBounds},
		{"through a leaf", abc(), []int{0, 0}, x, Replace, common.ErrNotAList},
		{"append to leaf", abc(), []int{0}, x, Append, common.ErrNotAList},
		{"prepend to leaf", abc(), []int{2}, x, Prepend, common.ErrNotAList},
		{"root append to leaf", ast.Leaf("a"), nil, x, Append, common.ErrNotAList},
		{"root delete", abc(), nil, nil, Delete, common.ErrInvalidEdit},
		{"root after", abc(), nil, x, After, common.ErrInvalidEdit},
		{"root before", abc(), nil, x, Before, common.ErrInvalidEdit},
		{"missing content", abc(), []int{0}, nil, Replace, common.ErrInvalidEdit},
		{"unknown mode", abc(), []int{0}, x, Mode(42), common.ErrInvalidEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := tt.tree
			before := ast.Format(tree)
			err := UpdateAtCoordinate(&tree, tt.coord, tt.content, tt.mode, nil)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, ast.Format(tree))
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"replace", "after", "before", "delete", "prepend", "append"} {
		m, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}
	_, err := ParseMode("upsert")
	assert.ErrorIs(t, err, common.ErrInvalidEdit)
}

func TestRequestApply(t *testing.T) {
	code := ast.L(ast.Leaf("defn"), ast.Leaf("add"), ast.Leaves("a", "b"), ast.Leaves("+", "a", "b"))

	req, err := ParseRequest([]byte(`{
		"namespace": "app.main",
		"definition": "add",
		"coordinate": [3, 0],
		"mode": "replace",
		"new_content": "-",
		"expected_content": "+"
	}`))
	require.NoError(t, err)

	out, err := Apply(code, req)
	require.NoError(t, err)
	assert.Equal(t, "(defn add (a b) (- a b))", ast.Format(out))
	assert.Equal(t, "(defn add (a b) (+ a b))", ast.Format(code))

	cs := ToChangeSet(req.Namespace, req.Definition, out)
	require.NoError(t, cs.Validate())
	assert.Equal(t, []string{"app.main"}, cs.Touched())
	assert.Equal(t, []string{"add"}, cs.Changed["app.main"].Touched())
}

func TestRequestStaleAndDefaults(t *testing.T) {
	code := ast.Leaves("def", "x", "1")

	req := &Request{
		Namespace:       "app.main",
		Definition:      "x",
		Coordinate:      []int{2},
		NewContent:      []byte(`"2"`),
		ExpectedContent: []byte(`"0"`),
	}
	_, err := Apply(code, req)
	assert.ErrorIs(t, err, common.ErrStaleMatch)
	assert.Equal(t, "StaleMatch", common.Kind(err))

	req.ExpectedContent = nil
	out, err := Apply(code, req)
	require.NoError(t, err)
	assert.Equal(t, "(def x 2)", ast.Format(out))
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"bad namespace", `{"namespace": "app/main", "definition": "f"}`, common.ErrInvalidName},
		{"bad definition", `{"namespace": "app.main", "definition": "a b"}`, common.ErrInvalidName},
		{"missing definition", `{"namespace": "app.main"}`, common.ErrInvalidEdit},
		{"bad mode", `{"namespace": "app.main", "definition": "f", "mode": "upsert"}`, common.ErrInvalidEdit},
		{"negative coordinate", `{"namespace": "app.main", "definition": "f", "coordinate": [-1]}`, common.ErrInvalidEdit},
		{"broken json", `{"namespace":`, common.ErrInvalidEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.json))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	req := &Request{Namespace: "app.main", Definition: "f", NewContent: []byte(`["a", 1]`)}
	_, err := Apply(ast.Leaves("def", "f", "1"), req)
	assert.ErrorIs(t, err, common.ErrMalformedTree)
}
