// Package editor performs structural edits on definition trees addressed by
// coordinates (paths of child indexes from the root).
package editor

import (
	"slices"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
)

// Mode selects what an edit does at its coordinate.
type Mode int

const (
	// Replace swaps the target for the new content.
	Replace Mode = iota
	// After inserts the new content as the target's next sibling.
	After
	// Before inserts the new content as the target's previous sibling.
	Before
	// Delete removes the target.
	Delete
	// Prepend inserts the new content as the target list's first child.
	Prepend
	// Append inserts the new content as the target list's last child.
	Append
)

var modeNames = [...]string{"replace", "after", "before", "delete", "prepend", "append"}

func (m Mode) String() string {
	if m < Replace || m > Append {
		return "unknown"
	}
	return modeNames[m]
}

// ParseMode reads the wire name of a mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return Replace, common.Wrap(common.ErrInvalidEdit, "unknown update mode: %s", s)
}

func (m Mode) needsContent() bool { return m != Delete }

// UpdateAtCoordinate edits *tree at coord. When expected is non-nil the node
// currently at coord (the root for an empty coord) must equal it, otherwise
// ErrStaleMatch is returned. Every check runs before *tree is touched, and the
// original tree value is never mutated in place: a failed edit leaves it as it
// was.
func UpdateAtCoordinate(tree *ast.Node, coord []int, newContent ast.Node, mode Mode, expected ast.Node) error {
	if mode < Replace || mode > Append {
		return common.Wrap(common.ErrInvalidEdit, "unknown update mode %d", int(mode))
	}
	if mode.needsContent() && newContent == nil {
		return common.Wrap(common.ErrInvalidEdit, "%s mode requires new content", mode)
	}

	if len(coord) == 0 {
		updated, err := editRoot(*tree, newContent, mode, expected)
		if err != nil {
			return err
		}
		*tree = updated
		return nil
	}

	updated, err := edit(*tree, coord, 0, newContent, mode, expected)
	if err != nil {
		return err
	}
	*tree = updated
	return nil
}

func editRoot(root, content ast.Node, mode Mode, expected ast.Node) (ast.Node, error) {
	switch mode {
	case Replace, Append, Prepend:
	default:
		return nil, common.Wrap(common.ErrInvalidEdit, "only replace, append and prepend are supported at the root, got %s", mode)
	}
	if expected != nil && !ast.Equal(root, expected) {
		return nil, common.Wrap(common.ErrStaleMatch, "content at root does not match")
	}
	if mode == Replace {
		return ast.Clone(content), nil
	}
	list, ok := root.(ast.List)
	if !ok {
		return nil, common.Wrap(common.ErrNotAList, "root must be a list to %s", mode)
	}
	return insertChild(list, mode, content), nil
}

// edit rebuilds the lists along coord and leaves every other node shared.
func edit(node ast.Node, coord []int, depth int, content ast.Node, mode Mode, expected ast.Node) (ast.Node, error) {
	list, ok := node.(ast.List)
	if !ok {
		return nil, common.Wrap(common.ErrNotAList, "cannot navigate into a leaf at coordinate position %d of %v", depth, coord)
	}
	idx := coord[depth]
	if idx < 0 || idx >= len(list) {
		return nil, common.Wrap(common.ErrOutOfBounds, "index %d out of bounds for list of length %d at coordinate position %d", idx, len(list), depth)
	}

	if depth < len(coord)-1 {
		child, err := edit(list[idx], coord, depth+1, content, mode, expected)
		if err != nil {
			return nil, err
		}
		out := slices.Clone(list)
		out[idx] = child
		return out, nil
	}

	target := list[idx]
	if expected != nil && !ast.Equal(target, expected) {
		return nil, common.Wrap(common.ErrStaleMatch, "content at %v does not match", coord)
	}

	switch mode {
	case Replace:
		out := slices.Clone(list)
		out[idx] = ast.Clone(content)
		return out, nil
	case Delete:
		return slices.Delete(slices.Clone(list), idx, idx+1), nil
	case After:
		return slices.Insert(slices.Clone(list), idx+1, ast.Clone(content)), nil
	case Before:
		return slices.Insert(slices.Clone(list), idx, ast.Clone(content)), nil
	default:
		targetList, ok := target.(ast.List)
		if !ok {
			return nil, common.Wrap(common.ErrNotAList, "%s requires the target at %v to be a list", mode, coord)
		}
		out := slices.Clone(list)
		out[idx] = insertChild(targetList, mode, content)
		return out, nil
	}
}

func insertChild(list ast.List, mode Mode, content ast.Node) ast.List {
	if mode == Prepend {
		return slices.Insert(slices.Clone(list), 0, ast.Clone(content))
	}
	return append(slices.Clone(list), ast.Clone(content))
}
