// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tree contains the immutable concrete syntax trees produced by the
// parser, and the bookkeeping that lets an incremental parse reuse them after
// the source has been edited.
package tree

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/harehare/mqparse/internal/interval"
	"github.com/harehare/mqparse/table"
)

// ErrInvalidEdit is returned by [Tree.Edit] for edits that do not fit the
// tree's source.
var ErrInvalidEdit = errors.New("invalid edit")

// Edit describes one contiguous replacement in a source: the bytes
// [StartByte, OldEndByte) were replaced by [StartByte, NewEndByte).
type Edit struct {
	StartByte  int
	OldEndByte int
	NewEndByte int
}

// Delta returns the change in source length.
func (e Edit) Delta() int { return e.NewEndByte - e.OldEndByte }

// mapPos maps an offset from before the edit to after it. Offsets inside the
// replaced range are clamped into the replacement.
func (e Edit) mapPos(pos int) int {
	switch {
	case pos >= e.OldEndByte:
		return pos + e.Delta()
	case pos > e.StartByte:
		return min(pos, e.NewEndByte)
	default:
		return pos
	}
}

// Range is a half-open byte range.
type Range struct {
	Start, End int
}

// Tree is an immutable syntax tree over a source of a given length.
//
// Editing a tree produces a new tree that shares all nodes with the old one;
// the nodes keep their old positions and the tree maps them through its list
// of edits.
type Tree struct {
	root   *Node
	length int
	table  *table.Table

	edits   []Edit
	changed *interval.Intersect[int, int]
}

// New returns a tree with the given root over a source of length bytes.
func New(root *Node, length int, t *table.Table) *Tree {
	return &Tree{root: root, length: length, table: t}
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// RootNode returns a view of the root node.
func (t *Tree) RootNode() NodeView { return NodeView{tree: t, node: t.root} }

// Len returns the length of the source, after edits.
func (t *Tree) Len() int { return t.length }

// Table returns the parse table whose symbols the tree uses.
func (t *Tree) Table() *table.Table { return t.table }

// HasError returns whether the tree contains any error.
func (t *Tree) HasError() bool { return t.root.HasError() }

// Edits returns the edits applied to the tree since it was parsed.
func (t *Tree) Edits() []Edit { return slices.Clone(t.edits) }

// Edit returns a copy of the tree with e applied. Edits are expressed in the
// coordinates of the source after all previously applied edits.
func (t *Tree) Edit(e Edit) (*Tree, error) {
	switch {
	case e.StartByte < 0 || e.StartByte > e.OldEndByte || e.StartByte > e.NewEndByte:
		return nil, fmt.Errorf("%w: %+v", ErrInvalidEdit, e)
	case e.OldEndByte > t.length:
		return nil, fmt.Errorf("%w: %+v past end of source of length %d", ErrInvalidEdit, e, t.length)
	}

	edited := &Tree{
		root:   t.root,
		length: t.length + e.Delta(),
		table:  t.table,
		edits:  append(slices.Clip(t.edits), e),
	}
	edited.changed = changedIndex(edited.edits)
	return edited, nil
}

// changedIndex records, in the coordinates after the last edit, which bytes
// each edit touched.
func changedIndex(edits []Edit) *interval.Intersect[int, int] {
	m := new(interval.Intersect[int, int])
	for i, e := range edits {
		start, end := e.StartByte, max(e.NewEndByte, e.StartByte+1)
		for _, later := range edits[i+1:] {
			start, end = later.mapPos(start), later.mapPos(end)
		}
		if start < end {
			m.Insert(start, end-1, i)
		}
	}
	return m
}

// ChangedRanges returns the merged ranges touched by the edits applied to
// the tree, in current coordinates. Deletions are reported as one byte at the
// point of deletion.
func (t *Tree) ChangedRanges() []Range {
	if t.changed == nil {
		return nil
	}
	var out []Range
	for e := range t.changed.Contiguous() {
		out = append(out, Range{Start: e.Start, End: e.End + 1})
	}
	return out
}

// touched returns whether the edits changed any byte of [start, end), in
// current coordinates, or the byte at start if the range is empty.
func (t *Tree) touched(start, end int) bool {
	if t.changed == nil {
		return false
	}
	return t.changed.Overlaps(start, max(end, start+1)-1)
}

// MapPos maps an offset in the parsed source to the edited source.
func (t *Tree) MapPos(pos int) int {
	for _, e := range t.edits {
		pos = e.mapPos(pos)
	}
	return pos
}

// Affected returns whether a node at start (in parsed coordinates) with the
// given size and lookahead is invalidated by the tree's edits. Nodes are
// invalidated by any edit that touches their bytes or the bytes the lexer
// examined past their end.
func (t *Tree) Affected(start, size, lookahead int) bool {
	look := start + size + lookahead
	for _, e := range t.edits {
		if start < e.OldEndByte && e.StartByte < look {
			return true
		}
		if start >= e.OldEndByte {
			start += e.Delta()
			look += e.Delta()
		}
	}
	return false
}

// Walk returns a cursor positioned at the root.
func (t *Tree) Walk() *Cursor {
	return &Cursor{tree: t, node: t.root}
}

// NodesInByteRange returns the nodes that intersect [start, end), in
// depth-first pre-order. A zero-width query selects the nodes containing
// start.
func (t *Tree) NodesInByteRange(start, end int) iter.Seq[NodeView] {
	end = max(end, start+1)
	return func(yield func(NodeView) bool) {
		t.visit(t.root, 0, func(v NodeView) (descend, ok bool) {
			s, e := v.StartByte(), v.EndByte()
			hit := s < end && e > start
			if s == e {
				hit = start <= s && s < end
			}
			if !hit {
				return false, true
			}
			return true, yield(v)
		})
	}
}

// Leaves returns the tokens of the tree, in source order.
func (t *Tree) Leaves() iter.Seq[NodeView] {
	return func(yield func(NodeView) bool) {
		t.visit(t.root, 0, func(v NodeView) (descend, ok bool) {
			if v.node.IsLeaf() {
				return false, yield(v)
			}
			return true, true
		})
	}
}

// visit walks the subtree of n in pre-order. f reports whether to descend
// into the node and whether to continue at all.
func (t *Tree) visit(n *Node, start int, f func(NodeView) (descend, ok bool)) bool {
	descend, ok := f(NodeView{tree: t, node: n, start: start})
	if !ok {
		return false
	}
	if !descend {
		return true
	}
	for _, child := range n.children {
		if !t.visit(child, start, f) {
			return false
		}
		start += int(child.size)
	}
	return true
}
