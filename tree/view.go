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

package tree

import (
	"github.com/harehare/mqparse/table"
)

// NodeView is a node at a position in a tree.
//
// The zero value is a null view; see [NodeView.IsNull].
type NodeView struct {
	tree *Tree
	node *Node
	// start is the node's offset in the source the tree was parsed from.
	start int
}

// IsNull returns whether the view refers to no node.
func (v NodeView) IsNull() bool { return v.node == nil }

// Raw returns the underlying node.
func (v NodeView) Raw() *Node { return v.node }

// Symbol returns the node's symbol.
func (v NodeView) Symbol() table.Symbol { return v.node.symbol }

// Kind returns the name of the node's symbol.
func (v NodeView) Kind() string { return v.tree.table.Symbol(v.node.symbol).Name }

// IsNamed returns whether the node's symbol is named, as opposed to a
// literal token.
func (v NodeView) IsNamed() bool { return v.tree.table.Symbol(v.node.symbol).Named }

// StartByte returns the start of the node in the current source.
func (v NodeView) StartByte() int { return v.tree.MapPos(v.start) }

// EndByte returns the end of the node in the current source.
func (v NodeView) EndByte() int { return v.tree.MapPos(v.start + int(v.node.size)) }

// HasError returns whether the node is or contains an error.
func (v NodeView) HasError() bool { return v.node.HasError() }

// IsError returns whether the node is an error leaf or error node.
func (v NodeView) IsError() bool { return v.node.IsError() }

// IsExtra returns whether the node is an extra.
func (v NodeView) IsExtra() bool { return v.node.IsExtra() }

// IsLeaf returns whether the node is a token.
func (v NodeView) IsLeaf() bool { return v.node.IsLeaf() }

// HasChanges returns whether the node's range intersects a range changed by
// the edits applied to the tree, as reported by [Tree.ChangedRanges]. An
// empty node has changes when a changed range starts at its position.
func (v NodeView) HasChanges() bool {
	return v.tree.touched(v.StartByte(), v.EndByte())
}

// ChildCount returns the number of children.
func (v NodeView) ChildCount() int { return len(v.node.children) }

// Child returns the ith child.
func (v NodeView) Child(i int) NodeView {
	start := v.start
	for _, sib := range v.node.children[:i] {
		start += int(sib.size)
	}
	return NodeView{tree: v.tree, node: v.node.children[i], start: start}
}

// Children returns the node's children in order.
func (v NodeView) Children() []NodeView {
	out := make([]NodeView, len(v.node.children))
	start := v.start
	for i, child := range v.node.children {
		out[i] = NodeView{tree: v.tree, node: child, start: start}
		start += int(child.size)
	}
	return out
}

// Text returns the node's bytes in src, the current source of the tree.
func (v NodeView) Text(src []byte) []byte {
	start, end := min(v.StartByte(), len(src)), min(v.EndByte(), len(src))
	return src[start:end]
}
