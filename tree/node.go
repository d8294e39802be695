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

type flags uint8

const (
	// flagLeaf is set on tokens. Internal nodes may also have no children,
	// when they derive the empty string.
	flagLeaf flags = 1 << iota
	// flagError is set on error leaves and error nodes.
	flagError
	// flagHasError is set when the node or a descendant is an error.
	flagHasError
	flagExtra
	// flagFragile marks nodes that were not built by a plain reduction, such
	// as roots, and so cannot be reused.
	flagFragile
	// flagLeadingEmpty is set when the first leaf of the node is preceded by
	// a zero-width node.
	flagLeadingEmpty
)

// Node is an immutable syntax tree node.
//
// Nodes record their length but not their position, so that one node can be
// shared by several trees, at different offsets. Nodes have no parent links;
// use a [Cursor] to navigate upwards.
type Node struct {
	symbol table.Symbol
	flags  flags
	size   uint32
	// lookahead is the number of bytes past the end of the node that the
	// lexer examined while producing its tokens.
	lookahead uint32

	// state is the parser state the node was built on: the state below it
	// on the stack.
	state table.StateID
	// follow and followMode describe the lookahead token the node was
	// reduced with.
	follow     table.Symbol
	followMode uint16
	// mode is the lex mode of a leaf.
	mode uint16

	firstLeaf     table.Symbol
	firstLeafSize uint32

	children []*Node
}

// Symbol returns the node's grammar symbol.
func (n *Node) Symbol() table.Symbol { return n.symbol }

// Size returns the length of the node in bytes.
func (n *Node) Size() int { return int(n.size) }

// Lookahead returns how many bytes past its end the lexer examined to build
// the node.
func (n *Node) Lookahead() int { return int(n.lookahead) }

// IsLeaf returns whether the node is a token.
func (n *Node) IsLeaf() bool { return n.flags&flagLeaf != 0 }

// IsError returns whether the node is an error leaf or an error node.
func (n *Node) IsError() bool { return n.flags&flagError != 0 }

// HasError returns whether the node or any of its descendants is an error.
func (n *Node) HasError() bool { return n.flags&(flagError|flagHasError) != 0 }

// IsExtra returns whether the node is an extra, such as a comment.
func (n *Node) IsExtra() bool { return n.flags&flagExtra != 0 }

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the ith child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// State returns the parser state the node was built on.
func (n *Node) State() table.StateID { return n.state }

// Follow returns the symbol and lex mode of the token that followed the node
// when it was reduced.
func (n *Node) Follow() (table.Symbol, int) { return n.follow, int(n.followMode) }

// Mode returns the lex mode a leaf was lexed in.
func (n *Node) Mode() int { return int(n.mode) }

// FirstLeaf returns the symbol and size of the first token of the node.
func (n *Node) FirstLeaf() (table.Symbol, int) {
	return n.firstLeaf, int(n.firstLeafSize)
}

// Reusable returns whether the node may be offered to an incremental parse.
//
// Only internal nodes built by a reduction that contain no errors qualify.
func (n *Node) Reusable() bool {
	const bad = flagLeaf | flagError | flagHasError | flagExtra | flagFragile | flagLeadingEmpty
	return n.flags&bad == 0 && n.size > 0
}
