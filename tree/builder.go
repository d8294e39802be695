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
	"github.com/harehare/mqparse/internal/arena"
	"github.com/harehare/mqparse/lexer"
	"github.com/harehare/mqparse/table"
)

// Builder allocates the nodes of one parse.
//
// Nodes are allocated from an arena, so building a tree costs a handful of
// large allocations rather than one per node. A Builder is not safe for
// concurrent use.
type Builder struct {
	table *table.Table
	nodes arena.Arena[Node]
}

// NewBuilder returns a builder for trees over t.
func NewBuilder(t *table.Table) *Builder {
	return &Builder{table: t}
}

// Len returns the number of nodes allocated so far.
func (b *Builder) Len() int { return b.nodes.Len() }

// Leaf returns a leaf for tok, shifted on state.
func (b *Builder) Leaf(tok lexer.Token, state table.StateID, extra bool) *Node {
	f := flagLeaf
	if tok.IsError || tok.Symbol == table.Error {
		f |= flagError
	}
	if extra {
		f |= flagExtra
	}
	return b.nodes.Alloc(Node{
		symbol:        tok.Symbol,
		flags:         f,
		size:          uint32(tok.Len()),
		lookahead:     uint32(max(0, tok.Lookahead-tok.End)),
		state:         state,
		mode:          uint16(tok.Mode),
		firstLeaf:     tok.Symbol,
		firstLeafSize: uint32(tok.Len()),
	})
}

// Reduce returns the node of a reduction of sym over children, built on
// state with follow as the lookahead. Hidden children are spliced in.
func (b *Builder) Reduce(sym table.Symbol, children []*Node, state table.StateID, follow lexer.Token) *Node {
	n := b.branch(sym, children, 0)
	n.state = state
	n.follow = follow.Symbol
	n.followMode = uint16(follow.Mode)
	return n
}

// Error returns an error node over children.
func (b *Builder) Error(children []*Node, state table.StateID) *Node {
	n := b.branch(table.Error, children, flagError|flagFragile)
	n.state = state
	return n
}

// Root returns a copy of the internal node n with leading and trailing
// extras added to its children.
func (b *Builder) Root(n *Node, leading, trailing []*Node) *Node {
	if len(leading) == 0 && len(trailing) == 0 && n.flags&flagFragile != 0 {
		return n
	}
	children := make([]*Node, 0, len(leading)+len(n.children)+len(trailing))
	children = append(children, leading...)
	children = append(children, n.children...)
	children = append(children, trailing...)
	root := b.branch(n.symbol, children, n.flags&flagError|flagFragile)
	root.state = n.state
	return root
}

func (b *Builder) branch(sym table.Symbol, children []*Node, f flags) *Node {
	if len(children) > 0 {
		if first := children[0]; first.size == 0 || first.flags&flagLeadingEmpty != 0 {
			f |= flagLeadingEmpty
		}
	}

	spliced := make([]*Node, 0, len(children))
	for _, child := range children {
		if !child.IsLeaf() && child.symbol != table.Error && b.table.Symbol(child.symbol).Hidden {
			spliced = append(spliced, child.children...)
			continue
		}
		spliced = append(spliced, child)
	}

	n := b.nodes.Alloc(Node{symbol: sym, children: spliced})
	var size, look int
	for _, child := range spliced {
		size += int(child.size)
		if child.HasError() {
			f |= flagHasError
		}
	}
	offset := 0
	for _, child := range spliced {
		offset += int(child.size)
		look = max(look, offset+int(child.lookahead)-size)
	}
	if len(spliced) > 0 {
		sym, size := spliced[0].FirstLeaf()
		n.firstLeaf, n.firstLeafSize = sym, uint32(size)
	}
	n.flags = f
	n.size = uint32(size)
	n.lookahead = uint32(look)
	return n
}
