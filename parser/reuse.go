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

package parser

import (
	"github.com/harehare/mqparse/lexer"
	"github.com/harehare/mqparse/tree"
)

// reuseCursor walks the previous tree in source order, offering subtrees to
// the parser. The parser only moves forward, so neither does the cursor.
type reuseCursor struct {
	tree *tree.Tree

	// path holds the ancestors of node, with the index of the child
	// leading to it.
	path []reuseFrame
	node *tree.Node
	// start is the offset of node in the previous source.
	start int
	done  bool
}

type reuseFrame struct {
	node  *tree.Node
	start int
	child int
}

func newReuseCursor(prev *tree.Tree) *reuseCursor {
	return &reuseCursor{tree: prev, node: prev.Root()}
}

// at moves to the outermost node that starts at pos in the current source,
// and returns it with its offset in the previous source. It returns nil if
// no such node remains.
func (c *reuseCursor) at(pos int) (*tree.Node, int) {
	for !c.done {
		start := c.tree.MapPos(c.start)
		end := c.tree.MapPos(c.start + c.node.Size())
		switch {
		case end <= pos:
			c.advance()
		case start < pos:
			c.descend()
		case start > pos:
			return nil, 0
		default:
			return c.node, c.start
		}
	}
	return nil, 0
}

// descend moves to the first child of the current node, or past it if it
// has none.
func (c *reuseCursor) descend() {
	if c.node.IsLeaf() || c.node.ChildCount() == 0 {
		c.advance()
		return
	}
	c.path = append(c.path, reuseFrame{node: c.node, start: c.start})
	c.node = c.node.Child(0)
}

// advance moves to the node that follows the current one.
func (c *reuseCursor) advance() {
	end := c.start + c.node.Size()
	for len(c.path) > 0 {
		f := &c.path[len(c.path)-1]
		f.child++
		if f.child < f.node.ChildCount() {
			c.node, c.start = f.node.Child(f.child), end
			return
		}
		c.path = c.path[:len(c.path)-1]
		c.node, c.start = f.node, f.start
	}
	c.done = true
}

// reuseAt tries to replace the shift of la with a subtree of the previous
// tree that starts with la. On success the subtree is on the stack and the
// tokens lexed to validate it are pending.
func (r *run) reuseAt(la lexer.Token) bool {
	for {
		n, start := r.reuse.at(la.Start)
		if n == nil {
			return false
		}
		if reason := r.reusable(n, start, la); reason != "" {
			log.Debugf("%s: not reusing %s at byte %d: %s",
				r.table.Name(), r.table.Symbol(n.Symbol()).Name, la.Start, reason)
			r.reuse.descend()
			continue
		}

		state, _ := r.table.Goto(r.top(), n.Symbol())
		r.push(state, n, false)
		r.stats.Reused++
		r.reuse.advance()
		return true
	}
}

// reusable checks whether the fresh parse would rebuild n at la. If so, it
// leaves the tokens that follow n up to its follow token in r.pending, and
// returns "".
func (r *run) reusable(n *tree.Node, start int, la lexer.Token) string {
	switch {
	case !n.Reusable():
		return "not a plain reduction"
	case r.reuse.tree.Affected(start, n.Size(), n.Lookahead()):
		return "changed"
	case n.State() != r.top():
		return "different parse state"
	}
	if sym, size := n.FirstLeaf(); sym != la.Symbol || size != la.Len() {
		return "different first token"
	}
	if _, ok := r.table.Goto(r.top(), n.Symbol()); !ok {
		return "no transition"
	}

	follow, mode := n.Follow()
	pos := la.Start + n.Size()
	var pending []lexer.Token
	for {
		tok := r.lexer.NextInMode(r.src, pos, mode)
		r.stats.Lexed++
		pending = append(pending, tok)
		pos = tok.End
		if r.isExtra(tok) {
			continue
		}
		if tok.Symbol != follow || tok.IsError {
			return "different follow token"
		}
		break
	}
	r.pending, r.pos = pending, pos
	return ""
}
