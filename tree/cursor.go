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

// Cursor walks a tree.
//
// Nodes do not know their parents, so a cursor records the path of child
// indices from the root and retraces it to move up. Cursors never modify the
// tree; any number of them may walk one tree at once. A single cursor is not
// safe for concurrent use.
type Cursor struct {
	tree   *Tree
	path   []int
	node   *Node
	parent *Node
	start  int
}

// Node returns the node under the cursor.
func (c *Cursor) Node() NodeView {
	return NodeView{tree: c.tree, node: c.node, start: c.start}
}

// Depth returns the number of edges between the root and the cursor.
func (c *Cursor) Depth() int { return len(c.path) }

// Reset moves the cursor back to the root.
func (c *Cursor) Reset() {
	c.path = c.path[:0]
	c.node, c.parent, c.start = c.tree.root, nil, 0
}

// GotoFirstChild moves to the first child of the current node, if any.
func (c *Cursor) GotoFirstChild() bool {
	if len(c.node.children) == 0 {
		return false
	}
	c.path = append(c.path, 0)
	c.parent, c.node = c.node, c.node.children[0]
	return true
}

// GotoNextSibling moves to the next sibling of the current node, if any.
func (c *Cursor) GotoNextSibling() bool {
	if c.parent == nil {
		return false
	}
	i := c.path[len(c.path)-1] + 1
	if i >= len(c.parent.children) {
		return false
	}
	c.path[len(c.path)-1] = i
	c.start += int(c.node.size)
	c.node = c.parent.children[i]
	return true
}

// GotoParent moves to the parent of the current node, unless it is the root.
func (c *Cursor) GotoParent() bool {
	if len(c.path) == 0 {
		return false
	}
	c.path = c.path[:len(c.path)-1]

	c.node, c.parent, c.start = c.tree.root, nil, 0
	for _, i := range c.path {
		for _, sib := range c.node.children[:i] {
			c.start += int(sib.size)
		}
		c.parent, c.node = c.node, c.node.children[i]
	}
	return true
}
