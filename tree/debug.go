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
	"fmt"
	"strings"
)

// DebugString renders the tree as an indented s-expression, one node per
// line, with each node's byte range:
//
//	(Expr [0, 3)
//	  (Term [0, 1)
//	    ("a" [0, 1)))
//	  ("+" [1, 2))
//	  (Term [2, 3)
//	    ("a" [2, 3))))
//
// Named symbols are printed bare, literal tokens quoted.
func (t *Tree) DebugString() string {
	var out strings.Builder
	t.dump(&out, t.RootNode(), 0)
	return out.String()
}

func (t *Tree) dump(out *strings.Builder, v NodeView, depth int) {
	if depth > 0 {
		out.WriteByte('\n')
		out.WriteString(strings.Repeat("  ", depth))
	}

	info := t.table.Symbol(v.node.symbol)
	name := info.Name
	if !info.Named {
		name = fmt.Sprintf("%q", name)
	}
	fmt.Fprintf(out, "(%s [%d, %d)", name, v.StartByte(), v.EndByte())
	for _, child := range v.Children() {
		t.dump(out, child, depth+1)
	}
	out.WriteByte(')')
}
