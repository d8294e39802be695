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
	"fmt"

	"github.com/harehare/mqparse/reporter"
	"github.com/harehare/mqparse/tree"
)

// Diagnose reports the errors in t to h, in source order, and returns the
// first error h's reporter returned.
//
// Every error node is reported once, at its first token: bytes no lexical
// rule matched are reported as [reporter.ErrLex], anything else as
// [reporter.ErrSyntax]. A tree whose root is an error, because the parser
// reached the end of input without recovering, also gets a diagnostic at the
// end of input.
func Diagnose(t *tree.Tree, src []byte, filename string, h *reporter.Handler) error {
	if !t.HasError() {
		return nil
	}
	text := string(src)
	report := func(offset int, err error) error {
		return h.HandleError(reporter.Error(reporter.PositionOf(filename, text, offset), err))
	}

	var walk func(v tree.NodeView) error
	walk = func(v tree.NodeView) error {
		if !v.HasError() {
			return nil
		}
		if v.IsError() {
			tok := firstToken(v)
			switch {
			case tok.IsNull():
				err := fmt.Errorf("%w: unexpected input", reporter.ErrSyntax)
				return report(v.StartByte(), err)
			case tok.IsError() && tok.IsLeaf():
				err := fmt.Errorf("%w: unrecognized character %q", reporter.ErrLex, tok.Text(src))
				return report(tok.StartByte(), err)
			default:
				err := fmt.Errorf("%w: unexpected %q", reporter.ErrSyntax, tok.Text(src))
				return report(tok.StartByte(), err)
			}
		}
		for _, child := range v.Children() {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	root := t.RootNode()
	if !root.IsError() {
		return walk(root)
	}
	for _, child := range root.Children() {
		if err := walk(child); err != nil {
			return err
		}
	}
	return report(len(src), fmt.Errorf("%w: unexpected end of input", reporter.ErrSyntax))
}

// firstToken returns the first token of v that is not an extra, or else its
// first token.
func firstToken(v tree.NodeView) tree.NodeView {
	var first tree.NodeView
	var find func(v tree.NodeView) bool
	find = func(v tree.NodeView) bool {
		if v.IsLeaf() {
			if first.IsNull() {
				first = v
			}
			if !v.IsExtra() {
				first = v
				return true
			}
			return false
		}
		for _, child := range v.Children() {
			if find(child) {
				return true
			}
		}
		return false
	}
	find(v)
	return first
}
