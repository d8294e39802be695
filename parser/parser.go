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
	"errors"

	"github.com/tliron/commonlog"

	"github.com/harehare/mqparse/lexer"
	"github.com/harehare/mqparse/reporter"
	"github.com/harehare/mqparse/table"
	"github.com/harehare/mqparse/tree"
)

var log = commonlog.GetLogger("mqparse.parser")

// ErrLanguageMismatch is returned when a previous tree from a different
// language is passed to [Parser.Parse].
var ErrLanguageMismatch = errors.New("previous tree belongs to another language")

// DefaultMaxReductions is the default for [Options.MaxReductions].
const DefaultMaxReductions = 1 << 16

// Options configures a [Parser]. The zero value is ready to use.
type Options struct {
	// DisableReuse makes every parse a full parse, even when given a
	// previous tree.
	DisableReuse bool

	// Reporter, if set, receives a diagnostic for every error in each tree
	// produced. Filename is used for their positions.
	Reporter reporter.Reporter
	Filename string

	// MaxReductions bounds the number of consecutive reductions without a
	// shift. Grammars with cyclic unit rules can otherwise reduce forever;
	// when the bound is hit, the parser recovers as if from a syntax error.
	// Zero means DefaultMaxReductions.
	MaxReductions int
}

// Stats describes the work done by a parse.
type Stats struct {
	// Lexed is the number of tokens produced by the lexer.
	Lexed int
	// Reused is the number of subtrees taken from the previous tree.
	Reused int
	// Recoveries is the number of times error recovery ran.
	Recoveries int
	// Nodes is the number of nodes allocated for the new tree. Reused
	// subtrees are not counted.
	Nodes int
}

// Parser parses source text for one language. A Parser holds no state
// between parses besides the statistics of the last one; it is not safe for
// concurrent use, but any number of parsers may share a language.
type Parser struct {
	lang  *Language
	opts  Options
	stats Stats
}

// New returns a parser for lang.
func New(lang *Language, opts Options) *Parser {
	if opts.MaxReductions <= 0 {
		opts.MaxReductions = DefaultMaxReductions
	}
	return &Parser{lang: lang, opts: opts}
}

// Language returns the parser's language.
func (p *Parser) Language() *Language { return p.lang }

// Stats returns statistics about the last parse.
func (p *Parser) Stats() Stats { return p.stats }

// Parse parses src.
//
// If prev is not nil, it must be the tree of the previous version of the
// source with every edit since applied to it with [tree.Tree.Edit]; its
// untouched subtrees are then reused. The result is the same tree a parse
// without prev would produce.
//
// Malformed input never causes an error: it is represented in the tree. An
// error is returned only for a prev from another language, or when the
// configured reporter returns one.
func (p *Parser) Parse(src []byte, prev *tree.Tree) (*tree.Tree, error) {
	if prev != nil && prev.Table() != p.lang.table {
		return nil, ErrLanguageMismatch
	}

	r := &run{
		opts:  &p.opts,
		src:   src,
		table: p.lang.table,
		lexer: p.lang.lexer,
		nodes: tree.NewBuilder(p.lang.table),
	}
	if prev != nil && !p.opts.DisableReuse {
		if prev.Len() == len(src) {
			r.reuse = newReuseCursor(prev)
		} else {
			log.Warningf("%s: previous tree covers %d bytes but the source has %d; parsing from scratch",
				p.lang.name, prev.Len(), len(src))
		}
	}

	root := r.parse()
	r.stats.Nodes = r.nodes.Len()
	p.stats = r.stats
	log.Debugf("%s: parsed %d bytes: %d tokens lexed, %d subtrees reused, %d recoveries, %d nodes",
		p.lang.name, len(src), r.stats.Lexed, r.stats.Reused, r.stats.Recoveries, r.stats.Nodes)

	t := tree.New(root, len(src), p.lang.table)
	if p.opts.Reporter != nil {
		h := reporter.NewHandler(p.opts.Reporter)
		if err := Diagnose(t, src, p.opts.Filename, h); err != nil {
			return t, err
		}
	}
	return t, nil
}

// entry is an element of the parse stack. Extras sit on the stack between
// the entries of the grammar symbols; they carry the state of the entry
// below them.
type entry struct {
	state table.StateID
	node  *tree.Node
	extra bool
}

// run is the state of one parse.
type run struct {
	opts  *Options
	src   []byte
	table *table.Table
	lexer *lexer.Lexer
	nodes *tree.Builder
	reuse *reuseCursor
	stats Stats

	// stack[0] is a sentinel for the initial state and has no node.
	stack []entry
	// pending holds tokens lexed ahead of time, while checking a reused
	// subtree; they are consumed before lexing resumes at pos.
	pending []lexer.Token
	pos     int
}

func (r *run) top() table.StateID {
	return r.stack[len(r.stack)-1].state
}

func (r *run) push(state table.StateID, node *tree.Node, extra bool) {
	r.stack = append(r.stack, entry{state: state, node: node, extra: extra})
}

// next returns the next token.
func (r *run) next() lexer.Token {
	if len(r.pending) > 0 {
		tok := r.pending[0]
		r.pending = r.pending[1:]
		return tok
	}
	tok := r.lexer.Next(r.src, r.pos, r.top())
	r.pos = tok.End
	r.stats.Lexed++
	return tok
}

func (r *run) isExtra(tok lexer.Token) bool {
	return !tok.IsError && r.table.Symbol(tok.Symbol).Extra
}

func (r *run) parse() *tree.Node {
	r.stack = append(r.stack, entry{})
	la := r.next()

	reductions := 0
	for {
		if r.isExtra(la) {
			r.push(r.top(), r.nodes.Leaf(la, r.top(), true), true)
			la = r.next()
			continue
		}

		action := r.table.Action(r.top(), la.Symbol)
		if action.Kind == table.ActionReduce {
			reductions++
			if reductions > r.opts.MaxReductions || !r.reduce(int(action.Target), la) {
				log.Warningf("%s: abandoning reductions at byte %d", r.table.Name(), la.Start)
				action = table.Action{}
			}
		}

		switch action.Kind {
		case table.ActionShift:
			reductions = 0
			if r.reuse != nil && len(r.pending) == 0 && r.reuseAt(la) {
				la = r.next()
				continue
			}
			r.push(table.StateID(action.Target), r.nodes.Leaf(la, r.top(), false), false)
			la = r.next()

		case table.ActionAccept:
			return r.accept()

		case table.ActionError:
			reductions = 0
			if root := r.recover(&la); root != nil {
				return root
			}
		}
	}
}

// reduce applies a rule with la as the lookahead. It reports false if the
// stack does not fit the rule, which only a corrupt table can cause.
func (r *run) reduce(ruleIdx int, la lexer.Token) bool {
	rule := r.table.Rule(ruleIdx)

	// Trailing extras are not part of the new node; they go back on top of
	// it.
	top := len(r.stack)
	for top > 1 && r.stack[top-1].extra {
		top--
	}
	start := top
	for n := 0; n < rule.Arity; {
		if start == 1 {
			return false
		}
		start--
		if !r.stack[start].extra {
			n++
		}
	}

	base := r.stack[start-1].state
	next, ok := r.table.Goto(base, rule.LHS)
	if !ok {
		return false
	}

	children := make([]*tree.Node, 0, top-start)
	for _, e := range r.stack[start:top] {
		children = append(children, e.node)
	}
	node := r.nodes.Reduce(rule.LHS, children, base, la)

	trailing := append([]entry(nil), r.stack[top:]...)
	r.stack = r.stack[:start]
	r.push(next, node, false)
	for _, e := range trailing {
		r.push(next, e.node, true)
	}
	return true
}

// accept builds the root from the start symbol's node and the extras around
// it.
func (r *run) accept() *tree.Node {
	var root *tree.Node
	var leading, trailing []*tree.Node
	for _, e := range r.stack[1:] {
		switch {
		case !e.extra:
			root = e.node
		case root == nil:
			leading = append(leading, e.node)
		default:
			trailing = append(trailing, e.node)
		}
	}
	return r.nodes.Root(root, leading, trailing)
}
