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
	"github.com/harehare/mqparse/table"
	"github.com/harehare/mqparse/tree"
)

// recover handles a lookahead the parser cannot act on.
//
// It discards tokens until one can be shifted from a state reachable by
// popping the stack, trying the shallowest state first. When a token had to
// be discarded, the popped nodes go back on the stack untouched, followed by
// an error node over the discarded tokens. Otherwise the error node wraps the
// popped nodes. Both are inert: they are treated as extras from then on.
//
// If the end of input is reached with no state to resume from, recover
// returns the root: an error node over everything parsed.
func (r *run) recover(la *lexer.Token) *tree.Node {
	r.stats.Recoveries++
	log.Debugf("%s: syntax error at byte %d (state %d, %q)",
		r.table.Name(), la.Start, r.top(), r.table.Symbol(la.Symbol).Name)

	var discarded []*tree.Node
	for {
		if !r.isExtra(*la) {
			if depth := r.resumeDepth(la.Symbol); depth >= 0 {
				r.resume(depth, discarded)
				return nil
			}
			if la.Symbol == table.End {
				return r.abandon(discarded)
			}
		}
		discarded = append(discarded, r.nodes.Leaf(*la, r.top(), r.isExtra(*la)))
		*la = r.next()
	}
}

// resumeDepth returns the smallest number of grammar entries to pop so that
// sym can be shifted, or -1.
func (r *run) resumeDepth(sym table.Symbol) int {
	states := make([]table.StateID, 0, len(r.stack))
	for i, e := range r.stack {
		if i == 0 || !e.extra {
			states = append(states, e.state)
		}
	}
	for depth := range len(states) {
		if r.canShift(states[:len(states)-depth], sym) {
			return depth
		}
	}
	return -1
}

// canShift simulates the reductions sym would cause on a stack of states,
// and reports whether sym is eventually shifted or accepted.
func (r *run) canShift(states []table.StateID, sym table.Symbol) bool {
	stack := append([]table.StateID(nil), states...)
	for range r.opts.MaxReductions {
		action := r.table.Action(stack[len(stack)-1], sym)
		switch action.Kind {
		case table.ActionShift, table.ActionAccept:
			return true
		case table.ActionError:
			return false
		}

		rule := r.table.Rule(int(action.Target))
		if rule.Arity >= len(stack) {
			return false
		}
		stack = stack[:len(stack)-rule.Arity]
		next, ok := r.table.Goto(stack[len(stack)-1], rule.LHS)
		if !ok {
			return false
		}
		stack = append(stack, next)
	}
	return false
}

// resume pops depth grammar entries and pushes the error node.
func (r *run) resume(depth int, discarded []*tree.Node) {
	start := len(r.stack)
	for n := 0; n < depth; {
		start--
		if !r.stack[start].extra {
			n++
		}
	}

	popped := make([]*tree.Node, 0, len(r.stack)-start)
	for _, e := range r.stack[start:] {
		popped = append(popped, e.node)
	}
	r.stack = r.stack[:start]
	state := r.top()

	if len(discarded) == 0 {
		r.push(state, r.nodes.Error(popped, state), true)
		return
	}
	for _, n := range popped {
		r.push(state, n, true)
	}
	r.push(state, r.nodes.Error(discarded, state), true)
}

// abandon builds an error root over the whole stack and the discarded
// tokens.
func (r *run) abandon(discarded []*tree.Node) *tree.Node {
	log.Debugf("%s: no state to resume from at end of input", r.table.Name())

	children := make([]*tree.Node, 0, len(r.stack))
	for _, e := range r.stack[1:] {
		children = append(children, e.node)
	}
	if len(discarded) > 0 {
		children = append(children, r.nodes.Error(discarded, r.top()))
	}
	return r.nodes.Error(children, 0)
}
