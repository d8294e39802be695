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

// Package lexer turns source bytes into tokens for the parser.
//
// Lexing is context sensitive: the parser passes its current state, and only
// the terminals the table marks as valid in that state's lex mode (plus the
// extras) compete for a match. The lexer is a pure function of the source,
// the position and the state; it keeps no state between calls.
package lexer

import (
	"fmt"
	"slices"
	"sync"

	"github.com/harehare/mqparse/table"
)

// Token is a lexed token.
type Token struct {
	Symbol     table.Symbol
	Start, End int
	// Lookahead is the exclusive end of the bytes examined to produce the
	// token. It is len(src)+1 if the lexer had to observe the end of input.
	Lookahead int
	// IsError is set for bytes no lexical rule matches.
	IsError bool
	// Mode is the lex mode the token was produced in.
	Mode int
}

// Len returns the length of the token in bytes.
func (t Token) Len() int { return t.End - t.Start }

// String implements [fmt.Stringer].
func (t Token) String() string {
	return fmt.Sprintf("%d[%d, %d)", t.Symbol, t.Start, t.End)
}

// Lexer tokenizes source text for one parse table.
type Lexer struct {
	table *table.Table
	rules []rule
	modes [][]int // Rule indices per lex mode.
	all   []int

	machines sync.Pool
}

type rule struct {
	table.LexRule
	literal []byte
	program *program
}

// New compiles the lexical rules of t.
func New(t *table.Table) (*Lexer, error) {
	l := &Lexer{table: t}
	l.machines.New = func() any { return new(machine) }

	extra := make(map[table.Symbol]bool)
	for _, sym := range t.Extras() {
		extra[sym] = true
	}

	for i, lr := range t.LexRules() {
		r := rule{LexRule: lr}
		if lr.Literal {
			r.literal = []byte(lr.Pattern)
		} else {
			prog, err := compile(lr.Pattern)
			if err != nil {
				return nil, fmt.Errorf("lexical rule for %q: %w", t.Symbol(lr.Symbol).Name, err)
			}
			r.program = prog
		}
		l.rules = append(l.rules, r)
		l.all = append(l.all, i)
	}

	for mode := range t.ModeCount() {
		valid := t.Mode(mode)
		var idx []int
		for i, r := range l.rules {
			if extra[r.Symbol] || slices.Contains(valid, r.Symbol) {
				idx = append(idx, i)
			}
		}
		l.modes = append(l.modes, idx)
	}
	return l, nil
}

// Table returns the table the lexer was built for.
func (l *Lexer) Table() *table.Table { return l.table }

// Next lexes the token at pos, as the parser would in state.
func (l *Lexer) Next(src []byte, pos int, state table.StateID) Token {
	return l.NextInMode(src, pos, l.table.LexMode(state))
}

// NextInMode lexes the token at pos in the given lex mode.
//
// The longest match wins; ties go to the higher priority, then to the rule
// defined first. If no rule valid in the mode matches, every rule is tried so
// that unexpected input still forms whole tokens. If nothing matches at all,
// the result is a one-byte error token.
func (l *Lexer) NextInMode(src []byte, pos int, mode int) Token {
	if pos >= len(src) {
		return Token{
			Symbol:    table.End,
			Start:     len(src),
			End:       len(src),
			Lookahead: len(src) + 1,
			Mode:      mode,
		}
	}

	candidates := l.all
	if mode >= 0 && mode < len(l.modes) {
		candidates = l.modes[mode]
	}

	best, end, reach := l.scan(src, pos, candidates)
	if best < 0 && len(candidates) < len(l.all) {
		var more int
		best, end, more = l.scan(src, pos, l.all)
		reach = max(reach, more)
	}
	if best < 0 {
		return Token{
			Symbol:    table.Error,
			Start:     pos,
			End:       pos + 1,
			Lookahead: max(reach, pos+1),
			IsError:   true,
			Mode:      mode,
		}
	}
	return Token{
		Symbol:    l.rules[best].Symbol,
		Start:     pos,
		End:       end,
		Lookahead: max(reach, end),
		Mode:      mode,
	}
}

// scan runs the candidate rules at pos and returns the winning rule index,
// or -1, with its end and the furthest byte examined by any rule.
func (l *Lexer) scan(src []byte, pos int, candidates []int) (best, end, reach int) {
	m := l.machines.Get().(*machine) //nolint:errcheck // Always a *machine.
	defer l.machines.Put(m)

	best, end, reach = -1, -1, pos
	for _, i := range candidates {
		r := &l.rules[i]
		var e, rr int
		if r.literal != nil {
			e, rr = matchLiteral(r.literal, src, pos)
		} else {
			e, rr = m.match(r.program, src, pos)
		}
		reach = max(reach, rr)

		switch {
		case e <= pos:
			continue
		case best < 0, e > end:
		case e == end && r.Priority > l.rules[best].Priority:
		default:
			continue
		}
		best, end = i, e
	}
	m.src = nil
	return best, end, reach
}
