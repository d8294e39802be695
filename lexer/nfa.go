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

package lexer

import (
	"regexp/syntax"
	"unicode/utf8"
)

// program is a compiled pattern. It is run by machine, a Pike VM without
// submatch tracking, which reports the longest match and how far it looked.
type program struct {
	prog *syntax.Prog
}

func compile(pattern string) (*program, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, err
	}
	prog, err := syntax.Compile(re.Simplify())
	if err != nil {
		return nil, err
	}
	return &program{prog: prog}, nil
}

// machine holds the thread lists of one simulation. Machines are pooled by
// the lexer and reused across programs.
type machine struct {
	cur, next queue

	prog *syntax.Prog
	src  []byte
	// reach is the exclusive end of the bytes examined so far; it is
	// len(src)+1 once the end of input has been observed.
	reach int
}

type queue struct {
	sparse []uint32
	dense  []uint32
}

func (q *queue) reset(n int) {
	if cap(q.sparse) < n {
		q.sparse = make([]uint32, n)
		q.dense = make([]uint32, 0, n)
	}
	q.sparse = q.sparse[:n]
	q.dense = q.dense[:0]
}

func (q *queue) contains(pc uint32) bool {
	i := q.sparse[pc]
	return int(i) < len(q.dense) && q.dense[i] == pc
}

func (q *queue) add(pc uint32) {
	q.sparse[pc] = uint32(len(q.dense))
	q.dense = append(q.dense, pc)
}

// match runs p anchored at pos. It returns the end of the longest non-empty
// match, or -1, and the reach of the simulation.
func (m *machine) match(p *program, src []byte, pos int) (end, reach int) {
	m.prog = p.prog
	m.src = src
	m.reach = pos
	n := len(p.prog.Inst)
	m.cur.reset(n)
	m.next.reset(n)

	end = -1
	prev := rune(-1)
	if pos > 0 {
		prev, _ = utf8.DecodeLastRune(src[:pos])
	}
	m.add(&m.cur, uint32(p.prog.Start), pos, prev)

	for at := pos; len(m.cur.dense) > 0; {
		r, width := rune(-1), 0
		if at < len(src) {
			r, width = utf8.DecodeRune(src[at:])
		}

		for _, pc := range m.cur.dense {
			inst := &m.prog.Inst[pc]
			switch inst.Op {
			case syntax.InstMatch:
				if at > pos {
					end = at
				}
			case syntax.InstRune, syntax.InstRune1, syntax.InstRuneAny, syntax.InstRuneAnyNotNL:
				if width == 0 {
					m.reach = len(src) + 1
					continue
				}
				m.reach = max(m.reach, at+width)
				if matchRune(inst, r) {
					m.add(&m.next, inst.Out, at+width, r)
				}
			}
		}

		m.cur, m.next = m.next, m.cur
		m.next.dense = m.next.dense[:0]
		if width == 0 {
			break
		}
		at += width
	}
	return end, m.reach
}

// add follows the empty transitions from pc at position at, adding the
// threads that consume input or match to q. prev is the rune before at.
func (m *machine) add(q *queue, pc uint32, at int, prev rune) {
	if q.contains(pc) {
		return
	}
	q.add(pc)

	inst := &m.prog.Inst[pc]
	switch inst.Op {
	case syntax.InstAlt, syntax.InstAltMatch:
		m.add(q, inst.Out, at, prev)
		m.add(q, inst.Arg, at, prev)
	case syntax.InstCapture, syntax.InstNop:
		m.add(q, inst.Out, at, prev)
	case syntax.InstEmptyWidth:
		next := rune(-1)
		if at < len(m.src) {
			var width int
			next, width = utf8.DecodeRune(m.src[at:])
			m.reach = max(m.reach, at+width)
		} else {
			m.reach = len(m.src) + 1
		}
		if syntax.EmptyOp(inst.Arg)&^syntax.EmptyOpContext(prev, next) == 0 {
			m.add(q, inst.Out, at, prev)
		}
	}
}

func matchRune(inst *syntax.Inst, r rune) bool {
	switch inst.Op {
	case syntax.InstRuneAny:
		return true
	case syntax.InstRuneAnyNotNL:
		return r != '\n'
	default:
		return inst.MatchRune(r)
	}
}

// matchLiteral matches lit at pos, with the same results as
// [machine.match].
func matchLiteral(lit, src []byte, pos int) (end, reach int) {
	rest := src[pos:]
	n := 0
	for n < len(lit) && n < len(rest) && lit[n] == rest[n] {
		n++
	}
	switch {
	case n == len(lit):
		return pos + n, pos + n
	case n == len(rest):
		return -1, len(src) + 1
	default:
		return -1, pos + n + 1
	}
}
