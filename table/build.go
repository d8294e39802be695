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

package table

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"math/bits"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/harehare/mqparse/grammar"
)

var log = commonlog.GetLogger("mqparse.table")

// ErrTooLarge is returned when a grammar needs more states or symbols than a
// table can address.
var ErrTooLarge = errors.New("grammar too large")

// Build constructs the SLR(1) parse table of g.
//
// States are numbered in discovery order and transitions are explored in
// symbol order, so the same grammar always yields an identical table.
// Shift/reduce conflicts are resolved with the precedence and associativity
// of the alternatives involved; without precedence information the shift
// wins. Reduce/reduce conflicts go to the earliest declared alternative.
func Build(g *grammar.Grammar) (*Table, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	b := &builder{g: g, t: &Table{name: g.Name}}
	if err := b.addSymbols(); err != nil {
		return nil, err
	}
	b.addRules()
	b.computeFirst()
	b.computeFollow()
	if err := b.addStates(); err != nil {
		return nil, err
	}
	b.addActions()
	b.addModes()
	b.t.computeDerived()

	log.Debugf("%s: %d symbols, %d rules, %d states, %d lex modes",
		g.Name, len(b.t.symbols), len(b.t.rules), b.t.states, len(b.t.modes))
	if b.t.conflicts > 0 {
		log.Infof("%s: %d conflicts resolved by default", g.Name, b.t.conflicts)
	}
	return b.t, nil
}

type builder struct {
	g *grammar.Grammar
	t *Table

	named    map[string]Symbol
	literals map[string]Symbol

	prods  []prod
	byLHS  [][]int // Productions per nonterminal.
	states []*state
	index  map[string]StateID

	nullable []bool
	first    []bitset // Per symbol, over terminals.
	follow   []bitset // Per nonterminal, over terminals.
}

// prod is a production. Production 0 is the augmented S' -> start; the
// others are the table's rules, shifted by one.
type prod struct {
	lhs  Symbol
	rhs  []Symbol
	prec int
}

type item struct {
	prod, dot uint32
}

type state struct {
	kernel []item
	items  []item
	next   map[Symbol]StateID
}

func (b *builder) addSymbols() error {
	t, g := b.t, b.g
	b.named = make(map[string]Symbol)
	b.literals = make(map[string]Symbol)

	add := func(info SymbolInfo) Symbol {
		sym := Symbol(len(t.symbols))
		t.symbols = append(t.symbols, info)
		return sym
	}

	add(SymbolInfo{Name: "end", Terminal: true, Named: true})
	add(SymbolInfo{Name: "ERROR", Terminal: true, Named: true})

	// Literals are defined before patterns so that, for matches of equal
	// length and priority, keywords beat identifiers.
	for _, lit := range g.Literals() {
		sym := add(SymbolInfo{Name: lit, Terminal: true})
		b.literals[lit] = sym
		t.lexRules = append(t.lexRules, LexRule{Symbol: sym, Pattern: lit, Literal: true})
	}
	for _, tok := range g.Tokens {
		sym := add(SymbolInfo{Name: tok.Name, Terminal: true, Named: true, Extra: g.IsExtra(tok.Name)})
		b.named[tok.Name] = sym
		t.lexRules = append(t.lexRules, LexRule{Symbol: sym, Pattern: tok.Pattern, Priority: tok.Priority})
	}
	t.terminals = len(t.symbols)

	for _, rule := range g.Rules {
		b.named[rule.Name] = add(SymbolInfo{Name: rule.Name, Named: true, Hidden: rule.Hidden()})
	}
	t.start = b.named[g.Start]

	if len(t.symbols) >= int(^uint16(0)) {
		return fmt.Errorf("%w: %d symbols", ErrTooLarge, len(t.symbols))
	}
	return nil
}

func (b *builder) addRules() {
	t := b.t
	b.byLHS = make([][]int, len(t.symbols)-t.terminals)
	b.prods = append(b.prods, prod{lhs: ^Symbol(0), rhs: []Symbol{t.start}})

	for _, rule := range b.g.Rules {
		lhs := b.named[rule.Name]
		for _, alt := range rule.Alternatives {
			rhs := make([]Symbol, len(alt.Symbols))
			for i, ref := range alt.Symbols {
				if ref.Literal {
					rhs[i] = b.literals[ref.Name]
				} else {
					rhs[i] = b.named[ref.Name]
				}
			}

			b.byLHS[int(lhs)-t.terminals] = append(b.byLHS[int(lhs)-t.terminals], len(b.prods))
			b.prods = append(b.prods, prod{lhs: lhs, rhs: rhs, prec: alt.Prec})
			t.rules = append(t.rules, Rule{
				LHS:   lhs,
				Arity: len(rhs),
				Prec:  alt.Prec,
				Assoc: alt.Assoc,
			})
		}
	}
}

func (b *builder) isTerminal(sym Symbol) bool {
	return int(sym) < b.t.terminals
}

func (b *builder) computeFirst() {
	t := b.t
	b.nullable = make([]bool, len(t.symbols))
	b.first = make([]bitset, len(t.symbols))
	for sym := range t.symbols {
		b.first[sym] = newBitset(t.terminals)
		if sym < t.terminals {
			b.first[sym].set(sym)
		}
	}

	for changed := true; changed; {
		changed = false
		for _, p := range b.prods[1:] {
			lhs := int(p.lhs)
			allNullable := true
			for _, sym := range p.rhs {
				if b.first[lhs].union(b.first[sym]) {
					changed = true
				}
				if !b.nullable[sym] {
					allNullable = false
					break
				}
			}
			if allNullable && !b.nullable[lhs] {
				b.nullable[lhs] = true
				changed = true
			}
		}
	}
}

func (b *builder) computeFollow() {
	t := b.t
	b.follow = make([]bitset, len(t.symbols)-t.terminals)
	for i := range b.follow {
		b.follow[i] = newBitset(t.terminals)
	}
	b.follow[int(t.start)-t.terminals].set(int(End))

	for changed := true; changed; {
		changed = false
		for _, p := range b.prods[1:] {
			for i, sym := range p.rhs {
				if b.isTerminal(sym) {
					continue
				}
				dst := b.follow[int(sym)-t.terminals]
				restNullable := true
				for _, next := range p.rhs[i+1:] {
					if dst.union(b.first[next]) {
						changed = true
					}
					if !b.nullable[next] {
						restNullable = false
						break
					}
				}
				if restNullable && dst.union(b.follow[int(p.lhs)-t.terminals]) {
					changed = true
				}
			}
		}
	}
}

func (b *builder) addStates() error {
	b.index = make(map[string]StateID)
	b.intern([]item{{prod: 0, dot: 0}})

	for i := 0; i < len(b.states); i++ {
		st := b.states[i]
		st.items = b.closure(st.kernel)

		kernels := make(map[Symbol][]item)
		var syms []Symbol
		for _, it := range st.items {
			rhs := b.prods[it.prod].rhs
			if int(it.dot) == len(rhs) {
				continue
			}
			sym := rhs[it.dot]
			if _, ok := kernels[sym]; !ok {
				syms = append(syms, sym)
			}
			kernels[sym] = append(kernels[sym], item{prod: it.prod, dot: it.dot + 1})
		}
		slices.Sort(syms)

		st.next = make(map[Symbol]StateID, len(syms))
		for _, sym := range syms {
			st.next[sym] = b.intern(kernels[sym])
		}
		if len(b.states) >= int(noState) {
			return fmt.Errorf("%w: more than %d states", ErrTooLarge, noState-1)
		}
	}
	b.t.states = len(b.states)
	return nil
}

// intern returns the state with the given kernel, creating it if needed.
func (b *builder) intern(kernel []item) StateID {
	slices.SortFunc(kernel, func(a, b item) int {
		if a.prod != b.prod {
			return int(a.prod) - int(b.prod)
		}
		return int(a.dot) - int(b.dot)
	})

	key := make([]byte, 0, len(kernel)*8)
	for _, it := range kernel {
		key = binary.LittleEndian.AppendUint32(key, it.prod)
		key = binary.LittleEndian.AppendUint32(key, it.dot)
	}
	if id, ok := b.index[string(key)]; ok {
		return id
	}

	id := StateID(len(b.states))
	b.index[string(key)] = id
	b.states = append(b.states, &state{kernel: kernel})
	return id
}

func (b *builder) closure(kernel []item) []item {
	items := slices.Clone(kernel)
	added := make(map[Symbol]bool)
	for i := 0; i < len(items); i++ {
		rhs := b.prods[items[i].prod].rhs
		if int(items[i].dot) == len(rhs) {
			continue
		}
		sym := rhs[items[i].dot]
		if b.isTerminal(sym) || added[sym] {
			continue
		}
		added[sym] = true
		for _, p := range b.byLHS[int(sym)-b.t.terminals] {
			items = append(items, item{prod: uint32(p)})
		}
	}
	return items
}

func (b *builder) addActions() {
	t := b.t
	nonterminals := len(t.symbols) - t.terminals
	t.actions = make([]Action, t.states*t.terminals)
	t.gotos = make([]StateID, t.states*nonterminals)
	for i := range t.gotos {
		t.gotos[i] = noState
	}

	shiftPrec := make([]int, t.terminals)
	reduces := make([][]int, t.terminals)
	for id, st := range b.states {
		row := t.actions[id*t.terminals : (id+1)*t.terminals]
		clear(shiftPrec)
		for i := range reduces {
			reduces[i] = reduces[i][:0]
		}

		for sym, next := range st.next {
			if b.isTerminal(sym) {
				row[sym] = Action{Kind: ActionShift, Target: uint16(next)}
			} else {
				t.gotos[id*nonterminals+int(sym)-t.terminals] = next
			}
		}

		for _, it := range st.items {
			p := b.prods[it.prod]
			if int(it.dot) < len(p.rhs) {
				b.addShiftPrec(shiftPrec, p, it)
				continue
			}
			if it.prod == 0 {
				row[End] = Action{Kind: ActionAccept}
				continue
			}
			for sym := range b.follow[int(p.lhs)-t.terminals].all() {
				reduces[sym] = append(reduces[sym], int(it.prod)-1)
			}
		}

		for sym, rules := range reduces {
			if len(rules) == 0 {
				continue
			}
			b.resolve(StateID(id), Symbol(sym), row, rules, shiftPrec[sym])
		}
	}
}

// addShiftPrec records p's precedence for every terminal that a shift
// continuing it can start with. A kernel item whose dot is before a
// nonterminal N continues through the terminals in FIRST(N): after
// `a "::" b`, a rule `a "::" b args` wants to shift the "(" that starts
// args. Closure items do not count; they have not started yet.
func (b *builder) addShiftPrec(shiftPrec []int, p prod, it item) {
	sym := p.rhs[it.dot]
	if b.isTerminal(sym) {
		shiftPrec[sym] = max(shiftPrec[sym], p.prec)
		return
	}
	if it.dot == 0 {
		return
	}
	for _, sym := range p.rhs[it.dot:] {
		for t := range b.first[sym].all() {
			shiftPrec[t] = max(shiftPrec[t], p.prec)
		}
		if b.isTerminal(sym) || !b.nullable[sym] {
			return
		}
	}
}

// resolve picks the action for one cell that has at least one reduction.
func (b *builder) resolve(id StateID, sym Symbol, row []Action, rules []int, shiftPrec int) {
	t := b.t
	rule := slices.Min(rules)
	if len(rules) > 1 {
		t.conflicts++
		log.Debugf("%s: state %d on %q: reduce/reduce between rules %v, using %d",
			t.name, id, t.symbols[sym].Name, rules, rule)
	}

	reduce := Action{Kind: ActionReduce, Target: uint16(rule)}
	switch cur := row[sym]; cur.Kind {
	case ActionError:
		row[sym] = reduce
	case ActionAccept:
		t.conflicts++
		log.Debugf("%s: state %d on %q: accept/reduce, accepting", t.name, id, t.symbols[sym].Name)
	case ActionShift:
		r := t.rules[rule]
		switch {
		case r.Prec > shiftPrec:
			row[sym] = reduce
		case r.Prec < shiftPrec:
		case r.Assoc == grammar.AssocLeft:
			row[sym] = reduce
		case r.Assoc == grammar.AssocRight:
		case r.Assoc == grammar.AssocNonassoc:
			row[sym] = Action{}
		default:
			t.conflicts++
			log.Debugf("%s: state %d on %q: shift/reduce with rule %d, shifting",
				t.name, id, t.symbols[sym].Name, rule)
		}
	}
}

func (b *builder) addModes() {
	t := b.t
	t.stateMode = make([]uint16, t.states)
	index := make(map[string]uint16)
	for id := range t.states {
		var mode []Symbol
		var key []byte
		for sym := int(Error) + 1; sym < t.terminals; sym++ {
			if t.actions[id*t.terminals+sym].Kind != ActionError {
				mode = append(mode, Symbol(sym))
				key = binary.LittleEndian.AppendUint16(key, uint16(sym))
			}
		}

		idx, ok := index[string(key)]
		if !ok {
			idx = uint16(len(t.modes))
			index[string(key)] = idx
			t.modes = append(t.modes, mode)
		}
		t.stateMode[id] = idx
	}
}

// bitset is a fixed-size set of small integers.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (s bitset) set(i int) {
	s[i/64] |= 1 << (i % 64)
}

// union adds the elements of other to s and reports whether s changed.
func (s bitset) union(other bitset) bool {
	changed := false
	for i, w := range other {
		if s[i]|w != s[i] {
			s[i] |= w
			changed = true
		}
	}
	return changed
}

// all yields the elements of s in increasing order.
func (s bitset) all() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i, w := range s {
			for w != 0 {
				bit := bits.TrailingZeros64(w)
				if !yield(i*64 + bit) {
					return
				}
				w &^= 1 << bit
			}
		}
	}
}
