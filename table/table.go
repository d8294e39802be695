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

// Package table contains the immutable parse table that drives the lexer and
// the parser: symbols, rules, actions, gotos and lex modes.
//
// A Table is built from a grammar with [Build], or decoded from its compiled
// form with [Decode]. Either way it is never mutated afterwards and may be
// shared by any number of concurrent parses.
package table

import (
	"fmt"
	"slices"

	"github.com/harehare/mqparse/grammar"
)

// Symbol identifies a terminal or nonterminal of one table.
//
// Terminals come first, starting with [End] and [Error]; nonterminals follow.
type Symbol uint16

const (
	// End is the end-of-input terminal.
	End Symbol = iota
	// Error is the symbol of error leaves and error nodes.
	Error
)

// StateID identifies a parser state.
type StateID uint16

// noState marks a missing goto entry.
const noState = ^StateID(0)

// ActionKind is the kind of an [Action].
type ActionKind uint8

const (
	ActionError ActionKind = iota
	ActionShift
	ActionReduce
	ActionAccept
)

// String implements [fmt.Stringer].
func (k ActionKind) String() string {
	switch k {
	case ActionError:
		return "error"
	case ActionShift:
		return "shift"
	case ActionReduce:
		return "reduce"
	case ActionAccept:
		return "accept"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is an entry of the action table.
type Action struct {
	Kind ActionKind
	// Target is the next state of a shift, or the rule index of a reduce.
	Target uint16
}

// String implements [fmt.Stringer].
func (a Action) String() string {
	switch a.Kind {
	case ActionShift:
		return fmt.Sprintf("s%d", a.Target)
	case ActionReduce:
		return fmt.Sprintf("r%d", a.Target)
	default:
		return a.Kind.String()
	}
}

// Rule is a production of the grammar.
type Rule struct {
	LHS   Symbol
	Arity int
	Prec  int
	Assoc grammar.Assoc
}

// SymbolInfo describes a symbol.
type SymbolInfo struct {
	Name     string
	Terminal bool
	// Named is false for literal tokens, which print quoted.
	Named  bool
	Hidden bool
	Extra  bool
}

// LexRule is a lexical rule. Rules are listed in definition order, which is
// the last tie breaker between matches.
type LexRule struct {
	Symbol  Symbol
	Pattern string
	// Literal rules match Pattern verbatim.
	Literal  bool
	Priority int
}

// Table is an immutable parse table.
type Table struct {
	name      string
	symbols   []SymbolInfo
	terminals int
	start     Symbol
	rules     []Rule
	states    int
	actions   []Action  // states × terminals
	gotos     []StateID // states × nonterminals
	stateMode []uint16
	modes     [][]Symbol
	lexRules  []LexRule
	extras    []Symbol
	conflicts int
}

// Name returns the name of the grammar the table was built from.
func (t *Table) Name() string { return t.name }

// SymbolCount returns the number of symbols, terminals included.
func (t *Table) SymbolCount() int { return len(t.symbols) }

// TerminalCount returns the number of terminals, [End] and [Error] included.
func (t *Table) TerminalCount() int { return t.terminals }

// StateCount returns the number of parser states.
func (t *Table) StateCount() int { return t.states }

// RuleCount returns the number of rules.
func (t *Table) RuleCount() int { return len(t.rules) }

// Conflicts returns the number of conflicts that had to be resolved without
// precedence information while building the table.
func (t *Table) Conflicts() int { return t.conflicts }

// Start returns the start symbol.
func (t *Table) Start() Symbol { return t.start }

// Symbol returns information about s.
func (t *Table) Symbol(s Symbol) SymbolInfo {
	if int(s) >= len(t.symbols) {
		return SymbolInfo{Name: fmt.Sprintf("<%d>", s)}
	}
	return t.symbols[s]
}

// IsTerminal returns whether s is a terminal.
func (t *Table) IsTerminal(s Symbol) bool { return int(s) < t.terminals }

// SymbolByName looks up a named symbol, or an anonymous literal token if
// no named symbol has that name.
func (t *Table) SymbolByName(name string) (Symbol, bool) {
	found := -1
	for i, info := range t.symbols {
		if info.Name != name {
			continue
		}
		if info.Named {
			return Symbol(i), true
		}
		if found < 0 {
			found = i
		}
	}
	return Symbol(found), found >= 0
}

// Rule returns the rule at index i.
func (t *Table) Rule(i int) Rule { return t.rules[i] }

// Action returns the action for the terminal sym in state.
func (t *Table) Action(state StateID, sym Symbol) Action {
	if int(state) >= t.states || int(sym) >= t.terminals {
		return Action{}
	}
	return t.actions[int(state)*t.terminals+int(sym)]
}

// Goto returns the state reached from state over the nonterminal sym.
func (t *Table) Goto(state StateID, sym Symbol) (StateID, bool) {
	nonterminals := len(t.symbols) - t.terminals
	idx := int(sym) - t.terminals
	if int(state) >= t.states || idx < 0 || idx >= nonterminals {
		return 0, false
	}
	next := t.gotos[int(state)*nonterminals+idx]
	return next, next != noState
}

// LexMode returns the index of the lex mode used in state.
func (t *Table) LexMode(state StateID) int {
	if int(state) >= t.states {
		return 0
	}
	return int(t.stateMode[state])
}

// ModeCount returns the number of distinct lex modes.
func (t *Table) ModeCount() int { return len(t.modes) }

// Mode returns the terminals valid in a lex mode, in symbol order. Extras are
// not included; they are valid everywhere.
func (t *Table) Mode(mode int) []Symbol {
	if mode < 0 || mode >= len(t.modes) {
		return nil
	}
	return t.modes[mode]
}

// LexRules returns the lexical rules in definition order.
func (t *Table) LexRules() []LexRule { return t.lexRules }

// Extras returns the extra terminals, such as whitespace and comments.
func (t *Table) Extras() []Symbol { return t.extras }

// Expected returns the terminals that have a non-error action in state.
func (t *Table) Expected(state StateID) []Symbol {
	var out []Symbol
	for sym := range t.terminals {
		if t.Action(state, Symbol(sym)).Kind != ActionError {
			out = append(out, Symbol(sym))
		}
	}
	return out
}

// computeDerived fills in the fields that follow from the encoded ones.
func (t *Table) computeDerived() {
	t.extras = t.extras[:0]
	for i, info := range t.symbols {
		if info.Extra {
			t.extras = append(t.extras, Symbol(i))
		}
	}
	t.extras = slices.Clip(t.extras)
}
