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
	"errors"
	"fmt"
	"math"
	"regexp/syntax"

	"github.com/Masterminds/semver/v3"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/harehare/mqparse/grammar"
)

// FormatVersion is the version of the compiled table format written by
// [Table.MarshalBinary].
const FormatVersion = "1.0.0"

// ErrCorruptTable is returned by [Decode] for data that is not a valid
// compiled table.
var ErrCorruptTable = errors.New("corrupt parse table")

// supported is the range of format versions [Decode] accepts.
var supported = func() *semver.Constraints {
	c, err := semver.NewConstraint("^1.0.0")
	if err != nil {
		panic(err)
	}
	return c
}()

// Field numbers of the compiled format. The encoding is the protobuf wire
// format, so unknown fields written by newer minor versions are skipped.
const (
	fieldVersion   protowire.Number = 1
	fieldName      protowire.Number = 2
	fieldSymbol    protowire.Number = 3
	fieldTerminals protowire.Number = 4
	fieldStart     protowire.Number = 5
	fieldRule      protowire.Number = 6
	fieldStates    protowire.Number = 7
	fieldActions   protowire.Number = 8
	fieldGotos     protowire.Number = 9
	fieldStateMode protowire.Number = 10
	fieldMode      protowire.Number = 11
	fieldLexRule   protowire.Number = 12
	fieldConflicts protowire.Number = 13
)

const (
	flagTerminal = 1 << iota
	flagNamed
	flagHidden
	flagExtra
)

// MarshalBinary encodes the table in its compiled form.
//
// The output depends only on the table's contents, so building the same
// grammar twice yields identical bytes.
func (t *Table) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, fieldVersion, FormatVersion)
	b = appendString(b, fieldName, t.name)

	for _, info := range t.symbols {
		var flags uint64
		for bit, set := range []bool{info.Terminal, info.Named, info.Hidden, info.Extra} {
			if set {
				flags |= 1 << bit
			}
		}
		var msg []byte
		msg = appendString(msg, 1, info.Name)
		msg = appendVarint(msg, 2, flags)
		b = appendBytes(b, fieldSymbol, msg)
	}

	b = appendVarint(b, fieldTerminals, uint64(t.terminals))
	b = appendVarint(b, fieldStart, uint64(t.start))

	for _, r := range t.rules {
		var msg []byte
		msg = appendVarint(msg, 1, uint64(r.LHS))
		msg = appendVarint(msg, 2, uint64(r.Arity))
		msg = appendVarint(msg, 3, protowire.EncodeZigZag(int64(r.Prec)))
		msg = appendVarint(msg, 4, uint64(r.Assoc))
		b = appendBytes(b, fieldRule, msg)
	}

	b = appendVarint(b, fieldStates, uint64(t.states))
	b = appendPacked(b, fieldActions, len(t.actions), func(i int) uint64 {
		return uint64(t.actions[i].Kind) | uint64(t.actions[i].Target)<<2
	})
	b = appendPacked(b, fieldGotos, len(t.gotos), func(i int) uint64 {
		return uint64(t.gotos[i] + 1) // noState wraps to 0.
	})
	b = appendPacked(b, fieldStateMode, len(t.stateMode), func(i int) uint64 {
		return uint64(t.stateMode[i])
	})
	for _, mode := range t.modes {
		b = appendPacked(b, fieldMode, len(mode), func(i int) uint64 {
			return uint64(mode[i])
		})
	}

	for _, r := range t.lexRules {
		var msg []byte
		msg = appendVarint(msg, 1, uint64(r.Symbol))
		msg = appendString(msg, 2, r.Pattern)
		if r.Literal {
			msg = appendVarint(msg, 3, 1)
		}
		msg = appendVarint(msg, 4, protowire.EncodeZigZag(int64(r.Priority)))
		b = appendBytes(b, fieldLexRule, msg)
	}

	b = appendVarint(b, fieldConflicts, uint64(t.conflicts))
	return b, nil
}

// Decode parses a compiled table produced by [Table.MarshalBinary].
func Decode(data []byte) (*Table, error) {
	t := new(Table)
	var version string
	var err error
	fields(data, &err, func(num protowire.Number, v value) {
		switch num {
		case fieldVersion:
			version = v.string(&err)
		case fieldName:
			t.name = v.string(&err)
		case fieldSymbol:
			var info SymbolInfo
			fields(v.bytes(&err), &err, func(num protowire.Number, v value) {
				switch num {
				case 1:
					info.Name = v.string(&err)
				case 2:
					flags := v.varint(&err)
					info.Terminal = flags&flagTerminal != 0
					info.Named = flags&flagNamed != 0
					info.Hidden = flags&flagHidden != 0
					info.Extra = flags&flagExtra != 0
				}
			})
			t.symbols = append(t.symbols, info)
		case fieldTerminals:
			t.terminals = int(v.varint(&err))
		case fieldStart:
			t.start = Symbol(v.varint(&err))
		case fieldRule:
			var r Rule
			fields(v.bytes(&err), &err, func(num protowire.Number, v value) {
				switch num {
				case 1:
					r.LHS = Symbol(v.varint(&err))
				case 2:
					r.Arity = int(v.varint(&err))
				case 3:
					r.Prec = int(protowire.DecodeZigZag(v.varint(&err)))
				case 4:
					r.Assoc = grammar.Assoc(v.varint(&err))
				}
			})
			t.rules = append(t.rules, r)
		case fieldStates:
			t.states = int(v.varint(&err))
		case fieldActions:
			for _, n := range v.packed(&err) {
				t.actions = append(t.actions, Action{Kind: ActionKind(n & 3), Target: uint16(n >> 2)})
			}
		case fieldGotos:
			for _, n := range v.packed(&err) {
				t.gotos = append(t.gotos, StateID(n)-1)
			}
		case fieldStateMode:
			for _, n := range v.packed(&err) {
				t.stateMode = append(t.stateMode, uint16(n))
			}
		case fieldMode:
			var mode []Symbol
			for _, n := range v.packed(&err) {
				mode = append(mode, Symbol(n))
			}
			t.modes = append(t.modes, mode)
		case fieldLexRule:
			var r LexRule
			fields(v.bytes(&err), &err, func(num protowire.Number, v value) {
				switch num {
				case 1:
					r.Symbol = Symbol(v.varint(&err))
				case 2:
					r.Pattern = v.string(&err)
				case 3:
					r.Literal = v.varint(&err) != 0
				case 4:
					r.Priority = int(protowire.DecodeZigZag(v.varint(&err)))
				}
			})
			t.lexRules = append(t.lexRules, r)
		case fieldConflicts:
			t.conflicts = int(v.varint(&err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptTable, err)
	}

	if version == "" {
		return nil, fmt.Errorf("%w: missing format version", ErrCorruptTable)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("%w: format version %q: %w", ErrCorruptTable, version, err)
	}
	if !supported.Check(v) {
		return nil, fmt.Errorf("%w: unsupported format version %s, want %s", ErrCorruptTable, v, supported)
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptTable, err)
	}
	t.computeDerived()
	return t, nil
}

// validate checks that every index in the table is in range, so that lookups
// on a decoded table never panic.
func (t *Table) validate() error {
	nonterminals := len(t.symbols) - t.terminals
	switch {
	case t.terminals < 2 || nonterminals < 1:
		return fmt.Errorf("%d symbols with %d terminals", len(t.symbols), t.terminals)
	case t.states < 1 || t.states >= int(noState):
		return fmt.Errorf("%d states", t.states)
	case int(t.start) < t.terminals || int(t.start) >= len(t.symbols):
		return fmt.Errorf("start symbol %d is not a nonterminal", t.start)
	case len(t.actions) != t.states*t.terminals:
		return fmt.Errorf("%d actions for %d states", len(t.actions), t.states)
	case len(t.gotos) != t.states*nonterminals:
		return fmt.Errorf("%d gotos for %d states", len(t.gotos), t.states)
	case len(t.stateMode) != t.states:
		return fmt.Errorf("%d lex modes for %d states", len(t.stateMode), t.states)
	}

	for i, info := range t.symbols {
		if info.Terminal != (i < t.terminals) {
			return fmt.Errorf("symbol %d (%q) is misplaced", i, info.Name)
		}
	}
	for i, r := range t.rules {
		if int(r.LHS) < t.terminals || int(r.LHS) >= len(t.symbols) ||
			r.Arity < 0 || r.Arity > math.MaxUint16 || r.Assoc > grammar.AssocNonassoc {
			return fmt.Errorf("rule %d is malformed", i)
		}
	}
	for i, a := range t.actions {
		switch {
		case a.Kind == ActionShift && int(a.Target) >= t.states,
			a.Kind == ActionReduce && int(a.Target) >= len(t.rules):
			return fmt.Errorf("action %d targets %v", i, a)
		}
	}
	for i, next := range t.gotos {
		if next != noState && int(next) >= t.states {
			return fmt.Errorf("goto %d targets state %d", i, next)
		}
	}
	for i, mode := range t.stateMode {
		if int(mode) >= len(t.modes) {
			return fmt.Errorf("state %d uses lex mode %d", i, mode)
		}
	}
	for i, mode := range t.modes {
		for _, sym := range mode {
			if int(sym) >= t.terminals {
				return fmt.Errorf("lex mode %d contains nonterminal %d", i, sym)
			}
		}
	}
	for i, r := range t.lexRules {
		if int(r.Symbol) <= int(Error) || int(r.Symbol) >= t.terminals {
			return fmt.Errorf("lex rule %d is for symbol %d", i, r.Symbol)
		}
		if !r.Literal {
			if _, err := syntax.Parse(r.Pattern, syntax.Perl); err != nil {
				return fmt.Errorf("lex rule %d: %w", i, err)
			}
		} else if r.Pattern == "" {
			return fmt.Errorf("lex rule %d is an empty literal", i)
		}
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendPacked(b []byte, num protowire.Number, n int, get func(int) uint64) []byte {
	var packed []byte
	for i := range n {
		packed = protowire.AppendVarint(packed, get(i))
	}
	return appendBytes(b, num, packed)
}

// value is a field value that has not been interpreted yet.
type value struct {
	typ protowire.Type
	raw []byte
}

func (v value) varint(err *error) uint64 {
	if v.typ != protowire.VarintType {
		setErr(err, fmt.Errorf("expected varint, got wire type %d", v.typ))
		return 0
	}
	n, m := protowire.ConsumeVarint(v.raw)
	if m < 0 {
		setErr(err, protowire.ParseError(m))
	}
	return n
}

func (v value) bytes(err *error) []byte {
	if v.typ != protowire.BytesType {
		setErr(err, fmt.Errorf("expected bytes, got wire type %d", v.typ))
		return nil
	}
	b, m := protowire.ConsumeBytes(v.raw)
	if m < 0 {
		setErr(err, protowire.ParseError(m))
	}
	return b
}

func (v value) string(err *error) string {
	return string(v.bytes(err))
}

func (v value) packed(err *error) []uint64 {
	b := v.bytes(err)
	var out []uint64
	for len(b) > 0 {
		n, m := protowire.ConsumeVarint(b)
		if m < 0 {
			setErr(err, protowire.ParseError(m))
			return out
		}
		out = append(out, n)
		b = b[m:]
	}
	return out
}

// fields calls f for each field of a message, stopping at the first error.
func fields(b []byte, err *error, f func(protowire.Number, value)) {
	for len(b) > 0 && *err == nil {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			setErr(err, protowire.ParseError(n))
			return
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			setErr(err, protowire.ParseError(m))
			return
		}
		f(num, value{typ: typ, raw: b[n : n+m]})
		b = b[n+m:]
	}
}

func setErr(err *error, e error) {
	if *err == nil {
		*err = e
	}
}
