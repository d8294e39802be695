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

// Package parser contains the table-driven parsing engine.
//
// The engine is a shift/reduce automaton over a [table.Table], fed by a
// context-sensitive [lexer.Lexer]. It never fails on malformed input: errors
// are recovered from locally and represented in the resulting tree as error
// nodes. Given the tree of a previous version of the source, with the edits
// since applied through [tree.Tree.Edit], it reuses the subtrees the edits
// did not touch.
package parser

import (
	"fmt"

	"github.com/harehare/mqparse/grammar"
	"github.com/harehare/mqparse/lexer"
	"github.com/harehare/mqparse/table"
)

// Language is a loaded grammar: its parse table and lexer. A Language is
// immutable and may be shared by any number of parsers.
type Language struct {
	name  string
	table *table.Table
	lexer *lexer.Lexer
}

// NewLanguage prepares a parse table for parsing.
func NewLanguage(t *table.Table) (*Language, error) {
	lex, err := lexer.New(t)
	if err != nil {
		return nil, fmt.Errorf("language %q: %w", t.Name(), err)
	}
	return &Language{name: t.Name(), table: t, lexer: lex}, nil
}

// LoadGrammar builds a language from a YAML grammar source.
func LoadGrammar(src []byte) (*Language, error) {
	g, err := grammar.Parse(src)
	if err != nil {
		return nil, err
	}
	t, err := table.Build(g)
	if err != nil {
		return nil, err
	}
	return NewLanguage(t)
}

// LoadCompiled builds a language from a compiled parse table.
func LoadCompiled(data []byte) (*Language, error) {
	t, err := table.Decode(data)
	if err != nil {
		return nil, err
	}
	return NewLanguage(t)
}

// Name returns the language's name.
func (l *Language) Name() string { return l.name }

// Table returns the language's parse table.
func (l *Language) Table() *table.Table { return l.table }

// Lexer returns the language's lexer.
func (l *Language) Lexer() *lexer.Lexer { return l.lexer }
