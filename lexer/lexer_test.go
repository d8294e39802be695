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

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harehare/mqparse/grammar"
	"github.com/harehare/mqparse/lexer"
	"github.com/harehare/mqparse/table"
)

const lexGrammar = `
name: lex
extras: [ws, comment]
tokens:
  - {name: ident, pattern: '[a-z_][a-z0-9_]*'}
  - {name: number, pattern: '[0-9]+(\.[0-9]+)?'}
  - {name: upper, pattern: '[A-Z]+'}
  - {name: pi, pattern: 'PI', priority: 2}
  - {name: ws, pattern: '\s+'}
  - {name: comment, pattern: '#.*'}
rules:
  prog: ['stmt', 'prog stmt']
  stmt: ['"def" ident', 'ident "=" number', 'upper', 'pi']
`

func newLexer(t *testing.T) (*lexer.Lexer, *table.Table) {
	t.Helper()
	tab, err := table.Build(grammar.MustParse(lexGrammar))
	require.NoError(t, err)
	l, err := lexer.New(tab)
	require.NoError(t, err)
	return l, tab
}

func TestNext(t *testing.T) {
	t.Parallel()
	l, tab := newLexer(t)
	sym := func(name string) table.Symbol {
		s, ok := tab.SymbolByName(name)
		require.True(t, ok, name)
		return s
	}

	tests := []struct {
		name string
		src  string
		pos  int
		want lexer.Token
	}{
		{
			name: "keyword-beats-identifier",
			src:  "def x",
			want: lexer.Token{Symbol: sym("def"), Start: 0, End: 3, Lookahead: 4},
		},
		{
			name: "longest-match",
			src:  "define",
			want: lexer.Token{Symbol: sym("ident"), Start: 0, End: 6, Lookahead: 7},
		},
		{
			name: "lookahead",
			src:  "abc d",
			want: lexer.Token{Symbol: sym("ident"), Start: 0, End: 3, Lookahead: 4},
		},
		{
			name: "priority",
			src:  "PI",
			want: lexer.Token{Symbol: sym("pi"), Start: 0, End: 2, Lookahead: 3},
		},
		{
			name: "extra",
			src:  "  \t\nx",
			want: lexer.Token{Symbol: sym("ws"), Start: 0, End: 4, Lookahead: 5},
		},
		{
			name: "comment-stops-at-newline",
			src:  "# hi\nx",
			want: lexer.Token{Symbol: sym("comment"), Start: 0, End: 4, Lookahead: 5},
		},
		{
			name: "invalid-token-still-lexed",
			src:  "1.5",
			want: lexer.Token{Symbol: sym("number"), Start: 0, End: 3, Lookahead: 4},
		},
		{
			name: "partial-fraction",
			src:  "1.x",
			want: lexer.Token{Symbol: sym("number"), Start: 0, End: 1, Lookahead: 3},
		},
		{
			name: "noise",
			src:  "$$",
			want: lexer.Token{Symbol: table.Error, Start: 0, End: 1, Lookahead: 1, IsError: true},
		},
		{
			name: "noise-in-rune",
			src:  "é",
			want: lexer.Token{Symbol: table.Error, Start: 0, End: 1, Lookahead: 2, IsError: true},
		},
		{
			name: "offset",
			src:  "x = 12",
			pos:  4,
			want: lexer.Token{Symbol: sym("number"), Start: 4, End: 6, Lookahead: 7},
		},
		{
			name: "end",
			src:  "x",
			pos:  1,
			want: lexer.Token{Symbol: table.End, Start: 1, End: 1, Lookahead: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := l.Next([]byte(tt.src), tt.pos, 0)
			tt.want.Mode = tab.LexMode(0)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextSensitive(t *testing.T) {
	t.Parallel()
	l, tab := newLexer(t)
	def, _ := tab.SymbolByName("def")
	ident, _ := tab.SymbolByName("ident")

	src := []byte("def")
	assert.Equal(t, def, l.Next(src, 0, 0).Symbol)

	// After "def" only an identifier is expected, so the same bytes are one.
	afterDef := tab.Action(0, def)
	require.Equal(t, table.ActionShift, afterDef.Kind)
	tok := l.Next(src, 0, table.StateID(afterDef.Target))
	assert.Equal(t, ident, tok.Symbol)
	assert.Equal(t, 3, tok.Len())
}

func TestCoverage(t *testing.T) {
	t.Parallel()
	l, _ := newLexer(t)

	src := []byte("def x # c\n y = 1.25 $ PI ÄBC")
	var toks []lexer.Token
	for pos := 0; ; {
		tok := l.Next(src, pos, 0)
		if tok.Symbol == table.End {
			break
		}
		require.Equal(t, pos, tok.Start)
		require.Greater(t, tok.End, tok.Start)
		require.GreaterOrEqual(t, tok.Lookahead, tok.End)
		toks = append(toks, tok)
		pos = tok.End
	}
	assert.Equal(t, len(src), toks[len(toks)-1].End)
}

func TestBadPattern(t *testing.T) {
	t.Parallel()
	// Invalid patterns are rejected before a lexer is ever built.
	_, err := grammar.Parse([]byte(`
tokens: [{name: x, pattern: 'a{2,1}'}]
rules:
  s: [x]
`))
	assert.ErrorIs(t, err, grammar.ErrInvalidGrammar)
}
