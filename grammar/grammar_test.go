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

package grammar_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harehare/mqparse/grammar"
)

const arith = `
name: arith
extras: [ws]
tokens:
  - name: number
    pattern: '[0-9]+'
  - name: ws
    pattern: '\s+'
rules:
  expr:
    - {rhs: expr "+" expr, prec: 1, assoc: left}
    - {rhs: expr "*" expr, prec: 2, assoc: left}
    - '"(" expr ")"'
    - number
  _empty:
    - ""
`

func TestParse(t *testing.T) {
	t.Parallel()

	g, err := grammar.Parse([]byte(arith))
	require.NoError(t, err)

	assert.Equal(t, "arith", g.Name)
	assert.Equal(t, "expr", g.Start)
	assert.True(t, g.IsExtra("ws"))
	assert.False(t, g.IsExtra("number"))
	require.Len(t, g.Rules, 2)
	assert.Equal(t, "_empty", g.Rules[1].Name)
	assert.True(t, g.Rules[1].Hidden())
	assert.Empty(t, g.Rules[1].Alternatives[0].Symbols)

	want := []grammar.Alternative{
		{
			Symbols: []grammar.Ref{{Name: "expr"}, {Name: "+", Literal: true}, {Name: "expr"}},
			Prec:    1,
			Assoc:   grammar.AssocLeft,
		},
		{
			Symbols: []grammar.Ref{{Name: "expr"}, {Name: "*", Literal: true}, {Name: "expr"}},
			Prec:    2,
			Assoc:   grammar.AssocLeft,
		},
		{Symbols: []grammar.Ref{{Name: "(", Literal: true}, {Name: "expr"}, {Name: ")", Literal: true}}},
		{Symbols: []grammar.Ref{{Name: "number"}}},
	}
	if diff := cmp.Diff(want, g.Rules[0].Alternatives); diff != "" {
		t.Errorf("alternatives mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"+", "*", "(", ")"}, g.Literals())
	assert.Equal(t, `"(" expr ")"`, g.Rules[0].Alternatives[2].String())
}

func TestParseAlternative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rhs  string
		want []grammar.Ref
		err  bool
	}{
		{rhs: "", want: nil},
		{rhs: `a "b"c`, want: []grammar.Ref{{Name: "a"}, {Name: "b", Literal: true}, {Name: "c"}}},
		{rhs: `"\"" "\\"`, want: []grammar.Ref{{Name: `"`, Literal: true}, {Name: `\`, Literal: true}}},
		{rhs: "`|` x", want: []grammar.Ref{{Name: "|", Literal: true}, {Name: "x"}}},
		{rhs: `"unterminated`, err: true},
		{rhs: `""`, err: true},
	}
	for _, tt := range tests {
		got, err := grammar.ParseAlternative(tt.rhs)
		if tt.err {
			assert.Error(t, err, tt.rhs)
			continue
		}
		require.NoError(t, err, tt.rhs)
		assert.Equal(t, tt.want, got, tt.rhs)
	}
}

func TestInvalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"undefined": `
rules:
  a: [b]
`,
		"extra-in-rule": `
extras: [ws]
tokens: [{name: ws, pattern: '\s+'}]
rules:
  a: [ws]
`,
		"bad-pattern": `
tokens: [{name: x, pattern: '(('}]
rules:
  a: [x]
`,
		"hidden-start": `
rules:
  _a: ['"x"']
`,
		"token-and-rule": `
tokens: [{name: a, pattern: 'a'}]
rules:
  a: ['"x"']
`,
		"bad-assoc": `
rules:
  a: [{rhs: '"x"', assoc: up}]
`,
		"no-alternatives": `
rules:
  a: []
`,
		"not-a-mapping": `
rules: [a]
`,
		"missing-start": `
start: b
rules:
  a: ['"x"']
`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := grammar.Parse([]byte(src))
			assert.ErrorIs(t, err, grammar.ErrInvalidGrammar)
		})
	}
}

func TestAssoc(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "left", "right", "nonassoc"} {
		a, ok := grammar.ParseAssoc(s)
		assert.True(t, ok)
		assert.Equal(t, s, a.String())
	}
	_, ok := grammar.ParseAssoc("up")
	assert.False(t, ok)
}
