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

// Package grammar defines the declarative grammar format from which parse
// tables are built.
//
// A grammar is written in YAML:
//
//	name: arith
//	start: expr
//	extras: [whitespace]
//	tokens:
//	  - name: number
//	    pattern: '[0-9]+'
//	  - name: whitespace
//	    pattern: '\s+'
//	rules:
//	  expr:
//	    - expr "+" expr
//	    - {rhs: expr "*" expr, prec: 2, assoc: left}
//	    - number
//
// Each alternative is a space-separated list of symbols. Bare words name
// tokens or rules; Go-style double-quoted strings are literal tokens, which
// are anonymous in the resulting tree. An empty alternative derives the empty
// string. Rules whose name starts with an underscore are hidden: their
// children are spliced into the parent node.
package grammar

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidGrammar is returned for grammar sources that cannot be turned
// into a parse table.
var ErrInvalidGrammar = errors.New("invalid grammar")

// Assoc is the associativity of an alternative, used to resolve shift/reduce
// conflicts between alternatives of equal precedence.
type Assoc uint8

const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
	AssocNonassoc
)

// String implements [fmt.Stringer].
func (a Assoc) String() string {
	switch a {
	case AssocNone:
		return ""
	case AssocLeft:
		return "left"
	case AssocRight:
		return "right"
	case AssocNonassoc:
		return "nonassoc"
	default:
		return fmt.Sprintf("Assoc(%d)", uint8(a))
	}
}

// ParseAssoc is the inverse of [Assoc.String].
func ParseAssoc(s string) (Assoc, bool) {
	for a := AssocNone; a <= AssocNonassoc; a++ {
		if a.String() == s {
			return a, true
		}
	}
	return AssocNone, false
}

// Grammar is a validated grammar definition.
type Grammar struct {
	Name   string
	Start  string
	Extras []string
	Tokens []Token
	Rules  []Rule
}

// Token is a lexical rule matched by a regular expression.
type Token struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	// Priority breaks ties between matches of equal length. Higher wins.
	Priority int `yaml:"priority"`
}

// Rule is a nonterminal and its alternatives, in declaration order.
type Rule struct {
	Name         string
	Alternatives []Alternative
}

// Hidden returns whether the rule's nodes are spliced into their parents.
func (r Rule) Hidden() bool {
	return strings.HasPrefix(r.Name, "_")
}

// Alternative is one right-hand side of a rule.
type Alternative struct {
	Symbols []Ref
	Prec    int
	Assoc   Assoc
}

// Ref is a reference to a symbol from an alternative.
type Ref struct {
	Name string
	// Literal is set for quoted strings; Name is then the unquoted text.
	Literal bool
}

// String implements [fmt.Stringer].
func (r Ref) String() string {
	if r.Literal {
		return strconv.Quote(r.Name)
	}
	return r.Name
}

// String renders the alternative the way it is written in a grammar source.
func (a Alternative) String() string {
	var out strings.Builder
	for i, ref := range a.Symbols {
		if i > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(ref.String())
	}
	return out.String()
}

// source is the YAML shape of a grammar. Rules are decoded by hand so that
// their declaration order is kept.
type source struct {
	Name   string    `yaml:"name"`
	Start  string    `yaml:"start"`
	Extras []string  `yaml:"extras"`
	Tokens []Token   `yaml:"tokens"`
	Rules  yaml.Node `yaml:"rules"`
}

type altSource struct {
	RHS   string `yaml:"rhs"`
	Prec  int    `yaml:"prec"`
	Assoc string `yaml:"assoc"`
}

// Parse decodes and validates a YAML grammar source.
func Parse(data []byte) (*Grammar, error) {
	var src source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrammar, err)
	}

	g := &Grammar{
		Name:   src.Name,
		Start:  src.Start,
		Extras: src.Extras,
		Tokens: src.Tokens,
	}

	if src.Rules.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: rules must be a mapping", ErrInvalidGrammar)
	}
	for i := 0; i+1 < len(src.Rules.Content); i += 2 {
		key, value := src.Rules.Content[i], src.Rules.Content[i+1]
		rule, err := decodeRule(key, value)
		if err != nil {
			return nil, err
		}
		g.Rules = append(g.Rules, rule)
	}

	if g.Start == "" && len(g.Rules) > 0 {
		g.Start = g.Rules[0].Name
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// MustParse is like [Parse], but panics on error.
func MustParse(data string) *Grammar {
	g, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return g
}

func decodeRule(key, value *yaml.Node) (Rule, error) {
	rule := Rule{Name: key.Value}
	if value.Kind != yaml.SequenceNode {
		return rule, fmt.Errorf("%w: line %d: rule %q must be a list of alternatives",
			ErrInvalidGrammar, value.Line, rule.Name)
	}

	for _, item := range value.Content {
		var alt altSource
		switch item.Kind {
		case yaml.ScalarNode:
			alt.RHS = item.Value
		case yaml.MappingNode:
			if err := item.Decode(&alt); err != nil {
				return rule, fmt.Errorf("%w: line %d: %w", ErrInvalidGrammar, item.Line, err)
			}
		default:
			return rule, fmt.Errorf("%w: line %d: alternative of %q must be a string or a mapping",
				ErrInvalidGrammar, item.Line, rule.Name)
		}

		refs, err := ParseAlternative(alt.RHS)
		if err != nil {
			return rule, fmt.Errorf("%w: line %d: %w", ErrInvalidGrammar, item.Line, err)
		}
		assoc, ok := ParseAssoc(alt.Assoc)
		if !ok {
			return rule, fmt.Errorf("%w: line %d: unknown associativity %q",
				ErrInvalidGrammar, item.Line, alt.Assoc)
		}
		rule.Alternatives = append(rule.Alternatives, Alternative{
			Symbols: refs,
			Prec:    alt.Prec,
			Assoc:   assoc,
		})
	}
	return rule, nil
}

// ParseAlternative splits the right-hand side of an alternative into symbol
// references.
func ParseAlternative(rhs string) ([]Ref, error) {
	var refs []Ref
	for {
		rhs = strings.TrimLeft(rhs, " \t\r\n")
		if rhs == "" {
			return refs, nil
		}

		if rhs[0] == '"' || rhs[0] == '`' {
			quoted, err := strconv.QuotedPrefix(rhs)
			if err != nil {
				return nil, fmt.Errorf("bad literal in %q", rhs)
			}
			text, _ := strconv.Unquote(quoted)
			if text == "" {
				return nil, errors.New("empty literal")
			}
			refs = append(refs, Ref{Name: text, Literal: true})
			rhs = rhs[len(quoted):]
			continue
		}

		end := strings.IndexAny(rhs, " \t\r\n\"`")
		if end < 0 {
			end = len(rhs)
		}
		refs = append(refs, Ref{Name: rhs[:end]})
		rhs = rhs[end:]
	}
}

// Validate checks that every reference resolves and that tokens and rules
// are well-formed.
func (g *Grammar) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidGrammar, fmt.Sprintf(format, args...))
	}

	tokens := make(map[string]bool, len(g.Tokens))
	for _, tok := range g.Tokens {
		if tok.Name == "" {
			return bad("token without a name")
		}
		if tokens[tok.Name] {
			return bad("duplicate token %q", tok.Name)
		}
		tokens[tok.Name] = true
		if tok.Pattern == "" {
			return bad("token %q has no pattern", tok.Name)
		}
		if _, err := syntax.Parse(tok.Pattern, syntax.Perl); err != nil {
			return bad("token %q: %v", tok.Name, err)
		}
	}

	rules := make(map[string]bool, len(g.Rules))
	for _, rule := range g.Rules {
		switch {
		case rule.Name == "":
			return bad("rule without a name")
		case tokens[rule.Name]:
			return bad("%q is both a token and a rule", rule.Name)
		case rules[rule.Name]:
			return bad("duplicate rule %q", rule.Name)
		case len(rule.Alternatives) == 0:
			return bad("rule %q has no alternatives", rule.Name)
		}
		rules[rule.Name] = true
	}

	extras := make(map[string]bool, len(g.Extras))
	for _, name := range g.Extras {
		if !tokens[name] {
			return bad("extra %q is not a token", name)
		}
		extras[name] = true
	}

	switch {
	case !rules[g.Start]:
		return bad("start symbol %q is not a rule", g.Start)
	case strings.HasPrefix(g.Start, "_"):
		return bad("start symbol %q cannot be hidden", g.Start)
	}

	for _, rule := range g.Rules {
		for _, alt := range rule.Alternatives {
			for _, ref := range alt.Symbols {
				switch {
				case ref.Literal:
				case extras[ref.Name]:
					return bad("rule %q refers to extra %q", rule.Name, ref.Name)
				case !tokens[ref.Name] && !rules[ref.Name]:
					return bad("rule %q refers to undefined symbol %q", rule.Name, ref.Name)
				}
			}
		}
	}
	return nil
}

// Literals returns the distinct literal strings used by the rules, in order
// of first use.
func (g *Grammar) Literals() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rule := range g.Rules {
		for _, alt := range rule.Alternatives {
			for _, ref := range alt.Symbols {
				if ref.Literal && !seen[ref.Name] {
					seen[ref.Name] = true
					out = append(out, ref.Name)
				}
			}
		}
	}
	return out
}

// IsExtra returns whether name is one of the grammar's extras.
func (g *Grammar) IsExtra(name string) bool {
	return slices.Contains(g.Extras, name)
}
