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

// Package mq provides the grammar of the mq language.
//
// The grammar covers modules, imports, definitions, bindings, conditionals,
// pattern matching, loops, blocks, pipes, operators, calls, selectors,
// function literals and the literal forms. String interpolation is not
// supported: interpolated strings need tokens that cannot be separated by
// whitespace, which the lexer has no way to express.
package mq

import (
	_ "embed"
	"slices"

	"github.com/harehare/mqparse/parser"
)

// Name is the name the grammar is registered under.
const Name = "mq"

//go:embed mq.yaml
var source []byte

// Source returns the YAML source of the grammar.
func Source() []byte {
	return slices.Clone(source)
}

// Load builds a language from the grammar.
func Load() (*parser.Language, error) {
	return parser.LoadGrammar(source)
}
