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

// Package mqparse is an incremental parsing engine for the mq language.
//
// A grammar is turned into an immutable parse table, either built in memory
// from its YAML source or decoded from a compiled file. A parser drives a
// context-sensitive lexer and the table's shift/reduce automaton to produce a
// concrete syntax tree. Malformed input never stops a parse: the parser
// recovers and records what it could not parse as error nodes.
//
// Trees are immutable and share nodes. To reparse after an edit, apply the
// edit to the old tree with [tree.Tree.Edit] and pass the result to the
// parser along with the new text; subtrees the edit did not touch are reused,
// and the result is the same tree a parse from scratch would produce.
//
// The sub-packages hold the phases and their models:
//   - grammar: grammar definitions.
//     Also see: grammar.Parse
//   - table: parse tables and their binary format.
//     Also see: table.Build, table.Decode
//   - lexer: tokenization.
//   - tree: nodes, trees, edits and cursors.
//   - parser: the parsing engine and diagnostics.
//     Also see: parser.Parser.Parse, parser.Diagnose
//
// This package provides a registry of grammars by name, with the mq grammar
// pre-registered, and entry points that parse documents in parallel.
//
// # Loaders
//
// A [Loader] is how a [Registry] obtains the language for a name. Loaders can
// build a grammar from source ([GrammarLoader]), decode a compiled table
// ([CompiledLoader]), search directories for either ([SourceLoader]), or
// combine other loaders ([CompositeLoader]).
package mqparse
