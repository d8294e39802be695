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


package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/harehare/mqparse/grammars/mq"
	"github.com/harehare/mqparse/parser"
	"github.com/harehare/mqparse/tree"
)

func loadPlus(t *testing.T) *parser.Language {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("testdata", "plus.yaml"))
	require.NoError(t, err)
	lang, err := parser.LoadGrammar(src)
	require.NoError(t, err)
	return lang
}

func pos(line, char int) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)}
}

func rangeChange(start, end protocol.Position, text string) protocol.TextDocumentContentChangeEvent {
	return protocol.TextDocumentContentChangeEvent{
		Range: &protocol.Range{Start: start, End: end},
		Text:  text,
	}
}

func TestPositions(t *testing.T) {
	t.Parallel()
	// The emoji is four bytes and two UTF-16 code units.
	text := []byte("a\U0001F600b\nxy")

	tests := []struct {
		pos    protocol.Position
		offset int
	}{
		{pos(0, 0), 0},
		{pos(0, 1), 1},
		{pos(0, 3), 5},
		{pos(0, 4), 6},
		{pos(1, 0), 7},
		{pos(1, 1), 8},
		{pos(1, 2), 9},
	}
	for _, test := range tests {
		assert.Equal(t, test.offset, offsetOf(text, test.pos), "offsetOf(%v)", test.pos)
		assert.Equal(t, test.pos, positionOf(text, test.offset), "positionOf(%d)", test.offset)
	}

	// Out of range positions are clamped.
	assert.Equal(t, 6, offsetOf(text, pos(0, 9)))
	assert.Equal(t, 9, offsetOf(text, pos(5, 0)))
	assert.Equal(t, 5, offsetOf(text, pos(0, 2)))
	assert.Equal(t, pos(1, 2), positionOf(text, 100))
}

func TestDiffEdit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		old, updated string
		want         tree.Edit
	}{
		{"abc", "abc", tree.Edit{StartByte: 3, OldEndByte: 3, NewEndByte: 3}},
		{"abc", "abXc", tree.Edit{StartByte: 2, OldEndByte: 2, NewEndByte: 3}},
		{"aaa", "aa", tree.Edit{StartByte: 2, OldEndByte: 3, NewEndByte: 2}},
		{"", "x", tree.Edit{StartByte: 0, OldEndByte: 0, NewEndByte: 1}},
		{"let x = 1", "let y = 1", tree.Edit{StartByte: 4, OldEndByte: 5, NewEndByte: 5}},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, diffEdit([]byte(test.old), []byte(test.updated)), "%q -> %q", test.old, test.updated)
	}
}

func TestWorkspace(t *testing.T) {
	t.Parallel()
	w := newWorkspace(loadPlus(t))
	const uri = "file:///plus.txt"

	diags, err := w.open(uri, []byte("a+a"))
	require.NoError(t, err)
	assert.Empty(t, diags)

	diags, err = w.change(uri, []any{rangeChange(pos(0, 1), pos(0, 2), "*")})
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.Equal(t, pos(0, 1), diags[0].Range.Start)
	assert.Equal(t, `unrecognized input: unrecognized character "*"`, diags[0].Message)
	require.NotNil(t, diags[0].Severity)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diags[0].Severity)

	text, tr, ok := w.text(uri)
	require.True(t, ok)
	assert.Equal(t, "a*a", string(text))
	assert.True(t, tr.HasError())

	diags, err = w.change(uri, []any{protocol.TextDocumentContentChangeEventWhole{Text: "a+a"}})
	require.NoError(t, err)
	assert.Empty(t, diags)

	// Several changes in one notification apply in order.
	diags, err = w.change(uri, []any{
		rangeChange(pos(0, 3), pos(0, 3), "+a"),
		rangeChange(pos(0, 1), pos(0, 4), "+"),
	})
	require.NoError(t, err)
	assert.Empty(t, diags)
	text, tr, ok = w.text(uri)
	require.True(t, ok)
	assert.Equal(t, "a+a", string(text))
	assert.False(t, tr.HasError())

	w.close(uri)
	_, _, ok = w.text(uri)
	assert.False(t, ok)
	_, err = w.change(uri, []any{protocol.TextDocumentContentChangeEventWhole{Text: "a"}})
	require.ErrorIs(t, err, errUnknownDocument)
}

func TestWorkspaceIncremental(t *testing.T) {
	t.Parallel()
	lang, err := mq.Load()
	require.NoError(t, err)
	w := newWorkspace(lang)
	const uri = "file:///prog.mq"
	src := "def double(x): x * 2;\nlet items = [1, 2, 3]\n.h1 | upcase()\n"

	diags, err := w.open(uri, []byte(src))
	require.NoError(t, err)
	assert.Empty(t, diags)

	col := strings.Index(src, "upcase") - strings.LastIndex(src[:strings.Index(src, "upcase")], "\n") - 1
	diags, err = w.change(uri, []any{rangeChange(pos(2, col), pos(2, col+len("upcase")), "downcase")})
	require.NoError(t, err)
	assert.Empty(t, diags)

	text, tr, ok := w.text(uri)
	require.True(t, ok)
	assert.Equal(t, strings.Replace(src, "upcase", "downcase", 1), string(text))
	assert.Positive(t, w.docs[uri].parser.Stats().Reused)

	fresh, err := parser.New(lang, parser.Options{}).Parse(text, nil)
	require.NoError(t, err)
	assert.Equal(t, fresh.DebugString(), tr.DebugString())
}

func TestPublish(t *testing.T) {
	t.Parallel()
	ls := newLanguageServer(loadPlus(t))

	var methods []string
	var published []protocol.PublishDiagnosticsParams
	ctx := &glsp.Context{Notify: func(method string, params any) {
		methods = append(methods, method)
		published = append(published, params.(protocol.PublishDiagnosticsParams))
	}}

	require.NoError(t, ls.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///a.txt", Text: "a+"},
	}))
	require.NoError(t, ls.textDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///a.txt"}},
		ContentChanges: []any{rangeChange(pos(0, 2), pos(0, 2), "a")},
	}))
	require.NoError(t, ls.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///a.txt"},
	}))

	require.Len(t, published, 3)
	for _, m := range methods {
		assert.Equal(t, protocol.ServerTextDocumentPublishDiagnostics, m)
	}
	assert.NotEmpty(t, published[0].Diagnostics)
	assert.Equal(t, "syntax error: unexpected end of input", published[0].Diagnostics[len(published[0].Diagnostics)-1].Message)
	assert.NotNil(t, published[1].Diagnostics)
	assert.Empty(t, published[1].Diagnostics)
	assert.Empty(t, published[2].Diagnostics)
}

func TestInitialize(t *testing.T) {
	t.Parallel()
	ls := newLanguageServer(loadPlus(t))
	res, err := ls.initialize(&glsp.Context{}, &protocol.InitializeParams{})
	require.NoError(t, err)
	result, ok := res.(protocol.InitializeResult)
	require.True(t, ok)
	opts, ok := result.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	require.NotNil(t, opts.Change)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, *opts.Change)
	assert.Equal(t, lsName, result.ServerInfo.Name)
}
