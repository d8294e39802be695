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
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/harehare/mqparse/parser"
	"github.com/harehare/mqparse/reporter"
	"github.com/harehare/mqparse/tree"
)

const lsName = "mqparse"

var (
	version = "devel"
	lspLog  = commonlog.GetLogger("mqparse.lsp")
)

// languageServer keeps a syntax tree for every open document and publishes
// its diagnostics after each change.
type languageServer struct {
	handler protocol.Handler
	server  *server.Server
	docs    *workspace
}

func newLanguageServer(lang *parser.Language) *languageServer {
	ls := &languageServer{docs: newWorkspace(lang)}
	ls.handler = protocol.Handler{
		Initialize:            ls.initialize,
		Initialized:           ls.initialized,
		Shutdown:              ls.shutdown,
		SetTrace:              ls.setTrace,
		TextDocumentDidOpen:   ls.textDocumentDidOpen,
		TextDocumentDidChange: ls.textDocumentDidChange,
		TextDocumentDidClose:  ls.textDocumentDidClose,
	}
	ls.server = server.NewServer(&ls.handler, lsName, false)
	return ls
}

func (ls *languageServer) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *languageServer) initialize(*glsp.Context, *protocol.InitializeParams) (any, error) {
	capabilities := ls.handler.CreateServerCapabilities()
	openClose := true
	change := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &change,
	}
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (ls *languageServer) initialized(*glsp.Context, *protocol.InitializedParams) error {
	return nil
}

func (ls *languageServer) shutdown(*glsp.Context) error {
	return nil
}

func (ls *languageServer) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *languageServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := params.TextDocument
	diags, err := ls.docs.open(doc.URI, []byte(doc.Text))
	if err != nil {
		return err
	}
	publish(ctx, doc.URI, diags)
	return nil
}

func (ls *languageServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	diags, err := ls.docs.change(uri, params.ContentChanges)
	if err != nil {
		return err
	}
	publish(ctx, uri, diags)
	return nil
}

func (ls *languageServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	ls.docs.close(uri)
	publish(ctx, uri, nil)
	return nil
}

func publish(ctx *glsp.Context, uri protocol.DocumentUri, diags []protocol.Diagnostic) {
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

var errUnknownDocument = errors.New("document is not open")

// workspace holds the open documents. It is safe for concurrent use.
type workspace struct {
	lang *parser.Language

	mu   sync.Mutex
	docs map[protocol.DocumentUri]*document
}

type document struct {
	text   []byte
	tree   *tree.Tree
	parser *parser.Parser
	errs   []reporter.ErrorWithPos
}

func newWorkspace(lang *parser.Language) *workspace {
	return &workspace{lang: lang, docs: make(map[protocol.DocumentUri]*document)}
}

func (w *workspace) open(uri protocol.DocumentUri, text []byte) ([]protocol.Diagnostic, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc := &document{text: text}
	doc.parser = parser.New(w.lang, parser.Options{
		Filename: string(uri),
		Reporter: reporter.Collector(&doc.errs, nil),
	})
	if err := doc.reparse(nil); err != nil {
		return nil, err
	}
	w.docs[uri] = doc
	return doc.diagnostics(), nil
}

// change applies a list of content changes, in order, and reparses the
// document once.
func (w *workspace) change(uri protocol.DocumentUri, changes []any) ([]protocol.Diagnostic, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc, ok := w.docs[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownDocument, uri)
	}
	prev, text := doc.tree, doc.text
	for _, c := range changes {
		e, repl, err := editFor(text, c)
		if err != nil {
			return nil, err
		}
		text = slices.Concat(text[:e.StartByte], repl, text[e.OldEndByte:])
		if prev == nil {
			continue
		}
		if prev, err = prev.Edit(e); err != nil {
			lspLog.Warningf("%s: %v; reparsing from scratch", uri, err)
		}
	}

	doc.text = text
	if err := doc.reparse(prev); err != nil {
		return nil, err
	}
	return doc.diagnostics(), nil
}

func (w *workspace) close(uri protocol.DocumentUri) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, uri)
}

func (w *workspace) text(uri protocol.DocumentUri) ([]byte, *tree.Tree, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[uri]
	if !ok {
		return nil, nil, false
	}
	return doc.text, doc.tree, true
}

func (d *document) reparse(prev *tree.Tree) error {
	d.errs = d.errs[:0]
	t, err := d.parser.Parse(d.text, prev)
	if err != nil {
		return err
	}
	d.tree = t
	s := d.parser.Stats()
	lspLog.Debugf("parsed %d bytes: lexed %d tokens, reused %d subtrees, %d recoveries",
		len(d.text), s.Lexed, s.Reused, s.Recoveries)
	return nil
}

func (d *document) diagnostics() []protocol.Diagnostic {
	diags := make([]protocol.Diagnostic, 0, len(d.errs))
	source := lsName
	severity := protocol.DiagnosticSeverityError
	for _, err := range d.errs {
		pos := positionOf(d.text, err.GetPosition().Offset)
		diags = append(diags, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  err.Unwrap().Error(),
		})
	}
	return diags
}

// editFor returns the edit a content change makes to text, and the bytes
// it inserts.
func editFor(text []byte, change any) (tree.Edit, []byte, error) {
	var repl []byte
	switch c := change.(type) {
	case protocol.TextDocumentContentChangeEvent:
		repl = []byte(c.Text)
		if c.Range != nil {
			start, end := offsetOf(text, c.Range.Start), offsetOf(text, c.Range.End)
			if end < start {
				start, end = end, start
			}
			return tree.Edit{StartByte: start, OldEndByte: end, NewEndByte: start + len(repl)}, repl, nil
		}
	case protocol.TextDocumentContentChangeEventWhole:
		repl = []byte(c.Text)
	default:
		return tree.Edit{}, nil, fmt.Errorf("unsupported content change %T", change)
	}
	e := diffEdit(text, repl)
	return e, repl[e.StartByte:e.NewEndByte], nil
}

// diffEdit describes replacing old with updated as a single edit spanning
// everything between their common prefix and common suffix.
func diffEdit(old, updated []byte) tree.Edit {
	prefix := 0
	for prefix < len(old) && prefix < len(updated) && old[prefix] == updated[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(updated)-prefix &&
		old[len(old)-1-suffix] == updated[len(updated)-1-suffix] {
		suffix++
	}
	return tree.Edit{
		StartByte:  prefix,
		OldEndByte: len(old) - suffix,
		NewEndByte: len(updated) - suffix,
	}
}

// offsetOf converts an LSP position, whose character counts UTF-16 code
// units, to a byte offset in text. Positions past the end of a line or of
// the text are clamped.
func offsetOf(text []byte, pos protocol.Position) int {
	offset := 0
	for range pos.Line {
		i := bytes.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
	}
	for units := int(pos.Character); units > 0 && offset < len(text); {
		r, size := utf8.DecodeRune(text[offset:])
		if r == '\n' {
			break
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units -= n
		offset += size
	}
	return offset
}

// positionOf converts a byte offset in text to an LSP position.
func positionOf(text []byte, offset int) protocol.Position {
	offset = max(0, min(offset, len(text)))
	before := text[:offset]
	line := bytes.Count(before, []byte{'\n'})
	lineStart := bytes.LastIndexByte(before, '\n') + 1
	var units int
	for _, r := range string(before[lineStart:]) {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(units)}
}
