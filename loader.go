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

package mqparse

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/harehare/mqparse/parser"
)

// Extensions of the files a [SourceLoader] looks for.
const (
	GrammarExtension  = ".yaml"
	CompiledExtension = ".mqpt"
)

// Loader produces the language for a grammar name.
type Loader interface {
	LoadLanguage(name string) (*parser.Language, error)
}

// LoaderFunc is a simple function type that implements [Loader].
type LoaderFunc func(name string) (*parser.Language, error)

var _ Loader = LoaderFunc(nil)

// LoadLanguage implements [Loader].
func (f LoaderFunc) LoadLanguage(name string) (*parser.Language, error) {
	return f(name)
}

// GrammarLoader returns a loader that builds a language from a YAML grammar
// source.
func GrammarLoader(src []byte) Loader {
	return LoaderFunc(func(string) (*parser.Language, error) {
		return parser.LoadGrammar(src)
	})
}

// CompiledLoader returns a loader that decodes a compiled parse table.
func CompiledLoader(data []byte) Loader {
	return LoaderFunc(func(string) (*parser.Language, error) {
		return parser.LoadCompiled(data)
	})
}

// CompositeLoader is a slice of loaders, consulted in order. The first one
// to find the grammar wins.
type CompositeLoader []Loader

var _ Loader = CompositeLoader(nil)

// LoadLanguage implements [Loader]. If no loader finds the grammar, the
// error of the first one is returned.
func (c CompositeLoader) LoadLanguage(name string) (*parser.Language, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrGrammarNotFound, name)
	}
	var firstErr error
	for _, l := range c {
		lang, err := l.LoadLanguage(name)
		if err == nil {
			return lang, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// SourceLoader loads grammars from files: a compiled table named
// name+[CompiledExtension], or else a grammar named name+[GrammarExtension].
type SourceLoader struct {
	// Directories to search, in order. If empty, names are resolved relative
	// to the working directory.
	SearchPaths []string
	// Opens files. If nil, files are opened with [os.Open].
	Accessor func(path string) (io.ReadCloser, error)
}

var _ Loader = (*SourceLoader)(nil)

// LoadLanguage implements [Loader].
func (s *SourceLoader) LoadLanguage(name string) (*parser.Language, error) {
	dirs := s.SearchPaths
	if len(dirs) == 0 {
		dirs = []string{""}
	}
	for _, dir := range dirs {
		base := filepath.Join(dir, name)
		data, err := s.read(base + CompiledExtension)
		if err == nil {
			return parser.LoadCompiled(data)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		data, err = s.read(base + GrammarExtension)
		if err == nil {
			return parser.LoadGrammar(data)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrGrammarNotFound, name)
}

func (s *SourceLoader) read(path string) ([]byte, error) {
	open := s.Accessor
	if open == nil {
		open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
