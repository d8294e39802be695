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
	"maps"
	"slices"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/harehare/mqparse/grammars/mq"
	"github.com/harehare/mqparse/parser"
)

var log = commonlog.GetLogger("mqparse.registry")

var (
	// ErrGrammarNotFound is returned when no loader knows a grammar name.
	ErrGrammarNotFound = errors.New("grammar not found")
	// ErrGrammarExists is returned when registering a name twice.
	ErrGrammarExists = errors.New("grammar already registered")
)

// Default is the registry used by [Load]. The mq grammar is registered in
// it under [mq.Name].
var Default = newDefault()

func newDefault() *Registry {
	r := new(Registry)
	if err := r.Register(mq.Name, LoaderFunc(func(string) (*parser.Language, error) {
		return mq.Load()
	})); err != nil {
		panic(err)
	}
	return r
}

// Registry maps grammar names to languages.
//
// Languages are loaded on first use and cached; concurrent loads of the same
// name share one call to its loader. A Registry is safe for concurrent use.
// The zero value is an empty registry.
type Registry struct {
	// Fallback, if set, is consulted for names that were not registered.
	Fallback Loader

	mu      sync.Mutex
	loaders map[string]Loader
	langs   map[string]*parser.Language
	group   singleflight.Group
}

// Register adds a loader for name.
func (r *Registry) Register(name string, l Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.loaders[name]; ok {
		return fmt.Errorf("%w: %q", ErrGrammarExists, name)
	}
	if r.loaders == nil {
		r.loaders = make(map[string]Loader)
	}
	r.loaders[name] = l
	return nil
}

// RegisterGrammar registers a YAML grammar source under name.
func (r *Registry) RegisterGrammar(name string, src []byte) error {
	return r.Register(name, GrammarLoader(src))
}

// RegisterCompiled registers a compiled parse table under name.
func (r *Registry) RegisterCompiled(name string, data []byte) error {
	return r.Register(name, CompiledLoader(data))
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.loaders))
}

// Load returns the language for name, loading it if needed. Failed loads are
// not cached.
func (r *Registry) Load(name string) (*parser.Language, error) {
	r.mu.Lock()
	if lang, ok := r.langs[name]; ok {
		r.mu.Unlock()
		return lang, nil
	}
	l, ok := r.loaders[name]
	if !ok {
		l = r.Fallback
	}
	r.mu.Unlock()

	if l == nil {
		return nil, fmt.Errorf("%w: %q", ErrGrammarNotFound, name)
	}

	v, err, shared := r.group.Do(name, func() (any, error) {
		r.mu.Lock()
		lang, ok := r.langs[name]
		r.mu.Unlock()
		if ok {
			return lang, nil
		}

		log.Debugf("loading grammar %q", name)
		lang, err := l.LoadLanguage(name)
		if err != nil {
			return nil, err
		}
		if lang.Name() != name {
			log.Infof("grammar %q is named %q", name, lang.Name())
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.langs == nil {
			r.langs = make(map[string]*parser.Language)
		}
		r.langs[name] = lang
		return lang, nil
	})
	if err != nil {
		if errors.Is(err, ErrGrammarNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading grammar %q: %w", name, err)
	}
	if shared {
		log.Debugf("grammar %q loaded by a concurrent call", name)
	}
	return v.(*parser.Language), nil //nolint:errcheck // Always a *parser.Language.
}

// Load returns the language for name from the [Default] registry.
func Load(name string) (*parser.Language, error) {
	return Default.Load(name)
}
