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
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harehare/mqparse/parser"
	"github.com/harehare/mqparse/reporter"
	"github.com/harehare/mqparse/tree"
)

// Parse parses text with lang. If prev is not nil, it is the tree of the
// previous version of text, with the edits since applied to it.
func Parse(lang *parser.Language, text []byte, prev *tree.Tree) (*tree.Tree, error) {
	return parser.New(lang, parser.Options{}).Parse(text, prev)
}

// ParseAll parses several texts in parallel.
func ParseAll(ctx context.Context, lang *parser.Language, texts [][]byte) ([]*tree.Tree, error) {
	b := Batch{Language: lang}
	return b.ParseAll(ctx, texts)
}

// Batch parses many documents of one language in parallel.
type Batch struct {
	// The language of the documents. This field is the only required field.
	Language *parser.Language
	// The maximum parallelism to use when parsing. If unspecified or set to
	// a non-positive value, then min(runtime.NumCPU(), runtime.GOMAXPROCS(-1))
	// will be used.
	MaxParallelism int
	// Options for each parse. The reporter, if any, is shared by all parses;
	// calls to it are serialized. Filenames is used in place of
	// Options.Filename when set.
	Options   parser.Options
	Filenames []string
}

// ParseAll parses texts and returns their trees in the same order. It stops
// at the first error, or when ctx is done.
func (b *Batch) ParseAll(ctx context.Context, texts [][]byte) ([]*tree.Tree, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	par := b.MaxParallelism
	if par <= 0 {
		par = min(runtime.GOMAXPROCS(-1), runtime.NumCPU())
	}

	opts := b.Options
	if opts.Reporter != nil {
		opts.Reporter = &syncReporter{rep: opts.Reporter}
	}

	trees := make([]*tree.Tree, len(texts))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(par)
	for i, text := range texts {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts := opts
			if i < len(b.Filenames) {
				opts.Filename = b.Filenames[i]
			}
			tr, err := parser.New(b.Language, opts).Parse(text, nil)
			trees[i] = tr
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

// syncReporter serializes calls to a reporter shared by concurrent parses.
type syncReporter struct {
	mu  sync.Mutex
	rep reporter.Reporter
}

func (r *syncReporter) Error(err reporter.ErrorWithPos) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rep.Error(err)
}

func (r *syncReporter) Warning(err reporter.ErrorWithPos) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rep.Warning(err)
}
