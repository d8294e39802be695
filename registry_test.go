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

package mqparse_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harehare/mqparse"
	"github.com/harehare/mqparse/grammars/mq"
	"github.com/harehare/mqparse/parser"
	"github.com/harehare/mqparse/reporter"
)

func plusSource(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/plus.yaml")
	require.NoError(t, err)
	return data
}

func TestDefault(t *testing.T) {
	t.Parallel()

	lang, err := mqparse.Load(mq.Name)
	require.NoError(t, err)
	assert.Equal(t, "mq", lang.Name())
	assert.Contains(t, mqparse.Default.Names(), "mq")

	again, err := mqparse.Load(mq.Name)
	require.NoError(t, err)
	assert.Same(t, lang, again)

	tr, err := mqparse.Parse(lang, []byte(`.h1 | upcase()`), nil)
	require.NoError(t, err)
	assert.False(t, tr.HasError())
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	var r mqparse.Registry

	require.NoError(t, r.RegisterGrammar("plus", plusSource(t)))
	err := r.RegisterGrammar("plus", plusSource(t))
	require.ErrorIs(t, err, mqparse.ErrGrammarExists)

	lang, err := r.Load("plus")
	require.NoError(t, err)
	assert.Equal(t, "plus", lang.Name())

	_, err = r.Load("minus")
	require.ErrorIs(t, err, mqparse.ErrGrammarNotFound)
	assert.Equal(t, []string{"plus"}, r.Names())
}

func TestRegistryLoadError(t *testing.T) {
	t.Parallel()
	var r mqparse.Registry

	var calls atomic.Int32
	require.NoError(t, r.Register("broken", mqparse.LoaderFunc(func(string) (*parser.Language, error) {
		calls.Add(1)
		return parser.LoadGrammar([]byte("name: broken\nrules: {}\n"))
	})))

	_, err := r.Load("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `loading grammar "broken"`)

	// Failures are not cached.
	_, err = r.Load("broken")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegistryConcurrentLoad(t *testing.T) {
	t.Parallel()
	var r mqparse.Registry

	var calls atomic.Int32
	src := plusSource(t)
	require.NoError(t, r.Register("plus", mqparse.LoaderFunc(func(string) (*parser.Language, error) {
		calls.Add(1)
		return parser.LoadGrammar(src)
	})))

	const n = 16
	langs := make([]*parser.Language, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lang, err := r.Load("plus")
			assert.NoError(t, err)
			langs[i] = lang
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, lang := range langs {
		assert.Same(t, langs[0], lang)
	}
}

func TestCompiled(t *testing.T) {
	t.Parallel()

	lang, err := parser.LoadGrammar(plusSource(t))
	require.NoError(t, err)
	data, err := lang.Table().MarshalBinary()
	require.NoError(t, err)

	var r mqparse.Registry
	require.NoError(t, r.RegisterCompiled("plus", data))
	compiled, err := r.Load("plus")
	require.NoError(t, err)

	src := []byte("a + a")
	want, err := mqparse.Parse(lang, src, nil)
	require.NoError(t, err)
	got, err := mqparse.Parse(compiled, src, nil)
	require.NoError(t, err)
	assert.Equal(t, want.DebugString(), got.DebugString())
}

func TestSourceLoader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lang, err := parser.LoadGrammar(plusSource(t))
	require.NoError(t, err)
	data, err := lang.Table().MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compiled"+mqparse.CompiledExtension), data, 0o644))

	r := mqparse.Registry{
		Fallback: &mqparse.SourceLoader{SearchPaths: []string{dir, "testdata"}},
	}

	fromSource, err := r.Load("plus")
	require.NoError(t, err)
	assert.Equal(t, "plus", fromSource.Name())

	fromTable, err := r.Load("compiled")
	require.NoError(t, err)
	assert.Equal(t, "plus", fromTable.Name())

	_, err = r.Load("nothing")
	require.ErrorIs(t, err, mqparse.ErrGrammarNotFound)
}

func TestSourceLoaderAccessor(t *testing.T) {
	t.Parallel()

	denied := errors.New("denied")
	var opened []string
	l := &mqparse.SourceLoader{
		Accessor: func(path string) (io.ReadCloser, error) {
			opened = append(opened, path)
			if strings.HasSuffix(path, mqparse.CompiledExtension) {
				return nil, os.ErrNotExist
			}
			return nil, denied
		},
	}
	_, err := l.LoadLanguage("x")
	require.ErrorIs(t, err, denied)
	assert.Equal(t, []string{"x" + mqparse.CompiledExtension, "x" + mqparse.GrammarExtension}, opened)
}

func TestCompositeLoader(t *testing.T) {
	t.Parallel()

	missing := mqparse.LoaderFunc(func(name string) (*parser.Language, error) {
		return nil, mqparse.ErrGrammarNotFound
	})
	l := mqparse.CompositeLoader{missing, mqparse.GrammarLoader(plusSource(t))}
	lang, err := l.LoadLanguage("plus")
	require.NoError(t, err)
	assert.Equal(t, "plus", lang.Name())

	_, err = mqparse.CompositeLoader{missing}.LoadLanguage("plus")
	require.ErrorIs(t, err, mqparse.ErrGrammarNotFound)
	_, err = mqparse.CompositeLoader{}.LoadLanguage("plus")
	require.ErrorIs(t, err, mqparse.ErrGrammarNotFound)
}

func TestParseAll(t *testing.T) {
	t.Parallel()
	lang, err := mqparse.Load(mq.Name)
	require.NoError(t, err)

	texts := [][]byte{
		[]byte(`let x = 1`),
		[]byte(`.h1 | upcase()`),
		[]byte(`def f(a): a + 1;`),
		nil,
	}
	trees, err := mqparse.ParseAll(context.Background(), lang, texts)
	require.NoError(t, err)
	require.Len(t, trees, len(texts))
	for i, tr := range trees {
		assert.Equal(t, len(texts[i]), tr.Len())
		assert.False(t, tr.HasError(), string(texts[i]))
	}

	trees, err = mqparse.ParseAll(context.Background(), lang, nil)
	require.NoError(t, err)
	assert.Empty(t, trees)
}

func TestBatchReporter(t *testing.T) {
	t.Parallel()
	lang, err := mqparse.Load(mq.Name)
	require.NoError(t, err)

	var errs []reporter.ErrorWithPos
	b := mqparse.Batch{
		Language:       lang,
		MaxParallelism: 2,
		Options:        parser.Options{Reporter: reporter.Collector(&errs, nil)},
		Filenames:      []string{"a.mq", "b.mq", "c.mq"},
	}
	_, err = b.ParseAll(context.Background(), [][]byte{
		[]byte("let = 1"),
		[]byte("let y = 2"),
		[]byte("let = 3"),
	})
	require.NoError(t, err)

	var files []string
	for _, err := range errs {
		files = append(files, err.GetPosition().Filename)
	}
	assert.ElementsMatch(t, []string{"a.mq", "c.mq"}, files)
}

func TestBatchStopsOnReporterError(t *testing.T) {
	t.Parallel()
	lang, err := mqparse.Load(mq.Name)
	require.NoError(t, err)

	stop := errors.New("stop")
	b := mqparse.Batch{
		Language: lang,
		Options: parser.Options{Reporter: reporter.NewReporter(func(reporter.ErrorWithPos) error {
			return stop
		}, nil)},
	}
	_, err = b.ParseAll(context.Background(), [][]byte{[]byte("let = 1"), []byte("let y = 2")})
	require.ErrorIs(t, err, stop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.ParseAll(ctx, [][]byte{[]byte("let y = 2")})
	require.ErrorIs(t, err, context.Canceled)
}
