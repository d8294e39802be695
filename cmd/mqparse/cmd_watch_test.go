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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harehare/mqparse/grammars/mq"
	"github.com/harehare/mqparse/parser"
)

const watchSrc = "def double(x): x * 2;\nlet items = [1, 2, 3]\n.h1 | upcase()\n"

func TestWatcherUpdate(t *testing.T) {
	t.Parallel()
	lang, err := mq.Load()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "prog.mq")
	require.NoError(t, os.WriteFile(path, []byte(watchSrc), 0o600))

	var out bytes.Buffer
	w := newWatcher(lang, &out)
	require.NoError(t, w.update(path))
	assert.Equal(t, path+": lexed=", out.String()[:len(path)+8])
	assert.Contains(t, out.String(), "reused=0")

	out.Reset()
	broken := strings.Replace(watchSrc, "[1, 2, 3]", "[1, 2, $]", 1)
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o600))
	require.NoError(t, w.update(path))
	assert.Contains(t, out.String(), path+":2:20: unrecognized input")
	assert.Positive(t, w.files[path].parser.Stats().Reused)

	out.Reset()
	require.NoError(t, os.WriteFile(path, []byte(watchSrc), 0o600))
	require.NoError(t, w.update(path))
	assert.NotContains(t, out.String(), "unrecognized")
	fresh, err := parser.New(lang, parser.Options{}).Parse([]byte(watchSrc), nil)
	require.NoError(t, err)
	assert.Equal(t, fresh.DebugString(), w.files[path].tree.DebugString())

	require.Error(t, w.update(filepath.Join(t.TempDir(), "missing.mq")))
}

func TestWatcherRun(t *testing.T) {
	t.Parallel()
	lang, err := mq.Load()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "prog.mq")
	require.NoError(t, os.WriteFile(path, []byte(watchSrc), 0o600))

	w := newWatcher(lang, new(bytes.Buffer))
	require.NoError(t, w.update(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updated := make(chan string)
	done := make(chan error, 1)
	go func() { done <- w.run(ctx, updated) }()

	// The watch is set up asynchronously, so keep writing until an update
	// is seen.
	edited := strings.Replace(watchSrc, "upcase", "downcase", 1)
	var got string
	for i := 0; i < 50 && got == ""; i++ {
		require.NoError(t, os.WriteFile(path, []byte(edited), 0o600))
		select {
		case got = <-updated:
		case <-time.After(100 * time.Millisecond):
		}
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, path, got)
	assert.Equal(t, edited, string(w.files[path].text))
	assert.False(t, w.files[path].tree.HasError())
}
