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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/harehare/mqparse/parser"
	"github.com/harehare/mqparse/reporter"
	"github.com/harehare/mqparse/tree"
)

var watchLog = commonlog.GetLogger("mqparse.watch")

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>...",
		Short: "Reparse files incrementally whenever they change on disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := opts.registry().Load(opts.grammar)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w := newWatcher(lang, cmd.OutOrStdout())
			for _, path := range args {
				if path, err = filepath.Abs(path); err != nil {
					return err
				}
				if err := w.update(path); err != nil {
					return err
				}
			}
			return w.run(ctx, nil)
		},
	}
}

// watcher keeps the latest tree of each watched file.
type watcher struct {
	lang  *parser.Language
	out   io.Writer
	files map[string]*watchedFile
}

type watchedFile struct {
	text   []byte
	tree   *tree.Tree
	parser *parser.Parser
	errs   []reporter.ErrorWithPos
}

func newWatcher(lang *parser.Language, out io.Writer) *watcher {
	return &watcher{lang: lang, out: out, files: make(map[string]*watchedFile)}
}

// update rereads path and reparses it, reusing its previous tree, then
// prints the diagnostics and the work done.
func (w *watcher) update(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, ok := w.files[path]
	if !ok {
		f = new(watchedFile)
		f.parser = parser.New(w.lang, parser.Options{
			Filename: path,
			Reporter: reporter.Collector(&f.errs, nil),
		})
		w.files[path] = f
	}

	prev := f.tree
	if prev != nil {
		if prev, err = prev.Edit(diffEdit(f.text, text)); err != nil {
			return err
		}
	}
	f.errs = f.errs[:0]
	t, err := f.parser.Parse(text, prev)
	if err != nil {
		return err
	}
	f.text, f.tree = text, t

	printErrors(w.out, f.errs)
	fmt.Fprintf(w.out, "%s: %s\n", path, formatStats(f.parser.Stats()))
	return nil
}

// run reparses the watched files as they change until ctx is done. If
// updated is not nil, it receives the path of each file reparsed.
func (w *watcher) run(ctx context.Context, updated chan<- string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Editors often replace files rather than write them, so watch the
	// directories.
	dirs := make(map[string]bool)
	for path := range w.files {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			watchLog.Errorf("watching: %v", err)
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(ev.Name)
			if _, ok := w.files[path]; !ok || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.update(path); err != nil {
				watchLog.Warningf("%s: %v", path, err)
				continue
			}
			if updated != nil {
				select {
				case updated <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
