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
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/harehare/mqparse/parser"
	"github.com/harehare/mqparse/tree"
)

func newEditCmd(opts *rootOptions) *cobra.Command {
	var (
		start, end int
		text       string
		showTree   bool
	)

	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Apply an edit to a file and reparse it incrementally",
		Long: "Parse a file, replace the bytes [start, end) with the given text, and\n" +
			"reparse reusing the first tree. Prints the work done by both parses\n" +
			"and the ranges the edit changed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if end < 0 {
				end = start
			}
			if start < 0 || start > end || end > len(src) {
				return fmt.Errorf("edit [%d, %d) is outside of %d bytes of input", start, end, len(src))
			}
			lang, err := opts.registry().Load(opts.grammar)
			if err != nil {
				return err
			}

			p := parser.New(lang, parser.Options{Filename: args[0]})
			old, err := p.Parse(src, nil)
			if err != nil {
				return err
			}
			full := p.Stats()

			edited, err := old.Edit(tree.Edit{StartByte: start, OldEndByte: end, NewEndByte: start + len(text)})
			if err != nil {
				return err
			}
			updated := slices.Concat(src[:start], []byte(text), src[end:])
			t, err := p.Parse(updated, edited)
			if err != nil {
				return err
			}
			incr := p.Stats()

			out := cmd.OutOrStdout()
			if showTree {
				fmt.Fprintln(out, t.DebugString())
			}
			fmt.Fprintf(out, "full:        %s\n", formatStats(full))
			fmt.Fprintf(out, "incremental: %s\n", formatStats(incr))
			for _, r := range edited.ChangedRanges() {
				fmt.Fprintf(out, "changed:     [%d, %d)\n", r.Start, r.End)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "first byte replaced")
	cmd.Flags().IntVar(&end, "end", -1, "end of the bytes replaced (default: start)")
	cmd.Flags().StringVar(&text, "text", "", "replacement text")
	cmd.Flags().BoolVarP(&showTree, "tree", "t", false, "print the reparsed tree")
	return cmd
}

func formatStats(s parser.Stats) string {
	return fmt.Sprintf("lexed=%d reused=%d recoveries=%d nodes=%d", s.Lexed, s.Reused, s.Recoveries, s.Nodes)
}
