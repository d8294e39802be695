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
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/harehare/mqparse"
	"github.com/harehare/mqparse/reporter"
)

var errHasErrors = errors.New("input has errors")

func newParseCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	var parallelism int

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Parse files and print their syntax trees",
		Long: "Parse files and print their syntax trees and diagnostics.\n" +
			"With no files, or when a file is \"-\", standard input is read.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"-"}
			}
			lang, err := opts.registry().Load(opts.grammar)
			if err != nil {
				return err
			}
			texts := make([][]byte, len(args))
			for i, name := range args {
				if texts[i], err = readInput(cmd, name); err != nil {
					return err
				}
			}

			var errs []reporter.ErrorWithPos
			b := mqparse.Batch{
				Language:       lang,
				MaxParallelism: parallelism,
				Filenames:      args,
			}
			b.Options.Reporter = reporter.Collector(&errs, nil)
			trees, err := b.ParseAll(cmd.Context(), texts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !quiet {
				for i, t := range trees {
					if len(trees) > 1 {
						fmt.Fprintf(out, "%s:\n", args[i])
					}
					fmt.Fprintln(out, t.DebugString())
				}
			}
			printErrors(cmd.ErrOrStderr(), errs)
			if len(errs) > 0 {
				return fmt.Errorf("%w: %d errors", errHasErrors, len(errs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print diagnostics")
	cmd.Flags().IntVarP(&parallelism, "jobs", "j", 0, "maximum number of files parsed at once")
	return cmd
}

// printErrors prints diagnostics ordered by file and offset.
func printErrors(w io.Writer, errs []reporter.ErrorWithPos) {
	slices.SortStableFunc(errs, func(a, b reporter.ErrorWithPos) int {
		pa, pb := a.GetPosition(), b.GetPosition()
		return cmp.Or(cmp.Compare(pa.Filename, pb.Filename), cmp.Compare(pa.Offset, pb.Offset))
	})
	for _, err := range errs {
		fmt.Fprintln(w, err)
	}
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
