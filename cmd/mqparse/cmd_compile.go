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
	"os"
	"path/filepath"
	"strings"

	"github.com/protocolbuffers/protoscope"
	"github.com/spf13/cobra"

	"github.com/harehare/mqparse"
	"github.com/harehare/mqparse/grammar"
	"github.com/harehare/mqparse/table"
)

func newCompileCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile <grammar.yaml>",
		Short: "Compile a grammar into a parse table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			g, err := grammar.Parse(src)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			t, err := table.Build(g)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			data, err := t.MarshalBinary()
			if err != nil {
				return err
			}

			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + mqparse.CompiledExtension
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d symbols, %d rules, %d states, %d conflicts\n",
				output, t.SymbolCount(), t.RuleCount(), t.StateCount(), t.Conflicts())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the table to `file` (default: the grammar path with "+mqparse.CompiledExtension+")")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "inspect <table" + mqparse.CompiledExtension + ">",
		Short: "Describe a compiled parse table",
		Long: "Validate a compiled parse table and describe it. With --raw, the\n" +
			"table's wire encoding is printed in protoscope notation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			t, err := table.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:      %s\n", t.Name())
			fmt.Fprintf(out, "symbols:   %d (%d terminals)\n", t.SymbolCount(), t.TerminalCount())
			fmt.Fprintf(out, "rules:     %d\n", t.RuleCount())
			fmt.Fprintf(out, "states:    %d\n", t.StateCount())
			fmt.Fprintf(out, "lex modes: %d\n", t.ModeCount())
			fmt.Fprintf(out, "conflicts: %d\n", t.Conflicts())
			if raw {
				fmt.Fprint(out, protoscope.Write(data, protoscope.WriterOptions{}))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the encoded table")
	return cmd
}
