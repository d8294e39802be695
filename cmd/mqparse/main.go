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


// Command mqparse parses mq programs and hosts the parser for editors.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/harehare/mqparse"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	verbosity   int
	logFile     string
	grammar     string
	grammarPath []string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	rootCmd := &cobra.Command{
		Use:          "mqparse",
		Short:        "Incremental parser for the mq language",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			var path *string
			if opts.logFile != "" {
				path = &opts.logFile
			}
			commonlog.Configure(opts.verbosity, path)
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v", "increase log verbosity")
	flags.StringVar(&opts.logFile, "log", "", "write logs to `file` instead of stderr")
	flags.StringVarP(&opts.grammar, "grammar", "g", "mq", "grammar `name` to parse with")
	flags.StringSliceVar(&opts.grammarPath, "grammar-path", nil, "`dirs` searched for grammars that are not built in")

	rootCmd.AddCommand(
		newParseCmd(&opts),
		newCompileCmd(),
		newInspectCmd(),
		newEditCmd(&opts),
		newLSPCmd(&opts),
		newWatchCmd(&opts),
	)
	return rootCmd
}

// registry returns the registry to load grammars from.
func (o *rootOptions) registry() *mqparse.Registry {
	if len(o.grammarPath) == 0 {
		return mqparse.Default
	}
	r := new(mqparse.Registry)
	r.Fallback = mqparse.CompositeLoader{
		mqparse.LoaderFunc(mqparse.Default.Load),
		&mqparse.SourceLoader{SearchPaths: o.grammarPath},
	}
	return r
}
