// Copyright 2025 The Fac Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli implements fac's command-line surface: flag parsing and
// the dispatch between the build, parse-only, clean and version actions
// described in spec §6.
package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

type subcommand interface {
	Name() string
	Description() string
	SetFlags(*flag.FlagSet)
	Execute(context.Context, *flag.FlagSet) error
}

// namedSubcommands are the verbs that take over argv[1] entirely; any
// other first argument (a flag or a target path) falls through to the
// default build action.
func namedSubcommands() []subcommand {
	return []subcommand{
		&parseOnlyCmd{},
		&cleanCmd{},
		&versionCmd{},
		&helpCmd{},
	}
}

// Main parses args (as os.Args) and runs the selected action. The
// returned error, when non-nil, should be mapped to a process exit code
// with ExitCode.
func Main(args []string) error {
	ctx := context.Background()

	var name string
	rest := args[1:]
	if len(rest) > 0 {
		for _, s := range namedSubcommands() {
			if s.Name() == rest[0] {
				name = rest[0]
				rest = rest[1:]
				break
			}
		}
	}

	var cmd subcommand = &buildCmd{}
	for _, s := range namedSubcommands() {
		if s.Name() == name {
			cmd = s
			break
		}
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	if err := fs.Parse(rest); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	return cmd.Execute(ctx, fs)
}
