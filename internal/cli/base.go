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

package cli

import (
	"errors"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/facbuild/fac/internal/engine"
	"github.com/facbuild/fac/internal/trace"
	"github.com/facbuild/fac/internal/vcs"
)

// commandBase holds the flags shared by every subcommand that touches the
// graph: where the repository root is and how its rule files are loaded.
type commandBase struct {
	root string
}

func (c *commandBase) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.root, "root", ".", "path to the root of the tree to build")
}

// resolveRoot returns the absolute, cleaned repository root.
func (c *commandBase) resolveRoot() (string, error) {
	if c.root == "" {
		c.root = "."
	}
	abs, err := filepath.Abs(c.root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.New("--root does not name a directory")
	}
	return abs, nil
}

// loadStore walks root for .fac files and returns the populated store.
// Parse errors are surfaced as a single combined error but do not stop
// the walk over the remaining files (spec §7).
func loadStore(root string) (*engine.Store, error) {
	store := engine.NewStore(root)
	if err := engine.Discover(store, root); err != nil {
		return store, err
	}
	return store, nil
}

// buildOptions are the flags shared by build and continual runs.
type buildOptions struct {
	jobs       int
	dryRun     bool
	showOutput bool
	gitAdd     bool
	logOutput  string
	blind      bool
	continual  bool
	strict     bool
	exhaustive bool
}

func (o *buildOptions) SetFlags(f *flag.FlagSet) {
	f.IntVar(&o.jobs, "jobs", 0, "maximum number of concurrent commands (default: number of CPUs)")
	f.BoolVar(&o.dryRun, "dry-run", false, "print commands instead of running them")
	f.BoolVar(&o.showOutput, "show-output", false, "stream each command's stdout/stderr as it finishes")
	f.BoolVar(&o.gitAdd, "git-add", false, "automatically git add untracked files the engine discovers as inputs")
	f.StringVar(&o.logOutput, "log-output", "", "directory to write one log file per executed rule")
	f.BoolVar(&o.blind, "blind", false, "do not trace commands; trust only declared inputs/outputs")
	f.BoolVar(&o.continual, "continual", false, "after building, watch inputs and rebuild on change")
	f.BoolVar(&o.strict, "strict", false, "fail if a traced dependency isn't covered by a declared one")
	f.BoolVar(&o.exhaustive, "exhaustive", false, "fail unless every discovered edge is declared explicitly")
}

func (o *buildOptions) tracer() trace.Tracer {
	if o.blind {
		return trace.Blind{}
	}
	return trace.Strace{}
}

func (o *buildOptions) strictMode() engine.StrictMode {
	switch {
	case o.exhaustive:
		return engine.StrictExhaustive
	case o.strict:
		return engine.StrictStrict
	default:
		return engine.StrictNone
	}
}

func openVCS(root string) *vcs.VCS {
	return vcs.Open(root)
}
