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
	"context"
	"fmt"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"

	"github.com/facbuild/fac/internal/engine"
)

// buildCmd is fac's default action: build every requested target (or
// every default rule, if none are named), optionally staying resident
// in continual mode.
type buildCmd struct {
	commandBase
	buildOptions
}

func (*buildCmd) Name() string { return "build" }

func (*buildCmd) Description() string { return "Build targets, tracing commands to learn their dependencies." }

func (c *buildCmd) SetFlags(f *flag.FlagSet) {
	c.commandBase.SetFlags(f)
	c.buildOptions.SetFlags(f)
}

func (c *buildCmd) Execute(ctx context.Context, f *flag.FlagSet) error {
	root, err := c.resolveRoot()
	if err != nil {
		return err
	}
	// A rule file that fails to parse only aborts the build if one of the
	// requested targets actually needs it; Mark will surface that case as
	// a MissingInputError on its own, so parse errors are reported here
	// and the walk's other files are still used.
	store, err := loadStore(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fac: %s\n", err)
	}

	v := openVCS(root)
	interrupted := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, interruptSignals()...)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			close(interrupted)
		}
	}()

	lock := engine.NewLock(root)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release() //nolint:errcheck

	logDir := c.logOutput
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return err
		}
	}

	opts := engine.Options{
		Jobs:        c.jobs,
		DryRun:      c.dryRun,
		ShowOutput:  c.showOutput,
		GitAdd:      c.gitAdd,
		LogDir:      logDir,
		Root:        root,
		Interrupted: interrupted,
	}
	sched := engine.NewScheduler(store, c.tracer(), v, opts, os.Stdout)

	targets := f.Args()
	var failed int
	if c.continual {
		err = sched.Continual(targets)
	} else {
		failed, err = sched.Run(targets)
	}
	if err != nil {
		if _, ok := err.(*engine.InterruptedError); ok {
			fmt.Fprintln(os.Stderr, "fac: interrupted")
			return exitCodeError(1)
		}
		return err
	}

	if diags := store.CheckStrict(c.strictMode()); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, "fac: "+d)
		}
		return exitCodeError(1)
	}

	if failed > 0 {
		return exitCodeError(failed)
	}
	return nil
}
