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

	flag "github.com/spf13/pflag"

	"github.com/facbuild/fac/internal/engine"
)

// cleanCmd implements --clean (spec §4.13): load the graph so every known
// output is known, then sweep untracked outputs, .fac.tum files and
// empty directories.
type cleanCmd struct {
	commandBase
}

func (*cleanCmd) Name() string { return "clean" }

func (*cleanCmd) Description() string { return "Remove every untracked output the engine knows about." }

func (c *cleanCmd) SetFlags(f *flag.FlagSet) {
	c.commandBase.SetFlags(f)
}

func (c *cleanCmd) Execute(ctx context.Context, f *flag.FlagSet) error {
	root, err := c.resolveRoot()
	if err != nil {
		return err
	}
	// A malformed .fac elsewhere in the tree shouldn't stop cleaning the
	// outputs of rules that did parse, so parse errors are reported but
	// not fatal here.
	store, err := loadStore(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fac: %s\n", err)
	}

	lock := engine.NewLock(root)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release() //nolint:errcheck

	return store.Sweep(openVCS(root))
}
