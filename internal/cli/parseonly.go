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
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/facbuild/fac/internal/engine"
)

// parseOnlyCmd loads a single .fac file (and its sibling .fac.tum) and
// reports the rules it declares, without running anything. It is the
// engine's smallest useful diagnostic: "does this file parse".
type parseOnlyCmd struct {
	commandBase
	path string
}

func (*parseOnlyCmd) Name() string { return "parse-only" }

func (*parseOnlyCmd) Description() string { return "Parse a single .fac file and print its rules." }

func (c *parseOnlyCmd) SetFlags(f *flag.FlagSet) {
	c.commandBase.SetFlags(f)
}

func (c *parseOnlyCmd) Execute(ctx context.Context, f *flag.FlagSet) error {
	args := f.Args()
	if len(args) != 1 {
		return errors.New("parse-only takes exactly one .fac path")
	}
	root, err := c.resolveRoot()
	if err != nil {
		return err
	}
	store := engine.NewStore(root)
	if _, err := store.ParseFacFile(args[0], root); err != nil {
		return err
	}
	for _, r := range store.AllRules() {
		kind := "default"
		if !store.IsDefault(r) {
			kind = "on-demand"
		}
		fmt.Fprintf(os.Stdout, "%s rule: %s\n", kind, store.Command(r))
		for _, in := range store.ExplicitInputs(r) {
			fmt.Fprintf(os.Stdout, "  < %s\n", store.Path(in))
		}
		for _, out := range store.ExplicitOutputs(r) {
			fmt.Fprintf(os.Stdout, "  > %s\n", store.Path(out))
		}
	}
	return nil
}
