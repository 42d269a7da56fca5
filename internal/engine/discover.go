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

package engine

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.chromium.org/luci/common/errors"
)

// DefaultRuleFile is the extension the walk in Discover looks for.
const DefaultRuleFile = ".fac"

// Discover walks root for *.fac files, skipping .git, and parses each
// one into store.
//
// Reading and tokenizing each file is independent of every other, so the
// walk fans the parse calls out across an errgroup the same way the
// scheduler bounds traced spawns (golang.org/x/sync/errgroup); only the
// call into Store, which mutates shared arenas, is serialized behind a
// mutex. Parse errors are local to their file (spec §7): a malformed
// .fac does not stop the walk. Every error encountered is collected and
// returned together as an errors.MultiError so the caller can decide
// whether any of the failures land on a path a requested target actually
// needs; Discover itself never aborts early.
func Discover(store *Store, root string) error {
	var paths []string
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".fac" {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return &IOError{Path: root, Err: walkErr}
	}
	sort.Strings(paths)

	var mu sync.Mutex
	var errs errors.MultiError
	var eg errgroup.Group
	for _, p := range paths {
		p := p
		eg.Go(func() error {
			b, readErr := os.ReadFile(p) //#nosec G304
			mu.Lock()
			defer mu.Unlock()
			if readErr != nil {
				errs = append(errs, &IOError{Path: p, Err: readErr})
				return nil
			}
			if _, err := store.parseFacBytes(p, root, b); err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = eg.Wait() // the closures above never return a non-nil error themselves

	if len(errs) == 0 {
		return nil
	}
	return errs
}
