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
	"sort"
	"strings"
)

// Sweep implements --clean (spec §4.13): every produced output that is
// local to the repository, untracked, and a regular file is unlinked;
// every .fac.tum sibling is removed; then every local directory the
// graph knows about is rmdir'd, longest path first, ignoring the error
// when a directory still has other content in it.
func (s *Store) Sweep(vcs VCS) error {
	var dirs []string
	for _, f := range s.AllFiles() {
		path := s.Path(f)
		if !s.UnderRoot(path) {
			continue
		}
		fi, err := os.Lstat(path)
		if err != nil {
			continue
		}
		if fi.IsDir() {
			dirs = append(dirs, path)
			continue
		}
		if _, ok := s.Producer(f); !ok {
			continue
		}
		if vcs != nil && vcs.IsTracked(path) {
			continue
		}
		if fi.Mode().IsRegular() {
			if err := os.Remove(path); err != nil {
				return &IOError{Path: path, Err: err}
			}
		}
	}

	for _, f := range s.AllFiles() {
		path := s.Path(f)
		if strings.HasSuffix(path, ".fac") {
			os.Remove(path + ".tum") //nolint:errcheck
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		os.Remove(d) //nolint:errcheck // non-empty is an expected, ignorable outcome
	}
	return nil
}
