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

// Package vcs answers the one question the engine needs of version
// control: is this path already tracked, and (with --git-add) can it be
// made so. A repository root with no .git is a valid, empty VCS: nothing
// is ever considered tracked, matching spec §4.7's treatment of a
// checkout with no version control at all.
package vcs

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
)

// VCS answers tracked-file queries against a repository rooted at Root.
type VCS struct {
	Root string

	mu     sync.Mutex
	repo   *git.Repository
	loaded bool
	tracked map[string]struct{} // absolute paths
}

// Open returns a VCS backed by the git repository containing root, or a
// no-op VCS if root is not inside one.
func Open(root string) *VCS {
	return &VCS{Root: root}
}

func (v *VCS) ensure() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loaded {
		return
	}
	v.loaded = true
	v.tracked = make(map[string]struct{})

	repo, err := git.PlainOpenWithOptions(v.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return
	}
	v.repo = repo

	idx, err := repo.Storer.Index()
	if err != nil {
		return
	}
	wt, err := repo.Worktree()
	if err != nil {
		return
	}
	for _, e := range idx.Entries {
		v.tracked[filepath.Join(wt.Filesystem.Root(), filepath.FromSlash(e.Name))] = struct{}{}
	}
}

// IsTracked reports whether path is present in the repository's index.
func (v *VCS) IsTracked(path string) bool {
	v.ensure()
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tracked == nil {
		return false
	}
	_, ok := v.tracked[path]
	return ok
}

// Add stages path, per --git-add: a rule's missing explicit input is
// added to version control automatically instead of failing the build.
func (v *VCS) Add(path string) error {
	v.ensure()
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.repo == nil {
		return nil
	}
	wt, err := v.repo.Worktree()
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(wt.Filesystem.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
		return err
	}
	v.tracked[path] = struct{}{}
	return nil
}
