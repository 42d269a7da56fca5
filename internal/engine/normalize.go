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
	"path/filepath"
	"strings"
)

// underRoot reports whether path is root or lies inside it.
func underRoot(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// normalizePath implements spec §4.8: resolve rel against dir, then
// canonicalize the *parent* directory (honoring symlinks, resolving ".."
// through the real filesystem where possible) and re-attach the final
// path component verbatim, so a symlink at the leaf is never itself
// followed. This is the "stat-not-follow" semantics a rule that produces
// a symlink depends on.
//
// If an ancestor directory does not exist yet, every ancestor that does
// exist is canonicalized and the remainder is appended literally.
func normalizePath(dir, rel string) (string, error) {
	abs := rel
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(dir, rel)
	}
	abs = filepath.Clean(abs)

	parent := filepath.Dir(abs)
	leaf := filepath.Base(abs)

	canonParent, err := canonicalizeExistingPrefix(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(canonParent, leaf), nil
}

// canonicalizeExistingPrefix resolves symlinks through as much of path as
// actually exists on disk, walking from the root down, and appends the
// remaining (non-existent) components literally.
func canonicalizeExistingPrefix(path string) (string, error) {
	vol := filepath.VolumeName(path)
	rest := path[len(vol):]
	parts := splitAll(rest)

	resolved := vol
	if filepath.IsAbs(path) {
		resolved = vol + string(filepath.Separator)
	}

	i := 0
	for ; i < len(parts); i++ {
		candidate := filepath.Join(resolved, parts[i])
		real, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			// This component (or one of its ancestors) doesn't exist yet;
			// stop canonicalizing and append the remainder literally.
			break
		}
		resolved = real
	}
	for ; i < len(parts); i++ {
		resolved = filepath.Join(resolved, parts[i])
	}
	return resolved, nil
}

// splitAll splits a cleaned absolute path into its path components.
func splitAll(path string) []string {
	path = filepath.ToSlash(path)
	var parts []string
	cur := ""
	for _, c := range path {
		if c == '/' {
			if cur != "" {
				parts = append(parts, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}
