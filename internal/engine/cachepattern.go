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

import "strings"

// matchesCachePatterns implements the Open Question resolution of spec
// §9: a suffix pattern matches the last len(pattern) bytes of path, a
// prefix pattern matches the first len(pattern) bytes, and both require
// strict inequality between the pattern length and the path length so
// that a pattern identical to the whole path is never treated as a cache
// match (that would make the file invisible to the graph entirely, which
// cache semantics never intend).
func matchesCachePatterns(path string, suffixes, prefixes []string) bool {
	for _, suf := range suffixes {
		if len(suf) < len(path) && strings.HasSuffix(path, suf) {
			return true
		}
	}
	for _, pre := range prefixes {
		if len(pre) < len(path) && strings.HasPrefix(path, pre) {
			return true
		}
	}
	return false
}
