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

package trace

import (
	"regexp"
	"strings"
)

type straceResult struct {
	reads   []string
	writes  []string
	mkdirs  []string
	removes []string
}

var (
	openRe   = regexp.MustCompile(`^\d+\s+(?:openat|open)\([^,]*,\s*"((?:[^"\\]|\\.)*)"(?:<[^>]*>)?\s*,\s*([A-Z0-9_|]+)`)
	mkdirRe  = regexp.MustCompile(`^\d+\s+(?:mkdirat|mkdir)\([^,]*"((?:[^"\\]|\\.)*)"`)
	unlinkRe = regexp.MustCompile(`^\d+\s+(?:unlinkat|unlink)\([^,]*"((?:[^"\\]|\\.)*)"`)
	renameRe = regexp.MustCompile(`^\d+\s+(?:renameat2?|rename)\([^"]*"((?:[^"\\]|\\.)*)"[^"]*"((?:[^"\\]|\\.)*)"`)
)

// parseStraceLog scans raw strace(1) -f -y output and classifies every
// path-bearing syscall line into the Reads/Writes/Mkdirs/Removes buckets.
// Failed syscalls (those ending "= -1 <ERRNO>") are ignored: a rule that
// probed for a file's existence and found it missing did not actually
// depend on it being there in any way the cache needs to track beyond
// what the scheduler already infers from the command's own exit status.
func parseStraceLog(log []byte) straceResult {
	var r straceResult
	seen := map[string]struct{}{}

	add := func(bucket *[]string, path string) {
		for _, p := range *bucket {
			if p == path {
				return
			}
		}
		*bucket = append(*bucket, path)
	}

	for _, line := range strings.Split(string(log), "\n") {
		if strings.Contains(line, "= -1") {
			continue
		}
		if m := openRe.FindStringSubmatch(line); m != nil {
			path, flags := unescape(m[1]), m[2]
			if _, dup := seen[flags+path]; dup {
				continue
			}
			seen[flags+path] = struct{}{}
			if strings.Contains(flags, "O_WRONLY") || strings.Contains(flags, "O_RDWR") || strings.Contains(flags, "O_CREAT") {
				add(&r.writes, path)
			} else {
				add(&r.reads, path)
			}
			continue
		}
		if m := mkdirRe.FindStringSubmatch(line); m != nil {
			add(&r.mkdirs, unescape(m[1]))
			continue
		}
		if m := renameRe.FindStringSubmatch(line); m != nil {
			add(&r.removes, unescape(m[1]))
			add(&r.writes, unescape(m[2]))
			continue
		}
		if m := unlinkRe.FindStringSubmatch(line); m != nil {
			add(&r.removes, unescape(m[1]))
			continue
		}
	}
	return r
}

func unescape(s string) string {
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s)
}
