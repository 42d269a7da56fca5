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
	"crypto/sha256"
	"io"
	"os"
	"sort"
)

// Kind classifies what a path was the last time it was observed.
type Kind int

// Valid Kind values.
const (
	KindNone Kind = iota
	KindFile
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "none"
	}
}

// EnvVar is a captured name/value pair from the environment the owning
// rule ran under.
type EnvVar struct {
	Name  string
	Value string
}

// Fingerprint is the per-file change-detection record of spec §4.1: cheap
// stat fields plus a content hash, plus the slice of environment
// variables that were captured as affecting the rule that produced or
// consumed the file.
//
// A Fingerprint is "unfinished" when Hash is nil: only the stat fields
// have been populated and finish() has not yet been called to compute the
// content hash.
type Fingerprint struct {
	Kind  Kind
	Size  int64
	MTime int64 // UnixNano; 0 if the filesystem didn't report one
	Hash  []byte
	Env   []EnvVar
}

// unfinished reports whether the content hash has not yet been computed.
func (f *Fingerprint) unfinished() bool {
	return f.Hash == nil && f.Kind != KindNone
}

// statFingerprint stat's path (without following a symlink leaf, per
// spec §4.8) and returns the cheap fields of a Fingerprint, leaving Hash
// unset. Call finish to populate Hash.
func statFingerprint(path string) (Fingerprint, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fingerprint{Kind: KindNone}, nil
		}
		return Fingerprint{}, &IOError{Path: path, Err: err}
	}
	fp := Fingerprint{Size: fi.Size(), MTime: fi.ModTime().UnixNano()}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		fp.Kind = KindSymlink
	case fi.IsDir():
		fp.Kind = KindDir
	default:
		fp.Kind = KindFile
	}
	return fp, nil
}

// finish completes a Fingerprint's content hash: over file contents for a
// regular file, over the symlink target for a symlink, over a sorted
// directory listing for a directory.
func (f *Fingerprint) finish(path string) error {
	switch f.Kind {
	case KindFile:
		h := sha256.New()
		fh, err := os.Open(path) //#nosec G304
		if err != nil {
			return &IOError{Path: path, Err: err}
		}
		defer fh.Close()
		if _, err := io.Copy(h, fh); err != nil {
			return &IOError{Path: path, Err: err}
		}
		f.Hash = h.Sum(nil)
	case KindSymlink:
		target, err := os.Readlink(path)
		if err != nil {
			return &IOError{Path: path, Err: err}
		}
		h := sha256.Sum256([]byte(target))
		f.Hash = h[:]
	case KindDir:
		entries, err := os.ReadDir(path)
		if err != nil {
			return &IOError{Path: path, Err: err}
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		sort.Strings(names)
		h := sha256.New()
		for _, n := range names {
			io.WriteString(h, n) //nolint:errcheck
			h.Write([]byte{0})
		}
		f.Hash = h.Sum(nil)
	default:
		f.Hash = []byte{}
	}
	return nil
}

// cheapMatches reports whether kind, size and mtime all equal old's,
// without touching the filesystem beyond the stat already captured in f.
func (f Fingerprint) cheapMatches(old Fingerprint) bool {
	return f.Kind == old.Kind && f.Size == old.Size && f.MTime == old.MTime
}

// freshFingerprint stats path right now and, if it exists, hashes it. It never touches old; callers compare the result
// against a stored record themselves.
func freshFingerprint(path string) (Fingerprint, error) {
	fp, err := statFingerprint(path)
	if err != nil {
		return fp, err
	}
	if fp.Kind != KindNone {
		if err := fp.finish(path); err != nil {
			return fp, err
		}
	}
	return fp, nil
}

// contentMatches reports whether fresh's content hash equals old's. Used
// once cheapMatches has already failed, implementing spec §4.7 step 5's
// "matches(path, old)" predicate: a hash match means the stored cheap
// fields should be refreshed even though the file's stat metadata moved.
func contentMatches(fresh, old Fingerprint) bool {
	return fresh.Kind == old.Kind && bytesEqual(fresh.Hash, old.Hash)
}

// envMatches reports whether the captured environment subset of f equals
// old's, order-sensitively (captured order reflects declaration order).
func (f Fingerprint) envMatches(old Fingerprint) bool {
	if len(f.Env) != len(old.Env) {
		return false
	}
	for i := range f.Env {
		if f.Env[i] != old.Env[i] {
			return false
		}
	}
	return true
}

// currentEnvMatches reports whether the environment variables captured in
// old are still set to the same values right now.
func currentEnvMatches(old Fingerprint) bool {
	for _, e := range old.Env {
		if os.Getenv(e.Name) != e.Value {
			return false
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
