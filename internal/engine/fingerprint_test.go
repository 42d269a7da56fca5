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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFreshFingerprint_Kinds(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	subdir := filepath.Join(dir, "sub")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(file, link); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing")

	data := []struct {
		name string
		path string
		kind Kind
	}{
		{"file", file, KindFile},
		{"dir", subdir, KindDir},
		{"symlink", link, KindSymlink},
		{"missing", missing, KindNone},
	}
	for _, d := range data {
		d := d
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			fp, err := freshFingerprint(d.path)
			if err != nil {
				t.Fatalf("freshFingerprint(%q): %s", d.path, err)
			}
			if fp.Kind != d.kind {
				t.Errorf("Kind = %s, want %s", fp.Kind, d.kind)
			}
			if d.kind != KindNone && fp.Hash == nil {
				t.Errorf("Hash not populated for kind %s", d.kind)
			}
		})
	}
}

func TestFingerprint_ContentMatchesAfterTouch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("same bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	old, err := freshFingerprint(file)
	if err != nil {
		t.Fatal(err)
	}

	// Touch mtime without changing content: cheapMatches should fail but
	// contentMatches must still succeed, per spec §4.1's matches()
	// predicate.
	later := time.Unix(0, old.MTime).Add(time.Hour)
	if err := os.Chtimes(file, later, later); err != nil {
		t.Fatal(err)
	}

	fresh, err := freshFingerprint(file)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.cheapMatches(old) {
		t.Fatal("cheapMatches should have failed after mtime changed")
	}
	if !contentMatches(fresh, old) {
		t.Fatal("contentMatches should succeed: content is unchanged")
	}
}

func TestFingerprint_EnvMatches(t *testing.T) {
	t.Parallel()
	a := Fingerprint{Env: []EnvVar{{Name: "X", Value: "1"}, {Name: "Y", Value: "2"}}}
	b := Fingerprint{Env: []EnvVar{{Name: "X", Value: "1"}, {Name: "Y", Value: "2"}}}
	c := Fingerprint{Env: []EnvVar{{Name: "X", Value: "1"}}}

	if !a.envMatches(b) {
		t.Error("identical env slices should match")
	}
	if a.envMatches(c) {
		t.Error("different-length env slices should not match")
	}
	if diff := cmp.Diff(a.Env, b.Env); diff != "" {
		t.Errorf("unexpected diff (-a +b):\n%s", diff)
	}
}
