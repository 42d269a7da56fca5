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
)

func TestSweep_RemovesUntrackedProducedFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)

	untrackedOut := filepath.Join(dir, "untracked.o")
	trackedOut := filepath.Join(dir, "tracked.o")
	for _, p := range []string{untrackedOut, trackedOut} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r, _ := store.Rule("cc", dir)
	uf := store.File(untrackedOut)
	tf := store.File(trackedOut)
	if err := store.AddExplicitOutput(r, uf); err != nil {
		t.Fatal(err)
	}
	if err := store.AddExplicitOutput(r, tf); err != nil {
		t.Fatal(err)
	}

	vcs := &fakeVCS{tracked: map[string]bool{trackedOut: true}}
	if err := store.Sweep(vcs); err != nil {
		t.Fatalf("Sweep: %s", err)
	}

	if _, err := os.Stat(untrackedOut); !os.IsNotExist(err) {
		t.Error("untracked output should have been removed")
	}
	if _, err := os.Stat(trackedOut); err != nil {
		t.Error("tracked output should survive Sweep")
	}
}

func TestSweep_RemovesFacTumSiblings(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)

	facPath := filepath.Join(dir, "build.fac")
	tumPath := facPath + ".tum"
	if err := os.WriteFile(facPath, []byte("| cmd\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tumPath, []byte("| cmd\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store.File(facPath)

	if err := store.Sweep(nil); err != nil {
		t.Fatalf("Sweep: %s", err)
	}
	if _, err := os.Stat(tumPath); !os.IsNotExist(err) {
		t.Error(".fac.tum sibling should have been removed")
	}
}

func TestSweep_IgnoresFilesOutsideRoot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	outside := t.TempDir()
	store := NewStore(dir)

	outsidePath := filepath.Join(outside, "out.o")
	if err := os.WriteFile(outsidePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, _ := store.Rule("cc", dir)
	f := store.File(outsidePath)
	if err := store.AddExplicitOutput(r, f); err != nil {
		t.Fatal(err)
	}

	if err := store.Sweep(nil); err != nil {
		t.Fatalf("Sweep: %s", err)
	}
	if _, err := os.Stat(outsidePath); err != nil {
		t.Error("file outside root should not be removed by Sweep")
	}
}
