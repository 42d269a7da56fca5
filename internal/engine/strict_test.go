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
	"testing"
)

func TestCheckStrict_None(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)
	r, _ := store.Rule("cmd", dir)
	f := store.File(filepath.Join(dir, "implicit.h"))
	if err := store.AddImplicitInput(r, f); err != nil {
		t.Fatal(err)
	}
	if diags := store.CheckStrict(StrictNone); diags != nil {
		t.Errorf("StrictNone should never report diagnostics, got %v", diags)
	}
}

func TestCheckStrict_ExhaustiveFlagsUndeclaredInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)
	r, _ := store.Rule("cmd", dir)
	f := store.File(filepath.Join(dir, "implicit.h"))
	if err := store.AddImplicitInput(r, f); err != nil {
		t.Fatal(err)
	}
	diags := store.CheckStrict(StrictExhaustive)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
}

func TestCheckStrict_StrictIgnoresInputsWithoutProducer(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)
	r, _ := store.Rule("cmd", dir)
	// An implicit input with no producer (e.g. a system header) is outside
	// the graph's control and --strict doesn't flag it, only --exhaustive
	// does.
	f := store.File(filepath.Join(dir, "implicit.h"))
	if err := store.AddImplicitInput(r, f); err != nil {
		t.Fatal(err)
	}
	if diags := store.CheckStrict(StrictStrict); diags != nil {
		t.Errorf("StrictStrict should ignore inputs with no producer, got %v", diags)
	}
}

func TestCheckStrict_StrictFlagsUndeclaredProducerDependency(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)

	headerOut := store.File(filepath.Join(dir, "gen.h"))
	genRule, _ := store.Rule("gen gen.h", dir)
	if err := store.AddExplicitOutput(genRule, headerOut); err != nil {
		t.Fatal(err)
	}

	user, _ := store.Rule("cc -c a.c", dir)
	if err := store.AddImplicitInput(user, headerOut); err != nil {
		t.Fatal(err)
	}

	diags := store.CheckStrict(StrictStrict)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
}
