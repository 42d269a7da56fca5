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

func TestMark_TargetPullsInTransitiveProducers(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)

	aC := store.File(filepath.Join(dir, "a.c"))
	aO := store.File(filepath.Join(dir, "a.o"))
	app := store.File(filepath.Join(dir, "app"))

	compile, _ := store.Rule("cc -c a.c -o a.o", dir)
	if err := store.AddExplicitInput(compile, aC); err != nil {
		t.Fatal(err)
	}
	if err := store.AddExplicitOutput(compile, aO); err != nil {
		t.Fatal(err)
	}

	link, _ := store.Rule("cc a.o -o app", dir)
	if err := store.AddExplicitInput(link, aO); err != nil {
		t.Fatal(err)
	}
	if err := store.AddExplicitOutput(link, app); err != nil {
		t.Fatal(err)
	}

	marked, err := store.Mark([]string{filepath.Join(dir, "app")})
	if err != nil {
		t.Fatalf("Mark: %s", err)
	}
	if len(marked) != 2 {
		t.Fatalf("got %d marked rules, want 2", len(marked))
	}
	if store.Status(link) != Marked || store.Status(compile) != Marked {
		t.Errorf("both rules should be Marked: link=%s compile=%s", store.Status(link), store.Status(compile))
	}
}

func TestMark_UnknownTargetIsMissingInput(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir())
	_, err := store.Mark([]string{"/no/such/output"})
	if err == nil {
		t.Fatal("expected a MissingInputError")
	}
	if _, ok := err.(*MissingInputError); !ok {
		t.Errorf("err = %T, want *MissingInputError", err)
	}
}

func TestMark_NoTargetsMarksDefaultRules(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir)

	def, _ := store.Rule("default rule", dir)
	store.SetDefault(def, true)
	onDemand, _ := store.Rule("on demand rule", dir)
	store.SetDefault(onDemand, false)

	marked, err := store.Mark(nil)
	if err != nil {
		t.Fatalf("Mark: %s", err)
	}
	if len(marked) != 1 || marked[0] != def {
		t.Errorf("got %v, want only the default rule marked", marked)
	}
	if store.Status(onDemand) != Unknown {
		t.Errorf("on-demand rule should remain Unknown, got %s", store.Status(onDemand))
	}
}
