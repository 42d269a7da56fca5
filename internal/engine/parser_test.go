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

func writeFac(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFacFile_TwoRuleChain(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFac(t, dir, "build.fac", ""+
		"| cc -c a.c -o a.o\n"+
		"< a.c\n"+
		"> a.o\n"+
		"? cc a.o -o app\n"+
		"< a.o\n"+
		"> app\n")

	store := NewStore(dir)
	if _, err := store.ParseFacFile(path, dir); err != nil {
		t.Fatalf("ParseFacFile: %s", err)
	}

	rules := store.AllRules()
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if !store.IsDefault(rules[0]) {
		t.Error("first rule should be the default (|) rule")
	}
	if store.IsDefault(rules[1]) {
		t.Error("second rule should be on-demand (?)")
	}

	aO := store.File(filepath.Join(dir, "a.o"))
	if _, ok := store.Producer(aO); !ok {
		t.Error("a.o should have a producer")
	}
}

func TestParseFacFile_Errors(t *testing.T) {
	t.Parallel()
	data := []struct {
		name    string
		content string
	}{
		{"missing space", "|x\n"},
		{"unknown tag", "z foo\n"},
		{"output without rule", "> out\n"},
		{"input without rule", "< in\n"},
		{"cache suffix without rule", "c .o\n"},
		{"cache prefix without rule", "C /tmp/\n"},
	}
	for _, d := range data {
		d := d
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := writeFac(t, dir, "x.fac", d.content)
			store := NewStore(dir)
			if _, err := store.ParseFacFile(path, dir); err == nil {
				t.Fatal("expected a ParseError, got nil")
			}
		})
	}
}

func TestParseFacFile_DuplicateRule(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFac(t, dir, "dup.fac", "| same command\n| same command\n")
	store := NewStore(dir)
	_, err := store.ParseFacFile(path, dir)
	if err == nil {
		t.Fatal("expected a duplicate-rule error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("err = %T, want *ParseError", err)
	}
}

func TestParseFacFile_ReparsingSameFileUpdatesInPlace(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFac(t, dir, "build.fac", ""+
		"| cc -c a.c -o a.o\n"+
		"< a.c\n"+
		"> a.o\n")

	store := NewStore(dir)
	if _, err := store.ParseFacFile(path, dir); err != nil {
		t.Fatalf("first parse: %s", err)
	}
	rule, ok := store.LookupRule("cc -c a.c -o a.o", dir)
	if !ok {
		t.Fatal("rule not found after first parse")
	}
	aO := store.File(filepath.Join(dir, "a.o"))
	fp, err := freshFingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	store.SetRuleHashstat(rule, aO, fp)

	// Re-parsing the same path (spec §9: a .fac that is itself a rule's
	// output) must update the rule in place, not error as a duplicate.
	if _, err := store.ParseFacFile(path, dir); err != nil {
		t.Fatalf("reparse: %s", err)
	}

	rule2, ok := store.LookupRule("cc -c a.c -o a.o", dir)
	if !ok {
		t.Fatal("rule not found after reparse")
	}
	if rule2 != rule {
		t.Errorf("reparse should keep the same RuleRef, got %v want %v", rule2, rule)
	}
	if _, have := store.RuleHashstat(rule, aO); !have {
		t.Error("reparse should preserve the rule's recorded hashstats")
	}
	if _, ok := store.Producer(aO); !ok {
		t.Error("a.o should still have a producer after reparse")
	}
}

func TestParseFacFile_CrossFileDuplicateStillErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	first := writeFac(t, dir, "a.fac", "| same command\n")
	second := writeFac(t, dir, "b.fac", "| same command\n")

	store := NewStore(dir)
	if _, err := store.ParseFacFile(first, dir); err != nil {
		t.Fatalf("first parse: %s", err)
	}
	_, err := store.ParseFacFile(second, dir)
	if err == nil {
		t.Fatal("expected a duplicate-rule error across files")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("err = %T, want *ParseError", err)
	}
}

func TestParseFacFile_IgnoresBlankAndCommentLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFac(t, dir, "x.fac", "\n# a comment\n|\n| cmd\n")
	store := NewStore(dir)
	if _, err := store.ParseFacFile(path, dir); err != nil {
		t.Fatalf("ParseFacFile: %s", err)
	}
	if len(store.AllRules()) != 1 {
		t.Fatalf("got %d rules, want 1", len(store.AllRules()))
	}
}
