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

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFingerprint_EncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	data := []struct {
		name string
		fp   Fingerprint
	}{
		{"file with hash and env", Fingerprint{
			Kind: KindFile,
			Size: 42,
			MTime: 1234567890,
			Hash: []byte{1, 2, 3, 4},
			Env:  []EnvVar{{Name: "PATH", Value: "/bin"}, {Name: "LANG", Value: "C"}},
		}},
		{"no env", Fingerprint{Kind: KindDir, Size: 0, MTime: 0, Hash: []byte{}}},
		{"empty hash", Fingerprint{Kind: KindSymlink, Size: 7, MTime: -1, Hash: nil}},
	}
	for _, d := range data {
		d := d
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			encoded := encodeFingerprint(d.fp)
			got, ok := decodeFingerprint(encoded)
			if !ok {
				t.Fatalf("decodeFingerprint(%q) failed", encoded)
			}
			if got.Kind != d.fp.Kind || got.Size != d.fp.Size || got.MTime != d.fp.MTime {
				t.Errorf("got %+v, want %+v", got, d.fp)
			}
			if diff := cmp.Diff(d.fp.Env, got.Env, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Env round-trip diff (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(d.fp.Hash, got.Hash, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Hash round-trip diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeFingerprint_Malformed(t *testing.T) {
	t.Parallel()
	if _, ok := decodeFingerprint("not-valid-base64!!"); ok {
		t.Error("expected decode failure for invalid base64")
	}
	if _, ok := decodeFingerprint(""); ok {
		t.Error("expected decode failure for empty payload")
	}
}

func TestFacTum_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	facPath := writeFac(t, dir, "build.fac", ""+
		"| cc -c a.c -o a.o\n"+
		"< a.c\n"+
		"> a.o\n")

	store := NewStore(dir)
	if _, err := store.ParseFacFile(facPath, dir); err != nil {
		t.Fatalf("ParseFacFile: %s", err)
	}
	rules := store.AllRules()
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r := rules[0]

	aO := store.File(filepath.Join(dir, "a.o"))
	fp := Fingerprint{Kind: KindFile, Size: 99, MTime: 555, Hash: []byte{9, 8, 7}}
	store.SetRuleHashstat(r, aO, fp)

	if err := store.SaveFacTum(facPath); err != nil {
		t.Fatalf("SaveFacTum: %s", err)
	}

	reloaded := NewStore(dir)
	if _, err := reloaded.ParseFacFile(facPath, dir); err != nil {
		t.Fatalf("re-parse: %s", err)
	}
	rr, ok := reloaded.LookupRule(store.Command(r), dir)
	if !ok {
		t.Fatal("reloaded store is missing the rule")
	}

	gotFp, ok := reloaded.RuleHashstat(rr, reloaded.File(filepath.Join(dir, "a.o")))
	if !ok {
		t.Fatal("reloaded store has no hashstat for a.o")
	}
	if gotFp.Kind != fp.Kind || gotFp.Size != fp.Size || gotFp.MTime != fp.MTime {
		t.Errorf("got %+v, want %+v", gotFp, fp)
	}
	if diff := cmp.Diff(fp.Hash, gotFp.Hash); diff != "" {
		t.Errorf("Hash round-trip diff (-want +got):\n%s", diff)
	}
}

func TestLoadFacTum_ToleratesMalformedLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	facPath := writeFac(t, dir, "build.fac", "| cc -c a.c -o a.o\n< a.c\n> a.o\n")

	store := NewStore(dir)
	if _, err := store.ParseFacFile(facPath, dir); err != nil {
		t.Fatalf("ParseFacFile: %s", err)
	}

	tumPath := facPath + ".tum"
	writeFac(t, dir, "build.fac.tum", ""+
		"| cc -c a.c -o a.o\n"+
		"H not-valid-base64\n"+
		"| some rule that no longer exists\n"+
		"< orphaned.c\n")

	if err := store.LoadFacTum(tumPath); err != nil {
		t.Fatalf("LoadFacTum should tolerate malformed/stale lines, got: %s", err)
	}
}
