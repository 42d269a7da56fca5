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

// chainStore builds rule A -> fileA -> rule B -> fileB -> rule C, returning
// the three rules in order.
func chainStore(t *testing.T) (*Store, RuleRef, RuleRef, RuleRef) {
	t.Helper()
	dir := t.TempDir()
	store := NewStore(dir)

	fileA := store.File(filepath.Join(dir, "a"))
	fileB := store.File(filepath.Join(dir, "b"))

	ruleA, _ := store.Rule("make a", dir)
	if err := store.AddExplicitOutput(ruleA, fileA); err != nil {
		t.Fatal(err)
	}

	ruleB, _ := store.Rule("make b from a", dir)
	if err := store.AddExplicitInput(ruleB, fileA); err != nil {
		t.Fatal(err)
	}
	if err := store.AddExplicitOutput(ruleB, fileB); err != nil {
		t.Fatal(err)
	}

	ruleC, _ := store.Rule("use b", dir)
	if err := store.AddExplicitInput(ruleC, fileB); err != nil {
		t.Fatal(err)
	}

	return store, ruleA, ruleB, ruleC
}

func TestOnUnready_PropagatesToConsumers(t *testing.T) {
	t.Parallel()
	store, ruleA, ruleB, ruleC := chainStore(t)
	store.setStatus(ruleB, Marked)
	store.setStatus(ruleC, Marked)

	store.onUnready(ruleA)

	if store.Status(ruleA) != Unready {
		t.Errorf("ruleA = %s, want unready", store.Status(ruleA))
	}
	if store.Status(ruleB) != Unready {
		t.Errorf("ruleB = %s, want unready", store.Status(ruleB))
	}
	if store.Status(ruleC) != Unready {
		t.Errorf("ruleC = %s, want unready", store.Status(ruleC))
	}
}

func TestOnDirty_MarksConsumersUnreadyUnlessAlready(t *testing.T) {
	t.Parallel()
	store, ruleA, ruleB, _ := chainStore(t)
	store.setStatus(ruleB, Marked)

	store.onDirty(ruleA, "never run")

	if store.Status(ruleA) != Dirty {
		t.Errorf("ruleA = %s, want dirty", store.Status(ruleA))
	}
	if store.Status(ruleB) != Unready {
		t.Errorf("ruleB = %s, want unready", store.Status(ruleB))
	}
}

func TestOnBuilt_RemarksConsumersRegardlessOfPriorStatus(t *testing.T) {
	t.Parallel()
	store, ruleA, ruleB, ruleC := chainStore(t)
	store.setStatus(ruleB, Failed)
	store.setStatus(ruleC, Clean)

	marked := store.onBuilt(ruleA)

	if store.Status(ruleA) != Built {
		t.Errorf("ruleA = %s, want built", store.Status(ruleA))
	}
	if len(marked) != 1 || marked[0] != ruleB {
		t.Errorf("onBuilt should only directly remark ruleA's own consumer (ruleB), got %v", marked)
	}
	if store.Status(ruleB) != Marked {
		t.Errorf("ruleB = %s, want marked", store.Status(ruleB))
	}
}

func TestOnFailed_PropagatesThroughUnreadyConsumersOnly(t *testing.T) {
	t.Parallel()
	store, ruleA, ruleB, ruleC := chainStore(t)
	store.setStatus(ruleB, Unready)
	store.setStatus(ruleC, Unready)

	store.onFailed(ruleA, func(string) bool { return false })

	if store.Status(ruleA) != Failed {
		t.Errorf("ruleA = %s, want failed", store.Status(ruleA))
	}
	if store.Status(ruleB) != Failed {
		t.Errorf("ruleB = %s, want failed (was Unready)", store.Status(ruleB))
	}
	if store.Status(ruleC) != Failed {
		t.Errorf("ruleC = %s, want failed, transitively through ruleB", store.Status(ruleC))
	}
}

func TestOnFailed_TolerantOfOutputNeverWrittenToDisk(t *testing.T) {
	t.Parallel()
	store, ruleA, _, _ := chainStore(t)

	// ruleA's output path was never actually written to disk by this test,
	// so unlinkNonVCOutputs's os.RemoveAll must tolerate a missing file
	// rather than erroring.
	store.onFailed(ruleA, func(string) bool { return false })
	if store.Status(ruleA) != Failed {
		t.Errorf("ruleA = %s, want failed", store.Status(ruleA))
	}
}
