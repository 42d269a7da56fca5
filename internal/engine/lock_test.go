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

func TestLock_AcquireReleaseRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	l := NewLock(dir)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire: %s", err)
	}
	lockPath := filepath.Join(dir, ".git", "fac-lock")
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatalf("lock file should exist after Acquire: %s", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %s", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be gone after Release")
	}
}

func TestLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := NewLock(dir)
	if err := l.Release(); err != nil {
		t.Fatalf("Release on a never-acquired lock should be a no-op, got: %s", err)
	}
}

func TestLock_EmergencyUnlockRemovesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	l := NewLock(dir)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire: %s", err)
	}
	l.EmergencyUnlock()
	lockPath := filepath.Join(dir, ".git", "fac-lock")
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be gone after EmergencyUnlock")
	}
}
