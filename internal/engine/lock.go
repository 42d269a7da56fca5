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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/facbuild/fac/internal/execsupport"
)

// Lock is the repository-wide mutual-exclusion file of spec §4.12:
// <root>/.git/fac-lock. Its presence doubles as the signal that a
// previous run crashed ungracefully, since a clean shutdown always
// removes it.
type Lock struct {
	path     string
	acquired bool
}

// NewLock returns a Lock for the repository rooted at root.
func NewLock(root string) *Lock {
	return &Lock{path: filepath.Join(root, ".git", "fac-lock")}
}

// Acquire exclusively creates the lock file, retrying ten times at a one
// second interval before giving up.
func (l *Lock) Acquire() error {
	execsupport.Mu.Lock()
	defer execsupport.Mu.Unlock()

	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //#nosec G304
		if err == nil {
			f.Close() //nolint:errcheck
			l.acquired = true
			return nil
		}
		if !os.IsExist(err) {
			return &IOError{Path: l.path, Err: err}
		}
		if attempt >= 9 {
			return fmt.Errorf("lock file %s already exists: another fac is building, or a previous run crashed; remove it manually if you're sure none is running", l.path)
		}
		execsupport.Mu.Unlock()
		time.Sleep(time.Second)
		execsupport.Mu.Lock()
	}
}

// Release removes the lock file on a clean shutdown.
func (l *Lock) Release() error {
	if !l.acquired {
		return nil
	}
	execsupport.Mu.Lock()
	defer execsupport.Mu.Unlock()
	l.acquired = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return &IOError{Path: l.path, Err: err}
	}
	return nil
}

// EmergencyUnlock removes the lock file unconditionally, with no other
// teardown, for the interrupt path where there may be no time left to do
// anything else.
func (l *Lock) EmergencyUnlock() {
	execsupport.Mu.Lock()
	defer execsupport.Mu.Unlock()
	os.Remove(l.path) //nolint:errcheck
}
