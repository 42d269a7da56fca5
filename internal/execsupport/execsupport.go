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

// Package execsupport implements wrappers around os/exec.Cmd Start() and
// Run() that acquire a read lock on a R/W mutex to work around the
// fork+exec concurrency issue with open file handles on POSIX.
// See https://github.com/golang/go/issues/22315 and
// https://github.com/golang/go/issues/22220 for background.
//
// The scheduler (internal/engine) spawns many traced rule subprocesses
// concurrently from independent goroutines. At the same time the
// repository lock (internal/engine/lock.go) creates and removes a file
// with O_EXCL. If a fork happens while the lock file descriptor is open
// for writing, the forked rule subprocess inherits that descriptor and
// keeps it open even after the parent closes it, which can wedge a
// subsequent lock removal or re-creation. All code that forks a
// subprocess or that creates/removes the lock file must go through this
// package's Start/Run or hold Mu for writing, never call exec.Cmd.Start
// or os.OpenFile(O_EXCL) on the lock path directly.
package execsupport

import (
	"os/exec"
	"sync"
)

// Mu serializes forking subprocesses against operations that must not be
// observed by an in-flight fork, such as creating or removing the
// repository lock file.
var Mu sync.RWMutex

// Start is a fork-safe wrapper around os/exec.Cmd.Start.
func Start(cmd *exec.Cmd) error {
	Mu.RLock()
	defer Mu.RUnlock()
	return cmd.Start()
}

// Run is a fork-safe wrapper around os/exec.Cmd.Run.
func Run(cmd *exec.Cmd) error {
	Mu.RLock()
	defer Mu.RUnlock()
	return cmd.Run()
}
