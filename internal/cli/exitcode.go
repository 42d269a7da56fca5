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

package cli

import (
	"fmt"
	"math"
	"os"
)

// exitCodeError carries a specific process exit code through Main's error
// return, per spec §6: 0 on success, the (clamped) failed-rule count on a
// build failure, 1 on configuration or environment failure.
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// IsExitCode reports whether err already carries its own exit code,
// meaning the command has already reported whatever detail it wants on
// stderr and Main shouldn't print the error's generic text on top of it.
func IsExitCode(err error) bool {
	_, ok := err.(exitCodeError)
	return ok
}

// ExitCode maps err, as returned from Main, to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(exitCodeError); ok {
		n := int(ec)
		if n > math.MaxInt32 {
			n = math.MaxInt32
		}
		if n <= 0 {
			n = 1
		}
		return n
	}
	return 1
}

func interruptSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
