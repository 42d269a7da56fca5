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

// Package trace runs a rule's command and reports which files it opened
// for reading, which it wrote or created, which directories it made and
// which paths it removed or renamed away. The scheduler (internal/engine)
// treats this report as the rule's "all_inputs"/"all_outputs" for the run
// just completed.
//
// The command tracer itself is a black box from this engine's point of
// view: any mechanism capable of producing a Result for an exec.Cmd can
// back the Tracer interface. Strace is the reference implementation on
// Linux; Blind is the fallback that reports nothing beyond exit status,
// for platforms without a tracer or for callers that asked for untraced
// execution.
package trace

import "context"

// Result is what a traced command run reported.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte

	// Reads, Writes, Mkdirs and Removes are deduplicated, normalized
	// absolute paths the command touched, classified by the syscall that
	// touched them. Renames are reported as a Remove of the source and a
	// Write of the destination.
	Reads   []string
	Writes  []string
	Mkdirs  []string
	Removes []string
}

// Tracer runs cmd (argv[0] plus arguments) in dir with the given
// environment and reports every filesystem path it touched.
type Tracer interface {
	Trace(ctx context.Context, argv []string, dir string, env []string) (*Result, error)
}
