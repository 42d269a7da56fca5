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

import "fmt"

// ParseError is a line-local error in a .fac or .fac.tum file.
//
// Parsing continues to the next file after a ParseError unless the error
// was encountered while parsing a file that a build target depends on, in
// which case the build aborts.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// GraphError reports a structural problem with the rule/file graph: a
// dependency cycle, a duplicate rule declaration, or two rules claiming
// the same output. Always fatal.
type GraphError struct {
	Msg string
}

func (e *GraphError) Error() string {
	return e.Msg
}

// MissingInputError reports an explicit input with no producer that is
// not tracked by version control and so cannot be materialized.
type MissingInputError struct {
	Rule string
	Path string
	Hint string
}

func (e *MissingInputError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("rule %q: missing input %s (%s)", e.Rule, e.Path, e.Hint)
	}
	return fmt.Sprintf("rule %q: missing input %s", e.Rule, e.Path)
}

// TraceFailureError reports a rule whose command exited non-zero or whose
// spawn failed outright.
type TraceFailureError struct {
	Rule     string
	ExitCode int
	Err      error
}

func (e *TraceFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rule %q failed to start: %s", e.Rule, e.Err)
	}
	return fmt.Sprintf("rule %q exited with code %d", e.Rule, e.ExitCode)
}

func (e *TraceFailureError) Unwrap() error { return e.Err }

// InterruptedError signals the build was aborted by a user interrupt.
type InterruptedError struct{}

func (e *InterruptedError) Error() string { return "interrupted" }

// IOError wraps a filesystem failure encountered while stat-ing or
// hashing a file, or while writing a persistence file. Most IOErrors are
// downgraded to "rule is dirty" rather than propagated; only persistence
// write failures are surfaced to the caller.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CycleError reports a dependency cycle discovered during cleanliness
// evaluation (spec §4.7 step 2). Chain lists the rules and files
// encountered along the cycle, in traversal order, which is sufficient
// to render the cycle to the user without further lookups.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	s := "cycle involving"
	for _, c := range e.Chain {
		s += " " + c
	}
	return s
}
