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

import "github.com/facbuild/fac/internal/trace"

// EventKind discriminates the three variants that flow on the
// scheduler's event channel, per spec §4.9.
type EventKind int

// Valid EventKind values.
const (
	EvFinished EventKind = iota
	EvNotifyChange
	EvInterrupt
)

// Event is what a worker goroutine posts to the scheduler's single
// consumer channel when its rule finishes. The scheduler also handles
// NotifyChange and Interrupt events, but nothing in the engine posts
// them: continual mode reads the watcher directly, and interrupts arrive
// through Options.Interrupted.
type Event struct {
	Kind EventKind

	// Finished
	Rule   RuleRef
	Result *trace.Result
	Err    error

	// NotifyChange
	Path string
}
