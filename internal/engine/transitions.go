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
	"strings"
)

// consumersOf returns, deduplicated, every rule that reads any output of
// r.
func (s *Store) consumersOf(r RuleRef) []RuleRef {
	seen := make(map[RuleRef]struct{})
	var out []RuleRef
	for f := range s.AllOutputs(r) {
		for c := range s.Children(f) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// onUnready implements spec §4.9's unready(r): r becomes Unready, and the
// state propagates breadth-first, iteratively, to every consumer whose
// status is neither Unready nor Unknown.
func (s *Store) onUnready(r RuleRef) {
	if s.Status(r) == Unready {
		return
	}
	s.setStatus(r, Unready)
	queue := s.consumersOf(r)
	seen := make(map[RuleRef]struct{})
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		switch s.Status(c) {
		case Unready, Unknown:
			continue
		}
		s.setStatus(c, Unready)
		queue = append(queue, s.consumersOf(c)...)
	}
}

// onDirty implements spec §4.9's dirty(r): r becomes Dirty, and if it was
// not already Unready its consumers are pushed to Unready via
// outputs->children, since they can no longer assume their input is
// settled.
func (s *Store) onDirty(r RuleRef, excuse string) {
	_ = excuse // retained on the call site for logging; not stored per-rule
	wasUnready := s.Status(r) == Unready
	s.setStatus(r, Dirty)
	if !wasUnready {
		for _, c := range s.consumersOf(r) {
			s.onUnready(c)
		}
	}
}

// onClean implements spec §4.7 step 7: r becomes Clean, its .fac outputs
// (if any) are queued for re-parsing, and its Unknown consumers are
// re-marked so the next drain of the worklist re-examines them.
func (s *Store) onClean(r RuleRef) []RuleRef {
	s.setStatus(r, Clean)
	s.queueFacOutputsForReparse(r)
	return s.remarkConsumers(r, Unknown)
}

// onBuilt implements spec §4.9's built(r): r becomes Built, its .fac
// outputs are queued for re-parsing, and every consumer of every output
// is marked "possibly ready" regardless of its previous status (short of
// already being in flight).
func (s *Store) onBuilt(r RuleRef) []RuleRef {
	s.setStatus(r, Built)
	s.queueFacOutputsForReparse(r)
	return s.remarkConsumers(r, Unknown, Unready, Failed, Clean, Built)
}

// onFailed implements spec §4.9's failed(r): r becomes Failed, the
// failure propagates to consumers that were Unready (also becoming
// Failed, transitively), and r's non-VC outputs are unlinked so the next
// run rebuilds cleanly rather than trusting a half-built artifact.
func (s *Store) onFailed(r RuleRef, vcs func(path string) bool) {
	s.setStatus(r, Failed)
	s.unlinkNonVCOutputs(r, vcs)

	queue := s.consumersOf(r)
	seen := make(map[RuleRef]struct{})
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if s.Status(c) != Unready {
			continue
		}
		s.setStatus(c, Failed)
		s.unlinkNonVCOutputs(c, vcs)
		queue = append(queue, s.consumersOf(c)...)
	}
}

// remarkConsumers transitions every consumer of r currently in one of
// from to Marked, returning the ones actually transitioned so the caller
// can append them to the scheduler's worklist.
func (s *Store) remarkConsumers(r RuleRef, from ...Status) []RuleRef {
	set := make(map[Status]struct{}, len(from))
	for _, st := range from {
		set[st] = struct{}{}
	}
	var marked []RuleRef
	for _, c := range s.consumersOf(r) {
		if _, ok := set[s.Status(c)]; ok {
			s.setStatus(c, Marked)
			marked = append(marked, c)
		}
	}
	return marked
}

func (s *Store) queueFacOutputsForReparse(r RuleRef) {
	for f := range s.AllOutputs(r) {
		if strings.HasSuffix(s.Path(f), ".fac") {
			s.QueueReparse(s.Path(f))
		}
	}
}

// unlinkNonVCOutputs removes every output of r from disk unless vcs
// reports it as tracked, per spec §4.9's fail(r) and failed(r).
func (s *Store) unlinkNonVCOutputs(r RuleRef, vcs func(path string) bool) {
	for f := range s.AllOutputs(r) {
		path := s.Path(f)
		if vcs != nil && vcs(path) {
			continue
		}
		removePath(path)
	}
}

// removePath unlinks path, tolerating it already being gone: a half
// built artifact from a failed run may never have been written.
func removePath(path string) {
	_ = os.RemoveAll(path)
}
