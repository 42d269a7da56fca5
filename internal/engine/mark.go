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

// Mark selects the rules to build, per spec §4.6.
//
// Given a set of target paths it traverses the declared-input DAG in
// reverse topological order: each Unknown rule whose output is required,
// along with every rule reachable through its inputs whose producer is
// still Unknown, is transitioned to Marked and appended to the returned
// worklist. The worklist bounds the work of cleanliness evaluation and is
// processed iteratively, never recursively, since the dependency chain
// can exceed typical call-stack limits.
//
// If targets is empty, every default rule currently Unknown is marked.
func (s *Store) Mark(targets []string) ([]RuleRef, error) {
	var roots []RuleRef
	if len(targets) == 0 {
		for _, r := range s.AllRules() {
			if s.IsDefault(r) && s.Status(r) == Unknown {
				roots = append(roots, r)
			}
		}
	} else {
		for _, t := range targets {
			f, ok := s.LookupFile(t)
			if !ok {
				return nil, &MissingInputError{Path: t, Hint: "no rule produces this file"}
			}
			r, ok := s.Producer(f)
			if !ok {
				return nil, &MissingInputError{Path: t, Hint: "no rule produces this file"}
			}
			if s.Status(r) == Unknown {
				roots = append(roots, r)
			}
		}
	}

	var marked []RuleRef
	stack := append([]RuleRef(nil), roots...)
	seen := make(map[RuleRef]struct{}, len(roots))
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[r]; ok {
			continue
		}
		if s.Status(r) != Unknown {
			continue
		}
		seen[r] = struct{}{}
		s.setStatus(r, Marked)
		marked = append(marked, r)

		for f := range s.AllInputs(r) {
			pr, ok := s.Producer(f)
			if !ok {
				continue
			}
			if s.Status(pr) == Unknown {
				stack = append(stack, pr)
			}
		}
	}
	return marked, nil
}
