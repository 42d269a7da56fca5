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

// StrictMode selects how hard CheckStrict is on undeclared dependencies,
// per spec §4.11.
type StrictMode int

// Valid StrictMode values.
const (
	StrictNone StrictMode = iota
	StrictStrict
	StrictExhaustive
)

// CheckStrict reports every rule whose discovered (implicit) edges
// aren't adequately declared, for --strict/--exhaustive. It returns one
// diagnostic string per violation; an empty slice means the graph
// passed.
func (s *Store) CheckStrict(mode StrictMode) []string {
	if mode == StrictNone {
		return nil
	}

	var diags []string
	for _, r := range s.AllRules() {
		explicitIn := make(map[FileRef]struct{}, len(s.ExplicitInputs(r)))
		explicitProducers := make(map[RuleRef]struct{})
		for _, f := range s.ExplicitInputs(r) {
			explicitIn[f] = struct{}{}
			if pr, ok := s.Producer(f); ok {
				explicitProducers[pr] = struct{}{}
			}
		}

		for f := range s.AllInputs(r) {
			if _, ok := explicitIn[f]; ok {
				continue
			}
			switch mode {
			case StrictExhaustive:
				if s.UnderRoot(s.Path(f)) {
					diags = append(diags, fmt.Sprintf("rule %q: implicit input %s should be listed explicitly", s.Command(r), s.Path(f)))
				}
			case StrictStrict:
				pr, ok := s.Producer(f)
				if !ok {
					continue
				}
				if _, covered := explicitProducers[pr]; !covered {
					diags = append(diags, fmt.Sprintf("rule %q: missing dependency on %s (produced by %q)", s.Command(r), s.Path(f), s.Command(pr)))
				}
			}
		}

		if mode != StrictExhaustive {
			continue
		}
		explicitOut := make(map[FileRef]struct{}, len(s.ExplicitOutputs(r)))
		for _, f := range s.ExplicitOutputs(r) {
			explicitOut[f] = struct{}{}
		}
		for f := range s.AllOutputs(r) {
			if _, ok := explicitOut[f]; ok {
				continue
			}
			if len(s.Children(f)) == 0 {
				continue
			}
			diags = append(diags, fmt.Sprintf("rule %q: implicit output %s has a consumer and should be listed explicitly", s.Command(r), s.Path(f)))
		}
	}
	return diags
}
