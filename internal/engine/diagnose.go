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
	"path/filepath"
)

// diagnoseUnready implements spec §4.9 step 4: with nothing running,
// dirty or marked, every remaining Unready rule is examined for why its
// explicit inputs can't be satisfied. It returns whether any rule
// changed state, so the caller knows whether to loop again.
func (sc *Scheduler) diagnoseUnready() (bool, error) {
	progressed := false
	for _, r := range sc.store.rulesInStatus(Unready) {
		if sc.diagnoseRule(r) {
			progressed = true
			continue
		}
		if sc.store.Status(r) != Unready {
			continue
		}
		if sc.waitingOnUnreadyProducer(r) {
			continue
		}
		sc.store.setStatus(r, Unknown)
		if err := sc.store.Evaluate(r); err != nil {
			return progressed, err
		}
		if sc.store.Status(r) != Unready {
			progressed = true
			continue
		}
		sc.failRule(r, &MissingInputError{Rule: sc.store.Command(r), Hint: "could not be explained"}, nil)
		progressed = true
	}
	return progressed, nil
}

// waitingOnUnreadyProducer reports whether r is Unready only because one
// of its producers hasn't resolved yet within this diagnose pass, rather
// than because r's own inputs are unexplainable. Map iteration order
// over rulesInStatus(Unready) isn't guaranteed to visit a producer
// before its consumer, so without this check a consumer can be
// misdiagnosed and failed in the same pass its producer is repaired in.
func (sc *Scheduler) waitingOnUnreadyProducer(r RuleRef) bool {
	for f := range sc.store.AllInputs(r) {
		pr, ok := sc.store.Producer(f)
		if !ok {
			continue
		}
		switch sc.store.Status(pr) {
		case Dirty, Building, Unready:
			return true
		}
	}
	return false
}

// diagnoseRule inspects r's explicit inputs one at a time and reports or
// repairs the first problem found, returning true if it made r eligible
// for re-evaluation (Marked).
func (sc *Scheduler) diagnoseRule(r RuleRef) bool {
	for _, f := range sc.store.ExplicitInputs(r) {
		if _, ok := sc.store.Producer(f); ok {
			continue
		}
		path := sc.store.Path(f)

		if fresh, err := normalizePath(filepath.Dir(path), filepath.Base(path)); err == nil && fresh != path {
			sc.store.FixDriftedInput(r, f, fresh)
			sc.store.setStatus(r, Marked)
			return true
		}

		fp, err := freshFingerprint(path)
		if err != nil {
			continue
		}
		if fp.Kind == KindNone {
			sc.logger.Printf("missing file %s", path)
			continue
		}

		if !sc.store.GitChecked(f) {
			sc.store.SetInGit(f, sc.vcsTracked(path))
		}
		if sc.store.IsInGit(f) {
			continue
		}
		if sc.opts.GitAdd && sc.vcs != nil {
			if err := sc.vcs.Add(path); err == nil {
				sc.store.SetInGit(f, true)
				sc.store.setStatus(r, Marked)
				return true
			}
		}
		sc.logger.Printf("add %s to git", path)
	}
	return false
}
