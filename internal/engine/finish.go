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
	"sort"

	"github.com/facbuild/fac/internal/trace"
)

// finish ingests the outcome of a rule's run, per spec §4.9's Finish
// procedure, and returns any consumers that were pushed back to Marked
// (built()) so the caller can feed them into the worklist.
func (sc *Scheduler) finish(r RuleRef, result *trace.Result, spawnErr error) []RuleRef {
	switch {
	case spawnErr != nil:
		sc.failRule(r, &TraceFailureError{Rule: sc.store.Command(r), Err: spawnErr}, nil)
		return nil
	case result == nil:
		sc.failRule(r, &TraceFailureError{Rule: sc.store.Command(r), Err: fmt.Errorf("tracer returned no result")}, nil)
		return nil
	case result.ExitCode != 0:
		sc.failRule(r, &TraceFailureError{Rule: sc.store.Command(r), ExitCode: result.ExitCode}, result)
		return nil
	}

	if err := sc.ingest(r, result); err != nil {
		sc.failRule(r, err, result)
		return nil
	}
	return sc.store.onBuilt(r)
}

// failRule unlinks whatever the run actually produced (per the "On
// failure" paragraph of spec §4.9) and runs the failed() cascade.
func (sc *Scheduler) failRule(r RuleRef, err error, result *trace.Result) {
	sc.logger.Printf("%s", err)
	sc.failedCount++

	if result != nil {
		for _, path := range result.Writes {
			if sc.vcs == nil || !sc.vcs.IsTracked(path) {
				os.Remove(path) //nolint:errcheck
			}
		}
		dirs := append([]string(nil), result.Mkdirs...)
		sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
		for _, dir := range dirs {
			os.Remove(dir) //nolint:errcheck // rmdir semantics: no-op if non-empty
		}
	}

	sc.store.onFailed(r, sc.vcsTracked)
}

func (sc *Scheduler) vcsTracked(path string) bool {
	return sc.vcs != nil && sc.vcs.IsTracked(path)
}

// ingest implements the nine numbered steps of spec §4.9's Finish,
// mutating r's edges and fingerprints in place.
func (sc *Scheduler) ingest(r RuleRef, result *trace.Result) error {
	s := sc.store
	root := sc.opts.Root

	oldOutputs := make(map[FileRef]struct{}, len(s.AllOutputs(r)))
	for f := range s.AllOutputs(r) {
		oldOutputs[f] = struct{}{}
	}

	// Step 1.
	s.ClearEdges(r)

	// Reads may include both files and directories; freshFingerprint
	// classifies each by Kind once stat'd below (spec §4.9 steps 5-6).
	reads := toSet(result.Reads)
	writes := toSet(result.Writes)

	// Step 2: explicit inputs.
	for _, f := range s.ExplicitInputs(r) {
		if err := s.ReattachExplicitInput(r, f); err != nil {
			return err
		}
		path := s.Path(f)
		delete(reads, path)
		delete(writes, path)
		fp, err := freshFingerprint(path)
		if err != nil {
			return err
		}
		if fp.Kind == KindFile || fp.Kind == KindSymlink {
			fp.Env = sc.env
			s.SetHashstat(f, fp)
			s.SetRuleHashstat(r, f, fp)
		}
	}

	// Step 3: written paths under the root, excluding VCS and cache paths.
	for _, path := range sortedStrings(writes) {
		if !underRoot(path, root) || isBoring(path) {
			continue
		}
		f := s.File(path)
		if s.IsCache(r, path) {
			continue
		}
		if owner, ok := s.Producer(f); ok && owner != r {
			return &GraphError{Msg: fmt.Sprintf("two rules generate same output %s: %q and %q", path, s.Command(owner), s.Command(r))}
		}
		if err := s.AddImplicitOutput(r, f); err != nil {
			return err
		}
		if err := sc.recordFingerprint(r, f, path); err != nil {
			return err
		}
		delete(oldOutputs, f)
	}

	// Step 4: mkdir'd directories, shared ownership allowed.
	for _, path := range sortedStrings(toSet(result.Mkdirs)) {
		if !underRoot(path, root) {
			continue
		}
		f := s.File(path)
		if err := attachSharedDirOutput(s, r, f); err != nil {
			return err
		}
		_ = sc.recordFingerprint(r, f, path)
		delete(oldOutputs, f)
		delete(reads, path)
	}

	// Steps 5 & 6: remaining read files and directories.
	for _, path := range sortedStrings(reads) {
		if isBoring(path) {
			continue
		}
		f := s.File(path)
		if s.IsCache(r, path) {
			continue
		}
		if _, ok := s.Producer(f); ok {
			if err := s.AddImplicitInput(r, f); err != nil {
				return err
			}
			continue
		}
		if underRoot(path, root) {
			if !s.GitChecked(f) {
				s.SetInGit(f, sc.vcsTracked(path))
			}
			if !s.IsInGit(f) {
				if sc.opts.GitAdd && sc.vcs != nil {
					if err := sc.vcs.Add(path); err != nil {
						return &MissingInputError{Rule: s.Command(r), Path: path, Hint: "git add failed: " + err.Error()}
					}
					s.SetInGit(f, true)
				} else {
					return &MissingInputError{Rule: s.Command(r), Path: path, Hint: "should be in git"}
				}
			}
		}
		if err := s.AddImplicitInput(r, f); err != nil {
			return err
		}
		_ = sc.recordFingerprint(r, f, path)
	}

	// Step 7: explicit outputs that were declared but never touched.
	for _, f := range s.ExplicitOutputs(r) {
		if _, ok := s.AllOutputs(r)[f]; ok {
			continue
		}
		if err := s.ReattachExplicitOutput(r, f); err != nil {
			return err
		}
		path := s.Path(f)
		fp, err := freshFingerprint(path)
		if err != nil {
			return err
		}
		if fp.Kind == KindNone {
			return &MissingInputError{Rule: s.Command(r), Path: path, Hint: "declared output was not produced"}
		}
		_ = sc.recordFingerprint(r, f, path)
		delete(oldOutputs, f)
	}

	// Step 8: outputs from a prior run that survived untouched this time.
	for f := range oldOutputs {
		path := s.Path(f)
		fp, err := freshFingerprint(path)
		if err != nil || fp.Kind == KindNone {
			continue
		}
		if owner, ok := s.Producer(f); ok && owner != r {
			continue
		}
		_ = s.AddImplicitOutput(r, f)
	}

	return nil
}

func (sc *Scheduler) recordFingerprint(r RuleRef, f FileRef, path string) error {
	fp, err := freshFingerprint(path)
	if err != nil {
		return err
	}
	fp.Env = sc.env
	sc.store.SetHashstat(f, fp)
	sc.store.SetRuleHashstat(r, f, fp)
	return nil
}

// attachSharedDirOutput attaches f as an output of r even if another rule
// already owns it, since multiple rules are allowed to mkdir the same
// directory (spec §4.9 step 4).
func attachSharedDirOutput(s *Store, r RuleRef, f FileRef) error {
	if owner, ok := s.Producer(f); ok && owner != r {
		if _, ok := s.rules[r].allInputs[f]; ok {
			return &GraphError{Msg: fmt.Sprintf("rule %q: %s is both an input and an output", s.Command(r), s.Path(f))}
		}
		s.rules[r].allOutputs[f] = struct{}{}
		return nil
	}
	return s.AddImplicitOutput(r, f)
}

func toSet(paths []string) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out
}
