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

// Evaluate decides, for a Marked (or Unknown or Unready) rule, whether it
// must re-run, implementing the cleanliness procedure of spec §4.7. It
// recurses into producer rules that haven't been decided yet and detects
// cycles via the transient BeingDetermined status.
func (s *Store) Evaluate(r RuleRef) error {
	switch s.Status(r) {
	case Clean, Built, Dirty, Building, Failed:
		return nil
	}

	if len(s.AllInputs(r)) == 0 && len(s.AllOutputs(r)) == 0 {
		s.onDirty(r, "never run")
		return nil
	}

	prev := s.Status(r)
	s.setStatus(r, BeingDetermined)

	unready := false
	for f := range s.AllInputs(r) {
		pr, ok := s.Producer(f)
		if !ok {
			continue
		}
		switch s.Status(pr) {
		case Unknown, Marked:
			if err := s.Evaluate(pr); err != nil {
				s.setStatus(r, prev)
				return err
			}
			switch s.Status(pr) {
			case Dirty, Unready, Building:
				unready = true
			}
		case BeingDetermined:
			return &CycleError{Chain: []string{s.Command(r), s.Path(f), s.Command(pr)}}
		case Dirty, Unready, Building:
			unready = true
		}
	}
	s.setStatus(r, prev)

	if unready {
		s.onUnready(r)
		return nil
	}

	// Step 3: explicit inputs with no producer, not in VC, under the
	// repository root: the rule will need the input materialized.
	for _, f := range s.ExplicitInputs(r) {
		if _, ok := s.Producer(f); ok {
			continue
		}
		if s.IsInGit(f) || !s.UnderRoot(s.Path(f)) {
			continue
		}
		s.onUnready(r)
		return nil
	}

	explicit := make(map[FileRef]struct{}, len(s.ExplicitInputs(r)))
	for _, f := range s.ExplicitInputs(r) {
		explicit[f] = struct{}{}
	}

	// Step 4: implicit inputs with no producer, not in VC, under the
	// repository root, and not a directory: the rule is dirty.
	for f := range s.AllInputs(r) {
		if _, ok := explicit[f]; ok {
			continue
		}
		if _, ok := s.Producer(f); ok {
			continue
		}
		if s.IsInGit(f) || !s.UnderRoot(s.Path(f)) {
			continue
		}
		fp, err := freshFingerprint(s.Path(f))
		if err != nil {
			s.onDirty(r, err.Error())
			return nil
		}
		if fp.Kind == KindDir {
			continue
		}
		s.onDirty(r, fmt.Sprintf("input %s has no rule", s.Path(f)))
		return nil
	}

	if excuse, found, err := s.evaluateInputs(r); err != nil {
		return err
	} else if found {
		s.onDirty(r, excuse)
		return nil
	}

	if excuse, found, err := s.evaluateOutputs(r); err != nil {
		return err
	} else if found {
		s.onDirty(r, excuse)
		return nil
	}

	s.onClean(r)
	return nil
}

// evaluateInputs implements spec §4.7 step 5.
func (s *Store) evaluateInputs(r RuleRef) (excuse string, dirty bool, err error) {
	for f := range s.AllInputs(r) {
		path := s.Path(f)
		old, have := s.RuleHashstat(r, f)
		if !have {
			fp, ferr := freshFingerprint(path)
			if ferr != nil {
				return ferr.Error(), true, nil
			}
			if fp.Kind == KindDir {
				continue
			}
			return fmt.Sprintf("no information on %s", path), true, nil
		}

		fresh, ferr := freshFingerprint(path)
		if ferr != nil {
			return ferr.Error(), true, nil
		}
		if fresh.cheapMatches(old) {
			continue
		}
		if s.IsCache(r, path) {
			continue
		}
		if contentMatches(fresh, old) {
			fresh.Env = old.Env
			s.SetRuleHashstat(r, f, fresh)
			if facfile, owned := s.owningFacfile(r); owned {
				s.MarkTumDirty(facfile)
			}
			continue
		}
		if !currentEnvMatches(old) {
			return "environment changed", true, nil
		}
		return fmt.Sprintf("%s has been modified", path), true, nil
	}
	return "", false, nil
}

// evaluateOutputs implements spec §4.7 step 6. Directory outputs whose
// contents changed are never dirty: the rule created the directory, but
// mutations inside it are not owned by the rule.
func (s *Store) evaluateOutputs(r RuleRef) (excuse string, dirty bool, err error) {
	for f := range s.AllOutputs(r) {
		path := s.Path(f)
		fresh, ferr := freshFingerprint(path)
		if ferr != nil {
			return ferr.Error(), true, nil
		}
		if fresh.Kind == KindNone {
			return fmt.Sprintf("output %s is missing", path), true, nil
		}
		old, have := s.RuleHashstat(r, f)
		if !have {
			return fmt.Sprintf("output %s has never been recorded", path), true, nil
		}
		if fresh.cheapMatches(old) {
			continue
		}
		if s.IsCache(r, path) {
			continue
		}
		if fresh.Kind == KindDir {
			// The directory exists; contents are not tracked.
			s.SetRuleHashstat(r, f, fresh)
			continue
		}
		if contentMatches(fresh, old) {
			fresh.Env = old.Env
			s.SetRuleHashstat(r, f, fresh)
			if facfile, owned := s.owningFacfile(r); owned {
				s.MarkTumDirty(facfile)
			}
			continue
		}
		if !currentEnvMatches(old) {
			return "environment changed", true, nil
		}
		return fmt.Sprintf("%s has been modified", path), true, nil
	}
	return "", false, nil
}

// owningFacfile returns the .fac file r was declared in, if any.
func (s *Store) owningFacfile(r RuleRef) (string, bool) {
	facfile, _ := s.Site(r)
	return facfile, facfile != ""
}
