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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// ParseFacFile reads a .fac file into the store, per spec §4.3.
//
// A line shorter than two characters, or starting with '#', is ignored.
// Every other line is "<tag><SP><payload>". root is the repository root,
// used to resolve 'C' (cache-prefix) lines when relative.
func (s *Store) ParseFacFile(path, root string) (FileRef, error) {
	b, err := os.ReadFile(path) //#nosec G304
	if err != nil {
		return 0, &IOError{Path: path, Err: err}
	}
	return s.parseFacBytes(path, root, b)
}

// parseFacBytes is ParseFacFile's implementation, split out so Discover
// can read files concurrently and feed already-loaded bytes into the
// part that actually mutates the store.
func (s *Store) parseFacBytes(path, root string, b []byte) (FileRef, error) {
	dir := filepath.Dir(path)

	ff := s.File(path)
	defined := make(map[RuleRef]struct{})

	var cur RuleRef
	haveCur := false

	lines := bytes.Split(b, []byte("\n"))
	for i, raw := range lines {
		linenum := i + 1
		line := string(raw)
		if len(line) < 2 || line[0] == '#' {
			continue
		}
		if line[1] != ' ' {
			return 0, &ParseError{File: path, Line: linenum, Msg: "missing space in column 2"}
		}
		tag, payload := line[0], line[2:]

		switch tag {
		case '|', '?':
			r, isNew := s.Rule(payload, dir)
			if !isNew {
				ef, el := s.Site(r)
				_, redeclared := defined[r]
				if redeclared || ef != path {
					return 0, &ParseError{File: path, Line: linenum, Msg: fmt.Sprintf("duplicate rule (first declared at %s:%d): %s", ef, el, payload)}
				}
				// Same .fac reparsing itself: keep the RuleRef so hashstats
				// survive, but drop its prior explicit declarations and
				// edges before this pass rebuilds them from scratch.
				s.resetExplicitDeclaration(r)
			}
			s.SetSite(r, path, linenum)
			s.SetDefault(r, tag == '|')
			cur = r
			haveCur = true
			defined[r] = struct{}{}

		case '>':
			if !haveCur {
				return 0, &ParseError{File: path, Line: linenum, Msg: "'>' without a preceding '|' or '?'"}
			}
			p, err := normalizePath(dir, payload)
			if err != nil {
				return 0, &ParseError{File: path, Line: linenum, Msg: err.Error()}
			}
			f := s.File(p)
			if err := s.AddExplicitOutput(cur, f); err != nil {
				return 0, err
			}

		case '<':
			if !haveCur {
				return 0, &ParseError{File: path, Line: linenum, Msg: "'<' without a preceding '|' or '?'"}
			}
			p, err := normalizePath(dir, payload)
			if err != nil {
				return 0, &ParseError{File: path, Line: linenum, Msg: err.Error()}
			}
			f := s.File(p)
			if err := s.AddExplicitInput(cur, f); err != nil {
				return 0, err
			}

		case 'c':
			if !haveCur {
				return 0, &ParseError{File: path, Line: linenum, Msg: "'c' without a preceding '|' or '?'"}
			}
			s.AddCacheSuffix(cur, payload)

		case 'C':
			if !haveCur {
				return 0, &ParseError{File: path, Line: linenum, Msg: "'C' without a preceding '|' or '?'"}
			}
			p := payload
			if !filepath.IsAbs(p) {
				p = filepath.Join(root, p)
			}
			s.AddCachePrefix(cur, p)

		default:
			return 0, &ParseError{File: path, Line: linenum, Msg: fmt.Sprintf("unknown tag %q", string(tag))}
		}
	}

	s.reconcileRulesDefinedIn(ff, defined)

	tumPath := path + ".tum"
	if _, err := os.Stat(tumPath); err == nil {
		if err := s.LoadFacTum(tumPath); err != nil {
			return 0, err
		}
	}
	return ff, nil
}

// reconcileRulesDefinedIn implements the Open Question resolution for
// re-parsing a .fac that is itself a rule output (spec §9): the rule set
// declared inside the file replaces the previous one; rules that persist
// by (command, workdir) identity keep their RuleRef and hashstats (the
// parse loop already reset their declarations and edges, which the parse
// and the .fac.tum load rebuild), rules that disappeared are
// simply dropped from the file's rulesIn set — they remain reachable only
// through the graph's byKey map, which is fine per spec §3's documented
// small leak, since no build pass will reference them again.
func (s *Store) reconcileRulesDefinedIn(ff FileRef, defined map[RuleRef]struct{}) {
	s.SetRulesDefinedIn(ff, defined)
}
