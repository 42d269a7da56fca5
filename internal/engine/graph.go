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

// Package engine implements the incremental, trace-driven dependency
// engine: the rule/file graph, the cleanliness decision procedure, the
// parallel scheduler, and the .fac / .fac.tum persistence format.
package engine

import "fmt"

// FileRef and RuleRef are opaque small-integer handles into a Store's
// dense arenas. Lookups are O(1) array indexing; handles are never
// reused and a stale handle (spec §3's "known small leak" on canonical
// path drift) simply becomes unreachable garbage.
type FileRef int

// RuleRef is the handle type for rules. See FileRef.
type RuleRef int

const invalidRef = -1

// fileNode is one entry in the file arena.
type fileNode struct {
	path string

	rule       RuleRef // producer; invalidRef if none
	children   map[RuleRef]struct{}
	rulesIn    map[RuleRef]struct{} // rules declared in this file, if it is itself a .fac
	hashstat   Fingerprint
	isInGit    bool
	gitChecked bool
}

// ruleNode is one entry in the rule arena.
type ruleNode struct {
	command string
	workdir string

	facfile string
	linenum int
	isDefault bool

	inputs  []FileRef
	outputs []FileRef

	allInputs  map[FileRef]struct{}
	allOutputs map[FileRef]struct{}

	hashstats map[FileRef]Fingerprint

	cachePrefixes []string
	cacheSuffixes []string

	status Status
}

// Store is the graph store of spec §4.2: dense arrays of File and Rule
// entities addressed by stable integer handles, with a path->file map and
// a (command, workdir)->rule map.
type Store struct {
	files []fileNode
	rules []ruleNode

	byPath map[string]FileRef
	byKey  map[ruleKey]RuleRef

	byStatus map[Status]map[RuleRef]struct{}

	// Root is the repository root, used by the cleanliness evaluator to
	// decide whether a path without a producer is "ours to worry about"
	// (spec §4.7 steps 3-4).
	Root string

	// dirtyTums tracks .fac files whose .fac.tum sibling needs to be
	// re-saved because a refresh updated a stored fingerprint's cheap
	// fields (spec §4.7 step 5) without the rule itself going dirty.
	dirtyTums map[string]struct{}

	// reparseQueue holds .fac paths produced by a rule that just went
	// Clean or Built, pending re-parsing by the scheduler (spec §4.7 step
	// 7, §4.9 built()).
	reparseQueue []string
}

type ruleKey struct {
	command string
	workdir string
}

// NewStore returns an empty graph store.
func NewStore(root string) *Store {
	return &Store{
		byPath:    make(map[string]FileRef),
		byKey:     make(map[ruleKey]RuleRef),
		byStatus:  make(map[Status]map[RuleRef]struct{}),
		dirtyTums: make(map[string]struct{}),
		Root:      root,
	}
}

// QueueReparse marks facPath as needing to be re-parsed by the scheduler.
func (s *Store) QueueReparse(facPath string) {
	s.reparseQueue = append(s.reparseQueue, facPath)
}

// DrainReparseQueue returns and clears the pending .fac re-parse queue.
func (s *Store) DrainReparseQueue() []string {
	q := s.reparseQueue
	s.reparseQueue = nil
	return q
}

// MarkTumDirty records that facfile's .fac.tum needs to be re-saved even
// though no rule in it went dirty (a fingerprint refresh touched it).
func (s *Store) MarkTumDirty(facfile string) {
	s.dirtyTums[facfile] = struct{}{}
}

// DrainDirtyTums returns and clears the set of .fac files whose sibling
// needs saving.
func (s *Store) DrainDirtyTums() []string {
	out := make([]string, 0, len(s.dirtyTums))
	for f := range s.dirtyTums {
		out = append(out, f)
	}
	s.dirtyTums = make(map[string]struct{})
	return out
}

// UnderRoot reports whether path lies under the repository root.
func (s *Store) UnderRoot(path string) bool {
	return underRoot(path, s.Root)
}

// File looks up or creates the File for a canonical path, per spec §3's
// lifecycle note: entities are created on first reference.
func (s *Store) File(path string) FileRef {
	if r, ok := s.byPath[path]; ok {
		return r
	}
	r := FileRef(len(s.files))
	s.files = append(s.files, fileNode{path: path, rule: invalidRef})
	s.byPath[path] = r
	return r
}

// LookupFile returns the FileRef for path if it already exists.
func (s *Store) LookupFile(path string) (FileRef, bool) {
	r, ok := s.byPath[path]
	return r, ok
}

// Path returns the canonical path of f.
func (s *Store) Path(f FileRef) string { return s.files[f].path }

// replacePath moves an existing file handle to a new canonical path,
// implementing the symlink-drift handling of spec §4.9 step 4: the old
// handle is deliberately left as unreachable garbage (spec §3, §9).
func (s *Store) replacePath(old FileRef, newPath string) FileRef {
	delete(s.byPath, s.files[old].path)
	nf := s.File(newPath)
	s.files[nf].isInGit = s.files[old].isInGit
	s.files[nf].gitChecked = s.files[old].gitChecked
	return nf
}

// FixDriftedInput repoints r's explicit-input edge at old to a new
// canonical path, implementing spec §4.9 step 4's symlink-drift repair:
// both the order-preserving inputs slice and the all_inputs/children
// edges are updated to the fresh handle.
func (s *Store) FixDriftedInput(r RuleRef, old FileRef, newPath string) FileRef {
	nf := s.replacePath(old, newPath)
	for i, f := range s.rules[r].inputs {
		if f == old {
			s.rules[r].inputs[i] = nf
		}
	}
	delete(s.rules[r].allInputs, old)
	delete(s.files[old].children, r)
	s.addInput(r, nf) //nolint:errcheck // addInput never fails
	return nf
}

// Rule looks up the rule identified by (command, workdir). If it already
// exists, Rule returns it and false; otherwise it creates a new Unknown
// rule and returns it with true.
func (s *Store) Rule(command, workdir string) (RuleRef, bool) {
	k := ruleKey{command, workdir}
	if r, ok := s.byKey[k]; ok {
		return r, false
	}
	r := RuleRef(len(s.rules))
	s.rules = append(s.rules, ruleNode{
		command:    command,
		workdir:    workdir,
		allInputs:  make(map[FileRef]struct{}),
		allOutputs: make(map[FileRef]struct{}),
		hashstats:  make(map[FileRef]Fingerprint),
		status:     Unknown,
	})
	s.byKey[k] = r
	s.setStatus(r, Unknown)
	return r, true
}

// LookupRule returns the RuleRef for (command, workdir) if it exists.
func (s *Store) LookupRule(command, workdir string) (RuleRef, bool) {
	r, ok := s.byKey[ruleKey{command, workdir}]
	return r, ok
}

// Command, Workdir, Status, Site and the other small accessors below
// exist so callers outside the package never touch ruleNode/fileNode
// fields directly; every mutation that affects an invariant goes through
// a named method instead.

func (s *Store) Command(r RuleRef) string  { return s.rules[r].command }
func (s *Store) Workdir(r RuleRef) string  { return s.rules[r].workdir }
func (s *Store) Status(r RuleRef) Status   { return s.rules[r].status }
func (s *Store) IsDefault(r RuleRef) bool  { return s.rules[r].isDefault }
func (s *Store) SetDefault(r RuleRef, v bool) { s.rules[r].isDefault = v }

// SetSite sets the declaration site of a rule (used for duplicate-rule
// error messages, spec §4.3).
func (s *Store) SetSite(r RuleRef, facfile string, linenum int) {
	s.rules[r].facfile = facfile
	s.rules[r].linenum = linenum
}

// Site returns the declaration site of a rule.
func (s *Store) Site(r RuleRef) (string, int) {
	return s.rules[r].facfile, s.rules[r].linenum
}

// ExplicitInputs returns the order-preserving explicit inputs of r.
func (s *Store) ExplicitInputs(r RuleRef) []FileRef { return s.rules[r].inputs }

// ExplicitOutputs returns the order-preserving explicit outputs of r.
func (s *Store) ExplicitOutputs(r RuleRef) []FileRef { return s.rules[r].outputs }

// AllInputs returns every discovered input (explicit ∪ implicit) of r.
func (s *Store) AllInputs(r RuleRef) map[FileRef]struct{} { return s.rules[r].allInputs }

// AllOutputs returns every discovered output (explicit ∪ implicit) of r.
func (s *Store) AllOutputs(r RuleRef) map[FileRef]struct{} { return s.rules[r].allOutputs }

// Producer returns the rule that owns f, if any.
func (s *Store) Producer(f FileRef) (RuleRef, bool) {
	rl := s.files[f].rule
	if rl == invalidRef {
		return 0, false
	}
	return rl, true
}

// Children returns the rules that have read f.
func (s *Store) Children(f FileRef) map[RuleRef]struct{} { return s.files[f].children }

// IsInGit reports whether f was listed by the source-control adapter.
func (s *Store) IsInGit(f FileRef) bool { return s.files[f].isInGit }

// SetInGit records whether f is tracked by version control.
func (s *Store) SetInGit(f FileRef, v bool) {
	s.files[f].isInGit = v
	s.files[f].gitChecked = true
}

// GitChecked reports whether SetInGit has been called for f yet.
func (s *Store) GitChecked(f FileRef) bool { return s.files[f].gitChecked }

// SeedGitStatus resolves IsInGit for every file that hasn't been checked
// yet, so the first Evaluate pass over a rule never mistakes "not asked
// yet" for "not tracked." Called once at the top of Scheduler.Run;
// diagnoseRule still checks lazily afterwards for files created later
// (e.g. by FixDriftedInput).
func (s *Store) SeedGitStatus(vcs VCS) {
	if vcs == nil {
		return
	}
	for _, f := range s.AllFiles() {
		if s.GitChecked(f) {
			continue
		}
		s.SetInGit(f, vcs.IsTracked(s.Path(f)))
	}
}

// Hashstat returns the last-observed fingerprint of f.
func (s *Store) Hashstat(f FileRef) Fingerprint { return s.files[f].hashstat }

// SetHashstat updates the last-observed fingerprint of f.
func (s *Store) SetHashstat(f FileRef, fp Fingerprint) { s.files[f].hashstat = fp }

// RuleHashstat returns the fingerprint r recorded the last time it ran or
// was checked clean for file f, and whether one is recorded at all.
func (s *Store) RuleHashstat(r RuleRef, f FileRef) (Fingerprint, bool) {
	fp, ok := s.rules[r].hashstats[f]
	return fp, ok
}

// SetRuleHashstat records the fingerprint r observed for f.
func (s *Store) SetRuleHashstat(r RuleRef, f FileRef, fp Fingerprint) {
	s.rules[r].hashstats[f] = fp
}

// AddExplicitInput declares f as an explicit, order-preserving input of
// r, and also as an implicit input (all_inputs ⊇ inputs, spec §3).
// Reports a GraphError if f is already an output of r.
func (s *Store) AddExplicitInput(r RuleRef, f FileRef) error {
	if _, ok := s.rules[r].allOutputs[f]; ok {
		return &GraphError{Msg: fmt.Sprintf("rule %q: %s is both an input and an output", s.rules[r].command, s.files[f].path)}
	}
	s.rules[r].inputs = append(s.rules[r].inputs, f)
	return s.addInput(r, f)
}

// AddImplicitInput declares f as a discovered (non-explicit) input of r.
func (s *Store) AddImplicitInput(r RuleRef, f FileRef) error {
	if _, ok := s.rules[r].allOutputs[f]; ok {
		return &GraphError{Msg: fmt.Sprintf("rule %q: %s is both an input and an output", s.rules[r].command, s.files[f].path)}
	}
	return s.addInput(r, f)
}

func (s *Store) addInput(r RuleRef, f FileRef) error {
	s.rules[r].allInputs[f] = struct{}{}
	if s.files[f].children == nil {
		s.files[f].children = make(map[RuleRef]struct{})
	}
	s.files[f].children[r] = struct{}{}
	return nil
}

// AddExplicitOutput declares f as an explicit, order-preserving output of
// r. Reports a GraphError if f is already owned by a different rule, or
// already an input of r.
func (s *Store) AddExplicitOutput(r RuleRef, f FileRef) error {
	s.rules[r].outputs = append(s.rules[r].outputs, f)
	return s.addOutput(r, f)
}

// AddImplicitOutput declares f as a discovered output of r.
func (s *Store) AddImplicitOutput(r RuleRef, f FileRef) error {
	return s.addOutput(r, f)
}

func (s *Store) addOutput(r RuleRef, f FileRef) error {
	if _, ok := s.rules[r].allInputs[f]; ok {
		return &GraphError{Msg: fmt.Sprintf("rule %q: %s is both an input and an output", s.rules[r].command, s.files[f].path)}
	}
	if owner := s.files[f].rule; owner != invalidRef && owner != r {
		return &GraphError{Msg: fmt.Sprintf("two rules generate same output %s: %q and %q", s.files[f].path, s.rules[owner].command, s.rules[r].command)}
	}
	s.files[f].rule = r
	s.rules[r].allOutputs[f] = struct{}{}
	return nil
}

// ReattachExplicitInput re-adds f to r's all_inputs/children after
// ClearEdges, without duplicating r's explicit inputs slice (which
// ClearEdges never touches).
func (s *Store) ReattachExplicitInput(r RuleRef, f FileRef) error {
	return s.addInput(r, f)
}

// ReattachExplicitOutput re-adds f to r's all_outputs/ownership after
// ClearEdges, without duplicating r's explicit outputs slice.
func (s *Store) ReattachExplicitOutput(r RuleRef, f FileRef) error {
	return s.addOutput(r, f)
}

// ClearEdges detaches every all_inputs/all_outputs edge of r, removing
// the symmetric back-links on the touched files. It does not touch the
// explicit inputs/outputs slices. Used by Finish (spec §4.9) before
// re-deriving a rule's edges from a fresh trace.
func (s *Store) ClearEdges(r RuleRef) {
	for f := range s.rules[r].allInputs {
		delete(s.files[f].children, r)
	}
	for f := range s.rules[r].allOutputs {
		if s.files[f].rule == r {
			s.files[f].rule = invalidRef
		}
	}
	s.rules[r].allInputs = make(map[FileRef]struct{})
	s.rules[r].allOutputs = make(map[FileRef]struct{})
}

// resetExplicitDeclaration drops r's explicit inputs/outputs, cache
// patterns and all_inputs/all_outputs edges, keeping r's hashstats and
// identity intact. Used when a .fac file that is itself a rule's output
// reparses itself (spec §9): the rule survives under the same RuleRef so
// its build history carries over, but its declaration is rebuilt from
// scratch by the parse pass that follows.
func (s *Store) resetExplicitDeclaration(r RuleRef) {
	s.ClearEdges(r)
	s.rules[r].inputs = nil
	s.rules[r].outputs = nil
	s.rules[r].cacheSuffixes = nil
	s.rules[r].cachePrefixes = nil
}

// SetCachePatterns sets the cache-suffix and cache-prefix patterns of r
// (the `c`/`C` lines of spec §4.3).
func (s *Store) SetCachePatterns(r RuleRef, suffixes, prefixes []string) {
	s.rules[r].cacheSuffixes = suffixes
	s.rules[r].cachePrefixes = prefixes
}

// AddCacheSuffix appends one cache-suffix pattern to r.
func (s *Store) AddCacheSuffix(r RuleRef, p string) {
	s.rules[r].cacheSuffixes = append(s.rules[r].cacheSuffixes, p)
}

// AddCachePrefix appends one cache-prefix pattern to r.
func (s *Store) AddCachePrefix(r RuleRef, p string) {
	s.rules[r].cachePrefixes = append(s.rules[r].cachePrefixes, p)
}

// IsCache reports whether path matches one of r's cache patterns, per
// cachepattern.go.
func (s *Store) IsCache(r RuleRef, path string) bool {
	return matchesCachePatterns(path, s.rules[r].cacheSuffixes, s.rules[r].cachePrefixes)
}

// RulesDefinedIn returns the rules declared inside f, if f is itself a
// .fac file that has been parsed.
func (s *Store) RulesDefinedIn(f FileRef) map[RuleRef]struct{} { return s.files[f].rulesIn }

// SetRulesDefinedIn records the rule set declared inside f.
func (s *Store) SetRulesDefinedIn(f FileRef, rules map[RuleRef]struct{}) {
	s.files[f].rulesIn = rules
}

// AllRules returns every rule handle in the store, in creation order.
func (s *Store) AllRules() []RuleRef {
	out := make([]RuleRef, len(s.rules))
	for i := range s.rules {
		out[i] = RuleRef(i)
	}
	return out
}

// AllFiles returns every file handle in the store, in creation order.
func (s *Store) AllFiles() []FileRef {
	out := make([]FileRef, len(s.files))
	for i := range s.files {
		out[i] = FileRef(i)
	}
	return out
}
