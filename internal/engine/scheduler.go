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
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/facbuild/fac/internal/trace"
)

// VCS is the subset of version-control queries the scheduler needs: is a
// path tracked, and (with --git-add) can it be made so.
type VCS interface {
	IsTracked(path string) bool
	Add(path string) error
}

// Options configures a Scheduler, corresponding to the core CLI surface
// of spec §6.
type Options struct {
	Jobs        int
	DryRun      bool
	ShowOutput  bool
	GitAdd      bool
	LogDir      string
	Root        string
	Interrupted <-chan struct{}

	// Logger receives the engine's progress/diagnostic lines. Threading
	// it as data instead of a package-global (spec §9's Design Note on
	// "global verbosity state") lets a caller running many builds in one
	// process (or a test) give each its own sink. Defaults to a logger
	// writing to the Scheduler's out with a "fac: " prefix.
	Logger *log.Logger
}

// Scheduler drives the event loop of spec §4.9 over a Store.
type Scheduler struct {
	store  *Store
	tracer trace.Tracer
	vcs    VCS
	opts   Options
	out    io.Writer

	sem   *semaphore.Weighted
	eg    *errgroup.Group
	egCtx context.Context

	events chan Event

	mu          sync.Mutex
	killers     map[RuleRef]context.CancelFunc
	building    map[RuleRef]struct{}
	interrupted bool
	failedCount int

	env    []EnvVar
	logger *log.Logger
}

// NewScheduler constructs a Scheduler bound to store.
func NewScheduler(store *Store, tracer trace.Tracer, vcs VCS, opts Options, out io.Writer) *Scheduler {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	if out == nil {
		out = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(out, "fac: ", 0)
	}
	eg, egCtx := errgroup.WithContext(context.Background())
	return &Scheduler{
		store:    store,
		tracer:   tracer,
		vcs:      vcs,
		opts:     opts,
		out:      out,
		sem:      semaphore.NewWeighted(int64(opts.Jobs)),
		eg:       eg,
		egCtx:    egCtx,
		events:   make(chan Event, 16),
		killers:  make(map[RuleRef]context.CancelFunc),
		building: make(map[RuleRef]struct{}),
		env:      captureEnv(),
		logger:   logger,
	}
}

func captureEnv() []EnvVar {
	raw := os.Environ()
	env := make([]EnvVar, 0, len(raw))
	for _, kv := range raw {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env = append(env, EnvVar{Name: kv[:i], Value: kv[i+1:]})
		}
	}
	return env
}

// Run executes the scheduler loop to completion for the given targets,
// per spec §4.9. It returns the number of rules that failed, which the
// caller maps to the process exit code.
func (sc *Scheduler) Run(targets []string) (int, error) {
	sc.store.SeedGitStatus(sc.vcs)
	if _, err := sc.store.Mark(targets); err != nil {
		return 0, err
	}
	// Pick up both the roots Mark just selected and any rule a prior
	// continual-mode iteration already pushed back to Marked.
	worklist := sc.store.rulesInStatus(Marked)

	for {
		if sc.isInterrupted() {
			return sc.shutdown()
		}

		// Step 1: drain marked_rules.
		for len(worklist) > 0 {
			r := worklist[0]
			worklist = worklist[1:]
			if sc.store.Status(r) != Marked {
				continue
			}
			if err := sc.store.Evaluate(r); err != nil {
				return sc.failedCount, err
			}
		}
		worklist = append(worklist, sc.drainOnCleanMarks()...)
		if len(worklist) > 0 {
			continue
		}

		// Step 2: spawn while capacity and dirty work remain.
		spawned := false
		for sc.countBuilding() < sc.opts.Jobs {
			r, ok := sc.pickDirty()
			if !ok {
				break
			}
			sc.spawn(r)
			spawned = true
		}

		if sc.countBuilding() > 0 {
			// Step 3: block on the next completion.
			worklist = append(worklist, sc.handleOneEvent()...)
			continue
		}
		if spawned {
			continue
		}

		if sc.store.anyInStatus(Dirty, Marked) {
			continue
		}

		// Step 4: nothing running, dirty or marked; diagnose Unready rules.
		if sc.store.anyInStatus(Unready) {
			progressed, err := sc.diagnoseUnready()
			if err != nil {
				return sc.failedCount, err
			}
			if progressed {
				continue
			}
		}
		break
	}

	if err := sc.saveDirtyTums(); err != nil {
		return sc.failedCount, err
	}
	return sc.failedCount, nil
}

func (sc *Scheduler) isInterrupted() bool {
	if sc.opts.Interrupted == nil {
		return false
	}
	select {
	case <-sc.opts.Interrupted:
		return true
	default:
		return false
	}
}

func (sc *Scheduler) shutdown() (int, error) {
	sc.mu.Lock()
	sc.interrupted = true
	for _, cancel := range sc.killers {
		cancel()
	}
	sc.mu.Unlock()

	// Allow 1s for graceful termination, then stop waiting; killers were
	// already asked to cancel their subprocess's context, which on POSIX
	// escalates to SIGKILL via exec.CommandContext's default behavior.
	done := make(chan struct{})
	go func() {
		_ = sc.eg.Wait()
		close(done)
	}()
	deadline := time.After(time.Second)
wait:
	for {
		select {
		case evt := <-sc.events:
			sc.applyEvent(evt)
		case <-done:
			break wait
		case <-deadline:
			break wait
		}
	}

	for sc.countBuilding() > 0 {
		select {
		case evt := <-sc.events:
			sc.applyEvent(evt)
		default:
			sc.mu.Lock()
			sc.building = make(map[RuleRef]struct{})
			sc.mu.Unlock()
		}
	}
	_ = sc.saveDirtyTums()
	return sc.failedCount, &InterruptedError{}
}

func (sc *Scheduler) countBuilding() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.building)
}

func (sc *Scheduler) pickDirty() (RuleRef, bool) {
	for _, r := range sc.store.rulesInStatus(Dirty) {
		return r, true
	}
	return 0, false
}

// drainOnCleanMarks processes any .fac reparse requests queued by
// Evaluate's onClean/onBuilt cascades, feeding freshly Marked consumers
// back into the worklist.
func (sc *Scheduler) drainOnCleanMarks() []RuleRef {
	var fresh []RuleRef
	for _, path := range sc.store.DrainReparseQueue() {
		if _, err := sc.store.ParseFacFile(path, sc.opts.Root); err != nil {
			sc.logger.Printf("reparsing %s: %s", path, err)
			continue
		}
	}
	for _, r := range sc.store.rulesInStatus(Marked) {
		fresh = append(fresh, r)
	}
	return fresh
}

func (sc *Scheduler) saveDirtyTums() error {
	for _, facfile := range sc.store.DrainDirtyTums() {
		if err := sc.store.SaveFacTum(facfile); err != nil {
			return err
		}
	}
	for _, f := range sc.store.AllFiles() {
		path := sc.store.Path(f)
		if !strings.HasSuffix(path, ".fac") {
			continue
		}
		if len(sc.store.RulesDefinedIn(f)) == 0 {
			continue
		}
		if err := sc.store.SaveFacTum(path); err != nil {
			return err
		}
	}
	return nil
}

// spawn launches r's command, per the spawn contract of spec §4.9.
func (sc *Scheduler) spawn(r RuleRef) {
	sc.store.setStatus(r, Building)
	sc.mu.Lock()
	sc.building[r] = struct{}{}
	sc.mu.Unlock()

	if sc.opts.DryRun {
		sc.logger.Printf("would run: %s", sc.store.Command(r))
		sc.events <- Event{Kind: EvFinished, Rule: r, Result: &trace.Result{ExitCode: 0}}
		return
	}

	ctx, cancel := context.WithCancel(sc.egCtx)
	sc.mu.Lock()
	sc.killers[r] = cancel
	sc.mu.Unlock()

	if err := sc.sem.Acquire(sc.egCtx, 1); err != nil {
		sc.events <- Event{Kind: EvFinished, Rule: r, Err: err}
		return
	}

	command := sc.store.Command(r)
	workdir := sc.store.Workdir(r)
	env := os.Environ() // the tracer execs with the live environment; sc.env is the snapshot recorded into fingerprints

	sc.eg.Go(func() error {
		defer sc.sem.Release(1)
		defer func() {
			sc.mu.Lock()
			delete(sc.killers, r)
			sc.mu.Unlock()
		}()

		result, err := sc.tracer.Trace(ctx, []string{"/bin/sh", "-c", command}, workdir, env)
		if sc.opts.ShowOutput && result != nil {
			sc.out.Write(result.Stdout) //nolint:errcheck
			sc.out.Write(result.Stderr) //nolint:errcheck
		}
		if sc.opts.LogDir != "" && result != nil {
			sc.writeLog(r, result)
		}
		sc.events <- Event{Kind: EvFinished, Rule: r, Result: result, Err: err}
		return nil
	})
}

func (sc *Scheduler) writeLog(r RuleRef, result *trace.Result) {
	name := fmt.Sprintf("rule-%d.log", int(r))
	path := filepath.Join(sc.opts.LogDir, name)
	var buf strings.Builder
	buf.WriteString(sc.store.Command(r))
	buf.WriteByte('\n')
	buf.Write(result.Stdout)
	buf.Write(result.Stderr)
	_ = os.WriteFile(path, []byte(buf.String()), 0o644) //nolint:errcheck
}

// handleOneEvent blocks for the next event and applies it, returning any
// rules that need to go back on the worklist.
func (sc *Scheduler) handleOneEvent() []RuleRef {
	evt := <-sc.events
	return sc.applyEvent(evt)
}

func (sc *Scheduler) applyEvent(evt Event) []RuleRef {
	switch evt.Kind {
	case EvFinished:
		sc.mu.Lock()
		delete(sc.building, evt.Rule)
		sc.mu.Unlock()
		return sc.finish(evt.Rule, evt.Result, evt.Err)
	case EvNotifyChange:
		return sc.modifiedFile(evt.Path)
	case EvInterrupt:
		sc.mu.Lock()
		sc.interrupted = true
		sc.mu.Unlock()
	}
	return nil
}

// modifiedFile implements the continual-mode reaction of spec §4.10: a
// watched path changed, so its fingerprint is refreshed and its
// consumers are pushed back toward re-evaluation.
func (sc *Scheduler) modifiedFile(path string) []RuleRef {
	f, ok := sc.store.LookupFile(path)
	if !ok {
		return nil
	}
	fp, err := freshFingerprint(path)
	if err == nil {
		sc.store.SetHashstat(f, fp)
	}
	var fresh []RuleRef
	for c := range sc.store.Children(f) {
		if sc.store.Status(c) != Unknown {
			sc.store.setStatus(c, Marked)
			fresh = append(fresh, c)
		}
	}
	return fresh
}

func isBoring(path string) bool {
	if strings.HasPrefix(path, "/proc/") || strings.HasPrefix(path, "/dev/") {
		return true
	}
	if strings.HasSuffix(path, ".cache") {
		return true
	}
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".cache" {
			return true
		}
	}
	return false
}

func sortedStrings(in map[string]struct{}) []string {
	out := make([]string, 0, len(in))
	for s := range in {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
