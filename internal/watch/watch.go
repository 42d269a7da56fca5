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

// Package watch wraps fsnotify for continual mode (spec §4.10): a rebuild
// loop that waits for any input to change rather than exiting after one
// pass. Rapid bursts of events for the same path (an editor's
// write-then-rename save dance, for instance) are coalesced into a single
// debounced notification.
package watch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports debounced path-changed events for a set of watched
// files and directories.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// New starts a Watcher. debounce bounds how long a burst of events for
// the same path is collapsed into one notification; 50ms if zero.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	w := &Watcher{
		fsw:      fsw,
		events:   make(chan string, 64),
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
	go w.loop()
	return w, nil
}

// Add starts watching path, a file or directory.
func (w *Watcher) Add(path string) error {
	return w.fsw.Add(path)
}

// Remove stops watching path.
func (w *Watcher) Remove(path string) error {
	return w.fsw.Remove(path)
}

// Events yields one path at a time, no sooner than the debounce window
// after its last raw fsnotify event.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.events)
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.schedule(evt.Name)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Transient watcher errors (e.g. a removed directory's queue
			// overflowing) are not fatal: continual mode creates a new
			// Watcher after each rebuild and re-derives the watch set
			// from scratch.
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.events <- path
		}
	})
}
