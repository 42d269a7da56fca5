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
	"time"

	"github.com/facbuild/fac/internal/watch"
)

// Continual implements spec §4.10: after each build pass, every existing
// input with at least one consumer that lies under the root or is a
// regular file is watched; the first change wakes the loop back into Run.
func (sc *Scheduler) Continual(targets []string) error {
	for {
		if _, err := sc.Run(targets); err != nil {
			if _, ok := err.(*InterruptedError); ok {
				return nil
			}
			return err
		}

		w, err := watch.New(100 * time.Millisecond)
		if err != nil {
			return err
		}
		sc.installWatches(w)

		path, ok := sc.waitForChange(w)
		w.Close() //nolint:errcheck
		if !ok {
			return nil
		}
		sc.logger.Printf("%s changed, rebuilding", path)
		sc.modifiedFile(path)
	}
}

func (sc *Scheduler) installWatches(w *watch.Watcher) {
	for _, f := range sc.store.AllFiles() {
		if len(sc.store.Children(f)) == 0 {
			continue
		}
		path := sc.store.Path(f)
		fp, err := statFingerprint(path)
		if err != nil || fp.Kind == KindNone {
			continue
		}
		if !underRoot(path, sc.opts.Root) && fp.Kind != KindFile {
			continue
		}
		_ = w.Add(path) //nolint:errcheck // a file removed between Mark and here just won't be watched
	}
}

func (sc *Scheduler) waitForChange(w *watch.Watcher) (string, bool) {
	for {
		select {
		case path, ok := <-w.Events():
			if !ok {
				return "", false
			}
			return path, true
		case <-sc.opts.Interrupted:
			return "", false
		}
	}
}
