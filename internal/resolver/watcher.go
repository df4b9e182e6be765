// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolver

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// RulesWatcher reloads a CustomRules set whenever its backing file changes,
// so operators can adjust routing without restarting the agent.
type RulesWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchRules starts watching the rules file and reloads it on change.
// The parent directory is watched rather than the file itself, because
// editors commonly replace the file via rename.
func WatchRules(path string, rules *CustomRules, onReload func()) (*RulesWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &RulesWatcher{watcher: watcher, done: make(chan struct{})}
	target := filepath.Clean(path)

	go func() {
		// Editors fire a burst of events per save; the timer resets on each
		// qualifying event so the burst collapses into a single reload.
		debounce := time.NewTimer(debounceDelay)
		if !debounce.Stop() {
			<-debounce.C
		}
		armed := false

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if armed && !debounce.Stop() {
					<-debounce.C
				}
				debounce.Reset(debounceDelay)
				armed = true
			case <-debounce.C:
				armed = false
				log.Infof("Rules file changed (%s), reloading...", path)
				if err := rules.Reload(path); err != nil {
					log.Errorf("Failed to reload rules file: %v", err)
					continue
				}
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Rules watcher error: %v", err)
			case <-w.done:
				if armed {
					debounce.Stop()
				}
				return
			}
		}
	}()

	return w, nil
}

const debounceDelay = 100 * time.Millisecond

// Close stops the watcher.
func (w *RulesWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
