// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package watcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/ppdev/cmd/logger"
	"github.com/ppdev/cmd/utils"
)

// Watcher observes a project directory and feeds changes to the watched
// file names into a Debouncer.
type Watcher struct {
	dir       string
	names     map[string]bool
	debouncer *Debouncer
	log       logger.MultiLogger
}

// NewWatcher watches the files called names directly inside dir.
func NewWatcher(dir string, names []string, debouncer *Debouncer) *Watcher {
	w := &Watcher{
		dir:       dir,
		names:     make(map[string]bool, len(names)),
		debouncer: debouncer,
		log:       utils.Logger.New("section", "watcher"),
	}
	for _, n := range names {
		w.names[n] = true
	}
	return w
}

// Watches reports whether changes to the base name are of interest.
func (w *Watcher) Watches(name string) bool {
	return w.names[name]
}

// refreshRequired filters raw notifications. Attribute only changes are
// ignored.
func (w *Watcher) refreshRequired(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return w.Watches(filepath.Base(ev.Name))
}

// Listen watches until ctx is done. It returns once the debouncer has
// stopped, so no refresh is running when it returns.
func (w *Watcher) Listen(ctx context.Context) error {
	dir := w.dir
	// Watch the real directory when the project is a symlink.
	if f, err := os.Lstat(dir); err == nil && f.Mode()&os.ModeSymlink == os.ModeSymlink {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolved
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer fw.Close()
	if err = fw.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	w.log.Info("Watching config files", "dir", dir, "files", len(w.names), "debounce", w.debouncer.Window())

	// Buffered so a burst from an editor save does not stall fsnotify.
	events := make(chan Event, 100)
	result := make(chan error, 1)
	go func() {
		result <- w.debouncer.Run(ctx, events)
	}()

	errs := fw.Errors
	for {
		select {
		case <-ctx.Done():
			close(events)
			return ignoreCanceled(<-result)

		case ev, ok := <-fw.Events:
			if !ok {
				close(events)
				return <-result
			}
			if !w.refreshRequired(ev) {
				continue
			}
			w.log.Debug("Config file changed", "file", filepath.Base(ev.Name), "op", ev.Op)
			select {
			case events <- Event{Name: filepath.Base(ev.Name), Op: ev.Op}:
			case <-ctx.Done():
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Error("Watcher error", "error", err)
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
