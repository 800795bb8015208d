// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package watcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ppdev/cmd/logger"
	"github.com/ppdev/cmd/utils"
)

// DefaultWindow is how long the debouncer waits after the last event.
const DefaultWindow = 500 * time.Millisecond

// Event is a change to one watched file.
type Event struct {
	Name string // Base name of the file.
	Op   fsnotify.Op
}

// Listener is an interface for receivers of reload notifications.
type Listener interface {
	// Refresh is invoked once a burst of changes has settled. A returned
	// error is logged; the listener is expected to keep its previous state.
	Refresh() *utils.SourceError
}

// Invalidator drops cached state before a refresh.
type Invalidator interface {
	Invalidate()
}

type state int

const (
	idle state = iota
	pending
	restarting
)

func (s state) String() string {
	switch s {
	case idle:
		return "idle"
	case pending:
		return "pending"
	case restarting:
		return "restarting"
	}
	return "unknown"
}

// Debouncer coalesces bursts of events into a single refresh. Events that
// arrive while a refresh runs queue exactly one follow-up refresh.
type Debouncer struct {
	window      time.Duration
	invalidator Invalidator
	listener    Listener
	log         logger.MultiLogger
	refreshes   int64

	// Owned by the Run goroutine.
	state     state
	timer     *time.Timer
	lastEvent time.Time
	dirty     bool
}

// NewDebouncer returns a debouncer. A non-positive window means DefaultWindow.
// invalidator may be nil.
func NewDebouncer(window time.Duration, invalidator Invalidator, listener Listener) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{
		window:      window,
		invalidator: invalidator,
		listener:    listener,
		log:         utils.Logger.New("section", "watcher"),
	}
}

// Window returns the quiet period.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Refreshes returns how many refreshes have completed.
func (d *Debouncer) Refreshes() int {
	return int(atomic.LoadInt64(&d.refreshes))
}

// Run consumes events until ctx is done or events is closed. A closed
// channel still flushes a pending refresh before Run returns. Run never
// returns while a refresh is in progress.
func (d *Debouncer) Run(ctx context.Context, events <-chan Event) error {
	defer d.stop()

	var fire <-chan time.Time
	done := make(chan struct{}, 1)
	closed := false

	for {
		select {
		case <-ctx.Done():
			if d.state == restarting {
				<-done
			}
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events, closed = nil, true
				if d.state == idle {
					return nil
				}
				continue
			}
			d.lastEvent = time.Now()
			switch d.state {
			case idle:
				d.log.Debug("Change detected, waiting for more", "file", ev.Name, "op", ev.Op)
				d.state = pending
				fire = d.arm()
			case pending:
				fire = d.arm()
			case restarting:
				d.log.Debug("Change during reload, queueing another", "file", ev.Name)
				d.dirty = true
			}

		case <-fire:
			fire = nil
			d.state = restarting
			quiet := time.Since(d.lastEvent)
			go func() {
				d.refresh(quiet)
				done <- struct{}{}
			}()

		case <-done:
			atomic.AddInt64(&d.refreshes, 1)
			if d.dirty {
				d.dirty = false
				d.state = pending
				fire = d.arm()
				continue
			}
			d.state = idle
			if closed {
				return nil
			}
		}
	}
}

func (d *Debouncer) arm() <-chan time.Time {
	if d.timer == nil {
		d.timer = time.NewTimer(d.window)
	} else {
		d.timer.Reset(d.window)
	}
	return d.timer.C
}

func (d *Debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) refresh(quiet time.Duration) {
	d.log.Info("Reloading configuration", "quiet", quiet.Round(time.Millisecond))
	if d.invalidator != nil {
		d.invalidator.Invalidate()
	}
	if err := d.listener.Refresh(); err != nil {
		d.log.Error("Reload failed, keeping the previous configuration", "error", err)
	}
}
