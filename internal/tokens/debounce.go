// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokens

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a scheduled task runs.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer runs only the most recently scheduled task, after a quiet
// period. Scheduling a new task cancels the pending one: its timer is
// stopped and its context is cancelled, which also reaches a task that has
// already started.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay}
}

// Schedule arms task to run after the quiet period, superseding any
// pending task.
func (d *Debouncer) Schedule(task func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.seq++
	seq := d.seq

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq || ctx.Err() != nil {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		task(ctx)
	})
}

// Cancel drops the pending task, if any. Safe to call repeatedly.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.seq++
}

// Pending reports whether a task is waiting for its quiet period to end.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
