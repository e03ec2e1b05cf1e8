// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokens

import (
	"context"
	"sync"
	"time"
)

// Live keeps a debounced token count for a changing input. A count is
// published only if the text it was computed for is still the latest input
// when it completes, so a slow estimate never overwrites a newer one.
type Live struct {
	est *Estimator
	deb *Debouncer

	mu       sync.Mutex
	gen      uint64
	latest   string
	count    int
	onResult func(int)
}

// NewLive creates a live estimator. onResult, when non-nil, is called from
// the timer goroutine with each published count.
func NewLive(est *Estimator, delay time.Duration, onResult func(int)) *Live {
	return &Live{
		est:      est,
		deb:      NewDebouncer(delay),
		onResult: onResult,
	}
}

// Update records text as the latest input and schedules an estimate. The
// generation bump and the schedule happen under one lock, so the debouncer
// always holds the task for the newest generation.
func (l *Live) Update(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	gen := l.gen
	l.latest = text

	l.deb.Schedule(func(ctx context.Context) {
		n := l.est.Estimate(text)

		l.mu.Lock()
		if gen != l.gen || ctx.Err() != nil {
			l.mu.Unlock()
			return
		}
		l.count = n
		cb := l.onResult
		l.mu.Unlock()

		if cb != nil {
			cb(n)
		}
	})
}

// Current returns the last published count.
func (l *Live) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Latest returns the most recent input passed to Update.
func (l *Live) Latest() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

// Stop cancels any pending estimate.
func (l *Live) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.deb.Cancel()
}
