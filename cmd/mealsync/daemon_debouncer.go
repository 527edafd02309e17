package main

import (
	"context"
	"sync"
	"time"
)

// Debouncer collapses a burst of triggers into one call of action, made
// once the triggers have been quiet for the debounce period. Safe for
// concurrent use.
type Debouncer struct {
	ctx    context.Context
	quiet  time.Duration
	action func(context.Context)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64 // bumped per Trigger; a timer only fires for the latest gen
	fires int

	inflight sync.WaitGroup
}

// NewDebouncer returns a Debouncer that calls action with ctx. Triggers that
// come due after ctx is done are dropped.
func NewDebouncer(ctx context.Context, quiet time.Duration, action func(context.Context)) *Debouncer {
	return &Debouncer{ctx: ctx, quiet: quiet, action: action}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen

	d.inflight.Add(1)
	d.timer = time.AfterFunc(d.quiet, func() {
		defer d.inflight.Done()

		d.mu.Lock()
		if d.gen != gen || d.ctx.Err() != nil {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.fires++
		d.mu.Unlock()

		// Called without the lock so action may Trigger again.
		d.action(d.ctx)
	})
}

// stopLocked stops a pending timer. A timer stopped before it fired never
// runs its func, so its inflight slot is released here.
func (d *Debouncer) stopLocked() {
	if d.timer != nil && d.timer.Stop() {
		d.inflight.Done()
	}
	d.timer = nil
}

// Cancel drops a pending action. An action already running is not waited for.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// CancelAndWait drops a pending action and waits for a running one to end.
func (d *Debouncer) CancelAndWait() {
	d.Cancel()
	d.inflight.Wait()
}

// Fires returns how many times action has been started.
func (d *Debouncer) Fires() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fires
}
