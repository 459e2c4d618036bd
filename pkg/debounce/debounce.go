// Package debounce coalesces bursts of events into a single call that fires
// once the burst has been quiet for a fixed period.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once per burst of Trigger calls. Every Trigger cancels
// the pending timer and starts a new one.
type Debouncer struct {
	quiet time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New creates a Debouncer. A non-positive quiet period makes Trigger call fn
// synchronously.
func New(quiet time.Duration, fn func()) *Debouncer {
	return &Debouncer{quiet: quiet, fn: fn}
}

// Trigger schedules fn, replacing any call that has not fired yet.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.quiet <= 0 {
		d.mu.Unlock()
		d.fn()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
	d.mu.Unlock()
}

// fire runs fn only if gen is still the latest trigger. A timer that already
// expired while Trigger was replacing it must not run a stale call.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush runs a pending call immediately. It is a no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	d.mu.Unlock()

	d.fn()
}

// Stop cancels any pending call. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Value debounces a stream of values and hands the most recent one to fn.
type Value[T any] struct {
	d *Debouncer

	mu     sync.Mutex
	latest T
}

// NewValue creates a value debouncer.
func NewValue[T any](quiet time.Duration, fn func(T)) *Value[T] {
	v := &Value[T]{}
	v.d = New(quiet, func() {
		v.mu.Lock()
		latest := v.latest
		v.mu.Unlock()
		fn(latest)
	})
	return v
}

// Trigger records value as the latest and restarts the quiet period.
func (v *Value[T]) Trigger(value T) {
	v.mu.Lock()
	v.latest = value
	v.mu.Unlock()
	v.d.Trigger()
}

// Flush delivers the latest value now if a call is pending.
func (v *Value[T]) Flush() { v.d.Flush() }

// Stop cancels any pending delivery.
func (v *Value[T]) Stop() { v.d.Stop() }

// Pending reports whether a delivery is scheduled.
func (v *Value[T]) Pending() bool { return v.d.Pending() }
