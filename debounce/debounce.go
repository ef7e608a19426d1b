// Package debounce delays propagation of a rapidly changing value until it
// has settled for a fixed window.
package debounce

import (
	"sync"
	"time"
)

// Debouncer emits the latest input once no further change has arrived within
// the delay. The initial value is available immediately.
type Debouncer[T comparable] struct {
	delay time.Duration

	mu      sync.Mutex
	value   T // last emitted
	latest  T // last input
	timer   *time.Timer
	gen     uint64
	out     chan T
	stopped bool
}

// New returns a debouncer whose first emission is initial, delivered without
// waiting.
func New[T comparable](initial T, delay time.Duration) *Debouncer[T] {
	d := &Debouncer[T]{
		delay:  delay,
		value:  initial,
		latest: initial,
		out:    make(chan T, 1),
	}
	d.out <- initial
	return d
}

// C delivers settled values. Only the most recent unread value is buffered.
// The channel is closed by Stop.
func (d *Debouncer[T]) C() <-chan T {
	return d.out
}

// Value returns the last settled value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Set records a new input and restarts the window. Setting the input it
// already holds is a no-op.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || v == d.latest {
		return
	}
	d.latest = v
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// A timer that was stopped too late may still run; gen identifies it.
	if d.stopped || gen != d.gen || d.latest == d.value {
		return
	}
	d.value = d.latest
	select {
	case <-d.out:
	default:
	}
	d.out <- d.value
}

// Flush emits the pending input now instead of waiting for the window to
// close.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.latest == d.value {
		return
	}
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.value = d.latest
	select {
	case <-d.out:
	default:
	}
	d.out <- d.value
}

// Stop cancels any pending emission and closes C. Values set afterwards are
// ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
