// Package throttle limits how often a rendering action runs while always
// running the most recent one.
package throttle

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttle runs the first action of a quiet period immediately. Actions
// submitted while the interval has not elapsed replace a single pending
// action, which runs once the interval is over.
type Throttle struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	pending func()
	timer   *time.Timer

	runMu   sync.Mutex
	stopped atomic.Bool
}

// New returns a throttle allowing one action per interval.
func New(interval time.Duration) *Throttle {
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Do submits action.
func (t *Throttle) Do(action func()) {
	if t.stopped.Load() {
		return
	}

	t.mu.Lock()
	if t.timer != nil {
		t.pending = action
		t.mu.Unlock()
		return
	}
	r := t.limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		t.pending = action
		t.timer = time.AfterFunc(delay, t.fire)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.run(action)
}

// Stop drops any pending action. Once Stop returns no action runs.
func (t *Throttle) Stop() {
	t.stopped.Store(true)

	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
	t.mu.Unlock()

	// Wait for an action already in progress.
	t.runMu.Lock()
	t.runMu.Unlock() //nolint:staticcheck
}

func (t *Throttle) fire() {
	t.mu.Lock()
	action := t.pending
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()

	if action != nil {
		t.run(action)
	}
}

func (t *Throttle) run(action func()) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.stopped.Load() {
		return
	}
	action()
}
