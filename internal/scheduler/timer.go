package scheduler

import (
	"sync"
	"time"
)

// Handle identifies a scheduled callback.
type Handle uint64

// Timer schedules cancellable one-shot callbacks.
type Timer interface {
	// Schedule runs fn once after d. fn runs on its own goroutine.
	Schedule(d time.Duration, fn func()) Handle

	// Cancel prevents a pending callback from running. Cancelling a handle
	// that already fired is a no-op.
	Cancel(h Handle)
}

// RealTimer implements Timer with time.AfterFunc.
type RealTimer struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
}

// NewRealTimer creates a RealTimer.
func NewRealTimer() *RealTimer {
	return &RealTimer{timers: make(map[Handle]*time.Timer)}
}

func (t *RealTimer) Schedule(d time.Duration, fn func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next
	t.timers[h] = time.AfterFunc(d, func() {
		t.mu.Lock()
		_, live := t.timers[h]
		delete(t.timers, h)
		t.mu.Unlock()
		if live {
			fn()
		}
	})
	return h
}

func (t *RealTimer) Cancel(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.timers[h]; ok {
		tm.Stop()
		delete(t.timers, h)
	}
}

// Pending returns the number of callbacks that have not fired.
func (t *RealTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
