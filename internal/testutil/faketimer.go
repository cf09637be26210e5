package testutil

import (
	"sort"
	"sync"
	"time"

	"mdtask/internal/scheduler"
)

// FakeTimer is a manually advanced scheduler.Timer.
// Callbacks run synchronously inside Advance.
type FakeTimer struct {
	mu        sync.Mutex
	now       time.Duration
	next      scheduler.Handle
	pending   map[scheduler.Handle]*fakeCallback
	scheduled int
}

type fakeCallback struct {
	handle scheduler.Handle
	at     time.Duration
	fn     func()
}

// NewFakeTimer creates a FakeTimer at time zero.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{pending: make(map[scheduler.Handle]*fakeCallback)}
}

// Schedule implements scheduler.Timer.
func (f *FakeTimer) Schedule(d time.Duration, fn func()) scheduler.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.scheduled++
	f.pending[f.next] = &fakeCallback{handle: f.next, at: f.now + d, fn: fn}
	return f.next
}

// Cancel implements scheduler.Timer.
func (f *FakeTimer) Cancel(h scheduler.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, h)
}

// Advance moves time forward by d, running every callback that comes due
// in order. Callbacks scheduled by callbacks run if they fall due within d.
func (f *FakeTimer) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now + d
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due []*fakeCallback
		for _, cb := range f.pending {
			if cb.at <= target {
				due = append(due, cb)
			}
		}
		if len(due) == 0 {
			f.now = target
			f.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at != due[j].at {
				return due[i].at < due[j].at
			}
			return due[i].handle < due[j].handle
		})
		cb := due[0]
		delete(f.pending, cb.handle)
		f.now = cb.at
		f.mu.Unlock()

		cb.fn()
	}
}

// Pending returns the number of callbacks waiting to fire.
func (f *FakeTimer) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Scheduled returns the number of Schedule calls so far.
func (f *FakeTimer) Scheduled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled
}
