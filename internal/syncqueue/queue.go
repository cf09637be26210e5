// Package syncqueue runs sync operations one at a time.
//
// Operations are keyed. A pending operation is replaced by a later one with
// the same key and keeps its place in line; operations with distinct keys
// run in submission order. Only one operation executes at any moment.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("sync queue closed")

// Operation is one unit of sync work.
type Operation func(ctx context.Context) error

type entry struct {
	key  string
	op   Operation
	done chan error // set by Do, buffered
}

func (e *entry) finish(err error) {
	if e.done != nil {
		e.done <- err
	}
}

// Queue serializes operations.
type Queue struct {
	ctx    context.Context
	logger *slog.Logger
	manual bool

	mu       sync.Mutex
	pending  map[string]*entry
	order    []string
	draining bool
	closed   bool
	seq      uint64
	idle     chan struct{} // closed when nothing is pending or running
}

// Option configures a Queue.
type Option func(*Queue)

// WithManualDrain disables automatic draining; work only runs through
// ProcessNext.
func WithManualDrain() Option {
	return func(q *Queue) { q.manual = true }
}

// New creates a queue. Operations run with ctx.
func New(ctx context.Context, logger *slog.Logger, opts ...Option) *Queue {
	q := &Queue{
		ctx:     ctx,
		logger:  logger,
		pending: make(map[string]*entry),
		idle:    closedChan(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit queues op under key. A pending operation with the same key is
// replaced. An empty key is never coalesced.
func (q *Queue) Submit(key string, op Operation) error {
	return q.submit(key, op, nil)
}

// Do queues op under the empty key and waits for it to finish. It returns
// op's error, ctx.Err() if ctx ends first, or ErrClosed if the queue is
// closed before op gets to run.
func (q *Queue) Do(ctx context.Context, op Operation) error {
	done := make(chan error, 1)
	if err := q.submit("", op, done); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) submit(key string, op Operation, done chan error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if key == "" {
		q.seq++
		key = "#" + strconv.FormatUint(q.seq, 10)
	}

	if e, ok := q.pending[key]; ok {
		e.op = op
		q.logger.Debug("sync coalesced", "key", key)
		return nil
	}

	if len(q.pending) == 0 && !q.draining {
		q.idle = make(chan struct{})
	}
	q.pending[key] = &entry{key: key, op: op, done: done}
	q.order = append(q.order, key)

	if !q.manual && !q.draining {
		q.draining = true
		go q.drain()
	}
	return nil
}

// drain runs batches until nothing is pending.
func (q *Queue) drain() {
	for {
		batch := q.takeAll()
		if len(batch) == 0 {
			return
		}
		for i, e := range batch {
			if q.isClosed() {
				for _, dropped := range batch[i:] {
					dropped.finish(ErrClosed)
				}
				break
			}
			q.run(e)
		}
	}
}

// takeAll snapshots and clears the pending set. With nothing pending it ends
// the drain.
func (q *Queue) takeAll() []*entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		q.draining = false
		close(q.idle)
		return nil
	}
	batch := make([]*entry, 0, len(q.order))
	for _, key := range q.order {
		batch = append(batch, q.pending[key])
	}
	q.pending = make(map[string]*entry)
	q.order = nil
	return batch
}

// ProcessNext runs the oldest pending operation if no operation is running.
// It reports whether an operation ran.
func (q *Queue) ProcessNext() bool {
	q.mu.Lock()
	if q.draining || len(q.order) == 0 {
		q.mu.Unlock()
		return false
	}
	key := q.order[0]
	e := q.pending[key]
	q.order = q.order[1:]
	delete(q.pending, key)
	q.draining = true
	q.mu.Unlock()

	q.run(e)

	q.mu.Lock()
	q.draining = false
	if len(q.order) == 0 {
		close(q.idle)
	} else if !q.manual {
		q.draining = true
		go q.drain()
	}
	q.mu.Unlock()
	return true
}

func (q *Queue) run(e *entry) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("sync panicked", "key", e.key, "panic", fmt.Sprint(r))
			err = fmt.Errorf("sync %s panicked: %v", e.key, r)
		}
		e.finish(err)
	}()
	if err = e.op(q.ctx); err != nil {
		q.logger.Error("sync failed", "key", e.key, "err", err)
	}
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Wait blocks until nothing is pending or running, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops pending operations and rejects new ones. A running operation
// completes. Callers waiting in Do on a dropped operation get ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, key := range q.order {
		q.pending[key].finish(ErrClosed)
	}
	q.pending = make(map[string]*entry)
	q.order = nil
	if !q.draining {
		select {
		case <-q.idle:
		default:
			close(q.idle)
		}
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
