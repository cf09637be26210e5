package syncqueue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mdtask/internal/syncqueue"
	"mdtask/internal/testutil"
)

// recorder collects the names of operations in the order they ran.
type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) op(name string) syncqueue.Operation {
	return func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.ran = append(r.ran, name)
		return nil
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func waitIdle(t *testing.T, q *syncqueue.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func equal(a, b []string) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func TestProcessNext_FIFO(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger(), syncqueue.WithManualDrain())
	rec := &recorder{}

	q.Submit("a", rec.op("a"))
	q.Submit("b", rec.op("b"))
	q.Submit("c", rec.op("c"))

	for i := 0; i < 3; i++ {
		if !q.ProcessNext() {
			t.Fatalf("expected op %d to run", i)
		}
	}
	if q.ProcessNext() {
		t.Error("expected empty queue")
	}
	if got := rec.got(); !equal(got, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", got)
	}
}

func TestSubmit_CoalescesSameKey(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger(), syncqueue.WithManualDrain())
	rec := &recorder{}

	q.Submit("a", rec.op("a1"))
	q.Submit("b", rec.op("b"))
	q.Submit("a", rec.op("a2"))

	if q.Len() != 2 {
		t.Fatalf("expected 2 pending, got %d", q.Len())
	}
	for q.ProcessNext() {
	}
	if got := rec.got(); !equal(got, []string{"a2", "b"}) {
		t.Errorf("expected [a2 b], got %v", got)
	}
}

func TestSubmit_EmptyKeyNeverCoalesced(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger(), syncqueue.WithManualDrain())
	rec := &recorder{}

	q.Submit("", rec.op("x"))
	q.Submit("", rec.op("y"))
	for q.ProcessNext() {
	}
	if got := rec.got(); !equal(got, []string{"x", "y"}) {
		t.Errorf("expected [x y], got %v", got)
	}
}

func TestAutoDrain_CoalescesWhileBusy(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger())
	rec := &recorder{}

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit("gate", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	q.Submit("file.md", rec.op("first"))
	q.Submit("other.md", rec.op("other"))
	q.Submit("file.md", rec.op("second"))
	close(release)

	waitIdle(t, q)
	if got := rec.got(); !equal(got, []string{"second", "other"}) {
		t.Errorf("expected [second other], got %v", got)
	}
}

func TestAutoDrain_ErrorsDoNotAbortBatch(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger(), syncqueue.WithManualDrain())
	rec := &recorder{}

	q.Submit("a", func(ctx context.Context) error { return errors.New("remote down") })
	q.Submit("b", func(ctx context.Context) error { panic("boom") })
	q.Submit("c", rec.op("c"))

	for q.ProcessNext() {
	}
	if got := rec.got(); !equal(got, []string{"c"}) {
		t.Errorf("expected c to run after failures, got %v", got)
	}

	auto := syncqueue.New(context.Background(), testutil.DiscardLogger())
	auto.Submit("a", func(ctx context.Context) error { return errors.New("remote down") })
	auto.Submit("b", func(ctx context.Context) error { panic("boom") })
	auto.Submit("c", rec.op("c2"))
	waitIdle(t, auto)
	if got := rec.got(); !equal(got, []string{"c", "c2"}) {
		t.Errorf("expected c2 to run after failures, got %v", got)
	}
}

func TestAutoDrain_RedrainsWorkSubmittedDuringBatch(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger())
	rec := &recorder{}

	q.Submit("a", func(ctx context.Context) error {
		rec.op("a")(ctx)
		q.Submit("a", rec.op("a-again"))
		q.Submit("b", rec.op("b"))
		return nil
	})

	waitIdle(t, q)
	if got := rec.got(); !equal(got, []string{"a", "a-again", "b"}) {
		t.Errorf("expected [a a-again b], got %v", got)
	}
}

func TestAutoDrain_NeverConcurrent(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger())

	var running, maxRunning, total int32
	op := func(ctx context.Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&total, 1)
		atomic.AddInt32(&running, -1)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				q.Submit(fmt.Sprintf("k%d-%d", i, j), op)
			}
		}(i)
	}
	wg.Wait()
	waitIdle(t, q)

	if maxRunning != 1 {
		t.Errorf("expected at most 1 running op, saw %d", maxRunning)
	}
	if total != 80 {
		t.Errorf("expected 80 ops, got %d", total)
	}
}

func TestProcessNext_NoopWhileDraining(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger())

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit("a", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	q.Submit("b", func(ctx context.Context) error { return nil })

	if q.ProcessNext() {
		t.Error("expected ProcessNext to do nothing while draining")
	}
	close(release)
	waitIdle(t, q)
}

func TestClose(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger(), syncqueue.WithManualDrain())
	rec := &recorder{}
	q.Submit("a", rec.op("a"))

	q.Close()
	if err := q.Submit("b", rec.op("b")); !errors.Is(err, syncqueue.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if q.ProcessNext() {
		t.Error("expected pending work to be dropped")
	}
	waitIdle(t, q)
	if got := rec.got(); len(got) != 0 {
		t.Errorf("expected nothing to run, got %v", got)
	}
}

func TestWait_RespectsContext(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger(), syncqueue.WithManualDrain())
	q.Submit("a", func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDo_ReturnsResult(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger())
	defer q.Close()
	boom := errors.New("boom")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Do(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := q.Do(ctx, func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	err := q.Do(ctx, func(ctx context.Context) error { panic("bad") })
	if err == nil {
		t.Error("expected an error from a panicking op")
	}
}

func TestDo_FailsWhenDroppedByClose(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger(), syncqueue.WithManualDrain())

	result := make(chan error, 1)
	go func() {
		result <- q.Do(context.Background(), func(ctx context.Context) error { return nil })
	}()

	deadline := time.Now().Add(5 * time.Second)
	for q.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("op was never queued")
		}
		time.Sleep(time.Millisecond)
	}
	q.Close()

	select {
	case err := <-result:
		if !errors.Is(err, syncqueue.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do still waiting after Close")
	}
}

func TestDo_AfterClose(t *testing.T) {
	q := syncqueue.New(context.Background(), testutil.DiscardLogger())
	q.Close()
	if err := q.Do(context.Background(), func(ctx context.Context) error { return nil }); !errors.Is(err, syncqueue.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
