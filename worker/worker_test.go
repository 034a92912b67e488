package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitAndWait(t *testing.T) {
	p := NewPool(2, nil)
	defer p.Close()

	job := p.Submit(func(ctx context.Context) (any, error) { return 42, nil })
	if job.ID == "" {
		t.Fatalf("job id missing")
	}
	v, err := job.Wait(context.Background())
	if err != nil || v.(int) != 42 {
		t.Fatalf("unexpected result %v %v", v, err)
	}
	select {
	case <-job.Done():
	default:
		t.Fatalf("Done should be closed after Wait returns")
	}
}

func TestErrorsAndPanicsAreReported(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Close()

	boom := errors.New("boom")
	if _, err := p.Submit(func(context.Context) (any, error) { return nil, boom }).Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := p.Submit(func(context.Context) (any, error) { panic("oops") }).Wait(context.Background()); err == nil {
		t.Fatalf("expected panic to become an error")
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	p := NewPool(2, nil)
	var running, peak int32
	jobs := make([]*Job, 0, 6)
	for i := 0; i < 6; i++ {
		jobs = append(jobs, p.Submit(func(context.Context) (any, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		}))
	}
	p.Close()
	for _, j := range jobs {
		if _, err := j.Wait(context.Background()); err != nil {
			t.Fatalf("job: %v", err)
		}
	}
	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent jobs, saw %d", peak)
	}
}

func TestWaitGivesUpWithContext(t *testing.T) {
	p := NewPool(1, nil)
	release := make(chan struct{})
	job := p.Submit(func(context.Context) (any, error) { <-release; return "late", nil })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := job.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	close(release)
	if v, err := job.Wait(context.Background()); err != nil || v != "late" {
		t.Fatalf("job should still complete, got %v %v", v, err)
	}
	p.Close()
}

func TestSubmitAfterClose(t *testing.T) {
	p := NewPool(1, nil)
	p.Close()
	if _, err := p.Submit(func(context.Context) (any, error) { return nil, nil }).Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
