package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/logger"
)

func TestGoJoinCollectsEveryResult(t *testing.T) {
	p := New("test", 2, 10, logger.Nop())
	defer p.Close()

	boom := errors.New("boom")
	var pending []<-chan Result[int]
	for i := 0; i < 6; i++ {
		i := i
		pending = append(pending, Go(context.Background(), p, func(ctx context.Context) (int, error) {
			if i == 3 {
				return 0, boom
			}
			if i == 4 {
				panic("bad task")
			}
			return i * 10, nil
		}))
	}

	results := Join(pending)
	if len(results) != 6 {
		t.Fatalf("results: got %d, want 6", len(results))
	}
	if !errors.Is(results[3].Err, boom) {
		t.Errorf("task 3: expected boom, got %v", results[3].Err)
	}
	if results[4].Err == nil {
		t.Error("task 4: panic was not converted to an error")
	}
	if results[5].Value != 50 || results[5].Err != nil {
		t.Errorf("task 5: got %+v", results[5])
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New("bounded", 2, 10, logger.Nop())
	defer p.Close()

	var running, peak int32
	var pending []<-chan Result[struct{}]
	for i := 0; i < 8; i++ {
		pending = append(pending, Go(context.Background(), p, func(ctx context.Context) (struct{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return struct{}{}, nil
		}))
	}
	Join(pending)

	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds pool size 2", peak)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := New("closed", 1, 1, logger.Nop())
	p.Close()

	if err := p.Submit(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	res := <-Go(context.Background(), p, func(ctx context.Context) (int, error) { return 1, nil })
	if !errors.Is(res.Err, ErrClosed) {
		t.Errorf("expected ErrClosed result, got %v", res.Err)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	p := New("drain", 1, 10, logger.Nop())

	var done int32
	for i := 0; i < 5; i++ {
		p.Submit(context.Background(), func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&done, 1)
		})
	}
	p.Close()

	if done != 5 {
		t.Errorf("completed %d of 5 queued tasks before Close returned", done)
	}
}

func TestTrySubmitReportsFullQueue(t *testing.T) {
	p := New("full", 1, 1, logger.Nop())
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	if err := p.TrySubmit(func() { close(started); <-release }); err != nil {
		t.Fatalf("first TrySubmit: %v", err)
	}
	<-started
	if err := p.TrySubmit(func() {}); err != nil {
		t.Fatalf("queued TrySubmit: %v", err)
	}
	if err := p.TrySubmit(func() {}); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	close(release)
}

func TestTrySubmitAfterClose(t *testing.T) {
	p := New("closed", 1, 1, logger.Nop())
	p.Close()

	if err := p.TrySubmit(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
