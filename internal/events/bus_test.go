package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

// fakeUnitOfWork collects hooks and runs them on commit.
type fakeUnitOfWork struct {
	hooks []func()
}

func (u *fakeUnitOfWork) OnCommit(fn func()) { u.hooks = append(u.hooks, fn) }

func (u *fakeUnitOfWork) commit() {
	for _, h := range u.hooks {
		h()
	}
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	pool := workpool.New("events", 1, 10, logger.Nop())
	t.Cleanup(pool.Close)
	return NewBus(pool, logger.Nop())
}

func TestPublishDeliversAfterCommit(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	var got []int64
	On(bus, "collector", func(ctx context.Context, e SourceItemsCreated) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.IDs...)
		return nil
	})

	uow := &fakeUnitOfWork{}
	bus.Publish(uow, SourceItemsCreated{IDs: []int64{1, 2}})
	bus.Wait()

	mu.Lock()
	if len(got) != 0 {
		t.Fatalf("event delivered before commit: %v", got)
	}
	mu.Unlock()

	uow.commit()
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("delivered ids: got %v, want [1 2]", got)
	}
}

func TestRolledBackEventIsNeverDelivered(t *testing.T) {
	bus := newTestBus(t)

	calls := 0
	On(bus, "counter", func(ctx context.Context, e TodaySelectionCreated) error {
		calls++
		return nil
	})

	uow := &fakeUnitOfWork{}
	bus.Publish(uow, TodaySelectionCreated{SelectionID: 1})
	// no commit: the unit of work is abandoned
	bus.Wait()

	if calls != 0 {
		t.Errorf("subscriber called %d times for an uncommitted event", calls)
	}
}

func TestSubscriberErrorsDoNotStopOthers(t *testing.T) {
	bus := newTestBus(t)

	second := make(chan struct{}, 1)
	On(bus, "failing", func(ctx context.Context, e DetailQuizzesCreated) error {
		return errors.New("boom")
	})
	On(bus, "panicking", func(ctx context.Context, e DetailQuizzesCreated) error {
		panic("bad subscriber")
	})
	On(bus, "ok", func(ctx context.Context, e DetailQuizzesCreated) error {
		second <- struct{}{}
		return nil
	})

	uow := &fakeUnitOfWork{}
	bus.Publish(uow, DetailQuizzesCreated{SourceItemIDs: []int64{7}})
	uow.commit()
	bus.Wait()

	select {
	case <-second:
	default:
		t.Fatal("healthy subscriber was not called")
	}
}

func TestHandlersOnlySeeTheirEventType(t *testing.T) {
	bus := newTestBus(t)

	synthetic := 0
	On(bus, "synthetic", func(ctx context.Context, e SyntheticContentCreated) error {
		synthetic++
		return nil
	})

	uow := &fakeUnitOfWork{}
	bus.Publish(uow, SourceItemsCreated{IDs: []int64{1}})
	uow.commit()
	bus.Wait()

	if synthetic != 0 {
		t.Errorf("synthetic subscriber saw a SourceItemsCreated event")
	}
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	pool := workpool.New("events", 1, 1, logger.Nop())
	t.Cleanup(pool.Close)
	bus := NewBus(pool, logger.Nop())

	release := make(chan struct{})
	var mu sync.Mutex
	var got []int64
	On(bus, "slow", func(ctx context.Context, e SourceItemsCreated) error {
		<-release
		mu.Lock()
		got = append(got, e.IDs...)
		mu.Unlock()
		return nil
	})

	published := make(chan struct{})
	go func() {
		for i := int64(1); i <= 5; i++ {
			bus.Publish(Committed, SourceItemsCreated{IDs: []int64{i}})
		}
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked behind a busy subscriber")
	}

	close(release)
	bus.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Errorf("delivered %d events, want 5", len(got))
	}
}

func TestSubscriberPublishingFromAFullPool(t *testing.T) {
	// one worker, one slot: each delivery publishes the next event while
	// still holding the only worker
	pool := workpool.New("events", 1, 1, logger.Nop())
	t.Cleanup(pool.Close)
	bus := NewBus(pool, logger.Nop())

	var mu sync.Mutex
	count := 0
	On(bus, "chain", func(ctx context.Context, e SourceItemsCreated) error {
		if e.IDs[0] < 6 {
			bus.Publish(Committed, SourceItemsCreated{IDs: []int64{e.IDs[0] + 1}})
			bus.Publish(Committed, DetailQuizzesCreated{SourceItemIDs: e.IDs})
		}
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	On(bus, "sink", func(ctx context.Context, e DetailQuizzesCreated) error {
		time.Sleep(time.Millisecond)
		return nil
	})

	done := make(chan struct{})
	go func() {
		bus.Publish(Committed, SourceItemsCreated{IDs: []int64{1}})
		bus.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested publishing deadlocked")
	}
	if count != 6 {
		t.Errorf("chain ran %d times, want 6", count)
	}
}

func TestGoJoinsTheCascade(t *testing.T) {
	bus := newTestBus(t)

	release := make(chan struct{})
	finished := false
	On(bus, "follow-up", func(ctx context.Context, e SourceItemsCreated) error {
		bus.Go(func() {
			<-release
			finished = true
		})
		return nil
	})

	bus.Publish(Committed, SourceItemsCreated{IDs: []int64{1}})
	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	bus.Wait()

	if !finished {
		t.Error("Wait returned before background work finished")
	}
}

func TestShutdownCancelsAfterGrace(t *testing.T) {
	bus := newTestBus(t)

	cancelled := make(chan struct{})
	On(bus, "stuck", func(ctx context.Context, e SyntheticContentCreated) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	bus.Publish(Committed, SyntheticContentCreated{IDs: []int64{1}})

	start := time.Now()
	bus.Shutdown(20 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Shutdown returned after %s, before the grace period", elapsed)
	}
	select {
	case <-cancelled:
	default:
		t.Fatal("subscriber context was not cancelled")
	}
}

func TestShutdownWithoutPendingWorkReturnsPromptly(t *testing.T) {
	bus := newTestBus(t)

	done := make(chan struct{})
	go func() {
		bus.Shutdown(time.Minute)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown waited out the grace period with nothing pending")
	}
}
