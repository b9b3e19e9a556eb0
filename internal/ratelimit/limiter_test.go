package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/logger"
)

// fakeClock advances only when something sleeps on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func defaultConfig() Config {
	return Config{
		Capacity:       12,
		RefillTokens:   1,
		RefillInterval: 5 * time.Second,
		PollInterval:   time.Second,
		MaxWait:        60 * time.Second,
	}
}

func TestAcquireRefillTiming(t *testing.T) {
	start := time.Date(2025, 7, 29, 6, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	l := New(defaultConfig(), logger.Nop(), WithClock(clock))

	var completed []time.Duration
	for i := 0; i < 15; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("call %d: Acquire failed: %v", i+1, err)
		}
		completed = append(completed, clock.Now().Sub(start))
	}

	for i := 0; i < 12; i++ {
		if completed[i] != 0 {
			t.Errorf("call %d: completed at %s, want immediately", i+1, completed[i])
		}
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second}
	for i, w := range want {
		if got := completed[12+i]; got != w {
			t.Errorf("call %d: completed at %s, want %s", 13+i, got, w)
		}
	}
}

func TestAcquireExhausted(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cfg := Config{
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		PollInterval:   2 * time.Second,
		MaxWait:        10 * time.Second,
	}
	l := New(cfg, logger.Nop(), WithClock(clock))

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	err := l.Acquire(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if waited := clock.Now().Sub(time.Unix(0, 0)); waited < 10*time.Second {
		t.Errorf("gave up after %s, want at least the max wait", waited)
	}
}

func TestAcquireContextCanceled(t *testing.T) {
	cfg := Config{
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		PollInterval:   10 * time.Millisecond,
		MaxWait:        time.Minute,
	}
	l := New(cfg, logger.Nop())
	l.Acquire(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAcquireConcurrentNeverExceedsBucket(t *testing.T) {
	cfg := Config{
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: 50 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		MaxWait:        5 * time.Second,
	}
	l := New(cfg, logger.Nop())

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Acquire(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}
	// Three calls run on the initial burst; the other three each need a refill.
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Errorf("six calls finished in %s, faster than the refill rate allows", elapsed)
	}
}

func TestAcquireRefillsWholeIntervals(t *testing.T) {
	start := time.Date(2025, 7, 29, 6, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	cfg := Config{
		Capacity:       12,
		RefillTokens:   12,
		RefillInterval: 60 * time.Second,
		PollInterval:   5 * time.Second,
		MaxWait:        120 * time.Second,
	}
	l := New(cfg, logger.Nop(), WithClock(clock))

	for i := 0; i < 12; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("call %d: Acquire failed: %v", i+1, err)
		}
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("call 13: Acquire failed: %v", err)
	}
	if got := clock.Now().Sub(start); got != 60*time.Second {
		t.Errorf("call 13 served at %s, want 60s", got)
	}

	// the refill brought a full interval's worth; the rest are immediate
	before := clock.Now()
	for i := 0; i < 11; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("refilled call %d: Acquire failed: %v", i+1, err)
		}
	}
	if clock.Now() != before {
		t.Errorf("refilled tokens waited %s", clock.Now().Sub(before))
	}
}

func TestRefillNeverExceedsCapacity(t *testing.T) {
	start := time.Unix(0, 0)
	clock := &fakeClock{now: start}
	cfg := defaultConfig()
	l := New(cfg, logger.Nop(), WithClock(clock))

	// idle for an hour: 720 intervals, but the bucket holds 12
	clock.Sleep(context.Background(), time.Hour)
	for i := 0; i < 12; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("call %d: Acquire failed: %v", i+1, err)
		}
	}
	idle := clock.Now()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("call 13: Acquire failed: %v", err)
	}
	if waited := clock.Now().Sub(idle); waited == 0 {
		t.Error("13th call after idle was served without waiting")
	}
}
