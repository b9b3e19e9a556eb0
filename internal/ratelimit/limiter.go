// Package ratelimit provides the token bucket shared by every outbound AI
// and search call.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/logger"
)

// ErrExhausted is returned when no token became available within the
// configured maximum wait.
var ErrExhausted = errors.New("rate limit exhausted")

type Config struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	PollInterval   time.Duration
	MaxWait        time.Duration
}

// Clock abstracts time so tests can drive the limiter deterministically.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// Limiter is a token bucket with capacity Capacity. RefillTokens are added
// at the end of every whole RefillInterval, never fractionally in between.
// It is safe for concurrent use.
type Limiter struct {
	capacity       int
	refillTokens   int
	refillInterval time.Duration
	pollInterval   time.Duration
	maxWait        time.Duration
	clock          Clock
	log            *logger.Logger

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

func New(cfg Config, log *logger.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		capacity:       cfg.Capacity,
		refillTokens:   cfg.RefillTokens,
		refillInterval: cfg.RefillInterval,
		pollInterval:   cfg.PollInterval,
		maxWait:        cfg.MaxWait,
		clock:          realClock{},
		log:            log,
		tokens:         cfg.Capacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.clock.Now()
	return l
}

// take refills for every interval completed since the last refill and
// consumes one token if any is left.
func (l *Limiter) take(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refillInterval > 0 {
		if n := int64(now.Sub(l.lastRefill) / l.refillInterval); n > 0 {
			l.tokens = min(l.capacity, l.tokens+int(n)*l.refillTokens)
			l.lastRefill = l.lastRefill.Add(time.Duration(n) * l.refillInterval)
		}
	}
	if l.tokens == 0 {
		return false
	}
	l.tokens--
	return true
}

// Acquire takes one token, polling every PollInterval until one is free.
// It returns ErrExhausted once MaxWait has elapsed, or the context error
// if ctx ends first. Tokens are never returned.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := l.clock.Now()
	for attempt := 1; ; attempt++ {
		now := l.clock.Now()
		if l.take(now) {
			return nil
		}
		waited := now.Sub(start)
		if waited >= l.maxWait {
			l.log.Warn("rate limit wait exceeded", "waited", waited, "attempts", attempt)
			return ErrExhausted
		}
		if attempt%10 == 0 {
			l.log.Warn("waiting for rate limit token", "waited", waited, "attempts", attempt)
		}
		if err := l.clock.Sleep(ctx, l.pollInterval); err != nil {
			return err
		}
	}
}
