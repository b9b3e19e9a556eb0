// Package workpool runs tasks on small fixed-size worker pools. Each stage
// family gets its own pool so a stall in one cannot starve another.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matthewjhunter/newsquiz/internal/logger"
)

var (
	// ErrClosed is returned when submitting to a pool that has been closed.
	ErrClosed = errors.New("workpool: closed")
	// ErrFull is returned by TrySubmit when the queue has no room.
	ErrFull = errors.New("workpool: queue full")
)

// Result is the outcome of one task. Tasks never panic or fail across the
// join boundary; both become Err.
type Result[T any] struct {
	Value T
	Err   error
}

type Pool struct {
	name  string
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	log *logger.Logger
}

// New starts a pool with the given number of workers and queue capacity.
func New(name string, workers, queueSize int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		name:  name,
		tasks: make(chan func(), queueSize),
		log:   log.With("pool", name),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", "panic", r)
		}
	}()
	task()
}

// Submit queues fn, blocking while the queue is full or until ctx ends.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues fn without blocking.
func (p *Pool) TrySubmit(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- fn:
		return nil
	default:
		return ErrFull
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Go runs fn on the pool and returns a channel that receives exactly one
// Result. A submission failure or panic is delivered as the Result's Err.
func Go[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	err := p.Submit(ctx, func() {
		var res Result[T]
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("%s task panicked: %v", p.name, r)
			}
			out <- res
		}()
		res.Value, res.Err = fn(ctx)
	})
	if err != nil {
		out <- Result[T]{Err: err}
	}
	return out
}

// Join waits for every pending result. Results are returned in the order
// the channels were given.
func Join[T any](pending []<-chan Result[T]) []Result[T] {
	results := make([]Result[T], len(pending))
	for i, ch := range pending {
		results[i] = <-ch
	}
	return results
}
