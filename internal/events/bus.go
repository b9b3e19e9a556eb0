package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

// UnitOfWork accepts work to run once it has committed.
type UnitOfWork interface {
	OnCommit(fn func())
}

// Committed is a UnitOfWork whose writes are already durable. Events
// published against it dispatch immediately.
var Committed UnitOfWork = committed{}

type committed struct{}

func (committed) OnCommit(fn func()) { fn() }

type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name    string
	handler Handler
}

// Bus delivers committed events to subscribers on its own worker pool.
// Subscriber errors are logged and never retried here.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription

	pool    *workpool.Pool
	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
	log     *logger.Logger
}

func NewBus(pool *workpool.Pool, log *logger.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		handlers: make(map[string][]subscription),
		pool:     pool,
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
}

// Subscribe registers h for events named eventName. name identifies the
// subscriber in logs.
func (b *Bus) Subscribe(eventName, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], subscription{name: name, handler: h})
}

// On registers a handler for a concrete event type.
func On[E Event](b *Bus, name string, fn func(ctx context.Context, e E) error) {
	var zero E
	b.Subscribe(zero.EventName(), name, func(ctx context.Context, e Event) error {
		typed, ok := e.(E)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}

// Publish binds e to uow. Subscribers see it only after uow commits; if uow
// rolls back the event is dropped.
func (b *Bus) Publish(uow UnitOfWork, e Event) {
	uow.OnCommit(func() { b.dispatch(e) })
}

// dispatch never blocks: it runs inside commit hooks, and a publisher
// must not wait on subscribers. When the pool queue is full the delivery
// gets its own goroutine.
func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[e.EventName()]...)
	b.mu.RUnlock()

	eventID := uuid.NewString()
	b.log.Debug("dispatching event", "event", e.EventName(), "event_id", eventID, "subscribers", len(subs))

	for _, sub := range subs {
		deliver := func() {
			defer b.pending.Done()
			if err := sub.handler(b.ctx, e); err != nil {
				b.log.Error("event subscriber failed",
					"event", e.EventName(), "event_id", eventID, "subscriber", sub.name, "error", err)
			}
		}
		b.pending.Add(1)
		switch err := b.pool.TrySubmit(deliver); {
		case err == nil:
		case errors.Is(err, workpool.ErrFull):
			b.log.Debug("events queue full, delivering directly", "event", e.EventName(), "event_id", eventID, "subscriber", sub.name)
			go deliver()
		default:
			b.pending.Done()
			b.log.Error("event dropped", "event", e.EventName(), "event_id", eventID, "subscriber", sub.name, "error", err)
		}
	}
}

// Go runs fn in the background as part of the current cascade: Wait does
// not return until fn has. Subscribers use it to follow up on work they
// queued elsewhere without holding a bus worker.
func (b *Bus) Go(fn func()) {
	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		fn()
	}()
}

// Wait blocks until every dispatched delivery has finished.
func (b *Bus) Wait() {
	b.pending.Wait()
}

// Shutdown waits up to grace for pending deliveries, then cancels the
// context handed to subscribers and waits for them to return.
func (b *Bus) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		b.log.Warn("event deliveries still running, cancelling", "grace", grace)
	}
	b.cancel()
	<-done
}
