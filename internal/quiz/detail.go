// Package quiz generates and stores quizzes: detail quizzes from the model,
// daily quizzes derived from them, fact quizzes pairing an item with its
// synthetic counterpart, and answer submission.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/matthewjhunter/newsquiz/internal/ai"
	"github.com/matthewjhunter/newsquiz/internal/events"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

var (
	// ErrInFlight is returned when generation for the item is already running.
	ErrInFlight = errors.New("quiz generation already in flight")
	// ErrRetriesExhausted is the terminal failure after MaxAttempts.
	ErrRetriesExhausted = errors.New("quiz generation retries exhausted")
)

// QuizWriter produces detail quiz candidates for an article.
type QuizWriter interface {
	GenerateQuizzes(ctx context.Context, title, body string) ([]ai.QuizCandidate, error)
}

type limiter interface {
	Acquire(ctx context.Context) error
}

type Config struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DetailGenerator creates detail quizzes for source items, one generation
// per item at a time.
type DetailGenerator struct {
	store    *storage.Store
	writer   QuizWriter
	limiter  limiter
	registry *Registry
	pool     *workpool.Pool
	bus      *events.Bus
	cfg      Config
	log      *logger.Logger
}

func NewDetailGenerator(store *storage.Store, writer QuizWriter, lim limiter, registry *Registry, pool *workpool.Pool, bus *events.Bus, cfg Config, log *logger.Logger) *DetailGenerator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &DetailGenerator{
		store:    store,
		writer:   writer,
		limiter:  lim,
		registry: registry,
		pool:     pool,
		bus:      bus,
		cfg:      cfg,
		log:      log.With("stage", "quiz"),
	}
}

// Generate writes the detail quizzes for one item, replacing any stored
// ones. A concurrent call for the same item returns ErrInFlight at once.
// Model and rate limit failures are retried at a fixed interval; after
// MaxAttempts the error wraps ErrRetriesExhausted. DetailQuizzesCreated is
// published once the new set is committed.
func (g *DetailGenerator) Generate(ctx context.Context, itemID int64) ([]storage.DetailQuiz, error) {
	if !g.registry.TryAcquire(itemID) {
		g.log.Debug("quiz generation already running", "source_item_id", itemID)
		return nil, ErrInFlight
	}
	defer g.registry.Release(itemID)

	item, err := g.store.GetSourceItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	attempt := 0
	candidates, err := backoff.Retry(ctx, func() ([]ai.QuizCandidate, error) {
		attempt++
		if err := g.limiter.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return g.writer.GenerateQuizzes(ctx, item.Title, item.Body)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(g.cfg.Backoff)),
		backoff.WithMaxTries(uint(g.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.log.Warn("quiz generation attempt failed", "source_item_id", itemID, "attempt", attempt, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.log.Error("quiz generation failed", "source_item_id", itemID, "attempts", attempt, "error", err)
		return nil, fmt.Errorf("%w: item %d after %d attempts: %v", ErrRetriesExhausted, itemID, attempt, err)
	}

	quizzes := make([]storage.DetailQuiz, len(candidates))
	for i, c := range candidates {
		quizzes[i] = storage.DetailQuiz{
			Question:      c.Question,
			Options:       [3]string{c.Option1, c.Option2, c.Option3},
			CorrectOption: c.CorrectOption,
		}
	}

	err = g.store.WithTx(ctx, func(tx *storage.Tx) error {
		if err := tx.ReplaceDetailQuizzes(ctx, itemID, quizzes); err != nil {
			return err
		}
		g.bus.Publish(tx, events.DetailQuizzesCreated{SourceItemIDs: []int64{itemID}})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store detail quizzes for item %d: %w", itemID, err)
	}
	g.log.Info("detail quizzes stored", "source_item_id", itemID, "count", len(quizzes), "attempts", attempt)
	return quizzes, nil
}

// BatchResult aggregates GenerateAll.
type BatchResult struct {
	Requested int     `json:"requested"`
	Generated []int64 `json:"generated"`
	InFlight  int     `json:"in_flight"`
	Failed    int     `json:"failed"`
}

// Batch is a set of Generate calls queued on the quiz pool.
type Batch struct {
	itemIDs []int64
	pending []<-chan workpool.Result[[]storage.DetailQuiz]
	log     *logger.Logger
}

// Start queues Generate for every item on the quiz pool and returns
// without waiting for any of them.
func (g *DetailGenerator) Start(ctx context.Context, itemIDs []int64) *Batch {
	b := &Batch{
		itemIDs: itemIDs,
		pending: make([]<-chan workpool.Result[[]storage.DetailQuiz], len(itemIDs)),
		log:     g.log,
	}
	for i, id := range itemIDs {
		b.pending[i] = workpool.Go(ctx, g.pool, func(ctx context.Context) ([]storage.DetailQuiz, error) {
			return g.Generate(ctx, id)
		})
	}
	return b
}

// Wait joins the batch. One item's failure does not affect the others.
func (b *Batch) Wait() *BatchResult {
	result := &BatchResult{Requested: len(b.itemIDs)}
	for i, res := range workpool.Join(b.pending) {
		switch {
		case errors.Is(res.Err, ErrInFlight):
			result.InFlight++
		case res.Err != nil:
			result.Failed++
			b.log.Warn("detail quiz generation failed", "source_item_id", b.itemIDs[i], "error", res.Err)
		default:
			result.Generated = append(result.Generated, b.itemIDs[i])
		}
	}
	b.log.Info("detail quiz batch complete",
		"requested", result.Requested,
		"generated", len(result.Generated),
		"in_flight", result.InFlight,
		"failed", result.Failed)
	return result
}

// GenerateAll runs Generate for every item on the quiz pool and waits for
// all of them.
func (g *DetailGenerator) GenerateAll(ctx context.Context, itemIDs []int64) *BatchResult {
	return g.Start(ctx, itemIDs).Wait()
}
