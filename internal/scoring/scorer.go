// Package scoring asks the model to score and categorize crawled items in
// small concurrent batches.
package scoring

import (
	"context"

	"github.com/matthewjhunter/newsquiz/internal/ai"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

// Analyzer scores one batch. IDs in the reply refer to AnalysisInput.ID.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, batch []ai.AnalysisInput) ([]ai.Analysis, error)
}

type limiter interface {
	Acquire(ctx context.Context) error
}

type Scorer struct {
	analyzer  Analyzer
	limiter   limiter
	pool      *workpool.Pool
	batchSize int
	log       *logger.Logger
}

func NewScorer(analyzer Analyzer, lim limiter, pool *workpool.Pool, batchSize int, log *logger.Logger) *Scorer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Scorer{
		analyzer:  analyzer,
		limiter:   lim,
		pool:      pool,
		batchSize: batchSize,
		log:       log.With("stage", "scoring"),
	}
}

// Score returns the items the model scored, with Category and Score set.
// A failed batch is logged and contributes nothing. The order of the
// result is unspecified.
func (s *Scorer) Score(ctx context.Context, items []storage.SourceItem) []storage.SourceItem {
	var pending []<-chan workpool.Result[[]storage.SourceItem]
	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))
		batch := items[start:end]
		pending = append(pending, workpool.Go(ctx, s.pool, func(ctx context.Context) ([]storage.SourceItem, error) {
			return s.scoreBatch(ctx, batch)
		}))
	}

	var scored []storage.SourceItem
	failed := 0
	for i, res := range workpool.Join(pending) {
		if res.Err != nil {
			failed++
			s.log.Warn("scoring batch failed", "batch", i, "error", res.Err)
			continue
		}
		scored = append(scored, res.Value...)
	}

	s.log.Info("scoring complete",
		"requested", len(items),
		"batches", len(pending),
		"failed_batches", failed,
		"scored", len(scored))
	return scored
}

// scoreBatch joins the model's answers back to items by batch-local id.
// Unknown ids and repeats are ignored.
func (s *Scorer) scoreBatch(ctx context.Context, batch []storage.SourceItem) ([]storage.SourceItem, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	inputs := make([]ai.AnalysisInput, len(batch))
	for i, it := range batch {
		inputs[i] = ai.AnalysisInput{ID: i, Title: it.Title, Body: it.Body}
	}
	analyses, err := s.analyzer.AnalyzeBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}

	used := make(map[int]bool, len(analyses))
	out := make([]storage.SourceItem, 0, len(analyses))
	for _, a := range analyses {
		if a.ID < 0 || a.ID >= len(batch) || used[a.ID] {
			continue
		}
		used[a.ID] = true
		item := batch[a.ID]
		item.Score = a.Score
		item.Category = a.Category
		out = append(out, item)
	}
	return out, nil
}
