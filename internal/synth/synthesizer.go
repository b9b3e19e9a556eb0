// Package synth writes a synthetic counterpart for stored source items.
package synth

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/matthewjhunter/newsquiz/internal/ai"
	"github.com/matthewjhunter/newsquiz/internal/events"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

// FailurePlaceholder is stored when generation fails, so every item that
// enters the stage still gets exactly one synthetic content row.
const FailurePlaceholder = "Synthetic content generation failed. This placeholder stands in for the generated article."

// Generator writes synthetic content.
type Generator interface {
	GenerateSynthetic(ctx context.Context, req ai.SyntheticRequest) (*ai.SyntheticResult, error)
}

type limiter interface {
	Acquire(ctx context.Context) error
}

type outcome int

const (
	succeeded outcome = iota
	skipped
	failed
)

// Result aggregates one batch.
type Result struct {
	Requested   int     `json:"requested"`
	Succeeded   int     `json:"succeeded"`
	Skipped     int     `json:"skipped"`
	Failed      int     `json:"failed"`
	Placeholder int     `json:"placeholder"`
	IDs         []int64 `json:"ids"`
}

type Synthesizer struct {
	store     *storage.Store
	gen       Generator
	limiter   limiter
	pool      *workpool.Pool
	bus       *events.Bus
	tolerance int
	log       *logger.Logger
}

func NewSynthesizer(store *storage.Store, gen Generator, lim limiter, pool *workpool.Pool, bus *events.Bus, tolerance int, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		store:     store,
		gen:       gen,
		limiter:   lim,
		pool:      pool,
		bus:       bus,
		tolerance: tolerance,
		log:       log.With("stage", "synthetic"),
	}
}

type itemOutcome struct {
	id          int64
	outcome     outcome
	placeholder bool
}

// Synthesize generates and stores synthetic content for each item
// concurrently. Items that already have content are skipped without a
// model call. One SyntheticContentCreated carrying the succeeded ids is
// published once the batch is done.
func (s *Synthesizer) Synthesize(ctx context.Context, itemIDs []int64) *Result {
	pending := make([]<-chan workpool.Result[itemOutcome], len(itemIDs))
	for i, id := range itemIDs {
		pending[i] = workpool.Go(ctx, s.pool, func(ctx context.Context) (itemOutcome, error) {
			return s.synthesizeOne(ctx, id)
		})
	}

	result := &Result{Requested: len(itemIDs)}
	for i, res := range workpool.Join(pending) {
		if res.Err != nil {
			result.Failed++
			s.log.Warn("synthetic content failed", "source_item_id", itemIDs[i], "error", res.Err)
			continue
		}
		switch res.Value.outcome {
		case succeeded:
			result.Succeeded++
			result.IDs = append(result.IDs, res.Value.id)
			if res.Value.placeholder {
				result.Placeholder++
			}
		case skipped:
			result.Skipped++
		}
	}

	if len(result.IDs) > 0 {
		s.bus.Publish(events.Committed, events.SyntheticContentCreated{IDs: append([]int64(nil), result.IDs...)})
	}
	s.log.Info("synthetic batch complete",
		"requested", result.Requested,
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"placeholder", result.Placeholder)
	return result
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, id int64) (itemOutcome, error) {
	item, err := s.store.GetSourceItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Debug("source item vanished", "source_item_id", id)
		return itemOutcome{id: id, outcome: skipped}, nil
	}
	if err != nil {
		return itemOutcome{}, err
	}

	exists, err := s.store.SyntheticContentExists(ctx, id)
	if err != nil {
		return itemOutcome{}, err
	}
	if exists {
		return itemOutcome{id: id, outcome: skipped}, nil
	}

	content, err := s.generate(ctx, item)
	placeholder := false
	if err != nil {
		s.log.Warn("synthetic generation failed, storing placeholder", "source_item_id", id, "error", err)
		content = FailurePlaceholder
		placeholder = true
	}

	err = s.store.InsertSyntheticContent(ctx, id, content)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return itemOutcome{id: id, outcome: skipped}, nil
	case errors.Is(err, storage.ErrNotFound):
		return itemOutcome{id: id, outcome: skipped}, nil
	case err != nil:
		return itemOutcome{}, fmt.Errorf("store synthetic content: %w", err)
	}
	return itemOutcome{id: id, outcome: succeeded, placeholder: placeholder}, nil
}

func (s *Synthesizer) generate(ctx context.Context, item *storage.SourceItem) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	length := utf8.RuneCountInString(item.Body)
	res, err := s.gen.GenerateSynthetic(ctx, ai.SyntheticRequest{
		Title:     item.Title,
		Body:      item.Body,
		MinLength: max(length-s.tolerance, 0),
		MaxLength: length + s.tolerance,
	})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}
