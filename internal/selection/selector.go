// Package selection ranks scored items, stores the winners and designates
// the day's featured item.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/events"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

// Rank groups items by category, sorts each group by score descending and
// keeps the top k of each. Ties keep their input order. Groups come out in
// storage.Categories order, followed by NOT_FILTERED.
func Rank(items []storage.SourceItem, k int) []storage.SourceItem {
	groups := make(map[storage.Category][]storage.SourceItem)
	for _, it := range items {
		groups[it.Category] = append(groups[it.Category], it)
	}

	order := append(append([]storage.Category(nil), storage.Categories...), storage.CategoryNotFiltered)
	var ranked []storage.SourceItem
	for _, cat := range order {
		group := groups[cat]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Score > group[j].Score })
		if len(group) > k {
			group = group[:k]
		}
		ranked = append(ranked, group...)
	}
	return ranked
}

// Result describes what one Select call stored.
type Result struct {
	Stored      []int64                 `json:"stored"`
	Skipped     int                     `json:"skipped"`
	Selection   *storage.TodaySelection `json:"selection,omitempty"`
	Selected    int                     `json:"selected"`
}

// txRunner is satisfied by *storage.Store.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *storage.Tx) error) error
}

type Selector struct {
	store txRunner
	bus   *events.Bus
	topK  int
	log   *logger.Logger
}

func NewSelector(store txRunner, bus *events.Bus, topK int, log *logger.Logger) *Selector {
	return &Selector{store: store, bus: bus, topK: topK, log: log.With("stage", "selection")}
}

// Select ranks items, stores the winners and replaces the selection for
// today's date with the first stored item, all in one transaction.
// SourceItemsCreated and TodaySelectionCreated are delivered only after
// that transaction commits. Links stored concurrently by another run are
// skipped. An empty ranking stores nothing and publishes nothing.
func (s *Selector) Select(ctx context.Context, items []storage.SourceItem, today time.Time) (*Result, error) {
	ranked := Rank(items, s.topK)
	result := &Result{Selected: len(ranked)}
	if len(ranked) == 0 {
		s.log.Warn("nothing to select", "scored", len(items))
		return result, nil
	}

	date := today.Format(storage.DateLayout)
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		result.Stored = result.Stored[:0]
		result.Skipped = 0
		for i := range ranked {
			id, err := tx.InsertSourceItem(ctx, &ranked[i])
			if errors.Is(err, storage.ErrDuplicate) {
				result.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			result.Stored = append(result.Stored, id)
		}
		if len(result.Stored) == 0 {
			return nil
		}

		sel, err := tx.ReplaceTodaySelection(ctx, date, result.Stored[0])
		if err != nil {
			return err
		}
		result.Selection = sel

		s.bus.Publish(tx, events.SourceItemsCreated{IDs: append([]int64(nil), result.Stored...)})
		s.bus.Publish(tx, events.TodaySelectionCreated{
			SelectionID:  sel.ID,
			SourceItemID: sel.SourceItemID,
			Date:         sel.Date,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist selection: %w", err)
	}

	if result.Selection == nil {
		s.log.Warn("every selected link was already stored", "selected", len(ranked))
		return result, nil
	}
	s.log.Info("selection stored",
		"date", date,
		"selected", len(ranked),
		"stored", len(result.Stored),
		"skipped", result.Skipped,
		"today_item", result.Selection.SourceItemID)
	return result, nil
}
