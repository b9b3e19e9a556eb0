package quiz

import (
	"context"
	"errors"
	"slices"

	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

// DailyService derives one daily quiz per detail quiz of the featured item.
type DailyService struct {
	store *storage.Store
	log   *logger.Logger
}

func NewDailyService(store *storage.Store, log *logger.Logger) *DailyService {
	return &DailyService{store: store, log: log.With("stage", "daily_quiz")}
}

// CreateForSelection links every detail quiz of the selection's item to
// the selection. Detail quizzes that already have a daily quiz are skipped;
// an item with no detail quizzes yet is skipped as a whole.
func (d *DailyService) CreateForSelection(ctx context.Context, selectionID int64) (int, error) {
	sel, err := d.store.GetTodaySelectionByID(ctx, selectionID)
	if err != nil {
		return 0, err
	}
	detail, err := d.store.DetailQuizzesForItem(ctx, sel.SourceItemID)
	if err != nil {
		return 0, err
	}
	if len(detail) == 0 {
		d.log.Info("no detail quizzes yet, skipping daily quizzes", "selection_id", selectionID, "source_item_id", sel.SourceItemID)
		return 0, nil
	}

	created, skipped := 0, 0
	err = d.store.WithTx(ctx, func(tx *storage.Tx) error {
		created, skipped = 0, 0
		for _, dq := range detail {
			exists, err := tx.DailyQuizExists(ctx, dq.ID)
			if err != nil {
				return err
			}
			if exists {
				skipped++
				continue
			}
			if _, err := tx.InsertDailyQuiz(ctx, sel.ID, dq.ID); err != nil {
				if errors.Is(err, storage.ErrDuplicate) {
					skipped++
					continue
				}
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	d.log.Info("daily quizzes created", "selection_id", selectionID, "created", created, "skipped", skipped)
	return created, nil
}

// CreateForDate creates daily quizzes for the selection of date when its
// featured item is among itemIDs. A missing selection is not an error.
func (d *DailyService) CreateForDate(ctx context.Context, date string, itemIDs []int64) (int, error) {
	sel, err := d.store.GetTodaySelection(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !slices.Contains(itemIDs, sel.SourceItemID) {
		return 0, nil
	}
	return d.CreateForSelection(ctx, sel.ID)
}
