package quiz

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

const (
	realQuestion = "Which of these is the real news?"
	fakeQuestion = "Which of these is the fake news?"
)

// FactService pairs an item with its synthetic content as a real-or-fake
// question.
type FactService struct {
	store *storage.Store
	pick  func() storage.AnswerType
	log   *logger.Logger
}

func NewFactService(store *storage.Store, log *logger.Logger) *FactService {
	return &FactService{store: store, pick: randomAnswer, log: log.With("stage", "fact_quiz")}
}

func randomAnswer() storage.AnswerType {
	if rand.IntN(2) == 0 {
		return storage.AnswerReal
	}
	return storage.AnswerFake
}

// Create stores the fact quiz for an item. It returns nil without error
// when the item already has one or its synthetic content is missing.
func (f *FactService) Create(ctx context.Context, itemID int64) (*storage.FactQuiz, error) {
	exists, err := f.store.FactQuizExists(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	answer := f.pick()
	question := realQuestion
	if answer == storage.AnswerFake {
		question = fakeQuestion
	}
	fq := &storage.FactQuiz{SourceItemID: itemID, Question: question, CorrectAnswer: answer}
	if _, err := f.store.InsertFactQuiz(ctx, fq); err != nil {
		if errors.Is(err, storage.ErrDuplicate) || errors.Is(err, storage.ErrNotFound) {
			f.log.Debug("fact quiz skipped", "source_item_id", itemID, "reason", err)
			return nil, nil
		}
		return nil, err
	}
	return fq, nil
}

// CreateAll creates fact quizzes for each item and reports how many were
// created and skipped. Errors are logged per item.
func (f *FactService) CreateAll(ctx context.Context, itemIDs []int64) (created, skipped, failed int) {
	for _, id := range itemIDs {
		fq, err := f.Create(ctx, id)
		switch {
		case err != nil:
			failed++
			f.log.Warn("fact quiz failed", "source_item_id", id, "error", err)
		case fq == nil:
			skipped++
		default:
			created++
		}
	}
	f.log.Info("fact quizzes created", "requested", len(itemIDs), "created", created, "skipped", skipped, "failed", failed)
	return created, skipped, failed
}
