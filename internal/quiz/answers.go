package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

var (
	ErrAlreadyAnswered = errors.New("quiz already answered")
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrNegativeExp     = errors.New("experience cannot be negative")
)

// Experience awarded for a correct answer, by quiz type.
var expReward = map[storage.QuizType]int{
	storage.QuizDetail: 10,
	storage.QuizDaily:  20,
	storage.QuizFact:   10,
}

// LevelFor maps accumulated experience to a level.
func LevelFor(exp int) (int, error) {
	switch {
	case exp < 0:
		return 0, ErrNegativeExp
	case exp < 100:
		return 1, nil
	case exp < 200:
		return 2, nil
	default:
		return 3, nil
	}
}

type Submission struct {
	MemberID int64            `json:"member_id"`
	QuizID   int64            `json:"quiz_id"`
	QuizType storage.QuizType `json:"quiz_type"`
	Answer   string           `json:"answer"`
}

// Outcome is the stored answer and the member after it was applied.
type Outcome struct {
	Record *storage.AnswerRecord `json:"record"`
	Member *storage.Member       `json:"member"`
}

type AnswerService struct {
	store *storage.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewAnswerService(store *storage.Store, log *logger.Logger) *AnswerService {
	return &AnswerService{store: store, log: log.With("stage", "answers"), now: time.Now}
}

// Submit grades an answer and records it together with the member's new
// experience and level. A second answer to the same quiz returns
// ErrAlreadyAnswered and changes nothing.
func (a *AnswerService) Submit(ctx context.Context, s Submission) (*Outcome, error) {
	correctAnswer, err := a.correctAnswer(ctx, s)
	if err != nil {
		return nil, err
	}

	record := &storage.AnswerRecord{
		MemberID:    s.MemberID,
		QuizID:      s.QuizID,
		QuizType:    s.QuizType,
		Answer:      s.Answer,
		Correct:     s.Answer == correctAnswer,
		SubmittedAt: a.now(),
	}
	if record.Correct {
		record.GainedExp = expReward[s.QuizType]
	}

	var member *storage.Member
	err = a.store.WithTx(ctx, func(tx *storage.Tx) error {
		m, err := tx.GetMember(ctx, s.MemberID)
		if err != nil {
			return err
		}
		if _, err := tx.InsertAnswer(ctx, record); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return ErrAlreadyAnswered
			}
			return err
		}
		exp := m.Exp + record.GainedExp
		level, err := LevelFor(exp)
		if err != nil {
			return err
		}
		if err := tx.UpdateMemberProgress(ctx, m.ID, exp, level); err != nil {
			return err
		}
		m.Exp, m.Level = exp, level
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("answer recorded",
		"member_id", s.MemberID,
		"quiz_id", s.QuizID,
		"quiz_type", s.QuizType,
		"correct", record.Correct,
		"gained_exp", record.GainedExp)
	return &Outcome{Record: record, Member: member}, nil
}

func (a *AnswerService) correctAnswer(ctx context.Context, s Submission) (string, error) {
	switch s.QuizType {
	case storage.QuizDetail, storage.QuizDaily:
		switch s.Answer {
		case "OPTION1", "OPTION2", "OPTION3":
		default:
			return "", fmt.Errorf("%w: %q is not an option", ErrInvalidAnswer, s.Answer)
		}
		if s.QuizType == storage.QuizDaily {
			dq, err := a.store.GetDailyQuiz(ctx, s.QuizID)
			if err != nil {
				return "", err
			}
			return dq.DetailQuiz.CorrectOption, nil
		}
		dq, err := a.store.GetDetailQuiz(ctx, s.QuizID)
		if err != nil {
			return "", err
		}
		return dq.CorrectOption, nil

	case storage.QuizFact:
		switch storage.AnswerType(s.Answer) {
		case storage.AnswerReal, storage.AnswerFake:
		default:
			return "", fmt.Errorf("%w: %q is not REAL or FAKE", ErrInvalidAnswer, s.Answer)
		}
		fq, err := a.store.GetFactQuiz(ctx, s.QuizID)
		if err != nil {
			return "", err
		}
		return string(fq.CorrectAnswer), nil
	}
	return "", fmt.Errorf("%w: unknown quiz type %q", ErrInvalidAnswer, s.QuizType)
}
