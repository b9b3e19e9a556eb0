package storage

import (
	"context"
	"fmt"
)

// ReplaceDetailQuizzes deletes the stored detail quizzes of an item and
// inserts quizzes in their place. IDs are filled in on the passed slice.
func (q *Queries) ReplaceDetailQuizzes(ctx context.Context, itemID int64, quizzes []DetailQuiz) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM detail_quizzes WHERE source_item_id = ?", itemID); err != nil {
		return fmt.Errorf("delete detail quizzes: %w", err)
	}
	for i := range quizzes {
		dq := &quizzes[i]
		dq.SourceItemID = itemID
		result, err := q.q.ExecContext(ctx, `
			INSERT INTO detail_quizzes (source_item_id, question, option1, option2, option3, correct_option)
			VALUES (?, ?, ?, ?, ?, ?)
		`, itemID, dq.Question, dq.Options[0], dq.Options[1], dq.Options[2], dq.CorrectOption)
		if err != nil {
			return wrapWriteErr("insert detail quiz", err)
		}
		if dq.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) GetDetailQuiz(ctx context.Context, id int64) (*DetailQuiz, error) {
	var dq DetailQuiz
	err := q.q.QueryRowContext(ctx, `
		SELECT id, source_item_id, question, option1, option2, option3, correct_option, created_at
		FROM detail_quizzes WHERE id = ?
	`, id).Scan(&dq.ID, &dq.SourceItemID, &dq.Question, &dq.Options[0], &dq.Options[1], &dq.Options[2], &dq.CorrectOption, &dq.CreatedAt)
	if err != nil {
		return nil, notFound(fmt.Sprintf("get detail quiz %d", id), err)
	}
	return &dq, nil
}

// DetailQuizzesForItem returns an item's detail quizzes in insertion order.
func (q *Queries) DetailQuizzesForItem(ctx context.Context, itemID int64) ([]DetailQuiz, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, source_item_id, question, option1, option2, option3, correct_option, created_at
		FROM detail_quizzes WHERE source_item_id = ? ORDER BY id
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query detail quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []DetailQuiz
	for rows.Next() {
		var dq DetailQuiz
		if err := rows.Scan(&dq.ID, &dq.SourceItemID, &dq.Question, &dq.Options[0], &dq.Options[1], &dq.Options[2], &dq.CorrectOption, &dq.CreatedAt); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, dq)
	}
	return quizzes, rows.Err()
}

func (q *Queries) DailyQuizExists(ctx context.Context, detailQuizID int64) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_quizzes WHERE detail_quiz_id = ?", detailQuizID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check daily quiz: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) InsertDailyQuiz(ctx context.Context, selectionID, detailQuizID int64) (int64, error) {
	result, err := q.q.ExecContext(ctx,
		"INSERT INTO daily_quizzes (today_selection_id, detail_quiz_id) VALUES (?, ?)", selectionID, detailQuizID)
	if err != nil {
		return 0, wrapWriteErr("insert daily quiz", err)
	}
	return result.LastInsertId()
}

const dailyQuizSelect = `
	SELECT d.id, d.today_selection_id, d.created_at,
		q.id, q.source_item_id, q.question, q.option1, q.option2, q.option3, q.correct_option, q.created_at
	FROM daily_quizzes d JOIN detail_quizzes q ON q.id = d.detail_quiz_id`

func (q *Queries) GetDailyQuiz(ctx context.Context, id int64) (*DailyQuiz, error) {
	var d DailyQuiz
	dq := &d.DetailQuiz
	err := q.q.QueryRowContext(ctx, dailyQuizSelect+" WHERE d.id = ?", id).Scan(
		&d.ID, &d.TodaySelectionID, &d.CreatedAt,
		&dq.ID, &dq.SourceItemID, &dq.Question, &dq.Options[0], &dq.Options[1], &dq.Options[2], &dq.CorrectOption, &dq.CreatedAt)
	if err != nil {
		return nil, notFound(fmt.Sprintf("get daily quiz %d", id), err)
	}
	return &d, nil
}

// DailyQuizzesForSelection returns the daily quizzes attached to a selection.
func (q *Queries) DailyQuizzesForSelection(ctx context.Context, selectionID int64) ([]DailyQuiz, error) {
	rows, err := q.q.QueryContext(ctx, dailyQuizSelect+" WHERE d.today_selection_id = ? ORDER BY d.id", selectionID)
	if err != nil {
		return nil, fmt.Errorf("query daily quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []DailyQuiz
	for rows.Next() {
		var d DailyQuiz
		dq := &d.DetailQuiz
		if err := rows.Scan(&d.ID, &d.TodaySelectionID, &d.CreatedAt,
			&dq.ID, &dq.SourceItemID, &dq.Question, &dq.Options[0], &dq.Options[1], &dq.Options[2], &dq.CorrectOption, &dq.CreatedAt); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, d)
	}
	return quizzes, rows.Err()
}

func (q *Queries) FactQuizExists(ctx context.Context, itemID int64) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM fact_quizzes WHERE source_item_id = ?", itemID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check fact quiz: %w", err)
	}
	return n > 0, nil
}

// InsertFactQuiz stores a fact quiz. The item must already have synthetic
// content; otherwise ErrNotFound is returned.
func (q *Queries) InsertFactQuiz(ctx context.Context, fq *FactQuiz) (int64, error) {
	result, err := q.q.ExecContext(ctx,
		"INSERT INTO fact_quizzes (source_item_id, question, correct_answer) VALUES (?, ?, ?)",
		fq.SourceItemID, fq.Question, string(fq.CorrectAnswer))
	if err != nil {
		return 0, wrapWriteErr("insert fact quiz", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	fq.ID = id
	return id, nil
}

func (q *Queries) GetFactQuiz(ctx context.Context, id int64) (*FactQuiz, error) {
	return q.factQuiz(ctx, "id = ?", id)
}

func (q *Queries) FactQuizForItem(ctx context.Context, itemID int64) (*FactQuiz, error) {
	return q.factQuiz(ctx, "source_item_id = ?", itemID)
}

func (q *Queries) factQuiz(ctx context.Context, where string, arg any) (*FactQuiz, error) {
	var fq FactQuiz
	var answer string
	err := q.q.QueryRowContext(ctx,
		"SELECT id, source_item_id, question, correct_answer, created_at FROM fact_quizzes WHERE "+where, arg,
	).Scan(&fq.ID, &fq.SourceItemID, &fq.Question, &answer, &fq.CreatedAt)
	if err != nil {
		return nil, notFound("get fact quiz", err)
	}
	fq.CorrectAnswer = AnswerType(answer)
	return &fq, nil
}
