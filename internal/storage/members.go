package storage

import (
	"context"
	"fmt"
)

func (q *Queries) CreateMember(ctx context.Context, name string) (int64, error) {
	result, err := q.q.ExecContext(ctx, "INSERT INTO members (name) VALUES (?)", name)
	if err != nil {
		return 0, wrapWriteErr("create member", err)
	}
	return result.LastInsertId()
}

func (q *Queries) GetMember(ctx context.Context, id int64) (*Member, error) {
	var m Member
	err := q.q.QueryRowContext(ctx,
		"SELECT id, name, exp, level, created_at FROM members WHERE id = ?", id,
	).Scan(&m.ID, &m.Name, &m.Exp, &m.Level, &m.CreatedAt)
	if err != nil {
		return nil, notFound(fmt.Sprintf("get member %d", id), err)
	}
	return &m, nil
}

// TopMembersByExp returns up to limit members with the most experience.
// Ties go to the earlier registration.
func (q *Queries) TopMembersByExp(ctx context.Context, limit int) ([]Member, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT id, name, exp, level, created_at FROM members ORDER BY exp DESC, id ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query top members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Exp, &m.Level, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (q *Queries) UpdateMemberProgress(ctx context.Context, id int64, exp, level int) error {
	res, err := q.q.ExecContext(ctx, "UPDATE members SET exp = ?, level = ? WHERE id = ?", exp, level, id)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update member %d: %w", id, ErrNotFound)
	}
	return nil
}

// InsertAnswer stores an answer record. A second answer for the same
// (member, quiz, quiz type) yields ErrDuplicate.
func (q *Queries) InsertAnswer(ctx context.Context, a *AnswerRecord) (int64, error) {
	result, err := q.q.ExecContext(ctx, `
		INSERT INTO answer_records (member_id, quiz_id, quiz_type, answer, correct, gained_exp, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.MemberID, a.QuizID, string(a.QuizType), a.Answer, a.Correct, a.GainedExp, a.SubmittedAt.UTC())
	if err != nil {
		return 0, wrapWriteErr("insert answer", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

// AnswersForMember lists a member's answers, newest first.
func (q *Queries) AnswersForMember(ctx context.Context, memberID int64) ([]AnswerRecord, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, member_id, quiz_id, quiz_type, answer, correct, gained_exp, submitted_at
		FROM answer_records WHERE member_id = ? ORDER BY submitted_at DESC, id DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var answers []AnswerRecord
	for rows.Next() {
		var a AnswerRecord
		var quizType string
		if err := rows.Scan(&a.ID, &a.MemberID, &a.QuizID, &quizType, &a.Answer, &a.Correct, &a.GainedExp, &a.SubmittedAt); err != nil {
			return nil, err
		}
		a.QuizType = QuizType(quizType)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
