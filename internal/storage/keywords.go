package storage

import (
	"context"
	"fmt"
)

// UpsertKeyword records a keyword use for the given date. A repeat use of the
// same keyword in the same category on the same day increments use_count.
func (q *Queries) UpsertKeyword(ctx context.Context, keyword string, kwType KeywordType, category Category, date string) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO keyword_history (keyword, keyword_type, category, used_date, use_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(keyword, category, used_date) DO UPDATE SET use_count = use_count + 1
	`, keyword, string(kwType), string(category), date)
	if err != nil {
		return fmt.Errorf("upsert keyword %q: %w", keyword, err)
	}
	return nil
}

// GetKeyword returns the history row for (keyword, category, date).
func (q *Queries) GetKeyword(ctx context.Context, keyword string, category Category, date string) (*KeywordRecord, error) {
	var r KeywordRecord
	var kwType, cat string
	err := q.q.QueryRowContext(ctx, `
		SELECT id, keyword, keyword_type, category, used_date, use_count, created_at
		FROM keyword_history WHERE keyword = ? AND category = ? AND used_date = ?
	`, keyword, string(category), date).Scan(&r.ID, &r.Keyword, &kwType, &cat, &r.UsedDate, &r.UseCount, &r.CreatedAt)
	if err != nil {
		return nil, notFound("get keyword", err)
	}
	r.Type = KeywordType(kwType)
	r.Category = Category(cat)
	return &r, nil
}

// OverusedKeywords returns keywords recorded on at least threshold rows since the given date.
func (q *Queries) OverusedKeywords(ctx context.Context, since string, threshold int) ([]string, error) {
	return q.keywordList(ctx, `
		SELECT keyword FROM keyword_history
		WHERE used_date >= ?
		GROUP BY keyword
		HAVING COUNT(keyword) >= ?
		ORDER BY keyword
	`, since, threshold)
}

// KeywordsUsedOn returns distinct keywords of the given type used on date.
func (q *Queries) KeywordsUsedOn(ctx context.Context, date string, kwType KeywordType) ([]string, error) {
	return q.keywordList(ctx, `
		SELECT DISTINCT keyword FROM keyword_history
		WHERE used_date = ? AND keyword_type = ?
		ORDER BY keyword
	`, date, string(kwType))
}

// RecentKeywords returns every history row used on or after since.
func (q *Queries) RecentKeywords(ctx context.Context, since string) ([]KeywordRecord, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, keyword, keyword_type, category, used_date, use_count, created_at
		FROM keyword_history WHERE used_date >= ?
		ORDER BY used_date DESC, id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("recent keywords: %w", err)
	}
	defer rows.Close()

	var records []KeywordRecord
	for rows.Next() {
		var r KeywordRecord
		var kwType, cat string
		if err := rows.Scan(&r.ID, &r.Keyword, &kwType, &cat, &r.UsedDate, &r.UseCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Type = KeywordType(kwType)
		r.Category = Category(cat)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteKeywordsBefore removes history rows used strictly before cutoff.
func (q *Queries) DeleteKeywordsBefore(ctx context.Context, cutoff string) (int64, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM keyword_history WHERE used_date < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete keywords: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) keywordList(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}
