package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sourceItemColumns = `id, title, body, link, original_link, description, image_url,
	outlet, author, category, score, published_at, stored_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSourceItem(row rowScanner) (*SourceItem, error) {
	var item SourceItem
	var originalLink, description, imageURL, outlet, author sql.NullString
	var category string
	var publishedAt sql.NullTime
	err := row.Scan(&item.ID, &item.Title, &item.Body, &item.Link, &originalLink, &description, &imageURL,
		&outlet, &author, &category, &item.Score, &publishedAt, &item.StoredAt)
	if err != nil {
		return nil, err
	}
	item.OriginalLink = originalLink.String
	item.Description = description.String
	item.ImageURL = imageURL.String
	item.Outlet = outlet.String
	item.Author = author.String
	item.Category = Category(category)
	if publishedAt.Valid {
		item.PublishedAt = publishedAt.Time
	}
	return &item, nil
}

// SourceItemExistsByLink reports whether an item with this link is stored.
func (q *Queries) SourceItemExistsByLink(ctx context.Context, link string) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM source_items WHERE link = ?", link).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check link: %w", err)
	}
	return n > 0, nil
}

// InsertSourceItem stores item and sets its ID. A link that is already
// stored yields ErrDuplicate.
func (q *Queries) InsertSourceItem(ctx context.Context, item *SourceItem) (int64, error) {
	if item.StoredAt.IsZero() {
		item.StoredAt = time.Now()
	}
	if item.Category == "" {
		item.Category = CategoryNotFiltered
	}
	var publishedAt any
	if !item.PublishedAt.IsZero() {
		publishedAt = item.PublishedAt.UTC()
	}
	result, err := q.q.ExecContext(ctx, `
		INSERT INTO source_items (title, body, link, original_link, description, image_url,
			outlet, author, category, score, published_at, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Title, item.Body, item.Link, item.OriginalLink, item.Description, item.ImageURL,
		item.Outlet, item.Author, string(item.Category), item.Score, publishedAt, item.StoredAt.UTC())
	if err != nil {
		return 0, wrapWriteErr("insert source item", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	item.ID = id
	return id, nil
}

func (q *Queries) GetSourceItem(ctx context.Context, id int64) (*SourceItem, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+sourceItemColumns+" FROM source_items WHERE id = ?", id)
	item, err := scanSourceItem(row)
	if err != nil {
		return nil, notFound(fmt.Sprintf("get source item %d", id), err)
	}
	return item, nil
}

// SourceItemsStoredSince returns items stored at or after since, oldest first.
func (q *Queries) SourceItemsStoredSince(ctx context.Context, since time.Time) ([]SourceItem, error) {
	return q.sourceItemList(ctx, "SELECT "+sourceItemColumns+" FROM source_items WHERE stored_at >= ? ORDER BY id", since.UTC())
}

func (q *Queries) DeleteSourceItem(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM source_items WHERE id = ?", id)
	if err != nil {
		return wrapWriteErr("delete source item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete source item %d: %w", id, ErrNotFound)
	}
	return nil
}

func (q *Queries) sourceItemList(ctx context.Context, query string, args ...any) ([]SourceItem, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query source items: %w", err)
	}
	defer rows.Close()

	var items []SourceItem
	for rows.Next() {
		item, err := scanSourceItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ReplaceTodaySelection deletes any selection for date and inserts a new
// one pointing at itemID. Callers run it inside a Tx so the swap is atomic.
func (q *Queries) ReplaceTodaySelection(ctx context.Context, date string, itemID int64) (*TodaySelection, error) {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM today_selection WHERE selection_date = ?", date); err != nil {
		return nil, fmt.Errorf("delete today selection: %w", err)
	}
	result, err := q.q.ExecContext(ctx,
		"INSERT INTO today_selection (selection_date, source_item_id) VALUES (?, ?)", date, itemID)
	if err != nil {
		return nil, wrapWriteErr("insert today selection", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &TodaySelection{ID: id, Date: date, SourceItemID: itemID, CreatedAt: time.Now()}, nil
}

// GetTodaySelection returns the live selection for date.
func (q *Queries) GetTodaySelection(ctx context.Context, date string) (*TodaySelection, error) {
	return q.todaySelection(ctx, "selection_date = ?", date)
}

func (q *Queries) GetTodaySelectionByID(ctx context.Context, id int64) (*TodaySelection, error) {
	return q.todaySelection(ctx, "id = ?", id)
}

func (q *Queries) todaySelection(ctx context.Context, where string, arg any) (*TodaySelection, error) {
	var s TodaySelection
	err := q.q.QueryRowContext(ctx,
		"SELECT id, selection_date, source_item_id, created_at FROM today_selection WHERE "+where, arg,
	).Scan(&s.ID, &s.Date, &s.SourceItemID, &s.CreatedAt)
	if err != nil {
		return nil, notFound("get today selection", err)
	}
	return &s, nil
}

func (q *Queries) SyntheticContentExists(ctx context.Context, itemID int64) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM synthetic_content WHERE source_item_id = ?", itemID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check synthetic content: %w", err)
	}
	return n > 0, nil
}

// InsertSyntheticContent stores the synthetic counterpart of an item.
// A second insert for the same item yields ErrDuplicate; a missing item
// yields ErrNotFound.
func (q *Queries) InsertSyntheticContent(ctx context.Context, itemID int64, content string) error {
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO synthetic_content (source_item_id, content) VALUES (?, ?)", itemID, content)
	if err != nil {
		return wrapWriteErr("insert synthetic content", err)
	}
	return nil
}

func (q *Queries) GetSyntheticContent(ctx context.Context, itemID int64) (*SyntheticContent, error) {
	var c SyntheticContent
	err := q.q.QueryRowContext(ctx,
		"SELECT source_item_id, content, created_at FROM synthetic_content WHERE source_item_id = ?", itemID,
	).Scan(&c.SourceItemID, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, notFound("get synthetic content", err)
	}
	return &c, nil
}
