package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matthewjhunter/newsquiz/internal/events"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

type fakeItems map[int64]*storage.SourceItem

func (f fakeItems) GetSourceItem(ctx context.Context, id int64) (*storage.SourceItem, error) {
	if it, ok := f[id]; ok {
		return it, nil
	}
	return nil, storage.ErrNotFound
}

func TestTodaySelectedWritesHeadline(t *testing.T) {
	var buf bytes.Buffer
	items := fakeItems{7: {ID: 7, Title: "Rates held", Outlet: "Daily", Link: "https://n.news.naver.com/7", Category: storage.CategoryEconomy, Description: strings.Repeat("가", 300)}}
	n := NewNotifier(true, items, &buf)

	if err := n.TodaySelected(context.Background(), events.TodaySelectionCreated{SourceItemID: 7, Date: "2025-08-01"}); err != nil {
		t.Fatalf("TodaySelected: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2025-08-01", "ECONOMY", "Rates held", "https://n.news.naver.com/7", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTodaySelectedDisabled(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(false, fakeItems{}, &buf)
	if err := n.TodaySelected(context.Background(), events.TodaySelectionCreated{SourceItemID: 1}); err != nil {
		t.Fatalf("TodaySelected: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled notifier wrote %q", buf.String())
	}
}

func TestTodaySelectedMissingItem(t *testing.T) {
	n := NewNotifier(true, fakeItems{}, &bytes.Buffer{})
	err := n.TodaySelected(context.Background(), events.TodaySelectionCreated{SourceItemID: 1})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
