// Package notify announces the day's featured item once it is committed.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/matthewjhunter/newsquiz/internal/events"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

type itemReader interface {
	GetSourceItem(ctx context.Context, id int64) (*storage.SourceItem, error)
}

type Notifier struct {
	enabled bool
	items   itemReader

	mu  sync.Mutex
	out io.Writer
}

func NewNotifier(enabled bool, items itemReader, out io.Writer) *Notifier {
	return &Notifier{enabled: enabled, items: items, out: out}
}

// Subscribe registers the notifier for TodaySelectionCreated.
func (n *Notifier) Subscribe(bus *events.Bus) {
	events.On(bus, "notify", n.TodaySelected)
}

// TodaySelected writes the featured headline.
func (n *Notifier) TodaySelected(ctx context.Context, e events.TodaySelectionCreated) error {
	if !n.enabled {
		return nil
	}
	item, err := n.items.GetSourceItem(ctx, e.SourceItemID)
	if err != nil {
		return fmt.Errorf("load featured item: %w", err)
	}

	msg := fmt.Sprintf("Today's news (%s) [%s]\n\nTitle: %s\nOutlet: %s\nURL: %s\n\nSummary: %s",
		e.Date, item.Category, item.Title, item.Outlet, item.Link, truncate(item.Description, 200))
	return n.send(msg)
}

func (n *Notifier) send(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	rule := strings.Repeat("═", 72)
	_, err := fmt.Fprintf(n.out, "╔%s\n║ NEWSQUIZ\n╠%s\n%s\n╚%s\n", rule, rule, message, rule)
	return err
}

// truncate truncates a string to maxLen runes
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
