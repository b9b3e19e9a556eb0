// Package events carries stage completion notifications between pipeline
// stages. Notifications are bound to a unit of work and delivered only after
// it commits.
package events

// Event is implemented by every notification type.
type Event interface {
	EventName() string
}

// TodaySelectionCreated fires after the day's featured item is committed.
type TodaySelectionCreated struct {
	SelectionID  int64
	SourceItemID int64
	Date         string
}

func (TodaySelectionCreated) EventName() string { return "today_selection.created" }

// SourceItemsCreated fires after a pipeline run commits its selected items.
type SourceItemsCreated struct {
	IDs []int64
}

func (SourceItemsCreated) EventName() string { return "source_items.created" }

// SyntheticContentCreated carries the items whose synthetic content was saved.
type SyntheticContentCreated struct {
	IDs []int64
}

func (SyntheticContentCreated) EventName() string { return "synthetic_content.created" }

// DetailQuizzesCreated fires after a batch of detail quiz generation.
type DetailQuizzesCreated struct {
	SourceItemIDs []int64
}

func (DetailQuizzesCreated) EventName() string { return "detail_quizzes.created" }
