package newsquiz

import (
	"io"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/ai"
	"github.com/matthewjhunter/newsquiz/internal/ingest"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

// EngineConfig configures the newsquiz engine. Only Config is required;
// the collaborators default to the ones Config describes.
type EngineConfig struct {
	Config *storage.Config
	Logger *logger.Logger

	Completer ai.Completer    // defaults to an Ollama client
	Searcher  ingest.Searcher // defaults to Config.Search.Provider
	Crawler   ingest.Crawler  // defaults to an HTML crawler using Config.Crawl
	NotifyOut io.Writer       // defaults to stdout

	// Now replaces the wall clock when deciding "today".
	Now func() time.Time

	// ShutdownGrace bounds how long Close lets running cascades finish
	// before cancelling them. Defaults to 30s.
	ShutdownGrace time.Duration
}

// SourceItem is a stored article.
type SourceItem struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Link         string    `json:"link"`
	OriginalLink string    `json:"original_link,omitempty"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"image_url"`
	Outlet       string    `json:"outlet"`
	Author       string    `json:"author"`
	Category     string    `json:"category"`
	Score        int       `json:"score"`
	PublishedAt  time.Time `json:"published_at"`
	StoredAt     time.Time `json:"stored_at"`
}

// TodaySelection is the featured item of a date.
type TodaySelection struct {
	ID   int64      `json:"id"`
	Date string     `json:"date"`
	Item SourceItem `json:"item"`
}

// DetailQuiz is a three-option question about one item.
type DetailQuiz struct {
	ID            int64     `json:"id"`
	SourceItemID  int64     `json:"source_item_id"`
	Question      string    `json:"question"`
	Options       [3]string `json:"options"`
	CorrectOption string    `json:"correct_option"`
}

// DailyQuiz is a detail quiz of the day's featured item.
type DailyQuiz struct {
	ID               int64      `json:"id"`
	TodaySelectionID int64      `json:"today_selection_id"`
	Quiz             DetailQuiz `json:"quiz"`
}

// FactQuiz asks which of an item and its synthetic counterpart is real
// (or fake).
type FactQuiz struct {
	ID            int64  `json:"id"`
	SourceItemID  int64  `json:"source_item_id"`
	Question      string `json:"question"`
	Real          string `json:"real"`
	Synthetic     string `json:"synthetic"`
	CorrectAnswer string `json:"correct_answer"`
}

// Member is a quiz player.
type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Exp       int       `json:"exp"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// Answer is a submitted quiz answer.
type Answer struct {
	MemberID int64  `json:"member_id"`
	QuizID   int64  `json:"quiz_id"`
	QuizType string `json:"quiz_type"`
	Answer   string `json:"answer"`
}

// AnswerResult reports a graded answer and the member afterwards.
type AnswerResult struct {
	Correct   bool   `json:"correct"`
	GainedExp int    `json:"gained_exp"`
	Member    Member `json:"member"`
}

// AnswerRecord is one graded answer in a member's history.
type AnswerRecord struct {
	ID          int64     `json:"id"`
	QuizID      int64     `json:"quiz_id"`
	QuizType    string    `json:"quiz_type"`
	Answer      string    `json:"answer"`
	Correct     bool      `json:"correct"`
	GainedExp   int       `json:"gained_exp"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// PipelineResult summarizes one daily pipeline run. Cascaded stages (quiz
// generation and daily quizzes) run after it returns.
type PipelineResult struct {
	RunID       string       `json:"run_id"`
	Date        string       `json:"date"`
	Keywords    []string     `json:"keywords"`
	Ingest      ingest.Stats `json:"ingest"`
	Scored      int          `json:"scored"`
	Selected    int          `json:"selected"`
	Stored      []int64      `json:"stored"`
	Skipped     int          `json:"skipped"`
	TodayItemID int64        `json:"today_item_id,omitempty"`
	Duration    string       `json:"duration"`
}

// SyntheticResult summarizes a synthetic content batch.
type SyntheticResult struct {
	Requested   int     `json:"requested"`
	Succeeded   int     `json:"succeeded"`
	Skipped     int     `json:"skipped"`
	Failed      int     `json:"failed"`
	Placeholder int     `json:"placeholder"`
	IDs         []int64 `json:"ids"`
}

// QuizResult summarizes a quiz regeneration request.
type QuizResult struct {
	Requested int     `json:"requested"`
	Generated []int64 `json:"generated"`
	InFlight  int     `json:"in_flight"`
	Failed    int     `json:"failed"`
}
