package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matthewjhunter/newsquiz"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText, FormatHuman:
		return f, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputPipelineResult outputs the result of a daily pipeline run
func (f *Formatter) OutputPipelineResult(r *newsquiz.PipelineResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(r)
	case FormatText:
		fmt.Fprintf(f.out, "run_id=%s\n", r.RunID)
		fmt.Fprintf(f.out, "date=%s\n", r.Date)
		fmt.Fprintf(f.out, "keywords=%d\n", len(r.Keywords))
		fmt.Fprintf(f.out, "ingested=%d\n", r.Ingest.Ingested)
		fmt.Fprintf(f.out, "scored=%d\n", r.Scored)
		fmt.Fprintf(f.out, "stored=%d\n", len(r.Stored))
		fmt.Fprintf(f.out, "today_item=%d\n", r.TodayItemID)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Pipeline %s for %s (%s)\n", r.RunID, r.Date, r.Duration)
		fmt.Fprintf(f.out, "Keywords: %s\n", strings.Join(r.Keywords, ", "))
		fmt.Fprintf(f.out, "Search: %d results, %d duplicates, %d already stored\n",
			r.Ingest.Results, r.Ingest.Duplicates, r.Ingest.Existing)
		fmt.Fprintf(f.out, "Crawled: %d ingested, %d discarded, %d failed\n",
			r.Ingest.Ingested, r.Ingest.Discarded, r.Ingest.CrawlFailed)
		fmt.Fprintf(f.out, "Scored %d, stored %d of %d selected\n", r.Scored, len(r.Stored), r.Selected)
		if r.TodayItemID == 0 {
			fmt.Fprintln(f.out, "No item selected for today")
		} else {
			fmt.Fprintf(f.out, "📰 Today's item: #%d\n", r.TodayItemID)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputSyntheticResult outputs the result of a synthetic content batch
func (f *Formatter) OutputSyntheticResult(r *newsquiz.SyntheticResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(r)
	case FormatText:
		fmt.Fprintf(f.out, "requested=%d\tsucceeded=%d\tskipped=%d\tfailed=%d\tplaceholder=%d\n",
			r.Requested, r.Succeeded, r.Skipped, r.Failed, r.Placeholder)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Synthetic content: %d requested, %d written, %d skipped, %d failed\n",
			r.Requested, r.Succeeded, r.Skipped, r.Failed)
		if r.Placeholder > 0 {
			fmt.Fprintf(f.out, "⚠️  %d stored as failure placeholders\n", r.Placeholder)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputQuizzes outputs a list of detail quizzes
func (f *Formatter) OutputQuizzes(quizzes []newsquiz.DetailQuiz) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(quizzes)
	case FormatText:
		for _, q := range quizzes {
			fmt.Fprintf(f.out, "id=%d\titem=%d\tquestion=%s\tanswer=%s\n",
				q.ID, q.SourceItemID, q.Question, q.CorrectOption)
		}
		return nil
	case FormatHuman:
		if len(quizzes) == 0 {
			fmt.Fprintln(f.out, "No quizzes")
			return nil
		}
		for _, q := range quizzes {
			fmt.Fprintf(f.out, "Q%d. %s\n", q.ID, q.Question)
			for i, opt := range q.Options {
				fmt.Fprintf(f.out, "   OPTION%d) %s\n", i+1, opt)
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputTodaySelection outputs today's featured item
func (f *Formatter) OutputTodaySelection(s *newsquiz.TodaySelection) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(s)
	case FormatText:
		fmt.Fprintf(f.out, "date=%s\tid=%d\tcategory=%s\ttitle=%s\tlink=%s\n",
			s.Date, s.Item.ID, s.Item.Category, s.Item.Title, s.Item.Link)
		return nil
	case FormatHuman:
		fmt.Fprintln(f.out, "╔════════════════════════════════════════════════════════════════════════")
		fmt.Fprintf(f.out, "║ 📰 TODAY'S NEWS %s [%s]\n", s.Date, s.Item.Category)
		fmt.Fprintln(f.out, "╠════════════════════════════════════════════════════════════════════════")
		fmt.Fprintf(f.out, "Title: %s\n", s.Item.Title)
		fmt.Fprintf(f.out, "Outlet: %s (%s)\n", s.Item.Outlet, s.Item.Author)
		fmt.Fprintf(f.out, "URL: %s\n", s.Item.Link)
		if s.Item.Body != "" {
			fmt.Fprintf(f.out, "\n%s\n", truncate(s.Item.Body, 300))
		}
		fmt.Fprintln(f.out, "╚════════════════════════════════════════════════════════════════════════")
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputAnswerResult outputs a graded answer
func (f *Formatter) OutputAnswerResult(r *newsquiz.AnswerResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(r)
	case FormatText:
		fmt.Fprintf(f.out, "correct=%t\tgained_exp=%d\texp=%d\tlevel=%d\n",
			r.Correct, r.GainedExp, r.Member.Exp, r.Member.Level)
		return nil
	case FormatHuman:
		if r.Correct {
			fmt.Fprintf(f.out, "✅ Correct! +%d exp\n", r.GainedExp)
		} else {
			fmt.Fprintln(f.out, "❌ Wrong answer")
		}
		fmt.Fprintf(f.out, "%s: level %d, %d exp\n", r.Member.Name, r.Member.Level, r.Member.Exp)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputAnswerHistory outputs a member's answers
func (f *Formatter) OutputAnswerHistory(records []newsquiz.AnswerRecord) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(records)
	case FormatText:
		for _, r := range records {
			fmt.Fprintf(f.out, "%d\t%s\t%s\t%t\t%d\n", r.QuizID, r.QuizType, r.Answer, r.Correct, r.GainedExp)
		}
		return nil
	case FormatHuman:
		if len(records) == 0 {
			fmt.Fprintln(f.out, "No answers yet.")
			return nil
		}
		for _, r := range records {
			mark := "❌"
			if r.Correct {
				mark = "✅"
			}
			fmt.Fprintf(f.out, "%s %s quiz %d: %s (+%d exp) %s\n",
				mark, r.QuizType, r.QuizID, r.Answer, r.GainedExp, r.SubmittedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputRanking outputs members in rank order
func (f *Formatter) OutputRanking(members []newsquiz.Member) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(members)
	case FormatText:
		for i, m := range members {
			fmt.Fprintf(f.out, "%d\t%d\t%s\t%d\t%d\n", i+1, m.ID, m.Name, m.Level, m.Exp)
		}
		return nil
	case FormatHuman:
		for i, m := range members {
			fmt.Fprintf(f.out, "%d. %s (level %d, %d exp)\n", i+1, m.Name, m.Level, m.Exp)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
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
