// Package keywords plans the search keywords for a pipeline run and keeps
// the keyword history that drives future exclusions.
package keywords

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/ai"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

type Config struct {
	OverusedDays      int
	OverusedThreshold int
	RecentDays        int
	RetentionDays     int
	Static            []string
}

// Keyword is one planned search term.
type Keyword struct {
	Text     string
	Type     storage.KeywordType
	Category storage.Category
}

// Generator produces keyword suggestions.
type Generator interface {
	GenerateKeywords(ctx context.Context, req ai.KeywordRequest) (*ai.KeywordResult, error)
}

type limiter interface {
	Acquire(ctx context.Context) error
}

type Planner struct {
	store   *storage.Store
	gen     Generator
	limiter limiter
	cfg     Config
	log     *logger.Logger
}

func NewPlanner(store *storage.Store, gen Generator, lim limiter, cfg Config, log *logger.Logger) *Planner {
	return &Planner{store: store, gen: gen, limiter: lim, cfg: cfg, log: log.With("stage", "keywords")}
}

var defaultKeywords = []Keyword{
	{Text: "사회", Type: storage.KeywordGeneral, Category: storage.CategorySociety},
	{Text: "교육", Type: storage.KeywordGeneral, Category: storage.CategorySociety},
	{Text: "경제", Type: storage.KeywordGeneral, Category: storage.CategoryEconomy},
	{Text: "시장", Type: storage.KeywordGeneral, Category: storage.CategoryEconomy},
	{Text: "정치", Type: storage.KeywordGeneral, Category: storage.CategoryPolitics},
	{Text: "정부", Type: storage.KeywordGeneral, Category: storage.CategoryPolitics},
	{Text: "문화", Type: storage.KeywordGeneral, Category: storage.CategoryCulture},
	{Text: "예술", Type: storage.KeywordGeneral, Category: storage.CategoryCulture},
	{Text: "기술", Type: storage.KeywordGeneral, Category: storage.CategoryIT},
	{Text: "IT", Type: storage.KeywordGeneral, Category: storage.CategoryIT},
}

// DefaultKeywords returns the fixed fallback set, two per category.
func DefaultKeywords() []Keyword {
	return append([]Keyword(nil), defaultKeywords...)
}

// Plan returns today's keywords and records their use. A failed or
// malformed model answer is replaced wholesale by DefaultKeywords, so the
// result is never empty.
func (p *Planner) Plan(ctx context.Context, today time.Time) ([]Keyword, error) {
	date := today.Format(storage.DateLayout)

	excluded := p.exclusions(ctx, today)
	recent, err := p.store.RecentKeywords(ctx, today.AddDate(0, 0, -p.cfg.RecentDays).Format(storage.DateLayout))
	if err != nil {
		p.log.Warn("could not load recent keywords", "error", err)
	}

	keywords, err := p.generate(ctx, ai.KeywordRequest{
		Today:    date,
		Excluded: excluded,
		Recent:   recent,
		Static:   p.cfg.Static,
	})
	if err != nil {
		p.log.Warn("keyword generation failed, using defaults", "error", err)
		keywords = DefaultKeywords()
	}

	if err := p.save(ctx, keywords, date); err != nil {
		return keywords, err
	}
	p.log.Info("keywords planned", "date", date, "count", len(keywords), "excluded", len(excluded))
	return keywords, nil
}

func (p *Planner) generate(ctx context.Context, req ai.KeywordRequest) ([]Keyword, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	result, err := p.gen.GenerateKeywords(ctx, req)
	if err != nil {
		return nil, err
	}

	// a repeated keyword within a category is searched and counted once
	type key struct {
		text string
		cat  storage.Category
	}
	seen := make(map[key]bool)
	var keywords []Keyword
	byCat := result.ByCategory()
	for _, cat := range storage.Categories {
		for _, s := range byCat[cat] {
			k := key{strings.TrimSpace(s.Keyword), cat}
			if seen[k] {
				continue
			}
			seen[k] = true
			kwType := s.Type
			if kwType == "" {
				kwType = storage.KeywordGeneral
			}
			keywords = append(keywords, Keyword{Text: k.text, Type: kwType, Category: cat})
		}
	}
	return keywords, nil
}

// exclusions is the union of overused keywords and yesterday's general
// keywords. Lookup failures shrink the set rather than failing the run.
func (p *Planner) exclusions(ctx context.Context, today time.Time) []string {
	since := today.AddDate(0, 0, -p.cfg.OverusedDays).Format(storage.DateLayout)
	overused, err := p.store.OverusedKeywords(ctx, since, p.cfg.OverusedThreshold)
	if err != nil {
		p.log.Warn("could not load overused keywords", "error", err)
	}
	yesterday, err := p.store.KeywordsUsedOn(ctx, today.AddDate(0, 0, -1).Format(storage.DateLayout), storage.KeywordGeneral)
	if err != nil {
		p.log.Warn("could not load yesterday's keywords", "error", err)
	}

	seen := make(map[string]bool)
	var excluded []string
	for _, kw := range append(overused, yesterday...) {
		if !seen[kw] {
			seen[kw] = true
			excluded = append(excluded, kw)
		}
	}
	return excluded
}

func (p *Planner) save(ctx context.Context, keywords []Keyword, date string) error {
	err := p.store.WithTx(ctx, func(tx *storage.Tx) error {
		for _, kw := range keywords {
			if err := tx.UpsertKeyword(ctx, kw.Text, kw.Type, kw.Category, date); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save keyword history: %w", err)
	}
	return nil
}

// Cleanup deletes keyword history older than the retention window.
func (p *Planner) Cleanup(ctx context.Context, today time.Time) (int64, error) {
	cutoff := today.AddDate(0, 0, -p.cfg.RetentionDays).Format(storage.DateLayout)
	n, err := p.store.DeleteKeywordsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.log.Info("keyword history cleaned", "cutoff", cutoff, "deleted", n)
	return n, nil
}
