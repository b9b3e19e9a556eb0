package newsquiz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/matthewjhunter/newsquiz/internal/ai"
	"github.com/matthewjhunter/newsquiz/internal/events"
	"github.com/matthewjhunter/newsquiz/internal/ingest"
	"github.com/matthewjhunter/newsquiz/internal/keywords"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/notify"
	"github.com/matthewjhunter/newsquiz/internal/quiz"
	"github.com/matthewjhunter/newsquiz/internal/ratelimit"
	"github.com/matthewjhunter/newsquiz/internal/scoring"
	"github.com/matthewjhunter/newsquiz/internal/selection"
	"github.com/matthewjhunter/newsquiz/internal/storage"
	"github.com/matthewjhunter/newsquiz/internal/synth"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

// Engine is the public API for the newsquiz pipeline. It owns the store,
// the shared rate limiter, the worker pools and the event bus, and wires
// each stage's completion event to the next stage.
type Engine struct {
	config *storage.Config
	store  *storage.Store
	log    *logger.Logger
	now    func() time.Time

	shutdownGrace time.Duration

	newsPool   *workpool.Pool
	quizPool   *workpool.Pool
	eventsPool *workpool.Pool
	bus        *events.Bus

	planner  *keywords.Planner
	ingestor *ingest.Ingestor
	scorer   *scoring.Scorer
	selector *selection.Selector
	synth    *synth.Synthesizer
	detail   *quiz.DetailGenerator
	daily    *quiz.DailyService
	facts    *quiz.FactService
	answers  *quiz.AnswerService
}

// NewEngine opens the database and builds every stage.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Config == nil {
		cfg.Config = storage.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	if cfg.NotifyOut == nil {
		cfg.NotifyOut = os.Stdout
	}
	c := cfg.Config
	log := cfg.Logger

	completer := cfg.Completer
	if completer == nil {
		client, err := ai.NewOllamaClient(c.Ollama.BaseURL, c.Ollama.Model, c.Ollama.Timeout)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		completer = client
	}
	searcher := cfg.Searcher
	if searcher == nil {
		var err error
		if searcher, err = newSearcher(c); err != nil {
			return nil, err
		}
	}
	crawler := cfg.Crawler
	if crawler == nil {
		crawler = ingest.NewHTMLCrawler(&http.Client{Timeout: c.Crawl.Timeout}, c.Crawl.UserAgent, ingest.Selectors{
			Body:       c.Crawl.BodySelector,
			Image:      c.Crawl.ImageSelector,
			ImageAttr:  c.Crawl.ImageAttr,
			Author:     c.Crawl.AuthorSelector,
			Outlet:     c.Crawl.OutletSelector,
			OutletAttr: c.Crawl.OutletAttr,
		})
	}

	store, err := storage.NewStore(c.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Capacity:       c.RateLimit.Capacity,
		RefillTokens:   c.RateLimit.RefillTokens,
		RefillInterval: c.RateLimit.RefillInterval,
		PollInterval:   c.RateLimit.PollInterval,
		MaxWait:        c.RateLimit.MaxWait,
	}, log.With("component", "ratelimit"))

	e := &Engine{
		config:     c,
		store:      store,
		log:        log,
		now:        cfg.Now,
		newsPool:   workpool.New("news", c.Pools.News, c.Pools.QueueSize, log),
		quizPool:   workpool.New("quiz", c.Pools.Quiz, c.Pools.QueueSize, log),
		eventsPool: workpool.New("events", c.Pools.Events, c.Pools.QueueSize, log),
	}
	e.shutdownGrace = cfg.ShutdownGrace
	e.bus = events.NewBus(e.eventsPool, log.With("component", "events"))

	processor := ai.NewProcessor(completer, ai.NewPromptLoader(c))

	e.planner = keywords.NewPlanner(store, processor, limiter, keywords.Config{
		OverusedDays:      c.Keywords.OverusedDays,
		OverusedThreshold: c.Keywords.OverusedThreshold,
		RecentDays:        c.Keywords.RecentDays,
		RetentionDays:     c.Keywords.RetentionDays,
		Static:            c.Keywords.Static,
	}, log)
	e.ingestor = ingest.NewIngestor(searcher, crawler, store, limiter, e.newsPool, ingest.Config{
		ContentDomain:    c.Search.ContentDomain,
		CrawlDelay:       c.Crawl.Delay,
		CrawlConcurrency: c.Crawl.Concurrency,
	}, log)
	e.scorer = scoring.NewScorer(processor, limiter, e.newsPool, c.Scoring.BatchSize, log)
	e.selector = selection.NewSelector(store, e.bus, c.Scoring.TopK, log)
	e.synth = synth.NewSynthesizer(store, processor, limiter, e.newsPool, e.bus, c.Synthetic.LengthTolerance, log)
	e.detail = quiz.NewDetailGenerator(store, processor, limiter, quiz.NewRegistry(), e.quizPool, e.bus, quiz.Config{
		MaxAttempts: c.Quiz.MaxAttempts,
		Backoff:     c.Quiz.Backoff,
	}, log)
	e.daily = quiz.NewDailyService(store, log)
	e.facts = quiz.NewFactService(store, log)
	e.answers = quiz.NewAnswerService(store, log)

	e.subscribe(notify.NewNotifier(c.Notify.Enabled, store, cfg.NotifyOut))
	return e, nil
}

func newSearcher(c *storage.Config) (ingest.Searcher, error) {
	client := &http.Client{Timeout: c.Search.Timeout}
	switch c.Search.Provider {
	case "", "naver":
		return ingest.NewNaverSearcher(client, c.Search.NaverURL, c.Search.ClientID, c.Search.ClientSecret, c.Search.Display, c.Search.Sort), nil
	case "feed":
		return ingest.NewFeedSearcher(client, c.Search.FeedURL, c.Crawl.UserAgent), nil
	}
	return nil, fmt.Errorf("unknown search provider %q", c.Search.Provider)
}

// subscribe connects the stages:
//
//	SourceItemsCreated      -> detail quizzes for each item
//	DetailQuizzesCreated    -> daily quizzes when the featured item is among them
//	TodaySelectionCreated   -> daily quizzes for the selection, notification
//	SyntheticContentCreated -> fact quizzes
func (e *Engine) subscribe(n *notify.Notifier) {
	// The batch is joined off the events pool so quiz commits can always
	// dispatch their own events.
	events.On(e.bus, "detail_quizzes", func(ctx context.Context, ev events.SourceItemsCreated) error {
		batch := e.detail.Start(ctx, ev.IDs)
		e.bus.Go(func() { batch.Wait() })
		return nil
	})
	events.On(e.bus, "daily_quizzes", func(ctx context.Context, ev events.DetailQuizzesCreated) error {
		_, err := e.daily.CreateForDate(ctx, e.today(), ev.SourceItemIDs)
		return err
	})
	events.On(e.bus, "daily_quizzes", func(ctx context.Context, ev events.TodaySelectionCreated) error {
		_, err := e.daily.CreateForSelection(ctx, ev.SelectionID)
		return err
	})
	events.On(e.bus, "fact_quizzes", func(ctx context.Context, ev events.SyntheticContentCreated) error {
		if _, _, failed := e.facts.CreateAll(ctx, ev.IDs); failed > 0 {
			return fmt.Errorf("%d fact quizzes failed", failed)
		}
		return nil
	})
	n.Subscribe(e.bus)
}

func (e *Engine) todayTime() time.Time {
	return e.now().In(e.config.Location())
}

func (e *Engine) today() string {
	return e.todayTime().Format(storage.DateLayout)
}

// RunDailyPipeline plans keywords, ingests, scores and stores the day's
// selection. It returns once the selection is committed; quiz generation
// continues in the background (see Wait).
func (e *Engine) RunDailyPipeline(ctx context.Context) (*PipelineResult, error) {
	start := time.Now()
	today := e.todayTime()
	result := &PipelineResult{RunID: uuid.NewString(), Date: today.Format(storage.DateLayout)}
	log := e.log.With("run_id", result.RunID)
	log.Info("pipeline started", "date", result.Date)

	planned, err := e.planner.Plan(ctx, today)
	if err != nil {
		// keywords are still usable; only their history failed to save
		log.Warn("keyword history not saved", "error", err)
	}
	for _, kw := range planned {
		result.Keywords = append(result.Keywords, kw.Text)
	}

	items, stats := e.ingestor.Ingest(ctx, result.Keywords)
	result.Ingest = stats

	scored := e.scorer.Score(ctx, items)
	result.Scored = len(scored)

	sel, err := e.selector.Select(ctx, scored, today)
	if err != nil {
		log.Error("pipeline failed", "error", err)
		return nil, err
	}
	result.Selected = sel.Selected
	result.Stored = sel.Stored
	result.Skipped = sel.Skipped
	if sel.Selection != nil {
		result.TodayItemID = sel.Selection.SourceItemID
	}
	result.Duration = time.Since(start).Round(time.Millisecond).String()

	log.Info("pipeline complete",
		"keywords", len(result.Keywords),
		"ingested", stats.Ingested,
		"scored", result.Scored,
		"stored", len(result.Stored),
		"today_item", result.TodayItemID,
		"duration", result.Duration)
	return result, nil
}

// RegenerateQuizzes replaces the detail quizzes of one item.
func (e *Engine) RegenerateQuizzes(ctx context.Context, itemID int64) ([]DetailQuiz, error) {
	quizzes, err := e.detail.Generate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return detailQuizzesFromInternal(quizzes), nil
}

// SynthesizeBatch writes synthetic content for the given items. Fact
// quizzes follow asynchronously.
func (e *Engine) SynthesizeBatch(ctx context.Context, itemIDs []int64) *SyntheticResult {
	r := e.synth.Synthesize(ctx, itemIDs)
	return &SyntheticResult{
		Requested:   r.Requested,
		Succeeded:   r.Succeeded,
		Skipped:     r.Skipped,
		Failed:      r.Failed,
		Placeholder: r.Placeholder,
		IDs:         r.IDs,
	}
}

// SynthesizeToday runs SynthesizeBatch over every item stored since local
// midnight.
func (e *Engine) SynthesizeToday(ctx context.Context) (*SyntheticResult, error) {
	now := e.todayTime()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	items, err := e.store.SourceItemsStoredSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("list today's items: %w", err)
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return e.SynthesizeBatch(ctx, ids), nil
}

// CleanupKeywords deletes keyword history past the retention window.
func (e *Engine) CleanupKeywords(ctx context.Context) (int64, error) {
	return e.planner.Cleanup(ctx, e.todayTime())
}

// SubmitAnswer grades and records an answer.
func (e *Engine) SubmitAnswer(ctx context.Context, a Answer) (*AnswerResult, error) {
	out, err := e.answers.Submit(ctx, quiz.Submission{
		MemberID: a.MemberID,
		QuizID:   a.QuizID,
		QuizType: storage.QuizType(a.QuizType),
		Answer:   a.Answer,
	})
	if err != nil {
		return nil, err
	}
	return &AnswerResult{
		Correct:   out.Record.Correct,
		GainedExp: out.Record.GainedExp,
		Member:    memberFromInternal(*out.Member),
	}, nil
}

// CreateMember registers a player.
func (e *Engine) CreateMember(ctx context.Context, name string) (*Member, error) {
	id, err := e.store.CreateMember(ctx, name)
	if err != nil {
		return nil, err
	}
	return e.GetMember(ctx, id)
}

func (e *Engine) GetMember(ctx context.Context, id int64) (*Member, error) {
	m, err := e.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	out := memberFromInternal(*m)
	return &out, nil
}

// GetAnswerHistory lists a member's answers, newest first.
func (e *Engine) GetAnswerHistory(ctx context.Context, memberID int64) ([]AnswerRecord, error) {
	if _, err := e.store.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	records, err := e.store.AnswersForMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	out := make([]AnswerRecord, len(records))
	for i, r := range records {
		out[i] = AnswerRecord{
			ID:          r.ID,
			QuizID:      r.QuizID,
			QuizType:    string(r.QuizType),
			Answer:      r.Answer,
			Correct:     r.Correct,
			GainedExp:   r.GainedExp,
			SubmittedAt: r.SubmittedAt,
		}
	}
	return out, nil
}

// TopMembers returns the five members with the most experience.
func (e *Engine) TopMembers(ctx context.Context) ([]Member, error) {
	members, err := e.store.TopMembersByExp(ctx, TopMembersLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Member, len(members))
	for i, m := range members {
		out[i] = memberFromInternal(m)
	}
	return out, nil
}

// GetTodaySelection returns today's featured item.
func (e *Engine) GetTodaySelection(ctx context.Context) (*TodaySelection, error) {
	sel, err := e.store.GetTodaySelection(ctx, e.today())
	if err != nil {
		return nil, err
	}
	item, err := e.store.GetSourceItem(ctx, sel.SourceItemID)
	if err != nil {
		return nil, err
	}
	return &TodaySelection{ID: sel.ID, Date: sel.Date, Item: itemFromInternal(*item)}, nil
}

// GetItemQuizzes returns the detail quizzes of an item.
func (e *Engine) GetItemQuizzes(ctx context.Context, itemID int64) ([]DetailQuiz, error) {
	if _, err := e.store.GetSourceItem(ctx, itemID); err != nil {
		return nil, err
	}
	quizzes, err := e.store.DetailQuizzesForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return detailQuizzesFromInternal(quizzes), nil
}

// GetDailyQuizzes returns the daily quizzes of today's selection.
func (e *Engine) GetDailyQuizzes(ctx context.Context) ([]DailyQuiz, error) {
	sel, err := e.store.GetTodaySelection(ctx, e.today())
	if err != nil {
		return nil, err
	}
	daily, err := e.store.DailyQuizzesForSelection(ctx, sel.ID)
	if err != nil {
		return nil, err
	}
	out := make([]DailyQuiz, len(daily))
	for i, d := range daily {
		out[i] = DailyQuiz{ID: d.ID, TodaySelectionID: d.TodaySelectionID, Quiz: detailQuizFromInternal(d.DetailQuiz)}
	}
	return out, nil
}

// GetFactQuiz returns the fact quiz of an item with both texts.
func (e *Engine) GetFactQuiz(ctx context.Context, itemID int64) (*FactQuiz, error) {
	fq, err := e.store.FactQuizForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	item, err := e.store.GetSourceItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	synthetic, err := e.store.GetSyntheticContent(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &FactQuiz{
		ID:            fq.ID,
		SourceItemID:  fq.SourceItemID,
		Question:      fq.Question,
		Real:          item.Body,
		Synthetic:     synthetic.Content,
		CorrectAnswer: string(fq.CorrectAnswer),
	}, nil
}

// Wait blocks until every cascaded stage triggered so far has finished.
func (e *Engine) Wait() {
	e.bus.Wait()
}

// Close waits up to the shutdown grace for cascades, cancels whatever is
// still running, stops the pools and closes the database.
func (e *Engine) Close() error {
	e.bus.Shutdown(e.shutdownGrace)
	e.newsPool.Close()
	e.eventsPool.Close()
	e.quizPool.Close()
	return e.store.Close()
}

// TopMembersLimit is the length of the experience ranking.
const TopMembersLimit = 5

// Errors callers may want to distinguish.
var (
	ErrAlreadyAnswered  = quiz.ErrAlreadyAnswered
	ErrInvalidAnswer    = quiz.ErrInvalidAnswer
	ErrInFlight         = quiz.ErrInFlight
	ErrRetriesExhausted = quiz.ErrRetriesExhausted
)

// IsNotFound reports whether err means a requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

// --- internal type conversion helpers ---

func itemFromInternal(it storage.SourceItem) SourceItem {
	return SourceItem{
		ID:           it.ID,
		Title:        it.Title,
		Body:         it.Body,
		Link:         it.Link,
		OriginalLink: it.OriginalLink,
		Description:  it.Description,
		ImageURL:     it.ImageURL,
		Outlet:       it.Outlet,
		Author:       it.Author,
		Category:     string(it.Category),
		Score:        it.Score,
		PublishedAt:  it.PublishedAt,
		StoredAt:     it.StoredAt,
	}
}

func detailQuizFromInternal(q storage.DetailQuiz) DetailQuiz {
	return DetailQuiz{
		ID:            q.ID,
		SourceItemID:  q.SourceItemID,
		Question:      q.Question,
		Options:       q.Options,
		CorrectOption: q.CorrectOption,
	}
}

func detailQuizzesFromInternal(quizzes []storage.DetailQuiz) []DetailQuiz {
	out := make([]DetailQuiz, len(quizzes))
	for i, q := range quizzes {
		out[i] = detailQuizFromInternal(q)
	}
	return out
}

func memberFromInternal(m storage.Member) Member {
	return Member{ID: m.ID, Name: m.Name, Exp: m.Exp, Level: m.Level, CreatedAt: m.CreatedAt}
}
