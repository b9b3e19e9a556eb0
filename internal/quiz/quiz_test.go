package quiz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/ai"
	"github.com/matthewjhunter/newsquiz/internal/events"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

type fakeWriter struct {
	calls   atomic.Int32
	failFor int32 // number of leading calls that fail
	started chan struct{}
	release chan struct{}
}

func (f *fakeWriter) GenerateQuizzes(ctx context.Context, title, body string) ([]ai.QuizCandidate, error) {
	n := f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if n <= f.failFor {
		return nil, fmt.Errorf("%w: only 2 quizzes", ai.ErrInvalidResponse)
	}
	var out []ai.QuizCandidate
	for i := 1; i <= 3; i++ {
		out = append(out, ai.QuizCandidate{
			Question:      fmt.Sprintf("%s question %d", title, i),
			Option1:       "one",
			Option2:       "two",
			Option3:       "three",
			CorrectOption: "OPTION2",
		})
	}
	return out, nil
}

type fakeLimiter struct{}

func (fakeLimiter) Acquire(ctx context.Context) error { return nil }

type fixture struct {
	store *storage.Store
	bus   *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	evPool := workpool.New("events", 1, 16, logger.Nop())
	t.Cleanup(evPool.Close)
	return &fixture{store: store, bus: events.NewBus(evPool, logger.Nop())}
}

func (f *fixture) detailGenerator(t *testing.T, w QuizWriter, cfg Config) *DetailGenerator {
	t.Helper()
	pool := workpool.New("quiz", 2, 16, logger.Nop())
	t.Cleanup(pool.Close)
	return NewDetailGenerator(f.store, w, fakeLimiter{}, NewRegistry(), pool, f.bus, cfg, logger.Nop())
}

func (f *fixture) addItem(t *testing.T, title string) int64 {
	t.Helper()
	id, err := f.store.InsertSourceItem(context.Background(), &storage.SourceItem{
		Title: title,
		Body:  "body of " + title,
		Link:  "https://n.news.naver.com/" + title,
	})
	if err != nil {
		t.Fatalf("InsertSourceItem: %v", err)
	}
	return id
}

func fastRetry(attempts int) Config {
	return Config{MaxAttempts: attempts, Backoff: time.Millisecond}
}

func TestGenerateStoresQuizzesAndPublishes(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, "a")

	var published atomic.Int64
	events.On(f.bus, "test", func(ctx context.Context, e events.DetailQuizzesCreated) error {
		published.Store(e.SourceItemIDs[0])
		return nil
	})

	g := f.detailGenerator(t, &fakeWriter{}, fastRetry(3))
	quizzes, err := g.Generate(context.Background(), id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	f.bus.Wait()

	if len(quizzes) != 3 {
		t.Fatalf("expected 3 quizzes, got %d", len(quizzes))
	}
	stored, _ := f.store.DetailQuizzesForItem(context.Background(), id)
	if len(stored) != 3 || stored[0].CorrectOption != "OPTION2" {
		t.Errorf("unexpected stored quizzes: %+v", stored)
	}
	if published.Load() != id {
		t.Errorf("published item %d, want %d", published.Load(), id)
	}
}

func TestGenerateReplacesExistingQuizzes(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, "a")
	g := f.detailGenerator(t, &fakeWriter{}, fastRetry(1))

	first, _ := g.Generate(context.Background(), id)
	if _, err := g.Generate(context.Background(), id); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	stored, _ := f.store.DetailQuizzesForItem(context.Background(), id)
	if len(stored) != 3 {
		t.Fatalf("expected 3 quizzes after regeneration, got %d", len(stored))
	}
	if stored[0].ID == first[0].ID {
		t.Error("expected the earlier quizzes to be replaced")
	}
}

func TestGenerateSingleFlight(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, "a")
	w := &fakeWriter{started: make(chan struct{}), release: make(chan struct{})}
	g := f.detailGenerator(t, w, fastRetry(1))

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = g.Generate(context.Background(), id)
	}()

	<-w.started
	if _, err := g.Generate(context.Background(), id); !errors.Is(err, ErrInFlight) {
		t.Errorf("concurrent Generate: got %v, want ErrInFlight", err)
	}
	close(w.release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first Generate: %v", firstErr)
	}
	if got := w.calls.Load(); got != 1 {
		t.Errorf("expected 1 generation call, got %d", got)
	}
	stored, _ := f.store.DetailQuizzesForItem(context.Background(), id)
	if len(stored) != 3 {
		t.Errorf("expected one quiz set of 3, got %d", len(stored))
	}
}

func TestGenerateRetriesWithBackoff(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, "a")
	w := &fakeWriter{failFor: 2}
	g := f.detailGenerator(t, w, fastRetry(5))

	if _, err := g.Generate(context.Background(), id); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := w.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, "a")
	w := &fakeWriter{failFor: 100}
	g := f.detailGenerator(t, w, fastRetry(3))

	_, err := g.Generate(context.Background(), id)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if got := w.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if !g.registry.TryAcquire(id) {
		t.Error("registry entry must be cleared after terminal failure")
	}
	g.registry.Release(id)
	if stored, _ := f.store.DetailQuizzesForItem(context.Background(), id); len(stored) != 0 {
		t.Errorf("nothing should be stored, got %d", len(stored))
	}
}

func TestGenerateAllCountsOutcomes(t *testing.T) {
	f := newFixture(t)
	a := f.addItem(t, "a")
	b := f.addItem(t, "b")
	g := f.detailGenerator(t, &fakeWriter{}, fastRetry(1))

	res := g.GenerateAll(context.Background(), []int64{a, b, 9999})
	if len(res.Generated) != 2 || res.Failed != 1 {
		t.Errorf("unexpected batch result %+v", res)
	}
}

func TestStartReturnsBeforeGenerationFinishes(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, "a")
	w := &fakeWriter{started: make(chan struct{}, 1), release: make(chan struct{})}
	g := f.detailGenerator(t, w, fastRetry(1))

	batch := g.Start(context.Background(), []int64{id})
	select {
	case <-w.started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}
	if stored, _ := f.store.DetailQuizzesForItem(context.Background(), id); len(stored) != 0 {
		t.Fatalf("quizzes stored before the writer returned: %d", len(stored))
	}
	close(w.release)

	res := batch.Wait()
	if len(res.Generated) != 1 || res.Failed != 0 {
		t.Errorf("unexpected batch result %+v", res)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if !r.TryAcquire(1) {
		t.Fatal("first acquire should succeed")
	}
	if r.TryAcquire(1) {
		t.Error("second acquire should fail")
	}
	if !r.TryAcquire(2) {
		t.Error("other keys are independent")
	}
	r.Release(1)
	if !r.TryAcquire(1) {
		t.Error("release should allow a new acquire")
	}
}

func TestDailyQuizzesForSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addItem(t, "a")
	sel, err := f.store.ReplaceTodaySelection(ctx, "2025-08-01", id)
	if err != nil {
		t.Fatalf("ReplaceTodaySelection: %v", err)
	}
	daily := NewDailyService(f.store, logger.Nop())

	if n, err := daily.CreateForSelection(ctx, sel.ID); err != nil || n != 0 {
		t.Fatalf("without detail quizzes: n=%d err=%v, want skip", n, err)
	}

	if _, err := f.detailGenerator(t, &fakeWriter{}, fastRetry(1)).Generate(ctx, id); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n, err := daily.CreateForDate(ctx, "2025-08-01", []int64{id}); err != nil || n != 3 {
		t.Fatalf("CreateForDate: n=%d err=%v, want 3", n, err)
	}
	if n, err := daily.CreateForSelection(ctx, sel.ID); err != nil || n != 0 {
		t.Errorf("repeat: n=%d err=%v, want 0", n, err)
	}
	got, _ := f.store.DailyQuizzesForSelection(ctx, sel.ID)
	if len(got) != 3 {
		t.Errorf("expected 3 daily quizzes, got %d", len(got))
	}
	if n, err := daily.CreateForDate(ctx, "2025-08-02", []int64{id}); err != nil || n != 0 {
		t.Errorf("missing selection: n=%d err=%v", n, err)
	}
}

func TestFactQuizCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addItem(t, "a")
	facts := NewFactService(f.store, logger.Nop())
	facts.pick = func() storage.AnswerType { return storage.AnswerFake }

	if fq, err := facts.Create(ctx, id); err != nil || fq != nil {
		t.Fatalf("without synthetic content: fq=%v err=%v, want skip", fq, err)
	}

	if err := f.store.InsertSyntheticContent(ctx, id, "fake story"); err != nil {
		t.Fatalf("InsertSyntheticContent: %v", err)
	}
	fq, err := facts.Create(ctx, id)
	if err != nil || fq == nil {
		t.Fatalf("Create: fq=%v err=%v", fq, err)
	}
	if fq.CorrectAnswer != storage.AnswerFake || fq.Question != fakeQuestion {
		t.Errorf("unexpected fact quiz %+v", fq)
	}

	created, skipped, failed := facts.CreateAll(ctx, []int64{id})
	if created != 0 || skipped != 1 || failed != 0 {
		t.Errorf("repeat: created=%d skipped=%d failed=%d", created, skipped, failed)
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		exp   int
		level int
		err   error
	}{
		{0, 1, nil},
		{99, 1, nil},
		{100, 2, nil},
		{199, 2, nil},
		{200, 3, nil},
		{5000, 3, nil},
		{-1, 0, ErrNegativeExp},
	}
	for _, tt := range tests {
		level, err := LevelFor(tt.exp)
		if !errors.Is(err, tt.err) || level != tt.level {
			t.Errorf("LevelFor(%d) = %d, %v; want %d, %v", tt.exp, level, err, tt.level, tt.err)
		}
	}
}

func TestSubmitAnswerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addItem(t, "a")
	quizzes, err := f.detailGenerator(t, &fakeWriter{}, fastRetry(1)).Generate(ctx, id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	memberID, err := f.store.CreateMember(ctx, "player")
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	answers := NewAnswerService(f.store, logger.Nop())

	sub := Submission{MemberID: memberID, QuizID: quizzes[0].ID, QuizType: storage.QuizDetail, Answer: "OPTION2"}
	out, err := answers.Submit(ctx, sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Record.Correct || out.Record.GainedExp != 10 || out.Member.Exp != 10 || out.Member.Level != 1 {
		t.Errorf("unexpected outcome: record=%+v member=%+v", out.Record, out.Member)
	}

	sub.Answer = "OPTION1"
	if _, err := answers.Submit(ctx, sub); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("second Submit: got %v, want ErrAlreadyAnswered", err)
	}

	records, _ := f.store.AnswersForMember(ctx, memberID)
	if len(records) != 1 || records[0].Answer != "OPTION2" {
		t.Errorf("expected the first answer only, got %+v", records)
	}
	m, _ := f.store.GetMember(ctx, memberID)
	if m.Exp != 10 {
		t.Errorf("exp changed by rejected answer: %d", m.Exp)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID, _ := f.store.CreateMember(ctx, "player")
	answers := NewAnswerService(f.store, logger.Nop())

	tests := []Submission{
		{MemberID: memberID, QuizID: 1, QuizType: storage.QuizDetail, Answer: "OPTION4"},
		{MemberID: memberID, QuizID: 1, QuizType: storage.QuizFact, Answer: "MAYBE"},
		{MemberID: memberID, QuizID: 1, QuizType: "ESSAY", Answer: "OPTION1"},
	}
	for _, sub := range tests {
		if _, err := answers.Submit(ctx, sub); !errors.Is(err, ErrInvalidAnswer) {
			t.Errorf("Submit(%+v): got %v, want ErrInvalidAnswer", sub, err)
		}
	}

	_, err := answers.Submit(ctx, Submission{MemberID: memberID, QuizID: 42, QuizType: storage.QuizDetail, Answer: "OPTION1"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown quiz: got %v, want ErrNotFound", err)
	}
}
