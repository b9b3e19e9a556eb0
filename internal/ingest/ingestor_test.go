package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

type fakeSearcher struct {
	results map[string][]SearchResult
	errs    map[string]error
}

func (f *fakeSearcher) Search(ctx context.Context, keyword string) ([]SearchResult, error) {
	if err := f.errs[keyword]; err != nil {
		return nil, err
	}
	return f.results[keyword], nil
}

type fakeCrawler struct {
	mu    sync.Mutex
	calls map[string]int
	pages map[string]*Page
	errs  map[string]error
}

func (f *fakeCrawler) Fetch(ctx context.Context, link string) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[link]++
	if err := f.errs[link]; err != nil {
		return nil, err
	}
	if p, ok := f.pages[link]; ok {
		return p, nil
	}
	return fullPage(link), nil
}

type fakeLinks map[string]bool

func (f fakeLinks) SourceItemExistsByLink(ctx context.Context, link string) (bool, error) {
	return f[link], nil
}

type fakeLimiter struct{ err error }

func (f fakeLimiter) Acquire(ctx context.Context) error { return f.err }

func fullPage(link string) *Page {
	return &Page{Body: "body of " + link, ImageURL: "https://img/" + link, Author: "reporter", Outlet: "outlet"}
}

func result(link string) SearchResult {
	return SearchResult{
		Title:        "<b>title</b> " + link,
		OriginalLink: "https://origin.example/" + link,
		Link:         "https://n.news.naver.com/article/" + link,
		Description:  "desc &quot;" + link + "&quot;",
		PubDate:      "Tue, 29 Jul 2025 18:48:00 +0900",
	}
}

func newTestIngestor(t *testing.T, s Searcher, c Crawler, links linkChecker) *Ingestor {
	t.Helper()
	pool := workpool.New("news", 2, 16, logger.Nop())
	t.Cleanup(pool.Close)
	return NewIngestor(s, c, links, fakeLimiter{}, pool, Config{
		ContentDomain:    "n.news.naver.com",
		CrawlConcurrency: 2,
	}, logger.Nop())
}

func TestIngestDeduplicatesAcrossKeywords(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{
		"economy": {result("a"), result("b")},
		"market":  {result("a"), result("c")},
	}}
	crawler := &fakeCrawler{}
	in := newTestIngestor(t, searcher, crawler, fakeLinks{})

	items, stats := in.Ingest(context.Background(), []string{"economy", "market"})

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if stats.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", stats.Duplicates)
	}
	if n := crawler.calls[result("a").Link]; n != 1 {
		t.Errorf("duplicate link crawled %d times, want 1", n)
	}
	count := 0
	for _, it := range items {
		if it.Link == result("a").Link {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one item for shared link, got %d", count)
	}
}

func TestIngestPreservesKeywordOrder(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{
		"k1": {result("a"), result("b")},
		"k2": {result("c")},
	}}
	in := newTestIngestor(t, searcher, &fakeCrawler{}, fakeLinks{})

	items, _ := in.Ingest(context.Background(), []string{"k1", "k2"})
	want := []string{result("a").Link, result("b").Link, result("c").Link}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].Link != w {
			t.Errorf("items[%d].Link = %s, want %s", i, items[i].Link, w)
		}
	}
}

func TestIngestFiltersAndSkips(t *testing.T) {
	offDomain := result("off")
	offDomain.Link = "https://elsewhere.example/off"
	missing := result("missing")
	missing.Description = ""

	searcher := &fakeSearcher{
		results: map[string][]SearchResult{
			"k": {offDomain, missing, result("stored"), result("broken"), result("partial"), result("ok")},
		},
		errs: map[string]error{"down": errors.New("search unavailable")},
	}
	crawler := &fakeCrawler{
		errs:  map[string]error{result("broken").Link: errors.New("connection reset")},
		pages: map[string]*Page{result("partial").Link: {Body: "body", ImageURL: "img", Outlet: "outlet"}},
	}
	links := fakeLinks{result("stored").Link: true}
	in := newTestIngestor(t, searcher, crawler, links)

	items, stats := in.Ingest(context.Background(), []string{"k", "down"})

	if len(items) != 1 || items[0].Link != result("ok").Link {
		t.Fatalf("expected only the ok item, got %+v", items)
	}
	if stats.SearchFailed != 1 {
		t.Errorf("SearchFailed = %d, want 1", stats.SearchFailed)
	}
	if stats.OffDomain != 1 {
		t.Errorf("OffDomain = %d, want 1", stats.OffDomain)
	}
	if stats.Incomplete != 1 {
		t.Errorf("Incomplete = %d, want 1", stats.Incomplete)
	}
	if stats.Existing != 1 {
		t.Errorf("Existing = %d, want 1", stats.Existing)
	}
	if stats.CrawlFailed != 1 {
		t.Errorf("CrawlFailed = %d, want 1", stats.CrawlFailed)
	}
	if stats.Discarded != 1 {
		t.Errorf("Discarded = %d, want 1", stats.Discarded)
	}
	if crawler.calls[result("stored").Link] != 0 {
		t.Error("stored link should not be crawled")
	}
}

func TestIngestCleansSearchText(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{"k": {result("a")}}}
	in := newTestIngestor(t, searcher, &fakeCrawler{}, fakeLinks{})

	items, _ := in.Ingest(context.Background(), []string{"k"})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Title != "title a" {
		t.Errorf("Title = %q", it.Title)
	}
	if it.Description != `desc "a"` {
		t.Errorf("Description = %q", it.Description)
	}
	if it.PublishedAt.Year() != 2025 || it.PublishedAt.Month() != 7 {
		t.Errorf("PublishedAt = %v", it.PublishedAt)
	}
	if it.Category != "NOT_FILTERED" {
		t.Errorf("Category = %s", it.Category)
	}
}

func TestIngestRateLimitedSearchIsSkipped(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{"k": {result("a")}}}
	pool := workpool.New("news", 1, 4, logger.Nop())
	t.Cleanup(pool.Close)
	in := NewIngestor(searcher, &fakeCrawler{}, fakeLinks{}, fakeLimiter{err: fmt.Errorf("exhausted")}, pool, Config{}, logger.Nop())

	items, stats := in.Ingest(context.Background(), []string{"k"})
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
	if stats.SearchFailed != 1 {
		t.Errorf("SearchFailed = %d, want 1", stats.SearchFailed)
	}
}

func TestIngestPacesCrawlsWithinKeyword(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{
		"k1": {result("a"), result("b"), result("c")},
	}}
	pool := workpool.New("news", 2, 16, logger.Nop())
	t.Cleanup(pool.Close)
	in := NewIngestor(searcher, &fakeCrawler{}, fakeLinks{}, fakeLimiter{}, pool, Config{
		ContentDomain:    "n.news.naver.com",
		CrawlDelay:       40 * time.Millisecond,
		CrawlConcurrency: 1,
	}, logger.Nop())

	start := time.Now()
	items, _ := in.Ingest(context.Background(), []string{"k1"})
	elapsed := time.Since(start)

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	// three fetches, two gaps
	if elapsed < 75*time.Millisecond {
		t.Errorf("three crawls took %s, want at least two crawl delays", elapsed)
	}
}
