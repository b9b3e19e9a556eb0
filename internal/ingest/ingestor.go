// Package ingest turns search keywords into crawled, deduplicated source
// items ready for scoring.
package ingest

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
	"github.com/matthewjhunter/newsquiz/internal/workpool"
)

type limiter interface {
	Acquire(ctx context.Context) error
}

// linkChecker reports whether a link is already stored.
type linkChecker interface {
	SourceItemExistsByLink(ctx context.Context, link string) (bool, error)
}

type Config struct {
	// ContentDomain is the host search links must point at. Empty keeps all.
	ContentDomain string
	// CrawlDelay separates sequential crawls within one keyword's results.
	CrawlDelay time.Duration
	// CrawlConcurrency bounds how many keyword result sets crawl at once.
	CrawlConcurrency int
}

// Stats counts what happened to search results during one ingest.
type Stats struct {
	Keywords     int `json:"keywords"`
	SearchFailed int `json:"search_failed"`
	Results      int `json:"results"`
	OffDomain    int `json:"off_domain"`
	Incomplete   int `json:"incomplete"`
	Duplicates   int `json:"duplicates"`
	Existing     int `json:"existing"`
	CrawlFailed  int `json:"crawl_failed"`
	Discarded    int `json:"discarded"`
	Ingested     int `json:"ingested"`
}

type Ingestor struct {
	searcher Searcher
	crawler  Crawler
	links    linkChecker
	limiter  limiter
	pool     *workpool.Pool
	cfg      Config
	log      *logger.Logger

	now func() time.Time
}

func NewIngestor(searcher Searcher, crawler Crawler, links linkChecker, lim limiter, pool *workpool.Pool, cfg Config, log *logger.Logger) *Ingestor {
	if cfg.CrawlConcurrency < 1 {
		cfg.CrawlConcurrency = 1
	}
	return &Ingestor{
		searcher: searcher,
		crawler:  crawler,
		links:    links,
		limiter:  lim,
		pool:     pool,
		cfg:      cfg,
		log:      log.With("stage", "ingest"),
		now:      time.Now,
	}
}

// Ingest searches every keyword, keeps on-domain results, deduplicates by
// link (first occurrence wins), skips links already stored and crawls the
// rest. Items with any missing field are dropped. The returned items are
// not persisted; their order follows keyword order then result order.
func (in *Ingestor) Ingest(ctx context.Context, keywords []string) ([]storage.SourceItem, Stats) {
	stats := Stats{Keywords: len(keywords)}

	pending := make([]<-chan workpool.Result[[]SearchResult], len(keywords))
	for i, kw := range keywords {
		kw := kw
		pending[i] = workpool.Go(ctx, in.pool, func(ctx context.Context) ([]SearchResult, error) {
			if err := in.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
			return in.searcher.Search(ctx, kw)
		})
	}

	seen := make(map[string]bool)
	groups := make([][]SearchResult, 0, len(keywords))
	for i, res := range workpool.Join(pending) {
		if res.Err != nil {
			stats.SearchFailed++
			in.log.Warn("search failed", "keyword", keywords[i], "error", res.Err)
			continue
		}
		var group []SearchResult
		for _, r := range res.Value {
			stats.Results++
			if !in.onDomain(r.Link) {
				stats.OffDomain++
				continue
			}
			if !r.complete() {
				stats.Incomplete++
				continue
			}
			if seen[r.Link] {
				stats.Duplicates++
				continue
			}
			seen[r.Link] = true
			group = append(group, r)
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}

	crawled := make([][]storage.SourceItem, len(groups))
	var mu sync.Mutex
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(in.cfg.CrawlConcurrency)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			crawled[i] = in.crawlGroup(ctx, group, count, &stats)
			return nil
		})
	}
	_ = g.Wait()

	var items []storage.SourceItem
	for _, group := range crawled {
		items = append(items, group...)
	}
	stats.Ingested = len(items)

	in.log.Info("ingest complete",
		"keywords", stats.Keywords,
		"results", stats.Results,
		"duplicates", stats.Duplicates,
		"existing", stats.Existing,
		"crawl_failed", stats.CrawlFailed,
		"discarded", stats.Discarded,
		"ingested", stats.Ingested)
	return items, stats
}

// crawlGroup crawls one keyword's results in order, pausing CrawlDelay
// between requests.
func (in *Ingestor) crawlGroup(ctx context.Context, group []SearchResult, count func(*int), stats *Stats) []storage.SourceItem {
	var items []storage.SourceItem
	// burst 1: the first fetch goes out at once, later ones wait CrawlDelay
	pacer := rate.NewLimiter(rate.Every(in.cfg.CrawlDelay), 1)
	for _, r := range group {
		exists, err := in.links.SourceItemExistsByLink(ctx, r.Link)
		if err != nil {
			in.log.Warn("link lookup failed", "link", r.Link, "error", err)
			count(&stats.CrawlFailed)
			continue
		}
		if exists {
			count(&stats.Existing)
			continue
		}

		if err := pacer.Wait(ctx); err != nil {
			return items
		}

		page, err := in.crawler.Fetch(ctx, r.Link)
		if err != nil {
			in.log.Debug("crawl failed", "link", r.Link, "error", err)
			count(&stats.CrawlFailed)
			continue
		}
		if !page.complete() {
			count(&stats.Discarded)
			continue
		}

		items = append(items, storage.SourceItem{
			Title:        CleanText(r.Title),
			Body:         page.Body,
			Link:         r.Link,
			OriginalLink: r.OriginalLink,
			Description:  CleanText(r.Description),
			ImageURL:     page.ImageURL,
			Outlet:       page.Outlet,
			Author:       page.Author,
			Category:     storage.CategoryNotFiltered,
			PublishedAt:  parsePubDate(r.PubDate, in.now()),
		})
	}
	return items
}

func (in *Ingestor) onDomain(link string) bool {
	if in.cfg.ContentDomain == "" {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(in.cfg.ContentDomain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
